package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/truthgraph/veracity/internal/model"
)

// Proposal is an evaluator's suggested resolution
type Proposal struct {
	Outcome    model.ResolutionOutcome `json:"outcome"`
	Rationale  string                  `json:"rationale"`
	Confidence float64                 `json:"confidence"`
}

// Evaluator produces a resolution proposal for a challenge under review.
// It suggests; the lifecycle rules still apply when the proposal is fed
// through ResolveChallenge.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, ch model.Challenge, tally model.Tally) (Proposal, error)
}

// AutoResolve runs the installed evaluator on a challenge and applies its
// proposal through the normal resolution path
func (e *Engine) AutoResolve(ctx context.Context, challengeID string) (model.Challenge, error) {
	if e.evaluator == nil {
		return model.Challenge{}, fmt.Errorf("no evaluator installed")
	}
	ch, err := e.store.GetChallenge(challengeID)
	if err != nil {
		return model.Challenge{}, err
	}
	prop, err := e.evaluator.Evaluate(ctx, ch, ch.Tally())
	if err != nil {
		return model.Challenge{}, fmt.Errorf("evaluate challenge %s: %w", challengeID, err)
	}
	return e.ResolveChallenge(ctx, challengeID, prop.Outcome, prop.Rationale, prop.Confidence, "evaluator:"+e.evaluator.Name())
}

// OpenAIEvaluator asks an OpenAI model to judge a challenge from its
// evidence, reasoning, and the community tally
type OpenAIEvaluator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIEvaluator creates an evaluator. model defaults to gpt-4o-mini.
func NewOpenAIEvaluator(apiKey, model string) (*OpenAIEvaluator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIEvaluator{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: 30 * time.Second,
	}, nil
}

// Name returns the evaluator identifier recorded on resolutions
func (o *OpenAIEvaluator) Name() string { return "openai/" + o.model }

const evaluatorSystemPrompt = `You judge credibility challenges against claims in an evidence graph.
Given the challenge type, its evidence and reasoning, and the weighted community vote tally,
decide whether the challenge should be upheld or dismissed.
Respond with a single JSON object: {"outcome": "upheld"|"dismissed", "rationale": "...", "confidence": 0.0-1.0}.
The rationale must cite only the material provided.`

// Evaluate asks the model for a verdict and parses the JSON proposal
func (o *OpenAIEvaluator) Evaluate(ctx context.Context, ch model.Challenge, tally model.Tally) (Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Challenge type: %s\nEvidence:\n%s\n\nReasoning:\n%s\n\nTally: uphold=%.3f dismiss=%.3f participants=%d\n",
		ch.Type, ch.Evidence, ch.Reasoning,
		tally.UpholdWeight, tally.DismissWeight, tally.TotalParticipants,
	)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: evaluatorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   500,
		Temperature: 0.2,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Proposal{}, fmt.Errorf("no response from OpenAI")
	}
	return parseProposal(resp.Choices[0].Message.Content)
}

// parseProposal extracts and validates the JSON verdict from model output
func parseProposal(content string) (Proposal, error) {
	content = strings.TrimSpace(content)
	// Models sometimes wrap JSON in a code fence.
	if i := strings.Index(content, "{"); i >= 0 {
		if j := strings.LastIndex(content, "}"); j > i {
			content = content[i : j+1]
		}
	}
	var prop Proposal
	if err := json.Unmarshal([]byte(content), &prop); err != nil {
		return Proposal{}, fmt.Errorf("parse evaluator response: %w", err)
	}
	if _, err := model.ParseResolutionOutcome(string(prop.Outcome)); err != nil {
		return Proposal{}, err
	}
	if prop.Confidence < 0 || prop.Confidence > 1 {
		return Proposal{}, fmt.Errorf("evaluator confidence %v: %w", prop.Confidence, ErrInvalidScore)
	}
	return prop, nil
}

var _ Evaluator = (*OpenAIEvaluator)(nil)
