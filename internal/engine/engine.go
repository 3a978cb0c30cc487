// Package engine implements the veracity consensus and challenge resolution
// engine: weighted vote aggregation, the challenge lifecycle state machine,
// and cycle-safe confidence propagation under the weakest-link rule.
//
// The engine is a library component. It talks to storage through the
// store.Store collaborator, publishes committed state changes on an event
// bus, and leaves transport and authentication to the application layer.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/events"
	"github.com/truthgraph/veracity/internal/model"
	"github.com/truthgraph/veracity/internal/policy"
	"github.com/truthgraph/veracity/internal/reputation"
	"github.com/truthgraph/veracity/internal/store"
)

// VotePolicy decides whether a voter may vote on a challenge. It runs
// inside the per-challenge update scope. The engine exposes the check but
// does not hard-wire it; replace it with SetVotePolicy.
type VotePolicy func(ch *model.Challenge, voterID string) error

// ForbidSelfVote is the default vote policy: the creator may not vote on
// their own challenge.
func ForbidSelfVote(ch *model.Challenge, voterID string) error {
	if ch.CreatorID == voterID {
		return ErrSelfVoteForbidden
	}
	return nil
}

// AllowAllVotes is a vote policy that accepts every voter
func AllowAllVotes(*model.Challenge, string) error { return nil }

// Engine wires the reputation calculator, vote aggregator, challenge
// lifecycle, and confidence propagator around one store
type Engine struct {
	store      store.Store
	policy     policy.Policy
	calc       *reputation.Calculator
	updater    *reputation.Updater
	bus        *events.Bus
	logger     *zap.Logger
	votePolicy VotePolicy
	evaluator  Evaluator

	// propMu serializes propagation passes: a single-writer queue over the
	// claim graph, so overlapping recomputations never interleave writes.
	propMu sync.Mutex
}

// New creates an engine. bus and logger may be nil.
func New(s store.Store, p policy.Policy, bus *events.Bus, logger *zap.Logger) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = events.NewBus(0, logger)
	}
	calc := reputation.NewCalculator(s, p)
	return &Engine{
		store:      s,
		policy:     p,
		calc:       calc,
		updater:    reputation.NewUpdater(calc),
		bus:        bus,
		logger:     logger,
		votePolicy: ForbidSelfVote,
	}, nil
}

// SetVotePolicy replaces the pluggable vote admission check
func (e *Engine) SetVotePolicy(vp VotePolicy) {
	if vp == nil {
		vp = AllowAllVotes
	}
	e.votePolicy = vp
}

// SetEvaluator installs an automated challenge evaluator used by AutoResolve
func (e *Engine) SetEvaluator(ev Evaluator) { e.evaluator = ev }

// Policy returns the engine's consensus policy
func (e *Engine) Policy() policy.Policy { return e.policy }

// AddClaim adds a claim to the graph. Its confidence starts at the
// evidence score; with no support edges yet, that is the weakest-link value.
func (e *Engine) AddClaim(text string, level model.ClaimLevel, evidenceScore float64, createdBy string) (model.Claim, error) {
	if evidenceScore < 0 || evidenceScore > 1 {
		return model.Claim{}, fmt.Errorf("evidence score %v: %w", evidenceScore, ErrInvalidScore)
	}
	if level == "" {
		level = model.LevelStandard
	}
	now := time.Now().UTC()
	c := model.Claim{
		ID:            uuid.NewString(),
		Text:          text,
		Level:         level,
		EvidenceScore: evidenceScore,
		Confidence:    evidenceScore,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.PutClaim(c); err != nil {
		return model.Claim{}, fmt.Errorf("put claim: %w", err)
	}
	if err := e.appendHistory(c.ID, c.Confidence, c.Confidence, model.HistoryEvidenceAdded, "claim added"); err != nil {
		return model.Claim{}, err
	}
	e.logger.Debug("claim added", zap.String("claim_id", c.ID), zap.Float64("evidence_score", evidenceScore))
	return c, nil
}

// AddSupportEdge links two claims: target supports source, so the target's
// confidence (scaled by weight) bounds the source's. The source and every
// claim depending on it are recomputed.
func (e *Engine) AddSupportEdge(ctx context.Context, sourceID, targetID string, weight float64) (model.SupportEdge, error) {
	if weight < 0 || weight > 1 {
		return model.SupportEdge{}, fmt.Errorf("edge weight %v: %w", weight, ErrInvalidScore)
	}
	if sourceID == targetID {
		return model.SupportEdge{}, fmt.Errorf("edge source and target are the same claim %s", sourceID)
	}
	if _, err := e.store.GetClaim(sourceID); err != nil {
		return model.SupportEdge{}, err
	}
	if _, err := e.store.GetClaim(targetID); err != nil {
		return model.SupportEdge{}, err
	}
	edge := model.SupportEdge{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Weight:    weight,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.PutEdge(edge); err != nil {
		return model.SupportEdge{}, fmt.Errorf("put edge: %w", err)
	}
	if _, err := e.Recompute(ctx, sourceID, model.HistoryEvidenceAdded); err != nil {
		return edge, fmt.Errorf("recompute after edge: %w", err)
	}
	return edge, nil
}

// SetEvidenceScore updates a claim's evidence-derived base confidence and
// propagates the change. Verified claims reject the update.
func (e *Engine) SetEvidenceScore(ctx context.Context, claimID string, score float64, reason model.HistoryEventType) ([]ConfidenceChange, error) {
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("evidence score %v: %w", score, ErrInvalidScore)
	}
	if reason == "" {
		reason = model.HistoryManualUpdate
	}
	err := e.store.UpdateClaim(claimID, func(c *model.Claim) error {
		if c.Verified() {
			return fmt.Errorf("claim %s: %w", claimID, ErrVerifiedClaimImmutable)
		}
		c.EvidenceScore = score
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.Recompute(ctx, claimID, reason)
}

// CreateChallenge opens a formal dispute against a claim or support edge
func (e *Engine) CreateChallenge(targetID string, kind model.TargetKind, typ model.ChallengeType, evidence, reasoning, creatorID string) (model.Challenge, error) {
	if !e.policy.AllowsType(typ) {
		return model.Challenge{}, fmt.Errorf("%w: %q", model.ErrInvalidChallengeType, typ)
	}
	switch kind {
	case model.TargetClaim:
		c, err := e.store.GetClaim(targetID)
		if err != nil {
			return model.Challenge{}, err
		}
		if c.Verified() {
			return model.Challenge{}, fmt.Errorf("claim %s: %w", targetID, ErrVerifiedClaimImmutable)
		}
	case model.TargetEdge:
		if _, err := e.store.GetEdge(targetID); err != nil {
			return model.Challenge{}, err
		}
	default:
		return model.Challenge{}, fmt.Errorf("invalid challenge target kind: %q", kind)
	}

	ch := model.Challenge{
		ID:         uuid.NewString(),
		TargetID:   targetID,
		TargetKind: kind,
		Type:       typ,
		Evidence:   evidence,
		Reasoning:  reasoning,
		CreatorID:  creatorID,
		Status:     model.StatusOpen,
		CreatedAt:  time.Now().UTC(),
		Votes:      make(map[string]model.Vote),
	}
	if err := e.store.PutChallenge(ch); err != nil {
		return model.Challenge{}, fmt.Errorf("put challenge: %w", err)
	}

	challengesCreated.Inc()
	e.bus.Publish(model.ChallengeCreated{Challenge: ch, At: ch.CreatedAt})
	e.logger.Info("challenge created",
		zap.String("challenge_id", ch.ID),
		zap.String("target_id", targetID),
		zap.String("type", string(typ)))
	return ch, nil
}

// Challenge returns a challenge by ID
func (e *Engine) Challenge(id string) (model.Challenge, error) {
	return e.store.GetChallenge(id)
}

// Claim returns a claim by ID
func (e *Engine) Claim(id string) (model.Claim, error) {
	return e.store.GetClaim(id)
}

// History returns a claim's append-only audit log
func (e *Engine) History(claimID string) ([]model.VeracityHistoryEntry, error) {
	return e.store.History(claimID)
}

func (e *Engine) appendHistory(claimID string, score, delta float64, event model.HistoryEventType, reason string) error {
	entry := model.VeracityHistoryEntry{
		ID:        uuid.NewString(),
		ClaimID:   claimID,
		Score:     score,
		Delta:     delta,
		Reason:    reason,
		EventType: event,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.AppendHistory(entry); err != nil {
		return fmt.Errorf("append history for claim %s: %w", claimID, err)
	}
	return nil
}
