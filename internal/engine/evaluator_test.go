package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/truthgraph/veracity/internal/model"
)

func TestParseProposal(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		prop, err := parseProposal(`{"outcome":"upheld","rationale":"evidence predates the claim","confidence":0.9}`)
		require.NoError(t, err)
		require.Equal(t, model.OutcomeUpheld, prop.Outcome)
		require.InDelta(t, 0.9, prop.Confidence, 1e-9)
	})

	t.Run("fenced json", func(t *testing.T) {
		prop, err := parseProposal("Here is my verdict:\n```json\n{\"outcome\":\"dismissed\",\"rationale\":\"no support\",\"confidence\":0.6}\n```")
		require.NoError(t, err)
		require.Equal(t, model.OutcomeDismissed, prop.Outcome)
	})

	t.Run("unknown outcome rejected", func(t *testing.T) {
		_, err := parseProposal(`{"outcome":"maybe","rationale":"","confidence":0.5}`)
		require.Error(t, err)
	})

	t.Run("confidence out of range rejected", func(t *testing.T) {
		_, err := parseProposal(`{"outcome":"upheld","rationale":"","confidence":1.5}`)
		require.ErrorIs(t, err, ErrInvalidScore)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := parseProposal("I cannot decide.")
		require.Error(t, err)
	})
}

type stubEvaluator struct {
	prop Proposal
	err  error
}

func (s stubEvaluator) Name() string { return "stub" }

func (s stubEvaluator) Evaluate(context.Context, model.Challenge, model.Tally) (Proposal, error) {
	return s.prop, s.err
}

func TestAutoResolve(t *testing.T) {
	e, s := newTestEngine(t)
	ch := reviewChallenge(t, e, s)

	e.SetEvaluator(stubEvaluator{prop: Proposal{
		Outcome:    model.OutcomeUpheld,
		Rationale:  "the cited report contradicts the claim",
		Confidence: 0.8,
	}})

	resolved, err := e.AutoResolve(context.Background(), ch.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusResolved, resolved.Status)
	require.Equal(t, "evaluator:stub", resolved.Resolution.EvaluatorID)
	require.InDelta(t, -0.8*0.3, resolved.Resolution.VeracityImpact, 1e-9)
}

func TestAutoResolve_RequiresEvaluator(t *testing.T) {
	e, s := newTestEngine(t)
	ch := reviewChallenge(t, e, s)

	_, err := e.AutoResolve(context.Background(), ch.ID)
	require.Error(t, err)

	got, err := e.Challenge(ch.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusUnderReview, got.Status)
}
