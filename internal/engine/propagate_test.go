package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/truthgraph/veracity/internal/events"
	"github.com/truthgraph/veracity/internal/model"
	"github.com/truthgraph/veracity/internal/policy"
	"github.com/truthgraph/veracity/internal/store"
)

func addClaim(t *testing.T, e *Engine, text string, evidence float64) model.Claim {
	t.Helper()
	c, err := e.AddClaim(text, model.LevelStandard, evidence, "author")
	require.NoError(t, err)
	return c
}

// requireWeakestLink asserts the post-convergence invariant for a claim:
// c <= e and c <= target.c * weight for every outgoing support edge
func requireWeakestLink(t *testing.T, e *Engine, s store.Store, claimID string) {
	t.Helper()
	claim, err := e.Claim(claimID)
	require.NoError(t, err)
	require.LessOrEqual(t, claim.Confidence, claim.EvidenceScore+1e-9)
	edges, err := s.EdgesFrom(claimID)
	require.NoError(t, err)
	for _, edge := range edges {
		target, err := e.Claim(edge.TargetID)
		require.NoError(t, err)
		require.LessOrEqual(t, claim.Confidence, target.Confidence*edge.Weight+1e-9)
	}
}

func TestRecompute_WeakestLink(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addClaim(t, e, "A", 0.9)
	b := addClaim(t, e, "B", 0.4)

	_, err := e.AddSupportEdge(ctx, a.ID, b.ID, 1.0)
	require.NoError(t, err)

	got, err := e.Claim(a.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.4, got.Confidence, 1e-9, "A is capped by its weakest support")
	requireWeakestLink(t, e, s, a.ID)
}

func TestRecompute_ChainPropagation(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// c supports b supports a; lowering c must ripple up the chain.
	a := addClaim(t, e, "A", 1.0)
	b := addClaim(t, e, "B", 1.0)
	c := addClaim(t, e, "C", 1.0)
	_, err := e.AddSupportEdge(ctx, a.ID, b.ID, 1.0)
	require.NoError(t, err)
	_, err = e.AddSupportEdge(ctx, b.ID, c.ID, 0.5)
	require.NoError(t, err)

	changes, err := e.SetEvidenceScore(ctx, c.ID, 0.6, model.HistoryManualUpdate)
	require.NoError(t, err)

	changedIDs := make(map[string]bool)
	for _, ch := range changes {
		changedIDs[ch.ClaimID] = true
	}
	require.True(t, changedIDs[c.ID] && changedIDs[b.ID] && changedIDs[a.ID],
		"all three claims must be in the changed set, got %v", changes)

	for id, want := range map[string]float64{c.ID: 0.6, b.ID: 0.3, a.ID: 0.3} {
		got, err := e.Claim(id)
		require.NoError(t, err)
		require.InDelta(t, want, got.Confidence, 1e-9)
		requireWeakestLink(t, e, s, id)
	}
}

func TestRecompute_CycleTerminates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := addClaim(t, e, "A", 1.0)
	b := addClaim(t, e, "B", 1.0)
	c := addClaim(t, e, "C", 1.0)
	_, err := e.AddSupportEdge(ctx, a.ID, b.ID, 1.0)
	require.NoError(t, err)
	_, err = e.AddSupportEdge(ctx, b.ID, c.ID, 1.0)
	require.NoError(t, err)
	_, err = e.AddSupportEdge(ctx, c.ID, a.ID, 1.0)
	require.NoError(t, err)

	changes, err := e.Recompute(ctx, a.ID, model.HistoryConsensusChanged)
	require.NoError(t, err, "cycle must terminate, not loop")
	require.Empty(t, changes, "all scores already at the fixed point")

	for _, id := range []string{a.ID, b.ID, c.ID} {
		got, err := e.Claim(id)
		require.NoError(t, err)
		require.InDelta(t, 1.0, got.Confidence, 1e-9)
	}
}

func TestRecompute_CycleConvergesAfterDrop(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addClaim(t, e, "A", 1.0)
	b := addClaim(t, e, "B", 1.0)
	c := addClaim(t, e, "C", 1.0)
	_, err := e.AddSupportEdge(ctx, a.ID, b.ID, 1.0)
	require.NoError(t, err)
	_, err = e.AddSupportEdge(ctx, b.ID, c.ID, 1.0)
	require.NoError(t, err)
	_, err = e.AddSupportEdge(ctx, c.ID, a.ID, 1.0)
	require.NoError(t, err)

	_, err = e.SetEvidenceScore(ctx, c.ID, 0.4, model.HistoryManualUpdate)
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID, c.ID} {
		got, err := e.Claim(id)
		require.NoError(t, err)
		require.InDelta(t, 0.4, got.Confidence, 1e-9, "the drop must travel the whole cycle")
		requireWeakestLink(t, e, s, id)
	}

	// Idempotence: a second run with no new input changes nothing.
	changes, err := e.Recompute(ctx, c.ID, model.HistoryConsensusChanged)
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestRecompute_VerifiedClaimUntouched(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	verified, err := e.AddClaim("axiom", model.LevelVerified, 1.0, "author")
	require.NoError(t, err)
	dependent := addClaim(t, e, "dependent", 0.9)
	_, err = e.AddSupportEdge(ctx, dependent.ID, verified.ID, 1.0)
	require.NoError(t, err)

	_, err = e.SetEvidenceScore(ctx, verified.ID, 0.2, model.HistoryManualUpdate)
	require.ErrorIs(t, err, ErrVerifiedClaimImmutable)

	got, err := e.Claim(verified.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.0, got.Confidence, 1e-9)
}

func TestRecompute_BudgetExceeded(t *testing.T) {
	s := store.NewMemory()
	p := policy.Default()
	p.PropagationBudget = 3
	e, err := New(s, p, events.NewBus(16, nil), nil)
	require.NoError(t, err)
	ctx := context.Background()

	// A chain longer than the budget: root plus four dependents.
	claims := make([]model.Claim, 5)
	for i := range claims {
		claims[i] = addClaim(t, e, "claim", 1.0)
	}
	for i := 0; i < len(claims)-1; i++ {
		_, err := e.AddSupportEdge(ctx, claims[i].ID, claims[i+1].ID, 1.0)
		require.NoError(t, err)
	}

	before := make(map[string]float64)
	for _, c := range claims {
		got, err := e.Claim(c.ID)
		require.NoError(t, err)
		before[c.ID] = got.Confidence
	}

	_, err = e.SetEvidenceScore(ctx, claims[len(claims)-1].ID, 0.1, model.HistoryManualUpdate)
	require.ErrorIs(t, err, ErrPropagationBudgetExceeded)

	// No partial writes: every confidence is exactly as before the attempt.
	for id, want := range before {
		got, err := e.Claim(id)
		require.NoError(t, err)
		require.InDelta(t, want, got.Confidence, 1e-9)
	}
}

func TestRecompute_PublishesConfidenceChanged(t *testing.T) {
	s := store.NewMemory()
	bus := events.NewBus(64, nil)
	e, err := New(s, policy.Default(), bus, nil)
	require.NoError(t, err)
	ctx := context.Background()

	sub, cancel := bus.Subscribe()
	defer cancel()

	a := addClaim(t, e, "A", 0.9)
	b := addClaim(t, e, "B", 0.4)
	_, err = e.AddSupportEdge(ctx, a.ID, b.ID, 1.0)
	require.NoError(t, err)

	for {
		select {
		case ev := <-sub:
			if cc, ok := ev.(model.ConfidenceChanged); ok {
				require.Equal(t, a.ID, cc.ClaimID)
				require.InDelta(t, 0.9, cc.OldScore, 1e-9)
				require.InDelta(t, 0.4, cc.NewScore, 1e-9)
				return
			}
		default:
			t.Fatal("expected a ConfidenceChanged event on the bus")
		}
	}
}
