package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/truthgraph/veracity/internal/model"
	"github.com/truthgraph/veracity/internal/store"
)

// reviewChallenge drives a fresh challenge into UNDER_REVIEW with three
// uphold-leaning voters
func reviewChallenge(t *testing.T, e *Engine, s store.Store) model.Challenge {
	t.Helper()
	ch := openChallenge(t, e)
	ctx := context.Background()
	seedVoter(t, s, "alice", 0.5)
	seedVoter(t, s, "bob", 0.3)
	seedVoter(t, s, "carol", 0.2)
	for voter, vt := range map[string]model.VoteType{
		"alice": model.VoteUphold,
		"bob":   model.VoteUphold,
		"carol": model.VoteDismiss,
	} {
		_, err := e.CastVote(ctx, ch.ID, voter, vt, "")
		require.NoError(t, err)
	}
	got, err := e.Challenge(ch.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusUnderReview, got.Status)
	return got
}

func TestResolveChallenge_Upheld(t *testing.T) {
	e, s := newTestEngine(t)
	ch := reviewChallenge(t, e, s)
	ctx := context.Background()

	before, err := e.Claim(ch.TargetID)
	require.NoError(t, err)

	resolved, err := e.ResolveChallenge(ctx, ch.ID, model.OutcomeUpheld, "evidence predates the claim", 1.0, "moderator")
	require.NoError(t, err)
	require.Equal(t, model.StatusResolved, resolved.Status)
	require.InDelta(t, -0.3, resolved.Resolution.VeracityImpact, 1e-9)

	after, err := e.Claim(ch.TargetID)
	require.NoError(t, err)
	require.InDelta(t, before.EvidenceScore-0.3, after.EvidenceScore, 1e-9)
	require.InDelta(t, after.EvidenceScore, after.Confidence, 1e-9)

	entries, err := e.History(ch.TargetID)
	require.NoError(t, err)
	var sawResolution bool
	for _, entry := range entries {
		if entry.EventType == model.HistoryChallengeResolved {
			sawResolution = true
		}
	}
	require.True(t, sawResolution, "upheld resolution must leave an audit entry")
}

func TestResolveChallenge_ExactlyOnce(t *testing.T) {
	e, s := newTestEngine(t)
	ch := reviewChallenge(t, e, s)
	ctx := context.Background()

	first, err := e.ResolveChallenge(ctx, ch.ID, model.OutcomeUpheld, "first verdict", 0.9, "moderator")
	require.NoError(t, err)

	for _, outcome := range []model.ResolutionOutcome{model.OutcomeUpheld, model.OutcomeDismissed} {
		_, err = e.ResolveChallenge(ctx, ch.ID, outcome, "second verdict", 0.1, "someone else")
		require.ErrorIs(t, err, ErrAlreadyResolved)
	}

	got, err := e.Challenge(ch.ID)
	require.NoError(t, err)
	require.Equal(t, first.Resolution.Rationale, got.Resolution.Rationale)
	require.Equal(t, first.Resolution.EvaluatorID, got.Resolution.EvaluatorID)
	require.InDelta(t, first.Resolution.Confidence, got.Resolution.Confidence, 1e-9)
}

func TestResolveChallenge_Dismissed(t *testing.T) {
	e, s := newTestEngine(t)
	ch := reviewChallenge(t, e, s)
	ctx := context.Background()

	before, err := e.Claim(ch.TargetID)
	require.NoError(t, err)

	resolved, err := e.ResolveChallenge(ctx, ch.ID, model.OutcomeDismissed, "challenge lacks support", 0.8, "moderator")
	require.NoError(t, err)
	require.Equal(t, model.StatusDismissed, resolved.Status)
	require.Zero(t, resolved.Resolution.VeracityImpact)

	after, err := e.Claim(ch.TargetID)
	require.NoError(t, err)
	require.InDelta(t, before.Confidence, after.Confidence, 1e-9, "dismissal must not move scores")

	entries, err := e.History(ch.TargetID)
	require.NoError(t, err)
	var sawAudit bool
	for _, entry := range entries {
		if entry.EventType == model.HistoryConsensusChanged {
			sawAudit = true
		}
	}
	require.True(t, sawAudit, "dismissal still owes a consensus_changed audit entry")
}

func TestResolveChallenge_OpenRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	ch := openChallenge(t, e)

	_, err := e.ResolveChallenge(context.Background(), ch.ID, model.OutcomeUpheld, "too early", 0.5, "moderator")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveChallenge_AdjustsReputation(t *testing.T) {
	e, s := newTestEngine(t)
	ch := reviewChallenge(t, e, s)

	_, err := e.ResolveChallenge(context.Background(), ch.ID, model.OutcomeUpheld, "verdict", 1.0, "moderator")
	require.NoError(t, err)

	alice, err := s.GetReputation("alice")
	require.NoError(t, err)
	require.Greater(t, alice.VoteAccuracy, 0.5, "winning-side voter gains accuracy")

	carol, err := s.GetReputation("carol")
	require.NoError(t, err)
	require.Less(t, carol.VoteAccuracy, 0.2, "losing-side voter loses accuracy")

	creator, err := s.GetReputation("challenger")
	require.NoError(t, err)
	require.Greater(t, creator.EvidenceQuality, 0.0, "upheld challenge raises creator evidence quality")
}

func TestWithdrawChallenge(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	t.Run("creator before votes", func(t *testing.T) {
		ch := openChallenge(t, e)
		got, err := e.WithdrawChallenge(ctx, ch.ID, "challenger")
		require.NoError(t, err)
		require.Equal(t, model.StatusWithdrawn, got.Status)
	})

	t.Run("non-creator rejected", func(t *testing.T) {
		ch := openChallenge(t, e)
		_, err := e.WithdrawChallenge(ctx, ch.ID, "impostor")
		require.ErrorIs(t, err, ErrWithdrawForbidden)
	})

	t.Run("after a vote rejected", func(t *testing.T) {
		ch := openChallenge(t, e)
		seedVoter(t, s, "dave", 0.4)
		_, err := e.CastVote(ctx, ch.ID, "dave", model.VoteUphold, "")
		require.NoError(t, err)
		_, err = e.WithdrawChallenge(ctx, ch.ID, "challenger")
		require.ErrorIs(t, err, ErrWithdrawForbidden)
	})

	t.Run("terminal rejected", func(t *testing.T) {
		ch := openChallenge(t, e)
		_, err := e.WithdrawChallenge(ctx, ch.ID, "challenger")
		require.NoError(t, err)
		_, err = e.WithdrawChallenge(ctx, ch.ID, "challenger")
		require.ErrorIs(t, err, ErrChallengeClosed)
	})
}

func TestCreateChallenge_Validation(t *testing.T) {
	e, _ := newTestEngine(t)

	claim, err := e.AddClaim("water boils at 100C at sea level", model.LevelVerified, 1.0, "author")
	require.NoError(t, err)
	_, err = e.CreateChallenge(claim.ID, model.TargetClaim, model.ChallengeFactualError, "", "", "challenger")
	require.ErrorIs(t, err, ErrVerifiedClaimImmutable)

	standard, err := e.AddClaim("a disputable claim", model.LevelStandard, 0.5, "author")
	require.NoError(t, err)
	_, err = e.CreateChallenge(standard.ID, model.TargetClaim, model.ChallengeType("vibes"), "", "", "challenger")
	require.ErrorIs(t, err, model.ErrInvalidChallengeType)

	_, err = e.CreateChallenge("missing", model.TargetClaim, model.ChallengeFactualError, "", "", "challenger")
	require.ErrorIs(t, err, store.ErrNotFound)
}
