package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChallengeType(t *testing.T) {
	for _, ct := range ChallengeTypes() {
		got, err := ParseChallengeType(string(ct))
		require.NoError(t, err)
		require.Equal(t, ct, got)
	}

	_, err := ParseChallengeType("vibes")
	require.ErrorIs(t, err, ErrInvalidChallengeType)
}

func TestChallengeStatusTerminal(t *testing.T) {
	require.False(t, StatusOpen.Terminal())
	require.False(t, StatusUnderReview.Terminal())
	require.True(t, StatusResolved.Terminal())
	require.True(t, StatusDismissed.Terminal())
	require.True(t, StatusWithdrawn.Terminal())
}

func TestTally(t *testing.T) {
	ch := Challenge{Votes: map[string]Vote{
		"a": {VoterID: "a", Type: VoteUphold, Weight: 0.5},
		"b": {VoterID: "b", Type: VoteUphold, Weight: 0.3},
		"c": {VoterID: "c", Type: VoteDismiss, Weight: 0.2},
	}}

	tally := ch.Tally()
	require.InDelta(t, 0.8, tally.UpholdWeight, 1e-9)
	require.InDelta(t, 0.2, tally.DismissWeight, 1e-9)
	require.Equal(t, 3, tally.TotalParticipants)

	leading, share := tally.Leading()
	require.Equal(t, VoteUphold, leading)
	require.InDelta(t, 0.8, share, 1e-9)
}

func TestTallyLeading_Tie(t *testing.T) {
	tally := Tally{UpholdWeight: 0.4, DismissWeight: 0.4, TotalParticipants: 2}
	leading, share := tally.Leading()
	require.Empty(t, leading)
	require.Zero(t, share)
}

func TestTally_EmptyChallenge(t *testing.T) {
	var ch Challenge
	tally := ch.Tally()
	require.Zero(t, tally.TotalParticipants)
	leading, _ := tally.Leading()
	require.Empty(t, leading)
}
