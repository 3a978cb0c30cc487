package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truthgraph/veracity/internal/model"
)

// each test in the suite runs against both implementations
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("badger", func(t *testing.T) {
		b, err := OpenBadger("")
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, b.Close()) })
		fn(t, b)
	})
}

func TestStore_ClaimRoundtrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetClaim("absent")
		require.ErrorIs(t, err, ErrNotFound)

		c := model.Claim{ID: "c1", Text: "claim", EvidenceScore: 0.7, Confidence: 0.7}
		require.NoError(t, s.PutClaim(c))

		got, err := s.GetClaim("c1")
		require.NoError(t, err)
		require.Equal(t, c, got)

		require.NoError(t, s.UpdateClaim("c1", func(c *model.Claim) error {
			c.Confidence = 0.4
			return nil
		}))
		got, err = s.GetClaim("c1")
		require.NoError(t, err)
		require.InDelta(t, 0.4, got.Confidence, 1e-9)
	})
}

func TestStore_UpdateAbortDiscardsWrite(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		require.NoError(t, s.PutClaim(model.Claim{ID: "c1", Confidence: 0.7}))

		boom := errors.New("boom")
		err := s.UpdateClaim("c1", func(c *model.Claim) error {
			c.Confidence = 0.1
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := s.GetClaim("c1")
		require.NoError(t, err)
		require.InDelta(t, 0.7, got.Confidence, 1e-9, "aborted update must leave the record untouched")

		err = s.UpdateClaim("absent", func(*model.Claim) error { return nil })
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_EdgeIndexes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		edges := []model.SupportEdge{
			{ID: "e1", SourceID: "a", TargetID: "b", Weight: 1.0},
			{ID: "e2", SourceID: "a", TargetID: "c", Weight: 0.5},
			{ID: "e3", SourceID: "b", TargetID: "c", Weight: 0.8},
		}
		for _, e := range edges {
			require.NoError(t, s.PutEdge(e))
		}

		from, err := s.EdgesFrom("a")
		require.NoError(t, err)
		require.Len(t, from, 2)
		require.Equal(t, "e1", from[0].ID)
		require.Equal(t, "e2", from[1].ID)

		to, err := s.EdgesTo("c")
		require.NoError(t, err)
		require.Len(t, to, 2)

		none, err := s.EdgesFrom("c")
		require.NoError(t, err)
		require.Empty(t, none)
	})
}

func TestStore_UpdateEdgeKeepsEndpoints(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		require.NoError(t, s.PutEdge(model.SupportEdge{ID: "e1", SourceID: "a", TargetID: "b", Weight: 1.0}))

		require.NoError(t, s.UpdateEdge("e1", func(e *model.SupportEdge) error {
			e.Weight = 0.3
			e.SourceID = "hijacked"
			e.TargetID = "hijacked"
			return nil
		}))

		got, err := s.GetEdge("e1")
		require.NoError(t, err)
		require.InDelta(t, 0.3, got.Weight, 1e-9)
		require.Equal(t, "a", got.SourceID)
		require.Equal(t, "b", got.TargetID)
	})
}

func TestStore_ChallengeVotesNeverAliased(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		require.NoError(t, s.PutChallenge(model.Challenge{
			ID:     "ch",
			Status: model.StatusOpen,
			Votes: map[string]model.Vote{
				"alice": {VoterID: "alice", Type: model.VoteUphold, Weight: 0.5},
			},
		}))

		got, err := s.GetChallenge("ch")
		require.NoError(t, err)
		got.Votes["mallory"] = model.Vote{VoterID: "mallory", Weight: 1.0}

		again, err := s.GetChallenge("ch")
		require.NoError(t, err)
		require.Len(t, again.Votes, 1, "mutating a returned challenge must not leak into the store")
	})
}

func TestStore_UpdateReputationCreatesMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		require.NoError(t, s.UpdateReputation("new-user", func(r *model.UserReputation) error {
			r.Participation = 0.01
			return nil
		}))

		got, err := s.GetReputation("new-user")
		require.NoError(t, err)
		require.Equal(t, "new-user", got.UserID)
		require.InDelta(t, 0.01, got.Participation, 1e-9)
	})
}

func TestStore_HistoryAppendOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, id := range []string{"h1", "h2", "h3"} {
			require.NoError(t, s.AppendHistory(model.VeracityHistoryEntry{
				ID:        id,
				ClaimID:   "c1",
				EventType: model.HistoryManualUpdate,
				Timestamp: base.Add(time.Duration(i) * time.Second),
			}))
		}

		entries, err := s.History("c1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, id := range []string{"h1", "h2", "h3"} {
			require.Equal(t, id, entries[i].ID)
		}

		empty, err := s.History("other")
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}

func TestMemory_ConcurrentUpdatesSerialize(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.PutChallenge(model.Challenge{
		ID:     "ch",
		Status: model.StatusOpen,
		Votes:  map[string]model.Vote{},
	}))

	const n = 64
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			done <- s.UpdateChallenge("ch", func(ch *model.Challenge) error {
				ch.Votes[string(rune('A'+i%26))+string(rune('a'+i/26))] = model.Vote{Weight: 0.1}
				return nil
			})
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	got, err := s.GetChallenge("ch")
	require.NoError(t, err)
	require.Len(t, got.Votes, n, "every update function must observe its predecessor's write")
}
