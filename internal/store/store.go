// Package store defines the storage collaborator the engine works against:
// read-by-id and atomic-update primitives with per-key mutual exclusion.
//
// The Update* methods run the supplied function inside the record's update
// scope. Two concurrent updates of the same key never interleave, the
// function sees a consistent snapshot, and returning an error aborts the
// write entirely. This is the mechanism the engine relies on for race-free
// tallies and compare-and-swap lifecycle transitions.
package store

import (
	"errors"

	"github.com/truthgraph/veracity/internal/model"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator. Implementations must make each
// Update* call atomic per key and must not persist anything when the update
// function returns an error.
type Store interface {
	GetClaim(id string) (model.Claim, error)
	PutClaim(c model.Claim) error
	UpdateClaim(id string, fn func(*model.Claim) error) error

	GetEdge(id string) (model.SupportEdge, error)
	PutEdge(e model.SupportEdge) error
	UpdateEdge(id string, fn func(*model.SupportEdge) error) error

	// EdgesFrom lists outgoing support edges of a claim (what it depends on).
	EdgesFrom(sourceID string) ([]model.SupportEdge, error)
	// EdgesTo lists incoming support edges (claims that depend on targetID).
	EdgesTo(targetID string) ([]model.SupportEdge, error)

	GetChallenge(id string) (model.Challenge, error)
	PutChallenge(ch model.Challenge) error
	UpdateChallenge(id string, fn func(*model.Challenge) error) error

	GetReputation(userID string) (model.UserReputation, error)
	PutReputation(r model.UserReputation) error
	// UpdateReputation creates a zero-valued record first if none exists.
	UpdateReputation(userID string, fn func(*model.UserReputation) error) error

	AppendHistory(e model.VeracityHistoryEntry) error
	History(claimID string) ([]model.VeracityHistoryEntry, error)

	Close() error
}

// cloneChallenge deep-copies a challenge so callers never alias the stored
// votes map
func cloneChallenge(ch model.Challenge) model.Challenge {
	out := ch
	if ch.Votes != nil {
		out.Votes = make(map[string]model.Vote, len(ch.Votes))
		for k, v := range ch.Votes {
			out.Votes[k] = v
		}
	}
	if ch.Resolution != nil {
		res := *ch.Resolution
		out.Resolution = &res
	}
	return out
}
