package reputation

import (
	"fmt"
	"time"

	"github.com/truthgraph/veracity/internal/model"
)

// Adjustment step sizes. Small on purpose: reputation moves slowly, one
// resolution at a time.
const (
	accuracyStep      = 0.05
	evidenceStep      = 0.10
	participationStep = 0.01
)

// Updater adjusts reputation records from challenge outcomes. It runs
// strictly after the resolution commit and never re-weights votes that were
// already cast; tallies recorded in the audit log stay explainable as-is.
type Updater struct {
	calc *Calculator
}

// NewUpdater creates an updater sharing the calculator's store and cache
func NewUpdater(c *Calculator) *Updater {
	return &Updater{calc: c}
}

// RecordParticipation bumps a voter's participation sub-score after a cast
// vote
func (u *Updater) RecordParticipation(voterID string) error {
	return u.adjust(voterID, func(r *model.UserReputation) {
		r.Participation = clamp01(r.Participation + participationStep)
	})
}

// RecordEndorsement bumps a user's community-trust sub-score
func (u *Updater) RecordEndorsement(userID string, delta float64) error {
	return u.adjust(userID, func(r *model.UserReputation) {
		r.CommunityTrust = clamp01(r.CommunityTrust + delta)
	})
}

// ApplyResolution adjusts every participant of a resolved challenge:
// voters on the winning side gain vote accuracy, the losing side loses it,
// and the creator's evidence quality moves with the verdict.
func (u *Updater) ApplyResolution(ch model.Challenge) error {
	if ch.Resolution == nil {
		return fmt.Errorf("challenge %s has no resolution", ch.ID)
	}
	upheld := ch.Resolution.Outcome == model.OutcomeUpheld

	for voterID, vote := range ch.Votes {
		votedUphold := vote.Type == model.VoteUphold
		step := accuracyStep
		if votedUphold != upheld {
			step = -accuracyStep
		}
		if err := u.adjust(voterID, func(r *model.UserReputation) {
			r.VoteAccuracy = clamp01(r.VoteAccuracy + step)
		}); err != nil {
			return fmt.Errorf("adjust voter %s: %w", voterID, err)
		}
	}

	step := evidenceStep
	if !upheld {
		step = -evidenceStep
	}
	if err := u.adjust(ch.CreatorID, func(r *model.UserReputation) {
		r.EvidenceQuality = clamp01(r.EvidenceQuality + step)
	}); err != nil {
		return fmt.Errorf("adjust creator %s: %w", ch.CreatorID, err)
	}
	return nil
}

func (u *Updater) adjust(userID string, fn func(*model.UserReputation)) error {
	err := u.calc.store.UpdateReputation(userID, func(r *model.UserReputation) error {
		fn(r)
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}
	u.calc.Invalidate(userID)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
