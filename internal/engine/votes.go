package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/model"
)

// VoteResult is what a committed vote produced: the stored vote, the new
// aggregate, and whether the tally pushed the challenge into review.
type VoteResult struct {
	Vote         model.Vote  `json:"vote"`
	Tally        model.Tally `json:"tally"`
	Transitioned bool        `json:"transitioned"`
}

// CastVote upserts a voter's position on a challenge.
//
// The voter's weight is derived from their reputation and frozen into the
// vote; reputation changes after casting never alter past tallies. A
// re-vote before resolution replaces the prior vote, never duplicates it.
// Vote upsert, tally, and the review-threshold check all happen inside the
// challenge's update scope, so concurrent votes cannot lose updates and
// the threshold always sees a consistent snapshot.
func (e *Engine) CastVote(ctx context.Context, challengeID, voterID string, voteType model.VoteType, reasoning string) (VoteResult, error) {
	if _, err := model.ParseVoteType(string(voteType)); err != nil {
		return VoteResult{}, err
	}

	// Weight lookup happens outside the update scope: it only reads the
	// reputation store, and the weight is frozen at cast time regardless.
	weight, err := e.calc.WeightFor(voterID)
	if err != nil {
		return VoteResult{}, fmt.Errorf("vote weight for %s: %w", voterID, err)
	}

	var (
		result    VoteResult
		oldStatus model.ChallengeStatus
	)
	err = e.store.UpdateChallenge(challengeID, func(ch *model.Challenge) error {
		if ch.Status.Terminal() {
			return fmt.Errorf("challenge %s is %s: %w", challengeID, ch.Status, ErrChallengeClosed)
		}
		if err := e.votePolicy(ch, voterID); err != nil {
			return err
		}

		vote := model.Vote{
			ChallengeID: challengeID,
			VoterID:     voterID,
			Type:        voteType,
			Weight:      weight,
			Reasoning:   reasoning,
			CastAt:      time.Now().UTC(),
		}
		if ch.Votes == nil {
			ch.Votes = make(map[string]model.Vote)
		}
		ch.Votes[voterID] = vote

		tally := ch.Tally()
		oldStatus = ch.Status
		transitioned := false
		if ch.Status == model.StatusOpen && meetsReviewThreshold(tally, e.policy.MinParticipants, e.policy.ReviewThreshold) {
			ch.Status = model.StatusUnderReview
			transitioned = true
		}
		result = VoteResult{Vote: vote, Tally: tally, Transitioned: transitioned}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}

	votesCast.WithLabelValues(string(voteType)).Inc()
	now := time.Now().UTC()
	e.bus.Publish(model.VoteCast{ChallengeID: challengeID, VoterID: voterID, NewTally: result.Tally, At: now})
	if result.Transitioned {
		statusTransitions.WithLabelValues(string(model.StatusUnderReview)).Inc()
		e.bus.Publish(model.ChallengeStatusChanged{
			ChallengeID: challengeID,
			OldStatus:   oldStatus,
			NewStatus:   model.StatusUnderReview,
			At:          now,
		})
		e.logger.Info("challenge entered review",
			zap.String("challenge_id", challengeID),
			zap.Float64("uphold_weight", result.Tally.UpholdWeight),
			zap.Float64("dismiss_weight", result.Tally.DismissWeight))
	}

	if err := e.updater.RecordParticipation(voterID); err != nil {
		// Participation is a side score; a failed bump never voids the vote.
		e.logger.Warn("participation update failed", zap.String("voter_id", voterID), zap.Error(err))
	}
	return result, nil
}

// meetsReviewThreshold applies the OPEN -> UNDER_REVIEW trigger: enough
// participants and a strict weighted majority at or above the threshold.
// Ties never trigger a transition.
func meetsReviewThreshold(t model.Tally, minParticipants int, reviewThreshold float64) bool {
	if t.TotalParticipants < minParticipants {
		return false
	}
	_, share := t.Leading()
	return share >= reviewThreshold && share > 0
}
