package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/model"
)

// ResolveChallenge applies the exactly-once verdict on a challenge under
// review.
//
// Outcome "upheld" moves the challenge to RESOLVED, records a negative
// veracity-impact delta scaled by the evaluator's confidence, applies it to
// the target, and propagates the change. Outcome "dismissed" moves it to
// DISMISSED with no impact; an audit entry is still appended. A second
// resolution attempt fails with ErrAlreadyResolved and leaves the first
// verdict untouched.
func (e *Engine) ResolveChallenge(ctx context.Context, challengeID string, outcome model.ResolutionOutcome, rationale string, confidence float64, evaluatorID string) (model.Challenge, error) {
	if _, err := model.ParseResolutionOutcome(string(outcome)); err != nil {
		return model.Challenge{}, err
	}
	if confidence < 0 || confidence > 1 {
		return model.Challenge{}, fmt.Errorf("resolution confidence %v: %w", confidence, ErrInvalidScore)
	}

	var (
		resolved  model.Challenge
		oldStatus model.ChallengeStatus
	)
	err := e.store.UpdateChallenge(challengeID, func(ch *model.Challenge) error {
		switch {
		case ch.Status == model.StatusResolved || ch.Status == model.StatusDismissed:
			return fmt.Errorf("challenge %s: %w", challengeID, ErrAlreadyResolved)
		case ch.Status.Terminal():
			return fmt.Errorf("challenge %s is %s: %w", challengeID, ch.Status, ErrChallengeClosed)
		case ch.Status != model.StatusUnderReview:
			return fmt.Errorf("challenge %s is %s, not %s: %w", challengeID, ch.Status, model.StatusUnderReview, ErrInvalidTransition)
		}

		oldStatus = ch.Status
		impact := 0.0
		newStatus := model.StatusDismissed
		if outcome == model.OutcomeUpheld {
			newStatus = model.StatusResolved
			impact = -confidence * e.policy.MaxVeracityImpact
		}
		ch.Status = newStatus
		ch.Resolution = &model.Resolution{
			Outcome:        outcome,
			Rationale:      rationale,
			Confidence:     confidence,
			VeracityImpact: impact,
			EvaluatorID:    evaluatorID,
			ResolvedAt:     time.Now().UTC(),
		}
		resolved = *ch
		return nil
	})
	if err != nil {
		return model.Challenge{}, err
	}

	statusTransitions.WithLabelValues(string(resolved.Status)).Inc()
	e.bus.Publish(model.ChallengeStatusChanged{
		ChallengeID: challengeID,
		OldStatus:   oldStatus,
		NewStatus:   resolved.Status,
		At:          resolved.Resolution.ResolvedAt,
	})
	e.logger.Info("challenge resolved",
		zap.String("challenge_id", challengeID),
		zap.String("outcome", string(outcome)),
		zap.Float64("impact", resolved.Resolution.VeracityImpact))

	// Reputation moves strictly after the resolution commit and never
	// re-weights votes already cast.
	if err := e.updater.ApplyResolution(resolved); err != nil {
		e.logger.Warn("reputation update failed", zap.String("challenge_id", challengeID), zap.Error(err))
	}

	if outcome == model.OutcomeUpheld {
		if err := e.applyImpact(ctx, resolved); err != nil {
			return resolved, err
		}
	} else if err := e.auditDismissal(resolved); err != nil {
		return resolved, err
	}
	return resolved, nil
}

// applyImpact writes the veracity delta to the resolved challenge's target
// and propagates. The resolution itself is already committed; a propagation
// failure surfaces to the caller and may be retried without re-resolving.
func (e *Engine) applyImpact(ctx context.Context, ch model.Challenge) error {
	impact := ch.Resolution.VeracityImpact
	rootID := ch.TargetID

	switch ch.TargetKind {
	case model.TargetEdge:
		edge, err := e.store.GetEdge(ch.TargetID)
		if err != nil {
			return err
		}
		rootID = edge.SourceID
		err = e.store.UpdateEdge(ch.TargetID, func(se *model.SupportEdge) error {
			se.Weight = clamp01(se.Weight + impact)
			return nil
		})
		if err != nil {
			return fmt.Errorf("apply impact to edge %s: %w", ch.TargetID, err)
		}
	default:
		err := e.store.UpdateClaim(ch.TargetID, func(c *model.Claim) error {
			c.EvidenceScore = clamp01(c.EvidenceScore + impact)
			c.UpdatedAt = time.Now().UTC()
			return nil
		})
		if err != nil {
			return fmt.Errorf("apply impact to claim %s: %w", ch.TargetID, err)
		}
	}

	if _, err := e.Recompute(ctx, rootID, model.HistoryChallengeResolved); err != nil {
		return fmt.Errorf("propagate resolution of challenge %s: %w", ch.ID, err)
	}
	return nil
}

// auditDismissal appends the consensus_changed entry a dismissed verdict
// still owes the audit log
func (e *Engine) auditDismissal(ch model.Challenge) error {
	claimID := ch.TargetID
	if ch.TargetKind == model.TargetEdge {
		edge, err := e.store.GetEdge(ch.TargetID)
		if err != nil {
			return err
		}
		claimID = edge.SourceID
	}
	claim, err := e.store.GetClaim(claimID)
	if err != nil {
		return err
	}
	return e.appendHistory(claimID, claim.Confidence, 0, model.HistoryConsensusChanged,
		fmt.Sprintf("challenge %s dismissed", ch.ID))
}

// WithdrawChallenge lets the creator retract an OPEN challenge before any
// vote has been cast
func (e *Engine) WithdrawChallenge(ctx context.Context, challengeID, creatorID string) (model.Challenge, error) {
	var (
		withdrawn model.Challenge
		oldStatus model.ChallengeStatus
	)
	err := e.store.UpdateChallenge(challengeID, func(ch *model.Challenge) error {
		if ch.Status.Terminal() {
			return fmt.Errorf("challenge %s is %s: %w", challengeID, ch.Status, ErrChallengeClosed)
		}
		if ch.Status != model.StatusOpen {
			return fmt.Errorf("challenge %s is %s: %w", challengeID, ch.Status, ErrWithdrawForbidden)
		}
		if ch.CreatorID != creatorID {
			return fmt.Errorf("user %s is not the creator: %w", creatorID, ErrWithdrawForbidden)
		}
		if len(ch.Votes) > 0 {
			return fmt.Errorf("challenge %s already has votes: %w", challengeID, ErrWithdrawForbidden)
		}
		oldStatus = ch.Status
		ch.Status = model.StatusWithdrawn
		withdrawn = *ch
		return nil
	})
	if err != nil {
		return model.Challenge{}, err
	}

	statusTransitions.WithLabelValues(string(model.StatusWithdrawn)).Inc()
	e.bus.Publish(model.ChallengeStatusChanged{
		ChallengeID: challengeID,
		OldStatus:   oldStatus,
		NewStatus:   model.StatusWithdrawn,
		At:          time.Now().UTC(),
	})
	e.logger.Info("challenge withdrawn", zap.String("challenge_id", challengeID))
	return withdrawn, nil
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
