package engine

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrChallengeClosed is returned when voting on or transitioning a
	// challenge that already reached a terminal state.
	ErrChallengeClosed = errors.New("challenge is closed")

	// ErrAlreadyResolved is returned on a second resolution attempt.
	// Resolution is exactly-once; the first verdict's fields are never
	// overwritten.
	ErrAlreadyResolved = errors.New("challenge already resolved")

	// ErrSelfVoteForbidden is returned when the default vote policy rejects
	// the challenge creator voting on their own challenge.
	ErrSelfVoteForbidden = errors.New("creator cannot vote on own challenge")

	// ErrInvalidTransition is returned when a resolution is attempted on a
	// challenge that has not reached UNDER_REVIEW.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrWithdrawForbidden is returned when a withdrawal request violates
	// the rules: only the creator may withdraw, and only before any vote.
	ErrWithdrawForbidden = errors.New("withdrawal not permitted")

	// ErrVerifiedClaimImmutable is returned when an operation would mutate
	// a verified claim's scores.
	ErrVerifiedClaimImmutable = errors.New("verified claim is immutable")

	// ErrInvalidScore is returned when a score or weight falls outside [0,1].
	ErrInvalidScore = errors.New("score out of range [0,1]")

	// ErrPropagationBudgetExceeded is returned when a recomputation visits
	// more claims than the policy budget allows. Recoverable: the caller
	// may retry with a narrower scope. No scores are written.
	ErrPropagationBudgetExceeded = errors.New("propagation budget exceeded")

	// ErrPropagationCycleUnresolved is returned when propagation fails to
	// converge within the node-count bound. This indicates a bug in the
	// cycle guard, never a user error; prior scores are left intact.
	ErrPropagationCycleUnresolved = errors.New("propagation failed to converge")
)
