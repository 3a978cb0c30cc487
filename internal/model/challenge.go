package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidChallengeType is returned when an inbound challenge type string is
// not one of the closed enumeration. Unknown values are rejected at the
// boundary instead of propagating loosely-typed strings into the engine.
var ErrInvalidChallengeType = errors.New("invalid challenge type")

// ChallengeType classifies the grounds for disputing a claim or edge
type ChallengeType string

const (
	ChallengeEvidenceQuality   ChallengeType = "evidence_quality"   // The cited evidence is weak or misread
	ChallengeLogicalFallacy    ChallengeType = "logical_fallacy"    // The reasoning from evidence to claim is flawed
	ChallengeSourceCredibility ChallengeType = "source_credibility" // The underlying source is not trustworthy
	ChallengeOutdatedInfo      ChallengeType = "outdated_info"      // The claim rests on superseded information
	ChallengeFactualError      ChallengeType = "factual_error"      // The claim states something demonstrably wrong
)

// ChallengeTypes lists the closed enumeration in a stable order
func ChallengeTypes() []ChallengeType {
	return []ChallengeType{
		ChallengeEvidenceQuality,
		ChallengeLogicalFallacy,
		ChallengeSourceCredibility,
		ChallengeOutdatedInfo,
		ChallengeFactualError,
	}
}

// ParseChallengeType validates an inbound type string against the enumeration
func ParseChallengeType(s string) (ChallengeType, error) {
	for _, t := range ChallengeTypes() {
		if s == string(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChallengeType, s)
}

// ChallengeStatus is the lifecycle state of a challenge
type ChallengeStatus string

const (
	StatusOpen        ChallengeStatus = "OPEN"
	StatusUnderReview ChallengeStatus = "UNDER_REVIEW"
	StatusResolved    ChallengeStatus = "RESOLVED"
	StatusDismissed   ChallengeStatus = "DISMISSED"
	StatusWithdrawn   ChallengeStatus = "WITHDRAWN"
)

// Terminal reports whether the status permits no further transitions
func (s ChallengeStatus) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed || s == StatusWithdrawn
}

// ResolutionOutcome is the verdict carried by a resolution action
type ResolutionOutcome string

const (
	OutcomeUpheld    ResolutionOutcome = "upheld"
	OutcomeDismissed ResolutionOutcome = "dismissed"
)

// ParseResolutionOutcome validates an inbound outcome string
func ParseResolutionOutcome(s string) (ResolutionOutcome, error) {
	switch ResolutionOutcome(s) {
	case OutcomeUpheld, OutcomeDismissed:
		return ResolutionOutcome(s), nil
	}
	return "", fmt.Errorf("invalid resolution outcome: %q", s)
}

// Challenge is a formal dispute of a claim's or edge's credibility.
//
// Votes are embedded so that vote upsert, tally, and the review-threshold
// check happen inside a single per-challenge update scope. A challenge
// becomes immutable once its status is terminal.
type Challenge struct {
	ID         string          `json:"id"`
	TargetID   string          `json:"target_id"` // Claim or edge under dispute
	TargetKind TargetKind      `json:"target_kind"`
	Type       ChallengeType   `json:"type"`
	Evidence   string          `json:"evidence"`  // Supporting material for the dispute
	Reasoning  string          `json:"reasoning"` // Why the challenger believes the target is wrong
	CreatorID  string          `json:"creator_id"`
	Status     ChallengeStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`

	// Active votes keyed by voter; a re-vote replaces the prior entry.
	Votes map[string]Vote `json:"votes,omitempty"`

	// Resolution fields; nil until the challenge reaches a terminal verdict.
	Resolution *Resolution `json:"resolution,omitempty"`
}

// TargetKind says whether a challenge disputes a claim or a support edge
type TargetKind string

const (
	TargetClaim TargetKind = "claim"
	TargetEdge  TargetKind = "edge"
)

// Resolution records the exactly-once verdict on a challenge
type Resolution struct {
	Outcome        ResolutionOutcome `json:"outcome"`
	Rationale      string            `json:"rationale"`
	Confidence     float64           `json:"confidence"`      // Evaluator's confidence in the verdict [0,1]
	VeracityImpact float64           `json:"veracity_impact"` // Signed delta applied to the target on upheld
	EvaluatorID    string            `json:"evaluator_id"`
	ResolvedAt     time.Time         `json:"resolved_at"`
}

// VoteType is the side a voter takes on a challenge
type VoteType string

const (
	VoteUphold  VoteType = "UPHOLD"
	VoteDismiss VoteType = "DISMISS"
)

// ParseVoteType validates an inbound vote type string
func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(s) {
	case VoteUphold, VoteDismiss:
		return VoteType(s), nil
	}
	return "", fmt.Errorf("invalid vote type: %q", s)
}

// Vote is one voter's current position on a challenge. Weight is frozen at
// cast time; later reputation changes never alter past tallies.
type Vote struct {
	ChallengeID string    `json:"challenge_id"`
	VoterID     string    `json:"voter_id"`
	Type        VoteType  `json:"type"`
	Weight      float64   `json:"weight"`
	Reasoning   string    `json:"reasoning,omitempty"`
	CastAt      time.Time `json:"cast_at"`
}

// Tally is the weighted aggregate of all currently active votes
type Tally struct {
	UpholdWeight      float64 `json:"uphold_weight"`
	DismissWeight     float64 `json:"dismiss_weight"`
	TotalParticipants int     `json:"total_participants"`
}

// Tally sums the active votes. Replaced votes are gone from the map, so the
// aggregate always equals the sum of currently active weights.
func (c *Challenge) Tally() Tally {
	var t Tally
	for _, v := range c.Votes {
		switch v.Type {
		case VoteUphold:
			t.UpholdWeight += v.Weight
		case VoteDismiss:
			t.DismissWeight += v.Weight
		}
		t.TotalParticipants++
	}
	return t
}

// Leading returns the strictly greater side's share of the total weight.
// A tie returns 0 share: neither side is leading.
func (t Tally) Leading() (VoteType, float64) {
	total := t.UpholdWeight + t.DismissWeight
	if total <= 0 || t.UpholdWeight == t.DismissWeight {
		return "", 0
	}
	if t.UpholdWeight > t.DismissWeight {
		return VoteUphold, t.UpholdWeight / total
	}
	return VoteDismiss, t.DismissWeight / total
}
