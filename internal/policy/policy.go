// Package policy holds the configurable consensus parameters consumed by the
// reputation calculator, vote aggregator, lifecycle, and propagator. It is
// pure configuration with validated bounds; no business logic lives here.
package policy

import (
	"errors"
	"fmt"

	"github.com/truthgraph/veracity/internal/model"
)

// ErrInvalidPolicy is returned when a policy fails bounds validation
var ErrInvalidPolicy = errors.New("invalid consensus policy")

// Policy is the full set of consensus parameters
type Policy struct {
	// MinParticipants is the minimum number of distinct voters before the
	// review threshold is even considered.
	MinParticipants int `json:"min_participants" yaml:"min_participants" mapstructure:"min_participants"`

	// ReviewThreshold is the weighted-majority share (0,1] that moves an
	// OPEN challenge to UNDER_REVIEW.
	ReviewThreshold float64 `json:"review_threshold" yaml:"review_threshold" mapstructure:"review_threshold"`

	// SubScoreWeights combine the four reputation sub-scores into the
	// composite. They must sum to 1.
	SubScoreWeights model.SubScoreWeights `json:"sub_score_weights" yaml:"sub_score_weights" mapstructure:"sub_score_weights"`

	// MinVoteWeight and MaxVoteWeight clamp the derived vote weight so no
	// participant casts a zero-weight vote and none dominates a tally alone.
	MinVoteWeight float64 `json:"min_vote_weight" yaml:"min_vote_weight" mapstructure:"min_vote_weight"`
	MaxVoteWeight float64 `json:"max_vote_weight" yaml:"max_vote_weight" mapstructure:"max_vote_weight"`

	// MaxVeracityImpact scales an upheld resolution's confidence into the
	// signed delta applied to the target's evidence score or edge weight.
	MaxVeracityImpact float64 `json:"max_veracity_impact" yaml:"max_veracity_impact" mapstructure:"max_veracity_impact"`

	// PropagationBudget caps the number of claims visited in one
	// recomputation; exceeding it aborts the pass instead of running
	// unbounded.
	PropagationBudget int `json:"propagation_budget" yaml:"propagation_budget" mapstructure:"propagation_budget"`

	// ChallengeTypes is the closed enumeration accepted at the inbound
	// boundary.
	ChallengeTypes []model.ChallengeType `json:"challenge_types" yaml:"challenge_types" mapstructure:"challenge_types"`
}

// Default returns the standard policy
func Default() Policy {
	return Policy{
		MinParticipants: 3,
		ReviewThreshold: 0.6,
		SubScoreWeights: model.SubScoreWeights{
			EvidenceQuality: 0.35,
			VoteAccuracy:    0.30,
			Participation:   0.15,
			CommunityTrust:  0.20,
		},
		MinVoteWeight:     0.05,
		MaxVoteWeight:     1.0,
		MaxVeracityImpact: 0.3,
		PropagationBudget: 10000,
		ChallengeTypes:    model.ChallengeTypes(),
	}
}

// New validates p and returns it, or ErrInvalidPolicy describing the first
// violated bound
func New(p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks every bound a usable policy must satisfy
func (p Policy) Validate() error {
	if p.MinParticipants < 1 {
		return fmt.Errorf("%w: min_participants must be >= 1, got %d", ErrInvalidPolicy, p.MinParticipants)
	}
	if p.ReviewThreshold <= 0 || p.ReviewThreshold > 1 {
		return fmt.Errorf("%w: review_threshold must be in (0,1], got %v", ErrInvalidPolicy, p.ReviewThreshold)
	}
	if p.MinVoteWeight <= 0 || p.MinVoteWeight > 1 {
		return fmt.Errorf("%w: min_vote_weight must be in (0,1], got %v", ErrInvalidPolicy, p.MinVoteWeight)
	}
	if p.MaxVoteWeight <= 0 || p.MaxVoteWeight > 1 {
		return fmt.Errorf("%w: max_vote_weight must be in (0,1], got %v", ErrInvalidPolicy, p.MaxVoteWeight)
	}
	if p.MinVoteWeight > p.MaxVoteWeight {
		return fmt.Errorf("%w: min_vote_weight %v exceeds max_vote_weight %v", ErrInvalidPolicy, p.MinVoteWeight, p.MaxVoteWeight)
	}
	if p.MaxVeracityImpact <= 0 || p.MaxVeracityImpact > 1 {
		return fmt.Errorf("%w: max_veracity_impact must be in (0,1], got %v", ErrInvalidPolicy, p.MaxVeracityImpact)
	}
	if p.PropagationBudget < 1 {
		return fmt.Errorf("%w: propagation_budget must be >= 1, got %d", ErrInvalidPolicy, p.PropagationBudget)
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"evidence_quality", p.SubScoreWeights.EvidenceQuality},
		{"vote_accuracy", p.SubScoreWeights.VoteAccuracy},
		{"participation", p.SubScoreWeights.Participation},
		{"community_trust", p.SubScoreWeights.CommunityTrust},
	} {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("%w: sub-score weight %s must be in [0,1], got %v", ErrInvalidPolicy, w.name, w.value)
		}
	}
	if sum := p.SubScoreWeights.Sum(); sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("%w: sub-score weights must sum to 1, got %v", ErrInvalidPolicy, sum)
	}
	if len(p.ChallengeTypes) == 0 {
		return fmt.Errorf("%w: at least one challenge type required", ErrInvalidPolicy)
	}
	return nil
}

// AllowsType reports whether t is in the enumerated challenge types
func (p Policy) AllowsType(t model.ChallengeType) bool {
	for _, ct := range p.ChallengeTypes {
		if ct == t {
			return true
		}
	}
	return false
}
