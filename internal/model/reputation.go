package model

import "time"

// UserReputation holds the four sub-scores that determine a user's vote
// weight. Sub-scores live in [0,1]; the composite is reported on a 0-100
// scale. Sub-scores are adjusted asynchronously by challenge outcomes the
// user participated in, never mid-vote.
type UserReputation struct {
	UserID          string    `json:"user_id"`
	EvidenceQuality float64   `json:"evidence_quality"` // Quality of challenges the user created
	VoteAccuracy    float64   `json:"vote_accuracy"`    // How often the user voted with the eventual outcome
	Participation   float64   `json:"participation"`    // Volume of engagement
	CommunityTrust  float64   `json:"community_trust"`  // Endorsements from other users
	UpdatedAt       time.Time `json:"updated_at"`
}

// SubScoreWeights are the policy weights combining the four sub-scores into
// the composite. They must sum to 1.
type SubScoreWeights struct {
	EvidenceQuality float64 `json:"evidence_quality" yaml:"evidence_quality" mapstructure:"evidence_quality"`
	VoteAccuracy    float64 `json:"vote_accuracy" yaml:"vote_accuracy" mapstructure:"vote_accuracy"`
	Participation   float64 `json:"participation" yaml:"participation" mapstructure:"participation"`
	CommunityTrust  float64 `json:"community_trust" yaml:"community_trust" mapstructure:"community_trust"`
}

// Sum returns the total of the four weights
func (w SubScoreWeights) Sum() float64 {
	return w.EvidenceQuality + w.VoteAccuracy + w.Participation + w.CommunityTrust
}

// Composite combines the sub-scores into a 0-100 score using the given
// policy weights
func (r UserReputation) Composite(w SubScoreWeights) float64 {
	raw := r.EvidenceQuality*w.EvidenceQuality +
		r.VoteAccuracy*w.VoteAccuracy +
		r.Participation*w.Participation +
		r.CommunityTrust*w.CommunityTrust
	return raw * 100
}
