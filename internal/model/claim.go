package model

import "time"

// Claim represents an assertion in the investigation graph
type Claim struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`                 // The claim text itself
	Level         ClaimLevel `json:"level"`                // verified claims are immutable
	EvidenceScore float64    `json:"evidence_score"`       // Evidence-derived base confidence [0,1]
	Confidence    float64    `json:"confidence"`           // Computed confidence [0,1], never above EvidenceScore
	CreatedBy     string     `json:"created_by,omitempty"` // User who added the claim
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ClaimLevel distinguishes immutable verified claims from ordinary mutable ones
type ClaimLevel string

const (
	LevelStandard ClaimLevel = "standard" // Confidence recomputed by propagation
	LevelVerified ClaimLevel = "verified" // Confidence fixed; never touched by propagation
)

// Verified reports whether the claim's scores are frozen
func (c *Claim) Verified() bool {
	return c.Level == LevelVerified
}

// SupportEdge is a directed relationship: the target claim supports the source.
// The target's confidence, scaled by Weight, bounds the source's confidence
// (weakest-link rule).
type SupportEdge struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Weight    float64   `json:"weight"` // How strongly the target supports the source [0,1]
	CreatedAt time.Time `json:"created_at"`
}
