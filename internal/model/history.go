package model

import "time"

// HistoryEventType says what kind of event produced a history entry
type HistoryEventType string

const (
	HistoryEvidenceAdded     HistoryEventType = "evidence_added"
	HistoryChallengeResolved HistoryEventType = "challenge_resolved"
	HistoryConsensusChanged  HistoryEventType = "consensus_changed"
	HistoryManualUpdate      HistoryEventType = "manual_update"
)

// VeracityHistoryEntry is one record in the append-only audit log of a
// claim's score changes. Entries are never mutated or deleted.
type VeracityHistoryEntry struct {
	ID        string           `json:"id"`
	ClaimID   string           `json:"claim_id"`
	Score     float64          `json:"score"`
	Delta     float64          `json:"delta"`
	Reason    string           `json:"reason"`
	EventType HistoryEventType `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
}
