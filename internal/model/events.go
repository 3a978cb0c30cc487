package model

import "time"

// Event is an outbound notification published after a committed state
// change. Consumers (real-time sync, notification layers) subscribe through
// the event bus; the engine never blocks on them.
type Event interface {
	EventType() string
}

// ChallengeCreated announces a newly opened challenge
type ChallengeCreated struct {
	Challenge Challenge `json:"challenge"`
	At        time.Time `json:"at"`
}

func (ChallengeCreated) EventType() string { return "challenge_created" }

// VoteCast announces an updated tally after a committed vote
type VoteCast struct {
	ChallengeID string    `json:"challenge_id"`
	VoterID     string    `json:"voter_id"`
	NewTally    Tally     `json:"new_tally"`
	At          time.Time `json:"at"`
}

func (VoteCast) EventType() string { return "vote_cast" }

// ChallengeStatusChanged announces a lifecycle transition
type ChallengeStatusChanged struct {
	ChallengeID string          `json:"challenge_id"`
	OldStatus   ChallengeStatus `json:"old_status"`
	NewStatus   ChallengeStatus `json:"new_status"`
	At          time.Time       `json:"at"`
}

func (ChallengeStatusChanged) EventType() string { return "challenge_status_changed" }

// ConfidenceChanged announces a recomputed claim score
type ConfidenceChanged struct {
	ClaimID  string           `json:"claim_id"`
	OldScore float64          `json:"old_score"`
	NewScore float64          `json:"new_score"`
	Reason   HistoryEventType `json:"reason"`
	At       time.Time        `json:"at"`
}

func (ConfidenceChanged) EventType() string { return "confidence_changed" }
