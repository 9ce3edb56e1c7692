package models

import "time"

// RateLimitRecord is one permitted action occurrence. Records are immutable
// once written; denied attempts never produce a record.
type RateLimitRecord struct {
	EventBucket int       `db:"event_bucket"`
	UserID      string    `db:"user_id"`
	Action      string    `db:"action"`
	EventID     string    `db:"event_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// ThrottleDecision is the outcome of a single rate-limit check, kept for the
// decision audit pipeline.
type ThrottleDecision struct {
	DecisionID string    `json:"decision_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	Allowed    bool      `json:"allowed"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	DecidedAt  time.Time `json:"decided_at"`
}
