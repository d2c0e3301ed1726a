// Package models defines the data types shared across storage, handlers and
// the event broadcaster.
package models

import "time"

// Confirmation statuses. A confirmation is created pending and resolved
// exactly once to accepted or rejected.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Confirmation represents a fact extracted from a conversation that requires
// human approval before being written to a user's profile.
type Confirmation struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	FactType   string     `json:"fact_type"`
	OldValue   *string    `json:"old_value"`
	NewValue   string     `json:"new_value"`
	Context    *string    `json:"context"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// UserFact is a confirmed profile fact. Accepted confirmations are upserted
// into the user's fact set with full confidence and a user-verified flag.
type UserFact struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	FactType       string    `json:"fact_type"`
	FactValue      string    `json:"fact_value"` // JSON document, {"value": ...}
	Confidence     float64   `json:"confidence"`
	Source         string    `json:"source"`
	IsUserVerified bool      `json:"is_user_verified"`
	UpdatedAt      time.Time `json:"updated_at"`
}
