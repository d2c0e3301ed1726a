// Package storage persists pending confirmations and confirmed profile
// facts. Two adapters implement the interface: PostgreSQL for production and
// SQLite for local development.
package storage

import (
	"context"

	"quest-gateway/internal/models"
)

type Storage interface {
	// Connection management
	Close() error
	Health() error

	// Confirmations
	//
	// CreateConfirmation inserts a new pending confirmation. The adapter
	// assigns the ID, status and creation timestamp on the passed record.
	CreateConfirmation(ctx context.Context, confirmation *models.Confirmation) error

	// ListConfirmations returns the user's confirmations with the given
	// status, newest first, capped at limit.
	ListConfirmations(ctx context.Context, userID, status string, limit int) ([]*models.Confirmation, error)

	// GetPendingConfirmation returns the confirmation only when it belongs to
	// userID and is still pending.
	GetPendingConfirmation(ctx context.Context, id, userID string) (*models.Confirmation, error)

	// ResolveConfirmation moves a pending confirmation to a terminal status
	// (accepted or rejected) and stamps the resolution time. A confirmation
	// that is not pending is never touched; resolving one reports not found.
	ResolveConfirmation(ctx context.Context, id, status string) error

	// Profile facts
	//
	// UpsertUserFact writes an accepted fact to the user's profile, marking
	// it user-verified with full confidence. An existing fact of the same
	// type is overwritten.
	UpsertUserFact(ctx context.Context, userID, factType, value string) error

	// GetUserFacts returns every confirmed fact for the user.
	GetUserFacts(ctx context.Context, userID string) ([]*models.UserFact, error)
}
