// Package postgres implements storage over PostgreSQL using pgx. This is the
// production backend, pointed at the shared Neon database.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/models"
)

type Adapter struct {
	pool *pgxpool.Pool
}

// NewAdapter connects to the database at connString and runs schema
// migration.
func NewAdapter(ctx context.Context, connString string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Adapter{pool: pool}
	if err := a.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return a, nil
}

func (a *Adapter) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_confirmations (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		fact_type TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT NOT NULL,
		context TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_confirmations_user_status
		ON pending_confirmations(user_id, status, created_at);

	CREATE TABLE IF NOT EXISTS user_profile_facts (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		fact_type TEXT NOT NULL,
		fact_value JSONB NOT NULL,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		source TEXT NOT NULL,
		is_user_verified BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, fact_type)
	);
	`
	_, err := a.pool.Exec(ctx, schema)
	return err
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

func (a *Adapter) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.pool.Ping(ctx)
}

func (a *Adapter) CreateConfirmation(ctx context.Context, c *models.Confirmation) error {
	c.ID = uuid.NewString()
	c.Status = models.StatusPending
	c.CreatedAt = time.Now().UTC()

	_, err := a.pool.Exec(ctx, `
		INSERT INTO pending_confirmations
			(id, user_id, fact_type, old_value, new_value, context, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.FactType, c.OldValue, c.NewValue, c.Context, c.Status, c.CreatedAt,
	)
	if err != nil {
		return errors.InternalError("failed to create confirmation", err)
	}
	return nil
}

func (a *Adapter) ListConfirmations(ctx context.Context, userID, status string, limit int) ([]*models.Confirmation, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, user_id, fact_type, old_value, new_value, context, status, created_at, resolved_at
		FROM pending_confirmations
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, status, limit,
	)
	if err != nil {
		return nil, errors.InternalError("failed to list confirmations", err)
	}
	defer rows.Close()

	var confirmations []*models.Confirmation
	for rows.Next() {
		c := &models.Confirmation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.FactType, &c.OldValue, &c.NewValue,
			&c.Context, &c.Status, &c.CreatedAt, &c.ResolvedAt); err != nil {
			return nil, errors.InternalError("failed to scan confirmation", err)
		}
		confirmations = append(confirmations, c)
	}
	return confirmations, rows.Err()
}

func (a *Adapter) GetPendingConfirmation(ctx context.Context, id, userID string) (*models.Confirmation, error) {
	c := &models.Confirmation{}
	err := a.pool.QueryRow(ctx, `
		SELECT id, user_id, fact_type, old_value, new_value, context, status, created_at, resolved_at
		FROM pending_confirmations
		WHERE id = $1 AND user_id = $2 AND status = $3`,
		id, userID, models.StatusPending,
	).Scan(&c.ID, &c.UserID, &c.FactType, &c.OldValue, &c.NewValue,
		&c.Context, &c.Status, &c.CreatedAt, &c.ResolvedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFoundError("confirmation")
	}
	if err != nil {
		return nil, errors.InternalError("failed to get confirmation", err)
	}
	return c, nil
}

func (a *Adapter) ResolveConfirmation(ctx context.Context, id, status string) error {
	if status != models.StatusAccepted && status != models.StatusRejected {
		return errors.ValidationError(fmt.Sprintf("invalid resolution status %q", status))
	}

	// The status guard enforces the one-way lifecycle: only pending rows
	// transition, and only once.
	tag, err := a.pool.Exec(ctx, `
		UPDATE pending_confirmations
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = $4`,
		status, time.Now().UTC(), id, models.StatusPending,
	)
	if err != nil {
		return errors.InternalError("failed to resolve confirmation", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError("confirmation")
	}
	return nil
}

func (a *Adapter) UpsertUserFact(ctx context.Context, userID, factType, value string) error {
	factValue, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return errors.InternalError("failed to encode fact value", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO user_profile_facts
			(id, user_id, fact_type, fact_value, confidence, source, is_user_verified, updated_at)
		VALUES ($1, $2, $3, $4, 1.0, 'hitl_confirmation', true, $5)
		ON CONFLICT (user_id, fact_type) DO UPDATE SET
			fact_value = EXCLUDED.fact_value,
			is_user_verified = true,
			updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), userID, factType, string(factValue), time.Now().UTC(),
	)
	if err != nil {
		return errors.InternalError("failed to upsert user fact", err)
	}
	return nil
}

func (a *Adapter) GetUserFacts(ctx context.Context, userID string) ([]*models.UserFact, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, user_id, fact_type, fact_value, confidence, source, is_user_verified, updated_at
		FROM user_profile_facts
		WHERE user_id = $1
		ORDER BY fact_type`,
		userID,
	)
	if err != nil {
		return nil, errors.InternalError("failed to list user facts", err)
	}
	defer rows.Close()

	var facts []*models.UserFact
	for rows.Next() {
		f := &models.UserFact{}
		var factValue []byte
		if err := rows.Scan(&f.ID, &f.UserID, &f.FactType, &factValue,
			&f.Confidence, &f.Source, &f.IsUserVerified, &f.UpdatedAt); err != nil {
			return nil, errors.InternalError("failed to scan user fact", err)
		}
		f.FactValue = string(factValue)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
