// Package sqlite implements storage over a local SQLite file. It is the
// default backend for development and single-box deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/models"
)

type Adapter struct {
	db *sql.DB
}

// NewAdapter opens (creating if needed) the SQLite database at path and runs
// schema migration.
func NewAdapter(path string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Adapter{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return a, nil
}

func (a *Adapter) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_confirmations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		fact_type TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT NOT NULL,
		context TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_confirmations_user_status
		ON pending_confirmations(user_id, status, created_at);

	CREATE TABLE IF NOT EXISTS user_profile_facts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		fact_type TEXT NOT NULL,
		fact_value TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		source TEXT NOT NULL,
		is_user_verified INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, fact_type)
	);
	`
	_, err := a.db.Exec(schema)
	return err
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) CreateConfirmation(ctx context.Context, c *models.Confirmation) error {
	c.ID = uuid.NewString()
	c.Status = models.StatusPending
	c.CreatedAt = time.Now().UTC()

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO pending_confirmations
			(id, user_id, fact_type, old_value, new_value, context, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.FactType, c.OldValue, c.NewValue, c.Context, c.Status, c.CreatedAt,
	)
	if err != nil {
		return errors.InternalError("failed to create confirmation", err)
	}
	return nil
}

func (a *Adapter) ListConfirmations(ctx context.Context, userID, status string, limit int) ([]*models.Confirmation, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, fact_type, old_value, new_value, context, status, created_at, resolved_at
		FROM pending_confirmations
		WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, status, limit,
	)
	if err != nil {
		return nil, errors.InternalError("failed to list confirmations", err)
	}
	defer rows.Close()

	var confirmations []*models.Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, errors.InternalError("failed to scan confirmation", err)
		}
		confirmations = append(confirmations, c)
	}
	return confirmations, rows.Err()
}

func (a *Adapter) GetPendingConfirmation(ctx context.Context, id, userID string) (*models.Confirmation, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, user_id, fact_type, old_value, new_value, context, status, created_at, resolved_at
		FROM pending_confirmations
		WHERE id = ? AND user_id = ? AND status = ?`,
		id, userID, models.StatusPending,
	)

	c, err := scanConfirmation(row)
	if err == sql.ErrNoRows {
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
	result, err := a.db.ExecContext(ctx, `
		UPDATE pending_confirmations
		SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), id, models.StatusPending,
	)
	if err != nil {
		return errors.InternalError("failed to resolve confirmation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.InternalError("failed to resolve confirmation", err)
	}
	if affected == 0 {
		return errors.NotFoundError("confirmation")
	}
	return nil
}

func (a *Adapter) UpsertUserFact(ctx context.Context, userID, factType, value string) error {
	factValue, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return errors.InternalError("failed to encode fact value", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO user_profile_facts
			(id, user_id, fact_type, fact_value, confidence, source, is_user_verified, updated_at)
		VALUES (?, ?, ?, ?, 1.0, 'hitl_confirmation', 1, ?)
		ON CONFLICT(user_id, fact_type) DO UPDATE SET
			fact_value = excluded.fact_value,
			is_user_verified = 1,
			updated_at = excluded.updated_at`,
		uuid.NewString(), userID, factType, string(factValue), time.Now().UTC(),
	)
	if err != nil {
		return errors.InternalError("failed to upsert user fact", err)
	}
	return nil
}

func (a *Adapter) GetUserFacts(ctx context.Context, userID string) ([]*models.UserFact, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, fact_type, fact_value, confidence, source, is_user_verified, updated_at
		FROM user_profile_facts
		WHERE user_id = ?
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
		if err := rows.Scan(&f.ID, &f.UserID, &f.FactType, &f.FactValue,
			&f.Confidence, &f.Source, &f.IsUserVerified, &f.UpdatedAt); err != nil {
			return nil, errors.InternalError("failed to scan user fact", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConfirmation(s scanner) (*models.Confirmation, error) {
	c := &models.Confirmation{}
	var oldValue, context sql.NullString
	var resolvedAt sql.NullTime

	err := s.Scan(&c.ID, &c.UserID, &c.FactType, &oldValue, &c.NewValue,
		&context, &c.Status, &c.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if oldValue.Valid {
		c.OldValue = &oldValue.String
	}
	if context.Valid {
		c.Context = &context.String
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return c, nil
}
