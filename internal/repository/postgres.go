package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"shopadvisor/internal/model"
)

// PostgresStore persists conversation state in PostgreSQL. Per-key
// serialization comes from a row lock held for the duration of the
// read-modify-write transaction, so concurrent turns on the same conversation
// queue up while unrelated conversations proceed in parallel.
type PostgresStore struct {
	db *sqlx.DB
}

const stateSchema = `
CREATE TABLE IF NOT EXISTS conversation_states (
	conversation_id       TEXT PRIMARY KEY,
	pending_clarification BOOLEAN NOT NULL DEFAULT FALSE,
	last_constraints      JSONB,
	turn_count            INTEGER NOT NULL DEFAULT 0,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects and ensures the state table exists.
func NewPostgresStore(dsn string, maxConn, maxIdleConn int) (*PostgresStore, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure state schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type stateRow struct {
	ConversationID       string         `db:"conversation_id"`
	PendingClarification bool           `db:"pending_clarification"`
	LastConstraints      sql.NullString `db:"last_constraints"`
	TurnCount            int            `db:"turn_count"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r *stateRow) toModel() (*model.ConversationState, error) {
	state := &model.ConversationState{
		ConversationID:       r.ConversationID,
		PendingClarification: r.PendingClarification,
		TurnCount:            r.TurnCount,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.LastConstraints.Valid && r.LastConstraints.String != "" {
		var cs model.ConstraintSet
		if err := json.Unmarshal([]byte(r.LastConstraints.String), &cs); err != nil {
			return nil, fmt.Errorf("decode stored constraints: %w", err)
		}
		state.LastConstraints = &cs
	}
	return state, nil
}

func (s *PostgresStore) Get(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	var row stateRow
	err := s.db.GetContext(ctx, &row,
		`SELECT conversation_id, pending_clarification, last_constraints, turn_count, updated_at
		 FROM conversation_states WHERE conversation_id = $1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation state: %w", err)
	}
	return row.toModel()
}

func (s *PostgresStore) Update(ctx context.Context, conversationID string, mutate func(*model.ConversationState) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state update: %w", err)
	}
	defer tx.Rollback()

	var row stateRow
	state := &model.ConversationState{ConversationID: conversationID}
	err = tx.GetContext(ctx, &row,
		`SELECT conversation_id, pending_clarification, last_constraints, turn_count, updated_at
		 FROM conversation_states WHERE conversation_id = $1 FOR UPDATE`, conversationID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first turn for this conversation
	case err != nil:
		return fmt.Errorf("lock conversation state: %w", err)
	default:
		if state, err = row.toModel(); err != nil {
			return err
		}
	}

	if err := mutate(state); err != nil {
		return err
	}

	var constraintsJSON interface{}
	if state.LastConstraints != nil {
		raw, err := json.Marshal(state.LastConstraints)
		if err != nil {
			return fmt.Errorf("encode constraints: %w", err)
		}
		constraintsJSON = string(raw)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_states (conversation_id, pending_clarification, last_constraints, turn_count, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (conversation_id) DO UPDATE SET
			pending_clarification = EXCLUDED.pending_clarification,
			last_constraints      = EXCLUDED.last_constraints,
			turn_count            = EXCLUDED.turn_count,
			updated_at            = now()`,
		conversationID, state.PendingClarification, constraintsJSON, state.TurnCount)
	if err != nil {
		return fmt.Errorf("persist conversation state: %w", err)
	}

	return tx.Commit()
}
