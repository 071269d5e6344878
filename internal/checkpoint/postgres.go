package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// PostgresStore persists checkpoints in a single table, one JSONB row per
// thread.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS conversation_checkpoints (
	thread_id  TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPostgresStore connects to Postgres, verifies the connection and ensures
// the checkpoint table exists.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("checkpoint: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, checkpointSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("checkpoint: migrate: %w", err)
	}

	log.Info().Msg("checkpoint: postgres store ready")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*models.ConversationState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM conversation_checkpoints WHERE thread_id = $1`,
		threadID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{ThreadID: threadID}
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", threadID, err)
	}

	state, err := decodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", threadID, err)
	}
	return state, nil
}

func (s *PostgresStore) Save(ctx context.Context, threadID string, state *models.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", threadID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_checkpoints (thread_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (thread_id) DO UPDATE SET state = $2, updated_at = now()`,
		threadID, raw,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", threadID, err)
	}
	return nil
}

func (s *PostgresStore) Healthy(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(pingCtx) == nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
