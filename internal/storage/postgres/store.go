package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityCore/internal/model"
)

// Store provides Postgres persistence for engine events and replay state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEventBatch inserts or updates event records keyed by contract and
// sequence, so replays are idempotent.
func (s *Store) PutEventBatch(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		batch.Queue(`
			INSERT INTO engine_events (
				contract, sequence, block, event, data, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (contract, sequence)
			DO UPDATE SET
				block = EXCLUDED.block,
				event = EXCLUDED.event,
				data = EXCLUDED.data,
				updated_at = now()
		`,
			event.Contract,
			int64(event.Sequence),
			int64(event.Block),
			event.Event,
			data,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last applied operation sequence for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq uint64
	row := s.pool.QueryRow(ctx, `SELECT last_applied_sequence FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}

// SaveState upserts the last applied operation sequence for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_applied_sequence, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_applied_sequence = EXCLUDED.last_applied_sequence, updated_at = now()
	`, name, seq)
	return err
}
