package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-night-service/internal/domain"
)

// RecordStore keeps records as JSONB rows in session_records.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

const upsertRecord = `
INSERT INTO session_records (name, data, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

func (s *RecordStore) Load(ctx context.Context, record domain.Record) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM session_records WHERE name=$1`, string(record)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", record, err)
	}
	return raw, nil
}

func (s *RecordStore) Save(ctx context.Context, record domain.Record, data []byte) error {
	if _, err := s.pool.Exec(ctx, upsertRecord, string(record), string(data)); err != nil {
		return fmt.Errorf("save record %s: %w", record, err)
	}
	return nil
}

// SaveMany writes all records in one transaction.
func (s *RecordStore) SaveMany(ctx context.Context, records map[domain.Record][]byte) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		for record, data := range records {
			if _, err := tx.Exec(ctx, upsertRecord, string(record), string(data)); err != nil {
				return fmt.Errorf("save record %s: %w", record, err)
			}
		}
		return nil
	})
}
