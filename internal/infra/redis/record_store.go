package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"quiz-night-service/internal/domain"
)

// RecordStore keeps each record as one string key: SET {prefix}{record} {json}.
// Keys carry no TTL; the answer key in particular must outlive sessions.
type RecordStore struct {
	client *redis.Client
	prefix string
}

func NewRecordStore(client *redis.Client, prefix string) *RecordStore {
	if prefix == "" {
		prefix = "quiz:record:"
	}
	return &RecordStore{client: client, prefix: prefix}
}

func (s *RecordStore) Load(ctx context.Context, record domain.Record) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(record)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RecordStore) Save(ctx context.Context, record domain.Record, data []byte) error {
	return s.client.Set(ctx, s.key(record), data, 0).Err()
}

// SaveMany wraps the writes in MULTI/EXEC.
func (s *RecordStore) SaveMany(ctx context.Context, records map[domain.Record][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for record, data := range records {
			pipe.Set(ctx, s.key(record), data, 0)
		}
		return nil
	})
	return err
}

func (s *RecordStore) key(record domain.Record) string {
	return s.prefix + string(record)
}
