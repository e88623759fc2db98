package memory

import (
	"context"
	"sync"

	"quiz-night-service/internal/domain"
)

// RecordStore is an in-memory implementation of app.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[domain.Record][]byte
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[domain.Record][]byte),
	}
}

func (s *RecordStore) Load(_ context.Context, record domain.Record) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[record]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *RecordStore) Save(_ context.Context, record domain.Record, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record] = append([]byte(nil), data...)
	return nil
}

// SaveMany applies all writes under one lock, so readers never see part of them.
func (s *RecordStore) SaveMany(_ context.Context, records map[domain.Record][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for record, data := range records {
		s.records[record] = append([]byte(nil), data...)
	}
	return nil
}
