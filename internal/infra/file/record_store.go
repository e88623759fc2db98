// Package file keeps each session record as an indented JSON file in a data directory,
// using the legacy data/ file names so existing session files load as-is.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"quiz-night-service/internal/domain"
)

type RecordStore struct {
	dir string
}

// NewRecordStore creates dir if needed.
func NewRecordStore(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &RecordStore{dir: dir}, nil
}

func (s *RecordStore) path(record domain.Record) string {
	return filepath.Join(s.dir, record.FileName())
}

func (s *RecordStore) Load(_ context.Context, record domain.Record) ([]byte, error) {
	data, err := os.ReadFile(s.path(record))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// Save writes through a temp file and rename so a crash never leaves a torn record.
func (s *RecordStore) Save(_ context.Context, record domain.Record, data []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(data)
	}

	tmp, err := os.CreateTemp(s.dir, "."+record.FileName()+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(pretty.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(record)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// SaveMany writes records one by one. Files cannot be swapped atomically as a group, so
// the error names the record that failed and the ones already written.
func (s *RecordStore) SaveMany(ctx context.Context, records map[domain.Record][]byte) error {
	names := make([]string, 0, len(records))
	for record := range records {
		names = append(names, string(record))
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		record := domain.Record(name)
		if err := s.Save(ctx, record, records[record]); err != nil {
			return fmt.Errorf("save %s (already written: %v): %w", record, written, err)
		}
		written = append(written, name)
	}
	return nil
}
