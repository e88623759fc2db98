package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quiz-night-service/internal/domain"
)

// RecordStore abstracts where session records live (memory, files, Redis, Postgres, Mongo).
type RecordStore interface {
	// Load returns the stored JSON, or nil if the record was never written.
	Load(ctx context.Context, record domain.Record) ([]byte, error)
	Save(ctx context.Context, record domain.Record, data []byte) error
	// SaveMany writes several records, atomically where the backend supports it.
	SaveMany(ctx context.Context, records map[domain.Record][]byte) error
}

// errCorrupt marks a stored record that no longer decodes.
var errCorrupt = errors.New("record does not decode")

// Records is typed access to a RecordStore. Every read-modify-write of a record runs
// under that record's mutex; plain reads of the same record are coalesced.
type Records struct {
	store RecordStore
	log   *zap.Logger
	sf    singleflight.Group

	mu    sync.Mutex
	locks map[domain.Record]*sync.Mutex
}

func NewRecords(store RecordStore, log *zap.Logger) *Records {
	if log == nil {
		log = zap.NewNop()
	}
	return &Records{
		store: store,
		log:   log,
		locks: make(map[domain.Record]*sync.Mutex),
	}
}

func (r *Records) lockFor(rec domain.Record) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[rec]
	if !ok {
		l = &sync.Mutex{}
		r.locks[rec] = l
	}
	return l
}

// lockAll takes the locks of recs in domain.AllRecords order and returns the unlock func.
func (r *Records) lockAll(recs ...domain.Record) func() {
	order := make(map[domain.Record]int, len(domain.AllRecords))
	for i, rec := range domain.AllRecords {
		order[rec] = i
	}
	sorted := append([]domain.Record(nil), recs...)
	sort.Slice(sorted, func(i, j int) bool { return order[sorted[i]] < order[sorted[j]] })

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, rec := range sorted {
		l := r.lockFor(rec)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// loadShared loads rec, joining any identical load already in flight. The shared load
// does not inherit any one caller's cancellation; each caller stops waiting on its own ctx.
func (r *Records) loadShared(ctx context.Context, rec domain.Record) ([]byte, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(string(rec), func() (interface{}, error) {
		return r.store.Load(shared, rec)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, r.storageErr("load", rec, res.Err)
		}
		data, _ := res.Val.([]byte)
		return data, nil
	case <-ctx.Done():
		return nil, r.storageErr("load", rec, ctx.Err())
	}
}

func (r *Records) loadDirect(ctx context.Context, rec domain.Record) ([]byte, error) {
	data, err := r.store.Load(ctx, rec)
	if err != nil {
		return nil, r.storageErr("load", rec, err)
	}
	return data, nil
}

func (r *Records) save(ctx context.Context, rec domain.Record, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec, err)
	}
	err = r.store.Save(ctx, rec, data)
	r.sf.Forget(string(rec))
	if err != nil {
		return r.storageErr("save", rec, err)
	}
	return nil
}

func (r *Records) saveMany(ctx context.Context, values map[domain.Record]interface{}) error {
	encoded := make(map[domain.Record][]byte, len(values))
	for rec, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", rec, err)
		}
		encoded[rec] = data
	}
	err := r.store.SaveMany(ctx, encoded)
	for rec := range values {
		r.sf.Forget(string(rec))
	}
	if err != nil {
		r.log.Error("multi-record save failed", zap.Int("records", len(values)), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

func (r *Records) storageErr(op string, rec domain.Record, err error) error {
	r.log.Error("record "+op+" failed", zap.String("record", string(rec)), zap.Error(err))
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, op, rec, err)
}

// decode fills dst from data. It reports false when there is nothing usable.
func (r *Records) decode(rec domain.Record, data []byte, dst interface{}) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		r.log.Warn("record does not decode", zap.String("record", string(rec)), zap.Error(err))
		return false, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	return true, nil
}

// read returns the decoded record, or def() when it is missing or unreadable.
func read[T any](ctx context.Context, r *Records, rec domain.Record, def func() T) (T, error) {
	data, err := r.loadShared(ctx, rec)
	if err != nil {
		return def(), err
	}
	var v T
	if ok, _ := r.decode(rec, data, &v); !ok {
		return def(), nil
	}
	return v, nil
}

// update runs fn on the current value of rec under the record lock and writes the result.
// If fn returns an error nothing is written. A stored value that no longer decodes is
// never overwritten by an update.
func update[T any](ctx context.Context, r *Records, rec domain.Record, def func() T, fn func(*T) error) error {
	unlock := r.lockAll(rec)
	defer unlock()
	return updateLocked(ctx, r, rec, def, fn)
}

func updateLocked[T any](ctx context.Context, r *Records, rec domain.Record, def func() T, fn func(*T) error) error {
	data, err := r.loadDirect(ctx, rec)
	if err != nil {
		return err
	}
	v := def()
	if len(data) > 0 {
		var decoded T
		if _, err := r.decode(rec, data, &decoded); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrStorage, rec, err)
		}
		v = decoded
	}
	if err := fn(&v); err != nil {
		return err
	}
	return r.save(ctx, rec, v)
}
