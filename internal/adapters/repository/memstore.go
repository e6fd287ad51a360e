package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

const defaultFlushInterval = time.Second

type entry struct {
	rec model.Record
	seq uint64
}

// MemStore keeps records in memory and writes them through a Persister on a
// debounce interval.
type MemStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]entry
	seq  uint64

	persister     Persister
	flushInterval time.Duration
	dirty         atomic.Bool
	flushMu       sync.Mutex

	obsMu     sync.RWMutex
	observers []Observer

	logger logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	closed   atomic.Bool
}

// NewMemStore constructs a store, loading existing records from the
// persister when one is configured.
func NewMemStore(ctx context.Context, opts ...Option) (*MemStore, error) {
	s := &MemStore{
		byID:          make(map[uuid.UUID]entry),
		flushInterval: defaultFlushInterval,
		logger:        logger.Nop(),
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.persister != nil {
		recs, err := s.persister.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		for _, r := range recs {
			s.seq++
			s.byID[r.ID] = entry{rec: r, seq: s.seq}
		}
		s.startPeriodicFlush(ctx)
	}
	metrics.UpdateRecordsTotal(len(s.byID))
	return s, nil
}

// Subscribe registers an observer after construction.
func (s *MemStore) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// startPeriodicFlush writes pending changes at the configured interval.
func (s *MemStore) startPeriodicFlush(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if !s.dirty.Load() {
					continue
				}
				if err := s.Flush(ctx); err != nil {
					s.logger.Error(ctx, "periodic flush failed", logger.Error(err))
				}
			}
		}
	}()
}

// Flush saves the current record set if it changed since the last save.
func (s *MemStore) Flush(ctx context.Context) error {
	if s.persister == nil {
		s.dirty.Store(false)
		return nil
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if !s.dirty.Swap(false) {
		return nil
	}
	start := time.Now()
	recs := s.snapshot()
	if err := s.persister.Save(ctx, recs); err != nil {
		s.dirty.Store(true)
		metrics.RecordPersist("error", msSince(start))
		metrics.RecordErrorByComponent("repository", "persist")
		return fmt.Errorf("save records: %w", err)
	}
	metrics.RecordPersist("ok", msSince(start))
	s.logger.Debug(ctx, "records saved", logger.Int("count", len(recs)))
	return nil
}

// Close stops the flush loop and writes any pending changes.
func (s *MemStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopChan)
	s.wg.Wait()
	return s.Flush(context.Background())
}

// Create implements Store.Create.
func (s *MemStore) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	defer s.observe("create", time.Now())

	rec = normalize(rec)
	if err := rec.Validate(); err != nil {
		return model.Record{}, err
	}

	s.mu.Lock()
	if _, ok := s.byID[rec.ID]; ok {
		s.mu.Unlock()
		return model.Record{}, ErrAlreadyExists
	}
	s.seq++
	s.byID[rec.ID] = entry{rec: rec, seq: s.seq}
	n := len(s.byID)
	s.mu.Unlock()

	s.committed(ctx, n, rec.Grade)
	return rec, nil
}

// CreateBatch implements Store.CreateBatch.
func (s *MemStore) CreateBatch(ctx context.Context, recs []model.Record) error {
	defer s.observe("create_batch", time.Now())
	if len(recs) == 0 {
		return nil
	}

	prepared := make([]model.Record, len(recs))
	grades := make([]string, 0, len(recs))
	for i, r := range recs {
		r = normalize(r)
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		prepared[i] = r
		grades = append(grades, r.Grade)
	}

	s.mu.Lock()
	for _, r := range prepared {
		if _, ok := s.byID[r.ID]; ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAlreadyExists, r.ID)
		}
	}
	for _, r := range prepared {
		s.seq++
		s.byID[r.ID] = entry{rec: r, seq: s.seq}
	}
	n := len(s.byID)
	s.mu.Unlock()

	s.committed(ctx, n, grades...)
	return nil
}

// Get implements Store.Get.
func (s *MemStore) Get(_ context.Context, id uuid.UUID) (model.Record, error) {
	defer s.observe("get", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Record{}, ErrNotFound
	}
	return e.rec, nil
}

// Update implements Store.Update.
func (s *MemStore) Update(ctx context.Context, rec model.Record) (model.Record, error) {
	defer s.observe("update", time.Now())

	rec = normalize(rec)
	if err := rec.Validate(); err != nil {
		return model.Record{}, err
	}

	s.mu.Lock()
	old, ok := s.byID[rec.ID]
	if !ok {
		s.mu.Unlock()
		return model.Record{}, ErrNotFound
	}
	s.byID[rec.ID] = entry{rec: rec, seq: old.seq}
	n := len(s.byID)
	s.mu.Unlock()

	s.committed(ctx, n, old.rec.Grade, rec.Grade)
	return old.rec, nil
}

// SetStatus implements Store.SetStatus.
func (s *MemStore) SetStatus(ctx context.Context, id uuid.UUID, status string) (model.Record, error) {
	defer s.observe("set_status", time.Now())

	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return model.Record{}, ErrNotFound
	}
	e.rec = e.rec.WithStatus(status)
	s.byID[id] = e
	n := len(s.byID)
	s.mu.Unlock()

	s.committed(ctx, n, e.rec.Grade)
	return e.rec, nil
}

// Delete implements Store.Delete.
func (s *MemStore) Delete(ctx context.Context, id uuid.UUID) (model.Record, error) {
	defer s.observe("delete", time.Now())

	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return model.Record{}, ErrNotFound
	}
	delete(s.byID, id)
	n := len(s.byID)
	s.mu.Unlock()

	s.committed(ctx, n, e.rec.Grade)
	return e.rec, nil
}

// Clear implements Store.Clear.
func (s *MemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	grades := make([]string, 0, len(s.byID))
	for _, e := range s.byID {
		grades = append(grades, e.rec.Grade)
	}
	s.byID = make(map[uuid.UUID]entry)
	s.mu.Unlock()

	s.committed(ctx, 0, grades...)
	return nil
}

// List implements Store.List. Records come back in insertion order.
func (s *MemStore) List(_ context.Context, f Filter) ([]model.Record, error) {
	defer s.observe("list", time.Now())

	s.mu.RLock()
	entries := make([]entry, 0, len(s.byID))
	for _, e := range s.byID {
		if f.Status != "" && e.rec.Status != f.Status {
			continue
		}
		if f.Grade != "" && e.rec.Grade != f.Grade {
			continue
		}
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	return ordered(entries), nil
}

// ByGrade implements Store.ByGrade.
func (s *MemStore) ByGrade(ctx context.Context, grade string) ([]model.Record, error) {
	return s.List(ctx, Filter{Grade: grade})
}

// Grades implements Store.Grades.
func (s *MemStore) Grades(_ context.Context) []string {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range s.byID {
		seen[e.rec.Grade] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Count implements Store.Count.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemStore) snapshot() []model.Record {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	return ordered(entries)
}

// committed marks the store dirty, updates metrics and notifies observers
// outside the lock.
func (s *MemStore) committed(ctx context.Context, count int, grades ...string) {
	s.dirty.Store(true)
	metrics.UpdateRecordsTotal(count)

	s.obsMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.RUnlock()
	for _, fn := range observers {
		fn(ctx, grades)
	}
}

func (s *MemStore) observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, msSince(start))
}

func normalize(rec model.Record) model.Record {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Status = model.ParseStatus(string(rec.Status))
	return rec
}

func ordered(entries []entry) []model.Record {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]model.Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
