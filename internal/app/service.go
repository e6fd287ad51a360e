// Package service wires the record store, cohort cache, import pipeline and
// job workers behind the operations the HTTP API and CLI need.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/okian/fitrep/internal/adapters/mq/queue"
	"github.com/okian/fitrep/internal/adapters/mq/worker"
	"github.com/okian/fitrep/internal/adapters/repository"
	"github.com/okian/fitrep/internal/domain/cohort"
	"github.com/okian/fitrep/internal/domain/dedupe"
	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/domain/reconstruct"
	"github.com/okian/fitrep/internal/importer"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

// Service implements the API dependencies for the evaluation system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    *repository.MemStore
	cohorts  *cohort.Cache
	deduper  dedupe.Deduper
	pipeline *importer.Pipeline
	jobQueue *queue.InMemoryQueue
	pool     *worker.Pool

	jobsMu sync.Mutex
	jobs   *cache.Cache

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	dedupeTTL     time.Duration
	dataFile      string
	flushInterval time.Duration
	jobTTL        time.Duration
	mismatchTol   float64
	adverseTypes  []string

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending import jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many line fingerprints are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeTTL sets how long a line fingerprint is remembered.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) { s.dedupeTTL = ttl }
}

// WithDataFile persists records to path. Empty keeps records in memory only.
func WithDataFile(path string) Option {
	return func(s *Service) { s.dataFile = path }
}

// WithFlushInterval sets the debounce interval for saving single mutations.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithJobTTL sets how long finished import job statuses are kept.
func WithJobTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTTL = d
		}
	}
}

// WithMismatchTolerance sets the reported/computed average tolerance.
func WithMismatchTolerance(tol float64) Option {
	return func(s *Service) {
		if tol > 0 {
			s.mismatchTol = tol
		}
	}
}

// WithAdverseTypes sets the report types that are always adverse.
func WithAdverseTypes(types []string) Option {
	return func(s *Service) {
		if len(types) > 0 {
			s.adverseTypes = types
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     1024,
		dedupeSize:    50000,
		flushInterval: time.Second,
		jobTTL:        time.Hour,
		mismatchTol:   0.1,
		adverseTypes:  []string{"DC"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components, loads persisted records and publishes
// the stats of every stored grade.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting fitrep service...")

	storeOpts := []repository.Option{
		repository.WithFlushInterval(s.flushInterval),
		repository.WithLogger(s.logger.Named("repository")),
	}
	if s.dataFile != "" {
		storeOpts = append(storeOpts, repository.WithPersister(repository.NewFilePersister(s.dataFile)))
		s.logger.Info(ctx, "using file persistence", logger.String("path", s.dataFile))
	}
	store, err := repository.NewMemStore(ctx, storeOpts...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.cohorts = cohort.NewCache(s.store, cohort.WithLogger(s.logger.Named("cohort")))
	s.store.Subscribe(s.invalidate)
	if err := s.cohorts.Invalidate(ctx, s.store.Grades(ctx)...); err != nil {
		_ = s.store.Close()
		return fmt.Errorf("build cohorts: %w", err)
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithTTL(s.dedupeTTL),
	)
	if err := s.seedFingerprints(ctx); err != nil {
		_ = s.store.Close()
		return err
	}
	s.pipeline = importer.New(
		importer.WithReconstructor(reconstruct.New(
			reconstruct.WithLogger(s.logger.Named("reconstruct")),
			reconstruct.WithMetrics(true),
		)),
		importer.WithDeduper(s.deduper),
		importer.WithAdverseTypes(s.adverseTypes),
		importer.WithMismatchTolerance(s.mismatchTol),
		importer.WithLogger(s.logger.Named("importer")),
	)

	s.jobs = cache.New(s.jobTTL, 2*s.jobTTL)
	s.jobQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobQueue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "fitrep service started",
		logger.Int("records", s.store.Count(ctx)),
		logger.Int("grades", len(s.cohorts.All())),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending import jobs and writes unsaved records.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping fitrep service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "store close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "fitrep service stopped")
}

// ready returns ErrNotStarted until Start has completed.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// invalidate rebuilds the stats of grades touched by a store mutation.
func (s *Service) invalidate(ctx context.Context, grades []string) {
	if err := s.cohorts.Invalidate(ctx, grades...); err != nil {
		s.logger.Error(ctx, "cohort rebuild failed",
			logger.Strings("grades", grades),
			logger.Error(err),
		)
	}
}

// seedFingerprints registers the lines behind stored records so a restart
// does not import them again.
func (s *Service) seedFingerprints(ctx context.Context) error {
	recs, err := s.store.List(ctx, repository.Filter{})
	if err != nil {
		return fmt.Errorf("load fingerprints: %w", err)
	}
	for _, r := range recs {
		if r.Fingerprint != "" {
			s.deduper.SeenAndRecord(ctx, r.Fingerprint)
		}
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"persistent":  s.dataFile != "",
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.jobQueue.Len(ctx)
		records := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["records"] = records
		stats["grades"] = len(s.cohorts.All())
		stats["fingerprints"] = s.deduper.Size()
		stats["jobs"] = s.jobs.ItemCount()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRecordsTotal(records)
	}
	return stats
}

// Reconstruct builds a vector for avg using the classification of rank.
func (s *Service) Reconstruct(ctx context.Context, avg *float64, rank string, scoringCount int) (reconstruct.Result, error) {
	if err := s.ready(); err != nil {
		return reconstruct.Result{}, err
	}
	return s.pipeline.Reconstruct(ctx, avg, s.pipeline.PayGrade(rank), scoringCount), nil
}

// PayGrade maps a rank to its pay grade.
func (s *Service) PayGrade(rank string) string {
	return model.DefaultRankTable().PayGrade(rank)
}

// DueDate returns the reporting months for rank.
func (s *Service) DueDate(rank string) (model.DueDate, error) {
	d, ok := model.LookupDueDate(rank)
	if !ok {
		return model.DueDate{}, fmt.Errorf("%w: %s", ErrUnknownRank, rank)
	}
	return d, nil
}
