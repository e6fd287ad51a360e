package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/xid"

	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/domain/types"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

// Import parses text and stores the resulting records as one batch. The
// batch is saved immediately; on failure none of its lines count as seen.
func (s *Service) Import(ctx context.Context, text string) (types.ImportSummary, error) {
	if err := s.ready(); err != nil {
		return types.ImportSummary{}, err
	}
	return s.importText(ctx, text)
}

// importText skips the started check so workers can drain the queue while
// Stop holds the service lock.
func (s *Service) importText(ctx context.Context, text string) (types.ImportSummary, error) {
	if strings.TrimSpace(text) == "" {
		return types.ImportSummary{}, ErrEmptyImport
	}

	res := s.pipeline.ImportText(ctx, text)
	if err := s.store.CreateBatch(ctx, res.Records()); err != nil {
		s.release(ctx, res.Fingerprints)
		metrics.RecordImport("error")
		return types.ImportSummary{}, fmt.Errorf("store batch: %w", err)
	}
	if err := s.store.Flush(ctx); err != nil {
		// The records stay in memory and are retried by the periodic flush.
		s.logger.Error(ctx, "import batch not saved", logger.Error(err))
		metrics.RecordImport("unsaved")
	} else {
		metrics.RecordImport("ok")
	}
	return types.Summarize(res), nil
}

func (s *Service) release(ctx context.Context, fingerprints []string) {
	for _, fp := range fingerprints {
		s.deduper.Unrecord(ctx, fp)
	}
}

// SubmitImport queues text for a worker and returns the queued job status.
func (s *Service) SubmitImport(ctx context.Context, source, text string) (model.JobStatus, error) {
	if err := s.ready(); err != nil {
		return model.JobStatus{}, err
	}
	if strings.TrimSpace(text) == "" {
		return model.JobStatus{}, ErrEmptyImport
	}

	job := model.ImportJob{
		ID:          xid.New().String(),
		Source:      source,
		Text:        text,
		SubmittedAt: time.Now().UTC(),
	}
	status := model.JobStatus{
		ID:          job.ID,
		Source:      source,
		State:       model.JobQueued,
		SubmittedAt: job.SubmittedAt,
	}
	s.jobs.Set(job.ID, status, cache.DefaultExpiration)

	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		s.jobs.Delete(job.ID)
		return model.JobStatus{}, fmt.Errorf("enqueue import: %w", err)
	}
	metrics.UpdateQueueSize(s.jobQueue.Len(ctx))
	s.logger.Debug(ctx, "import job queued",
		logger.String("job", job.ID),
		logger.String("source", source),
	)
	return status, nil
}

// JobStatus returns the current state of an import job.
func (s *Service) JobStatus(_ context.Context, id string) (model.JobStatus, error) {
	if err := s.ready(); err != nil {
		return model.JobStatus{}, err
	}
	v, ok := s.jobs.Get(id)
	if !ok {
		return model.JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return v.(model.JobStatus), nil
}

// RunImport implements worker.Importer.
func (s *Service) RunImport(ctx context.Context, j model.ImportJob) error {
	s.updateJob(j.ID, func(st *model.JobStatus) { st.State = model.JobRunning })

	sum, err := s.importText(ctx, j.Text)
	finished := time.Now().UTC()

	s.updateJob(j.ID, func(st *model.JobStatus) {
		st.FinishedAt = &finished
		if err != nil {
			st.State = model.JobFailed
			st.Error = err.Error()
			return
		}
		st.State = model.JobSucceeded
		st.Imported = sum.Imported
		st.Duplicates = sum.Duplicates
		st.Skipped = len(sum.Skipped)
		st.Warnings = len(sum.Warnings)
		st.Grades = sum.Grades
	})
	return err
}

func (s *Service) updateJob(id string, fn func(*model.JobStatus)) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	v, ok := s.jobs.Get(id)
	if !ok {
		return
	}
	st := v.(model.JobStatus)
	fn(&st)
	s.jobs.Set(id, st, cache.DefaultExpiration)
}
