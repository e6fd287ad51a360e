package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/adapters/repository"
	"github.com/okian/fitrep/internal/domain/cohort"
	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/domain/types"
	"github.com/okian/fitrep/pkg/logger"
)

func (s *Service) view(r model.Record) types.ReportView {
	rv, ok := s.cohorts.RelativeValue(r)
	return types.NewReportView(r, rv, ok)
}

// prepare derives the adverse flag and stamps the creation date. A record
// with no observed attribute keeps no average.
func (s *Service) prepare(r model.Record) model.Record {
	if r.AllNotObserved() {
		r.ReportedAverage = nil
	}
	avg := r.ReportedAverage
	if avg == nil {
		if a, ok := r.Average(); ok {
			avg = &a
		}
	}
	r.IsAdverse = model.Adverse(avg, r.Type, s.adverseSet())
	if r.CreationDate == nil {
		now := time.Now().UTC()
		r.CreationDate = &now
	}
	return r
}

func (s *Service) adverseSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.adverseTypes))
	for _, t := range s.adverseTypes {
		set[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// CreateReport stores a new record.
func (s *Service) CreateReport(ctx context.Context, r model.Record) (types.ReportView, error) {
	if err := s.ready(); err != nil {
		return types.ReportView{}, err
	}
	created, err := s.store.Create(ctx, s.prepare(r))
	if err != nil {
		return types.ReportView{}, err
	}
	return s.view(created), nil
}

// GetReport returns one record.
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (types.ReportView, error) {
	if err := s.ready(); err != nil {
		return types.ReportView{}, err
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return types.ReportView{}, err
	}
	return s.view(r), nil
}

// UpdateReport replaces a stored record. Moving a record to another grade
// rebuilds both grades.
func (s *Service) UpdateReport(ctx context.Context, r model.Record) (types.ReportView, error) {
	if err := s.ready(); err != nil {
		return types.ReportView{}, err
	}
	prev, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return types.ReportView{}, err
	}
	if r.Fingerprint == "" {
		r.Fingerprint = prev.Fingerprint
	}
	if r.CreationDate == nil {
		r.CreationDate = prev.CreationDate
	}
	if _, err := s.store.Update(ctx, s.prepare(r)); err != nil {
		return types.ReportView{}, err
	}
	updated, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return types.ReportView{}, err
	}
	return s.view(updated), nil
}

// SetStatus changes a record's status. Unknown values become Draft.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (types.ReportView, error) {
	if err := s.ready(); err != nil {
		return types.ReportView{}, err
	}
	r, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return types.ReportView{}, err
	}
	// Status changes are saved right away rather than on the next flush.
	if err := s.store.Flush(ctx); err != nil {
		s.logger.Warn(ctx, "status change not saved yet", logger.Error(err))
	}
	return s.view(r), nil
}

// DeleteReport removes a record. An imported record releases its line
// fingerprint so the line can be imported again.
func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	rec, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rec.Fingerprint != "" {
		s.deduper.Unrecord(ctx, rec.Fingerprint)
	}
	return nil
}

// ListReports returns records matching f in insertion order.
func (s *Service) ListReports(ctx context.Context, f repository.Filter) ([]types.ReportView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]types.ReportView, len(recs))
	for i, r := range recs {
		out[i] = s.view(r)
	}
	return out, nil
}

// ClearReports removes every record and forgets imported line fingerprints.
func (s *Service) ClearReports(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.deduper.Reset(ctx)
	return s.store.Flush(ctx)
}

// RelativeValue returns r's relative value within its grade.
func (s *Service) RelativeValue(r model.Record) (float64, bool) {
	if s.ready() != nil {
		return 0, false
	}
	return s.cohorts.RelativeValue(r)
}

// Cohort returns the stats of grade. Grades without records yield the zero
// state and false.
func (s *Service) Cohort(grade string) (cohort.Stats, bool) {
	if s.ready() != nil {
		return cohort.Empty(grade), false
	}
	return s.cohorts.Get(grade)
}

// Cohorts returns the stats of every populated grade.
func (s *Service) Cohorts() []cohort.Stats {
	if s.ready() != nil {
		return []cohort.Stats{}
	}
	return s.cohorts.All()
}

// Ranking orders the scored records of grade by relative value.
func (s *Service) Ranking(ctx context.Context, grade string) ([]cohort.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	recs, err := s.store.ByGrade(ctx, grade)
	if err != nil {
		return nil, err
	}
	st, _ := s.cohorts.Get(grade)
	return cohort.Rank(st, recs), nil
}
