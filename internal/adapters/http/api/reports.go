package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/adapters/repository"
	"github.com/okian/fitrep/internal/domain/grade"
	"github.com/okian/fitrep/internal/domain/model"
)

var errNoMarks = errors.New("attributes or average is required")

// reportRequest is the body of POST /reports and PUT /reports/{id}. Grade
// accepts a rank or a pay grade. When attributes are omitted the vector is
// reconstructed from average.
type reportRequest struct {
	Name         string    `json:"name" validate:"required,max=200"`
	Grade        string    `json:"grade" validate:"required,max=16"`
	Type         string    `json:"type" validate:"required,max=8"`
	DueDate      time.Time `json:"dueDate" validate:"required"`
	FromDate     time.Time `json:"fromDate"`
	Attributes   []string  `json:"attributes" validate:"omitempty,len=14"`
	Average      *float64  `json:"average"`
	ScoringCount int       `json:"scoringCount" validate:"gte=0,lte=14"`
	Status       string    `json:"status" validate:"omitempty,max=16"`

	BilletDescription    string `json:"billetDescription"`
	BilletAccomplishment string `json:"billetAccomplishment"`
	SectionIComments     string `json:"sectionIComments"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,max=16"`
}

func (s *Server) toRecord(ctx context.Context, op string, id uuid.UUID, req reportRequest) (model.Record, error) {
	rec := model.Record{
		ID:                   id,
		Name:                 req.Name,
		Grade:                s.deps.PayGrade(req.Grade),
		Type:                 req.Type,
		DueDate:              req.DueDate,
		FromDate:             req.FromDate,
		Status:               model.ParseStatus(req.Status),
		BilletDescription:    req.BilletDescription,
		BilletAccomplishment: req.BilletAccomplishment,
		SectionIComments:     req.SectionIComments,
	}

	switch {
	case len(req.Attributes) > 0:
		v, err := grade.ParseVector(req.Attributes)
		if err != nil {
			return model.Record{}, WrapKind(op, ErrBadRequest, err)
		}
		rec.Attributes = v
		rec.ReportedAverage = req.Average
	case req.Average != nil:
		res, err := s.deps.Reconstruct(ctx, req.Average, req.Grade, req.ScoringCount)
		if err != nil {
			return model.Record{}, err
		}
		rec.Attributes = res.Vector
		rec.ReportedAverage = req.Average
	default:
		return model.Record{}, WrapKind(op, ErrBadRequest, errNoMarks)
	}
	return rec, nil
}

// handleListReports handles GET /reports?status=&grade=.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_reports"
	q := r.URL.Query()
	var f repository.Filter
	if st := q.Get("status"); st != "" {
		f.Status = model.ParseStatus(st)
	}
	if g := q.Get("grade"); g != "" {
		f.Grade = s.deps.PayGrade(g)
	}
	views, err := s.deps.ListReports(r.Context(), f)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleCreateReport handles POST /reports.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_report"
	var req reportRequest
	if err := s.decode(r, op, &req); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	rec, err := s.toRecord(r.Context(), op, uuid.Nil, req)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	view, err := s.deps.CreateReport(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	w.Header().Set("Location", "/reports/"+view.ID.String())
	writeJSON(w, http.StatusCreated, view)
}

// handleGetReport handles GET /reports/{id}.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report"
	id, err := pathID(r, op)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	view, err := s.deps.GetReport(r.Context(), id)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUpdateReport handles PUT /reports/{id}.
func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_report"
	id, err := pathID(r, op)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	var req reportRequest
	if err := s.decode(r, op, &req); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	rec, err := s.toRecord(r.Context(), op, id, req)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	view, err := s.deps.UpdateReport(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSetStatus handles PATCH /reports/{id}/status.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_status"
	id, err := pathID(r, op)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	var req statusRequest
	if err := s.decode(r, op, &req); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	view, err := s.deps.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDeleteReport handles DELETE /reports/{id}.
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_report"
	id, err := pathID(r, op)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	if err := s.deps.DeleteReport(r.Context(), id); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearReports handles DELETE /reports.
func (s *Server) handleClearReports(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_reports"
	if err := s.deps.ClearReports(r.Context()); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
