package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fitrep/internal/domain/model"
)

type dueDateResponse struct {
	model.DueDate
	Component string `json:"component,omitempty"`
	Month     string `json:"month,omitempty"`
}

// handleCohorts handles GET /cohorts.
func (s *Server) handleCohorts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Cohorts())
}

// handleCohort handles GET /cohorts/{grade}. Grades without records return
// the zero state.
func (s *Server) handleCohort(w http.ResponseWriter, r *http.Request) {
	st, _ := s.deps.Cohort(s.deps.PayGrade(chi.URLParam(r, "grade")))
	writeJSON(w, http.StatusOK, st)
}

// handleRanking handles GET /cohorts/{grade}/ranking.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.ranking"
	standings, err := s.deps.Ranking(r.Context(), s.deps.PayGrade(chi.URLParam(r, "grade")))
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

// handleDueDates handles GET /due-dates.
func (s *Server) handleDueDates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.DueDates())
}

// handleDueDate handles GET /due-dates/{rank}?component=.
func (s *Server) handleDueDate(w http.ResponseWriter, r *http.Request) {
	const op = "api.due_date"
	d, err := s.deps.DueDate(chi.URLParam(r, "rank"))
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	resp := dueDateResponse{DueDate: d}
	if raw := r.URL.Query().Get("component"); raw != "" {
		c, ok := model.ParseComponent(raw)
		if !ok {
			s.writeError(w, r, op, NewKind(op, ErrBadRequest))
			return
		}
		resp.Component = string(c)
		resp.Month = d.Month(c)
	}
	writeJSON(w, http.StatusOK, resp)
}
