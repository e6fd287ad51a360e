package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fitrep/internal/domain/grade"
)

// importRequest is the JSON form of POST /imports. Plain text bodies are
// taken as the extract itself.
type importRequest struct {
	Source string `json:"source" validate:"max=256"`
	Text   string `json:"text" validate:"required"`
}

type reconstructRequest struct {
	Average      *float64 `json:"average"`
	Grade        string   `json:"grade" validate:"required"`
	ScoringCount int      `json:"scoringCount" validate:"gte=0,lte=14"`
}

type reconstructResponse struct {
	Grade        string       `json:"grade"`
	Attributes   grade.Vector `json:"attributes"`
	ScoringCount int          `json:"scoringCount"`
	TargetSum    int          `json:"targetSum"`
	Average      *float64     `json:"average"`
	Deviation    float64      `json:"deviation"`
	Converged    bool         `json:"converged"`
}

// handleImport handles POST /imports. With ?sync=true the batch is imported
// inline; otherwise it is queued and 202 is returned.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import"

	var req importRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := s.decode(r, op, &req); err != nil {
			s.writeError(w, r, op, err)
			return
		}
	} else {
		text, err := s.readText(r, op)
		if err != nil {
			s.writeError(w, r, op, err)
			return
		}
		req = importRequest{Source: r.URL.Query().Get("source"), Text: text}
	}

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		sum, err := s.deps.Import(r.Context(), req.Text)
		if err != nil {
			s.writeError(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
		return
	}

	st, err := s.deps.SubmitImport(r.Context(), req.Source, req.Text)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	w.Header().Set("Location", "/imports/"+st.ID)
	writeJSON(w, http.StatusAccepted, st)
}

// handleGetImport handles GET /imports/{id}.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_import"
	st, err := s.deps.JobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReconstruct handles POST /reconstruct.
func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	const op = "api.reconstruct"
	var req reconstructRequest
	if err := s.decode(r, op, &req); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	res, err := s.deps.Reconstruct(r.Context(), req.Average, req.Grade, req.ScoringCount)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	resp := reconstructResponse{
		Grade:        s.deps.PayGrade(req.Grade),
		Attributes:   res.Vector,
		ScoringCount: res.ScoringCount,
		TargetSum:    res.TargetSum,
		Deviation:    res.Deviation,
		Converged:    res.Converged,
	}
	if res.HasAverage {
		avg := res.Average
		resp.Average = &avg
	}
	writeJSON(w, http.StatusOK, resp)
}
