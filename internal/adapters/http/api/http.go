// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fitrep/internal/adapters/http/swagger"
	"github.com/okian/fitrep/internal/adapters/repository"
	"github.com/okian/fitrep/internal/domain/cohort"
	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/domain/reconstruct"
	"github.com/okian/fitrep/internal/domain/types"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary         //nolint:gochecknoglobals // codec
	validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // cached struct info
)

const defaultMaxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Import(ctx context.Context, text string) (types.ImportSummary, error)
	SubmitImport(ctx context.Context, source, text string) (model.JobStatus, error)
	JobStatus(ctx context.Context, id string) (model.JobStatus, error)
	Reconstruct(ctx context.Context, avg *float64, rank string, scoringCount int) (reconstruct.Result, error)

	CreateReport(ctx context.Context, r model.Record) (types.ReportView, error)
	GetReport(ctx context.Context, id uuid.UUID) (types.ReportView, error)
	UpdateReport(ctx context.Context, r model.Record) (types.ReportView, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (types.ReportView, error)
	DeleteReport(ctx context.Context, id uuid.UUID) error
	ListReports(ctx context.Context, f repository.Filter) ([]types.ReportView, error)
	ClearReports(ctx context.Context) error

	Cohort(grade string) (cohort.Stats, bool)
	Cohorts() []cohort.Stats
	Ranking(ctx context.Context, grade string) ([]cohort.Standing, error)
	DueDate(rank string) (model.DueDate, error)
	PayGrade(rank string) string
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps         Dependencies
	stats        StatsProvider
	maxBodyBytes int64
	logger       logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		stats:        stats,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with every endpoint attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, Recoverer(s.logger), MetricsMiddleware, RequestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	swagger.Register(r)

	r.Route("/imports", func(r chi.Router) {
		r.Post("/", s.handleImport)
		r.Get("/{id}", s.handleGetImport)
	})
	r.Post("/reconstruct", s.handleReconstruct)

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", s.handleListReports)
		r.Post("/", s.handleCreateReport)
		r.Delete("/", s.handleClearReports)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetReport)
			r.Put("/", s.handleUpdateReport)
			r.Delete("/", s.handleDeleteReport)
			r.Patch("/status", s.handleSetStatus)
		})
	})

	r.Route("/cohorts", func(r chi.Router) {
		r.Get("/", s.handleCohorts)
		r.Get("/{grade}", s.handleCohort)
		r.Get("/{grade}/ranking", s.handleRanking)
	})

	r.Get("/due-dates", s.handleDueDates)
	r.Get("/due-dates/{rank}", s.handleDueDate)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	err = classify(op, err)
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("trace_id", TraceIDFromContext(r.Context())),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("api", code)
	}
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: err.Error(),
		TraceID: TraceIDFromContext(r.Context()),
	})
}

// decode reads a JSON body into dest and validates it.
func (s *Server) decode(r *http.Request, op string, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("decode body: %w", err))
	}
	if err := validate.StructCtx(r.Context(), dest); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// readText reads a raw request body.
func (s *Server) readText(r *http.Request, op string) (string, error) {
	b, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, s.maxBodyBytes))
	if err != nil {
		return "", WrapKind(op, ErrBadRequest, fmt.Errorf("read body: %w", err))
	}
	return string(b), nil
}

func pathID(r *http.Request, op string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid id: %w", err))
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.GetStats())
}
