package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/fitrep/internal/adapters/mq/queue"
	"github.com/okian/fitrep/internal/adapters/repository"
	service "github.com/okian/fitrep/internal/app"
	"github.com/okian/fitrep/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("unavailable")
	ErrInternal     = errors.New("internal error")
)

// KindError carries the operation that failed and the kind used to pick a
// status code.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// classify maps upstream errors onto API kinds.
func classify(op string, err error) error {
	var ke *KindError
	switch {
	case errors.As(err, &ke):
		return err
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrUnknownRank):
		return WrapKind(op, ErrNotFound, err)
	case errors.Is(err, model.ErrInvalidRecord), errors.Is(err, repository.ErrAlreadyExists),
		errors.Is(err, service.ErrEmptyImport):
		return WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, queue.ErrQueueFull):
		return WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		return WrapKind(op, ErrUnavailable, err)
	default:
		return WrapKind(op, ErrInternal, err)
	}
}

// statusFor returns the HTTP status and error code of a classified error.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
