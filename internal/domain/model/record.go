// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/domain/grade"
)

// Status is the publication state of a record.
type Status string

// Record statuses.
const (
	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"
)

// ParseStatus normalizes s; anything other than Published becomes Draft.
func ParseStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusPublished)) {
		return StatusPublished
	}
	return StatusDraft
}

// NotProvided fills free-text fields that an extract does not carry.
const NotProvided = "Not provided"

// AdverseThreshold is the average under which a record is adverse.
const AdverseThreshold = 3.0

// ErrInvalidRecord is returned when a record fails validation.
var ErrInvalidRecord = errors.New("invalid record")

// Record is one evaluation. Records are values; the store owns the canonical
// copy and callers work on snapshots.
type Record struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Grade        string       `json:"grade"`
	Type         string       `json:"type"`
	DueDate      time.Time    `json:"dueDate"`
	FromDate     time.Time    `json:"fromDate"`
	CreationDate *time.Time   `json:"creationDate,omitempty"`
	Attributes   grade.Vector `json:"attributes"`
	IsAdverse    bool         `json:"isAdverse"`
	Status       Status       `json:"status"`

	// ReportedAverage is the aggregate supplied by an import, kept as the
	// source of truth when it disagrees with the attributes.
	ReportedAverage *float64 `json:"reportedAverage,omitempty"`

	BilletDescription    string `json:"billetDescription"`
	BilletAccomplishment string `json:"billetAccomplishment"`
	SectionIComments     string `json:"sectionIComments"`

	// Fingerprint identifies the extract line an imported record came from.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Average derives the record's average from its attributes.
func (r Record) Average() (float64, bool) {
	return r.Attributes.Average()
}

// AllNotObserved reports whether no attribute was observed.
func (r Record) AllNotObserved() bool {
	return r.Attributes.AllNotObserved()
}

// Published reports whether the record is published.
func (r Record) Published() bool { return r.Status == StatusPublished }

// WithStatus returns a copy carrying the normalized status.
func (r Record) WithStatus(s string) Record {
	r.Status = ParseStatus(s)
	return r
}

// Validate checks the fields every stored record must have.
func (r Record) Validate() error {
	switch {
	case r.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case strings.TrimSpace(r.Grade) == "":
		return fmt.Errorf("%w: missing grade", ErrInvalidRecord)
	case r.DueDate.IsZero():
		return fmt.Errorf("%w: missing due date", ErrInvalidRecord)
	}
	if err := r.Attributes.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

// Adverse reports whether an average or report type marks a record adverse.
// A missing average counts as zero.
func Adverse(avg *float64, reportType string, adverseTypes map[string]struct{}) bool {
	if avg == nil || *avg < AdverseThreshold {
		return true
	}
	_, ok := adverseTypes[strings.ToUpper(strings.TrimSpace(reportType))]
	return ok
}

// DefaultAdverseTypes lists report types that are adverse by category.
func DefaultAdverseTypes() map[string]struct{} {
	return map[string]struct{}{"DC": {}}
}
