// Package repository stores evaluation records and persists them.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/domain/model"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status model.Status
	Grade  string
}

// Store provides read/write access to evaluation records. Reads return
// copies; callers never share the stored value.
type Store interface {
	// Create stores rec, assigning an ID when it has none.
	Create(ctx context.Context, rec model.Record) (model.Record, error)
	// CreateBatch stores every record or none of them.
	CreateBatch(ctx context.Context, recs []model.Record) error
	// Get returns ErrNotFound if id is unknown.
	Get(ctx context.Context, id uuid.UUID) (model.Record, error)
	// Update replaces the stored record and returns the previous version.
	Update(ctx context.Context, rec model.Record) (model.Record, error)
	// SetStatus normalizes status and applies it.
	SetStatus(ctx context.Context, id uuid.UUID, status string) (model.Record, error)
	// Delete removes id and returns the removed record.
	Delete(ctx context.Context, id uuid.UUID) (model.Record, error)
	// Clear removes every record.
	Clear(ctx context.Context) error

	List(ctx context.Context, f Filter) ([]model.Record, error)
	ByGrade(ctx context.Context, grade string) ([]model.Record, error)
	Grades(ctx context.Context) []string
	Count(ctx context.Context) int

	// Flush persists pending changes immediately.
	Flush(ctx context.Context) error
	Close() error
}

// Persister loads and saves the full record set.
type Persister interface {
	Load(ctx context.Context) ([]model.Record, error)
	Save(ctx context.Context, recs []model.Record) error
}

// Observer is told which grades a committed mutation touched.
type Observer func(ctx context.Context, grades []string)
