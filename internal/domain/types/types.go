// Package types contains the read shapes shared by the service and the API.
package types

import (
	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/importer"
)

// ReportView is a record with its derived values.
type ReportView struct {
	model.Record
	Average       *float64 `json:"average"`
	RelativeValue *float64 `json:"relativeValue"`
}

// NewReportView derives the average of r and attaches rv when present.
func NewReportView(r model.Record, rv float64, hasRV bool) ReportView {
	v := ReportView{Record: r}
	if avg, ok := r.Average(); ok {
		v.Average = &avg
	}
	if hasRV {
		v.RelativeValue = &rv
	}
	return v
}

// ImportSummary is the outcome of one persisted import batch.
type ImportSummary struct {
	Imported   int                `json:"imported"`
	Duplicates int                `json:"duplicates"`
	Skipped    []importer.Skip    `json:"skipped"`
	Warnings   []importer.Warning `json:"warnings"`
	Grades     []string           `json:"grades"`
	Records    []model.Record     `json:"records"`
}

// Summarize flattens a pipeline result.
func Summarize(res importer.Result) ImportSummary {
	sum := ImportSummary{
		Imported: res.Count(),
		Skipped:  res.Skipped,
		Warnings: res.Warnings,
		Grades:   res.Grades(),
		Records:  res.Records(),
	}
	for _, sk := range res.Skipped {
		if sk.Reason == importer.ReasonDuplicate {
			sum.Duplicates++
		}
	}
	return sum
}
