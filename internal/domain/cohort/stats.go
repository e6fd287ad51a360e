// Package cohort computes per-grade statistics and relative values.
//
// Stats are a projection of the record set. A grade's entry is always rebuilt
// from the full membership and never patched in place.
package cohort

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/okian/fitrep/internal/domain/model"
)

// Relative value band.
const (
	RVFloor  = 80.0
	RVCenter = 90.0
	RVCeil   = 100.0
	rvSpread = 10.0
)

// Stats summarizes one grade.
type Stats struct {
	Grade string `json:"grade"`
	// Members is the number of records in the group; Scored counts those with
	// at least one scoring letter.
	Members int `json:"members"`
	Scored  int `json:"scored"`

	Mean float64 `json:"average"`
	High float64 `json:"high"`
	Low  float64 `json:"low"`

	RVAverage float64 `json:"rvAverage"`
	RVHigh    float64 `json:"rvHigh"`
	RVLow     float64 `json:"rvLow"`

	// RelativeValues holds a value for every record that is not all N/O.
	RelativeValues map[uuid.UUID]float64 `json:"relativeValues"`
}

// Empty returns the zero state for grade.
func Empty(grade string) Stats {
	return Stats{Grade: grade, RelativeValues: map[uuid.UUID]float64{}}
}

// RelativeValue returns the cached value for id.
func (s Stats) RelativeValue(id uuid.UUID) (float64, bool) {
	rv, ok := s.RelativeValues[id]
	return rv, ok
}

// Compute builds stats for the records of one grade.
func Compute(grade string, records []model.Record) Stats {
	st := Empty(grade)
	st.Members = len(records)
	if len(records) == 0 {
		return st
	}

	averages := lo.FilterMap(records, func(r model.Record, _ int) (float64, bool) {
		if r.AllNotObserved() {
			return 0, false
		}
		return r.Average()
	})
	st.Scored = len(averages)
	if len(averages) > 0 {
		st.Mean = lo.Mean(averages)
		st.High = lo.Max(averages)
		st.Low = lo.Min(averages)
	}

	delta := st.High - st.Low
	if delta == 0 {
		delta = 1
	}

	for _, r := range records {
		if r.AllNotObserved() {
			continue
		}
		position := 0.0
		if avg, ok := r.Average(); ok {
			position = (avg - st.Mean) / delta
		}
		st.RelativeValues[r.ID] = clampRV(RVCenter + rvSpread*position)
	}

	if len(st.RelativeValues) > 0 {
		rvs := lo.Values(st.RelativeValues)
		st.RVAverage = lo.Mean(rvs)
		st.RVHigh = lo.Max(rvs)
		st.RVLow = lo.Min(rvs)
	}
	return st
}

// GroupByGrade partitions records by grade classification.
func GroupByGrade(records []model.Record) map[string][]model.Record {
	return lo.GroupBy(records, func(r model.Record) string { return r.Grade })
}

func clampRV(v float64) float64 {
	return max(RVFloor, min(RVCeil, v))
}
