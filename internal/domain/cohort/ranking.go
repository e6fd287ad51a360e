package cohort

import (
	"sort"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/domain/model"
)

// Standing is one row of a grade ranking.
type Standing struct {
	Rank          int       `json:"rank"`
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Average       float64   `json:"average"`
	RelativeValue float64   `json:"relativeValue"`
	Adverse       bool      `json:"isAdverse"`
}

// Rank orders the scored records of st's grade by relative value. Records
// without a relative value are left out.
func Rank(st Stats, records []model.Record) []Standing {
	out := make([]Standing, 0, len(records))
	for _, r := range records {
		rv, ok := st.RelativeValue(r.ID)
		if !ok || r.Grade != st.Grade {
			continue
		}
		avg, _ := r.Average()
		out = append(out, Standing{
			ID:            r.ID,
			Name:          r.Name,
			Average:       avg,
			RelativeValue: max(RVFloor, rv),
			Adverse:       r.IsAdverse,
		})
	}
	sortStandings(out)
	assignRanksWithTies(out)
	return out
}

// sortStandings orders by relative value desc, then name and id asc.
func sortStandings(s []Standing) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].RelativeValue != s[j].RelativeValue {
			return s[i].RelativeValue > s[j].RelativeValue
		}
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID.String() < s[j].ID.String()
	})
}

// assignRanksWithTies gives equal relative values the same rank; the next
// distinct value takes the following rank.
func assignRanksWithTies(s []Standing) {
	rank := 0
	for i := range s {
		if i == 0 || s[i].RelativeValue != s[i-1].RelativeValue {
			rank++
		}
		s[i].Rank = rank
	}
}
