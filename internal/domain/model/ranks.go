package model

import "strings"

// RankTable maps raw extract ranks to pay grades. It is built once and never
// mutated.
type RankTable struct {
	byRank map[string]string
}

// NewRankTable copies m into an immutable table. Keys are matched
// case-insensitively.
func NewRankTable(m map[string]string) RankTable {
	byRank := make(map[string]string, len(m))
	for k, v := range m {
		byRank[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return RankTable{byRank: byRank}
}

// DefaultRankTable covers Marine Corps ranks from sergeant through colonel.
func DefaultRankTable() RankTable {
	return NewRankTable(map[string]string{
		"SGT": "E-5", "SSGT": "E-6", "GYSGT": "E-7", "MSGT": "E-8", "1STSGT": "E-8",
		"MGYSGT": "E-9", "SGTMAJ": "E-9", "WO": "W-1", "CWO2": "W-2", "CWO3": "W-3",
		"CWO4": "W-4", "CWO5": "W-5", "2NDLT": "O-1", "1STLT": "O-2", "CAPT": "O-3",
		"MAJ": "O-4", "LTCOL": "O-5", "COL": "O-6",
	})
}

// PayGrade returns the pay grade for rank; unknown ranks pass through.
func (t RankTable) PayGrade(rank string) string {
	if g, ok := t.byRank[strings.ToUpper(strings.TrimSpace(rank))]; ok {
		return g
	}
	return rank
}

// Len returns the number of known ranks.
func (t RankTable) Len() int { return len(t.byRank) }

var enlistedGrades = map[string]struct{}{ //nolint:gochecknoglobals // read-only lookup
	"E-5": {}, "E-6": {}, "E-7": {}, "E-8": {}, "E-9": {},
}

// IsEnlisted reports whether a pay grade scores on thirteen attributes.
func IsEnlisted(payGrade string) bool {
	_, ok := enlistedGrades[strings.ToUpper(strings.TrimSpace(payGrade))]
	return ok
}
