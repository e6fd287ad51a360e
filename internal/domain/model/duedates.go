package model

import "strings"

// Component is a service component with its own reporting calendar.
type Component string

// Components.
const (
	ComponentActive        Component = "active"
	ComponentReserve       Component = "reserve"
	ComponentActiveReserve Component = "active_reserve"
)

// ParseComponent accepts the component names used by the API and CLI.
func ParseComponent(s string) (Component, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "active", "activecomponent":
		return ComponentActive, true
	case "reserve", "reservecomponent":
		return ComponentReserve, true
	case "active_reserve", "activereserve", "ar":
		return ComponentActiveReserve, true
	}
	return "", false
}

// DueDate is the annual reporting month for a rank group.
type DueDate struct {
	Rank          string `json:"rank"`
	Active        string `json:"active"`
	Reserve       string `json:"reserve"`
	ActiveReserve string `json:"activeReserve"`
}

// Month returns the month for c.
func (d DueDate) Month(c Component) string {
	switch c {
	case ComponentReserve:
		return d.Reserve
	case ComponentActiveReserve:
		return d.ActiveReserve
	default:
		return d.Active
	}
}

var dueDates = []DueDate{ //nolint:gochecknoglobals // read-only table
	{Rank: "SGT", Active: "DEC", Reserve: "MAR", ActiveReserve: "MAR"},
	{Rank: "SSGT", Active: "SEP", Reserve: "MAR", ActiveReserve: "MAR"},
	{Rank: "GYSGT", Active: "JUN", Reserve: "MAR", ActiveReserve: "MAR"},
	{Rank: "1STSGT/MSGT", Active: "JUN", Reserve: "MAR", ActiveReserve: "MAR"},
	{Rank: "SGTMAJ/MGYSGT", Active: "SEP", Reserve: "MAY", ActiveReserve: "JUN"},
	{Rank: "WO/CWO", Active: "APR", Reserve: "OCT", ActiveReserve: "OCT"},
	{Rank: "2NDLT", Active: "JAN/JUL", Reserve: "APR", ActiveReserve: "N/A"},
	{Rank: "1STLT", Active: "OCT/APR", Reserve: "OCT", ActiveReserve: "OCT"},
	{Rank: "CAPT", Active: "MAY", Reserve: "SEP", ActiveReserve: "JUN"},
	{Rank: "MAJ", Active: "MAY", Reserve: "APR", ActiveReserve: "APR"},
	{Rank: "LTCOL", Active: "APR", Reserve: "APR", ActiveReserve: "APR"},
	{Rank: "COL", Active: "APR", Reserve: "APR", ActiveReserve: "APR"},
}

// DueDates returns a copy of the reporting calendar.
func DueDates() []DueDate {
	out := make([]DueDate, len(dueDates))
	copy(out, dueDates)
	return out
}

// LookupDueDate finds the calendar row for rank. Grouped rows such as
// "WO/CWO" match either member, and CWO2..CWO5 match the CWO prefix.
func LookupDueDate(rank string) (DueDate, bool) {
	want := strings.ToUpper(strings.TrimSpace(rank))
	for _, d := range dueDates {
		for _, member := range strings.Split(d.Rank, "/") {
			if want == member || (member == "CWO" && strings.HasPrefix(want, "CWO")) {
				return d, true
			}
		}
	}
	return DueDate{}, false
}
