package ruleset

import (
	"sort"
)

// Report is a deterministic inventory of a ruleset for reviewers: how many
// directives exist and how many of them are machine-checkable.
type Report struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Hash          string         `json:"hash"`
	Origin        string         `json:"origin"`
	Total         int            `json:"total_directives"`
	UniqueIDs     []int          `json:"unique_ids"`
	ByTier        map[Tier]int   `json:"by_tier"`
	ChecksByKind  map[string]int `json:"checks_by_kind"`
	Checkable     int            `json:"machine_checkable"`
	NotCheckable  int            `json:"not_checkable"`
	UnknownChecks int            `json:"unknown_checks"`
	Rows          []ReportRow    `json:"directives"`
}

// ReportRow summarizes one directive.
type ReportRow struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Tier   Tier     `json:"tier"`
	Checks []string `json:"checks"`
}

// NewReport builds the inventory of rs. Rows are sorted by directive id.
func NewReport(rs *Ruleset) *Report {
	r := &Report{
		Name:         rs.Name,
		Version:      rs.Version,
		Hash:         rs.Hash,
		Origin:       rs.Origin,
		Total:        len(rs.Directives),
		ByTier:       make(map[Tier]int),
		ChecksByKind: make(map[string]int),
	}

	ids := make(map[int]bool)
	for _, d := range rs.Directives {
		ids[d.ID] = true
		r.ByTier[d.Tier]++

		row := ReportRow{ID: d.ID, Title: d.Title, Tier: d.Tier, Checks: []string{}}
		checkable := false
		for _, c := range d.Checks {
			kind := string(c.Kind())
			if u, ok := c.(Unknown); ok {
				kind = "unknown:" + u.Type
				r.UnknownChecks++
			} else {
				checkable = true
			}
			r.ChecksByKind[string(c.Kind())]++
			row.Checks = append(row.Checks, kind)
		}
		if checkable {
			r.Checkable++
		} else {
			r.NotCheckable++
		}
		r.Rows = append(r.Rows, row)
	}

	for id := range ids {
		r.UniqueIDs = append(r.UniqueIDs, id)
	}
	sort.Ints(r.UniqueIDs)
	sort.SliceStable(r.Rows, func(i, j int) bool { return r.Rows[i].ID < r.Rows[j].ID })
	return r
}
