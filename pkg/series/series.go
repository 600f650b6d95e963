// Package series derives per-benchmark time series from a ledger snapshot.
//
// A series is keyed by (tool, name) within one group. Values are compared as
// float64 and never converted between units; mixing units for the same key is
// not detected.
package series

import (
	"sort"

	"github.com/mslinn/benchledger/pkg/ledger"
)

// Point is one measurement of a series
type Point struct {
	Date      int64   `json:"date"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	CommitID  string  `json:"commitId"`
	CommitURL string  `json:"commitUrl,omitempty"`
	Distinct  bool    `json:"distinct"`
	Extra     string  `json:"extra"`
}

// Query returns the series for benchName under tool in group, ascending by
// date. Points with equal dates keep append order. An empty, non-nil slice
// means no data yet.
func Query(l *ledger.Ledger, group, tool, benchName string) []Point {
	points := []Point{}
	if l == nil {
		return points
	}

	for _, e := range l.Entries[group] {
		if e.Tool != tool {
			continue
		}
		for _, m := range e.Benches {
			if m.Name != benchName {
				continue
			}
			points = append(points, Point{
				Date:      e.Date,
				Value:     m.Value,
				Unit:      m.Unit,
				CommitID:  e.Commit.ID,
				CommitURL: e.Commit.URL,
				Distinct:  e.Commit.Distinct,
				Extra:     m.Extra,
			})
			break // names are unique within an entry
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}

// BenchmarkNames returns the distinct benchmark names seen for tool in group,
// in first-seen append order
func BenchmarkNames(l *ledger.Ledger, group, tool string) []string {
	names := []string{}
	if l == nil {
		return names
	}

	seen := make(map[string]bool)
	for _, e := range l.Entries[group] {
		if e.Tool != tool {
			continue
		}
		for _, m := range e.Benches {
			if !seen[m.Name] {
				seen[m.Name] = true
				names = append(names, m.Name)
			}
		}
	}
	return names
}

// Latest returns the most recent point by date; on equal dates the entry
// appended last wins. A *ledger.NotFoundError is returned for an empty series.
func Latest(l *ledger.Ledger, group, tool, benchName string) (Point, error) {
	points := Query(l, group, tool, benchName)
	if len(points) == 0 {
		return Point{}, &ledger.NotFoundError{Group: group, Tool: tool, Name: benchName}
	}
	// stable ordering puts the last appended of equal dates at the end
	return points[len(points)-1], nil
}

// Groups returns the group keys of the ledger in sorted order
func Groups(l *ledger.Ledger) []string {
	groups := []string{}
	if l == nil {
		return groups
	}
	for g := range l.Entries {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Tools returns the tools used in group, in first-seen append order
func Tools(l *ledger.Ledger, group string) []string {
	tools := []string{}
	if l == nil {
		return tools
	}

	seen := make(map[string]bool)
	for _, e := range l.Entries[group] {
		if !seen[e.Tool] {
			seen[e.Tool] = true
			tools = append(tools, e.Tool)
		}
	}
	return tools
}

// OnlyDistinct drops points whose commit did not produce a distinct build
func OnlyDistinct(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Distinct {
			out = append(out, p)
		}
	}
	return out
}

// Change returns last/previous for the final two points of a series.
// ok is false when there are fewer than two points or the previous value is zero.
func Change(points []Point) (ratio float64, ok bool) {
	if len(points) < 2 {
		return 0, false
	}
	prev := points[len(points)-2].Value
	if prev == 0 {
		return 0, false
	}
	return points[len(points)-1].Value / prev, true
}
