package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaVersion identifies the structured report layout for downstream
// consumers (dashboard upload, the gate and comment subcommands).
const SchemaVersion = "1.0"

// Report is the serialized view of a finished run: metadata, every finding
// group, and the decision. Once rendered, the engine's responsibility ends.
type Report struct {
	SchemaVersion string         `json:"schema_version"`
	Run           ScanRun        `json:"run"`
	Groups        []FindingGroup `json:"groups"`
	Decision      GateDecision   `json:"decision"`
}

// NewReport assembles the report, sorting groups into their stable order:
// severity descending, then category, then resource id. Triggering indexes in
// the decision are remapped to the sorted order so they stay valid.
func NewReport(run ScanRun, groups []FindingGroup, decision GateDecision) Report {
	perm := sortedOrder(groups)
	sorted := make([]FindingGroup, len(groups))
	oldToNew := make(map[int]int, len(groups))
	for newIdx, oldIdx := range perm {
		sorted[newIdx] = groups[oldIdx]
		oldToNew[oldIdx] = newIdx
	}
	remapped := make([]int, len(decision.Triggering))
	for i, oldIdx := range decision.Triggering {
		remapped[i] = oldToNew[oldIdx]
	}
	decision.Triggering = remapped

	return Report{
		SchemaVersion: SchemaVersion,
		Run:           run,
		Groups:        sorted,
		Decision:      decision,
	}
}

func sortedOrder(groups []FindingGroup) []int {
	perm := make([]int, len(groups))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ga, gb := groups[perm[a]], groups[perm[b]]
		if ga.Severity().Rank() != gb.Severity().Rank() {
			return ga.Severity().Rank() > gb.Severity().Rank()
		}
		if ga.Category() != gb.Category() {
			return ga.Category() < gb.Category()
		}
		return ga.Resource() < gb.Resource()
	})
	return perm
}

// Marshal renders the structured form. Field order is fixed by the struct
// definitions, so identical inputs render byte-identically and reports can be
// diffed between runs.
func (r Report) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rendering structured report: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseReport loads a previously saved structured report, refusing schema
// versions this build does not understand.
func ParseReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parsing report: %w", err)
	}
	if r.SchemaVersion != SchemaVersion {
		return Report{}, fmt.Errorf("unsupported report schema version %q (want %s)", r.SchemaVersion, SchemaVersion)
	}
	return r, nil
}

// SeverityCounts tallies groups per canonical severity.
func (r Report) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, g := range r.Groups {
		counts[g.Severity()]++
	}
	return counts
}

// CategoryCounts tallies groups per category.
func (r Report) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, g := range r.Groups {
		counts[g.Category()]++
	}
	return counts
}

// MappingGaps collects every normalization gap carried by any member finding,
// deduplicated, in group order.
func (r Report) MappingGaps() []string {
	seen := make(map[string]bool)
	var gaps []string
	for _, g := range r.Groups {
		for _, m := range g.Members {
			if m.MappingGap != "" && !seen[m.MappingGap] {
				seen[m.MappingGap] = true
				gaps = append(gaps, m.MappingGap)
			}
		}
	}
	return gaps
}
