package engine

import "sort"

// FindingGroup is a cluster of canonical findings judged to describe the same
// underlying issue: same resource, same category, overlapping line spans (or
// all template-level). Corroboration counts distinct source tools.
type FindingGroup struct {
	Representative CanonicalFinding   `json:"representative"`
	Members        []CanonicalFinding `json:"members"`
	Corroboration  int                `json:"corroboration"`
	Score          float64            `json:"score"`
}

// Resource returns the group's logical resource address.
func (g FindingGroup) Resource() string { return g.Representative.Resource }

// Category returns the group's category.
func (g FindingGroup) Category() Category { return g.Representative.Category }

// Severity returns the representative's canonical severity.
func (g FindingGroup) Severity() Severity { return g.Representative.Severity }

// Contains reports whether any member matches the severity/category pair.
func (g FindingGroup) Contains(sev Severity, cat Category) bool {
	for _, m := range g.Members {
		if m.Severity == sev && m.Category == cat {
			return true
		}
	}
	return false
}

// Group partitions findings into FindingGroups. The partition is independent
// of input order and idempotent: grouping the representatives of an existing
// partition reproduces it.
func Group(findings []CanonicalFinding) []FindingGroup {
	// Bucket by (resource, category) first; spans only matter inside a bucket.
	type key struct {
		resource string
		category Category
	}
	buckets := make(map[key][]CanonicalFinding)
	var order []key
	for _, f := range findings {
		k := key{f.Resource, f.Category}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], f)
	}
	// Deterministic bucket order regardless of input order.
	sort.Slice(order, func(i, j int) bool {
		if order[i].resource != order[j].resource {
			return order[i].resource < order[j].resource
		}
		return order[i].category < order[j].category
	})

	var groups []FindingGroup
	for _, k := range order {
		members := buckets[k]
		if k.resource == TemplateLevel {
			// Template-wide findings in one category are one issue.
			groups = append(groups, makeGroup(members))
			continue
		}
		groups = append(groups, splitBySpan(members)...)
	}
	return groups
}

// splitBySpan merges findings within one bucket whose line spans overlap,
// transitively: interval-merge over span-sorted members.
func splitBySpan(members []CanonicalFinding) []FindingGroup {
	sortMembers(members)
	var groups []FindingGroup
	var current []CanonicalFinding
	currentEnd := 0
	for _, f := range members {
		start, end := f.Span()
		if len(current) > 0 && start <= currentEnd {
			current = append(current, f)
			if end > currentEnd {
				currentEnd = end
			}
			continue
		}
		if len(current) > 0 {
			groups = append(groups, makeGroup(current))
		}
		current = []CanonicalFinding{f}
		currentEnd = end
	}
	if len(current) > 0 {
		groups = append(groups, makeGroup(current))
	}
	return groups
}

func makeGroup(members []CanonicalFinding) FindingGroup {
	sortMembers(members)
	tools := make(map[string]struct{})
	rep := members[0]
	for _, f := range members {
		tools[f.SourceTool] = struct{}{}
		if better(f, rep) {
			rep = f
		}
	}
	return FindingGroup{
		Representative: rep,
		Members:        members,
		Corroboration:  len(tools),
	}
}

// better reports whether a should replace b as representative: higher
// canonical severity wins, ties go to the lexicographically earlier tool name
// so output stays deterministic.
func better(a, b CanonicalFinding) bool {
	if a.Severity.Rank() != b.Severity.Rank() {
		return a.Severity.Rank() > b.Severity.Rank()
	}
	return a.SourceTool < b.SourceTool
}

// sortMembers orders findings deterministically: span start, then severity
// rank descending, then tool, then rule id.
func sortMembers(members []CanonicalFinding) {
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		as, _ := a.Span()
		bs, _ := b.Span()
		if as != bs {
			return as < bs
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.SourceTool != b.SourceTool {
			return a.SourceTool < b.SourceTool
		}
		return a.RuleID < b.RuleID
	})
}

// Representatives extracts each group's representative finding. Feeding them
// back through Group yields the same partition (dedup idempotence).
func Representatives(groups []FindingGroup) []CanonicalFinding {
	reps := make([]CanonicalFinding, 0, len(groups))
	for _, g := range groups {
		reps = append(reps, g.Representative)
	}
	return reps
}
