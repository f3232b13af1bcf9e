package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Narrative renders the report as markdown suitable for a PR review comment:
// status line, summary tables, triggering groups first, then the remaining
// findings, degraded-run markers and mapping gaps. Deterministic for
// identical reports.
func (r Report) Narrative() string {
	var sb strings.Builder

	sb.WriteString("## Security Scan Results\n\n")
	sb.WriteString(fmt.Sprintf("**Gate:** %s %s\n", outcomeIcon(r.Decision.Outcome), r.Decision.Outcome))
	sb.WriteString(fmt.Sprintf("**Target:** `%s`\n", r.Run.Target))
	sb.WriteString(fmt.Sprintf("**Run:** `%s` at %s\n\n", r.Run.ID, r.Run.StartedAt.Format("2006-01-02 15:04:05 MST")))

	if r.Run.Degraded {
		sb.WriteString("> **Degraded run** — one or more scanners produced no usable output:\n")
		for _, reason := range r.Run.DegradedReasons {
			sb.WriteString(fmt.Sprintf("> - %s\n", reason))
		}
		sb.WriteString(">\n> Absence of a signal is not evidence of safety.\n\n")
	}

	writeSummary(&sb, r)

	if len(r.Decision.Triggering) > 0 {
		sb.WriteString("### Triggering Findings\n\n")
		sb.WriteString("| Severity | Category | Resource | Rule | Tools | Score |\n")
		sb.WriteString("|----------|----------|----------|------|-------|-------|\n")
		for _, idx := range r.Decision.Triggering {
			writeGroupRow(&sb, r.Groups[idx])
		}
		sb.WriteString("\n")
	}

	if rest := r.nonTriggering(); len(rest) > 0 {
		sb.WriteString("### Other Findings\n\n")
		sb.WriteString("| Severity | Category | Resource | Rule | Tools | Score |\n")
		sb.WriteString("|----------|----------|----------|------|-------|-------|\n")
		for _, g := range rest {
			writeGroupRow(&sb, g)
		}
		sb.WriteString("\n")
	}

	if files := r.affectedFiles(); len(files) > 0 {
		sb.WriteString("### Most Affected Files\n\n")
		sb.WriteString("| File | Findings |\n|------|----------|\n")
		for _, fc := range files {
			sb.WriteString(fmt.Sprintf("| `%s` | %d |\n", fc.file, fc.count))
		}
		sb.WriteString("\n")
	}

	if gaps := r.MappingGaps(); len(gaps) > 0 {
		sb.WriteString("### Mapping Gaps\n\n")
		for _, gap := range gaps {
			sb.WriteString(fmt.Sprintf("- %s\n", gap))
		}
		sb.WriteString("\n")
	}

	if len(r.Decision.Reasons) > 0 {
		sb.WriteString("### Decision Reasons\n\n")
		for _, reason := range r.Decision.Reasons {
			sb.WriteString(fmt.Sprintf("- %s\n", reason))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("Tools: %s. Report schema %s.\n", strings.Join(r.Run.Tools, ", "), r.SchemaVersion))
	return sb.String()
}

func writeSummary(sb *strings.Builder, r Report) {
	sevCounts := r.SeverityCounts()
	sb.WriteString("### Summary\n\n")
	sb.WriteString(fmt.Sprintf("%d finding group(s), total score %.1f "+
		"(warn at %.1f, fail at %.1f).\n\n",
		len(r.Groups), r.Decision.TotalScore,
		r.Decision.Policy.WarnThreshold, r.Decision.Policy.FailThreshold))
	sb.WriteString("| Severity | Count |\n|----------|-------|\n")
	for _, sev := range Severities {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", sev, sevCounts[sev]))
	}
	sb.WriteString("\n")

	catCounts := r.CategoryCounts()
	var lines []string
	for _, cat := range Categories {
		if catCounts[cat] > 0 {
			lines = append(lines, fmt.Sprintf("| %s | %d |", cat, catCounts[cat]))
		}
	}
	if len(lines) > 0 {
		sb.WriteString("| Category | Count |\n|----------|-------|\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n\n")
	}
}

func writeGroupRow(sb *strings.Builder, g FindingGroup) {
	tools := make([]string, 0, len(g.Members))
	seen := map[string]bool{}
	for _, m := range g.Members {
		if !seen[m.SourceTool] {
			seen[m.SourceTool] = true
			tools = append(tools, m.SourceTool)
		}
	}
	sort.Strings(tools)
	sb.WriteString(fmt.Sprintf("| %s | %s | `%s` | %s | %s | %.1f |\n",
		g.Severity(), g.Category(), g.Resource(),
		truncate(g.Representative.RuleID, 60),
		strings.Join(tools, ", "), g.Score))
}

// nonTriggering returns groups not referenced by the decision, in report order.
func (r Report) nonTriggering() []FindingGroup {
	triggered := make(map[int]bool, len(r.Decision.Triggering))
	for _, idx := range r.Decision.Triggering {
		triggered[idx] = true
	}
	var rest []FindingGroup
	for i, g := range r.Groups {
		if !triggered[i] {
			rest = append(rest, g)
		}
	}
	return rest
}

type fileCount struct {
	file  string
	count int
}

func (r Report) affectedFiles() []fileCount {
	counts := make(map[string]int)
	for _, g := range r.Groups {
		for _, m := range g.Members {
			if m.File != "" {
				counts[m.File]++
			}
		}
	}
	files := make([]fileCount, 0, len(counts))
	for file, count := range counts {
		files = append(files, fileCount{file, count})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].count != files[j].count {
			return files[i].count > files[j].count
		}
		return files[i].file < files[j].file
	})
	if len(files) > 5 {
		files = files[:5]
	}
	return files
}

func outcomeIcon(o Outcome) string {
	switch o {
	case OutcomePass:
		return "🟢"
	case OutcomeWarn:
		return "🟡"
	default:
		return "🔴"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
