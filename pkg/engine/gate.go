package engine

import (
	"fmt"
	"sort"
)

// Outcome is the terminal gate verdict.
type Outcome string

const (
	OutcomePass Outcome = "PASS"
	OutcomeWarn Outcome = "WARN"
	OutcomeFail Outcome = "FAIL"
)

// OverrideRule forces FAIL when any group member matches the severity and
// category pair, regardless of aggregate score.
type OverrideRule struct {
	Severity Severity `yaml:"severity" json:"severity"`
	Category Category `yaml:"category" json:"category"`
}

func (r OverrideRule) String() string {
	return fmt.Sprintf("%s in %s", r.Severity, r.Category)
}

// GatePolicy is the full decision configuration: score thresholds, the
// always-fail override list, and which tools must produce usable output.
type GatePolicy struct {
	SeverityPolicy `yaml:",inline" json:"scoring"`

	FailThreshold float64        `yaml:"fail_threshold" json:"fail_threshold"`
	WarnThreshold float64        `yaml:"warn_threshold" json:"warn_threshold"`
	Overrides     []OverrideRule `yaml:"overrides" json:"overrides"`
	RequiredTools []string       `yaml:"required_tools" json:"required_tools"`
}

// DefaultGatePolicy pairs the default weights with the standard override
// list. It exists to be shown and edited, not to override explicit
// configuration.
func DefaultGatePolicy() GatePolicy {
	return GatePolicy{
		SeverityPolicy: DefaultPolicy(),
		FailThreshold:  10,
		WarnThreshold:  4,
		Overrides: []OverrideRule{
			{Severity: SeverityCritical, Category: CategoryIdentityAndAccess},
			{Severity: SeverityCritical, Category: CategorySecrets},
		},
		RequiredTools: []string{"checkov", "tfsec"},
	}
}

// GateDecision is the terminal verdict for a scan run. Created once after all
// groups are scored; immutable from then on.
type GateDecision struct {
	Outcome    Outcome `json:"outcome"`
	TotalScore float64 `json:"total_score"`
	// Triggering indexes into the report's group list; the groups that caused
	// a non-PASS outcome, highest score first.
	Triggering []int      `json:"triggering_groups"`
	Reasons    []string   `json:"reasons"`
	Policy     GatePolicy `json:"policy"`
}

// Decide applies policy to scored groups and the run's degradation state.
// Same groups + same policy always yields the same decision.
func Decide(policy GatePolicy, groups []FindingGroup, failedRequired []string) GateDecision {
	decision := GateDecision{Outcome: OutcomePass, Policy: policy}

	total := 0.0
	for _, g := range groups {
		total += g.Score
	}
	decision.TotalScore = total

	// Hard overrides first: a single critical IAM or secrets finding fails
	// the gate no matter how low the aggregate score is.
	overridden := map[int]bool{}
	for _, rule := range policy.Overrides {
		for i, g := range groups {
			if g.Contains(rule.Severity, rule.Category) {
				decision.Outcome = OutcomeFail
				if !overridden[i] {
					overridden[i] = true
					decision.Reasons = append(decision.Reasons,
						fmt.Sprintf("override: %s (%s)", rule, g.Representative.RuleID))
				}
			}
		}
	}

	switch {
	case decision.Outcome == OutcomeFail:
		// Keep the override reasons; threshold reasons would be noise.
	case total >= policy.FailThreshold:
		decision.Outcome = OutcomeFail
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("total score %.1f >= fail threshold %.1f", total, policy.FailThreshold))
	case total >= policy.WarnThreshold:
		decision.Outcome = OutcomeWarn
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("total score %.1f >= warn threshold %.1f", total, policy.WarnThreshold))
	}

	// Degraded-run floor: a required tool without usable output means absence
	// of a signal, which is never evidence of safety.
	for _, tool := range policy.RequiredTools {
		for _, failed := range failedRequired {
			if tool != failed {
				continue
			}
			if decision.Outcome == OutcomePass {
				decision.Outcome = OutcomeWarn
			}
			decision.Reasons = append(decision.Reasons,
				fmt.Sprintf("required tool %s produced no usable output", tool))
		}
	}

	decision.Triggering = triggering(decision.Outcome, groups, overridden, policy)
	return decision
}

// triggering selects the groups responsible for a non-PASS outcome: every
// override-matched group plus every group with a nonzero score, ordered by
// score descending then the report's stable group order.
func triggering(outcome Outcome, groups []FindingGroup, overridden map[int]bool, policy GatePolicy) []int {
	if outcome == OutcomePass {
		return nil
	}
	var idx []int
	for i, g := range groups {
		if overridden[i] || g.Score > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if overridden[idx[a]] != overridden[idx[b]] {
			return overridden[idx[a]]
		}
		return groups[idx[a]].Score > groups[idx[b]].Score
	})
	return idx
}
