package wrappers

import (
	"encoding/json"
	"fmt"

	"github.com/user/secgate/pkg/engine"
)

// TfsecWrapper implements the Scanner interface for tfsec.
type TfsecWrapper struct{}

func (t *TfsecWrapper) Name() string {
	return "tfsec"
}

func (t *TfsecWrapper) Command(target string) (string, []string, string) {
	return "tfsec", []string{target, "--format", "json", "--soft-fail"}, ""
}

func (t *TfsecWrapper) ExitOK(code int) bool {
	// 0 with --soft-fail; 1 means findings on builds without it.
	return code == 0 || code == 1
}

type tfsecReport struct {
	Results []tfsecResult `json:"results"`
}

type tfsecResult struct {
	RuleID      string `json:"rule_id"`
	LongID      string `json:"long_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Resource    string `json:"resource"`
	Location    struct {
		Filename  string `json:"filename"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	} `json:"location"`
}

func (t *TfsecWrapper) Parse(stdout []byte) ([]engine.RawFinding, error) {
	if len(stdout) == 0 {
		return nil, fmt.Errorf("empty tfsec output")
	}
	var report tfsecReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, fmt.Errorf("parsing tfsec JSON: %w", err)
	}

	findings := make([]engine.RawFinding, 0, len(report.Results))
	for _, res := range report.Results {
		// Newer tfsec moved the stable identifier to long_id.
		ruleID := res.LongID
		if ruleID == "" {
			ruleID = res.RuleID
		}
		findings = append(findings, engine.RawFinding{
			RuleID:   ruleID,
			Message:  res.Description,
			File:     res.Location.Filename,
			Line:     res.Location.StartLine,
			EndLine:  res.Location.EndLine,
			Severity: res.Severity,
			Resource: res.Resource,
		})
	}
	return findings, nil
}
