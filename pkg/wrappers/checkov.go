package wrappers

import (
	"encoding/json"
	"fmt"

	"github.com/user/secgate/pkg/engine"
)

// CheckovWrapper implements the Scanner interface for Checkov.
type CheckovWrapper struct{}

func (c *CheckovWrapper) Name() string {
	return "checkov"
}

func (c *CheckovWrapper) Command(target string) (string, []string, string) {
	// --soft-fail keeps the exit code at 0 whether or not checks fail; the
	// gate decision belongs to the engine, not the tool.
	return "checkov", []string{
		"--directory", target,
		"--framework", "terraform",
		"--output", "json",
		"--quiet", "--compact",
		"--soft-fail",
	}, ""
}

func (c *CheckovWrapper) ExitOK(code int) bool {
	// With --soft-fail checkov exits 0; 1 still appears on some older
	// releases when checks fail.
	return code == 0 || code == 1
}

type checkovReport struct {
	Summary struct {
		Passed        int `json:"passed"`
		Failed        int `json:"failed"`
		Skipped       int `json:"skipped"`
		ParsingErrors int `json:"parsing_errors"`
	} `json:"summary"`
	Results struct {
		FailedChecks []checkovCheck `json:"failed_checks"`
	} `json:"results"`
}

type checkovCheck struct {
	CheckID       string `json:"check_id"`
	CheckName     string `json:"check_name"`
	FilePath      string `json:"file_path"`
	FileLineRange []int  `json:"file_line_range"`
	Resource      string `json:"resource"`
	Guideline     string `json:"guideline"`
}

func (c *CheckovWrapper) Parse(stdout []byte) ([]engine.RawFinding, error) {
	if len(stdout) == 0 {
		return nil, fmt.Errorf("empty checkov output")
	}

	// Checkov emits a single report object for one framework and an array of
	// them when several frameworks ran; accept both.
	var reports []checkovReport
	var single checkovReport
	if err := json.Unmarshal(stdout, &single); err == nil {
		reports = []checkovReport{single}
	} else if err := json.Unmarshal(stdout, &reports); err != nil {
		return nil, fmt.Errorf("parsing checkov JSON: %w", err)
	}

	var findings []engine.RawFinding
	for _, report := range reports {
		for _, check := range report.Results.FailedChecks {
			raw := engine.RawFinding{
				RuleID:   check.CheckID,
				Message:  check.CheckName,
				File:     check.FilePath,
				Resource: check.Resource,
			}
			if len(check.FileLineRange) == 2 {
				raw.Line = check.FileLineRange[0]
				raw.EndLine = check.FileLineRange[1]
			}
			findings = append(findings, raw)
		}
	}
	return findings, nil
}
