package wrappers

import (
	"encoding/json"
	"fmt"

	"github.com/user/secgate/pkg/engine"
)

// TerraformValidateWrapper implements the Scanner interface for
// `terraform validate -json`. Validation errors are not policy findings, but
// an invalid template means no scanner result can be trusted, so diagnostics
// surface as findings instead of disappearing.
type TerraformValidateWrapper struct{}

func (t *TerraformValidateWrapper) Name() string {
	return "terraform-validate"
}

func (t *TerraformValidateWrapper) Command(target string) (string, []string, string) {
	// Runs inside the target; validate has no directory argument that old
	// terraform releases agree on.
	return "terraform", []string{"validate", "-json"}, target
}

func (t *TerraformValidateWrapper) ExitOK(code int) bool {
	// 0 valid, 1 invalid with diagnostics on stdout.
	return code == 0 || code == 1
}

type tfValidateOutput struct {
	Valid       bool `json:"valid"`
	Diagnostics []struct {
		Severity string `json:"severity"`
		Summary  string `json:"summary"`
		Detail   string `json:"detail"`
		Range    *struct {
			Filename string `json:"filename"`
			Start    struct {
				Line int `json:"line"`
			} `json:"start"`
			End struct {
				Line int `json:"line"`
			} `json:"end"`
		} `json:"range"`
	} `json:"diagnostics"`
}

func (t *TerraformValidateWrapper) Parse(stdout []byte) ([]engine.RawFinding, error) {
	if len(stdout) == 0 {
		return nil, fmt.Errorf("empty terraform validate output")
	}
	var out tfValidateOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("parsing terraform validate JSON: %w", err)
	}
	if out.Valid {
		return nil, nil
	}

	var findings []engine.RawFinding
	for _, diag := range out.Diagnostics {
		msg := diag.Summary
		if diag.Detail != "" {
			msg += ": " + diag.Detail
		}
		raw := engine.RawFinding{
			RuleID:   "TF_VALIDATE",
			Message:  msg,
			Severity: diag.Severity,
		}
		if diag.Range != nil {
			raw.File = diag.Range.Filename
			raw.Line = diag.Range.Start.Line
			raw.EndLine = diag.Range.End.Line
		}
		findings = append(findings, raw)
	}
	return findings, nil
}
