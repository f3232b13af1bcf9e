package wrappers

import (
	"encoding/json"
	"fmt"

	"github.com/user/secgate/pkg/engine"
)

// TrivyWrapper implements the Scanner interface for trivy's misconfiguration
// scanner (`trivy config`).
type TrivyWrapper struct{}

func (t *TrivyWrapper) Name() string {
	return "trivy"
}

func (t *TrivyWrapper) Command(target string) (string, []string, string) {
	return "trivy", []string{
		"config",
		"--format", "json",
		"--quiet",
		"--exit-code", "0",
		target,
	}, ""
}

func (t *TrivyWrapper) ExitOK(code int) bool {
	return code == 0
}

type trivyReport struct {
	SchemaVersion int           `json:"SchemaVersion"`
	Results       []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target            string         `json:"Target"`
	Misconfigurations []trivyMisconf `json:"Misconfigurations"`
}

type trivyMisconf struct {
	ID            string `json:"ID"`
	Title         string `json:"Title"`
	Description   string `json:"Description"`
	Severity      string `json:"Severity"`
	Status        string `json:"Status"`
	CauseMetadata struct {
		Resource  string `json:"Resource"`
		StartLine int    `json:"StartLine"`
		EndLine   int    `json:"EndLine"`
	} `json:"CauseMetadata"`
}

func (t *TrivyWrapper) Parse(stdout []byte) ([]engine.RawFinding, error) {
	if len(stdout) == 0 {
		return nil, fmt.Errorf("empty trivy output")
	}
	var report trivyReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, fmt.Errorf("parsing trivy JSON: %w", err)
	}

	var findings []engine.RawFinding
	for _, res := range report.Results {
		for _, mc := range res.Misconfigurations {
			if mc.Status != "" && mc.Status != "FAIL" {
				continue
			}
			findings = append(findings, engine.RawFinding{
				RuleID:   mc.ID,
				Message:  mc.Title,
				File:     res.Target,
				Line:     mc.CauseMetadata.StartLine,
				EndLine:  mc.CauseMetadata.EndLine,
				Severity: mc.Severity,
				Resource: mc.CauseMetadata.Resource,
			})
		}
	}
	return findings, nil
}
