package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() ScanRun {
	return ScanRun{
		ID:        "run-1",
		Target:    "terraform/vulnerable-examples",
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tools:     []string{"checkov", "tfsec"},
		Invocations: []ToolInvocation{
			{Tool: "checkov", Status: InvocationSucceeded, Findings: 2},
			{Tool: "tfsec", Status: InvocationSucceeded, Findings: 1},
		},
	}
}

func sampleGroups() []FindingGroup {
	policy := DefaultGatePolicy()
	groups := []FindingGroup{
		groupOf(SeverityLow, CategoryLifecycle, 1),
		groupOf(SeverityCritical, CategoryNetworkExposure, 1),
		groupOf(SeverityCritical, CategoryEncryptionAtRest, 2),
	}
	scored, _ := policy.SeverityPolicy.ScoreAll(groups)
	return scored
}

func TestReportGroupOrdering(t *testing.T) {
	groups := sampleGroups()
	decision := Decide(DefaultGatePolicy(), groups, nil)
	report := NewReport(sampleRun(), groups, decision)

	require.Len(t, report.Groups, 3)
	// Severity desc, then category asc.
	assert.Equal(t, CategoryEncryptionAtRest, report.Groups[0].Category())
	assert.Equal(t, CategoryNetworkExposure, report.Groups[1].Category())
	assert.Equal(t, SeverityLow, report.Groups[2].Severity())
}

func TestReportTriggeringIndexesSurviveSorting(t *testing.T) {
	groups := sampleGroups()
	decision := Decide(DefaultGatePolicy(), groups, nil)
	report := NewReport(sampleRun(), groups, decision)

	require.NotEmpty(t, report.Decision.Triggering)
	for _, idx := range report.Decision.Triggering {
		require.Less(t, idx, len(report.Groups))
	}
	// Highest-scoring group is referenced first and exists at the remapped
	// position.
	first := report.Groups[report.Decision.Triggering[0]]
	for _, g := range report.Groups {
		assert.LessOrEqual(t, g.Score, first.Score+1e-9)
	}
}

func TestReportMarshalByteIdentical(t *testing.T) {
	groups := sampleGroups()
	decision := Decide(DefaultGatePolicy(), groups, nil)
	report := NewReport(sampleRun(), groups, decision)

	a, err := report.Marshal()
	require.NoError(t, err)
	b, err := report.Marshal()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReportRoundTrip(t *testing.T) {
	groups := sampleGroups()
	decision := Decide(DefaultGatePolicy(), groups, nil)
	report := NewReport(sampleRun(), groups, decision)

	data, err := report.Marshal()
	require.NoError(t, err)
	parsed, err := ParseReport(data)
	require.NoError(t, err)
	assert.Equal(t, report.Decision.Outcome, parsed.Decision.Outcome)
	assert.Equal(t, len(report.Groups), len(parsed.Groups))
	assert.Equal(t, report.Run.Target, parsed.Run.Target)
}

func TestParseReportRejectsUnknownSchema(t *testing.T) {
	_, err := ParseReport([]byte(`{"schema_version": "99.0"}`))
	assert.ErrorContains(t, err, "schema version")
}

func TestNarrativeContent(t *testing.T) {
	groups := sampleGroups()
	run := sampleRun()
	run.Degraded = true
	run.DegradedReasons = []string{"trivy: timed-out"}
	decision := Decide(DefaultGatePolicy(), groups, nil)
	report := NewReport(run, groups, decision)

	md := report.Narrative()
	assert.Contains(t, md, "## Security Scan Results")
	assert.Contains(t, md, "FAIL")
	assert.Contains(t, md, "Degraded run")
	assert.Contains(t, md, "trivy: timed-out")
	assert.Contains(t, md, "### Triggering Findings")

	// Deterministic rendering.
	assert.Equal(t, md, report.Narrative())
}

func TestScanRunRecordInvocationReplaces(t *testing.T) {
	run := NewScanRun("target", []string{"checkov"})
	run.RecordInvocation(ToolInvocation{Tool: "checkov", Status: InvocationTimedOut})
	assert.True(t, run.Degraded)

	// A retry replaces, not appends.
	run.RecordInvocation(ToolInvocation{Tool: "checkov", Status: InvocationSucceeded, RetriesUsed: 1})
	require.Len(t, run.Invocations, 1)
	assert.False(t, run.Degraded)
	assert.Empty(t, run.FailedTools())
}
