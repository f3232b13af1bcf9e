package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/secgate/pkg/config"
	"github.com/user/secgate/pkg/engine"
)

// fakeScanner satisfies the Scanner capability without any process; the fake
// invoker below returns canned invocations per tool.
type fakeScanner struct{ name string }

func (f fakeScanner) Name() string { return f.name }
func (f fakeScanner) Command(target string) (string, []string, string) {
	return f.name, []string{target}, ""
}
func (f fakeScanner) ExitOK(code int) bool                        { return code == 0 }
func (f fakeScanner) Parse(b []byte) ([]engine.RawFinding, error) { return nil, nil }

type canned struct {
	inv      engine.ToolInvocation
	findings []engine.RawFinding
}

func cannedInvoker(results map[string]canned) Invoker {
	var mu sync.Mutex
	return func(ctx context.Context, s Scanner, target string, timeout time.Duration) (engine.ToolInvocation, []engine.RawFinding) {
		mu.Lock()
		defer mu.Unlock()
		res := results[s.Name()]
		res.inv.Tool = s.Name()
		return res.inv, res.findings
	}
}

func testConfig(t *testing.T, tools ...string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Tools:  map[string]config.ToolConfig{},
		Policy: engine.DefaultGatePolicy(),
	}
	cfg.Policy.RequiredTools = nil
	for _, tool := range tools {
		cfg.Tools[tool] = config.ToolConfig{Timeout: config.Duration(time.Second)}
	}
	return cfg
}

func testRunner(cfg *config.Config) *Runner {
	scanners := map[string]Scanner{}
	for _, name := range cfg.ToolNames() {
		scanners[name] = fakeScanner{name: name}
	}
	return &Runner{Config: cfg, Normalizer: engine.DefaultNormalizer(), Scanners: scanners}
}

func TestRunAllCleanPasses(t *testing.T) {
	// Every scanner succeeds with zero findings: PASS, nothing triggering.
	cfg := testConfig(t, "checkov", "tfsec", "trivy")
	runner := testRunner(cfg)
	invoke := cannedInvoker(map[string]canned{
		"checkov": {inv: engine.ToolInvocation{Status: engine.InvocationSucceeded}},
		"tfsec":   {inv: engine.ToolInvocation{Status: engine.InvocationSucceeded}},
		"trivy":   {inv: engine.ToolInvocation{Status: engine.InvocationSucceeded}},
	})

	report, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePass, report.Decision.Outcome)
	assert.Empty(t, report.Decision.Triggering)
	assert.Empty(t, report.Groups)
	assert.False(t, report.Run.Degraded)
	assert.Len(t, report.Run.Invocations, 3)
}

func TestRunCriticalPublicBucketFails(t *testing.T) {
	// One tool reports a CRITICAL public-bucket finding on app_data: FAIL,
	// and the triggering group references it.
	cfg := testConfig(t, "checkov")
	runner := testRunner(cfg)
	invoke := cannedInvoker(map[string]canned{
		"checkov": {
			inv: engine.ToolInvocation{Status: engine.InvocationSucceeded, Findings: 1},
			findings: []engine.RawFinding{{
				RuleID:   "CKV_GCP_62",
				Message:  "Bucket is public",
				File:     "/storage.tf",
				Line:     1,
				EndLine:  14,
				Resource: "google_storage_bucket.app_data",
			}},
		},
	})

	report, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeFail, report.Decision.Outcome)
	require.Len(t, report.Decision.Triggering, 1)
	group := report.Groups[report.Decision.Triggering[0]]
	assert.Equal(t, "google_storage_bucket.app_data", group.Resource())
	assert.Equal(t, engine.SeverityCritical, group.Severity())
}

func TestRunCorroborationMergesAcrossTools(t *testing.T) {
	// Two tools report the same MEDIUM missing-logging issue on the same
	// resource: one group, corroboration 2, score carrying the bonus.
	cfg := testConfig(t, "checkov", "tfsec")
	runner := testRunner(cfg)
	invoke := cannedInvoker(map[string]canned{
		"checkov": {
			inv: engine.ToolInvocation{Status: engine.InvocationSucceeded, Findings: 1},
			findings: []engine.RawFinding{{
				RuleID: "CKV2_GCP_5", Message: "Logging disabled",
				File: "/storage.tf", Line: 1, EndLine: 14,
				Resource: "google_storage_bucket.app_data",
			}},
		},
		"tfsec": {
			inv: engine.ToolInvocation{Status: engine.InvocationSucceeded, Findings: 1},
			findings: []engine.RawFinding{{
				RuleID: "google-sql-enable-pg-log-connections", Severity: "MEDIUM",
				Message: "Logging disabled", File: "storage.tf", Line: 4, EndLine: 9,
				Resource: "google_storage_bucket.app_data",
			}},
		},
	})

	report, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)

	var logging *engine.FindingGroup
	for i := range report.Groups {
		if report.Groups[i].Category() == engine.CategoryLogging {
			logging = &report.Groups[i]
		}
	}
	require.NotNil(t, logging)
	assert.Equal(t, 2, logging.Corroboration)
	// severity 2 × category 1 × (1 + 0.5): the corroboration bonus shows up.
	assert.InDelta(t, 3.0, logging.Score, 1e-9)
}

func TestRunRequiredToolTimeoutDegrades(t *testing.T) {
	// The required tfsec adapter times out while everything else is clean:
	// never PASS, and the degraded marker names the tool.
	cfg := testConfig(t, "checkov", "tfsec")
	tc := cfg.Tools["tfsec"]
	tc.Required = true
	cfg.Tools["tfsec"] = tc
	cfg.Policy.RequiredTools = []string{"tfsec"}
	runner := testRunner(cfg)

	invoke := cannedInvoker(map[string]canned{
		"checkov": {inv: engine.ToolInvocation{Status: engine.InvocationSucceeded}},
		"tfsec":   {inv: engine.ToolInvocation{Status: engine.InvocationTimedOut, Error: "timed out after 1s"}},
	})

	report, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeWarn, report.Decision.Outcome)
	assert.True(t, report.Run.Degraded)
	require.NotEmpty(t, report.Run.DegradedReasons)
	assert.Contains(t, report.Run.DegradedReasons[0], "tfsec")
	require.NotEmpty(t, report.Decision.Reasons)
	assert.Contains(t, report.Decision.Reasons[0], "tfsec")
}

func TestRunOptionalToolFailureStillDegradesRun(t *testing.T) {
	// An optional tool crashing marks the run degraded in the report even
	// though the outcome can stay PASS.
	cfg := testConfig(t, "checkov", "trivy")
	runner := testRunner(cfg)
	invoke := cannedInvoker(map[string]canned{
		"checkov": {inv: engine.ToolInvocation{Status: engine.InvocationSucceeded}},
		"trivy":   {inv: engine.ToolInvocation{Status: engine.InvocationCrashed, Error: "boom"}},
	})

	report, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePass, report.Decision.Outcome)
	assert.True(t, report.Run.Degraded)
}

func TestRunRetriesReplaceInvocation(t *testing.T) {
	cfg := testConfig(t, "checkov")
	tc := cfg.Tools["checkov"]
	tc.Retries = 2
	cfg.Tools["checkov"] = tc
	runner := testRunner(cfg)

	var mu sync.Mutex
	attempts := 0
	invoke := func(ctx context.Context, s Scanner, target string, timeout time.Duration) (engine.ToolInvocation, []engine.RawFinding) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return engine.ToolInvocation{Tool: s.Name(), Status: engine.InvocationCrashed}, nil
		}
		return engine.ToolInvocation{Tool: s.Name(), Status: engine.InvocationSucceeded}, nil
	}

	report, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	// One invocation record, reflecting the successful retry.
	require.Len(t, report.Run.Invocations, 1)
	assert.Equal(t, engine.InvocationSucceeded, report.Run.Invocations[0].Status)
	assert.Equal(t, 1, report.Run.Invocations[0].RetriesUsed)
	assert.False(t, report.Run.Degraded)
}

func TestRunDeterministicReport(t *testing.T) {
	cfg := testConfig(t, "checkov", "tfsec")
	runner := testRunner(cfg)
	invoke := cannedInvoker(map[string]canned{
		"checkov": {
			inv: engine.ToolInvocation{Status: engine.InvocationSucceeded, Findings: 1},
			findings: []engine.RawFinding{{
				RuleID: "CKV_GCP_28", File: "/storage.tf", Line: 16, EndLine: 20,
				Resource: "google_storage_bucket_iam_member.public",
			}},
		},
		"tfsec": {inv: engine.ToolInvocation{Status: engine.InvocationSucceeded}},
	})

	first, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), "templates", invoke)
	require.NoError(t, err)

	assert.Equal(t, first.Decision.Outcome, second.Decision.Outcome)
	assert.Equal(t, first.Groups, second.Groups)
}
