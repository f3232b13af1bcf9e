package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/user/secgate/pkg/config"
	"github.com/user/secgate/pkg/engine"
	"github.com/user/secgate/pkg/logx"
)

// Runner drives one scan: adapters in parallel, a barrier, then the pure
// normalize → group → score → decide → report chain.
type Runner struct {
	Config     *config.Config
	Normalizer *engine.Normalizer
	// Scanners maps tool name to wrapper. Populated from configuration; tests
	// substitute fakes here.
	Scanners map[string]Scanner
}

// Scanner is the adapter capability the runner needs; it matches
// wrappers.Scanner so production wrappers plug in directly.
type Scanner interface {
	Name() string
	Command(target string) (bin string, args []string, dir string)
	ExitOK(code int) bool
	Parse(stdout []byte) ([]engine.RawFinding, error)
}

// Invoker runs one scanner once. Production use is wrappers.Invoke; tests
// swap it to avoid spawning processes.
type Invoker func(ctx context.Context, s Scanner, target string, timeout time.Duration) (engine.ToolInvocation, []engine.RawFinding)

// Run executes the full pipeline against target. Configuration errors come
// back as an error before any scanner runs; scanner failures degrade the run
// instead.
func (r *Runner) Run(ctx context.Context, target string, invoke Invoker) (engine.Report, error) {
	run := engine.NewScanRun(target, r.toolNames())
	started := time.Now()

	type result struct {
		tool     string
		inv      engine.ToolInvocation
		findings []engine.RawFinding
	}

	// One task per tool; Wait() is the synchronization barrier. Nothing is
	// normalized until every adapter has reached a terminal state.
	var mu sync.Mutex
	results := make(map[string]result, len(r.Scanners))
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.toolNames() {
		name := name
		scanner := r.Scanners[name]
		tc := r.Config.Tools[name]
		g.Go(func() error {
			inv, findings := r.invokeWithRetry(gctx, scanner, target, tc, invoke)
			mu.Lock()
			results[name] = result{tool: name, inv: inv, findings: findings}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return engine.Report{}, err
	}

	// Read-only merge of the independent invocation records, in tool order.
	var raws []result
	for _, name := range r.toolNames() {
		res := results[name]
		run.RecordInvocation(res.inv)
		raws = append(raws, res)
		if res.inv.Usable() {
			logx.Infof("[%s] %s in %s (%d findings)", name, res.inv.Status, res.inv.Duration.Round(time.Millisecond), res.inv.Findings)
		} else {
			logx.Warnf("[%s] %s after %s: %s", name, res.inv.Status, res.inv.Duration.Round(time.Millisecond), res.inv.Error)
		}
	}
	run.Duration = time.Since(started)

	var canonical []engine.CanonicalFinding
	for _, res := range raws {
		normalized, err := r.Normalizer.NormalizeAll(res.findings, res.tool)
		if err != nil {
			return engine.Report{}, fmt.Errorf("normalizing %s findings: %w", res.tool, err)
		}
		canonical = append(canonical, normalized...)
	}

	groups := engine.Group(canonical)
	groups, total := r.Config.Policy.SeverityPolicy.ScoreAll(groups)
	logx.Debugf("%d canonical findings, %d groups, total score %.1f", len(canonical), len(groups), total)

	decision := engine.Decide(r.Config.Policy, groups, run.FailedTools())
	return engine.NewReport(*run, groups, decision), nil
}

// invokeWithRetry runs one adapter with its bounded retry budget and
// exponential backoff. Each retry replaces the previous invocation record.
func (r *Runner) invokeWithRetry(ctx context.Context, s Scanner, target string, tc config.ToolConfig, invoke Invoker) (engine.ToolInvocation, []engine.RawFinding) {
	var inv engine.ToolInvocation
	var findings []engine.RawFinding
	attempts := 0

	op := func() error {
		inv, findings = invoke(ctx, s, target, time.Duration(tc.Timeout))
		inv.RetriesUsed = attempts
		attempts++
		if !inv.Usable() {
			return fmt.Errorf("%s: %s", s.Name(), inv.Status)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(tc.Retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		logx.Debugf("[%s] giving up after %d attempt(s): %v", s.Name(), attempts, err)
	}
	return inv, findings
}

func (r *Runner) toolNames() []string {
	return r.Config.ToolNames()
}
