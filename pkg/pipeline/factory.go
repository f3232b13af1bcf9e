package pipeline

import (
	"context"
	"time"

	"github.com/user/secgate/pkg/config"
	"github.com/user/secgate/pkg/engine"
	"github.com/user/secgate/pkg/wrappers"
)

// NewRunner wires the configured tools to their wrappers, applying any
// command-template overrides from configuration.
func NewRunner(cfg *config.Config) (*Runner, error) {
	scanners := make(map[string]Scanner, len(cfg.Tools))
	for _, name := range cfg.ToolNames() {
		tc := cfg.Tools[name]
		s, err := wrappers.ForName(name)
		if err != nil {
			return nil, err
		}
		if tc.Command != "" {
			s = wrappers.CommandScanner{Scanner: s, Template: tc.Command, RunInTarget: tc.RunInTarget}
		}
		scanners[name] = s
	}
	return &Runner{
		Config:     cfg,
		Normalizer: engine.DefaultNormalizer(),
		Scanners:   scanners,
	}, nil
}

// DefaultInvoker spawns real scanner processes via wrappers.Invoke.
func DefaultInvoker(ctx context.Context, s Scanner, target string, timeout time.Duration) (engine.ToolInvocation, []engine.RawFinding) {
	return wrappers.Invoke(ctx, s, target, timeout)
}
