package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/secgate/pkg/config"
	"github.com/user/secgate/pkg/engine"
	"github.com/user/secgate/pkg/logx"
	"github.com/user/secgate/pkg/wrappers"
)

var (
	gateReport string
	gateConfig string
)

// gateCmd re-evaluates a saved structured report against policy, so the same
// scan can be judged under different thresholds without re-running scanners.
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Re-evaluate a saved report against (possibly different) policy",
	Run: func(cmd *cobra.Command, args []string) {
		logx.DebugEnabled = DebugMode
		os.Exit(runGate())
	},
}

func runGate() int {
	cfg, err := config.Load(gateConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}
	if err := cfg.Validate(wrappers.KnownTools); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}

	data, err := os.ReadFile(gateReport)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: report: %v\n", err)
		return ExitInternal
	}
	report, err := engine.ParseReport(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}

	groups, total := cfg.Policy.SeverityPolicy.ScoreAll(report.Groups)
	decision := engine.Decide(cfg.Policy, groups, report.Run.FailedTools())

	logx.Infof("Gate: %s (score %.1f)", decision.Outcome, total)
	for _, reason := range decision.Reasons {
		logx.Infof("  - %s", reason)
	}
	return exitCode(decision.Outcome)
}

func init() {
	gateCmd.Flags().StringVar(&gateReport, "report", "", "Structured report to evaluate (required)")
	gateCmd.Flags().StringVar(&gateConfig, "config", "", "Pipeline configuration file (YAML)")
	gateCmd.Flags().BoolVar(&warnExitZero, "warn-exit-zero", false, "Exit 0 on WARN instead of 2")
	gateCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(gateCmd)
}
