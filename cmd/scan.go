package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/secgate/pkg/config"
	"github.com/user/secgate/pkg/engine"
	"github.com/user/secgate/pkg/logx"
	"github.com/user/secgate/pkg/pipeline"
	"github.com/user/secgate/pkg/wrappers"
)

var (
	scanPath     string
	scanConfig   string
	scanOutput   string
	scanTools    []string
	warnExitZero bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run all configured scanners against a template directory and gate the result",
	Run: func(cmd *cobra.Command, args []string) {
		logx.DebugEnabled = DebugMode
		os.Exit(runScan())
	},
}

func runScan() int {
	cfg, err := config.Load(scanConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}
	if len(scanTools) > 0 {
		selected := make(map[string]config.ToolConfig, len(scanTools))
		for _, name := range scanTools {
			tc, ok := cfg.Tools[name]
			if !ok {
				fmt.Fprintf(os.Stderr, "configuration error: --tools: %q is not configured\n", name)
				return ExitInternal
			}
			selected[name] = tc
		}
		cfg.Tools = selected
	}
	if err := cfg.Validate(wrappers.KnownTools); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}
	if err := wrappers.VerifyTarget(scanPath); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}

	logx.Infof("Scanning %s with %d tool(s)...", scanPath, len(cfg.Tools))
	report, err := runner.Run(context.Background(), scanPath, pipeline.DefaultInvoker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline error: %v\n", err)
		return ExitInternal
	}

	if err := writeReports(report); err != nil {
		// A missing or misleading report is worse than no decision; rendering
		// errors are fatal.
		fmt.Fprintf(os.Stderr, "report error: %v\n", err)
		return ExitInternal
	}

	logx.Infof("")
	logx.Infof("Gate: %s (score %.1f)", report.Decision.Outcome, report.Decision.TotalScore)
	for _, reason := range report.Decision.Reasons {
		logx.Infof("  - %s", reason)
	}

	return exitCode(report.Decision.Outcome)
}

func writeReports(report engine.Report) error {
	if err := os.MkdirAll(scanOutput, 0755); err != nil {
		return err
	}
	structured, err := report.Marshal()
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(scanOutput, "report.json")
	if err := os.WriteFile(jsonPath, structured, 0644); err != nil {
		return err
	}
	mdPath := filepath.Join(scanOutput, "report.md")
	if err := os.WriteFile(mdPath, []byte(report.Narrative()), 0644); err != nil {
		return err
	}
	logx.Infof("Reports written to %s and %s", jsonPath, mdPath)
	return nil
}

func exitCode(outcome engine.Outcome) int {
	switch outcome {
	case engine.OutcomePass:
		return ExitPass
	case engine.OutcomeWarn:
		if warnExitZero {
			return ExitPass
		}
		return ExitWarn
	default:
		return ExitFail
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanPath, "path", "", "Directory of templates to scan (required)")
	scanCmd.Flags().StringVar(&scanConfig, "config", "", "Pipeline configuration file (YAML)")
	scanCmd.Flags().StringVar(&scanOutput, "output-dir", "scan-results", "Directory to write reports to")
	scanCmd.Flags().StringSliceVar(&scanTools, "tools", nil, "Subset of configured tools to run")
	scanCmd.Flags().BoolVar(&warnExitZero, "warn-exit-zero", false, "Exit 0 on WARN instead of 2")
	scanCmd.MarkFlagRequired("path")
	rootCmd.AddCommand(scanCmd)
}
