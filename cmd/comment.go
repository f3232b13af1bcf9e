package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/secgate/pkg/engine"
	"github.com/user/secgate/pkg/logx"
)

var (
	commentReport string
	commentOutput string
)

// commentCmd renders the PR review comment from a saved structured report, so
// CI can post it without re-running the scan.
var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Render the PR-comment markdown from a saved report",
	Run: func(cmd *cobra.Command, args []string) {
		logx.DebugEnabled = DebugMode
		os.Exit(runComment())
	},
}

func runComment() int {
	data, err := os.ReadFile(commentReport)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: report: %v\n", err)
		return ExitInternal
	}
	report, err := engine.ParseReport(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitInternal
	}

	markdown := report.Narrative()
	if commentOutput == "" || commentOutput == "-" {
		fmt.Print(markdown)
		return ExitPass
	}
	if err := os.WriteFile(commentOutput, []byte(markdown), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "report error: %v\n", err)
		return ExitInternal
	}
	logx.Infof("PR comment written to %s", commentOutput)
	return ExitPass
}

func init() {
	commentCmd.Flags().StringVar(&commentReport, "report", "", "Structured report to render (required)")
	commentCmd.Flags().StringVar(&commentOutput, "output", "-", "Output markdown file, or - for stdout")
	commentCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(commentCmd)
}
