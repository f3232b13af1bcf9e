package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "secgate",
	Short: "Security gate for Infrastructure-as-Code",
	Long: `secgate runs multiple static analysis scanners against a directory of
infrastructure templates, merges their findings into one canonical model,
applies severity policy, and decides whether the change may proceed.`,
	SilenceUsage: true,
}

var DebugMode bool

// Exit codes. A gate FAIL is distinct from a pipeline-internal error so CI
// can tell "insecure change" apart from "broken scan".
const (
	ExitPass     = 0
	ExitFail     = 1
	ExitWarn     = 2
	ExitInternal = 3
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
}
