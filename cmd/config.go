package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/secgate/pkg/config"
	"github.com/user/secgate/pkg/logx"
	"github.com/user/secgate/pkg/wrappers"
)

var cfgFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold pipeline configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file and report the first offending field",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(ExitInternal)
		}
		if err := cfg.Validate(wrappers.KnownTools); err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(ExitInternal)
		}
		logx.Infof("Configuration OK: %d tool(s), fail at %.1f, warn at %.1f",
			len(cfg.Tools), cfg.Policy.FailThreshold, cfg.Policy.WarnThreshold)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the full default configuration to a file for editing",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile == "" {
			fmt.Fprintln(os.Stderr, "configuration error: --config is required for init")
			os.Exit(ExitInternal)
		}
		if _, err := os.Stat(cfgFile); err == nil {
			fmt.Fprintf(os.Stderr, "configuration error: %s already exists\n", cfgFile)
			os.Exit(ExitInternal)
		}
		if err := config.Save(config.Default(), cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(ExitInternal)
		}
		logx.Infof("Default configuration written to %s", cfgFile)
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path")
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
