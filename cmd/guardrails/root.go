package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clinical-guardrails/guardrails/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardrails",
	Short: "Clinical Guardrails - compliance verification for AI clinical summaries",
	Long: `Clinical Guardrails verifies AI-generated clinical documentation before it
is filed to an EMR.

Every verification is deterministic: the same patient record, encounter and
summary always produce the same verdict. Checks include:
  - Dates outside the admission/discharge window
  - Leaked identifiers such as Medicare numbers
  - Missing sepsis bundle documentation
  - Drug interaction, allergy and required-field protocol rules

Without --config the built-in defaults are used, overridden by
GUARDRAILS_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
