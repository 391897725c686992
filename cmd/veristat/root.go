package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "veristat",
	Short: "Veristat - rule-driven validation for clinical-research records",
	Long: `Veristat is a quality-control validation engine for structured
clinical-research records.

Records are validated against rule sets that vary by record category
(packet) and by runtime field values: dynamic instruments select a variant
rule file through an in-record discriminant field, falling back to the base
rules when the discriminant cannot be resolved. Field-level constraint
checks and cross-field compatibility (if/then) rules produce a structured
violation report per record.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
