package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"meridian-hq/veristat/pkg/rules/store"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and verify the rule tree",
}

var lintStrict bool

var rulesLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check rule-file completeness and parseability",
	Long: `Lint loads the catalog and checks every (category, instrument) pair:

  - the base rule file must exist and parse
  - every declared variant rule file should exist and parse

A missing base file is always an error. A missing variant file is a warning
by default, because resolution degrades to the base rules at runtime; pass
--strict to treat missing variants as errors too. Malformed files are always
errors.`,
	RunE: runRulesLint,
}

func init() {
	rulesLintCmd.Flags().StringVar(&runOpts.rulesRoot, "rules", "", "rule tree root directory (overrides config)")
	rulesLintCmd.Flags().StringVar(&runOpts.catalog, "catalog", "", "instrument catalog file (overrides config)")
	rulesLintCmd.Flags().BoolVar(&lintStrict, "strict", false, "treat missing variant files as errors")

	rulesCmd.AddCommand(rulesLintCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesLint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runOpts.rulesRoot != "" {
		cfg.Rules.Root = runOpts.rulesRoot
	}
	if runOpts.catalog != "" {
		cfg.Rules.Catalog = runOpts.catalog
	}

	cat, err := store.LoadCatalog(cfg.Rules.Catalog)
	if err != nil {
		return err
	}
	st := store.New(store.DefaultConfig(cfg.Rules.Root))

	names := make([]string, 0, len(cat.Instruments))
	for name := range cat.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs, warns int
	report := func(severity, format string, a ...any) {
		fmt.Printf("%s: %s\n", severity, fmt.Sprintf(format, a...))
		if severity == "error" {
			errs++
		} else {
			warns++
		}
	}

	for _, category := range cat.Categories {
		for _, name := range names {
			inst := cat.Instruments[name]

			if _, err := st.Load(category, inst.Name, ""); err != nil {
				report("error", "%s/%s: base rules: %v", category, inst.Name, err)
				continue
			}

			if !inst.IsDynamic() {
				continue
			}

			values := make([]string, 0, len(inst.Variants))
			for value := range inst.Variants {
				values = append(values, value)
			}
			sort.Strings(values)

			for _, value := range values {
				ruleID := inst.Variants[value]
				_, err := st.Load(category, inst.Name, ruleID)
				if err == nil {
					continue
				}
				if store.IsNotFound(err) {
					severity := "warning"
					if lintStrict {
						severity = "error"
					}
					report(severity, "%s/%s: variant %q (%s): file not found, runtime resolution will fall back to base rules",
						category, inst.Name, value, ruleID)
					continue
				}
				report("error", "%s/%s: variant %q (%s): %v", category, inst.Name, value, ruleID, err)
			}
		}
	}

	fmt.Printf("checked %d categories x %d instruments: %d error(s), %d warning(s)\n",
		len(cat.Categories), len(names), errs, warns)

	if errs > 0 {
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
		return fmt.Errorf("rule tree has %d error(s)", errs)
	}
	return nil
}
