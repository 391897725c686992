package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"meridian-hq/veristat/pkg/config"
	"meridian-hq/veristat/pkg/engine"
	"meridian-hq/veristat/pkg/history"
	"meridian-hq/veristat/pkg/report/export"
	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/constraint"
	"meridian-hq/veristat/pkg/rules/resolver"
	"meridian-hq/veristat/pkg/rules/store"
	"meridian-hq/veristat/pkg/rules/watcher"
	"meridian-hq/veristat/pkg/telemetry/logging"
	"meridian-hq/veristat/pkg/telemetry/metrics"
)

// runFlags holds flag overrides for the run command.
type runFlags struct {
	rulesRoot string
	catalog   string
	records   string
	format    string
	output    string
	pretty    bool
	preload   bool
	noHistory bool
	workers   int
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate a batch of records against the rule tree",
	Long: `Run validates every record in a records file against the rule tree,
resolving base and variant rules per record, and writes a violation report.

Records that fail to resolve (a missing or malformed base rule file) are
reported and skipped; the batch continues. The exit code is non-zero when
any record failed to resolve or produced violations.`,
	RunE: runValidation,
}

func init() {
	runCmd.Flags().StringVar(&runOpts.rulesRoot, "rules", "", "rule tree root directory (overrides config)")
	runCmd.Flags().StringVar(&runOpts.catalog, "catalog", "", "instrument catalog file (overrides config)")
	runCmd.Flags().StringVar(&runOpts.records, "records", "", "records file to validate (required)")
	runCmd.Flags().StringVar(&runOpts.format, "format", "csv", "report format: csv or json")
	runCmd.Flags().StringVarP(&runOpts.output, "output", "o", "", "report output file (default: stdout)")
	runCmd.Flags().BoolVar(&runOpts.pretty, "pretty", false, "indent JSON output")
	runCmd.Flags().BoolVar(&runOpts.preload, "preload", false, "eagerly resolve all variants before validating")
	runCmd.Flags().BoolVar(&runOpts.noHistory, "no-history", false, "disable run history recording")
	runCmd.Flags().IntVar(&runOpts.workers, "workers", 0, "batch worker pool size (overrides config)")
	runCmd.MarkFlagRequired("records")

	rootCmd.AddCommand(runCmd)
}

// recordEntry is one record in a records file.
type recordEntry struct {
	ID         string         `yaml:"id"`
	Category   string         `yaml:"category"`
	Instrument string         `yaml:"instrument"`
	Fields     map[string]any `yaml:"fields"`
}

// recordsFile is the YAML document the run command ingests.
type recordsFile struct {
	Records []recordEntry `yaml:"records"`
}

func runValidation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunOverrides(cfg)

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		registry   *prometheus.Registry
		resolution *metrics.ResolutionMetrics
		cacheMet   *metrics.CacheMetrics
		validation *metrics.ValidationMetrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		resolution = metrics.NewResolutionMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem, registry)
		cacheMet = metrics.NewCacheMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem, registry)
		validation = metrics.NewValidationMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem, registry)

		go serveMetrics(cfg.Metrics.Listen, registry, logger)
	}

	cat, err := store.LoadCatalog(cfg.Rules.Catalog)
	if err != nil {
		return err
	}

	st := store.New(store.DefaultConfig(cfg.Rules.Root))
	router := resolver.NewCategoryRuleRouter(st, logger, cacheMet)
	res := resolver.New(st, router, &resolver.Config{
		WarnEveryFallback: cfg.Rules.WarnEveryFallback,
	}, logger, resolution, cacheMet)

	eng := engine.New(res, constraint.NewDefault(), &engine.Config{
		Workers: cfg.Engine.Workers,
	}, logger, validation)

	if cfg.Rules.Watch {
		w, err := watcher.New(watcher.DefaultConfig(cfg.Rules.Root), logger)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			if err := w.Watch(ctx, res.ClearCache); err != nil {
				logger.Error("rule watcher failed", "error", err)
			}
		}()
	}

	items, err := loadRecords(runOpts.records, cat)
	if err != nil {
		return err
	}
	logger.Info("records loaded",
		"path", runOpts.records,
		"count", len(items),
	)

	if cfg.Rules.Preload {
		if err := preloadRules(cat, res); err != nil {
			return err
		}
		logger.Info("rule tree preloaded")
	}

	recorder, storage, err := newRecorder(cfg, logger)
	if err != nil {
		return err
	}
	if storage != nil {
		defer storage.Close()
	}

	batchResults := eng.ValidateBatch(ctx, items)

	results := make([]*engine.Result, 0, len(batchResults))
	failed := 0
	violations := 0
	for i, br := range batchResults {
		if br.Err != nil {
			failed++
			logger.Error("record failed to validate",
				"record_id", items[i].Record.ID,
				"category", items[i].Record.Category,
				"instrument", items[i].Instrument.Name,
				"error", br.Err,
			)
			continue
		}
		results = append(results, br.Result)
		violations += len(br.Result.Violations)
		recorder.Record(br.Result)
	}

	run, err := recorder.Complete(ctx)
	if err != nil {
		logger.Error("failed to persist run history", "error", err)
	} else if !runOpts.noHistory && cfg.History.Enabled {
		logger.Info("run recorded", "run_id", run.ID)
	}

	if err := writeReport(ctx, results); err != nil {
		return err
	}

	logger.Info("validation complete",
		"records", len(items),
		"failed", failed,
		"violations", violations,
	)

	if failed > 0 || violations > 0 {
		// Non-zero exit without the usage banner cobra prints for RunE errors.
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
		return fmt.Errorf("%d record(s) failed, %d violation(s) found", failed, violations)
	}
	return nil
}

// loadConfig loads the configuration file named by the global flag.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// applyRunOverrides layers command-line flags over the file configuration.
func applyRunOverrides(cfg *config.Config) {
	if runOpts.rulesRoot != "" {
		cfg.Rules.Root = runOpts.rulesRoot
	}
	if runOpts.catalog != "" {
		cfg.Rules.Catalog = runOpts.catalog
	}
	if runOpts.workers > 0 {
		cfg.Engine.Workers = runOpts.workers
	}
	if runOpts.preload {
		cfg.Rules.Preload = true
	}
	if runOpts.noHistory {
		cfg.History.Enabled = false
	}
}

// newLogger builds the process logger, honoring the global verbose flag.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	})
}

// loadRecords parses the records file and pairs each record with its declared
// instrument. Unknown categories and instruments fail the load; skipping them
// silently would mask authoring mistakes.
func loadRecords(path string, cat *store.Catalog) ([]engine.BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records %q: %w", path, err)
	}

	var doc recordsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse records %q: %w", path, err)
	}
	if len(doc.Records) == 0 {
		return nil, fmt.Errorf("records file %q contains no records", path)
	}

	items := make([]engine.BatchItem, 0, len(doc.Records))
	for i, entry := range doc.Records {
		if !cat.HasCategory(entry.Category) {
			return nil, fmt.Errorf("record %d (%s): unknown category %q", i, entry.ID, entry.Category)
		}
		inst, ok := cat.Instrument(entry.Instrument)
		if !ok {
			return nil, fmt.Errorf("record %d (%s): unknown instrument %q", i, entry.ID, entry.Instrument)
		}

		rec := &ast.Record{
			ID:       entry.ID,
			Category: entry.Category,
			Fields:   entry.Fields,
		}
		rec.Canonicalize()

		items = append(items, engine.BatchItem{Instrument: inst, Record: rec})
	}
	return items, nil
}

// preloadRules eagerly resolves every (category, instrument) pair in the
// catalog.
func preloadRules(cat *store.Catalog, res *resolver.HierarchicalRuleResolver) error {
	names := make([]string, 0, len(cat.Instruments))
	for name := range cat.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, category := range cat.Categories {
		for _, name := range names {
			if err := res.Preload(category, cat.Instruments[name]); err != nil {
				return fmt.Errorf("preload %s/%s: %w", category, name, err)
			}
		}
	}
	return nil
}

// newRecorder builds the run recorder, backed by SQLite when history is
// enabled and by a no-op disabled recorder otherwise.
func newRecorder(cfg *config.Config, logger *slog.Logger) (*history.Recorder, history.Storage, error) {
	recorderCfg := &history.RecorderConfig{
		Enabled:      cfg.History.Enabled,
		WriteTimeout: cfg.History.WriteTimeout,
	}

	if !cfg.History.Enabled {
		return history.NewRecorder(nil, recorderCfg, cfg.Rules.Root, logger), nil, nil
	}

	sqliteCfg := history.DefaultSQLiteConfig()
	sqliteCfg.Path = cfg.History.Path
	storage, err := history.NewSQLiteStorage(sqliteCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return history.NewRecorder(storage, recorderCfg, cfg.Rules.Root, logger), storage, nil
}

// writeReport exports results in the requested format to the output file or
// stdout.
func writeReport(ctx context.Context, results []*engine.Result) error {
	out := os.Stdout
	if runOpts.output != "" {
		f, err := os.Create(runOpts.output)
		if err != nil {
			return fmt.Errorf("failed to create output %q: %w", runOpts.output, err)
		}
		defer f.Close()
		out = f
	}

	switch runOpts.format {
	case "csv":
		return export.NewCSVExporter(true).Export(ctx, results, out)
	case "json":
		return export.NewJSONExporter(runOpts.pretty).Export(ctx, results, out)
	default:
		return fmt.Errorf("unsupported format %q (want csv or json)", runOpts.format)
	}
}

// serveMetrics exposes the Prometheus registry for the duration of the run.
func serveMetrics(listen string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	logger.Info("metrics endpoint listening", "addr", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
