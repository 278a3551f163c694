package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/config"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/engine"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/parser"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/report"

	"github.com/spf13/cobra"
)

var (
	configFile    string
	logLevel      string
	logFile       string
	lookupSource  string
	lookupDB      string
	lookupTable   string
	workers       int
	skipMalformed bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flow-log-analyzer <log_file> <lookup_file> <tag_output> <combo_output>",
		Short: "Tag VPC flow log records by destination port and protocol",
		Long: `flow-log-analyzer reads version 2 VPC flow logs, tags each record using a
dstport/protocol lookup table and writes tag counts and port/protocol
combination counts as CSV.`,
		Args:         cobra.ExactArgs(4),
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "Optional YAML configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.Flags().StringVar(&lookupSource, "provider", config.ProviderCSV, "Lookup provider: 'csv' (lookup_file) or 'mariadb'")
	rootCmd.Flags().StringVar(&lookupDB, "db", "", "Database connection string (for 'mariadb' provider)")
	rootCmd.Flags().StringVar(&lookupTable, "lookup-table", parser.DefaultLookupTableName, "Lookup table name (for 'mariadb' provider)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of concurrent flow log workers")
	rootCmd.Flags().BoolVar(&skipMalformed, "skip-malformed", false, "Skip version 2 records with a non-numeric port or protocol instead of failing")

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logPath, lookupPath, tagOutput, comboOutput := args[0], args[1], args[2], args[3]

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// --- 1. Setup Logging ---
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.File)
	slog.SetDefault(logger)

	slog.Info("Starting Flow Log Analyzer", "version", "1.0-go")
	startTime := time.Now()

	// --- 2. Load Lookup Table ---
	slog.Info("Loading lookup table...", "provider", cfg.Lookup.Provider)
	table, err := loadLookupTable(cfg.Lookup, lookupPath)
	if err != nil {
		slog.Error("Failed to load lookup table", "error", err)
		return err
	}
	slog.Info("Successfully loaded lookup table", "entries", len(table))

	// --- 3. Aggregate Flow Log ---
	slog.Info("Aggregating flow log", "path", logPath, "workers", cfg.Aggregation.Workers, "skip_malformed", cfg.Aggregation.SkipMalformed)
	counts, stats, err := engine.AggregateFile(logPath, table, engine.Options{
		Workers:       cfg.Aggregation.Workers,
		SkipMalformed: cfg.Aggregation.SkipMalformed,
	})
	if err != nil {
		slog.Error("Failed to aggregate flow log", "path", logPath, "error", err)
		return err
	}
	slog.Info("Flow log aggregated",
		"lines", stats.Lines,
		"valid", stats.Valid,
		"skipped", stats.Skipped,
		"malformed", stats.Malformed,
		"tags", len(counts.Tags),
		"combinations", len(counts.PortProtocols))

	// --- 4. Write Reports ---
	slog.Info("Writing reports", "tag_output", tagOutput, "combo_output", comboOutput)
	if err := report.WriteFile(tagOutput, func(w io.Writer) error {
		return report.WriteTagCounts(w, counts.Tags)
	}); err != nil {
		slog.Error("Failed to write tag counts", "path", tagOutput, "error", err)
		return err
	}
	if err := report.WriteFile(comboOutput, func(w io.Writer) error {
		return report.WritePortProtocolCounts(w, counts.PortProtocols)
	}); err != nil {
		slog.Error("Failed to write port/protocol counts", "path", comboOutput, "error", err)
		return err
	}

	slog.Info("Analysis complete", "duration", time.Since(startTime))
	return nil
}

// resolveConfig loads the optional config file and overlays any flags that
// were set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Defaults()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if configFile == "" || flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if configFile == "" || flags.Changed("log-file") {
		cfg.Logging.File = logFile
	}
	if configFile == "" || flags.Changed("provider") {
		cfg.Lookup.Provider = lookupSource
	}
	if configFile == "" || flags.Changed("db") {
		cfg.Lookup.DSN = lookupDB
	}
	if configFile == "" || flags.Changed("lookup-table") {
		cfg.Lookup.Table = lookupTable
	}
	if configFile == "" || flags.Changed("workers") {
		cfg.Aggregation.Workers = workers
	}
	if configFile == "" || flags.Changed("skip-malformed") {
		cfg.Aggregation.SkipMalformed = skipMalformed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// The logger isn't set up yet, so a bad path silently falls back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}

func loadLookupTable(cfg config.LookupConfig, lookupPath string) (model.LookupTable, error) {
	switch cfg.Provider {
	case config.ProviderCSV:
		if lookupPath == "" {
			return nil, fmt.Errorf("lookup file path must be provided for csv provider")
		}
		return parser.LoadLookupFile(lookupPath)
	case config.ProviderMariaDB:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		l, err := parser.NewMariaDBLookupLoader(cfg.DSN, cfg.Table)
		if err != nil {
			return nil, err
		}
		defer l.Close()
		if err := l.Load(); err != nil {
			return nil, err
		}
		return l.Table, nil
	default:
		return nil, fmt.Errorf("unknown lookup provider: %s", cfg.Provider)
	}
}
