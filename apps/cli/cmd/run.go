package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/builtin"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/config"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/env"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
	"github.com/abdul-hamid-achik/sheetspec/packages/db"
	"github.com/abdul-hamid-achik/sheetspec/packages/fields"
	"github.com/abdul-hamid-achik/sheetspec/packages/http"
	"github.com/abdul-hamid-achik/sheetspec/packages/output"
	"github.com/abdul-hamid-achik/sheetspec/packages/workbook"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [workbook]",
	Short: "Run the test cases of a workbook",
	Long: `Run the test cases of an .xlsx workbook. The workbook defaults to the
one named in the config file.

Examples:
  sheetspec run tests.xlsx
  sheetspec run tests.xlsx --env uat
  sheetspec run --ids "TC1*" --tags smoke
  sheetspec run --keep-fields --output json --output-file results.json
  sheetspec run --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for workbook change events
	WatchDebounceDelay = 300 * time.Millisecond

	// variablePrefix marks OS variables exposed to placeholders with the prefix stripped.
	variablePrefix = "SHEETSPEC_VAR_"
)

var (
	envFlag        string
	configFlag     string
	idsFlag        string
	tagsFlag       string
	verboseFlag    int
	quietFlag      bool
	noColorFlag    bool
	outputFlag     string
	outputFileFlag string
	timeoutFlag    string
	rateFlag       float64
	burstFlag      int
	proxyFlag      string
	insecureFlag   bool
	keepFieldsFlag bool
	fieldsFileFlag string
	envFileFlag    []string
	watchFlag      bool
	dryRunFlag     bool
)

func init() {
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("SHEETSPEC_ENV", ""), "Environment to use (env: SHEETSPEC_ENV)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("SHEETSPEC_CONFIG", ""), "Path to config file (env: SHEETSPEC_CONFIG)")
	runCmd.Flags().StringVar(&idsFlag, "ids", getEnvString("SHEETSPEC_IDS", ""), "Run only cases whose TCID matches (comma-separated, * globs) (env: SHEETSPEC_IDS)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("SHEETSPEC_TAGS", ""), "Run only cases with one of the tags (comma-separated) (env: SHEETSPEC_TAGS)")

	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v per step, -vv debug logs)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("SHEETSPEC_QUIET", false), "Only log errors (env: SHEETSPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("SHEETSPEC_NO_COLOR", false), "Disable colored output (env: SHEETSPEC_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("SHEETSPEC_OUTPUT", ""), "Output format: console, json, tap (env: SHEETSPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("SHEETSPEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: SHEETSPEC_OUTPUT_FILE)")

	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("SHEETSPEC_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: SHEETSPEC_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("SHEETSPEC_RATE", 0), "Maximum requests per second, 0 is unpaced (env: SHEETSPEC_RATE)")
	runCmd.Flags().IntVar(&burstFlag, "burst", getEnvInt("SHEETSPEC_BURST", 0), "Requests allowed in a burst when --rate is set (env: SHEETSPEC_BURST)")
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("SHEETSPEC_PROXY", ""), "Proxy URL for HTTP requests (env: SHEETSPEC_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("SHEETSPEC_INSECURE", false), "Disable SSL certificate validation (env: SHEETSPEC_INSECURE)")

	runCmd.Flags().BoolVar(&keepFieldsFlag, "keep-fields", getEnvBool("SHEETSPEC_KEEP_FIELDS", false), "Start from the fields saved by the previous run (env: SHEETSPEC_KEEP_FIELDS)")
	runCmd.Flags().StringVar(&fieldsFileFlag, "fields-file", getEnvString("SHEETSPEC_FIELDS_FILE", ""), "File saved fields are persisted to (env: SHEETSPEC_FIELDS_FILE)")
	runCmd.Flags().StringSliceVar(&envFileFlag, "env-file", nil, "Path to .env file for variable interpolation (repeatable)")

	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the workbook and re-run on change")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Load the workbook and show what would run without sending requests")

	runCmd.ValidArgsFunction = completeWorkbook
	_ = runCmd.RegisterFlagCompletionFunc("env", completeEnvironment)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadRunConfig loads the config file and applies command line overrides.
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}

	override := &config.Config{
		Rate:       rateFlag,
		Burst:      burstFlag,
		Proxy:      proxyFlag,
		FieldsFile: fieldsFileFlag,
		Reporter:   strings.ToLower(outputFlag),
		IDs:        splitList(idsFlag),
		Tags:       splitList(tagsFlag),
		DotEnv:     envFileFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, withCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
		override.Timeout = int(d.Milliseconds())
	}
	if keepFieldsFlag {
		override.KeepFields = config.BoolPtr(true)
	}
	if insecureFlag {
		override.ValidateSSL = config.BoolPtr(false)
	}
	if verboseFlag > 0 {
		override.Verbose = config.BoolPtr(true)
	}
	if noColorFlag || quietFlag {
		override.NoColor = config.BoolPtr(true)
	}
	return cfg.Merge(override), nil
}

func newLogger(w io.Writer, verbosity int, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbosity > 1:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithDefaultHeaders(cfg.Headers),
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if cfg.Rate > 0 {
		opts = append(opts, http.WithRateLimit(cfg.Rate, cfg.Burst))
	}
	return http.NewClient(opts...)
}

// loadVariables layers the environment's variables, .env files and
// SHEETSPEC_VAR_* OS variables, later sources winning.
func loadVariables(name string, envCfg *config.Environment, dotenv []string) (map[string]any, error) {
	e, err := env.LoadEnvironment(name, envCfg.BaseURL, envCfg.Variables, dotenv...)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}
	return env.MergeVariables(e.Variables, env.LoadSystemEnv(variablePrefix)), nil
}

// openValidators connects to every database of the environment. The
// returned function closes them all.
func openValidators(ctx context.Context, databases map[string]string, logger *slog.Logger) (map[string]assertions.Validator, func(), error) {
	validators := make(map[string]assertions.Validator, len(databases))
	var clients []*db.Client
	closeAll := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}
	for store, conn := range databases {
		client, err := db.NewClient(ctx, conn)
		if err != nil {
			closeAll()
			return nil, nil, withCode(ExitNetworkError, fmt.Errorf("store %s: %w", store, err))
		}
		logger.Debug("connected external store", "store", store)
		clients = append(clients, client)
		validators[store] = db.NewValidator(client)
	}
	return validators, closeAll, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	path := cfg.Workbook
	if len(args) > 0 {
		path = args[0]
	}
	envName := envFlag
	if envName == "" {
		envName = cfg.DefaultEnvironment
	}
	envCfg, err := cfg.Environment(envName)
	if err != nil {
		return withCode(ExitConfigError, err)
	}

	src := workbook.NewSource(path, workbook.WithSheets(cfg.Sheets), workbook.WithEnvironment(envName))
	if dryRunFlag {
		return dryRun(cmd, src, cfg)
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	logger := newLogger(cmd.ErrOrStderr(), verboseFlag, quietFlag)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vars, err := loadVariables(envName, envCfg, cfg.DotEnv)
	if err != nil {
		return err
	}
	validators, closeValidators, err := openValidators(ctx, envCfg.Databases, logger)
	if err != nil {
		return err
	}
	defer closeValidators()

	client := newClient(cfg)
	store := fields.NewStore()
	fieldsFile := fields.NewFile(cfg.FieldsFile)

	execute := func() (bool, error) {
		start := time.Now()
		if cfg.GetKeepFields() {
			if err := fieldsFile.Restore(store); err != nil {
				return false, withCode(ExitConfigError, err)
			}
		} else {
			store.Clear()
			if err := fieldsFile.Reset(); err != nil {
				logger.Warn("resetting saved fields", "file", fieldsFile.Path(), "error", err)
			}
		}

		formatter, err := output.New(cfg.Reporter, output.Options{
			Writer:  out,
			Verbose: cfg.GetVerbose(),
			NoColor: cfg.GetNoColor(),
		})
		if err != nil {
			return false, withCode(ExitUsageError, err)
		}
		formatter.FormatHeader(version)

		suite, err := src.Load()
		if err != nil {
			formatter.FormatError(err)
			if flushable, ok := formatter.(output.Flushable); ok {
				_ = flushable.Flush(time.Since(start))
			}
			return false, withCode(ExitParseError, err)
		}

		opts := []runner.Option{
			runner.WithTransport(client),
			runner.WithStore(store),
			runner.WithGenerator(builtin.NewRegistry()),
			runner.WithLogger(logger),
		}
		if sink, ok := formatter.(runner.ResultSink); ok {
			opts = append(opts, runner.WithSink(sink))
		}
		for name, v := range validators {
			opts = append(opts, runner.WithValidator(name, v))
		}
		r := runner.NewRunner(&runner.Config{
			BaseURL:   envCfg.BaseURL,
			Variables: vars,
			IDs:       cfg.IDs,
			Tags:      cfg.Tags,
			Timeout:   cfg.TimeoutDuration(),
		}, opts...)

		result, runErr := r.Run(ctx, suite)
		if result != nil {
			formatter.FormatResult(result)
		}
		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(time.Since(start)); err != nil {
				return false, fmt.Errorf("error writing output: %w", err)
			}
		}
		if err := fieldsFile.Persist(store); err != nil {
			logger.Warn("persisting saved fields", "file", fieldsFile.Path(), "error", err)
		}
		if runErr != nil {
			return false, runErr
		}
		return result.OK(), nil
	}

	ok, err := execute()
	if !watchFlag {
		if err != nil {
			return err
		}
		if !ok {
			return &ExitError{Code: ExitTestFailure, Err: errors.New("test run failed")}
		}
		return nil
	}
	if err != nil {
		logger.Error("run failed", "error", err)
	}

	return watchWorkbook(ctx, cmd, path, logger, func() {
		if _, err := execute(); err != nil {
			logger.Error("run failed", "error", err)
		}
	})
}

// watchWorkbook re-runs rerun whenever the workbook is written or replaced.
// Spreadsheet editors usually save through a temporary file and a rename,
// so the directory is watched rather than the file.
func watchWorkbook(ctx context.Context, cmd *cobra.Command, path string, logger *slog.Logger, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s for changes... (press Ctrl+C to stop)\n\n", path)

	trigger := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(abs) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nWorkbook changed: %s\nRe-running tests...\n\n", path)
			rerun()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// dryRun prints the selected cases and their dependencies without sending anything.
func dryRun(cmd *cobra.Command, src *workbook.Source, cfg *config.Config) error {
	suite, err := src.Load()
	if err != nil {
		return withCode(ExitParseError, err)
	}
	graph := runner.BuildGraph(suite)
	w := cmd.OutOrStdout()
	for _, tc := range suite.Select(cfg.IDs, cfg.Tags) {
		fmt.Fprintf(w, "Would run: %s (%d steps)\n", tc.TCID, len(tc.Steps))
		for _, edge := range graph.Edges(tc.TCID) {
			fmt.Fprintf(w, "  %s %s\n", edge.Scope, edge.Target)
		}
		if err := graph.Err(tc.TCID); err != nil {
			fmt.Fprintf(w, "  would fail: %v\n", err)
		}
	}
	return nil
}
