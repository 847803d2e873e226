package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/apiscan/packages/core/config"
	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/loader"
	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
	"github.com/abdul-hamid-achik/apiscan/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run [spec]",
	Short: "Run every request of a spec file",
	Long: `Run every request of a YAML or JSON spec tree, check the tests of each
response and report the results.

Exit codes: 0 all requests passed, 1 some request failed, 2 the spec is
invalid, 3 the configuration is invalid, 4 no request got a response.

Examples:
  apiscan run
  apiscan run api.yaml
  apiscan run api.yaml --reporter junit -o report.xml
  apiscan run api.yaml --reporter html -o report.html
  apiscan run api.yaml --template my-report.tpl -o report.txt
  apiscan run api.yaml --env-file .env.staging --retries 3 --rate-limit 5
  apiscan run api.yaml --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// DefaultSpecFile is run when no spec argument is given
	DefaultSpecFile = "api.yaml"
)

var (
	configFlag     string
	outputPathFlag string
	reporterFlag   string
	templateFlag   string
	logLevelFlag   string
	envFileFlag    string
	timeoutFlag    string
	retriesFlag    int
	rateLimitFlag  float64
	proxyFlag      string
	insecureFlag   bool
	noColorFlag    bool
	verboseFlag    bool
	progressFlag   bool
	watchFlag      bool
)

func init() {
	// Config flags
	runCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Path to config file (default: .apiscan.yaml when present)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", "", "Path to .env file exported before the run (default: .env when present)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error, critical")

	// Output flags
	runCmd.Flags().StringVarP(&reporterFlag, "reporter", "r", "", "Reporter: "+strings.Join(output.Formats(), ", "))
	runCmd.Flags().StringVarP(&outputPathFlag, "output-path", "o", "", "Write the report to a file (default: stdout)")
	runCmd.Flags().StringVarP(&templateFlag, "template", "t", "", "Render the report with a custom pongo2 template")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show headers, params and bodies in console output")
	runCmd.Flags().BoolVar(&progressFlag, "progress", false, "Show a progress bar on stderr")

	// Execution flags
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", "", "Request timeout (e.g., 30s, 1m)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", 0, "Retry transport errors and retryable statuses this many times")
	runCmd.Flags().Float64Var(&rateLimitFlag, "rate-limit", 0, "Maximum requests per second (0 = unlimited)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the spec directory and re-run on changes")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", "", "Proxy URL for HTTP requests")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", false, "Disable SSL certificate validation")

	_ = runCmd.RegisterFlagCompletionFunc("reporter", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = runCmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error", "critical"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runCommand(cmd *cobra.Command, args []string) error {
	specPath := DefaultSpecFile
	if len(args) == 1 {
		specPath = args[0]
	}

	if _, err := env.LoadOptionalDotEnv(envFileFlag, envFileFlag != ""); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("loading env file: %w", err))
	}

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	s, err := newSession(cmd, cfg)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := s.run(ctx, specPath)
	if !watchFlag {
		if err != nil || code != ExitSuccess {
			return exitWith(code, err)
		}
		return nil
	}

	if err != nil {
		fmt.Fprintln(s.errOut, "Error:", err)
	}
	return s.watch(ctx, specPath)
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	overrides, err := flagOverrides(flags)
	if err != nil {
		return nil, &config.Error{Err: err}
	}

	merged := cfg.Merge(overrides)
	if err := merged.Validate(); err != nil {
		return nil, &config.Error{Err: err}
	}
	return merged, nil
}

func flagOverrides(flags *pflag.FlagSet) (*config.Config, error) {
	o := &config.Config{}

	if flags.Changed("timeout") {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil || timeout < time.Millisecond {
			return nil, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag)
		}
		o.Timeout = int(timeout.Milliseconds())
	}
	if flags.Changed("retries") {
		o.Retry.MaxRetries = retriesFlag
	}
	if flags.Changed("rate-limit") {
		o.RateLimit = rateLimitFlag
	}
	if flags.Changed("insecure") && insecureFlag {
		o.ValidateSSL = config.BoolPtr(false)
	}
	o.Proxy = proxyFlag
	o.LogLevel = logLevelFlag
	o.Report.Reporter = reporterFlag
	o.Report.OutputPath = outputPathFlag
	o.Report.Template = templateFlag

	return o, nil
}

// session holds everything that stays the same across watch re-runs.
type session struct {
	out      io.Writer
	errOut   io.Writer
	cfg      *config.Config
	logger   *slog.Logger
	reporter output.Reporter
	hide     output.Hide
}

func newSession(cmd *cobra.Command, cfg *config.Config) (*session, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if noColorFlag {
		color.NoColor = true
	}

	reporter, err := output.New(cfg.Report.Reporter,
		output.WithNoColor(noColorFlag || cfg.Report.OutputPath != ""),
		output.WithVerbose(verboseFlag),
		output.WithTemplate(cfg.Report.Template),
	)
	if err != nil {
		return nil, err
	}

	return &session{
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		cfg:      cfg,
		logger:   newLogger(cmd.ErrOrStderr(), level),
		reporter: reporter,
		hide: output.Hide{
			RequestHeaders:  cfg.Report.HideRequest.Headers,
			RequestParams:   cfg.Report.HideRequest.Params,
			RequestBody:     cfg.Report.HideRequest.Body,
			ResponseHeaders: cfg.Report.HideResponse.Headers,
			ResponseBody:    cfg.Report.HideResponse.Body,
		},
	}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (s *session) runnerConfig(specPath string) (*runner.Config, error) {
	policy, err := s.cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	return &runner.Config{
		BaseDir:        filepath.Dir(specPath),
		Timeout:        s.cfg.TimeoutDuration(),
		Retry:          policy,
		RateLimit:      s.cfg.RateLimit,
		Insecure:       !s.cfg.GetValidateSSL(),
		Proxy:          s.cfg.Proxy,
		DefaultHeaders: s.cfg.Headers,
		Database:       s.cfg.Database,
	}, nil
}

// run executes the spec once, writes the report and returns the exit code.
func (s *session) run(ctx context.Context, specPath string) (int, error) {
	root, err := runner.LoadTree(specPath)
	if err != nil {
		return ExitSpecError, err
	}

	runnerCfg, err := s.runnerConfig(specPath)
	if err != nil {
		return ExitConfigError, err
	}

	opts := []runner.Option{runner.WithLogger(s.logger)}
	var progress *progressTracker
	if progressFlag {
		progress = newProgressTracker(root.CountRequests(), s.errOut)
		opts = append(opts, runner.WithObserver(progress.observe))
	}

	result, runErr := runner.NewRunner(runnerCfg, opts...).Run(ctx, root)
	if result == nil {
		return ExitConfigError, runErr
	}
	result.File = specPath
	if progress != nil {
		progress.finish()
	}

	report := output.BuildReport(result, s.hide)
	if err := s.writeReport(report); err != nil {
		return ExitConfigError, err
	}
	if runErr != nil {
		return ExitTestFailure, runErr
	}
	return exitCodeFor(report.Summary), nil
}

func (s *session) writeReport(report *output.Report) error {
	path := s.cfg.Report.OutputPath
	if path == "" {
		return s.reporter.Write(s.out, report)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	if err := s.reporter.Write(f, report); err != nil {
		f.Close()
		return fmt.Errorf("error writing output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	fmt.Fprintf(s.errOut, "Report written to %s\n", path)
	return nil
}

// watch re-runs the spec whenever a spec file in its directory changes,
// until ctx is cancelled.
func (s *session) watch(ctx context.Context, specPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(specPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fmt.Fprintf(s.out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	rerun := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !isSpecFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(s.out, "\n\nFile changed: %s\nRe-running...\n\n", name)
			if _, err := s.run(ctx, specPath); err != nil {
				fmt.Fprintln(s.errOut, "Error:", err)
			}
			fmt.Fprintf(s.out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func isSpecFile(path string) bool {
	return slices.Contains(loader.SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}
