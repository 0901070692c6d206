package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitcase/packages/core/config"
	"github.com/abdul-hamid-achik/hitcase/packages/core/engine"
	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcase/packages/db"
	"github.com/abdul-hamid-achik/hitcase/packages/notify"
	"github.com/abdul-hamid-achik/hitcase/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run stored test cases against an environment",
	Long: `Run the test cases of a catalog project and check their assertions.

Without --case every test case of the project runs as one batch, at most
--concurrency at a time. Without --env the project's default environment
is used.

Examples:
  hitcase run --catalog api.yaml --project 1
  hitcase run --catalog api.yaml --project 1 --case 3 --case 4 --env staging
  hitcase run --project 1 --output json --output-file report.json
  hitcase run --project 1 --history sqlite://runs.db --rate 10
  hitcase run --project 1 --watch`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	runFlags       settingsFlags
	projectFlag    int64
	caseFlags      []int64
	envFlag        string
	verboseFlag    int
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
	notifySlack    string
	notifyTeams    string
	notifyOnFlag   string
)

func init() {
	registerSettingsFlags(runCmd, &runFlags)

	runCmd.Flags().Int64VarP(&projectFlag, "project", "p", int64(getEnvInt("HITCASE_PROJECT", 0)), "Project id (env: HITCASE_PROJECT)")
	runCmd.Flags().Int64SliceVarP(&caseFlags, "case", "c", nil, "Test case id to run (repeatable; default: all cases of the project)")
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("HITCASE_ENV", ""), "Environment id or code (env: HITCASE_ENV)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (print response status, headers and body)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITCASE_OUTPUT", ""), "Output format: console, json, junit, tap (env: HITCASE_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITCASE_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITCASE_OUTPUT_FILE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the catalog for changes and re-run")

	// Notification flags
	runCmd.Flags().StringVar(&notifySlack, "notify-slack", getEnvString("HITCASE_NOTIFY_SLACK", ""), "Slack webhook URL for run summaries (env: HITCASE_NOTIFY_SLACK)")
	runCmd.Flags().StringVar(&notifyTeams, "notify-teams", getEnvString("HITCASE_NOTIFY_TEAMS", ""), "Teams webhook URL for run summaries (env: HITCASE_NOTIFY_TEAMS)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("HITCASE_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (default failure) (env: HITCASE_NOTIFY_ON)")

	registerRunCompletions()
}

// registerSettingsFlags adds the flags every executing command shares.
func registerSettingsFlags(cmd *cobra.Command, f *settingsFlags) {
	cmd.Flags().StringVar(&f.configPath, "config", getEnvString("HITCASE_CONFIG", ""), "Path to config file (env: HITCASE_CONFIG)")
	cmd.Flags().StringVar(&f.catalogPath, "catalog", getEnvString("HITCASE_CATALOG", ""), "Path to the catalog file (env: HITCASE_CATALOG)")
	cmd.Flags().StringVar(&f.timeout, "timeout", getEnvString("HITCASE_TIMEOUT", ""), "Request timeout, e.g. 10s, 500ms (env: HITCASE_TIMEOUT)")
	cmd.Flags().StringVar(&f.proxy, "proxy", getEnvString("HITCASE_PROXY", ""), "Proxy URL for HTTP requests (env: HITCASE_PROXY)")
	cmd.Flags().BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITCASE_INSECURE", false), "Disable SSL certificate validation (env: HITCASE_INSECURE)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", getEnvInt("HITCASE_CONCURRENCY", 0), "Maximum runs in flight (default 5) (env: HITCASE_CONCURRENCY)")
	cmd.Flags().Float64Var(&f.rate, "rate", getEnvFloat("HITCASE_RATE", 0), "Maximum requests per second, 0 = unlimited (env: HITCASE_RATE)")
	cmd.Flags().StringVar(&f.history, "history", getEnvString("HITCASE_HISTORY", ""), "Record runs into a history database, e.g. sqlite://runs.db (env: HITCASE_HISTORY)")
	cmd.Flags().StringVar(&f.envFile, "env-file", getEnvString("HITCASE_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITCASE_ENV_FILE)")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Interpolation variable name=value (repeatable)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", getEnvString("HITCASE_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: HITCASE_LOG_LEVEL)")
	cmd.Flags().BoolVar(&f.noColor, "no-color", getEnvBool("HITCASE_NO_COLOR", false), "Disable colored output (env: HITCASE_NO_COLOR)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	if projectFlag <= 0 {
		return withExitCode(ExitUsageError, errors.New("--project is required"))
	}

	s, err := loadRunSettings()
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()
	notifier, err := newNotifier(s.config)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	var recorder engine.Recorder
	if s.config.History != "" {
		history, err := db.NewClient(s.config.History)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer history.Close()
		recorder = history
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce := func(s *settings) error {
		outWriter, closeOutput, err := runOutput(cmd)
		if err != nil {
			return err
		}
		defer closeOutput()

		verbose := verboseFlag > 0 || s.config.GetVerbose()
		formatter, err := output.NewFormatter(s.config.Output, outWriter, verbose, s.config.GetNoColor())
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		formatter.FormatHeader(version)

		err = executeRun(ctx, s, s.newRunner(), recorder, formatter, notifier)
		// Outside watch mode Execute reports the error.
		if watchFlag && hasMessage(err) {
			formatter.FormatError(err)
		}
		return err
	}

	err = runOnce(s)
	if !watchFlag {
		return err
	}
	// History and notification targets stay as started; everything else
	// follows the config file.
	return watchCatalog(ctx, cmd, s, func() error {
		fresh, err := loadRunSettings()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return err
		}
		defer func() { _ = fresh.logger.Sync() }()
		return runOnce(fresh)
	})
}

// loadRunSettings loads the shared settings and applies run's own flags.
func loadRunSettings() (*settings, error) {
	s, err := runFlags.load()
	if err != nil {
		return nil, err
	}
	s.config = s.config.Merge(&config.Config{
		Output:       outputFlag,
		SlackWebhook: notifySlack,
		TeamsWebhook: notifyTeams,
		NotifyOn:     notifyOnFlag,
	})
	return s, nil
}

// runOutput returns where one run's report goes. An --output-file is
// truncated on every call so it holds only the latest report.
func runOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if outputFileFlag == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	file, err := os.Create(outputFileFlag)
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
	}
	return file, func() { _ = file.Close() }, nil
}

// executeRun loads the catalog, runs the selected test cases and reports
// them. The returned error carries the exit code.
func executeRun(ctx context.Context, s *settings, r *runner.Runner, recorder engine.Recorder, formatter output.Formatter, notifier *notify.Manager) error {
	c, err := s.loadCatalog()
	if err != nil {
		return err
	}

	environmentID, err := resolveEnvironment(c, projectFlag, envFlag, s.config.DefaultEnvironment)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	opts := []engine.Option{engine.WithRunner(r), engine.WithLogger(s.logger)}
	if recorder != nil {
		opts = append(opts, engine.WithRecorder(recorder))
	}
	e := engine.New(c, opts...)

	start := time.Now()
	var results []*runner.RunResult
	if len(caseFlags) > 0 {
		results, err = e.ExecuteTestCases(ctx, projectFlag, caseFlags, environmentID)
	} else {
		results, err = e.ExecuteProject(ctx, projectFlag, environmentID)
	}
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	for _, result := range results {
		formatter.FormatResult(result)
	}
	elapsed := time.Since(start)
	summary := runner.Summarize(results)
	if err := formatter.Flush(summary, elapsed); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("error writing output: %w", err))
	}

	if notifier.Len() > 0 {
		payload := notify.NewRunSummary(results, elapsed)
		if p, ok := c.Project(projectFlag); ok {
			payload.Project = p.Name
		}
		if environment, err := c.Environment(ctx, environmentID); err == nil {
			payload.Environment = environment.Code
		} else if environment, err := c.DefaultEnvironment(ctx, projectFlag); err == nil {
			payload.Environment = environment.Code
		}
		if err := notifier.Notify(ctx, payload); err != nil {
			s.logger.Warn("failed to send notification", zap.Error(err))
		}
	}

	s.logger.Info("run finished",
		zap.Int64("project", projectFlag),
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed))

	switch {
	case summary.AllTransportFailures():
		return withExitCode(ExitNetworkError, nil)
	case summary.Failed > 0:
		return withExitCode(ExitTestFailure, nil)
	}
	return nil
}

// newNotifier builds the notification manager from the configured webhooks.
// With no webhook it has no notifiers and never sends.
func newNotifier(cfg *config.Config) (*notify.Manager, error) {
	on, err := notify.ParseNotifyOn(cfg.NotifyOn)
	if err != nil {
		return nil, err
	}
	var notifiers []notify.Notifier
	if cfg.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.SlackWebhook))
	}
	if cfg.TeamsWebhook != "" {
		notifiers = append(notifiers, notify.NewTeamsNotifier(cfg.TeamsWebhook))
	}
	return notify.NewManager(on, notifiers...), nil
}

// watchCatalog re-runs whenever the catalog or config file is written.
func watchCatalog(ctx context.Context, cmd *cobra.Command, s *settings, rerun func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	for _, path := range []string{s.config.Catalog, runFlags.configPath} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		watched[abs] = true
		// Editors often replace files, so watch the directory
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")
	debounceEvents(ctx, watcher.Events, watcher.Errors, watched, WatchDebounceDelay, s.logger, func(name string) {
		fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running...\n\n", name)
		_ = rerun()
		fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")
	})
	return nil
}

// debounceEvents calls rerun once a burst of writes to a watched file has
// been quiet for delay. rerun runs on the calling goroutine, so re-runs never
// overlap; events arriving meanwhile start the next burst.
func debounceEvents(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, watched map[string]bool, delay time.Duration, logger *zap.Logger, rerun func(name string)) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		changed string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			abs, _ := filepath.Abs(event.Name)
			if !watched[abs] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			changed = event.Name
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			rerun(changed)

		case err, ok := <-errs:
			if !ok {
				return
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}
