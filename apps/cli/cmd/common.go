package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
	"github.com/abdul-hamid-achik/hitcase/packages/core/config"
	"github.com/abdul-hamid-achik/hitcase/packages/core/env"
	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
)

// VariablePrefix marks process environment variables that become
// interpolation variables (HITCASE_VAR_token -> {{token}}).
const VariablePrefix = "HITCASE_VAR_"

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitUsageError
}

// hasMessage reports whether err has something to print beyond its exit code.
func hasMessage(err error) bool {
	var exitErr *exitError
	return err != nil && (!errors.As(err, &exitErr) || exitErr.err != nil)
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

// newLogger builds the diagnostics logger. It writes to stderr so that
// stdout stays reserved for reports.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logCfg := zap.NewDevelopmentConfig()
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	logCfg.Level = zap.NewAtomicLevelAt(lvl)
	logCfg.OutputPaths = []string{"stderr"}
	logCfg.ErrorOutputPaths = []string{"stderr"}
	if lvl == zap.DebugLevel {
		logCfg.DisableStacktrace = false
		logCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	} else {
		logCfg.DisableStacktrace = true
		logCfg.EncoderConfig.EncodeCaller = nil
	}

	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// settingsFlags are the flags shared by commands that execute requests.
type settingsFlags struct {
	configPath  string
	catalogPath string
	timeout     string
	proxy       string
	insecure    bool
	concurrency int
	rate        float64
	history     string
	envFile     string
	vars        []string
	logLevel    string
	noColor     bool
}

// settings is the resolved configuration of one invocation.
type settings struct {
	config    *config.Config
	variables map[string]any
	logger    *zap.Logger
}

// load reads the config file and applies flag overrides. Only flags that
// carry a value override the file.
func (f *settingsFlags) load() (*settings, error) {
	fileConfig, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	overrides := &config.Config{
		Catalog:     f.catalogPath,
		Proxy:       f.proxy,
		Concurrency: f.concurrency,
		Rate:        f.rate,
		History:     f.history,
		LogLevel:    f.logLevel,
	}
	if f.timeout != "" {
		timeout, err := time.ParseDuration(f.timeout)
		if err != nil || timeout <= 0 {
			return nil, withExitCode(ExitUsageError,
				fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", f.timeout))
		}
		overrides.Timeout = int(timeout.Milliseconds())
	}
	if f.insecure {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if f.noColor {
		overrides.NoColor = config.BoolPtr(true)
	}
	cfg := fileConfig.Merge(overrides)

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}

	variables, err := f.variables()
	if err != nil {
		return nil, err
	}

	return &settings{config: cfg, variables: variables, logger: logger}, nil
}

// variables merges, lowest precedence first: HITCASE_VAR_* process
// variables, the dotenv file, then --var flags. The dotenv file is also
// exported for {{$VAR}} references.
func (f *settingsFlags) variables() (map[string]any, error) {
	sources := []map[string]any{env.LoadSystemEnv(VariablePrefix)}

	if f.envFile != "" {
		values, err := env.LoadAndExportDotEnv(f.envFile)
		if err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("failed to load env file: %w", err))
		}
		sources = append(sources, env.StringVariables(values))
	}

	flagVars, err := parseKeyValues(f.vars, "=")
	if err != nil {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid --var: %w", err))
	}
	sources = append(sources, env.StringVariables(flagVars))

	return env.MergeVariables(sources...), nil
}

// newRunner builds the runner shared by every run of the invocation.
func (s *settings) newRunner() *runner.Runner {
	resolver := env.NewResolver()
	resolver.SetVariables(s.variables)
	resolver.SetWarnFunc(s.logger.Sugar().Warnf)

	return runner.NewRunner(s.config.RunnerConfig(),
		runner.WithResolver(resolver),
		runner.WithLogger(s.logger),
	)
}

func (s *settings) loadCatalog() (*catalog.Catalog, error) {
	if s.config.Catalog == "" {
		return nil, withExitCode(ExitUsageError, errors.New("no catalog given (use --catalog or the config file)"))
	}
	c, err := catalog.Load(s.config.Catalog)
	if err != nil {
		return nil, withExitCode(ExitParseError, err)
	}
	return c, nil
}

// resolveEnvironment turns an environment flag (id or code) into an id. An
// empty value falls back to the configured default code, then to the
// project's default environment (0).
func resolveEnvironment(c *catalog.Catalog, projectID int64, value, defaultCode string) (int64, error) {
	if value == "" {
		value = defaultCode
	}
	if value == "" {
		return 0, nil
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return id, nil
	}
	if c == nil {
		return 0, fmt.Errorf("environment %q must be an id", value)
	}
	e, ok := c.EnvironmentByCode(projectID, value)
	if !ok {
		return 0, fmt.Errorf("project %d has no environment %q", projectID, value)
	}
	return e.ID, nil
}

// parseKeyValues splits "key<sep>value" pairs.
func parseKeyValues(pairs []string, sep string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, sep)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key%svalue, got %q", sep, pair)
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, nil
}
