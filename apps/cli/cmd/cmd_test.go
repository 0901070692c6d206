package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/db"
)

func resetFlags() {
	runFlags = settingsFlags{}
	debugFlags = settingsFlags{}
	projectFlag = 0
	caseFlags = nil
	envFlag = ""
	verboseFlag = 0
	outputFlag = ""
	outputFileFlag = ""
	watchFlag = false
	notifySlack = ""
	notifyTeams = ""
	notifyOnFlag = ""
	debugMethod = "GET"
	debugURL = ""
	debugEnv = 0
	debugHeaders = nil
	debugParams = nil
	debugBody = ""
	debugBodyType = "json"
	debugRequestFile = ""
	historyDSN = ""
	historyConfig = ""
	historyCase = 0
	historyLimit = 20
	historyOutput = "console"
	historyNoColor = false
	versionJSON = false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeCatalog(t *testing.T, baseURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
projects:
  - id: 1
    name: users-api
    environments:
      - {id: 1, name: Local, code: local, base_url: %q, is_default: true}
    test_cases:
      - id: 1
        name: get user
        method: GET
        url: /users/{id}
        path_params: {id: 42}
        assertions:
          - {source: status_code, operator: eq, value: 200}
          - {source: body, expression: $.name, operator: eq, value: Ada}
      - id: 2
        name: missing user
        method: GET
        url: /users/0
        assertions:
          - {source: status_code, operator: eq, value: 200}
`, baseURL)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newUserServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/users/42" {
			fmt.Fprint(w, `{"id":42,"name":"Ada"}`)
			return
		}
		w.WriteHeader(nethttp.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunCommandPassing(t *testing.T) {
	server := newUserServer(t)
	path := writeCatalog(t, server.URL)

	out, err := execute(t, "run", "--catalog", path, "--project", "1", "--case", "1", "--no-color")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ get user")
	assert.Contains(t, out, "1 passed, 1 total")
}

func TestRunCommandFailingRecordsHistory(t *testing.T) {
	server := newUserServer(t)
	path := writeCatalog(t, server.URL)
	historyPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--catalog", path, "--project", "1", "--env", "local",
		"--history", "sqlite://"+historyPath, "--output", "json")
	assert.Equal(t, ExitTestFailure, exitCode(err), out)

	var report struct {
		Summary struct {
			Total  int `json:"total"`
			Failed int `json:"failed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Failed)

	client, err := db.NewClient("sqlite://" + historyPath)
	require.NoError(t, err)
	defer client.Close()
	runs, err := client.History(t.Context(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	out, err = execute(t, "history", "--history", "sqlite://"+historyPath, "--case", "2", "--output", "json")
	require.NoError(t, err, out)
	var recorded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recorded))
	require.Len(t, recorded, 1)
	assert.Equal(t, "missing user", recorded[0]["name"])
	assert.Equal(t, false, recorded[0]["passed"])
	assert.Equal(t, float64(404), recorded[0]["status_code"])
}

func TestRunCommandNetworkFailure(t *testing.T) {
	server := newUserServer(t)
	baseURL := server.URL
	server.Close()
	path := writeCatalog(t, baseURL)

	_, err := execute(t, "run", "--catalog", path, "--project", "1", "--no-color")
	assert.Equal(t, ExitNetworkError, exitCode(err))
}

func TestRunCommandErrors(t *testing.T) {
	path := writeCatalog(t, "http://localhost:1")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing project", []string{"run", "--catalog", path}, ExitUsageError},
		{"missing catalog file", []string{"run", "--catalog", filepath.Join(t.TempDir(), "nope.yaml"), "--project", "1"}, ExitParseError},
		{"unknown environment code", []string{"run", "--catalog", path, "--project", "1", "--env", "prod"}, ExitConfigError},
		{"unknown test case", []string{"run", "--catalog", path, "--project", "1", "--case", "99"}, ExitConfigError},
		{"bad timeout", []string{"run", "--catalog", path, "--project", "1", "--timeout", "soon"}, ExitUsageError},
		{"bad output", []string{"run", "--catalog", path, "--project", "1", "--output", "html"}, ExitUsageError},
		{"bad notify policy", []string{"run", "--catalog", path, "--project", "1", "--notify-on", "sometimes"}, ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Equal(t, tt.code, exitCode(err), "error: %v", err)
		})
	}
}

func TestRunCommandNotifiesSlack(t *testing.T) {
	server := newUserServer(t)
	path := writeCatalog(t, server.URL)

	var payload map[string]any
	webhook := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer webhook.Close()

	_, err := execute(t, "run", "--catalog", path, "--project", "1", "--no-color", "--notify-slack", webhook.URL)
	assert.Equal(t, ExitTestFailure, exitCode(err))

	require.NotNil(t, payload)
	attachment := payload["attachments"].([]any)[0].(map[string]any)
	assert.Contains(t, attachment["title"], "1 of 2 test case(s) failed")
	assert.Contains(t, attachment["text"], "`missing user`")
	fields := attachment["fields"].([]any)
	assert.Contains(t, fields, map[string]any{"title": "Project", "value": "users-api", "short": true})
	assert.Contains(t, fields, map[string]any{"title": "Environment", "value": "local", "short": true})
}

func TestDebugCommand(t *testing.T) {
	server := newUserServer(t)

	out, err := execute(t, "debug", "--url", server.URL+"/users/42", "--header", "X-Trace: 1")
	require.NoError(t, err, out)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, float64(200), resp["status_code"])
	assert.Equal(t, map[string]any{"id": float64(42), "name": "Ada"}, resp["body"])
}

func TestDebugCommandWithEnvironment(t *testing.T) {
	server := newUserServer(t)
	path := writeCatalog(t, server.URL)

	out, err := execute(t, "debug", "--catalog", path, "--env", "1", "--url", "/users/42")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"name": "Ada"`)

	_, err = execute(t, "debug", "--catalog", path, "--env", "9", "--url", "/users/42")
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestDebugCommandRequestDocument(t *testing.T) {
	server := newUserServer(t)
	path := filepath.Join(t.TempDir(), "request.json")
	doc := fmt.Sprintf(`{"method": "get", "url": %q, "params": {"verbose": true}}`, server.URL+"/users/42")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, "debug", "--request", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"status_code": 200`)

	require.NoError(t, os.WriteFile(path, []byte(`{"method": "TRACE", "url": "x"}`), 0o644))
	_, err = execute(t, "debug", "--request", path)
	assert.Equal(t, ExitParseError, exitCode(err))
}

func TestDebugCommandMalformedBody(t *testing.T) {
	out, err := execute(t, "debug", "--method", "POST", "--url", "http://localhost:1/x", "--body", "{broken")
	assert.Equal(t, ExitNetworkError, exitCode(err))
	assert.Contains(t, out, `"error": "malformed_json"`)
}

func TestValidateCommand(t *testing.T) {
	good := writeCatalog(t, "http://localhost")
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("projects:\n  - id: 1\n"), 0o644))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 projects, 1 environments, 2 test cases")

	out, err = execute(t, "validate", good, bad)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, out, "Error in "+bad)
	assert.Contains(t, out, "name is required")
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list", writeCatalog(t, "http://localhost"))
	require.NoError(t, err)
	assert.Contains(t, out, "[1] users-api")
	assert.Contains(t, out, "[1] local  http://localhost (default)")
	assert.Contains(t, out, "[2] missing user  GET /users/0  (1 assertions)")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hitcase version dev")

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
	assert.NotEmpty(t, info["go"])
}

func TestRunFlagCompletion(t *testing.T) {
	resetFlags()
	runFlags.catalogPath = writeCatalog(t, "http://localhost")

	cases, directive := completeTestCases(runCmd, nil, "")
	assert.Equal(t, []string{"1\tget user", "2\tmissing user"}, cases)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	envs, _ := completeEnvironments(runCmd, nil, "")
	assert.Empty(t, envs, "no project selected")

	projectFlag = 1
	envs, _ = completeEnvironments(runCmd, nil, "")
	assert.Equal(t, []string{"local\tLocal (http://localhost)"}, envs)

	projectFlag = 2
	cases, _ = completeTestCases(runCmd, nil, "")
	assert.Empty(t, cases)
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "hitcase")

	_, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestExampleCatalogIsValid(t *testing.T) {
	data, err := yaml.Marshal(exampleCatalog())
	require.NoError(t, err)

	c, err := catalog.Parse(data)
	require.NoError(t, err)
	_, environments, testCases := c.Counts()
	assert.Equal(t, 2, environments)
	assert.Equal(t, 3, testCases)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitTestFailure, exitCode(withExitCode(ExitTestFailure, nil)))
	assert.Equal(t, ExitParseError, exitCode(fmt.Errorf("wrapped: %w", withExitCode(ExitParseError, errors.New("bad")))))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
}

func TestParseKeyValues(t *testing.T) {
	values, err := parseKeyValues([]string{"Authorization: Bearer x", "X-Empty:"}, ":")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer x", "X-Empty": ""}, values)

	_, err = parseKeyValues([]string{"novalue"}, "=")
	assert.Error(t, err)
}

func TestSettingsVariables(t *testing.T) {
	t.Setenv("HITCASE_VAR_token", "from-env")
	t.Setenv("HITCASE_VAR_region", "eu")
	for _, name := range []string{"token", "user"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("token=from-file\nuser=ada\n"), 0o644))

	f := settingsFlags{envFile: envFile, vars: []string{"user=grace"}}
	vars, err := f.variables()
	require.NoError(t, err)
	assert.Equal(t, "from-file", vars["token"])
	assert.Equal(t, "eu", vars["region"])
	assert.Equal(t, "grace", vars["user"])
	assert.Equal(t, "ada", os.Getenv("user"), "dotenv values are exported")
}

func TestSettingsLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "hitcase.config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"timeout": 2000, "concurrency": 2, "catalog": "a.yaml"}`), 0o644))

	f := settingsFlags{configPath: configPath, timeout: "500ms", catalogPath: "b.yaml", insecure: true}
	s, err := f.load()
	require.NoError(t, err)
	assert.Equal(t, 500, s.config.Timeout)
	assert.Equal(t, 2, s.config.Concurrency)
	assert.Equal(t, "b.yaml", s.config.Catalog)
	assert.False(t, s.config.GetValidateSSL())
	assert.Equal(t, "warn", s.config.LogLevel)

	f = settingsFlags{configPath: configPath, logLevel: "loud"}
	_, err = f.load()
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestDebugBodyJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(debugBodyJSON(`{"a":1}`, model.BodyJSON)))
	assert.Equal(t, `"{broken"`, string(debugBodyJSON(`{broken`, model.BodyJSON)))
	assert.Equal(t, `"hello"`, string(debugBodyJSON("hello", model.BodyText)))
}

func TestDebounceEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	watched := map[string]bool{path: true}
	events := make(chan fsnotify.Event, 8)
	errs := make(chan error)

	var calls, inFlight, peak atomic.Int32
	started := make(chan string, 4)
	release := make(chan struct{})
	rerun := func(name string) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		calls.Add(1)
		started <- name
		<-release
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		debounceEvents(ctx, events, errs, watched, 20*time.Millisecond, zap.NewNop(), rerun)
	}()

	for range 3 {
		events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	}
	events <- fsnotify.Event{Name: filepath.Join(filepath.Dir(path), "other.yaml"), Op: fsnotify.Write}
	assert.Equal(t, path, <-started)

	// A write during a re-run queues the next one instead of overlapping it.
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	release <- struct{}{}

	assert.Equal(t, path, <-started)
	release <- struct{}{}

	cancel()
	<-done
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), peak.Load())
}

func TestRunOutputTruncatesFile(t *testing.T) {
	resetFlags()
	outputFileFlag = filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(outputFileFlag, []byte("an older and much longer report"), 0o644))

	for _, report := range []string{"first", "second"} {
		w, closeOutput, err := runOutput(&cobra.Command{})
		require.NoError(t, err)
		_, err = fmt.Fprint(w, report)
		require.NoError(t, err)
		closeOutput()
	}

	data, err := os.ReadFile(outputFileFlag)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	outputFileFlag = filepath.Join(t.TempDir(), "missing", "report.json")
	_, _, err = runOutput(&cobra.Command{})
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestLoadRunSettingsFollowsConfigFile(t *testing.T) {
	resetFlags()
	configPath := filepath.Join(t.TempDir(), "hitcase.config.json")
	runFlags.configPath = configPath
	outputFlag = "json"

	require.NoError(t, os.WriteFile(configPath, []byte(`{"timeout": 1000, "notifyOn": "always"}`), 0o644))
	s, err := loadRunSettings()
	require.NoError(t, err)
	assert.Equal(t, 1000, s.config.Timeout)
	assert.Equal(t, "json", s.config.Output)
	assert.Equal(t, "always", s.config.NotifyOn)

	require.NoError(t, os.WriteFile(configPath, []byte(`{"timeout": 2500}`), 0o644))
	s, err = loadRunSettings()
	require.NoError(t, err)
	assert.Equal(t, 2500, s.config.Timeout)
	assert.Equal(t, "json", s.config.Output)
}
