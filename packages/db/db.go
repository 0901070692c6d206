// Package db stores run history in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcase/packages/http"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	test_case_id      INTEGER NOT NULL DEFAULT 0,
	environment_id    INTEGER NOT NULL DEFAULT 0,
	passed            INTEGER NOT NULL,
	status_code       INTEGER NOT NULL DEFAULT 0,
	error_kind        TEXT NOT NULL DEFAULT '',
	duration_us       INTEGER NOT NULL DEFAULT 0,
	assertions_total  INTEGER NOT NULL DEFAULT 0,
	assertions_passed INTEGER NOT NULL DEFAULT 0,
	started_at        TEXT NOT NULL,
	result            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_test_case ON runs (test_case_id, started_at);
`

// Fixed width so that started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one row of run history.
type Run struct {
	ID               string          `json:"id"`
	Name             string          `json:"name,omitempty"`
	TestCaseID       int64           `json:"test_case_id"`
	EnvironmentID    int64           `json:"environment_id"`
	Passed           bool            `json:"passed"`
	StatusCode       int             `json:"status_code"`
	ErrorKind        string          `json:"error_kind,omitempty"`
	Duration         time.Duration   `json:"duration"`
	Assertions       int             `json:"assertions"`
	AssertionsPassed int             `json:"assertions_passed"`
	StartedAt        time.Time       `json:"started_at"`
	Result           json.RawMessage `json:"result,omitempty"`
}

// Client records runs into a history database
type Client struct {
	db           *sql.DB
	dataSource   string
	queryTimeout time.Duration
}

// NewClient opens (and if needed creates) the history database behind a
// connection string such as sqlite://runs.db or sqlite:./runs.db.
func NewClient(connectionString string) (*Client, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Client{
		db:           db,
		dataSource:   dsn,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Record stores a run result. It satisfies engine.Recorder.
func (c *Client) Record(ctx context.Context, result *runner.RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	var (
		statusCode int
		errorKind  string
		duration   time.Duration
		passedN    int
	)
	if resp := result.Response; resp != nil {
		statusCode = resp.StatusCode
		duration = resp.Duration
		if resp.Error != nil {
			errorKind = http.ErrorKind(resp.Error)
		}
	}
	for _, a := range result.Assertions {
		if a.Passed {
			passedN++
		}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, test_case_id, environment_id, passed, status_code, error_kind,
			duration_us, assertions_total, assertions_passed, started_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID.String(), result.Name, result.TestCaseID, result.EnvironmentID, result.Passed,
		statusCode, errorKind, duration.Microseconds(), len(result.Assertions), passedN,
		result.StartedAt.UTC().Format(timeLayout), string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// History returns the most recent runs of a test case, newest first. A
// testCaseID of 0 returns runs of every test case. limit <= 0 means no limit.
func (c *Client) History(ctx context.Context, testCaseID int64, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	query := `SELECT id, name, test_case_id, environment_id, passed, status_code, error_kind,
		duration_us, assertions_total, assertions_passed, started_at, result FROM runs`
	var args []any
	if testCaseID != 0 {
		query += ` WHERE test_case_id = ?`
		args = append(args, testCaseID)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run        Run
			durationUs int64
			startedAt  string
			result     string
		)
		if err := rows.Scan(&run.ID, &run.Name, &run.TestCaseID, &run.EnvironmentID, &run.Passed,
			&run.StatusCode, &run.ErrorKind, &durationUs, &run.Assertions, &run.AssertionsPassed,
			&startedAt, &result); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.Duration = time.Duration(durationUs) * time.Microsecond
		run.Result = json.RawMessage(result)
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// parseConnectionString extracts the SQLite DSN from a connection string.
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./runs.db
// - a bare file path
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", fmt.Errorf("empty connection string")
	}

	if dsn, ok := strings.CutPrefix(connStr, "sqlite://"); ok {
		return dsn, nil
	}
	if dsn, ok := strings.CutPrefix(connStr, "sqlite:"); ok {
		return dsn, nil
	}
	if scheme, _, ok := strings.Cut(connStr, "://"); ok {
		return "", fmt.Errorf("unsupported database scheme: %s", scheme)
	}
	return connStr, nil
}
