package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcase/packages/http"
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrTestCaseNotFound    = errors.New("test case not found")
	ErrEnvironmentNotFound = errors.New("environment not found")
)

// Store supplies the entities a run needs. Missing entities are reported
// with errors wrapping the package's sentinel errors.
type Store interface {
	Environment(ctx context.Context, id int64) (*model.Environment, error)
	// DefaultEnvironment returns the environment of a project flagged as
	// default.
	DefaultEnvironment(ctx context.Context, projectID int64) (*model.Environment, error)
	TestCase(ctx context.Context, id int64) (*model.TestCase, error)
	// TestCases returns a project's test cases in their stored order.
	TestCases(ctx context.Context, projectID int64) ([]*model.TestCase, error)
}

// Recorder persists run results.
type Recorder interface {
	Record(ctx context.Context, result *runner.RunResult) error
}

type Engine struct {
	store    Store
	runner   *runner.Runner
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Engine)

func WithRunner(r *runner.Runner) Option {
	return func(e *Engine) {
		e.runner = r
	}
}

func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = runner.NewRunner(nil, runner.WithLogger(e.logger))
	}
	return e
}

// DebugRun executes an ad-hoc request without assertions. When the request
// names an environment, its base URL and headers apply. Only the environment
// lookup can fail; build and transport failures are carried in the response.
func (e *Engine) DebugRun(ctx context.Context, req model.DebugRequest) (*http.Response, error) {
	var environment *model.Environment
	if req.EnvironmentID != 0 {
		var err error
		environment, err = e.environment(ctx, 0, req.EnvironmentID)
		if err != nil {
			return nil, err
		}
	}

	tmpl := req.Template()
	result := e.runner.Run(ctx, environment, &tmpl, nil)
	return result.Response, nil
}

// ExecuteTestCase runs a stored test case with its assertions. An
// environmentID of 0 selects the project's default environment.
func (e *Engine) ExecuteTestCase(ctx context.Context, projectID, testCaseID, environmentID int64) (*runner.RunResult, error) {
	tc, err := e.testCase(ctx, projectID, testCaseID)
	if err != nil {
		return nil, err
	}
	environment, err := e.environment(ctx, projectID, environmentID)
	if err != nil {
		return nil, err
	}

	result := e.runner.RunJob(ctx, runner.JobFromTestCase(tc, environment))
	e.record(ctx, result)
	return result, nil
}

// ExecuteTestCases runs several test cases of a project as one batch. All
// lookups happen before anything is executed.
func (e *Engine) ExecuteTestCases(ctx context.Context, projectID int64, testCaseIDs []int64, environmentID int64) ([]*runner.RunResult, error) {
	environment, err := e.environment(ctx, projectID, environmentID)
	if err != nil {
		return nil, err
	}

	jobs := make([]runner.Job, 0, len(testCaseIDs))
	for _, id := range testCaseIDs {
		tc, err := e.testCase(ctx, projectID, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, runner.JobFromTestCase(tc, environment))
	}
	return e.runBatch(ctx, jobs), nil
}

// ExecuteProject runs every test case of a project as one batch.
func (e *Engine) ExecuteProject(ctx context.Context, projectID, environmentID int64) ([]*runner.RunResult, error) {
	cases, err := e.store.TestCases(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing test cases of project %d: %w", projectID, err)
	}
	environment, err := e.environment(ctx, projectID, environmentID)
	if err != nil {
		return nil, err
	}

	jobs := make([]runner.Job, len(cases))
	for i, tc := range cases {
		jobs[i] = runner.JobFromTestCase(tc, environment)
	}
	return e.runBatch(ctx, jobs), nil
}

func (e *Engine) runBatch(ctx context.Context, jobs []runner.Job) []*runner.RunResult {
	results := e.runner.RunBatch(ctx, jobs)
	for _, result := range results {
		e.record(ctx, result)
	}
	return results
}

func (e *Engine) testCase(ctx context.Context, projectID, testCaseID int64) (*model.TestCase, error) {
	tc, err := e.store.TestCase(ctx, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("test case %d: %w", testCaseID, err)
	}
	if tc == nil || tc.ProjectID != projectID {
		return nil, fmt.Errorf("test case %d in project %d: %w", testCaseID, projectID, ErrTestCaseNotFound)
	}
	return tc, nil
}

func (e *Engine) environment(ctx context.Context, projectID, environmentID int64) (*model.Environment, error) {
	var (
		environment *model.Environment
		err         error
	)
	if environmentID == 0 {
		environment, err = e.store.DefaultEnvironment(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("default environment of project %d: %w", projectID, err)
		}
	} else {
		environment, err = e.store.Environment(ctx, environmentID)
		if err != nil {
			return nil, fmt.Errorf("environment %d: %w", environmentID, err)
		}
	}
	if environment == nil {
		return nil, ErrEnvironmentNotFound
	}
	return environment, nil
}

// record hands a result to the recorder. Recorder failures never fail a run.
func (e *Engine) record(ctx context.Context, result *runner.RunResult) {
	if e.recorder == nil || result == nil {
		return
	}
	if err := e.recorder.Record(ctx, result); err != nil {
		e.logger.Warn("failed to record run",
			zap.String("run", result.ID.String()),
			zap.Int64("test_case_id", result.TestCaseID),
			zap.Error(err))
	}
}
