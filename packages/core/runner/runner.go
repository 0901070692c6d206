package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitcase/packages/assertions"
	"github.com/abdul-hamid-achik/hitcase/packages/core/env"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/http"
)

const (
	// DefaultConcurrency is the default number of runs in flight in a batch
	DefaultConcurrency = 5
)

// Executor performs an outbound request. *http.Client implements it.
type Executor interface {
	Execute(ctx context.Context, req *http.Request) *http.Response
}

type Config struct {
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	ValidateSSL    bool
	Proxy          string
	DefaultHeaders map[string]string
	// Concurrency caps the runs of a batch executing at once.
	Concurrency int
	// Rate caps batch requests per second; 0 means unlimited.
	Rate float64
}

// DefaultConfig mirrors the client defaults: redirects followed and TLS
// certificates verified.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        http.DefaultTimeout,
		FollowRedirect: true,
		MaxRedirects:   http.DefaultMaxRedirects,
		ValidateSSL:    true,
		Concurrency:    DefaultConcurrency,
	}
}

type Runner struct {
	client   Executor
	resolver *env.Resolver
	config   *Config
	logger   *zap.Logger
}

type Option func(*Runner)

// WithExecutor replaces the HTTP client built from the config.
func WithExecutor(e Executor) Option {
	return func(r *Runner) {
		r.client = e
	}
}

// WithResolver sets the resolver holding invocation-wide variables.
func WithResolver(res *env.Resolver) Option {
	return func(r *Runner) {
		r.resolver = res
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	r := &Runner{
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = http.NewClient(clientOptions(cfg)...)
	}
	if r.resolver == nil {
		r.resolver = env.NewResolver()
	}
	return r
}

func clientOptions(cfg *Config) []http.ClientOption {
	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(cfg.ValidateSSL),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRedirects > 0 {
		clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.DefaultHeaders) > 0 {
		clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.DefaultHeaders))
	}
	return clientOpts
}

// Job is one run of a batch.
type Job struct {
	Name        string
	TestCaseID  int64
	Environment *model.Environment
	Template    model.RequestTemplate
	Assertions  []model.Assertion
}

// JobFromTestCase builds the job that runs a stored test case.
func JobFromTestCase(tc *model.TestCase, environment *model.Environment) Job {
	return Job{
		Name:        tc.Name,
		TestCaseID:  tc.ID,
		Environment: environment,
		Template:    tc.RequestTemplate,
		Assertions:  tc.Assertions,
	}
}

// RunResult aggregates one execution. Passed is true iff a response was
// obtained and every assertion passed.
type RunResult struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name,omitempty"`
	TestCaseID    int64               `json:"test_case_id,omitempty"`
	EnvironmentID int64               `json:"environment_id,omitempty"`
	Passed        bool                `json:"passed"`
	Response      *http.Response      `json:"result"`
	Assertions    []assertions.Result `json:"assertions"`
	StartedAt     time.Time           `json:"started_at"`
}

// Run builds, executes and evaluates a single request. It never fails: a
// rejected template or a transport failure is carried in the result's
// Response.
func (r *Runner) Run(ctx context.Context, environment *model.Environment, tmpl *model.RequestTemplate, list []model.Assertion) *RunResult {
	return r.RunJob(ctx, Job{Environment: environment, Template: *tmpl, Assertions: list})
}

func (r *Runner) RunJob(ctx context.Context, job Job) *RunResult {
	result := r.newResult(job)
	logger := r.logger.With(zap.String("run", result.ID.String()), zap.String("name", job.Name))

	resolve := r.resolver.Resolve
	if job.Environment != nil && len(job.Environment.Variables) > 0 {
		resolve = r.resolver.With(job.Environment.Variables).Resolve
	}

	req, err := http.BuildRequest(job.Environment, &job.Template, resolve)
	if err != nil {
		logger.Warn("request template rejected", zap.String("kind", http.ErrorKind(err)), zap.Error(err))
		result.Response = http.FailedResponse(err, 0)
		return result
	}
	logger.Debug("request built", zap.String("method", req.Method), zap.String("url", req.URL))

	resp := r.client.Execute(ctx, req)
	if resp.Error != nil {
		logger.Warn("request failed", zap.String("kind", http.ErrorKind(resp.Error)), zap.Error(resp.Error))
	} else {
		logger.Debug("request executed", zap.Int("status", resp.StatusCode), zap.Duration("duration", resp.Duration))
	}
	result.Response = resp

	r.evaluate(result, job.Assertions, logger)
	return result
}

func (r *Runner) newResult(job Job) *RunResult {
	result := &RunResult{
		ID:         uuid.New(),
		Name:       job.Name,
		TestCaseID: job.TestCaseID,
		Assertions: []assertions.Result{},
		StartedAt:  time.Now(),
	}
	if job.Environment != nil {
		result.EnvironmentID = job.Environment.ID
	}
	return result
}

func (r *Runner) evaluate(result *RunResult, list []model.Assertion, logger *zap.Logger) {
	if len(list) > 0 {
		result.Assertions = assertions.EvaluateAll(result.Response, list)
	}
	logger.Debug("assertions evaluated", zap.Int("count", len(result.Assertions)))

	result.Passed = result.Response.Error == nil
	for _, a := range result.Assertions {
		if !a.Passed {
			result.Passed = false
			break
		}
	}
	logger.Debug("run aggregated", zap.Bool("passed", result.Passed))
}

// RunBatch runs every job and returns one result per job, in job order.
// At most Config.Concurrency runs are in flight, and when Config.Rate is set
// requests start no faster than that many per second. Jobs that never start
// yield a cancelled transport error when ctx was cancelled and a timeout when
// its deadline passed or would pass before a limiter token is free.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job) []*RunResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var limiter *rate.Limiter
	if r.config.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.config.Rate), 1)
	}

	results := make([]*RunResult, len(jobs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			results[i] = r.notStarted(job, err)
			continue
		}

		select {
		case sem <- struct{}{}: // acquire semaphore
		case <-ctx.Done():
			results[i] = r.notStarted(job, ctx.Err())
			continue
		}

		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results[idx] = r.notStarted(job, err)
					return
				}
			}
			results[idx] = r.RunJob(ctx, job)
		}(i, job)
	}

	wg.Wait()
	return results
}

func (r *Runner) notStarted(job Job, cause error) *RunResult {
	if cause == nil {
		cause = context.Canceled
	}
	kind := http.KindTimeout
	if errors.Is(cause, context.Canceled) {
		kind = http.KindCancelled
	}
	result := r.newResult(job)
	logger := r.logger.With(zap.String("run", result.ID.String()), zap.String("name", job.Name))
	logger.Warn("run not started", zap.String("kind", string(kind)), zap.Error(cause))

	result.Response = http.FailedResponse(&http.TransportError{Kind: kind, Err: cause}, 0)
	r.evaluate(result, job.Assertions, logger)
	return result
}
