// Package runner executes request templates and aggregates their outcome.
//
// A run moves through four stages: the template is built into a request,
// the request is executed, every assertion is evaluated against the
// response, and the results are aggregated into a RunResult. A template
// rejected at build time short-circuits the run without any network I/O.
//
// RunBatch executes many jobs with bounded concurrency and an optional
// request rate, returning one result per job in job order. Summarize reduces
// a batch to pass/fail totals and latency percentiles.
package runner
