// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Every formatter implements Formatter. Results are passed one at a time
// and Flush writes whatever the format accumulates, ending with the batch
// summary.
package output
