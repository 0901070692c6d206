package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcase/packages/assertions"
	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
)

// Formatter renders run results.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	Flush(summary runner.Summary, elapsed time.Duration) error
}

// Formats lists the names accepted by NewFormatter.
var Formats = []string{"console", "json", "junit", "tap"}

// NewFormatter builds the formatter registered under format.
func NewFormatter(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(Formats, ", "))
}

// ResultName labels a run: its test case name, or the short run id.
func ResultName(result *runner.RunResult) string {
	if result.Name != "" {
		return result.Name
	}
	if result.TestCaseID != 0 {
		return fmt.Sprintf("test case %d", result.TestCaseID)
	}
	return "run " + result.ID.String()[:8]
}

// describeAssertion renders "body $.data.id eq".
func describeAssertion(r assertions.Result) string {
	parts := []string{string(r.Assertion.Source)}
	if r.Assertion.Expression != "" {
		parts = append(parts, r.Assertion.Expression)
	}
	parts = append(parts, string(r.Assertion.Operator))
	return strings.Join(parts, " ")
}

// FailureLines describes each failed assertion on one line.
func FailureLines(result *runner.RunResult) []string {
	var lines []string
	for _, a := range result.Assertions {
		if a.Passed {
			continue
		}
		line := fmt.Sprintf("%s: expected %s, got %s",
			describeAssertion(a), formatValue(a.Assertion.Value, 100), formatValue(a.Actual, 100))
		if a.Error != "" {
			line += " (" + a.Error + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// transportError returns the run's request failure message, if any.
func transportError(result *runner.RunResult) string {
	if result.Response == nil || result.Response.Error == nil {
		return ""
	}
	return result.Response.Error.Error()
}
