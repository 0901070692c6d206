package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcase/packages/db"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case string:
		v = fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	name := ResultName(result)
	resp := result.Response

	if resp == nil {
		fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), name, red("(no response)"))
		return
	}
	if msg := transportError(result); msg != "" {
		fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), name, red(fmt.Sprintf("(%s)", msg)))
		return
	}

	symbol := green("✓")
	if !result.Passed {
		symbol = red("✗")
	}
	fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, name,
		cyan(fmt.Sprintf("(%d, %dms)", resp.StatusCode, resp.DurationMs())))

	if f.verbose {
		f.formatResponse(result)
	}

	if !result.Passed {
		for _, a := range result.Assertions {
			if a.Passed {
				continue
			}
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), describeAssertion(a))
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Assertion.Value, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Error != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Error)
			}
		}
	}
}

func (f *ConsoleFormatter) formatResponse(result *runner.RunResult) {
	resp := result.Response
	fmt.Fprintf(f.writer, "    Status: %d\n", resp.StatusCode)

	keys := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.writer, "    %s: %s\n", k, resp.Headers[k])
	}

	if resp.Body.IsAbsent() {
		return
	}
	body, err := json.MarshalIndent(resp.Body, "    ", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(f.writer, "    Body: %s\n", body)
}

// Flush prints the batch summary.
func (f *ConsoleFormatter) Flush(summary runner.Summary, elapsed time.Duration) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests:      ")
	if summary.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", summary.Passed)))
	}
	if summary.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", summary.Failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", summary.Total)

	if summary.Assertions > 0 {
		fmt.Fprintf(f.writer, "Assertions: %d/%d passed\n", summary.AssertionsPassed, summary.Assertions)
	}

	if len(summary.ErrorKinds) > 0 {
		kinds := make([]string, 0, len(summary.ErrorKinds))
		for kind, n := range summary.ErrorKinds {
			kinds = append(kinds, fmt.Sprintf("%s=%d", kind, n))
		}
		sort.Strings(kinds)
		fmt.Fprintf(f.writer, "Errors:     %s\n", yellow(strings.Join(kinds, " ")))
	}

	if summary.Max > 0 {
		fmt.Fprintf(f.writer, "Latency:    min %s  mean %s  p50 %s  p95 %s  p99 %s  max %s\n",
			formatDuration(summary.Min), formatDuration(summary.Mean), formatDuration(summary.P50),
			formatDuration(summary.P95), formatDuration(summary.P99), formatDuration(summary.Max))
	}

	fmt.Fprintf(f.writer, "Time:       %dms\n", elapsed.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
	return nil
}

// FormatHistory prints stored runs, newest first, as a table.
func (f *ConsoleFormatter) FormatHistory(runs []db.Run) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if len(runs) == 0 {
		fmt.Fprintf(f.writer, "No runs recorded\n")
		return nil
	}

	table := tablewriter.NewWriter(f.writer)
	table.Header("", "Started", "Test case", "Outcome", "Duration", "Assertions", "Run")
	for _, r := range runs {
		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}
		outcome := fmt.Sprintf("%d", r.StatusCode)
		if r.ErrorKind != "" {
			outcome = red(r.ErrorKind)
		}
		row := []string{
			symbol,
			r.StartedAt.Local().Format(time.DateTime),
			r.Name,
			outcome,
			fmt.Sprintf("%dms", r.Duration.Milliseconds()),
			fmt.Sprintf("%d/%d", r.AssertionsPassed, r.Assertions),
			r.ID[:8],
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n\n", bold("hitcase"), version)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}
