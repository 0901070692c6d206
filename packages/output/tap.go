package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
)

// TAPFormatter streams run results as TAP version 13. Each result is
// written when it arrives and the plan closes the stream.
type TAPFormatter struct {
	writer  io.Writer
	count   int
	started bool
}

// tapDiagnostic is the YAML block written under a failed test point.
type tapDiagnostic struct {
	Message    string   `yaml:"message,omitempty"`
	Severity   string   `yaml:"severity,omitempty"`
	Status     int      `yaml:"status,omitempty"`
	DurationMs int64    `yaml:"duration_ms,omitempty"`
	Failures   []string `yaml:"failures,omitempty"`
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatHeader(version string) {
	f.start()
}

func (f *TAPFormatter) start() {
	if !f.started {
		fmt.Fprintf(f.writer, "TAP version 13\n")
		f.started = true
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	f.start()
	f.count++
	name := ResultName(result)

	if result.Passed {
		fmt.Fprintf(f.writer, "ok %d - %s\n", f.count, name)
		return
	}
	fmt.Fprintf(f.writer, "not ok %d - %s\n", f.count, name)

	diag := tapDiagnostic{Failures: FailureLines(result)}
	if msg := transportError(result); msg != "" {
		diag.Message = msg
		diag.Severity = "error"
	} else if result.Response != nil {
		diag.Status = result.Response.StatusCode
		diag.DurationMs = result.Response.DurationMs()
	}
	f.writeDiagnostic(diag)
}

func (f *TAPFormatter) writeDiagnostic(diag tapDiagnostic) {
	data, err := yaml.Marshal(diag)
	if err != nil || len(data) == 0 {
		return
	}
	fmt.Fprintf(f.writer, "  ---\n")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(f.writer, "  %s\n", line)
	}
	fmt.Fprintf(f.writer, "  ...\n")
}

func (f *TAPFormatter) FormatError(err error) {
	f.start()
	fmt.Fprintf(f.writer, "Bail out! %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
}

// Flush writes the trailing plan and a summary comment.
func (f *TAPFormatter) Flush(summary runner.Summary, elapsed time.Duration) error {
	f.start()
	fmt.Fprintf(f.writer, "1..%d\n", f.count)
	_, err := fmt.Fprintf(f.writer, "# %d passed, %d failed, %dms\n", summary.Passed, summary.Failed, elapsed.Milliseconds())
	return err
}
