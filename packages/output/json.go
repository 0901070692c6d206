package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary         `json:"summary"`
	Results  []*runner.RunResult `json:"results"`
	Duration float64             `json:"duration"` // milliseconds
	Time     string              `json:"time"`
}

// JSONSummary is runner.Summary with latencies in milliseconds.
type JSONSummary struct {
	Total            int            `json:"total"`
	Passed           int            `json:"passed"`
	Failed           int            `json:"failed"`
	Errored          int            `json:"errored"`
	ErrorKinds       map[string]int `json:"errorKinds,omitempty"`
	Assertions       int            `json:"assertions"`
	AssertionsPassed int            `json:"assertionsPassed"`
	Latency          *JSONLatency   `json:"latency,omitempty"`
}

type JSONLatency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []*runner.RunResult
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]*runner.RunResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.results = append(f.results, result)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual run results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(summary runner.Summary, elapsed time.Duration) error {
	output := JSONOutput{
		Summary: JSONSummary{
			Total:            summary.Total,
			Passed:           summary.Passed,
			Failed:           summary.Failed,
			Errored:          summary.Errored,
			ErrorKinds:       summary.ErrorKinds,
			Assertions:       summary.Assertions,
			AssertionsPassed: summary.AssertionsPassed,
		},
		Results:  f.results,
		Duration: milliseconds(elapsed),
		Time:     time.Now().Format(time.RFC3339),
	}
	if summary.Max > 0 {
		output.Summary.Latency = &JSONLatency{
			Min:  milliseconds(summary.Min),
			Mean: milliseconds(summary.Mean),
			P50:  milliseconds(summary.P50),
			P95:  milliseconds(summary.P95),
			P99:  milliseconds(summary.P99),
			Max:  milliseconds(summary.Max),
		}
	}
	f.results = f.results[:0]
	return WriteJSON(f.writer, output)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
