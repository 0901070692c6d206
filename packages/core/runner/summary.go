package runner

import (
	"errors"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/hitcase/packages/http"
)

const (
	// Histogram range: 1us to 60s, 3 significant digits
	histogramMinUs   = 1
	histogramMaxUs   = 60_000_000
	histogramSigFigs = 3
)

// Summary aggregates a batch of runs. Errored counts runs that failed with a
// transport error. Latency figures cover runs that obtained an HTTP response.
type Summary struct {
	Total            int            `json:"total"`
	Passed           int            `json:"passed"`
	Failed           int            `json:"failed"`
	Errored          int            `json:"errored"`
	ErrorKinds       map[string]int `json:"error_kinds,omitempty"`
	Assertions       int            `json:"assertions"`
	AssertionsPassed int            `json:"assertions_passed"`
	Min              time.Duration  `json:"min"`
	Mean             time.Duration  `json:"mean"`
	P50              time.Duration  `json:"p50"`
	P95              time.Duration  `json:"p95"`
	P99              time.Duration  `json:"p99"`
	Max              time.Duration  `json:"max"`
}

// AllTransportFailures reports whether every failed run failed because no
// HTTP response was obtained.
func (s Summary) AllTransportFailures() bool {
	return s.Failed > 0 && s.Errored == s.Failed
}

// Summarize aggregates results. Nil entries are ignored.
func Summarize(results []*RunResult) Summary {
	summary := Summary{ErrorKinds: make(map[string]int)}
	histogram := hdrhistogram.New(histogramMinUs, histogramMaxUs, histogramSigFigs)

	for _, r := range results {
		if r == nil {
			continue
		}
		summary.Total++
		if r.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}

		for _, a := range r.Assertions {
			summary.Assertions++
			if a.Passed {
				summary.AssertionsPassed++
			}
		}

		if r.Response == nil {
			continue
		}
		if r.Response.Error != nil {
			summary.ErrorKinds[http.ErrorKind(r.Response.Error)]++
			var cfgErr *http.ConfigError
			if !errors.As(r.Response.Error, &cfgErr) {
				summary.Errored++
			}
			continue
		}

		latencyUs := r.Response.Duration.Microseconds()
		if latencyUs < histogramMinUs {
			latencyUs = histogramMinUs
		}
		if latencyUs > histogramMaxUs {
			latencyUs = histogramMaxUs
		}
		_ = histogram.RecordValue(latencyUs)
	}

	if histogram.TotalCount() > 0 {
		summary.Min = time.Duration(histogram.Min()) * time.Microsecond
		summary.Mean = time.Duration(histogram.Mean()) * time.Microsecond
		summary.P50 = time.Duration(histogram.ValueAtQuantile(50)) * time.Microsecond
		summary.P95 = time.Duration(histogram.ValueAtQuantile(95)) * time.Microsecond
		summary.P99 = time.Duration(histogram.ValueAtQuantile(99)) * time.Microsecond
		summary.Max = time.Duration(histogram.Max()) * time.Microsecond
	}
	return summary
}
