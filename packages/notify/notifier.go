// Package notify posts run summaries to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/hitcase/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcase/packages/output"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing batch after a failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. The empty string selects
// NotifyFailure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (expected always, failure, success or recovery)", s)
}

// RunSummary is the notification payload for one batch.
type RunSummary struct {
	Project       string        `json:"project,omitempty"`
	Environment   string        `json:"environment,omitempty"`
	Total         int           `json:"total"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
	FailedResults []FailedRun   `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// FailedRun names a failed run and why it failed.
type FailedRun struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors,omitempty"`
}

// NewRunSummary builds the payload from a finished batch.
func NewRunSummary(results []*runner.RunResult, elapsed time.Duration) *RunSummary {
	summary := runner.Summarize(results)
	s := &RunSummary{
		Total:    summary.Total,
		Passed:   summary.Passed,
		Failed:   summary.Failed,
		Duration: elapsed,
	}
	for _, result := range results {
		if result == nil || result.Passed {
			continue
		}
		failed := FailedRun{Name: output.ResultName(result)}
		if result.Response != nil && result.Response.Error != nil {
			failed.Errors = append(failed.Errors, result.Response.Error.Error())
		}
		failed.Errors = append(failed.Errors, output.FailureLines(result)...)
		s.FailedResults = append(s.FailedResults, failed)
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
	Name() string
}

// Manager applies the notification policy and fans out to notifiers. It
// remembers the outcome of the previous batch for NotifyRecovery.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// Len returns the number of configured notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends the summary when the policy asks for it. Every notifier is
// tried; failures are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	currentSuccess := summary.Failed == 0

	shouldNotify := false
	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}
	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func headline(summary *RunSummary) string {
	switch {
	case summary.Failed > 0:
		return fmt.Sprintf("%d of %d test case(s) failed", summary.Failed, summary.Total)
	case summary.IsRecovery:
		return "Test cases recovered"
	}
	return fmt.Sprintf("All %d test case(s) passed", summary.Total)
}

// postJSON sends a webhook payload and accepts any 2xx status.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
