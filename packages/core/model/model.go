package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// BodyType tags how a request template body is sent.
type BodyType string

const (
	BodyJSON BodyType = "json"
	BodyText BodyType = "text"
	BodyNone BodyType = "none"
)

// Normalize lower-cases the body type and maps the empty value to BodyJSON.
func (b BodyType) Normalize() BodyType {
	if b == "" {
		return BodyJSON
	}
	return BodyType(strings.ToLower(strings.TrimSpace(string(b))))
}

// Valid reports whether the normalized body type is one of json, text or none.
func (b BodyType) Valid() bool {
	switch b.Normalize() {
	case BodyJSON, BodyText, BodyNone:
		return true
	}
	return false
}

// Source selects which part of a response an assertion extracts.
type Source string

const (
	SourceStatusCode   Source = "status_code"
	SourceHeader       Source = "header"
	SourceBody         Source = "body"
	SourceResponseTime Source = "response_time"
)

// NeedsExpression reports whether the source requires an expression
// (a header name or a body path).
func (s Source) NeedsExpression() bool {
	return s == SourceHeader || s == SourceBody
}

// Operator is the comparison applied between actual and expected values.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpContains    Operator = "contains"
)

// Methods lists the HTTP methods a request template may use.
var Methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// NormalizeMethod upper-cases m and reports whether it is a supported method.
func NormalizeMethod(m string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(m))
	for _, allowed := range Methods {
		if upper == allowed {
			return upper, true
		}
	}
	return upper, false
}

// Environment is a deployment target a request can run against.
type Environment struct {
	ID          int64             `json:"id"`
	ProjectID   int64             `json:"project_id,omitempty"`
	Name        string            `json:"name"`
	Code        string            `json:"code"`
	BaseURL     string            `json:"base_url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Variables   map[string]any    `json:"variables,omitempty"`
	Description string            `json:"description,omitempty"`
	IsDefault   bool              `json:"is_default"`
}

// RequestTemplate is a stored request definition. URL is usually a path
// relative to an environment's base URL.
type RequestTemplate struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Params     map[string]any    `json:"params,omitempty"`
	PathParams map[string]any    `json:"path_params,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	BodyType   BodyType          `json:"body_type,omitempty"`
}

// Assertion is a declarative check against a response.
type Assertion struct {
	Source     Source   `json:"source"`
	Expression string   `json:"expression,omitempty"`
	Operator   Operator `json:"operator"`
	Value      any      `json:"value"`
}

// TestCase couples a request template with the assertions run against its
// response.
type TestCase struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RequestTemplate
	Assertions []Assertion `json:"assertions,omitempty"`
}

// DebugRequest is an ad-hoc request executed without assertions. When
// EnvironmentID is set the environment's base URL and headers are applied.
type DebugRequest struct {
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	EnvironmentID int64             `json:"environment_id,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Params        map[string]any    `json:"params,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	BodyType      BodyType          `json:"body_type,omitempty"`
}

// Template converts the debug request into a request template.
func (d DebugRequest) Template() RequestTemplate {
	return RequestTemplate{
		Method:   d.Method,
		URL:      d.URL,
		Headers:  d.Headers,
		Params:   d.Params,
		Body:     d.Body,
		BodyType: d.BodyType,
	}
}

// TextBody encodes raw text as a template body.
func TextBody(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// IsEmptyBody reports whether a template body carries no payload: absent,
// JSON null, or an empty string.
func IsEmptyBody(body json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(body))
	return trimmed == "" || trimmed == "null" || trimmed == `""`
}

// FormatScalar renders a string, number or boolean the way it would be typed
// in a template (200, 1.5, true). It reports false for any other value.
func FormatScalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case json.Number:
		return val.String(), true
	}
	return "", false
}
