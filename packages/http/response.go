package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// BodyKind tags the variant held by a Body.
type BodyKind int

const (
	BodyAbsent BodyKind = iota
	BodyJSON
	BodyText
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	default:
		return "absent"
	}
}

// Body is a response payload: absent, a decoded JSON value, or raw text.
// The zero value is absent.
type Body struct {
	kind  BodyKind
	value any
	text  string
}

func AbsentBody() Body { return Body{} }

// JSONBody wraps a decoded JSON value (nil for a literal null).
func JSONBody(v any) Body { return Body{kind: BodyJSON, value: v} }

func TextBody(s string) Body { return Body{kind: BodyText, text: s} }

// ParseBody decodes a payload as JSON when it is valid JSON and falls back to
// raw text otherwise. An empty payload is absent. JSON numbers are kept as
// json.Number.
func ParseBody(payload []byte) Body {
	if len(payload) == 0 {
		return AbsentBody()
	}
	if gjson.ValidBytes(payload) {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return JSONBody(v)
		}
	}
	return TextBody(string(payload))
}

func (b Body) Kind() BodyKind { return b.kind }

func (b Body) IsAbsent() bool { return b.kind == BodyAbsent }

// JSON returns the decoded value when the body holds JSON.
func (b Body) JSON() (any, bool) {
	return b.value, b.kind == BodyJSON
}

// Text returns the raw text when the body could not be decoded as JSON.
func (b Body) Text() (string, bool) {
	return b.text, b.kind == BodyText
}

// Value returns the JSON value, the text, or nil for an absent body.
func (b Body) Value() any {
	switch b.kind {
	case BodyJSON:
		return b.value
	case BodyText:
		return b.text
	default:
		return nil
	}
}

func (b Body) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Value())
}

// Headers holds response headers under canonical keys. Multiple values of
// one header are joined with ", ".
type Headers map[string]string

// NewHeaders flattens net/http headers.
func NewHeaders(h http.Header) Headers {
	headers := make(Headers, len(h))
	for k, values := range h {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = strings.Join(values, ", ")
	}
	return headers
}

// Lookup finds a header ignoring case.
func (h Headers) Lookup(key string) (string, bool) {
	if v, ok := h[textproto.CanonicalMIMEHeaderKey(key)]; ok {
		return v, true
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Response is the outcome of one execution. When Error is set no HTTP
// response was obtained: StatusCode is 0, Headers empty and Body absent.
type Response struct {
	StatusCode int
	Status     string
	Headers    Headers
	Body       Body
	Duration   time.Duration
	Error      error
}

// FailedResponse builds the response reported for a failed execution.
func FailedResponse(err error, duration time.Duration) *Response {
	return &Response{
		Headers:  Headers{},
		Body:     AbsentBody(),
		Duration: duration,
		Error:    err,
	}
}

// Header returns the value of a header ignoring case, or "".
func (r *Response) Header(key string) string {
	v, _ := r.Headers.Lookup(key)
	return v
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Failed reports whether the execution produced no HTTP response.
func (r *Response) Failed() bool {
	return r.Error != nil
}

// DurationSeconds returns the elapsed time in fractional seconds.
func (r *Response) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

type responseJSON struct {
	StatusCode  int     `json:"status_code"`
	Headers     Headers `json:"headers"`
	Body        Body    `json:"body"`
	Duration    float64 `json:"duration"`
	Error       string  `json:"error,omitempty"`
	ErrorDetail string  `json:"error_detail,omitempty"`
}

// MarshalJSON renders the response with the duration in seconds and the
// error split into its classification and detail.
func (r *Response) MarshalJSON() ([]byte, error) {
	out := responseJSON{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
		Duration:   r.DurationSeconds(),
	}
	if out.Headers == nil {
		out.Headers = Headers{}
	}
	if r.Error != nil {
		out.Error = ErrorKind(r.Error)
		out.ErrorDetail = r.Error.Error()
	}
	return json.Marshal(out)
}
