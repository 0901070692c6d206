package http

import (
	"encoding/json"
	"fmt"
	"net/textproto"
	neturl "net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/tidwall/gjson"
)

// Request is a fully resolved outbound request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

// SetHeader stores a header under its canonical key.
func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[textproto.CanonicalMIMEHeaderKey(key)] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// Header returns a header value ignoring case.
func (r *Request) Header(key string) (string, bool) {
	return Headers(r.Headers).Lookup(key)
}

var pathParamPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// BuildRequest merges an environment and a request template into an
// outbound request. env may be nil, in which case the template URL must be
// absolute. resolve interpolates {{var}} references and may be nil.
//
// Every failure is a *ConfigError and is detected before any network I/O.
func BuildRequest(env *model.Environment, tmpl *model.RequestTemplate, resolve func(string) string) (*Request, error) {
	if resolve == nil {
		resolve = func(s string) string { return s }
	}

	method, ok := model.NormalizeMethod(tmpl.Method)
	if !ok {
		return nil, configErrorf(InvalidMethod, "method", "unsupported method %q (allowed: %s)",
			tmpl.Method, strings.Join(model.Methods, ", "))
	}

	bodyType := tmpl.BodyType.Normalize()
	if !bodyType.Valid() {
		return nil, configErrorf(InvalidBodyType, "body_type", "unsupported body type %q (allowed: json, text, none)", tmpl.BodyType)
	}

	path, err := applyPathParams(resolve(tmpl.URL), tmpl.PathParams)
	if err != nil {
		return nil, err
	}

	target := path
	if env != nil {
		base := resolve(env.BaseURL)
		if err := ValidateURL(base); err != nil {
			return nil, configErrorf(InvalidBaseURL, "base_url", "%v", err)
		}
		target = JoinURL(base, path)
	}

	target, err = applyQueryParams(target, tmpl.Params, resolve)
	if err != nil {
		return nil, err
	}
	if err := ValidateURL(target); err != nil {
		return nil, configErrorf(InvalidURL, "url", "%v", err)
	}

	req := NewRequest(method, target)
	if env != nil {
		for k, v := range env.Headers {
			req.SetHeader(k, resolve(v))
		}
	}
	for k, v := range tmpl.Headers {
		req.SetHeader(k, resolve(v))
	}

	body, isJSON, err := buildBody(bodyType, tmpl.Body, resolve)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.SetBody(body)
		if _, exists := req.Header("Content-Type"); isJSON && !exists {
			req.SetHeader("Content-Type", "application/json")
		}
	}

	return req, nil
}

// JoinURL joins a base URL and a path with exactly one separating slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// applyPathParams substitutes {name} placeholders. Double-braced {{var}}
// references are left for the variable resolver.
func applyPathParams(path string, params map[string]any) (string, error) {
	matches := pathParamPattern.FindAllStringSubmatchIndex(path, -1)
	if len(matches) == 0 {
		return path, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if (start > 0 && path[start-1] == '{') || (end < len(path) && path[end] == '}') {
			continue
		}
		name := path[m[2]:m[3]]
		value, ok := params[name]
		if !ok || value == nil {
			return "", configErrorf(MissingPathParam, name, "no value for path placeholder {%s}", name)
		}
		s, ok := model.FormatScalar(value)
		if !ok {
			return "", configErrorf(MissingPathParam, name, "path parameter must be a scalar, got %T", value)
		}
		b.WriteString(path[last:start])
		b.WriteString(neturl.PathEscape(s))
		last = end
	}
	b.WriteString(path[last:])
	return b.String(), nil
}

// applyQueryParams appends the encoded params to the query already in target,
// which is kept byte for byte.
func applyQueryParams(target string, params map[string]any, resolve func(string) string) (string, error) {
	if len(params) == 0 {
		return target, nil
	}

	u, err := neturl.Parse(target)
	if err != nil {
		return "", configErrorf(InvalidURL, "url", "invalid URL: %v", err)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make(neturl.Values, len(params))
	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}
		s, ok := model.FormatScalar(v)
		if !ok {
			return "", configErrorf(InvalidQueryParam, k, "query parameter must be a string, number or boolean, got %T", v)
		}
		q.Set(k, resolve(s))
	}

	encoded := q.Encode()
	switch {
	case encoded == "":
		return target, nil
	case u.RawQuery == "":
		u.RawQuery = encoded
	default:
		u.RawQuery += "&" + encoded
	}
	return u.String(), nil
}

// buildBody returns the payload to send and whether it is JSON. A JSON body
// given as a string is treated as JSON text typed by the user and must parse.
func buildBody(bodyType model.BodyType, body json.RawMessage, resolve func(string) string) ([]byte, bool, error) {
	if bodyType == model.BodyNone || model.IsEmptyBody(body) {
		return nil, false, nil
	}

	var text string
	isString := json.Unmarshal(body, &text) == nil

	if bodyType == model.BodyText {
		if isString {
			return []byte(resolve(text)), false, nil
		}
		return []byte(resolve(string(body))), false, nil
	}

	raw := string(body)
	if isString {
		raw = strings.TrimSpace(text)
		if raw == "" {
			return nil, false, nil
		}
	}
	raw = resolve(raw)
	if !gjson.Valid(raw) {
		return nil, false, configErrorf(MalformedJSON, "body", "body is not valid JSON: %s", truncate(raw, 80))
	}
	return []byte(raw), true, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
