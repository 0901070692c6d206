package assertions

import (
	"strings"

	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/http"
)

// Resolve extracts the value an assertion compares against. status_code
// yields an int, response_time the duration in seconds, header a string and
// body the decoded JSON value (or the raw text for a bare "$" on a text
// body). Every failure is an *ExtractError.
func Resolve(resp *http.Response, source model.Source, expr string) (any, error) {
	switch source {
	case model.SourceStatusCode, model.SourceResponseTime, model.SourceHeader, model.SourceBody:
	default:
		return nil, extractErrorf(UnknownSource, "unknown source %q", source)
	}

	if resp == nil {
		return nil, extractErrorf(NoResponse, "no response")
	}
	if resp.Error != nil {
		return nil, extractErrorf(NoResponse, "request failed: %v", resp.Error)
	}

	switch source {
	case model.SourceStatusCode:
		return resp.StatusCode, nil
	case model.SourceResponseTime:
		return resp.DurationSeconds(), nil
	case model.SourceHeader:
		name := strings.TrimSpace(expr)
		if name == "" {
			return nil, extractErrorf(MissingExpression, "header assertion needs a header name")
		}
		v, ok := resp.Headers.Lookup(name)
		if !ok {
			return nil, extractErrorf(HeaderNotFound, "header %q not present", name)
		}
		return v, nil
	default:
		return resolveBody(resp.Body, expr)
	}
}

func resolveBody(body http.Body, expr string) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, extractErrorf(MissingExpression, "body assertion needs a path")
	}
	path, err := ParsePath(strings.TrimSpace(expr))
	if err != nil {
		return nil, extractErrorf(InvalidExpression, "%v", err)
	}

	switch body.Kind() {
	case http.BodyAbsent:
		return nil, extractErrorf(NoBody, "response has no body")
	case http.BodyText:
		text, _ := body.Text()
		if len(path.Steps) == 0 {
			return text, nil
		}
		return nil, extractErrorf(PathNotFound, "response body is not JSON, cannot resolve %q", expr)
	default:
		v, _ := body.JSON()
		return path.Lookup(v)
	}
}
