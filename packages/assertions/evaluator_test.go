package assertions

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    http.Headers(headers),
		Body:       http.ParseBody([]byte(body)),
		Duration:   100 * time.Millisecond,
	}
}

func evaluate(resp *http.Response, a model.Assertion) Result {
	actual, err := Resolve(resp, a.Source, a.Expression)
	return Evaluate(actual, err, a)
}

func TestEvaluate_StatusCode(t *testing.T) {
	resp := createResponse(200, `{}`, nil)

	result := evaluate(resp, model.Assertion{Source: model.SourceStatusCode, Operator: model.OpEquals, Value: float64(200)})

	assert.True(t, result.Passed)
	assert.Equal(t, 200, result.Actual)
	assert.Empty(t, result.Error)
}

func TestEvaluate_StatusCodeMismatch(t *testing.T) {
	resp := createResponse(404, `{}`, nil)

	result := evaluate(resp, model.Assertion{Source: model.SourceStatusCode, Operator: model.OpEquals, Value: 200})

	assert.False(t, result.Passed)
	assert.Equal(t, 404, result.Actual)
	assert.Equal(t, "mismatch", result.ErrorKind)
	assert.Contains(t, result.Error, "expected 200, got 404")
}

func TestEvaluate_ResponseTime(t *testing.T) {
	resp := createResponse(200, ``, nil)

	result := evaluate(resp, model.Assertion{Source: model.SourceResponseTime, Operator: model.OpLessThan, Value: 0.5})
	assert.True(t, result.Passed)
	assert.InDelta(t, 0.1, result.Actual, 1e-9)

	result = evaluate(resp, model.Assertion{Source: model.SourceResponseTime, Operator: model.OpGreaterThan, Value: "0.2"})
	assert.False(t, result.Passed)
	assert.Equal(t, "mismatch", result.ErrorKind)
}

func TestEvaluate_Header(t *testing.T) {
	resp := createResponse(200, `{}`, map[string]string{"Content-Type": "application/json; charset=utf-8"})

	result := evaluate(resp, model.Assertion{
		Source:     model.SourceHeader,
		Expression: "content-type",
		Operator:   model.OpContains,
		Value:      "application/json",
	})
	assert.True(t, result.Passed)

	result = evaluate(resp, model.Assertion{Source: model.SourceHeader, Expression: "X-Missing", Operator: model.OpEquals, Value: "x"})
	assert.False(t, result.Passed)
	assert.Nil(t, result.Actual)
	assert.Equal(t, "header_not_found", result.ErrorKind)

	result = evaluate(resp, model.Assertion{Source: model.SourceHeader, Operator: model.OpEquals, Value: "x"})
	assert.Equal(t, "missing_expression", result.ErrorKind)
}

func TestEvaluate_BodyPath(t *testing.T) {
	resp := createResponse(200, `{"a": {"b": [{"c": 42}]}, "name": "John", "tags": ["x", "y"]}`, nil)

	tests := []struct {
		name      string
		assertion model.Assertion
		passed    bool
		kind      string
	}{
		{"nested eq", model.Assertion{Source: model.SourceBody, Expression: "a.b[0].c", Operator: model.OpEquals, Value: 42}, true, ""},
		{"rooted eq", model.Assertion{Source: model.SourceBody, Expression: "$.a.b[0].c", Operator: model.OpEquals, Value: "42"}, true, ""},
		{"gt", model.Assertion{Source: model.SourceBody, Expression: "a.b[0].c", Operator: model.OpGreaterThan, Value: 41}, true, ""},
		{"array contains", model.Assertion{Source: model.SourceBody, Expression: "tags", Operator: model.OpContains, Value: "y"}, true, ""},
		{"object contains key", model.Assertion{Source: model.SourceBody, Expression: "$", Operator: model.OpContains, Value: "name"}, true, ""},
		{"string contains", model.Assertion{Source: model.SourceBody, Expression: "name", Operator: model.OpContains, Value: "oh"}, true, ""},
		{"missing key", model.Assertion{Source: model.SourceBody, Expression: "a.z", Operator: model.OpEquals, Value: 1}, false, "path_not_found"},
		{"index out of range", model.Assertion{Source: model.SourceBody, Expression: "tags[9]", Operator: model.OpEquals, Value: 1}, false, "path_not_found"},
		{"bad syntax", model.Assertion{Source: model.SourceBody, Expression: "a..b", Operator: model.OpEquals, Value: 1}, false, "invalid_expression"},
		{"no expression", model.Assertion{Source: model.SourceBody, Operator: model.OpEquals, Value: 1}, false, "missing_expression"},
		{"number contains", model.Assertion{Source: model.SourceBody, Expression: "a.b[0].c", Operator: model.OpContains, Value: 4}, false, "unsupported_container"},
		{"unknown operator", model.Assertion{Source: model.SourceBody, Expression: "name", Operator: "matches", Value: "J"}, false, "unknown_operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluate(resp, tt.assertion)
			assert.Equal(t, tt.passed, result.Passed, result.Error)
			assert.Equal(t, tt.kind, result.ErrorKind)
		})
	}
}

func TestEvaluate_LargeIntegers(t *testing.T) {
	resp := createResponse(200, `{"id": 1234567890123456789, "ratio": 0.25}`, nil)

	tests := []struct {
		name     string
		op       model.Operator
		expr     string
		expected any
		passed   bool
	}{
		{"exact string eq", model.OpEquals, "id", "1234567890123456789", true},
		{"off by one string", model.OpEquals, "id", "1234567890123456788", false},
		{"off by one int", model.OpEquals, "id", int64(1234567890123456788), false},
		{"exact int", model.OpEquals, "id", int64(1234567890123456789), true},
		{"gt neighbour", model.OpGreaterThan, "id", "1234567890123456788", true},
		{"lt neighbour", model.OpLessThan, "id", "1234567890123456788", false},
		{"decimal eq float", model.OpEquals, "ratio", 0.25, true},
		{"decimal gt", model.OpGreaterThan, "ratio", "0.2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluate(resp, model.Assertion{Source: model.SourceBody, Expression: tt.expr, Operator: tt.op, Value: tt.expected})
			assert.Equal(t, tt.passed, result.Passed, result.Error)
		})
	}

	result := evaluate(resp, model.Assertion{Source: model.SourceBody, Expression: "id", Operator: model.OpEquals, Value: "1234567890123456788"})
	assert.Equal(t, json.Number("1234567890123456789"), result.Actual)
	assert.Contains(t, result.Error, "got 1234567890123456789")
}

func TestEvaluate_TextBody(t *testing.T) {
	resp := createResponse(200, `hello world`, nil)

	result := evaluate(resp, model.Assertion{Source: model.SourceBody, Expression: "$", Operator: model.OpContains, Value: "world"})
	assert.True(t, result.Passed)
	assert.Equal(t, "hello world", result.Actual)

	result = evaluate(resp, model.Assertion{Source: model.SourceBody, Expression: "$.a", Operator: model.OpEquals, Value: "x"})
	assert.Equal(t, "path_not_found", result.ErrorKind)
}

func TestEvaluate_AbsentBody(t *testing.T) {
	resp := createResponse(204, ``, nil)

	result := evaluate(resp, model.Assertion{Source: model.SourceBody, Expression: "$", Operator: model.OpEquals, Value: nil})

	assert.False(t, result.Passed)
	assert.Equal(t, "no_body", result.ErrorKind)
}

func TestEvaluate_NoResponse(t *testing.T) {
	resp := http.FailedResponse(&http.TransportError{Kind: http.KindConnectionRefused, Err: errors.New("refused")}, 0)

	for _, source := range []model.Source{model.SourceStatusCode, model.SourceHeader, model.SourceBody, model.SourceResponseTime} {
		result := evaluate(resp, model.Assertion{Source: source, Expression: "x", Operator: model.OpEquals, Value: 200})
		assert.False(t, result.Passed)
		assert.Nil(t, result.Actual)
		assert.Equal(t, "no_response", result.ErrorKind, source)
	}
}

func TestEvaluate_UnknownSource(t *testing.T) {
	resp := createResponse(200, `{}`, nil)

	result := evaluate(resp, model.Assertion{Source: "cookie", Operator: model.OpEquals, Value: "x"})

	assert.False(t, result.Passed)
	assert.Equal(t, "unknown_source", result.ErrorKind)
}

func TestEvaluate_Coercion(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		op       model.Operator
		expected any
		passed   bool
		kind     string
	}{
		{"string number eq", "200", model.OpEquals, 200, true, ""},
		{"number string eq", float64(200), model.OpEquals, "200", true, ""},
		{"int float eq", 200, model.OpEquals, float64(200), true, ""},
		{"bool string eq", true, model.OpEquals, "true", true, ""},
		{"null eq null", nil, model.OpEquals, nil, true, ""},
		{"null ne string", nil, model.OpEquals, "null", false, "mismatch"},
		{"array eq", []any{float64(1)}, model.OpEquals, []any{float64(1)}, true, ""},
		{"gt non numeric", "abc", model.OpGreaterThan, 5, false, "non_numeric_operand"},
		{"lt non numeric expected", 5, model.OpLessThan, "abc", false, "non_numeric_operand"},
		{"gt bool", true, model.OpGreaterThan, 0, false, "non_numeric_operand"},
		{"gt numeric string", "10", model.OpGreaterThan, 5, true, ""},
		{"lt equal", 5, model.OpLessThan, 5, false, "mismatch"},
		{"contains number in array", []any{float64(1), float64(2)}, model.OpContains, "2", true, ""},
		{"json number eq int", json.Number("42"), model.OpEquals, 42, true, ""},
		{"json number contains", json.Number("42"), model.OpContains, "4", false, "unsupported_container"},
		{"contains bool", true, model.OpContains, "t", false, "unsupported_container"},
		{"contains null", nil, model.OpContains, "x", false, "unsupported_container"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(tt.actual, nil, model.Assertion{Source: model.SourceBody, Expression: "$", Operator: tt.op, Value: tt.expected})
			assert.Equal(t, tt.passed, result.Passed, result.Error)
			assert.Equal(t, tt.kind, result.ErrorKind)
			assert.Equal(t, tt.actual, result.Actual)
		})
	}
}

func TestEvaluate_ExtractErrorSkipsComparison(t *testing.T) {
	extractErr := &ExtractError{Kind: PathNotFound, Message: "no such key"}

	result := Evaluate("ignored", extractErr, model.Assertion{Source: model.SourceBody, Expression: "a", Operator: model.OpEquals, Value: "ignored"})

	assert.False(t, result.Passed)
	assert.Nil(t, result.Actual)
	assert.Equal(t, "path_not_found: no such key", result.Error)
}

func TestEvaluateAll_PreservesOrder(t *testing.T) {
	resp := createResponse(201, `{"id": 7, "items": [1, 2, 3]}`, map[string]string{"Location": "/items/7"})

	list := []model.Assertion{
		{Source: model.SourceStatusCode, Operator: model.OpEquals, Value: 201},
		{Source: model.SourceHeader, Expression: "location", Operator: model.OpEquals, Value: "/items/7"},
		{Source: model.SourceBody, Expression: "id", Operator: model.OpEquals, Value: 7},
		{Source: model.SourceBody, Expression: "items", Operator: model.OpContains, Value: 3},
		{Source: model.SourceBody, Expression: "missing", Operator: model.OpEquals, Value: 1},
	}

	results := EvaluateAll(resp, list)

	require.Len(t, results, len(list))
	for i, r := range results {
		assert.Equal(t, list[i], r.Assertion)
	}
	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.True(t, results[2].Passed)
	assert.True(t, results[3].Passed)
	assert.False(t, results[4].Passed)
}

func TestEvaluateAll_OrderIndependent(t *testing.T) {
	resp := createResponse(200, `{"a": 1, "b": "two"}`, nil)

	list := []model.Assertion{
		{Source: model.SourceStatusCode, Operator: model.OpEquals, Value: 200},
		{Source: model.SourceBody, Expression: "a", Operator: model.OpGreaterThan, Value: 0},
		{Source: model.SourceBody, Expression: "b", Operator: model.OpEquals, Value: "three"},
		{Source: model.SourceBody, Expression: "c", Operator: model.OpEquals, Value: 1},
	}

	baseline := map[int]bool{}
	for i, r := range EvaluateAll(resp, list) {
		baseline[i] = r.Passed
	}

	rng := rand.New(rand.NewSource(1))
	for range 5 {
		perm := rng.Perm(len(list))
		shuffled := make([]model.Assertion, len(list))
		for i, p := range perm {
			shuffled[i] = list[p]
		}

		results := EvaluateAll(resp, shuffled)
		for i, p := range perm {
			assert.Equal(t, baseline[p], results[i].Passed)
		}
	}
}

func TestEvaluateAll_Empty(t *testing.T) {
	assert.Empty(t, EvaluateAll(createResponse(200, "", nil), nil))
}

func TestResult_MarshalJSON(t *testing.T) {
	passed := Result{
		Assertion: model.Assertion{Source: model.SourceStatusCode, Operator: model.OpEquals, Value: 200},
		Actual:    200,
		Passed:    true,
	}
	data, err := json.Marshal(passed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source": "status_code", "operator": "eq", "value": 200,
		"actual_value": 200, "passed": true, "error": null}`, string(data))

	failed := Result{
		Assertion: model.Assertion{Source: model.SourceBody, Expression: "a", Operator: model.OpEquals, Value: "x"},
		Error:     "path_not_found: no such key",
		ErrorKind: "path_not_found",
	}
	data, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source": "body", "expression": "a", "operator": "eq", "value": "x",
		"actual_value": null, "passed": false, "error": "path_not_found: no such key",
		"error_kind": "path_not_found"}`, string(data))

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, failed, decoded)
}
