package assertions

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/http"
)

// Result is the outcome of one assertion. Actual is nil when extraction
// failed.
type Result struct {
	Assertion model.Assertion
	Actual    any
	Passed    bool
	Error     string
	ErrorKind string
}

type resultJSON struct {
	Source     model.Source   `json:"source"`
	Expression string         `json:"expression,omitempty"`
	Operator   model.Operator `json:"operator"`
	Value      any            `json:"value"`
	Actual     any            `json:"actual_value"`
	Passed     bool           `json:"passed"`
	Error      *string        `json:"error"`
	ErrorKind  string         `json:"error_kind,omitempty"`
}

// MarshalJSON flattens the assertion into the result, with a null error when
// the assertion produced none.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Source:     r.Assertion.Source,
		Expression: r.Assertion.Expression,
		Operator:   r.Assertion.Operator,
		Value:      r.Assertion.Value,
		Actual:     r.Actual,
		Passed:     r.Passed,
		ErrorKind:  r.ErrorKind,
	}
	if r.Error != "" {
		msg := r.Error
		out.Error = &msg
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Assertion: model.Assertion{
			Source:     in.Source,
			Expression: in.Expression,
			Operator:   in.Operator,
			Value:      in.Value,
		},
		Actual:    in.Actual,
		Passed:    in.Passed,
		ErrorKind: in.ErrorKind,
	}
	if in.Error != nil {
		r.Error = *in.Error
	}
	return nil
}

// Evaluate applies the assertion's operator to an extracted value. A
// non-nil extractErr fails the assertion without comparing.
func Evaluate(actual any, extractErr error, a model.Assertion) Result {
	result := Result{Assertion: a}

	if extractErr != nil {
		result.Error = extractErr.Error()
		result.ErrorKind = http.ErrorKind(extractErr)
		return result
	}
	result.Actual = actual

	if err := compare(actual, a.Operator, a.Value); err != nil {
		result.Error = err.Error()
		result.ErrorKind = string(err.Kind)
		return result
	}
	result.Passed = true
	return result
}

// EvaluateAll resolves and evaluates every assertion against resp. The
// assertions run concurrently over the immutable response; results keep
// declaration order.
func EvaluateAll(resp *http.Response, assertions []model.Assertion) []Result {
	results := make([]Result, len(assertions))

	var wg sync.WaitGroup
	for i, a := range assertions {
		wg.Add(1)
		go func(idx int, a model.Assertion) {
			defer wg.Done()
			actual, err := Resolve(resp, a.Source, a.Expression)
			results[idx] = Evaluate(actual, err, a)
		}(i, a)
	}
	wg.Wait()

	return results
}

func compare(actual any, op model.Operator, expected any) *ComparisonError {
	switch op {
	case model.OpEquals:
		return equals(actual, expected)
	case model.OpGreaterThan:
		return compareNumeric(actual, expected, ">")
	case model.OpLessThan:
		return compareNumeric(actual, expected, "<")
	case model.OpContains:
		return contains(actual, expected)
	default:
		return comparisonErrorf(UnknownOperator, "unknown operator %q", op)
	}
}

func equals(actual, expected any) *ComparisonError {
	if valuesEqual(actual, expected) {
		return nil
	}
	return comparisonErrorf(Mismatch, "expected %s, got %s", display(expected), display(actual))
}

// valuesEqual tries deep equality, then numeric equality across numbers and
// numeric strings, then equality of the scalars' textual forms. Two
// integer-valued operands compare exactly.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}

	if actualInt, ok := exactInteger(actual); ok {
		if expectedInt, ok := exactInteger(expected); ok {
			return actualInt.Cmp(expectedInt) == 0
		}
	}
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk {
		return actualNum == expectedNum
	}

	actualStr, aOk := model.FormatScalar(actual)
	expectedStr, eOk := model.FormatScalar(expected)
	return aOk && eOk && actualStr == expectedStr
}

func compareNumeric(actual, expected any, op string) *ComparisonError {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return comparisonErrorf(NonNumericOperand, "cannot compare non-numeric values: %s %s %s",
			display(actual), op, display(expected))
	}

	cmp := 0
	actualInt, aInt := exactInteger(actual)
	expectedInt, eInt := exactInteger(expected)
	switch {
	case aInt && eInt:
		cmp = actualInt.Cmp(expectedInt)
	case actualNum > expectedNum:
		cmp = 1
	case actualNum < expectedNum:
		cmp = -1
	}

	var passed bool
	switch op {
	case ">":
		passed = cmp > 0
	case "<":
		passed = cmp < 0
	}

	if passed {
		return nil
	}
	return comparisonErrorf(Mismatch, "expected %s %s %s", display(actual), op, display(expected))
}

func contains(actual, expected any) *ComparisonError {
	switch container := actual.(type) {
	case string:
		needle, ok := model.FormatScalar(expected)
		if !ok {
			return comparisonErrorf(Mismatch, "cannot search a string for %s", display(expected))
		}
		if strings.Contains(container, needle) {
			return nil
		}
		return comparisonErrorf(Mismatch, "expected %s to contain %s", display(actual), display(expected))
	case []any:
		for _, item := range container {
			if valuesEqual(item, expected) {
				return nil
			}
		}
		return comparisonErrorf(Mismatch, "array does not contain %s", display(expected))
	case map[string]any:
		key, ok := model.FormatScalar(expected)
		if !ok {
			return comparisonErrorf(Mismatch, "object keys are strings, got %s", display(expected))
		}
		if _, found := container[key]; found {
			return nil
		}
		return comparisonErrorf(Mismatch, "object has no key %q", key)
	default:
		return comparisonErrorf(UnsupportedContainer, "contains needs a string, array or object, got %s", jsonTypeName(actual))
	}
}

// maxExactFloat is the largest magnitude below which every integer is
// representable as a float64.
const maxExactFloat = 1 << 53

// exactInteger returns v as an integer when it holds one without loss:
// integer types, integer JSON numbers and numeric strings, and integral
// float64 values within maxExactFloat.
func exactInteger(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= maxExactFloat {
			return big.NewInt(int64(n)), true
		}
	case json.Number:
		return new(big.Int).SetString(string(n), 10)
	case string:
		return new(big.Int).SetString(strings.TrimSpace(n), 10)
	}
	return nil, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

func display(v any) string {
	switch s := v.(type) {
	case string:
		return strconv.Quote(s)
	case nil:
		return "null"
	}
	if s, ok := model.FormatScalar(v); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
