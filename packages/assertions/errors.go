package assertions

import "fmt"

// ExtractErrorKind classifies why a value could not be read from a response.
type ExtractErrorKind string

const (
	NoResponse        ExtractErrorKind = "no_response"
	HeaderNotFound    ExtractErrorKind = "header_not_found"
	NoBody            ExtractErrorKind = "no_body"
	PathNotFound      ExtractErrorKind = "path_not_found"
	InvalidExpression ExtractErrorKind = "invalid_expression"
	MissingExpression ExtractErrorKind = "missing_expression"
	UnknownSource     ExtractErrorKind = "unknown_source"
)

// ExtractError is scoped to a single assertion.
type ExtractError struct {
	Kind    ExtractErrorKind
	Message string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExtractError) ErrorKind() string { return string(e.Kind) }

// ComparisonErrorKind classifies why an assertion did not hold.
type ComparisonErrorKind string

const (
	Mismatch             ComparisonErrorKind = "mismatch"
	NonNumericOperand    ComparisonErrorKind = "non_numeric_operand"
	UnsupportedContainer ComparisonErrorKind = "unsupported_container"
	UnknownOperator      ComparisonErrorKind = "unknown_operator"
)

type ComparisonError struct {
	Kind    ComparisonErrorKind
	Message string
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ComparisonError) ErrorKind() string { return string(e.Kind) }

func extractErrorf(kind ExtractErrorKind, format string, args ...any) *ExtractError {
	return &ExtractError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func comparisonErrorf(kind ComparisonErrorKind, format string, args ...any) *ComparisonError {
	return &ComparisonError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
