package model

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const debugRequestSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["method", "url"],
  "properties": {
    "method": {"type": "string", "pattern": "^(?i)(GET|POST|PUT|DELETE|PATCH)$"},
    "url": {"type": "string", "minLength": 1},
    "environment_id": {"type": ["integer", "null"], "minimum": 0},
    "headers": {"type": ["object", "null"], "additionalProperties": {"type": "string"}},
    "params": {"type": ["object", "null"]},
    "body": {},
    "body_type": {"type": "string", "enum": ["", "json", "text", "none"]}
  }
}`

const assertionSchemaJSON = `{
  "type": "object",
  "required": ["source", "operator"],
  "properties": {
    "source": {"enum": ["status_code", "header", "body", "response_time"]},
    "expression": {"type": ["string", "null"]},
    "operator": {"enum": ["eq", "gt", "lt", "contains"]},
    "value": {"type": ["string", "number", "boolean", "null"]}
  },
  "if": {"properties": {"source": {"enum": ["header", "body"]}}},
  "then": {
    "required": ["expression"],
    "properties": {"expression": {"type": "string", "minLength": 1}}
  }
}`

const testCaseSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "method", "url"],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": ["string", "null"]},
    "method": {"type": "string", "pattern": "^(?i)(GET|POST|PUT|DELETE|PATCH)$"},
    "url": {"type": "string", "minLength": 1},
    "headers": {"type": ["object", "null"], "additionalProperties": {"type": "string"}},
    "params": {"type": ["object", "null"]},
    "path_params": {"type": ["object", "null"]},
    "body": {},
    "body_type": {"type": "string", "enum": ["", "json", "text", "none"]},
    "assertions": {"type": ["array", "null"], "items": ` + assertionSchemaJSON + `}
  }
}`

var (
	debugRequestSchema = mustSchema(debugRequestSchemaJSON)
	testCaseSchema     = mustSchema(testCaseSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("model: invalid embedded schema: %v", err))
	}
	return s
}

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Document string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Document, strings.Join(e.Problems, "; "))
}

// ValidateDebugRequest checks a raw JSON debug request document.
func ValidateDebugRequest(raw []byte) error {
	return validate(debugRequestSchema, gojsonschema.NewBytesLoader(raw), "debug request")
}

// ValidateTestCase checks a decoded test case document (as produced by
// json.Unmarshal or yaml.Unmarshal into an any).
func ValidateTestCase(doc any) error {
	return validate(testCaseSchema, gojsonschema.NewGoLoader(doc), "test case")
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader, name string) error {
	result, err := schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("validating %s: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &ValidationError{Document: name, Problems: problems}
}
