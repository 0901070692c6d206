package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitcase/packages/core/engine"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
)

const sampleCatalog = `
projects:
  - id: 1
    name: users-api
    environments:
      - id: 10
        name: Local
        code: local
        base_url: http://localhost:8080
        headers:
          X-Env: local
        variables:
          token: dev
        is_default: true
      - id: 11
        name: Staging
        code: staging
        base_url: https://staging.example.com
    test_cases:
      - id: 100
        name: get user
        method: GET
        url: /users/{id}
        path_params:
          id: 42
        params:
          expand: profile
        assertions:
          - source: status_code
            operator: eq
            value: 200
          - source: body
            expression: $.data.name
            operator: contains
            value: Ada
      - id: 101
        name: create user
        method: POST
        url: /users
        body:
          name: Ada
          tags: [admin]
      - id: 102
        name: send note
        method: POST
        url: /notes
        body_type: text
        body: hello
  - id: 2
    name: billing
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	projects, environments, testCases := c.Counts()
	assert.Equal(t, 2, projects)
	assert.Equal(t, 2, environments)
	assert.Equal(t, 3, testCases)
	assert.Equal(t, []int64{100, 101, 102}, c.TestCaseIDs())

	tc, err := c.TestCase(t.Context(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tc.ProjectID)
	assert.Equal(t, "GET", tc.Method)
	assert.Equal(t, map[string]any{"id": float64(42)}, tc.PathParams)
	assert.Equal(t, map[string]any{"expand": "profile"}, tc.Params)
	require.Len(t, tc.Assertions, 2)
	assert.Equal(t, model.SourceStatusCode, tc.Assertions[0].Source)
	assert.Equal(t, float64(200), tc.Assertions[0].Value)
	assert.Equal(t, "$.data.name", tc.Assertions[1].Expression)

	create, err := c.TestCase(t.Context(), 101)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada","tags":["admin"]}`, string(create.Body))

	note, err := c.TestCase(t.Context(), 102)
	require.NoError(t, err)
	assert.Equal(t, model.BodyText, note.BodyType)
	assert.Equal(t, `"hello"`, string(note.Body))
}

func TestStoreLookups(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	ctx := t.Context()

	env, err := c.DefaultEnvironment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "local", env.Code)
	assert.Equal(t, int64(1), env.ProjectID)
	assert.Equal(t, map[string]any{"token": "dev"}, env.Variables)

	env, err = c.Environment(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", env.BaseURL)

	env, ok := c.EnvironmentByCode(1, "STAGING")
	require.True(t, ok)
	assert.Equal(t, int64(11), env.ID)

	cases, err := c.TestCases(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cases, 3)

	cases, err = c.TestCases(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, cases)

	_, err = c.TestCases(ctx, 3)
	assert.ErrorIs(t, err, engine.ErrProjectNotFound)

	_, err = c.Environment(ctx, 99)
	assert.ErrorIs(t, err, engine.ErrEnvironmentNotFound)

	_, err = c.DefaultEnvironment(ctx, 2)
	assert.ErrorIs(t, err, engine.ErrEnvironmentNotFound)

	_, err = c.TestCase(ctx, 999)
	assert.ErrorIs(t, err, engine.ErrTestCaseNotFound)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		problem string
	}{
		{
			name:    "empty document",
			input:   "",
			problem: "document is empty",
		},
		{
			name:    "missing projects",
			input:   "environments: []",
			problem: "projects",
		},
		{
			name: "environment without base url",
			input: `
projects:
  - id: 1
    name: p
    environments:
      - id: 1
        name: dev
        code: dev
`,
			problem: "base_url",
		},
		{
			name: "test case with unknown operator",
			input: `
projects:
  - id: 1
    name: p
    test_cases:
      - id: 1
        name: t
        method: GET
        url: /x
        assertions:
          - source: status_code
            operator: ne
            value: 200
`,
			problem: "projects.0.test_cases.0",
		},
		{
			name: "body assertion without expression",
			input: `
projects:
  - id: 1
    name: p
    test_cases:
      - id: 1
        name: t
        method: GET
        url: /x
        assertions:
          - source: body
            operator: eq
            value: 1
`,
			problem: "expression",
		},
		{
			name: "two default environments",
			input: `
projects:
  - id: 1
    name: p
    environments:
      - {id: 1, name: a, code: a, base_url: "http://a", is_default: true}
      - {id: 2, name: b, code: b, base_url: "http://b", is_default: true}
`,
			problem: "more than one default environment: a, b",
		},
		{
			name: "duplicate test case ids across projects",
			input: `
projects:
  - id: 1
    name: p
    test_cases:
      - {id: 7, name: t, method: GET, url: /x}
  - id: 2
    name: q
    test_cases:
      - {id: 7, name: u, method: GET, url: /y}
`,
			problem: "duplicate test case id 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)

			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("projects: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse catalog")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	p, ok := c.Project(1)
	require.True(t, ok)
	assert.Equal(t, "users-api", p.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
