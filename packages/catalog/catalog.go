package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitcase/packages/core/engine"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
)

const environmentSchemaJSON = `{
  "type": "object",
  "required": ["id", "name", "code", "base_url"],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "name": {"type": "string", "minLength": 1},
    "code": {"type": "string", "minLength": 1},
    "base_url": {"type": "string", "pattern": "^https?://"},
    "headers": {"type": ["object", "null"], "additionalProperties": {"type": "string"}},
    "variables": {"type": ["object", "null"]},
    "description": {"type": ["string", "null"]},
    "is_default": {"type": "boolean"}
  }
}`

const catalogSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["projects"],
  "properties": {
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "integer", "minimum": 1},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": ["string", "null"]},
          "environments": {"type": ["array", "null"], "items": ` + environmentSchemaJSON + `},
          "test_cases": {"type": ["array", "null"], "items": {"type": "object"}}
        }
      }
    }
  }
}`

var catalogSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(catalogSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid embedded schema: %v", err))
	}
	return s
}()

// Project groups the environments and test cases of one API.
type Project struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Description  string               `json:"description,omitempty"`
	Environments []*model.Environment `json:"environments,omitempty"`
	TestCases    []*model.TestCase    `json:"test_cases,omitempty"`
}

// Catalog is an immutable in-memory store built from a catalog file.
type Catalog struct {
	Projects []*Project

	projects     map[int64]*Project
	environments map[int64]*model.Environment
	testCases    map[int64]*model.TestCase
}

var _ engine.Store = (*Catalog)(nil)

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML (or JSON) catalog document. Schema violations and
// semantic problems are reported together in a *model.ValidationError.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if raw == nil {
		return nil, &model.ValidationError{Document: "catalog", Problems: []string{"document is empty"}}
	}
	doc := normalize(raw)

	if problems := validateDocument(doc); len(problems) > 0 {
		return nil, &model.ValidationError{Document: "catalog", Problems: problems}
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	var file struct {
		Projects []*Project `json:"projects"`
	}
	if err := json.Unmarshal(encoded, &file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	c := &Catalog{
		Projects:     file.Projects,
		projects:     make(map[int64]*Project),
		environments: make(map[int64]*model.Environment),
		testCases:    make(map[int64]*model.TestCase),
	}
	if problems := c.index(); len(problems) > 0 {
		return nil, &model.ValidationError{Document: "catalog", Problems: problems}
	}
	return c, nil
}

func validateDocument(doc any) []string {
	result, err := catalogSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []string{err.Error()}
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	if len(problems) > 0 {
		return problems
	}

	projects, _ := doc.(map[string]any)["projects"].([]any)
	for pi, p := range projects {
		cases, _ := p.(map[string]any)["test_cases"].([]any)
		for ci, tc := range cases {
			err := model.ValidateTestCase(tc)
			if err == nil {
				continue
			}
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				problems = append(problems, fmt.Sprintf("projects.%d.test_cases.%d: %v", pi, ci, err))
				continue
			}
			for _, problem := range verr.Problems {
				problems = append(problems, fmt.Sprintf("projects.%d.test_cases.%d: %s", pi, ci, problem))
			}
		}
	}
	return problems
}

// index builds the lookup maps and checks cross-entity rules.
func (c *Catalog) index() []string {
	var problems []string
	for _, p := range c.Projects {
		if _, dup := c.projects[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate project id %d", p.ID))
		}
		c.projects[p.ID] = p

		var defaults []string
		for _, e := range p.Environments {
			e.ProjectID = p.ID
			if _, dup := c.environments[e.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate environment id %d", e.ID))
			}
			c.environments[e.ID] = e
			if e.IsDefault {
				defaults = append(defaults, e.Code)
			}
		}
		if len(defaults) > 1 {
			problems = append(problems, fmt.Sprintf("project %d has more than one default environment: %s",
				p.ID, strings.Join(defaults, ", ")))
		}

		for _, tc := range p.TestCases {
			tc.ProjectID = p.ID
			if _, dup := c.testCases[tc.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate test case id %d", tc.ID))
			}
			c.testCases[tc.ID] = tc
		}
	}
	return problems
}

// normalize converts YAML mappings with non-string keys into JSON-compatible
// maps.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	}
	return v
}

func (c *Catalog) Project(id int64) (*Project, bool) {
	p, ok := c.projects[id]
	return p, ok
}

// EnvironmentByCode finds a project's environment by its code.
func (c *Catalog) EnvironmentByCode(projectID int64, code string) (*model.Environment, bool) {
	p, ok := c.projects[projectID]
	if !ok {
		return nil, false
	}
	for _, e := range p.Environments {
		if strings.EqualFold(e.Code, code) {
			return e, true
		}
	}
	return nil, false
}

// Counts returns the number of projects, environments and test cases.
func (c *Catalog) Counts() (projects, environments, testCases int) {
	return len(c.projects), len(c.environments), len(c.testCases)
}

// TestCaseIDs returns every test case id in ascending order.
func (c *Catalog) TestCaseIDs() []int64 {
	ids := make([]int64, 0, len(c.testCases))
	for id := range c.testCases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Catalog) Environment(_ context.Context, id int64) (*model.Environment, error) {
	e, ok := c.environments[id]
	if !ok {
		return nil, engine.ErrEnvironmentNotFound
	}
	return e, nil
}

func (c *Catalog) DefaultEnvironment(_ context.Context, projectID int64) (*model.Environment, error) {
	p, ok := c.projects[projectID]
	if !ok {
		return nil, engine.ErrProjectNotFound
	}
	for _, e := range p.Environments {
		if e.IsDefault {
			return e, nil
		}
	}
	return nil, engine.ErrEnvironmentNotFound
}

func (c *Catalog) TestCase(_ context.Context, id int64) (*model.TestCase, error) {
	tc, ok := c.testCases[id]
	if !ok {
		return nil, engine.ErrTestCaseNotFound
	}
	return tc, nil
}

func (c *Catalog) TestCases(_ context.Context, projectID int64) ([]*model.TestCase, error) {
	p, ok := c.projects[projectID]
	if !ok {
		return nil, engine.ErrProjectNotFound
	}
	return p.TestCases, nil
}
