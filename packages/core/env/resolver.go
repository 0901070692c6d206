package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitcase/packages/builtin"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
)

var variablePattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver interpolates {{...}} references. A reference is one of:
//
//	{{name}}         a variable
//	{{$NAME}}        a process environment variable
//	{{fn(args)}}     a builtin function call
//
// Unresolved references are left in place and reported through the WarnFunc.
// A Resolver is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		value, ok := r.lookup(strings.TrimSpace(match[2 : len(match)-2]))
		if !ok {
			return match
		}
		return value
	})
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		if val, ok := os.LookupEnv(name); ok {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", name)
		return "", false
	}

	if builtin.IsCall(expr) {
		result, ok, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return "", false
		}
		if !ok {
			r.warn("unresolved function call: %s", expr)
			return "", false
		}
		return stringify(result), true
	}

	if val, ok := r.GetVariable(expr); ok {
		return stringify(val), true
	}

	r.warn("unresolved variable: %s", expr)
	return "", false
}

// HasUnresolvedVariables reports whether input references a variable that is
// not defined. Environment references and function calls are not checked.
func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

// GetUnresolvedVariables returns the undefined variable names referenced by
// input, in order of appearance.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) {
			continue
		}
		if !r.HasVariable(expr) {
			missing = append(missing, expr)
		}
	}
	return missing
}

// With returns a copy of the resolver whose variables are overlaid by vars.
// The receiver's variables win on conflicts so that values given for the
// whole invocation override per-environment defaults.
func (r *Resolver) With(vars map[string]any) *Resolver {
	clone := r.Clone()
	clone.mu.Lock()
	defer clone.mu.Unlock()
	for k, v := range vars {
		if _, exists := clone.variables[k]; !exists {
			clone.variables[k] = v
		}
	}
	return clone
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.funcs = r.funcs
	clone.warnFunc = r.warnFunc
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	return clone
}

func stringify(v any) string {
	if s, ok := model.FormatScalar(v); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
