package env

import (
	"os"
	"strings"
)

// MergeVariables layers variable maps; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns the process environment variables whose names start
// with prefix, keyed by the remainder of the name.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
			result[name] = value
		}
	}
	return result
}

// StringVariables converts dotenv values to interpolation variables.
func StringVariables(values map[string]string) map[string]any {
	result := make(map[string]any, len(values))
	for k, v := range values {
		result[k] = v
	}
	return result
}
