package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DotEnvError reports a line of a dotenv file that is not KEY=value.
type DotEnvError struct {
	Line int
	Text string
}

func (e *DotEnvError) Error() string {
	return fmt.Sprintf("line %d: expected KEY=value, got %q", e.Line, e.Text)
}

// ParseDotEnv reads KEY=value lines. Blank lines and # comments are
// skipped, an "export " prefix is ignored. Single-quoted values are taken
// literally; double-quoted values expand \n, \t, \" and \\. An unquoted
// value ends at " #".
func ParseDotEnv(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !found || key == "" || strings.ContainsAny(key, " \t") {
			return nil, &DotEnvError{Line: lineNo, Text: line}
		}

		result[key] = dotEnvValue(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return result, nil
}

func dotEnvValue(value string) string {
	if len(value) >= 2 {
		switch q := value[0]; {
		case q == '\'' && value[len(value)-1] == '\'':
			return value[1 : len(value)-1]
		case q == '"' && value[len(value)-1] == '"':
			return dotEnvUnescape.Replace(value[1 : len(value)-1])
		}
	}
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return value
}

var dotEnvUnescape = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)

// LoadDotEnv parses a dotenv file. It does not touch the process
// environment.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	values, err := ParseDotEnv(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// LoadAndExportDotEnv parses a dotenv file and exports its values so that
// {{$VAR}} references see them. Variables already set in the process
// environment keep their value.
func LoadAndExportDotEnv(path string) (map[string]string, error) {
	values, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		if _, set := os.LookupEnv(k); !set {
			if err := os.Setenv(k, v); err != nil {
				return nil, fmt.Errorf("export %s: %w", k, err)
			}
		}
	}
	return values, nil
}
