package assertions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Step is one segment of a body path: an object key or an array index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Step) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return strconv.Quote(s.Key)
}

// Path is a parsed body expression. An empty Path selects the whole body.
type Path struct {
	Expr  string
	Steps []Step
}

// ParsePath parses a body expression.
//
//	path    = [ "$" ] [ segment { segment } ]
//	segment = [ "." ] key | "[" index "]" | "[" quoted "]"
//
// A leading key needs no dot; later keys do. Bare keys may escape '.', '['
// and ']' with a backslash. Quoted keys use single or double quotes.
func ParsePath(expr string) (Path, error) {
	p := &pathParser{src: expr}
	steps, err := p.parse()
	if err != nil {
		return Path{}, err
	}
	return Path{Expr: expr, Steps: steps}, nil
}

type pathParser struct {
	src string
	pos int
}

func (p *pathParser) parse() ([]Step, error) {
	if strings.TrimSpace(p.src) == "" {
		return nil, p.errorf("empty path")
	}

	var steps []Step
	rooted := p.peek() == '$'
	if rooted {
		p.pos++
		if p.eof() {
			return steps, nil
		}
		if c := p.peek(); c != '.' && c != '[' {
			return nil, p.errorf("expected '.' or '[' after '$'")
		}
	}

	first := true
	for !p.eof() {
		switch c := p.peek(); {
		case c == '[':
			step, err := p.parseBracket()
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		case c == '.':
			p.pos++
			key, err := p.parseKey()
			if err != nil {
				return nil, err
			}
			steps = append(steps, Step{Key: key})
		case first && !rooted:
			key, err := p.parseKey()
			if err != nil {
				return nil, err
			}
			steps = append(steps, Step{Key: key})
		default:
			return nil, p.errorf("unexpected %q", c)
		}
		first = false
	}
	return steps, nil
}

func (p *pathParser) parseKey() (string, error) {
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		if c == '.' || c == '[' {
			break
		}
		if c == ']' {
			return "", p.errorf("unexpected ']'")
		}
		if c == '\\' {
			p.pos++
			if p.eof() {
				return "", p.errorf("dangling escape")
			}
			c = p.peek()
		}
		b.WriteByte(c)
		p.pos++
	}
	if b.Len() == 0 {
		return "", p.errorf("empty key")
	}
	return b.String(), nil
}

func (p *pathParser) parseBracket() (Step, error) {
	p.pos++ // '['
	if p.eof() {
		return Step{}, p.errorf("unterminated '['")
	}

	var step Step
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		key, err := p.parseQuoted(c)
		if err != nil {
			return Step{}, err
		}
		step = Step{Key: key}
	case c >= '0' && c <= '9':
		start := p.pos
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return Step{}, p.errorf("invalid index %q", p.src[start:p.pos])
		}
		step = Step{Index: n, IsIndex: true}
	default:
		return Step{}, p.errorf("expected index or quoted key, got %q", c)
	}

	if p.eof() || p.peek() != ']' {
		return Step{}, p.errorf("expected ']'")
	}
	p.pos++
	return step, nil
}

func (p *pathParser) parseQuoted(quote byte) (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.eof() {
				return "", p.errorf("dangling escape")
			}
			c = p.peek()
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errorf("unterminated quoted key")
}

func (p *pathParser) peek() byte { return p.src[p.pos] }

func (p *pathParser) eof() bool { return p.pos >= len(p.src) }

func (p *pathParser) errorf(format string, args ...any) error {
	return fmt.Errorf("invalid path %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

// Lookup walks the path through a decoded JSON value. A bare numeric key
// also indexes into an array (items.0).
func (p Path) Lookup(root any) (any, error) {
	cur := root
	for i, step := range p.Steps {
		switch node := cur.(type) {
		case map[string]any:
			if step.IsIndex {
				return nil, p.notFound(i, "cannot index an object")
			}
			v, ok := node[step.Key]
			if !ok {
				return nil, p.notFound(i, "no such key")
			}
			cur = v
		case []any:
			idx := step.Index
			if !step.IsIndex {
				n, err := strconv.Atoi(step.Key)
				if err != nil || n < 0 || strconv.Itoa(n) != step.Key {
					return nil, p.notFound(i, "cannot look up a key in an array")
				}
				idx = n
			}
			if idx >= len(node) {
				return nil, p.notFound(i, fmt.Sprintf("index out of range (length %d)", len(node)))
			}
			cur = node[idx]
		default:
			return nil, p.notFound(i, fmt.Sprintf("cannot descend into %s", jsonTypeName(cur)))
		}
	}
	return cur, nil
}

func (p Path) notFound(i int, reason string) *ExtractError {
	return &ExtractError{
		Kind:    PathNotFound,
		Message: fmt.Sprintf("%s at %s in %q", reason, p.Steps[i], p.Expr),
	}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
