package routing

import (
	"fmt"
	"strings"
)

// Segment is a single path template segment: either a literal value or
// a named parameter placeholder.
type Segment struct {
	// Literal is the exact segment text. Empty when Param is set.
	Literal string

	// Param is the parameter name for placeholder segments ("{id}" → "id").
	Param string
}

// IsParam reports whether the segment is a parameter placeholder.
func (s Segment) IsParam() bool {
	return s.Param != ""
}

// Template is a parsed path template such as "/pets/{id}".
type Template struct {
	raw      string
	segments []Segment
	params   int
}

// Parse parses a path template string. Parameter segments are delimited
// with braces: "/pets/{id}". An empty or "/" template denotes the root
// path and has zero segments.
func Parse(path string) (*Template, error) {
	if path == "" || path[0] != '/' {
		return nil, fmt.Errorf("path template must start with /: %q", path)
	}

	t := &Template{raw: normalize(path)}
	if t.raw == "/" {
		return t, nil
	}

	for _, part := range strings.Split(strings.Trim(t.raw, "/"), "/") {
		if part == "" {
			return nil, fmt.Errorf("path template has empty segment: %q", path)
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, fmt.Errorf("path template has unnamed parameter: %q", path)
			}
			t.segments = append(t.segments, Segment{Param: name})
			t.params++
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return nil, fmt.Errorf("path template segment %q mixes literal and parameter text", part)
		}
		t.segments = append(t.segments, Segment{Literal: part})
	}

	return t, nil
}

// MustParse is Parse that panics on error, for templates known at compile time.
func MustParse(path string) *Template {
	t, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return t
}

// normalize strips a trailing slash so "/pets/" and "/pets" are one template.
func normalize(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

// String returns the canonical template text.
func (t *Template) String() string {
	return t.raw
}

// Segments returns the parsed segments in order.
func (t *Template) Segments() []Segment {
	return t.segments
}

// ParamCount returns the number of parameter segments.
func (t *Template) ParamCount() int {
	return t.params
}

// Params is the set of values captured from a concrete path, keyed by
// parameter name.
type Params map[string]string

// Match attempts to match a concrete path against the template.
// Literal segments compare exactly (case-sensitive); parameter segments
// capture any non-empty segment.
func (t *Template) Match(path string) (Params, bool) {
	parts, ok := splitPath(path)
	if !ok || len(parts) != len(t.segments) {
		return nil, false
	}

	var params Params
	for i, seg := range t.segments {
		if seg.IsParam() {
			if params == nil {
				params = make(Params, t.params)
			}
			params[seg.Param] = parts[i]
			continue
		}
		if seg.Literal != parts[i] {
			return nil, false
		}
	}
	if params == nil {
		params = Params{}
	}
	return params, true
}

// Overlaps reports whether two templates can match the same concrete
// path. Templates of different lengths never overlap; at equal length
// they overlap unless some position holds two different literals.
func (t *Template) Overlaps(other *Template) bool {
	if len(t.segments) != len(other.segments) {
		return false
	}
	for i, seg := range t.segments {
		o := other.segments[i]
		if !seg.IsParam() && !o.IsParam() && seg.Literal != o.Literal {
			return false
		}
	}
	return true
}

// ConflictsWith reports whether two templates are ambiguous: they
// overlap and neither is more specific than the other (equal parameter
// count). Such pairs must be rejected at registration time.
func (t *Template) ConflictsWith(other *Template) bool {
	return t.Overlaps(other) && t.params == other.params
}

// splitPath splits a concrete request path into segments. Empty interior
// segments ("//") make the path unmatchable.
func splitPath(path string) ([]string, bool) {
	if path == "" || path[0] != '/' {
		return nil, false
	}
	path = normalize(path)
	if path == "/" {
		return nil, true
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// BestMatch selects the template from candidates that matches path with
// the fewest parameter segments (most literal match wins). A tie between
// two matching candidates indicates templates that should have been
// rejected as conflicting at registration time; BestMatch reports it as
// an error rather than picking one by chance.
func BestMatch(candidates []*Template, path string) (*Template, Params, error) {
	var (
		best       *Template
		bestParams Params
		tied       *Template
	)

	for _, c := range candidates {
		params, ok := c.Match(path)
		if !ok {
			continue
		}
		switch {
		case best == nil || c.params < best.params:
			best, bestParams, tied = c, params, nil
		case c.params == best.params:
			tied = c
		}
	}

	if best == nil {
		return nil, nil, nil
	}
	if tied != nil {
		return nil, nil, fmt.Errorf("ambiguous match for %q: %s and %s tie", path, best, tied)
	}
	return best, bestParams, nil
}
