package handler

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/mocksmith/mocksmith/internal/routing"
)

// CompileError reports a handler file that failed to produce a module.
// It is carried by the failed module and surfaced as a 500 diagnostic
// on requests to the route.
type CompileError struct {
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Source, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// methodSpec is the YAML shape of one method block.
type methodSpec struct {
	Status      int               `yaml:"status"`
	ContentType string            `yaml:"contentType"`
	Headers     map[string]string `yaml:"headers"`
	Steps       []stepSpec        `yaml:"steps"`
	Body        string            `yaml:"body"`
}

// stepSpec is one ordered context mutation in the file.
type stepSpec struct {
	Var   string `yaml:"var"`
	Value string `yaml:"value"`
}

// DefaultContentType is assumed when a method block declares none.
const DefaultContentType = "application/json"

// Compile parses and compiles a handler file. It always returns a
// module: on any parse or expression-compile failure the returned
// module carries the error instead of entry points, so one broken file
// degrades to a diagnosing route rather than a missing one.
func Compile(source string, route *routing.Template, data []byte) *Module {
	m, err := compile(source, route, data)
	if err != nil {
		return NewFailed(source, route, err)
	}
	return m
}

func compile(source string, route *routing.Template, data []byte) (*Module, error) {
	var raw map[string]methodSpec
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no method blocks declared")
	}

	m := &Module{
		source:  source,
		route:   route,
		entries: make(map[string]*entry, len(raw)),
	}

	for name, spec := range raw {
		method := strings.ToUpper(name)
		if !supported(method) {
			return nil, fmt.Errorf("unsupported method %q", name)
		}

		e := &entry{
			method:      method,
			status:      spec.Status,
			contentType: spec.ContentType,
			headers:     spec.Headers,
		}
		if e.status == 0 {
			e.status = 200
		}
		if e.contentType == "" {
			e.contentType = DefaultContentType
		}

		for i, st := range spec.Steps {
			if st.Var == "" {
				return nil, fmt.Errorf("%s: step %d missing var", name, i)
			}
			if st.Value == "" {
				return nil, fmt.Errorf("%s: step %d (%s) missing value", name, i, st.Var)
			}
			prog, err := expr.Compile(st.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: step %q: %w", name, st.Var, err)
			}
			e.steps = append(e.steps, step{varName: st.Var, program: prog})
		}

		if spec.Body != "" {
			prog, err := expr.Compile(spec.Body)
			if err != nil {
				return nil, fmt.Errorf("%s: body: %w", name, err)
			}
			e.body = prog
		}

		m.entries[method] = e
	}

	return m, nil
}

func supported(method string) bool {
	for _, m := range SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}
