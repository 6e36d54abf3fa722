package handler

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mocksmith/mocksmith/internal/routing"
	"github.com/mocksmith/mocksmith/pkg/contextstore"
)

// SupportedMethods lists the HTTP methods a handler file may implement,
// keyed by the lower-case block name used in the file.
var SupportedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// Invocation is the input a compiled entry point receives for one request.
type Invocation struct {
	// PathParams holds values captured from parameter segments.
	PathParams map[string]any

	// Query holds query parameters. Repeated keys keep the first value.
	Query map[string]any

	// Headers holds request headers keyed by canonical name.
	Headers map[string]any

	// Body is the decoded request body (a map/slice for JSON, a string
	// otherwise), or nil when the request has no body.
	Body any

	// Context is the shared mutable state for the handler's namespace.
	Context contextstore.Context
}

// Result is the candidate response produced by an entry point. The
// dispatcher owns negotiation and serialization.
type Result struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        any
}

// RuntimeError wraps a failure raised while running a handler entry point.
type RuntimeError struct {
	Source string
	Method string
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("handler %s (%s): %v", e.Source, e.Method, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// step is one compiled context mutation.
type step struct {
	varName string
	program *vm.Program
}

// entry is the compiled form of one method block.
type entry struct {
	method      string
	status      int
	contentType string
	headers     map[string]string
	steps       []step
	body        *vm.Program
}

// Module is a compiled handler file. A module either compiled cleanly
// and exposes one entry point per declared method, or carries the
// compile error so requests to its route surface the diagnostic.
// Modules are immutable once built; hot reload replaces them wholesale.
type Module struct {
	source     string
	route      *routing.Template
	entries    map[string]*entry
	compileErr error
}

// NewFailed builds a module representing a compile failure. It claims
// every supported method so any request to the route reports the error.
func NewFailed(source string, route *routing.Template, err error) *Module {
	return &Module{
		source:     source,
		route:      route,
		compileErr: &CompileError{Source: source, Err: err},
	}
}

// Source returns the handler file path the module was compiled from,
// relative to the handler root.
func (m *Module) Source() string { return m.source }

// Route returns the path template derived from the module's location.
func (m *Module) Route() *routing.Template { return m.route }

// Err returns the compile error, or nil for a healthy module.
func (m *Module) Err() error { return m.compileErr }

// Methods returns the HTTP methods the module implements, sorted. A
// failed module claims all supported methods.
func (m *Module) Methods() []string {
	if m.compileErr != nil {
		out := make([]string, len(SupportedMethods))
		copy(out, SupportedMethods)
		return out
	}
	out := make([]string, 0, len(m.entries))
	for method := range m.entries {
		out = append(out, method)
	}
	sort.Strings(out)
	return out
}

// Invoke runs the entry point for the given method. The method must be
// one returned by Methods. Failures, including panics inside expression
// evaluation, are returned as *RuntimeError (or the compile error for a
// failed module) and never propagate.
func (m *Module) Invoke(method string, inv *Invocation) (res *Result, err error) {
	if m.compileErr != nil {
		return nil, m.compileErr
	}
	e, ok := m.entries[method]
	if !ok {
		return nil, &RuntimeError{Source: m.source, Method: method, Err: fmt.Errorf("no entry point for method")}
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &RuntimeError{Source: m.source, Method: method, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	env := map[string]any{
		"params":  inv.PathParams,
		"query":   inv.Query,
		"headers": inv.Headers,
		"body":    inv.Body,
		"context": map[string]any(inv.Context),
	}

	for _, st := range e.steps {
		val, runErr := expr.Run(st.program, env)
		if runErr != nil {
			return nil, &RuntimeError{Source: m.source, Method: method, Err: fmt.Errorf("step %q: %w", st.varName, runErr)}
		}
		// Steps write through to the shared context so sibling methods
		// observe the mutation on their next invocation.
		inv.Context[st.varName] = val
	}

	var body any
	if e.body != nil {
		body, err = expr.Run(e.body, env)
		if err != nil {
			return nil, &RuntimeError{Source: m.source, Method: method, Err: fmt.Errorf("body: %w", err)}
		}
	}

	headers := make(map[string]string, len(e.headers))
	for k, v := range e.headers {
		headers[k] = v
	}

	return &Result{
		Status:      e.status,
		ContentType: e.contentType,
		Headers:     headers,
		Body:        body,
	}, nil
}
