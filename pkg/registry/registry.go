package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mocksmith/mocksmith/internal/routing"
	"github.com/mocksmith/mocksmith/pkg/handler"
)

// ErrNoRouteMatch reports a path no registered template matches.
var ErrNoRouteMatch = errors.New("no route matches path")

// RouteConflictError reports a registration rejected because the new
// template is ambiguous with an existing one under the same method.
type RouteConflictError struct {
	Method   string
	Template string
	Existing string
}

func (e *RouteConflictError) Error() string {
	return fmt.Sprintf("route conflict: %s %s is ambiguous with registered %s", e.Method, e.Template, e.Existing)
}

// MethodNotAllowedError reports a path that matches registered
// templates, none of which cover the requested method. Allowed carries
// the methods that do, for use in an Allow header.
type MethodNotAllowedError struct {
	Method  string
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed for %s", e.Method, e.Path)
}

// Route is one registered (method, template) pair, for diagnostics.
type Route struct {
	Method   string `json:"method"`
	Template string `json:"template"`
	Source   string `json:"source,omitempty"`
	Broken   bool   `json:"broken,omitempty"`
}

// slot is one live registry entry.
type slot struct {
	template *routing.Template
	module   *handler.Module
}

// Registry is the concurrent route table. The zero value is not usable;
// call New.
type Registry struct {
	mu sync.RWMutex
	// methods maps HTTP method → template string → slot.
	methods map[string]map[string]*slot
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		methods: make(map[string]map[string]*slot),
	}
}

// Register inserts or atomically replaces the slot for (method,
// template). Re-registering the same template replaces the module; a
// template that conflicts with a different registered template under
// the same method fails with *RouteConflictError and leaves the
// existing route untouched.
func (r *Registry) Register(method string, tmpl *routing.Template, mod *handler.Module) error {
	if mod == nil {
		return errors.New("register: module must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.methods[method]
	if slots == nil {
		slots = make(map[string]*slot)
		r.methods[method] = slots
	}

	key := tmpl.String()
	for existingKey, existing := range slots {
		if existingKey == key {
			continue
		}
		if tmpl.ConflictsWith(existing.template) {
			return &RouteConflictError{Method: method, Template: key, Existing: existingKey}
		}
	}

	slots[key] = &slot{template: tmpl, module: mod}
	return nil
}

// Unregister removes the slot for (method, template). Removing an
// absent slot is a no-op, not an error.
func (r *Registry) Unregister(method string, tmpl *routing.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.methods[method]
	if slots == nil {
		return
	}
	delete(slots, tmpl.String())
	if len(slots) == 0 {
		delete(r.methods, method)
	}
}

// Resolve finds the handler module for a concrete request. It returns
// ErrNoRouteMatch when no template matches the path under any method,
// and *MethodNotAllowedError when templates match the path but not the
// requested method.
func (r *Registry) Resolve(method, path string) (*handler.Module, routing.Params, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if slots := r.methods[method]; slots != nil {
		candidates := make([]*routing.Template, 0, len(slots))
		for _, s := range slots {
			candidates = append(candidates, s.template)
		}
		tmpl, params, err := routing.BestMatch(candidates, path)
		if err != nil {
			// Conflicting templates are rejected at registration, so a
			// tie here is an internal invariant violation.
			return nil, nil, fmt.Errorf("registry invariant violated: %w", err)
		}
		if tmpl != nil {
			return slots[tmpl.String()].module, params, nil
		}
	}

	allowed := r.methodsMatchingLocked(method, path)
	if len(allowed) == 0 {
		return nil, nil, ErrNoRouteMatch
	}
	return nil, nil, &MethodNotAllowedError{Method: method, Path: path, Allowed: allowed}
}

// methodsMatchingLocked returns the sorted set of methods other than
// the given one whose templates match the path. Callers hold r.mu.
func (r *Registry) methodsMatchingLocked(method, path string) []string {
	var allowed []string
	for m, slots := range r.methods {
		if m == method {
			continue
		}
		for _, s := range slots {
			if _, ok := s.template.Match(path); ok {
				allowed = append(allowed, m)
				break
			}
		}
	}
	sort.Strings(allowed)
	return allowed
}

// Routes returns a snapshot of all registered routes, sorted by
// template then method, for diagnostics and operator tooling.
func (r *Registry) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var routes []Route
	for method, slots := range r.methods {
		for key, s := range slots {
			routes = append(routes, Route{
				Method:   method,
				Template: key,
				Source:   s.module.Source(),
				Broken:   s.module.Err() != nil,
			})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Template != routes[j].Template {
			return routes[i].Template < routes[j].Template
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// Count returns the number of registered (method, template) slots.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, slots := range r.methods {
		n += len(slots)
	}
	return n
}
