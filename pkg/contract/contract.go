package contract

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mocksmith/mocksmith/internal/routing"
)

// ParamLocation is where a declared parameter is carried.
type ParamLocation string

// Parameter locations.
const (
	InPath   ParamLocation = "path"
	InQuery  ParamLocation = "query"
	InHeader ParamLocation = "header"
)

// Parameter is one declared operation parameter.
type Parameter struct {
	Name     string
	In       ParamLocation
	Type     string // JSON schema type: "string", "integer", "number", "boolean"
	Required bool
}

// Operation is one resolved contract operation.
type Operation struct {
	Method     string
	Template   *routing.Template
	Parameters []Parameter

	// RequestContentTypes lists the declared request body content
	// types, empty when the operation declares no request body.
	RequestContentTypes []string

	// responses maps a status key ("200", "2XX", "default") to the
	// sorted content types declared for it.
	responses map[string][]string
}

// ResponseContentTypes returns the content types the contract permits
// for the given status. Lookup order: exact status, range key ("2XX"),
// then "default". A nil result means the contract declares no
// constraint for that status and the handler's output passes through.
func (o *Operation) ResponseContentTypes(status int) []string {
	if types, ok := o.responses[strconv.Itoa(status)]; ok {
		return types
	}
	if status >= 100 && status <= 599 {
		if types, ok := o.responses[fmt.Sprintf("%dXX", status/100)]; ok {
			return types
		}
	}
	return o.responses["default"]
}

// DeclaredStatuses returns the status keys the operation declares,
// sorted, for diagnostics.
func (o *Operation) DeclaredStatuses() []string {
	keys := make([]string, 0, len(o.responses))
	for k := range o.responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Contract is the resolved OpenAPI document.
type Contract struct {
	ops []*Operation
}

// Operations returns all operations in document order.
func (c *Contract) Operations() []*Operation {
	return c.ops
}

// Find locates the operation for a method and route template. Matching
// is structural: parameter names in the contract need not match the
// names the handler tree uses, only the template shape must agree.
// Returns nil when the contract has no entry for the route.
func (c *Contract) Find(method string, tmpl *routing.Template) *Operation {
	for _, op := range c.ops {
		if op.Method == method && sameShape(op.Template, tmpl) {
			return op
		}
	}
	return nil
}

// sameShape reports whether two templates describe the same route:
// equal length, equal literals, parameters in the same positions.
func sameShape(a, b *routing.Template) bool {
	as, bs := a.Segments(), b.Segments()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i].IsParam() != bs[i].IsParam() {
			return false
		}
		if !as[i].IsParam() && as[i].Literal != bs[i].Literal {
			return false
		}
	}
	return true
}
