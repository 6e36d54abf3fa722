package contract

import (
	"context"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mocksmith/mocksmith/internal/routing"
)

// Load reads, validates and resolves an OpenAPI document from a file.
func Load(path string) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", path, err)
	}
	return FromDocument(doc)
}

// LoadFromData parses an OpenAPI document from raw YAML or JSON bytes.
func LoadFromData(data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument converts a dereferenced kin-openapi document into the
// resolved Contract form.
func FromDocument(doc *openapi3.T) (*Contract, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	c := &Contract{}
	if doc.Paths == nil {
		return c, nil
	}

	paths := doc.Paths.Map()
	pathKeys := make([]string, 0, len(paths))
	for k := range paths {
		pathKeys = append(pathKeys, k)
	}
	sort.Strings(pathKeys)

	for _, pathKey := range pathKeys {
		item := paths[pathKey]
		if item == nil {
			continue
		}
		tmpl, err := routing.Parse(pathKey)
		if err != nil {
			return nil, fmt.Errorf("spec path %q: %w", pathKey, err)
		}

		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			op, err := convertOperation(method, tmpl, item, ops[method])
			if err != nil {
				return nil, fmt.Errorf("spec %s %s: %w", method, pathKey, err)
			}
			c.ops = append(c.ops, op)
		}
	}

	return c, nil
}

func convertOperation(method string, tmpl *routing.Template, item *openapi3.PathItem, src *openapi3.Operation) (*Operation, error) {
	op := &Operation{
		Method:    method,
		Template:  tmpl,
		responses: make(map[string][]string),
	}

	// Path-level parameters apply to every operation; operation-level
	// ones may shadow them but for a mock server merging is enough.
	for _, ref := range item.Parameters {
		op.Parameters = appendParameter(op.Parameters, ref)
	}
	for _, ref := range src.Parameters {
		op.Parameters = appendParameter(op.Parameters, ref)
	}

	if src.RequestBody != nil && src.RequestBody.Value != nil {
		for ct := range src.RequestBody.Value.Content {
			op.RequestContentTypes = append(op.RequestContentTypes, ct)
		}
		sort.Strings(op.RequestContentTypes)
	}

	if src.Responses != nil {
		for status, ref := range src.Responses.Map() {
			if ref == nil || ref.Value == nil {
				continue
			}
			var types []string
			for ct := range ref.Value.Content {
				types = append(types, ct)
			}
			sort.Strings(types)
			op.responses[status] = types
		}
	}

	return op, nil
}

func appendParameter(params []Parameter, ref *openapi3.ParameterRef) []Parameter {
	if ref == nil || ref.Value == nil {
		return params
	}
	p := ref.Value
	switch p.In {
	case string(InPath), string(InQuery), string(InHeader):
	default:
		// Cookie and other locations are outside the mock surface.
		return params
	}
	return append(params, Parameter{
		Name:     p.Name,
		In:       ParamLocation(p.In),
		Type:     schemaType(p.Schema),
		Required: p.Required,
	})
}

// schemaType extracts the primary JSON schema type, empty when the
// schema declares none.
func schemaType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return ""
	}
	types := *ref.Value.Type
	if len(types) == 0 {
		return ""
	}
	return types[0]
}
