package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/mocksmith/mocksmith/internal/routing"
	"github.com/mocksmith/mocksmith/pkg/contextstore"
	"github.com/mocksmith/mocksmith/pkg/contract"
	"github.com/mocksmith/mocksmith/pkg/handler"
	"github.com/mocksmith/mocksmith/pkg/logging"
	"github.com/mocksmith/mocksmith/pkg/registry"
)

const plainText = "text/plain; charset=utf-8"

// Dispatcher resolves requests against the registry and contract and
// shapes handler output into response records.
type Dispatcher struct {
	registry *registry.Registry
	contract *contract.Contract
	contexts *contextstore.Store
	log      *slog.Logger
}

// New creates a Dispatcher. The contract may be nil when the server
// runs without a spec; every route then behaves as unconstrained.
func New(reg *registry.Registry, c *contract.Contract, contexts *contextstore.Store) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		contract: c,
		contexts: contexts,
		log:      logging.Nop(),
	}
}

// SetLogger sets the operational logger.
func (d *Dispatcher) SetLogger(log *slog.Logger) {
	if log != nil {
		d.log = log
	} else {
		d.log = logging.Nop()
	}
}

// Handle serves one request record. It never returns nil and never
// panics; every failure mode maps to a synthesized response.
func (d *Dispatcher) Handle(req *Request) *Response {
	mod, params, err := d.registry.Resolve(req.Method, req.Path)
	if err != nil {
		return d.resolveFailure(req, err)
	}

	var op *contract.Operation
	if d.contract != nil {
		op = d.contract.Find(req.Method, mod.Route())
		if op == nil {
			// A registered route outside the contract is a
			// configuration smell, not a request failure.
			d.log.Warn("route not in contract", "method", req.Method, "template", mod.Route().String())
		}
	}

	// Invocations for one route run serialized: steps read and mutate the
	// shared context map, which carries no locking of its own.
	lock := d.contexts.Locker(mod.Route().String())
	lock.Lock()
	inv := d.buildInvocation(req, mod, params, op)
	result, err := mod.Invoke(req.Method, inv)
	lock.Unlock()
	if err != nil {
		return d.invokeFailure(req, mod, err)
	}

	if resp := d.negotiate(req, result, op); resp != nil {
		return resp
	}

	body, err := serialize(result.ContentType, result.Body)
	if err != nil {
		d.log.Error("response serialization failed", "method", req.Method, "path", req.Path, "error", err)
		return synthesized(http.StatusInternalServerError, fmt.Sprintf("mocksmith: failed to serialize handler response: %v\n", err))
	}

	resp := &Response{
		Status:      result.Status,
		ContentType: result.ContentType,
		Body:        body,
	}
	for k, v := range result.Headers {
		resp.header().Set(k, v)
	}
	return resp
}

// resolveFailure maps registry resolution errors to 404/405/500.
func (d *Dispatcher) resolveFailure(req *Request, err error) *Response {
	if errors.Is(err, registry.ErrNoRouteMatch) {
		return synthesized(http.StatusNotFound, fmt.Sprintf("mocksmith: no route for %s %s\n", req.Method, req.Path))
	}

	var notAllowed *registry.MethodNotAllowedError
	if errors.As(err, &notAllowed) {
		resp := synthesized(http.StatusMethodNotAllowed,
			fmt.Sprintf("mocksmith: %s not allowed for %s (allowed: %s)\n",
				req.Method, req.Path, strings.Join(notAllowed.Allowed, ", ")))
		resp.header().Set("Allow", strings.Join(notAllowed.Allowed, ", "))
		return resp
	}

	d.log.Error("route resolution failed", "method", req.Method, "path", req.Path, "error", err)
	return synthesized(http.StatusInternalServerError, fmt.Sprintf("mocksmith: route resolution failed: %v\n", err))
}

// invokeFailure maps handler invocation errors to per-route 500s.
func (d *Dispatcher) invokeFailure(req *Request, mod *handler.Module, err error) *Response {
	var cerr *handler.CompileError
	if errors.As(err, &cerr) {
		d.log.Error("serving broken route", "source", mod.Source(), "error", cerr)
		return synthesized(http.StatusInternalServerError,
			fmt.Sprintf("mocksmith: handler failed to compile\n\n%v\n", cerr))
	}

	d.log.Error("handler invocation failed", "method", req.Method, "path", req.Path, "source", mod.Source(), "error", err)
	return synthesized(http.StatusInternalServerError,
		fmt.Sprintf("mocksmith: handler failed\n\n%v\n", err))
}

// negotiate checks the handler's content type against the contract's
// declared set for the result status. A non-empty declared set that
// excludes the handler's type overrides the response with 415; the
// handler output is never forwarded uncorrected.
func (d *Dispatcher) negotiate(req *Request, result *handler.Result, op *contract.Operation) *Response {
	if op == nil {
		return nil
	}
	declared := op.ResponseContentTypes(result.Status)
	if len(declared) == 0 {
		return nil
	}

	got := mediaType(result.ContentType)
	for _, ct := range declared {
		if mediaType(ct) == got {
			return nil
		}
	}

	d.log.Warn("response content type rejected by contract",
		"method", req.Method, "path", req.Path,
		"status", result.Status, "contentType", result.ContentType, "declared", declared)
	return synthesized(http.StatusUnsupportedMediaType,
		fmt.Sprintf("mocksmith: handler returned %q but the contract permits %s for status %d\n",
			result.ContentType, strings.Join(declared, ", "), result.Status))
}

// buildInvocation assembles the handler input: coerced path, query and
// header parameters, the decoded body, and the shared route context.
func (d *Dispatcher) buildInvocation(req *Request, mod *handler.Module, params routing.Params, op *contract.Operation) *handler.Invocation {
	inv := &handler.Invocation{
		PathParams: d.coercePathParams(mod.Route(), params, op),
		Query:      make(map[string]any, len(req.Query)),
		Headers:    make(map[string]any, len(req.Header)),
		Body:       decodeBody(req),
		Context:    d.contexts.Get(mod.Route().String()),
	}

	for key, values := range req.Query {
		if len(values) == 0 {
			continue
		}
		inv.Query[key] = d.coerce(op, contract.InQuery, key, values[0])
	}
	for key, values := range req.Header {
		if len(values) == 0 {
			continue
		}
		inv.Headers[key] = d.coerce(op, contract.InHeader, key, values[0])
	}
	return inv
}

// coercePathParams types captured path values per the contract. The
// contract's parameter names may differ from the handler tree's, so
// positions are aligned segment by segment.
func (d *Dispatcher) coercePathParams(route *routing.Template, params routing.Params, op *contract.Operation) map[string]any {
	out := make(map[string]any, len(params))
	for name, value := range params {
		out[name] = value
	}
	if op == nil {
		return out
	}

	opSegs := op.Template.Segments()
	for i, seg := range route.Segments() {
		if !seg.IsParam() || i >= len(opSegs) || !opSegs[i].IsParam() {
			continue
		}
		raw, ok := params[seg.Param]
		if !ok {
			continue
		}
		out[seg.Param] = d.coerce(op, contract.InPath, opSegs[i].Param, raw)
	}
	return out
}

// coerce converts a raw string per the declared schema type. Invalid
// values are reported and passed through raw; a mock server stays
// permissive.
func (d *Dispatcher) coerce(op *contract.Operation, in contract.ParamLocation, name, raw string) any {
	if op == nil {
		return raw
	}
	var declared *contract.Parameter
	for i := range op.Parameters {
		p := &op.Parameters[i]
		if p.In != in {
			continue
		}
		if in == contract.InHeader && strings.EqualFold(p.Name, name) || p.Name == name {
			declared = p
			break
		}
	}
	if declared == nil {
		return raw
	}

	val, err := coerceValue(declared.Type, raw)
	if err != nil {
		d.log.Warn("parameter coercion failed",
			"param", name, "in", string(in), "type", declared.Type, "value", raw)
		return raw
	}
	return val
}

func coerceValue(schemaType, raw string) (any, error) {
	switch schemaType {
	case "integer":
		return strconv.Atoi(raw)
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// decodeBody parses the request body for the handler environment: JSON
// bodies decode to maps/slices, anything else arrives as a string.
func decodeBody(req *Request) any {
	if len(req.Body) == 0 {
		return nil
	}
	if isJSON(req.ContentType) {
		var decoded any
		if err := json.Unmarshal(req.Body, &decoded); err == nil {
			return decoded
		}
	}
	return string(req.Body)
}

// serialize renders a handler body value for the wire. Strings and raw
// bytes pass through verbatim; structured values marshal to JSON when
// the content type is JSON-shaped, otherwise they format as text.
func serialize(contentType string, body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		if isJSON(contentType) {
			return json.Marshal(b)
		}
		return []byte(fmt.Sprintf("%v", b)), nil
	}
}

func isJSON(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// mediaType strips parameters from a content type header value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

// synthesized builds a dispatcher-generated plain-text response.
func synthesized(status int, body string) *Response {
	return &Response{
		Status:      status,
		ContentType: plainText,
		Body:        []byte(body),
	}
}
