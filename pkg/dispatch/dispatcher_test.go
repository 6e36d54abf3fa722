package dispatch

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksmith/mocksmith/internal/routing"
	"github.com/mocksmith/mocksmith/pkg/contextstore"
	"github.com/mocksmith/mocksmith/pkg/contract"
	"github.com/mocksmith/mocksmith/pkg/handler"
	"github.com/mocksmith/mocksmith/pkg/registry"
)

const testSpec = `
openapi: 3.0.3
info:
  title: Test
  version: "1.0"
paths:
  /pets/{id}:
    get:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
        - name: verbose
          in: query
          schema:
            type: boolean
      responses:
        "200":
          description: one pet
          content:
            application/json:
              schema:
                type: object
`

type fixture struct {
	registry *registry.Registry
	contexts *contextstore.Store
	dsp      *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := contract.LoadFromData([]byte(testSpec))
	require.NoError(t, err)

	reg := registry.New()
	contexts := contextstore.New()
	return &fixture{
		registry: reg,
		contexts: contexts,
		dsp:      New(reg, c, contexts),
	}
}

func (f *fixture) register(t *testing.T, route, src string) *handler.Module {
	t.Helper()
	mod := handler.Compile(route+".yaml", routing.MustParse(route), []byte(src))
	for _, method := range mod.Methods() {
		require.NoError(t, f.registry.Register(method, mod.Route(), mod))
	}
	return mod
}

func get(path string) *Request {
	return &Request{Method: http.MethodGet, Path: path, Query: url.Values{}, Header: http.Header{}}
}

// Contract declares GET /pets/{id} → 200 application/json. A conforming
// handler response passes through unmodified.
func TestConformingResponsePassesThrough(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/pets/{id}", "get:\n  status: 200\n  contentType: application/json\n  body: '{\"id\": \"1\"}'\n")

	resp := f.dsp.Handle(get("/pets/1"))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"id":"1"}`, string(resp.Body))
}

// The contract only permits application/json for 200; a text/plain
// handler response is overridden with 415 and diagnostic text.
func TestContentTypeMismatchOverridden(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/pets/{id}", "get:\n  status: 200\n  contentType: text/plain\n  body: '\"hi\"'\n")

	resp := f.dsp.Handle(get("/pets/1"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.Status)
	assert.Equal(t, plainText, resp.ContentType)
	assert.Contains(t, string(resp.Body), "text/plain")
	assert.Contains(t, string(resp.Body), "application/json")
	assert.NotContains(t, string(resp.Body), "hi")
}

func TestNoRouteMatch(t *testing.T) {
	f := newFixture(t)
	resp := f.dsp.Handle(get("/missing"))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/widgets", "get:\n  body: '[]'\n")

	req := get("/widgets")
	req.Method = http.MethodPost
	resp := f.dsp.Handle(req)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	assert.Equal(t, "GET", resp.Header.Get("Allow"))
}

// A status the contract does not declare at all passes through
// unmodified.
func TestUndeclaredStatusPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/pets/{id}", "get:\n  status: 418\n  contentType: text/plain\n  body: '\"teapot\"'\n")

	resp := f.dsp.Handle(get("/pets/1"))
	assert.Equal(t, 418, resp.Status)
	assert.Equal(t, "teapot", string(resp.Body))
}

// Routes outside the contract are a configuration warning, not a
// request failure: the handler's raw output is served.
func TestRouteAbsentFromContract(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/undocumented", "get:\n  contentType: text/plain\n  body: '\"raw\"'\n")

	resp := f.dsp.Handle(get("/undocumented"))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "raw", string(resp.Body))
}

func TestParameterCoercion(t *testing.T) {
	f := newFixture(t)
	// The body echoes types: an integer id and boolean verbose flag.
	f.register(t, "/pets/{id}",
		"get:\n  body: '{\"id\": params.id, \"verbose\": query.verbose}'\n")

	req := get("/pets/42")
	req.Query.Set("verbose", "true")
	resp := f.dsp.Handle(req)
	require.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"id":42,"verbose":true}`, string(resp.Body))
}

// Invalid coercion is permissive: the raw string passes through.
func TestParameterCoercionFailureKeepsRaw(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/pets/{id}", "get:\n  body: '{\"id\": params.id}'\n")

	resp := f.dsp.Handle(get("/pets/not-a-number"))
	require.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"id":"not-a-number"}`, string(resp.Body))
}

func TestHandlerRuntimeFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/pets/{id}", "get:\n  body: '1 / (params.id - params.id)'\n")

	req := get("/pets/5")
	resp := f.dsp.Handle(req)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "handler failed")
}

func TestCompileFailureServes500(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/broken", "get:\n  body: '1 +'\n")

	resp := f.dsp.Handle(get("/broken"))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "failed to compile")
}

func TestSharedContextAcrossMethods(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/counter", `
get:
  contentType: application/json
  body: '{"count": int(context.count ?? 0)}'
post:
  status: 201
  contentType: application/json
  steps:
    - var: count
      value: "int(context.count ?? 0) + 1"
  body: '{"count": context.count}'
`)

	post := get("/counter")
	post.Method = http.MethodPost
	resp := f.dsp.Handle(post)
	require.Equal(t, 201, resp.Status)

	resp = f.dsp.Handle(get("/counter"))
	assert.JSONEq(t, `{"count":1}`, string(resp.Body))

	// Reset isolates state between tests or scenarios.
	f.contexts.Reset("/counter")
	resp = f.dsp.Handle(get("/counter"))
	assert.JSONEq(t, `{"count":0}`, string(resp.Body))
}

func TestRequestBodyDecoding(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/echo", "post:\n  body: '{\"name\": body.name}'\n")

	req := &Request{
		Method:      http.MethodPost,
		Path:        "/echo",
		Query:       url.Values{},
		Header:      http.Header{},
		Body:        []byte(`{"name":"rex"}`),
		ContentType: "application/json",
	}
	resp := f.dsp.Handle(req)
	require.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"name":"rex"}`, string(resp.Body))
}

func TestHandlerHeadersForwarded(t *testing.T) {
	f := newFixture(t)
	f.register(t, "/headers", "get:\n  headers:\n    X-Mock: \"yes\"\n  body: 'nil'\n")

	resp := f.dsp.Handle(get("/headers"))
	assert.Equal(t, "yes", resp.Header.Get("X-Mock"))
}
