// Package dispatch turns incoming request records into contract-shaped
// response records. The dispatcher resolves the route, cross-references
// the OpenAPI contract, coerces declared parameters, invokes the
// handler module with its shared context, and negotiates the response
// content type against the contract. It always produces a well-formed
// response: unknown paths become 404, unsupported methods 405 with an
// Allow list, contract-violating content types 415, and handler or
// compile failures 500 with diagnostic text. No failure propagates to
// the transport.
package dispatch
