// Package contract holds the resolved OpenAPI contract the dispatcher
// serves against. The raw document is loaded and dereferenced once at
// startup with kin-openapi, then converted to an immutable in-memory
// form: operations keyed by method and path template, each carrying its
// declared parameters and the response content types permitted per
// status. The contract never changes for the process lifetime.
package contract
