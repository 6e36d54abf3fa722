package dispatch

import (
	"net/http"
	"net/url"
)

// Request is the abstract incoming request record. The transport layer
// builds one per wire-level request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// ContentType is the inferred request body media type, without
	// parameters.
	ContentType string
}

// Response is the abstract outgoing response record. Either produced
// from a handler result or synthesized by the dispatcher.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

// header returns the response header map, creating it on demand.
func (r *Response) header() http.Header {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r.Header
}
