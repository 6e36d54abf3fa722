// Package handler compiles handler source files into executable modules.
//
// A handler file is a YAML document with one block per HTTP method it
// implements. Each block declares the response status, content type and
// headers, an optional ordered list of steps that mutate the shared
// route context, and a body expression evaluated per request:
//
//	get:
//	  status: 200
//	  contentType: application/json
//	  steps:
//	    - var: hits
//	      value: "int(context.hits ?? 0) + 1"
//	  body: '{"id": params.id, "hits": context.hits}'
//
// Expressions use expr-lang and see the variables params, query,
// headers, body and context. Compilation happens once per file change;
// a file that fails to compile still produces a module so the route can
// report the diagnostic instead of silently vanishing.
package handler
