// Package cli implements the mocksmith command line interface: serve
// (the default), routes, validate and version.
package cli
