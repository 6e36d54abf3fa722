// Package contextstore holds the shared mutable state handlers use to
// keep mock fixtures across requests. Each handler file gets one
// namespace, derived from its position on disk, and every invocation
// under that namespace sees the same object. The store never inspects
// the contents; concurrent handlers sharing a namespace may race, which
// is an accepted limitation for a mock server.
package contextstore
