// Package routing implements path template parsing and matching.
//
// A path template decomposes a URL path into literal and parameter
// segments ("/pets/{id}" has one of each). Matching is segment-wise and
// case-sensitive: literals must match exactly, parameters capture any
// non-empty segment. When several templates match the same concrete
// path, the one with the most literal segments wins; templates that tie
// are conflicting and must be rejected before they ever reach a match.
package routing
