// Package registry owns the live mapping from (method, path template)
// to handler module. Registration replaces slots atomically with
// respect to concurrent resolution: a resolve call sees either the old
// module or the new one, never a partial state. Ambiguous templates are
// rejected at registration time so resolution stays deterministic.
package registry
