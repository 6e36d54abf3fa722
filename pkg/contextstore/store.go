package contextstore

import (
	"sort"
	"sync"
)

// Context is the mutable container shared by all handler invocations
// under one namespace.
type Context map[string]any

// Store is the process-wide table of namespace contexts.
type Store struct {
	mu       sync.Mutex
	contexts map[string]Context
	lockers  map[string]*sync.Mutex
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		contexts: make(map[string]Context),
		lockers:  make(map[string]*sync.Mutex),
	}
}

// Get returns the context for the namespace, creating an empty one on
// first access. Concurrent calls for the same namespace return the same
// object; only one caller wins the initial creation.
func (s *Store) Get(namespace string) Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[namespace]
	if !ok {
		ctx = make(Context)
		s.contexts[namespace] = ctx
	}
	return ctx
}

// Locker returns the mutex serializing access to a namespace's context.
// Callers hold it across a read-modify-write of the context map, since
// the map itself is unsynchronized. The locker survives Reset so in-flight
// holders and the next creation contend on the same mutex.
func (s *Store) Locker(namespace string) sync.Locker {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lockers[namespace]
	if !ok {
		l = &sync.Mutex{}
		s.lockers[namespace] = l
	}
	return l
}

// Reset clears the context for a namespace. The next Get creates a
// fresh object. No-op if the namespace was never created.
func (s *Store) Reset(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, namespace)
}

// ResetAll clears every namespace.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = make(map[string]Context)
}

// Namespaces returns the live namespaces in sorted order for
// deterministic output.
func (s *Store) Namespaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.contexts))
	for name := range s.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of live namespaces.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}
