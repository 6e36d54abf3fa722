package contextstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCreatesOnce(t *testing.T) {
	s := New()

	a := s.Get("/pets")
	b := s.Get("/pets")
	require.NotNil(t, a)

	a["count"] = 3
	assert.Equal(t, 3, b["count"], "same namespace must share one object")

	other := s.Get("/toys")
	assert.NotContains(t, other, "count")
}

func TestGetConcurrent(t *testing.T) {
	s := New()

	const workers = 32
	results := make([]Context, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Get("/shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		// Maps are reference types: identical namespaces must yield the
		// identical map, not equal copies.
		assert.True(t, sameMap(results[0], results[i]), "worker %d got a different object", i)
	}
	assert.Equal(t, 1, s.Count())
}

func sameMap(a, b Context) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

func TestLockerSerializesMutation(t *testing.T) {
	s := New()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := s.Locker("/counter")
			lock.Lock()
			ctx := s.Get("/counter")
			n, _ := ctx["n"].(int)
			ctx["n"] = n + 1
			lock.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, s.Get("/counter")["n"])
}

func TestLockerSurvivesReset(t *testing.T) {
	s := New()
	before := s.Locker("/pets")
	s.Reset("/pets")
	assert.True(t, before == s.Locker("/pets"), "reset must not replace the namespace locker")
}

func TestReset(t *testing.T) {
	s := New()

	ctx := s.Get("/pets")
	ctx["seeded"] = true

	s.Reset("/pets")
	fresh := s.Get("/pets")
	assert.NotContains(t, fresh, "seeded")

	// Resetting an unknown namespace is a no-op.
	s.Reset("/never-created")
}

func TestNamespaces(t *testing.T) {
	s := New()
	s.Get("/b")
	s.Get("/a")
	s.Get("/c")

	assert.Equal(t, []string{"/a", "/b", "/c"}, s.Namespaces())

	s.ResetAll()
	assert.Empty(t, s.Namespaces())
	assert.Equal(t, 0, s.Count())
}
