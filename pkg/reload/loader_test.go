package reload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksmith/mocksmith/pkg/registry"
)

const goodHandler = "get:\n  contentType: application/json\n  body: '{\"ok\": true}'\n"

func writeHandler(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func startLoader(t *testing.T, root string) (*Loader, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	loader := NewLoader(root, reg)
	require.NoError(t, loader.Start())
	t.Cleanup(loader.Stop)

	select {
	case <-loader.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("loader never became ready")
	}
	return loader, reg
}

func waitResolved(t *testing.T, reg *registry.Registry, method, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, _, err := reg.Resolve(method, path)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "route %s %s never appeared", method, path)
}

func TestInitialLoadBurst(t *testing.T) {
	root := t.TempDir()
	writeHandler(t, root, "pets.yaml", goodHandler)
	writeHandler(t, root, "pets/{id}.yaml", goodHandler)
	writeHandler(t, root, "users/{userId}/orders.yaml", goodHandler)

	_, reg := startLoader(t, root)

	// Ready means the burst is fully registered; no waiting needed.
	for _, path := range []string{"/pets", "/pets/42", "/users/7/orders"} {
		_, _, err := reg.Resolve("GET", path)
		assert.NoError(t, err, path)
	}
	assert.Equal(t, 3, reg.Count())
}

func TestFileAddedAtRuntime(t *testing.T) {
	root := t.TempDir()
	_, reg := startLoader(t, root)

	_, _, err := reg.Resolve("GET", "/late/addition")
	require.ErrorIs(t, err, registry.ErrNoRouteMatch)

	writeHandler(t, root, "late/addition.yaml", goodHandler)
	waitResolved(t, reg, "GET", "/late/addition")
}

func TestFileDeletedAtRuntime(t *testing.T) {
	root := t.TempDir()
	path := writeHandler(t, root, "pets.yaml", goodHandler)
	_, reg := startLoader(t, root)
	waitResolved(t, reg, "GET", "/pets")

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, _, err := reg.Resolve("GET", "/pets")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileChangedAtRuntime(t *testing.T) {
	root := t.TempDir()
	path := writeHandler(t, root, "pets.yaml", goodHandler)
	_, reg := startLoader(t, root)
	waitResolved(t, reg, "GET", "/pets")

	// The rewrite swaps GET for POST; the old entry point must retire.
	require.NoError(t, os.WriteFile(path, []byte("post:\n  status: 201\n  body: '{}'\n"), 0o644))
	waitResolved(t, reg, "POST", "/pets")
	require.Eventually(t, func() bool {
		_, _, err := reg.Resolve("GET", "/pets")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCompileFailureIsolated(t *testing.T) {
	root := t.TempDir()
	writeHandler(t, root, "good.yaml", goodHandler)
	writeHandler(t, root, "bad.yaml", "get:\n  body: '1 +'\n")

	_, reg := startLoader(t, root)

	// The broken file holds its route in an error state; the good one
	// is unaffected.
	mod, _, err := reg.Resolve("GET", "/bad")
	require.NoError(t, err)
	assert.Error(t, mod.Err())

	mod, _, err = reg.Resolve("GET", "/good")
	require.NoError(t, err)
	assert.NoError(t, mod.Err())
}

func TestBrokenFileRecovers(t *testing.T) {
	root := t.TempDir()
	path := writeHandler(t, root, "pets.yaml", "get:\n  body: '1 +'\n")
	_, reg := startLoader(t, root)

	mod, _, err := reg.Resolve("GET", "/pets")
	require.NoError(t, err)
	require.Error(t, mod.Err())

	require.NoError(t, os.WriteFile(path, []byte(goodHandler), 0o644))
	require.Eventually(t, func() bool {
		mod, _, err := reg.Resolve("GET", "/pets")
		return err == nil && mod.Err() == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDirectoryCreatedAtRuntime(t *testing.T) {
	root := t.TempDir()
	_, reg := startLoader(t, root)

	// Build the tree outside the watched root, then move it in, the
	// way editors and generators drop whole directories at once.
	staging := t.TempDir()
	writeHandler(t, staging, "widgets/{id}.yaml", goodHandler)
	require.NoError(t, os.Rename(filepath.Join(staging, "widgets"), filepath.Join(root, "widgets")))

	waitResolved(t, reg, "GET", "/widgets/9")
}

func TestDirectoryRemovedAtRuntime(t *testing.T) {
	root := t.TempDir()
	writeHandler(t, root, "widgets/{id}.yaml", goodHandler)
	_, reg := startLoader(t, root)
	waitResolved(t, reg, "GET", "/widgets/9")

	require.NoError(t, os.RemoveAll(filepath.Join(root, "widgets")))
	require.Eventually(t, func() bool {
		_, _, err := reg.Resolve("GET", "/widgets/9")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNonHandlerFilesIgnored(t *testing.T) {
	root := t.TempDir()
	writeHandler(t, root, "pets.yaml", goodHandler)
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("docs"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.yaml"), []byte(goodHandler), 0o644))

	_, reg := startLoader(t, root)
	assert.Equal(t, 1, reg.Count())
}

func TestStartMissingRoot(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope"), registry.New())
	require.Error(t, loader.Start())
}
