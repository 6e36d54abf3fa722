package cli

import (
	"github.com/mocksmith/mocksmith/pkg/registry"
	"github.com/mocksmith/mocksmith/pkg/reload"
)

// loadTree compiles every handler file under dir into a fresh registry,
// without watching. Used by the offline routes and validate commands.
func loadTree(dir string) (*registry.Registry, error) {
	reg := registry.New()
	loader := reload.NewLoader(dir, reg)
	loader.SetWatch(false)
	if err := loader.Start(); err != nil {
		return nil, err
	}
	return reg, nil
}
