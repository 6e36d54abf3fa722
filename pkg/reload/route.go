package reload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mocksmith/mocksmith/internal/routing"
)

// handlerExtensions are the file extensions recognized as handler sources.
var handlerExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
}

// isHandlerFile reports whether a path looks like a handler source.
// Dotfiles and editor droppings are skipped.
func isHandlerFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "#") {
		return false
	}
	return handlerExtensions[strings.ToLower(filepath.Ext(base))]
}

// routeForFile derives the path template for a handler file under root.
// Directory names become literal segments, "{name}" directories or file
// stems become parameter segments, and the file stem is the terminal
// segment. An "index" stem maps to the directory's own route:
//
//	pets.yaml           → /pets
//	pets/{id}.yaml      → /pets/{id}
//	pets/{id}/index.yaml → /pets/{id}
func routeForFile(root, path string) (*routing.Template, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, fmt.Errorf("derive route for %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return nil, fmt.Errorf("handler %s is outside root %s", path, root)
	}

	segments := strings.Split(rel, "/")
	last := len(segments) - 1
	stem := strings.TrimSuffix(segments[last], filepath.Ext(segments[last]))
	if stem == "index" {
		segments = segments[:last]
	} else {
		segments[last] = stem
	}

	return routing.Parse("/" + strings.Join(segments, "/"))
}
