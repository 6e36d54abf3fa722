// Diagnostics endpoints under /__mocksmith/: liveness, readiness, the
// live route table, and shared-context reset.

package engine

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) serveDiagnostics(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/__mocksmith/health":
		s.handleHealth(w, r)
	case "/__mocksmith/ready":
		s.handleReady(w, r)
	case "/__mocksmith/routes":
		s.handleRoutes(w, r)
	case "/__mocksmith/state/reset":
		s.handleStateReset(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	uptime := time.Since(s.startTime).String()
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"uptime": uptime,
		"checks": map[string]any{
			"routes": map[string]any{
				"count":  s.registry.Count(),
				"status": "ok",
			},
		},
	})
}

// handleRoutes reports the registered route table, including routes
// whose handler file currently fails to compile.
func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"routes": s.registry.Routes(),
	})
}

// handleStateReset clears handler contexts. With a namespace query
// parameter it clears one handler's context, otherwise all of them.
func (s *Server) handleStateReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	namespace := r.URL.Query().Get("namespace")
	if namespace != "" {
		s.contexts.Reset(namespace)
	} else {
		s.contexts.ResetAll()
	}
	s.log.Info("handler state reset", "namespace", namespace)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reset",
		"namespace": namespace,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
