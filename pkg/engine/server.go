package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mocksmith/mocksmith/pkg/config"
	"github.com/mocksmith/mocksmith/pkg/contextstore"
	"github.com/mocksmith/mocksmith/pkg/contract"
	"github.com/mocksmith/mocksmith/pkg/dispatch"
	"github.com/mocksmith/mocksmith/pkg/logging"
	"github.com/mocksmith/mocksmith/pkg/registry"
	"github.com/mocksmith/mocksmith/pkg/reload"
)

// diagnosticsPrefix is the reserved path space for server diagnostics.
// Handler files cannot shadow it.
const diagnosticsPrefix = "/__mocksmith/"

// maxBodyBytes caps request bodies read into memory.
const maxBodyBytes = 10 << 20

// Server ties the contract, registry, loader and dispatcher together
// behind one HTTP listener.
type Server struct {
	cfg        *config.ServerConfiguration
	log        *slog.Logger
	contract   *contract.Contract
	registry   *registry.Registry
	contexts   *contextstore.Store
	dispatcher *dispatch.Dispatcher
	loader     *reload.Loader

	httpServer *http.Server
	listener   net.Listener

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a server from the given configuration. The contract
// is loaded eagerly so a broken spec file fails here rather than on the
// first request.
func NewServer(cfg *config.ServerConfiguration, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultServerConfiguration()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg: cfg,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.SpecFile != "" {
		c, err := contract.Load(cfg.SpecFile)
		if err != nil {
			return nil, fmt.Errorf("load contract: %w", err)
		}
		s.contract = c
	}

	s.registry = registry.New()
	s.contexts = contextstore.New()

	s.dispatcher = dispatch.New(s.registry, s.contract, s.contexts)
	s.dispatcher.SetLogger(s.log)

	s.loader = reload.NewLoader(cfg.HandlerDir, s.registry)
	s.loader.SetLogger(s.log)
	s.loader.SetWatch(cfg.Watch)

	return s, nil
}

// Registry exposes the route table, for the CLI routes command.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start loads the handler tree, binds the listener and begins serving.
// It returns once the server is accepting connections; the initial
// handler burst is registered before the first request can arrive.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	if err := s.loader.Start(); err != nil {
		return fmt.Errorf("start loader: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.loader.Stop()
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener

	handler := s.requestID(s.accessLog(http.HandlerFunc(s.serveHTTP)))
	s.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeoutDuration(),
		WriteTimeout: s.cfg.WriteTimeoutDuration(),
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	s.log.Info("engine started", "addr", listener.Addr().String(),
		"handlerDir", s.cfg.HandlerDir, "watch", s.cfg.Watch,
		"contract", s.cfg.SpecFile != "")
	return nil
}

// Stop gracefully shuts down the server and the handler loader.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("HTTP shutdown: %w", err)
	}
	s.loader.Stop()

	s.running = false
	s.log.Info("engine stopped")
	return firstErr
}

// Port returns the bound listen port. Useful when the configuration
// asked for port 0.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return s.cfg.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.cfg.Port
}

// serveHTTP routes diagnostics to their handlers and everything else
// through the dispatcher.
func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, diagnosticsPrefix) {
		s.serveDiagnostics(w, r)
		return
	}
	s.dispatch(w, r)
}

// dispatch converts the wire request into a dispatch record, runs it,
// and writes the resulting response.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
		}
		return
	}

	req := &dispatch.Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Header:      r.Header,
		Body:        body,
		ContentType: requestContentType(r),
	}

	resp := s.dispatcher.Handle(req)
	writeResponse(w, resp)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	limited := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = limited.Close() }()
	return io.ReadAll(limited)
}

func requestContentType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func writeResponse(w http.ResponseWriter, resp *dispatch.Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
