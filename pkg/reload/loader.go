package reload

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mocksmith/mocksmith/internal/routing"
	"github.com/mocksmith/mocksmith/pkg/handler"
	"github.com/mocksmith/mocksmith/pkg/logging"
	"github.com/mocksmith/mocksmith/pkg/registry"
)

// eventKind is the logical event the watcher derives for one file.
type eventKind int

const (
	eventDiscovered eventKind = iota
	eventChanged
	eventRemoved
)

func (k eventKind) String() string {
	switch k {
	case eventDiscovered:
		return "discovered"
	case eventChanged:
		return "changed"
	case eventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Loader watches a handler source tree and drives registry updates.
type Loader struct {
	root     string
	registry *registry.Registry
	log      *slog.Logger
	watch    bool

	watcher *fsnotify.Watcher
	ready   chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu sync.Mutex
	// workers holds the per-file ordered event queues.
	workers map[string]*fileWorker
	// registered tracks which methods each live file currently claims,
	// so a recompile can retire methods the new module dropped.
	registered map[string][]string
	started    bool
	running    bool

	workerWG sync.WaitGroup
}

// NewLoader creates a loader for the handler tree rooted at root.
func NewLoader(root string, reg *registry.Registry) *Loader {
	return &Loader{
		root:       root,
		registry:   reg,
		log:        logging.Nop(),
		watch:      true,
		ready:      make(chan struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		workers:    make(map[string]*fileWorker),
		registered: make(map[string][]string),
	}
}

// SetLogger sets the operational logger.
func (l *Loader) SetLogger(log *slog.Logger) {
	if log != nil {
		l.log = log
	}
}

// SetWatch controls hot reload. When disabled, Start performs the
// initial load burst and returns without watching for changes. Must be
// called before Start.
func (l *Loader) SetWatch(watch bool) {
	l.watch = watch
}

// Ready is closed once the initial load burst has been processed.
func (l *Loader) Ready() <-chan struct{} {
	return l.ready
}

// Start loads all pre-existing handler files, signals ready, and begins
// watching for changes. It fails if the root does not exist or the
// watcher cannot be created.
func (l *Loader) Start() error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("loader already started")
	}
	l.started = true
	l.mu.Unlock()

	info, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("handler root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("handler root %s is not a directory", l.root)
	}

	if l.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		l.watcher = watcher

		// Watch before scanning so changes racing the scan surface as
		// ordinary events instead of being missed.
		if err := addWatchRecursive(watcher, l.root); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", l.root, err)
		}
	}

	// Initial burst: every pre-existing file is discovered, in path
	// order, before ready is signalled.
	var initial []string
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isHandlerFile(path) {
			initial = append(initial, path)
		}
		return nil
	})
	if err != nil {
		if l.watcher != nil {
			_ = l.watcher.Close()
		}
		return fmt.Errorf("scan %s: %w", l.root, err)
	}
	sort.Strings(initial)
	for _, path := range initial {
		l.apply(path, eventDiscovered)
	}
	close(l.ready)

	if l.watcher == nil {
		return nil
	}
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	go l.watchLoop()
	return nil
}

// Stop stops the watcher, waits for queued compiles to drain, and
// leaves the registry in a consistent state. Safe to call once after a
// successful Start.
func (l *Loader) Stop() {
	l.mu.Lock()
	running := l.running
	l.running = false
	l.mu.Unlock()
	if !running {
		return
	}

	close(l.stop)
	_ = l.watcher.Close()
	<-l.done
	l.workerWG.Wait()
}

// watchLoop multiplexes fsnotify events into per-file queues.
func (l *Loader) watchLoop() {
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			return
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.log.Warn("watcher error", "error", err)
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleFSEvent(evt)
		}
	}
}

func (l *Loader) handleFSEvent(evt fsnotify.Event) {
	path := filepath.Clean(evt.Name)

	switch {
	case evt.Op&fsnotify.Create != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			l.discoverTree(path)
			return
		}
		if isHandlerFile(path) {
			l.enqueue(path, eventDiscovered)
		}
	case evt.Op&fsnotify.Write != 0:
		if isHandlerFile(path) {
			l.enqueue(path, eventChanged)
		}
	case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		l.enqueueRemovals(path)
	}
}

// discoverTree watches a newly created directory and discovers any
// handler files already inside it (editors and git often create whole
// trees at once).
func (l *Loader) discoverTree(dir string) {
	if err := addWatchRecursive(l.watcher, dir); err != nil {
		l.log.Warn("watch new directory failed", "dir", dir, "error", err)
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && isHandlerFile(path) {
			l.enqueue(path, eventDiscovered)
		}
		return nil
	})
}

// enqueueRemovals emits removed events for the path itself or, when a
// directory vanished, for every tracked file underneath it.
func (l *Loader) enqueueRemovals(path string) {
	if isHandlerFile(path) {
		l.enqueue(path, eventRemoved)
		return
	}

	prefix := path + string(filepath.Separator)
	l.mu.Lock()
	var under []string
	for tracked := range l.registered {
		if strings.HasPrefix(tracked, prefix) {
			under = append(under, tracked)
		}
	}
	l.mu.Unlock()
	for _, tracked := range under {
		l.enqueue(tracked, eventRemoved)
	}
}

// fileWorker serializes events for one file. The queue is unbounded so
// a slow compile on one file never blocks the watch loop or other files.
type fileWorker struct {
	mu     sync.Mutex
	queue  []eventKind
	notify chan struct{}
}

// enqueue appends an event to the file's queue, creating the worker
// goroutine on first use.
func (l *Loader) enqueue(path string, kind eventKind) {
	l.mu.Lock()
	w, ok := l.workers[path]
	if !ok {
		w = &fileWorker{notify: make(chan struct{}, 1)}
		l.workers[path] = w
		l.workerWG.Add(1)
		go l.runWorker(path, w)
	}
	l.mu.Unlock()

	w.mu.Lock()
	w.queue = append(w.queue, kind)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// runWorker drains one file's queue in arrival order.
func (l *Loader) runWorker(path string, w *fileWorker) {
	defer l.workerWG.Done()
	for {
		select {
		case <-l.stop:
			return
		case <-w.notify:
		}
		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			kind := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			l.apply(path, kind)
		}
	}
}

// apply performs the registry mutation for one event.
func (l *Loader) apply(path string, kind eventKind) {
	tmpl, err := routeForFile(l.root, path)
	if err != nil {
		l.log.Warn("ignoring handler file", "path", path, "error", err)
		return
	}

	switch kind {
	case eventDiscovered, eventChanged:
		l.compileAndRegister(path, tmpl, kind)
	case eventRemoved:
		l.unregisterFile(path, tmpl)
	}
}

func (l *Loader) compileAndRegister(path string, tmpl *routing.Template, kind eventKind) {
	rel, _ := filepath.Rel(l.root, path)

	data, err := os.ReadFile(path)
	if err != nil {
		// The file may already be gone again; the removal event will
		// follow and clean up.
		l.log.Warn("read handler failed", "path", rel, "error", err)
		return
	}

	mod := handler.Compile(filepath.ToSlash(rel), tmpl, data)
	if mod.Err() != nil {
		l.log.Error("handler compile failed", "path", rel, "error", mod.Err())
	}

	var kept []string
	for _, method := range mod.Methods() {
		if err := l.registry.Register(method, tmpl, mod); err != nil {
			l.log.Error("route registration failed", "path", rel, "method", method, "error", err)
			continue
		}
		kept = append(kept, method)
	}

	// Retire methods the previous version of this file claimed but the
	// new one does not.
	l.mu.Lock()
	previous := l.registered[path]
	l.registered[path] = kept
	l.mu.Unlock()
	for _, method := range previous {
		if !containsMethod(kept, method) {
			l.registry.Unregister(method, tmpl)
		}
	}

	l.log.Info("handler loaded", "event", kind.String(), "path", rel,
		"route", tmpl.String(), "methods", kept, "broken", mod.Err() != nil)
}

func (l *Loader) unregisterFile(path string, tmpl *routing.Template) {
	l.mu.Lock()
	previous := l.registered[path]
	delete(l.registered, path)
	l.mu.Unlock()

	for _, method := range previous {
		l.registry.Unregister(method, tmpl)
	}
	rel, _ := filepath.Rel(l.root, path)
	l.log.Info("handler removed", "path", filepath.ToSlash(rel), "route", tmpl.String())
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
