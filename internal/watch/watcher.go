package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/framestamp/internal/events"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/transcode"
)

// DefaultSettle is how long a capture must stay unmodified before it is reported.
const DefaultSettle = 2 * time.Second

// DefaultExtensions are the capture containers picked up when none are configured.
var DefaultExtensions = []string{".mp4", ".mkv", ".mov", ".webm"}

// Watcher watches a capture directory and reports files once writes to them
// have settled. Files produced by framestamp itself are ignored.
type Watcher struct {
	dir      string
	settle   time.Duration
	exts     map[string]bool
	bus      *events.Bus
	logger   *slog.Logger
	handlers []func(string)
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period a file needs before it is reported.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithExtensions limits reported files to the given extensions ("mp4" or ".mp4").
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		if len(exts) == 0 {
			return
		}
		w.exts = normalizeExtensions(exts)
	}
}

// WithEventBus publishes a CaptureReadyEvent for every settled file.
func WithEventBus(bus *events.Bus) Option {
	return func(w *Watcher) {
		w.bus = bus
	}
}

// WithLogger overrides the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a directory watcher. Call Start to begin watching.
func New(dir string, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:    dir,
		settle: DefaultSettle,
		exts:   normalizeExtensions(DefaultExtensions),
		logger: logging.GetLogger("watch"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReady registers a handler called with the path of every settled capture.
// Handlers run on the watcher goroutine. Returns an unsubscribe function.
func (w *Watcher) OnReady(handler func(path string)) func() {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	idx := len(w.handlers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if idx < len(w.handlers) {
			w.handlers[idx] = nil
		}
	}
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if addErr := watcher.Add(w.dir); addErr != nil {
		watcher.Close()
		return addErr
	}
	w.watcher = watcher

	w.logger.Info("Capture watcher started", "dir", w.dir, "settle", w.settle)
	go w.watch()
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

// Accepts reports whether path is a capture this watcher would report.
func (w *Watcher) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || transcode.IsOutputName(base) {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}

type settled struct {
	path string
	gen  uint64
}

// pending tracks one file whose writes have not settled yet.
type pending struct {
	timer *time.Timer
	gen   uint64
}

func (w *Watcher) watch() {
	defer close(w.done)

	files := make(map[string]*pending)
	reported := make(map[string]bool)
	fired := make(chan settled, 16)
	var gen uint64

	defer func() {
		for _, p := range files {
			p.timer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Capture watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.Accepts(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if p, exists := files[event.Name]; exists {
					p.timer.Stop()
					delete(files, event.Name)
				}
				delete(reported, event.Name)
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				delete(reported, event.Name)
			}
			if reported[event.Name] {
				continue
			}

			w.logger.Debug("Capture change detected", "path", event.Name, "op", event.Op.String())
			gen++
			if p, exists := files[event.Name]; exists {
				p.timer.Stop()
			}
			next := settled{path: event.Name, gen: gen}
			files[event.Name] = &pending{
				gen: gen,
				timer: time.AfterFunc(w.settle, func() {
					select {
					case fired <- next:
					case <-w.ctx.Done():
					}
				}),
			}

		case s := <-fired:
			p, exists := files[s.path]
			if !exists || p.gen != s.gen {
				continue
			}
			delete(files, s.path)
			reported[s.path] = true
			w.notify(s.path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("Capture watcher error", "error", err)
				continue
			}
			w.logger.Warn("Capture watcher dropped events", "dir", w.dir)
		}
	}
}

func (w *Watcher) notify(path string) {
	w.logger.Info("Capture ready", "path", path)

	if w.bus != nil {
		w.bus.Publish(events.CaptureReadyEvent{
			Path:      path,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	w.mu.RLock()
	handlers := make([]func(string), 0, len(w.handlers))
	for _, h := range w.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(path)
	}
}

func normalizeExtensions(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = true
	}
	return out
}
