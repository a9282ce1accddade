package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
)

// Watcher reloads a config file when it changes and hands the new Config to
// a callback.
type Watcher struct {
	mu sync.Mutex

	path   string
	opts   []LoadOption
	logger *log.Logger

	fsWatcher *fsnotify.Watcher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Debouncing: collapse bursts of events into one reload
	debounceDelay time.Duration
	eventTimer    *time.Timer

	onReload func(cfg *Config)
	onError  func(err error)
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the delay between the last file event and the
// reload. Default is 100ms.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnReload sets the callback that receives each reloaded Config.
func WithOnReload(fn func(cfg *Config)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithOnError sets a callback for watch and reload errors.
func WithOnError(fn func(err error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithLoadOptions sets the options every reload passes to Load, in addition
// to WithFile(path).
func WithLoadOptions(opts ...LoadOption) WatcherOption {
	return func(w *Watcher) {
		w.opts = opts
	}
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, logger *log.Logger, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigWatch, "creating file watcher").Err()
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		path:          filepath.Clean(path),
		logger:        logger,
		fsWatcher:     fsw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		debounceDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The directory holding the file is watched rather
// than the file itself, so replace-by-rename saves are seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, errors.ErrCodeConfigWatch, "watching %s", w.path).Err()
	}
	w.logger.Driver().Info("config watcher started", "path", w.path)

	go w.processEvents()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Driver().Info("config watcher stopped")
	return w.fsWatcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			w.mu.Lock()
			if w.eventTimer != nil {
				w.eventTimer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Driver().Error("config watcher error", err)
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.eventTimer != nil {
		w.eventTimer.Stop()
	}
	w.eventTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	opts := append([]LoadOption{}, w.opts...)
	opts = append(opts, WithFile(w.path))

	cfg, err := Load(opts...)
	if err != nil {
		w.logger.Driver().Error("config reload failed", err, "path", w.path)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.logger.Driver().Info("config reloaded",
		"path", w.path,
		"log_level", cfg.Log.Level,
	)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
