package config

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file's modification time and fires a callback when
// it changes. Polling keeps it portable; edge devices often run filesystems
// where inotify is unreliable.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	onChange func()
	stop     chan struct{}
	once     sync.Once
	lastMod  time.Time
}

// NewWatcher creates a config file watcher that polls every interval.
func NewWatcher(path string, interval time.Duration, logger *slog.Logger, onChange func()) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		interval: interval,
		logger:   logger.With("component", "config"),
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// Start begins polling in a goroutine.
func (w *Watcher) Start() {
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}

	go w.poll()
	w.logger.Info("config watcher started", "path", w.path, "interval", w.interval)
}

// Stop halts polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				w.logger.Warn("config watcher: cannot stat file", "path", w.path, "error", err)
				continue
			}
			if mod := info.ModTime(); mod.After(w.lastMod) {
				w.lastMod = mod
				w.logger.Info("config file changed", "path", w.path)
				if w.onChange != nil {
					w.onChange()
				}
			}
		}
	}
}
