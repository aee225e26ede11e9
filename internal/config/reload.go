package config

import (
	"fmt"
	"log/slog"
	"sync"
)

// ReloadResult describes what changed during a config reload.
type ReloadResult struct {
	Changed []string // fields that differ from the running config
	Applied []string // applied in place
	Skipped []string // require a restart
}

// mu protects the Config during concurrent reload operations.
var mu sync.RWMutex

// RLock acquires a read lock on the config.
func RLock() { mu.RLock() }

// RUnlock releases a read lock on the config.
func RUnlock() { mu.RUnlock() }

// Reload re-reads the config file, diffs against the running config, and
// applies hot-reloadable fields in place. Anything that would change the
// store location, the listen socket, or the broker session is reported as
// skipped; those need a restart.
func (c *Config) Reload(path string) (*ReloadResult, error) {
	next, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}

	result := &ReloadResult{}

	mu.Lock()
	defer mu.Unlock()

	apply := func(field string, differs bool, set func()) {
		if !differs {
			return
		}
		result.Changed = append(result.Changed, field)
		set()
		result.Applied = append(result.Applied, field)
	}
	skip := func(field string, differs bool) {
		if !differs {
			return
		}
		result.Changed = append(result.Changed, field)
		result.Skipped = append(result.Skipped, field)
	}

	apply("server.logLevel", c.Server.LogLevel != next.Server.LogLevel, func() {
		c.Server.LogLevel = next.Server.LogLevel
	})
	apply("queue.maxPending", c.Queue.MaxPending != next.Queue.MaxPending, func() {
		c.Queue.MaxPending = next.Queue.MaxPending
	})
	apply("queue.maxAttempts", c.Queue.MaxAttempts != next.Queue.MaxAttempts, func() {
		c.Queue.MaxAttempts = next.Queue.MaxAttempts
	})

	skip("server.dataDir", c.Server.DataDir != next.Server.DataDir)
	skip("server.listenAddr", c.Server.ListenAddr != next.Server.ListenAddr)
	skip("store", c.Store != next.Store)
	skip("mqtt", c.MQTT != next.MQTT)
	skip("sync", c.Sync != next.Sync)
	skip("dispatch", c.Dispatch != next.Dispatch)

	return result, nil
}

// LogResult logs the reload outcome.
func (r *ReloadResult) LogResult(logger *slog.Logger) {
	if len(r.Changed) == 0 {
		logger.Info("config reload: no changes detected")
		return
	}

	logger.Info("config reload complete",
		"changed", len(r.Changed),
		"applied", len(r.Applied),
		"skipped", len(r.Skipped),
	)

	for _, field := range r.Applied {
		logger.Info("config field hot-reloaded", "field", field)
	}
	for _, field := range r.Skipped {
		logger.Warn("config field requires restart", "field", field)
	}
}
