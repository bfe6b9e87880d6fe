package ops

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

// Runtime is the live configuration handle. Readers call Load on every use so
// a reload takes effect on the next tick without restarting anything.
type Runtime struct {
	mu sync.Mutex // serializes Update
	v  atomic.Value
}

// NewRuntime creates a runtime holding the loaded configuration.
func NewRuntime(loaded Loaded) *Runtime {
	r := &Runtime{}
	r.v.Store(loaded)
	return r
}

// Load returns the current configuration.
func (r *Runtime) Load() Loaded {
	return r.v.Load().(Loaded)
}

// Store replaces the configuration wholesale.
func (r *Runtime) Store(loaded Loaded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Store(loaded)
}

// Update applies a mutation to a copy of the current configuration and
// publishes it. Concurrent updates are serialized.
func (r *Runtime) Update(mutate func(*Loaded)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loaded := r.v.Load().(Loaded)
	mutate(&loaded)
	r.v.Store(loaded)
}

// Watch polls the config file's modification time and reloads it on change.
// A file that fails to load keeps the previous configuration.
func Watch(ctx context.Context, path string, interval time.Duration, runtime *Runtime) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("ops: config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("ops: config reload failed: %v", err)
				continue
			}
			runtime.Store(loaded)
			lastMod = info.ModTime()
			logs.Info("ops: config reloaded from ", path)
		}
	}
}
