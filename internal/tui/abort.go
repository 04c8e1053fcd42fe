package tui

import (
	"context"
	"sync"
)

// registry tracks every application that may be running so one process-wide
// abort signal can stop all of them. Apps created after the abort fired are
// stopped immediately instead of entering their event loop.
type registry struct {
	mu      sync.Mutex
	apps    map[*App]struct{}
	aborted bool
}

var running = &registry{apps: make(map[*App]struct{})}

func (r *registry) add(a *App) {
	r.mu.Lock()
	aborted := r.aborted
	if !aborted {
		r.apps[a] = struct{}{}
	}
	r.mu.Unlock()
	if aborted {
		a.Stop()
	}
}

func (r *registry) remove(a *App) {
	r.mu.Lock()
	delete(r.apps, a)
	r.mu.Unlock()
}

func (r *registry) abort() {
	r.mu.Lock()
	r.aborted = true
	stale := make([]*App, 0, len(r.apps))
	for a := range r.apps {
		stale = append(stale, a)
	}
	r.apps = make(map[*App]struct{})
	r.mu.Unlock()

	for _, a := range stale {
		a.Stop()
	}
}

// SetAbortContext wires process-wide cancellation (Ctrl+C, SIGTERM) into
// the TUI layer: once ctx is canceled every running application stops and
// later ones refuse to start. Interactive workflows get uniform abort
// behavior without signal handling of their own.
func SetAbortContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	go func() {
		<-ctx.Done()
		running.abort()
	}()
}
