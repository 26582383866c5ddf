package embed

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// Handle is a lazily built, process-wide shared model instance. Concurrent
// first calls to Get share a single construction. A failed construction is
// not remembered, so a later call tries again.
type Handle[T any] struct {
	name  string
	build func(ctx context.Context) (T, error)

	group singleflight.Group

	mu    sync.RWMutex
	val   T
	ready bool
}

// NewHandle returns a handle that builds its value with build on first use.
func NewHandle[T any](name string, build func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{name: name, build: build}
}

// Get returns the shared instance, building it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	if v, ok := h.loaded(); ok {
		return v, nil
	}
	v, err, _ := h.group.Do(h.name, func() (any, error) {
		if v, ok := h.loaded(); ok {
			return v, nil
		}
		// Other callers share this build, so one caller's cancellation
		// must not fail it.
		built, err := h.build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.val, h.ready = built, true
		h.mu.Unlock()
		return built, nil
	})
	if err != nil {
		var zero T
		return zero, eris.Wrapf(err, "embed: init %s", h.name)
	}
	return v.(T), nil
}

// Ready reports whether the instance has been built.
func (h *Handle[T]) Ready() bool {
	_, ok := h.loaded()
	return ok
}

func (h *Handle[T]) loaded() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.val, h.ready
}
