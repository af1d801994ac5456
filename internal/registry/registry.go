// Package registry maps filesystem paths to indexed descriptors, single-
// flighting concurrent indexing attempts and idle-evicting descriptors that
// go untouched (spec §4.9).
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/hlsvod/hlsvod/internal/cache"
	"github.com/hlsvod/hlsvod/internal/index"
)

// IndexFunc performs the actual indexing work (internal/index.Index,
// injected so this package stays independent of the media library).
type IndexFunc func(ctx context.Context, path string) (*index.Descriptor, error)

type cell struct {
	ready chan struct{}
	desc  *index.Descriptor
	err   error
}

// Registry holds Pending/Ready state keyed by source path (spec §3:
// "Registry state: mapping path -> Pending | Ready(Descriptor)").
type Registry struct {
	mu    sync.Mutex
	byPath map[string]*cell

	indexFn IndexFunc
	cache   *cache.Cache
	idle    time.Duration

	onEvict func(sourcePath string)
}

// New builds a Registry. idle is the default eviction window (spec default
// 300s); c may be nil if no cache invalidation is needed (e.g. in tests).
func New(indexFn IndexFunc, c *cache.Cache, idle time.Duration) *Registry {
	return &Registry{
		byPath:  make(map[string]*cell),
		indexFn: indexFn,
		cache:   c,
		idle:    idle,
	}
}

// GetOrIndex implements get_or_index(path) -> Descriptor | IndexError. On a
// miss it inserts a Pending cell atomically; the requester that inserted it
// runs the indexer, other concurrent requesters await the same cell.
func (r *Registry) GetOrIndex(ctx context.Context, path string) (*index.Descriptor, error) {
	r.mu.Lock()
	c, existed := r.byPath[path]
	if !existed {
		c = &cell{ready: make(chan struct{})}
		r.byPath[path] = c
	}
	r.mu.Unlock()

	if existed {
		select {
		case <-c.ready:
			if c.err != nil {
				return nil, c.err
			}
			c.desc.Touch()
			return c.desc, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	desc, err := r.indexFn(ctx, path)
	c.desc, c.err = desc, err
	close(c.ready)

	if err != nil {
		r.mu.Lock()
		delete(r.byPath, path) // a failed index must not poison future requests
		r.mu.Unlock()
		return nil, err
	}
	return desc, nil
}

// Touch updates a descriptor's idle clock, given its source path — callers
// already hold the descriptor, so this is mostly for the reaper's own
// bookkeeping symmetry.
func (r *Registry) Touch(path string) {
	r.mu.Lock()
	c, ok := r.byPath[path]
	r.mu.Unlock()
	if ok && c.desc != nil {
		c.desc.Touch()
	}
}

// OnEvict registers a hook invoked with the source path of every descriptor
// RemoveByID evicts, after cache invalidation — used to release per-source
// resources (e.g. transcode.SessionPool sessions) exactly when the
// descriptor that owns them is dropped, never before and never leaked.
func (r *Registry) OnEvict(fn func(sourcePath string)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// RemoveByID evicts a descriptor using its own source_path as the direct
// index key — never a linear scan (spec §4.9 contract).
func (r *Registry) RemoveByID(sourcePath string) {
	r.mu.Lock()
	c, ok := r.byPath[sourcePath]
	if ok {
		delete(r.byPath, sourcePath)
	}
	onEvict := r.onEvict
	r.mu.Unlock()

	if ok && c.desc != nil && r.cache != nil {
		r.cache.InvalidateDescriptor(c.desc.ID)
	}
	if ok && onEvict != nil {
		onEvict(sourcePath)
	}
}

// RunReaper blocks, evicting descriptors idle beyond the configured idle
// window on a fixed interval, until ctx is canceled. Run it in its own
// goroutine from the server's startup sequence.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Registry) reapOnce() {
	r.mu.Lock()
	var stale []string
	for path, c := range r.byPath {
		select {
		case <-c.ready:
			if c.desc != nil && c.desc.IdleFor() > r.idle {
				stale = append(stale, path)
			}
		default:
			// still indexing, never reap a Pending cell
		}
	}
	r.mu.Unlock()

	for _, path := range stale {
		r.RemoveByID(path)
	}
}

// Len reports the number of tracked paths, for the hls_active_streams
// gauge (spec §6 metrics).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPath)
}
