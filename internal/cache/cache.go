// Package cache implements the segment cache: an LRU of fully rendered
// artifact bytes keyed by (descriptor id, kind, track, sequence),
// memory-bounded, single-flighted (spec §4.8).
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Kind is the artifact kind component of a CacheKey.
type Kind string

const (
	KindVideoInit   Kind = "video_init"
	KindAudioInit   Kind = "audio_init"
	KindVideoSeg    Kind = "video_seg"
	KindAudioSeg    Kind = "audio_seg"
	KindSubtitleSeg Kind = "subtitle_seg"
	KindPlaylist    Kind = "playlist"
)

// Key identifies one cacheable artifact.
type Key struct {
	DescriptorID string
	Kind         Kind
	Track        int
	Sequence     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", k.DescriptorID, k.Kind, k.Track, k.Sequence)
}

// Entry is one cached artifact plus its bookkeeping fields.
type Entry struct {
	Bytes        []byte
	Size         int64
	InsertedAt   time.Time
	lastAccessed atomic.Int64
}

// Touch updates the entry's last-accessed time.
func (e *Entry) Touch() { e.lastAccessed.Store(time.Now().UnixNano()) }

// LastAccessed returns the entry's last-touch time.
func (e *Entry) LastAccessed() time.Time { return time.Unix(0, e.lastAccessed.Load()) }

// BuildFunc produces the bytes for a cache miss.
type BuildFunc func() ([]byte, error)

// Cache is a byte- and entry-count-bounded LRU with single-flighted builds
// and TTL-based eviction.
type Cache struct {
	mu          sync.Mutex
	lru         *lru.Cache[string, *Entry]
	maxBytes    int64
	curBytes    atomic.Int64
	ttl         time.Duration
	group       singleflight.Group

	hits, misses atomic.Int64
}

// New builds a Cache bounded by maxEntries and maxBytes, evicting entries
// whose age since insertion exceeds ttl (checked lazily on lookup, mirroring
// the teacher's segment-buffer sliding-window eviction rather than a second
// ticker).
func New(maxEntries int, maxBytes int64, ttl time.Duration) (*Cache, error) {
	c := &Cache{maxBytes: maxBytes, ttl: ttl}

	onEvict := func(_ string, e *Entry) {
		c.curBytes.Add(-e.Size)
	}
	l, err := lru.NewWithEvict[string, *Entry](maxEntries, onEvict)
	if err != nil {
		return nil, fmt.Errorf("cache: create LRU: %w", err)
	}
	c.lru = l
	return c, nil
}

// GetOrBuild returns the cached bytes for key, building them via build on a
// miss. Concurrent calls for the same key coalesce into exactly one build
// invocation (spec testable property: "Single-flight: for any key,
// concurrent get_or_build calls result in exactly one build_fn
// invocation"). Build failures are never cached (spec §7 policy).
func (c *Cache) GetOrBuild(key Key, build BuildFunc) ([]byte, error) {
	k := key.String()

	if e, ok := c.lookupFresh(k); ok {
		c.hits.Add(1)
		e.Touch()
		return e.Bytes, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		if e, ok := c.lookupFresh(k); ok {
			return e.Bytes, nil
		}
		bytes, err := build()
		if err != nil {
			return nil, err
		}
		c.insert(k, bytes)
		return bytes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) lookupFresh(k string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(k)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.InsertedAt) > c.ttl {
		c.lru.Remove(k)
		return nil, false
	}
	return e, true
}

func (c *Cache) insert(k string, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &Entry{Bytes: bytes, Size: int64(len(bytes)), InsertedAt: time.Now()}
	e.Touch()
	c.curBytes.Add(e.Size)
	c.lru.Add(k, e)

	for c.maxBytes > 0 && c.curBytes.Load() > c.maxBytes && c.lru.Len() > 1 {
		_, _, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
	}
}

// InvalidateDescriptor removes every entry for a given descriptor id — used
// when the stream registry evicts a descriptor (spec: "dropping invalidates
// every cache entry keyed by its id").
func (c *Cache) InvalidateDescriptor(descriptorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		if len(k) >= len(descriptorID) && k[:len(descriptorID)] == descriptorID {
			c.lru.Remove(k)
		}
	}
}

// Stats reports hit/miss counters for the hls_cache_hits_total /
// hls_cache_misses_total / hls_cache_hit_ratio metrics (spec §6).
func (c *Cache) Stats() (hits, misses int64, ratio float64) {
	hits = c.hits.Load()
	misses = c.misses.Load()
	total := hits + misses
	if total == 0 {
		return hits, misses, 0
	}
	return hits, misses, float64(hits) / float64(total)
}

// BytesInUse returns the cache's current tracked byte usage (spec: "the sum
// of cache.entries[*].size is the source of truth for memory usage").
func (c *Cache) BytesInUse() int64 { return c.curBytes.Load() }
