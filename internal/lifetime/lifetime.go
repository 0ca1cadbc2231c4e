package lifetime

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Key identifies one cached object: the plugin type it was requested as and
// the instance that built it. Owner carries the instance identity, so two
// instances sharing a name never share an object; Instance is its name.
type Key struct {
	PluginType reflect.Type
	Instance   string
	Owner      any
}

// String returns a string representation of the key.
func (k Key) String() string {
	return fmt.Sprintf("%v[%s]", k.PluginType, k.Instance)
}

func shardKey(k Key) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.String()))
	return h.Sum32()
}

// Shared is a container-wide object cache safe for concurrent use. Each key
// owns an entry with its own lock, so first-time construction of one key
// never blocks lookups or construction of another.
type Shared struct {
	entries cmap.ConcurrentMap[Key, *entry]

	// creation order, for closing in reverse
	orderMu sync.Mutex
	order   []*entry
}

// entry holds one cached object.
type entry struct {
	key   Key
	mu    sync.RWMutex
	value any
	done  bool
}

// NewShared creates an empty shared cache.
func NewShared() *Shared {
	return &Shared{
		entries: cmap.NewWithCustomShardingFunction[Key, *entry](shardKey),
	}
}

func (s *Shared) entryFor(key Key) *entry {
	if e, ok := s.entries.Get(key); ok {
		return e
	}

	s.entries.SetIfAbsent(key, &entry{key: key})
	e, _ := s.entries.Get(key)
	return e
}

// FindObject returns the cached object for key.
func (s *Shared) FindObject(key Key) (any, bool) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.done {
		return nil, false
	}
	return e.value, true
}

// Store caches object under key, replacing any previous value.
func (s *Shared) Store(key Key, object any) {
	e := s.entryFor(key)

	e.mu.Lock()
	first := !e.done
	e.value = object
	e.done = true
	e.mu.Unlock()

	if first {
		s.track(e)
	}
}

// FindOrBuild returns the cached object for key, calling build at most once
// across concurrent callers when it is absent. Callers racing on the same
// key block until the first build finishes and receive its result. A failed
// build caches nothing.
func (s *Shared) FindOrBuild(key Key, build func() (any, error)) (any, error) {
	e := s.entryFor(key)

	// Fast path: already built
	e.mu.RLock()
	if e.done {
		value := e.value
		e.mu.RUnlock()
		return value, nil
	}
	e.mu.RUnlock()

	// Slow path: build under the entry lock
	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock
	if e.done {
		return e.value, nil
	}

	value, err := build()
	if err != nil {
		return nil, err
	}

	e.value = value
	e.done = true
	s.track(e)

	return value, nil
}

func (s *Shared) track(e *entry) {
	s.orderMu.Lock()
	s.order = append(s.order, e)
	s.orderMu.Unlock()
}

// Evict drops the cached object for key and reports whether one was cached.
func (s *Shared) Evict(key Key) bool {
	_, ok := s.entries.Pop(key)
	return ok
}

// EvictType drops every cached object requested as pluginType and returns
// how many were dropped.
func (s *Shared) EvictType(pluginType reflect.Type) int {
	count := 0
	for _, key := range s.entries.Keys() {
		if key.PluginType == pluginType && s.Evict(key) {
			count++
		}
	}
	return count
}

// Len returns the number of built objects.
func (s *Shared) Len() int {
	count := 0
	s.entries.IterCb(func(_ Key, e *entry) {
		e.mu.RLock()
		if e.done {
			count++
		}
		e.mu.RUnlock()
	})
	return count
}

// Close empties the cache and closes every cached io.Closer in reverse
// creation order. Objects evicted earlier are closed too; eviction only
// forgets them for lookup.
func (s *Shared) Close() error {
	s.orderMu.Lock()
	order := s.order
	s.order = nil
	s.orderMu.Unlock()

	s.entries.Clear()

	var errs []error
	seen := make(map[any]bool)

	for i := len(order) - 1; i >= 0; i-- {
		e := order[i]
		e.mu.RLock()
		value := e.value
		e.mu.RUnlock()

		closer, ok := value.(io.Closer)
		if !ok || !isHashable(value) || seen[value] {
			continue
		}
		seen[value] = true

		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", e.key, err))
		}
	}

	return errors.Join(errs...)
}

func isHashable(v any) bool {
	return v != nil && reflect.TypeOf(v).Comparable()
}

// Bounded is a size-limited object cache evicting the least recently used
// object. It is safe for concurrent use but does not serialize construction:
// two callers missing the same key at once may both build, last store wins.
type Bounded struct {
	cache *lru.Cache[Key, any]
}

// NewBounded creates a cache holding at most size objects.
func NewBounded(size int) (*Bounded, error) {
	cache, err := lru.New[Key, any](size)
	if err != nil {
		return nil, err
	}
	return &Bounded{cache: cache}, nil
}

// FindObject returns the cached object for key.
func (b *Bounded) FindObject(key Key) (any, bool) {
	return b.cache.Get(key)
}

// Store caches object under key, evicting the oldest object when full.
func (b *Bounded) Store(key Key, object any) {
	b.cache.Add(key, object)
}
