package wirekit

import (
	"github.com/junioryono/wirekit/internal/lifetime"
)

// CacheKey identifies one cached object: the plugin type it was requested as
// and the instance that built it, by identity. Instance holds its name.
type CacheKey = lifetime.Key

// Lifecycle decides where objects built for an instance are cached.
//
// FindCache returns the cache holding objects for the given session, or nil
// when every request must build a new object. Built-in lifecycles are the
// Lifetime constants; NewCachedLifecycle and NewBoundedLifecycle cover
// custom storage.
type Lifecycle interface {
	String() string
	FindCache(s *Session) ObjectCache
}

// ObjectCache stores built objects for a Lifecycle.
type ObjectCache interface {
	FindObject(key CacheKey) (any, bool)
	Store(key CacheKey, object any)
}

// AtomicCache is implemented by caches that can find-or-build in one step,
// guaranteeing at most one construction per key across goroutines.
type AtomicCache interface {
	ObjectCache
	FindOrBuild(key CacheKey, build func() (any, error)) (any, error)
}

var (
	_ Lifecycle   = Transient
	_ AtomicCache = (*lifetime.Shared)(nil)
	_ ObjectCache = (*lifetime.Bounded)(nil)
	_ ObjectCache = sessionCache(nil)
)

// sessionCache is the transient cache owned by one Session. Sessions are
// confined to one goroutine, so it needs no locking.
type sessionCache map[CacheKey]any

func (c sessionCache) FindObject(key CacheKey) (any, bool) {
	v, ok := c[key]
	return v, ok
}

func (c sessionCache) Store(key CacheKey, object any) {
	c[key] = object
}

// cachedLifecycle adapts a caller-owned ObjectCache.
type cachedLifecycle struct {
	name  string
	cache ObjectCache
}

// NewCachedLifecycle returns a Lifecycle that keeps objects in cache for as
// long as the cache holds them, independent of sessions and containers.
// The cache must be safe for concurrent use; if it implements AtomicCache,
// construction is serialized per key.
func NewCachedLifecycle(name string, cache ObjectCache) (Lifecycle, error) {
	if cache == nil {
		return nil, ErrLifecycleNil
	}
	return &cachedLifecycle{name: name, cache: cache}, nil
}

func (l *cachedLifecycle) String() string {
	return l.name
}

func (l *cachedLifecycle) FindCache(_ *Session) ObjectCache {
	return l.cache
}

// NewBoundedLifecycle returns a Lifecycle that keeps at most size objects,
// evicting the least recently used one. The cache belongs to the returned
// Lifecycle value, so every instance and container sharing it shares the
// same bound.
func NewBoundedLifecycle(size int) (Lifecycle, error) {
	cache, err := lifetime.NewBounded(size)
	if err != nil {
		return nil, err
	}
	return &cachedLifecycle{name: "Bounded", cache: cache}, nil
}

// lifecycleOf returns the effective lifecycle for inst registered under a
// plugin type whose fallback is typeDefault.
func lifecycleOf(inst *Instance, typeDefault Lifecycle) Lifecycle {
	if inst.lifecycle != nil {
		return inst.lifecycle
	}
	if typeDefault != nil {
		return typeDefault
	}
	return Transient
}

// isSessionScoped reports whether cache is private to s.
func isSessionScoped(cache ObjectCache) bool {
	_, ok := cache.(sessionCache)
	return ok
}
