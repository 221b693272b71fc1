package ddbschema

import (
	"reflect"
	"runtime"
	"sync"
	"weak"

	"github.com/rs/zerolog"
)

// Cache memoizes derived schemas by record type. Entries are held weakly and
// dropped once no schema or converter refers to them anymore.
//
// Lookups only take a read lock. Derivations are serialised so a type is derived
// at most once, and every caller receives the same schema.
type Cache struct {
	registry   *Registry
	logger     zerolog.Logger
	collisions CollisionPolicy

	mu      sync.RWMutex
	entries map[reflect.Type]weak.Pointer[recordSchema]

	deriveMu sync.Mutex
}

type CacheOption func(*Cache)

func WithRegistry(r *Registry) CacheOption {
	return func(c *Cache) {
		c.registry = r
	}
}

func WithLogger(l zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = l
	}
}

func WithCollisionPolicy(p CollisionPolicy) CacheOption {
	return func(c *Cache) {
		c.collisions = p
	}
}

// NewCache returns an empty cache. Without WithRegistry it uses a fresh registry
// holding only the built-in converters.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		logger:  zerolog.Nop(),
		entries: make(map[reflect.Type]weak.Pointer[recordSchema]),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry()
	}
	return c
}

var defaultCache = sync.OnceValue(func() *Cache {
	return NewCache(WithRegistry(DefaultRegistry()))
})

// DefaultCache returns the process-wide cache used when New is called without WithCache.
func DefaultCache() *Cache {
	return defaultCache()
}

// Len returns the number of live cached schemas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, wp := range c.entries {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}

func (c *Cache) lookup(t reflect.Type) *recordSchema {
	c.mu.RLock()
	wp, ok := c.entries[t]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

func (c *Cache) schemaFor(t reflect.Type) (*recordSchema, error) {
	if rs := c.lookup(t); rs != nil {
		return rs, nil
	}
	c.deriveMu.Lock()
	defer c.deriveMu.Unlock()
	if rs := c.lookup(t); rs != nil {
		return rs, nil
	}

	c.logger.Debug().Stringer("type", t).Msg("deriving record schema")
	s := newSession(c)
	ref, err := s.ref(t)
	if err != nil {
		c.logger.Debug().Stringer("type", t).Err(err).Msg("record schema derivation failed")
		return nil, err
	}
	c.mu.Lock()
	for _, rs := range s.derived {
		c.publish(rs)
	}
	c.mu.Unlock()
	rs := ref.get()
	c.logger.Debug().
		Stringer("type", t).
		Int("fields", len(rs.fields)).
		Int("derived", len(s.derived)).
		Msg("derived record schema")
	return rs, nil
}

type cacheEntry struct {
	typ reflect.Type
	wp  weak.Pointer[recordSchema]
}

// publish must be called with c.mu held.
func (c *Cache) publish(rs *recordSchema) {
	wp := weak.Make(rs)
	c.entries[rs.typ] = wp
	runtime.AddCleanup(rs, c.evict, cacheEntry{typ: rs.typ, wp: wp})
}

func (c *Cache) evict(e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[e.typ]; ok && cur == e.wp {
		delete(c.entries, e.typ)
	}
}
