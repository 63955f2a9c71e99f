package draft

import "sync"

// DefaultProgramCacheSize bounds the cache a RuleSet builds for itself.
const DefaultProgramCacheSize = 256

// MemoryProgramCache is a ProgramCache backed by a mutex-guarded map. With a
// positive capacity, inserting into a full cache evicts an arbitrary entry,
// so a stream of one-off expressions cannot grow the map without bound.
type MemoryProgramCache struct {
	mu       sync.RWMutex
	capacity int
	programs map[string]any
}

// NewProgramCache constructs an in-memory program cache holding at most
// capacity entries. A non-positive capacity means unbounded.
func NewProgramCache(capacity int) *MemoryProgramCache {
	return &MemoryProgramCache{capacity: capacity}
}

// Get returns the program cached under key.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

// Set stores value under key.
func (c *MemoryProgramCache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = make(map[string]any)
	}
	if _, exists := c.programs[key]; !exists && c.capacity > 0 && len(c.programs) >= c.capacity {
		for evict := range c.programs {
			delete(c.programs, evict)
			break
		}
	}
	c.programs[key] = value
}

// Len reports how many programs the cache holds.
func (c *MemoryProgramCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Reset drops every cached program.
func (c *MemoryProgramCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs = nil
}
