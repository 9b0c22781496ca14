package certs

import "sync/atomic"

// Cache holds the most recently committed certificate snapshot. Reads are
// lock-free and never observe a partially built set.
type Cache struct {
	current atomic.Pointer[Set]
}

func NewCache() *Cache {
	return &Cache{}
}

// Current returns the committed snapshot, or false when no refresh has
// succeeded yet.
func (c *Cache) Current() (*Set, bool) {
	s := c.current.Load()
	return s, s != nil
}

// Replace publishes s as the new snapshot. A nil set is ignored so the cache
// never returns to the unpopulated state.
func (c *Cache) Replace(s *Set) {
	if s == nil {
		return
	}
	c.current.Store(s)
}
