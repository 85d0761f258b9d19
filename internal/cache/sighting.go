package cache

import "sync"

// pixel keys the sighting set.
type pixel struct {
	X, Y int
}

// SightingCache dedupes sensor boundary sightings for the current flight.
// A wall pixel is re-detected on every tick the beam crosses it; only the
// first detection is worth recording. Latency here matters since the cache
// is consulted for every sensor on every tick.
type SightingCache struct {
	mu   sync.Mutex
	seen map[pixel]struct{}
}

// NewSightingCache creates an empty sighting cache.
func NewSightingCache() *SightingCache {
	return &SightingCache{
		seen: make(map[pixel]struct{}),
	}
}

// FirstSighting records the pixel and reports whether it was new. The check
// and insert are atomic, so concurrent callers never both see true for the
// same pixel.
func (c *SightingCache) FirstSighting(x, y int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := pixel{X: x, Y: y}
	if _, ok := c.seen[p]; ok {
		return false
	}
	c.seen[p] = struct{}{}
	return true
}

// Seen reports whether the pixel has already been sighted without
// recording it.
func (c *SightingCache) Seen(x, y int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[pixel{X: x, Y: y}]
	return ok
}

// Len returns the number of distinct sighted pixels.
func (c *SightingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Reset clears the cache at flight start.
func (c *SightingCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[pixel]struct{})
}
