// Package tiles decides which image a viewer shows for its current slice:
// the full-resolution tile when it has one for that index, and the
// stretched thumbnail otherwise.
package tiles

import "volslicer/internal/models"

// Entry is the single retained full-resolution tile. Index is -1 when the
// cache is empty.
type Entry struct {
	Index int                 `json:"index"`
	Image models.EncodedImage `json:"slice"`
}

// Empty is the initial cache entry.
var Empty = Entry{Index: -1}

// Ticket identifies one outstanding tile request.
type Ticket struct {
	Index int
	gen   uint64
}

// Cache tracks the retained tile and the requests in flight. Only the most
// recent response is kept. Responses for an index the viewer has since left
// are still accepted; a later commit corrects the display. Responses issued
// before Invalidate are dropped since they were rendered with other
// contrast limits.
type Cache struct {
	entry    Entry
	inflight map[int]uint64 // index -> generation of its request
	gen      uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entry: Empty, inflight: make(map[int]uint64)}
}

// Entry returns the retained tile.
func (c *Cache) Entry() Entry { return c.entry }

// InFlight reports whether a request for index is outstanding.
func (c *Cache) InFlight(index int) bool {
	_, ok := c.inflight[index]
	return ok
}

// NeedsRequest reports whether a request for index would be useful: it is
// neither retained nor already on its way.
func (c *Cache) NeedsRequest(index int) bool {
	return index >= 0 && index != c.entry.Index && !c.InFlight(index)
}

// Begin records a request for index.
func (c *Cache) Begin(index int) Ticket {
	c.inflight[index] = c.gen
	return Ticket{Index: index, gen: c.gen}
}

func (c *Cache) finish(t Ticket) {
	if gen, ok := c.inflight[t.Index]; ok && gen == t.gen {
		delete(c.inflight, t.Index)
	}
}

// Accept stores a response and reports whether it was kept.
func (c *Cache) Accept(t Ticket, img models.EncodedImage) bool {
	if t.gen != c.gen {
		return false
	}
	c.finish(t)
	c.entry = Entry{Index: t.Index, Image: img}
	return true
}

// MarkFailed clears the in-flight marker so a later commit retries.
func (c *Cache) MarkFailed(t Ticket) {
	if t.gen == c.gen {
		c.finish(t)
	}
}

// Invalidate drops the retained tile and orphans any outstanding requests.
func (c *Cache) Invalidate() {
	c.gen++
	c.entry = Empty
	c.inflight = make(map[int]uint64)
}
