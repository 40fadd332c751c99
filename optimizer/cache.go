package optimizer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jsphweid/mmlcore/timeline"
)

type cacheKey struct {
	id            uuid.UUID
	revision      uint64
	start, end    int
	generation    Generation
	trailingTempo bool
	tempos        string
}

// Cache remembers optimizer output per timeline revision. Storing a result
// for a newer revision drops the older revisions of the same timeline.
// Invalidated timelines are never stored again.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]string
	latest  map[uuid.UUID]uint64
	dropped map[uuid.UUID]struct{}
	hits    int
	misses  int
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[cacheKey]string),
		latest:  make(map[uuid.UUID]uint64),
		dropped: make(map[uuid.UUID]struct{}),
	}
}

func keyFor(tl *timeline.Timeline, opts Options) cacheKey {
	k := cacheKey{
		id:            tl.ID(),
		revision:      tl.Revision(),
		start:         opts.Start,
		end:           opts.End,
		generation:    opts.Generation,
		trailingTempo: opts.TrailingTempo,
	}
	if opts.Tempos != nil {
		k.tempos = fmt.Sprint(opts.Tempos)
	}
	return k
}

func (c *Cache) Get(tl *timeline.Timeline, opts Options) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[keyFor(tl, opts)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return s, ok
}

func (c *Cache) Put(tl *timeline.Timeline, opts Options, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := keyFor(tl, opts)
	if _, ok := c.dropped[k.id]; ok {
		return
	}
	if latest, ok := c.latest[k.id]; ok && latest > k.revision {
		return
	}
	if latest, ok := c.latest[k.id]; ok && latest < k.revision {
		for old := range c.entries {
			if old.id == k.id && old.revision < k.revision {
				delete(c.entries, old)
			}
		}
	}
	c.latest[k.id] = k.revision
	c.entries[k] = text
}

// Invalidate drops every entry of one timeline.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.id == id {
			delete(c.entries, k)
		}
	}
	delete(c.latest, id)
	c.dropped[id] = struct{}{}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]string)
	c.latest = make(map[uuid.UUID]uint64)
	c.dropped = make(map[uuid.UUID]struct{})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Optimize returns the cached text for tl's current revision, computing and
// storing it on a miss. tl must not be mutated during the call.
func (c *Cache) Optimize(tl *timeline.Timeline, opts Options) (string, error) {
	if s, ok := c.Get(tl, opts); ok {
		return s, nil
	}
	s, err := Optimize(tl, opts)
	if err != nil {
		return "", err
	}
	c.Put(tl, opts, s)
	return s, nil
}
