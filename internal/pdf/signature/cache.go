package signature

import (
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// DefaultTTL is how long a page image inventory stays valid
const DefaultTTL = 15 * time.Second

// Cache holds page image inventories keyed by document id and page. It is
// safe for concurrent use. A Cache with a non-positive TTL stores nothing.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*fields.SignatureImagesList
}

// NewCache creates a cache whose entries expire after ttl
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*fields.SignatureImagesList),
	}
}

// TTL returns the configured lifetime of an entry
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the unexpired inventory of a page
func (c *Cache) Get(documentID string, page int) (*fields.SignatureImagesInPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.entries[documentID]
	if !ok {
		return nil, false
	}
	entry, ok := list.Pages[page]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.Expires) {
		delete(list.Pages, page)
		if len(list.Pages) == 0 {
			delete(c.entries, documentID)
		}
		return nil, false
	}
	return entry, true
}

// Put stores the inventory of a page and stamps its expiry
func (c *Cache) Put(documentID string, entry *fields.SignatureImagesInPage) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.entries[documentID]
	if !ok {
		list = &fields.SignatureImagesList{
			DocumentID: documentID,
			Pages:      make(map[int]*fields.SignatureImagesInPage),
		}
		c.entries[documentID] = list
	}
	entry.Expires = c.now().Add(c.ttl)
	list.Pages[entry.Page] = entry
}

// Invalidate drops every page of a document, e.g. after it was rewritten
func (c *Cache) Invalidate(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, documentID)
}

// Evict removes every expired page and returns how many were dropped
func (c *Cache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for id, list := range c.entries {
		for page, entry := range list.Pages {
			if !now.Before(entry.Expires) {
				delete(list.Pages, page)
				evicted++
			}
		}
		if len(list.Pages) == 0 {
			delete(c.entries, id)
		}
	}
	return evicted
}
