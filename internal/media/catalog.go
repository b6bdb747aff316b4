package media

import (
	"sync"

	"github.com/desertthunder/voxup/internal/models"
)

// Catalog holds the items discovered this session, addressable by locator key.
//
// Safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]models.Item
}

// NewCatalog creates a catalog seeded with items.
func NewCatalog(items ...models.Item) *Catalog {
	c := &Catalog{items: make(map[string]models.Item)}
	c.Add(items...)
	return c
}

// Add inserts or replaces items. A known key keeps its first non-empty hash.
func (c *Catalog) Add(items ...models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range items {
		if prev, ok := c.items[item.Key]; ok && prev.Hashed() {
			item.Hash = prev.Hash
		}
		c.items[item.Key] = item
	}
}

// Item resolves key to its item.
func (c *Catalog) Item(key string) (models.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return item, ok
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
