package documents

import (
	"sync"

	"github.com/PolarWolf314/cipherdesk/internal/secrets"
)

// keyCache holds unwrapped document keys by resource ID for the lifetime of
// an unlocked session. Entries are owned by the cache and wiped when they are
// replaced or dropped; get hands out copies.
type keyCache struct {
	mu   sync.Mutex
	keys map[string]*secrets.DocumentKey
}

func newKeyCache() *keyCache {
	return &keyCache{keys: make(map[string]*secrets.DocumentKey)}
}

func (c *keyCache) get(resourceID string) (secrets.DocumentKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keys[resourceID]
	if !ok {
		return secrets.DocumentKey{}, false
	}
	return *key, true
}

func (c *keyCache) put(resourceID string, key secrets.DocumentKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.keys[resourceID]; ok {
		old.Zero()
	}
	c.keys[resourceID] = &key
}

func (c *keyCache) forget(resourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.keys[resourceID]; ok {
		key.Zero()
		delete(c.keys, resourceID)
	}
}

func (c *keyCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, key := range c.keys {
		key.Zero()
		delete(c.keys, id)
	}
}

func (c *keyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
