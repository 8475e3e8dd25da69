package credstore

import (
	"strings"
	"sync"
)

// KeyCache holds viewing keys in memory, scoped to a wallet address.
// Keys survive disconnect so a reconnect of the same address does not
// force the user through key creation again. Token symbols are folded
// to lower case on both write and read.
type KeyCache struct {
	mu   sync.RWMutex
	keys map[string]string // address|symbol -> viewing key
}

// NewKeyCache creates an empty viewing key cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{
		keys: make(map[string]string),
	}
}

func cacheKey(address, symbol string) string {
	return address + "|" + strings.ToLower(symbol)
}

// Put stores a viewing key for the given address and token symbol.
// Storing the same key twice is a no-op; storing a different key
// overwrites the previous one.
func (c *KeyCache) Put(address, symbol, key string) {
	if address == "" || symbol == "" || key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[cacheKey(address, symbol)] = key
}

// Get returns the cached viewing key for the address and symbol,
// or false when none is cached.
func (c *KeyCache) Get(address, symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.keys[cacheKey(address, symbol)]
	return key, ok
}

// Drop removes a single cached key. Used when a cached key turns out
// to be stale against the contract.
func (c *KeyCache) Drop(address, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, cacheKey(address, symbol))
}

// Len reports the number of cached keys.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
