// Package balancecache holds the orchestrator-owned cache of account
// snapshots fetched from the remote ledger.
//
// The cache is an optimistic read model only: the rule engine receives
// snapshots as explicit parameters and the remote ledger remains the
// source of truth for every settled balance.
package balancecache

import (
	"sync"

	"github.com/streampanel/creditgate/internal/domain"
)

// Cache stores account snapshots keyed by account id.
type Cache struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{accounts: make(map[string]domain.Account)}
}

// Put stores the given snapshots, replacing any previous ones.
func (c *Cache) Put(accounts ...domain.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range accounts {
		c.accounts[a.ID] = a
	}
}

// Snapshot returns the cached snapshot for the given account id.
func (c *Cache) Snapshot(id string) (domain.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	account, ok := c.accounts[id]

	return account, ok
}

// Invalidate drops the snapshots for the given account ids.
func (c *Cache) Invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.accounts, id)
	}
}

// Clear drops every snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accounts = make(map[string]domain.Account)
}
