// Package utxo implements the two-level unspent-output cache: an
// in-memory overlay backed by a persisted base store, flushed in one
// batch per new tip.
package utxo

import (
	"errors"
	"sync"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

// ErrConflict is returned by AddUtxo when op already holds an unspent
// entry and possibleOverwrite is false.
var ErrConflict = errors.New("utxo: outpoint already has an unspent entry")

// Base is the persisted lower level the cache flushes to.
type Base interface {
	Get(op chain.OutPoint) (*chain.Utxo, error)
	BestBlockID() (chain.BlockID, error)
	// Write atomically applies adds/spends and records the new tip.
	Write(adds map[chain.OutPoint]*chain.Utxo, spends []chain.OutPoint, newTip chain.BlockID) error
}

// Cache is the in-memory overlay. A nil Utxo in an entry represents a
// known-spent output (a tombstone that must still flush so the base
// store forgets it); a missing key means "ask the base store".
type Cache struct {
	mu      sync.RWMutex
	base    Base
	entries map[chain.OutPoint]*chain.UtxoEntry
}

// New wraps base in a fresh, empty overlay.
func New(base Base) *Cache {
	return &Cache{base: base, entries: map[chain.OutPoint]*chain.UtxoEntry{}}
}

// GetUtxo returns the unspent output at op, or nil if it is spent or
// unknown. It checks the overlay first, falling through to the base
// store and caching the result (un-dirty, un-fresh) on a miss.
func (c *Cache) GetUtxo(op chain.OutPoint) (*chain.Utxo, error) {
	c.mu.RLock()
	if e, ok := c.entries[op]; ok {
		c.mu.RUnlock()
		if e.IsSpent() {
			return nil, nil
		}
		u := *e.Utxo
		return &u, nil
	}
	c.mu.RUnlock()

	u, err := c.base.Get(op)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.entries[op]; !ok {
		c.entries[op] = &chain.UtxoEntry{Utxo: u}
	}
	c.mu.Unlock()

	if u == nil {
		return nil, nil
	}
	out := *u
	return &out, nil
}

// AddUtxo records a newly created output. fresh marks it as not existing
// in the base store yet, so SpendUtxo can elide it entirely instead of
// writing a tombstone that would outlive the output's entire lifetime.
// If op already holds an unspent entry (in the overlay or, failing that,
// the base store), AddUtxo returns ErrConflict unless possibleOverwrite
// is true.
func (c *Cache) AddUtxo(op chain.OutPoint, u *chain.Utxo, fresh, possibleOverwrite bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !possibleOverwrite {
		if e, ok := c.entries[op]; ok {
			if !e.IsSpent() {
				return ErrConflict
			}
		} else if existing, err := c.base.Get(op); err != nil {
			return err
		} else if existing != nil {
			return ErrConflict
		}
	}

	c.entries[op] = &chain.UtxoEntry{Utxo: u, Dirty: true, Fresh: fresh}
	return nil
}

// SpendUtxo marks op as spent. If the entry is Fresh (never flushed to
// the base store), the entry is dropped outright rather than kept as a
// tombstone.
func (c *Cache) SpendUtxo(op chain.OutPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[op]
	if ok && e.Fresh {
		delete(c.entries, op)
		return
	}
	c.entries[op] = &chain.UtxoEntry{Utxo: nil, Dirty: true}
}

// FlushToBase writes every dirty entry to the base store in one batch and
// clears the overlay, advancing the base's recorded tip to newTip.
// Tombstones for Fresh-and-spent entries are never written (they were
// already dropped by SpendUtxo); everything else dirty is either an add
// (non-nil Utxo) or a spend of a previously-flushed output (nil Utxo,
// written as a delete).
func (c *Cache) FlushToBase(newTip chain.BlockID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	adds := map[chain.OutPoint]*chain.Utxo{}
	var spends []chain.OutPoint
	for op, e := range c.entries {
		if !e.Dirty {
			continue
		}
		if e.IsSpent() {
			spends = append(spends, op)
		} else {
			adds[op] = e.Utxo
		}
	}

	if err := c.base.Write(adds, spends, newTip); err != nil {
		return err
	}
	c.entries = map[chain.OutPoint]*chain.UtxoEntry{}
	return nil
}

// Len returns the number of entries currently held in the overlay
// (dirty or not), for tests and metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
