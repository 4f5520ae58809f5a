// Package pricing holds the per-symbol best-bid/best-ask/limit-up/
// limit-down cache and the "priced" predicate gating order dispatch.
package pricing

import (
	"sync"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

// Entry is one contract's latest quote plus its session limits.
type Entry struct {
	Bid       float64
	Ask       float64
	LimitUp   float64
	LimitDown float64

	hasLimits bool
	hasLatest bool
}

// Priced reports whether both the latest quote and the session limits
// have been populated (§3: "a contract is priced once all four are
// populated").
func (e Entry) Priced() bool { return e.hasLimits && e.hasLatest }

// Cache is the price cache. Limits are captured once per session and
// retained; bid/ask refresh on every tick.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func New() *Cache {
	return &Cache{entries: map[string]*Entry{}}
}

func (c *Cache) entry(key string) *Entry {
	e, ok := c.entries[key]
	if !ok {
		e = &Entry{}
		c.entries[key] = e
	}
	return e
}

// OnTick applies a tick update: limits are captured only on the first
// tick of the session for a symbol (subsequent ticks leave them
// untouched); bid/ask are overwritten every time.
func (c *Cache) OnTick(tick model.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := tick.ContractID().Key()
	e := c.entry(key)
	if !e.hasLimits {
		e.LimitUp = tick.LimitUp
		e.LimitDown = tick.LimitDown
		e.hasLimits = true
	}
	e.Bid = tick.BidPrice1
	e.Ask = tick.AskPrice1
	e.hasLatest = true
}

// Get returns the current entry for key and whether it is priced.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, e.Priced()
}

// Priced reports whether key is fully priced.
func (c *Cache) Priced(key string) bool {
	_, ok := c.Get(key)
	return ok
}
