// Package catalog looks up contract metadata (tick size, exchange) and
// extracts symbol prefixes. Contract lookup is a one-shot, externally
// backed operation (the real metadata lives at the gateway); the
// catalog's job is to cache it and let the rest of the engine ask "does
// this contract still exist" cheaply.
package catalog

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

// Fetcher fetches contract metadata from the external source (a
// gateway's contract table). It returns ok=false when the contract is
// unknown to the gateway.
type Fetcher func(symbol, exchange string) (model.ContractMeta, bool)

// Catalog caches contract metadata with a TTL. Once an entry expires,
// the next lookup asks the fetcher again; a contract the gateway no
// longer lists then stops resolving, which is what §3 means by a
// position entry's metadata "no longer present".
type Catalog struct {
	fetch Fetcher
	cache *gocache.Cache
}

// New constructs a Catalog. ttl controls how long a looked-up contract
// is considered valid before the catalog re-asks the fetcher;
// cleanupInterval controls how often expired entries are purged.
func New(fetch Fetcher, ttl, cleanupInterval time.Duration) *Catalog {
	return &Catalog{fetch: fetch, cache: gocache.New(ttl, cleanupInterval)}
}

// Lookup returns the contract metadata for (symbol, exchange), caching
// the result. ok is false if the underlying gateway does not know the
// contract (or the cached entry has expired and a re-fetch also misses).
func (c *Catalog) Lookup(symbol, exchange string) (model.ContractMeta, bool) {
	key := model.ContractID{Symbol: symbol, Exchange: exchange}.Key()
	if cached, found := c.cache.Get(key); found {
		return cached.(model.ContractMeta), true
	}
	meta, ok := c.fetch(symbol, exchange)
	if !ok {
		return model.ContractMeta{}, false
	}
	c.cache.SetDefault(key, meta)
	return meta, true
}

// Exists reports whether the contract currently resolves in the
// catalog, used to decide whether an empty position entry may be
// cleared at stop because its contract has expired (§3).
func (c *Catalog) Exists(symbol, exchange string) bool {
	_, ok := c.Lookup(symbol, exchange)
	return ok
}

// StripDigits returns the alphabetic product prefix of a symbol.
func StripDigits(symbol string) string { return model.ProductPrefix(symbol) }
