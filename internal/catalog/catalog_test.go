package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

func TestCatalog_Lookup_CachesFetchResult(t *testing.T) {
	calls := 0
	c := New(func(symbol, exchange string) (model.ContractMeta, bool) {
		calls++
		return model.ContractMeta{PriceTick: 0.5}, true
	}, time.Hour, time.Hour)

	meta, ok := c.Lookup("rb2410", "SHFE")
	require.True(t, ok)
	assert.Equal(t, 0.5, meta.PriceTick)

	_, ok = c.Lookup("rb2410", "SHFE")
	require.True(t, ok)
	assert.Equal(t, 1, calls, "second lookup should be served from cache, not re-fetched")
}

func TestCatalog_Lookup_UnknownContract_ReturnsFalse(t *testing.T) {
	c := New(func(symbol, exchange string) (model.ContractMeta, bool) {
		return model.ContractMeta{}, false
	}, time.Hour, time.Hour)

	_, ok := c.Lookup("bogus", "SHFE")
	assert.False(t, ok)
}

func TestCatalog_Lookup_ReFetchesAfterTTLExpiry(t *testing.T) {
	calls := 0
	c := New(func(symbol, exchange string) (model.ContractMeta, bool) {
		calls++
		return model.ContractMeta{PriceTick: float64(calls)}, true
	}, 15*time.Millisecond, 5*time.Millisecond)

	meta, ok := c.Lookup("rb2410", "SHFE")
	require.True(t, ok)
	assert.Equal(t, 1.0, meta.PriceTick)

	time.Sleep(40 * time.Millisecond)

	meta, ok = c.Lookup("rb2410", "SHFE")
	require.True(t, ok)
	assert.Equal(t, 2.0, meta.PriceTick)
	assert.Equal(t, 2, calls)
}

func TestCatalog_Exists_MirrorsLookup(t *testing.T) {
	c := New(func(symbol, exchange string) (model.ContractMeta, bool) {
		return model.ContractMeta{}, symbol == "rb2410"
	}, time.Hour, time.Hour)

	assert.True(t, c.Exists("rb2410", "SHFE"))
	assert.False(t, c.Exists("au2406", "SHFE"))
}
