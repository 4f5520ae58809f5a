package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

func TestCache_Get_UnknownKey_NotPriced(t *testing.T) {
	c := New()
	_, priced := c.Get("rb2410.SHFE")
	assert.False(t, priced)
}

func TestCache_OnTick_FirstTickCapturesLimitsAndQuote(t *testing.T) {
	c := New()
	c.OnTick(model.Tick{Symbol: "rb2410", Exchange: "SHFE", BidPrice1: 100, AskPrice1: 101, LimitUp: 110, LimitDown: 90})

	entry, priced := c.Get("rb2410.SHFE")
	require.True(t, priced)
	assert.Equal(t, 100.0, entry.Bid)
	assert.Equal(t, 101.0, entry.Ask)
	assert.Equal(t, 110.0, entry.LimitUp)
	assert.Equal(t, 90.0, entry.LimitDown)
}

func TestCache_OnTick_LimitsCapturedOnceThenQuoteRefreshes(t *testing.T) {
	c := New()
	c.OnTick(model.Tick{Symbol: "rb2410", Exchange: "SHFE", BidPrice1: 100, AskPrice1: 101, LimitUp: 110, LimitDown: 90})
	c.OnTick(model.Tick{Symbol: "rb2410", Exchange: "SHFE", BidPrice1: 102, AskPrice1: 103, LimitUp: 999, LimitDown: 1})

	entry, priced := c.Get("rb2410.SHFE")
	require.True(t, priced)
	assert.Equal(t, 102.0, entry.Bid)
	assert.Equal(t, 103.0, entry.Ask)
	// limits are captured once per session and do not move with a later
	// (wrong) tick.
	assert.Equal(t, 110.0, entry.LimitUp)
	assert.Equal(t, 90.0, entry.LimitDown)
}

func TestCache_Priced_ReflectsGet(t *testing.T) {
	c := New()
	assert.False(t, c.Priced("rb2410.SHFE"))

	c.OnTick(model.Tick{Symbol: "rb2410", Exchange: "SHFE", BidPrice1: 1, AskPrice1: 2, LimitUp: 3, LimitDown: 0})
	assert.True(t, c.Priced("rb2410.SHFE"))
}
