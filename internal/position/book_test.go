package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

func newTestBook(multiplier int, inverse bool) *Book {
	return New(func() int { return multiplier }, func() bool { return inverse })
}

func TestBook_UpdateSourceTrade_OpenAndClose(t *testing.T) {
	b := newTestBook(1, false)

	b.UpdateSourceTrade(model.Trade{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 5})
	entry := b.Get("rb2410.SHFE")
	require.Equal(t, 5, entry.SourceLong)

	b.UpdateSourceTrade(model.Trade{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionShort, Offset: model.OffsetCloseToday, Volume: 2})
	entry = b.Get("rb2410.SHFE")
	assert.Equal(t, 3, entry.SourceLong)
	assert.Equal(t, 0, entry.SourceShort)
}

func TestBook_LegDelta_InverseFollow(t *testing.T) {
	b := newTestBook(2, true)
	b.UpdateSourcePosition(model.Position{Symbol: "IF2312", Exchange: "CFFEX", Direction: model.DirectionLong, Volume: 3})

	entry := b.Get("IF2312.CFFEX")
	longDelta, shortDelta := entry.LegDelta(2, true)
	// inverse-follow crosses legs: source long feeds target short.
	assert.Equal(t, 0, longDelta)
	assert.Equal(t, 6, shortDelta)
}

func TestBook_AddLostFollow_AndClearEmpty(t *testing.T) {
	b := newTestBook(1, false)
	b.AddLostFollow("au2406.SHFE", -3)
	entry := b.Get("au2406.SHFE")
	require.Equal(t, -3, entry.LostFollowNet)

	// all four raw counters are still zero: ClearEmpty should drop it.
	b.ClearEmpty()
	assert.Empty(t, b.Keys())
}

func TestBook_Observe_NotifiesOnUpdate(t *testing.T) {
	b := newTestBook(1, false)
	var got model.PosDelta
	calls := 0
	b.Observe(func(d model.PosDelta) {
		calls++
		got = d
	})

	b.UpdateSourceTrade(model.Trade{Symbol: "cu2409", Exchange: "SHFE", Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 4})

	require.Equal(t, 1, calls)
	assert.Equal(t, "cu2409.SHFE", got.ContractKey)
	assert.Equal(t, 4, got.SourceLong)
}

func TestBook_SnapshotAndLoadAll_RoundTrip(t *testing.T) {
	b := newTestBook(1, false)
	b.UpdateSourceTrade(model.Trade{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 7})

	snap := b.Snapshot()
	fresh := newTestBook(1, false)
	fresh.LoadAll(snap)

	assert.Equal(t, 7, fresh.Get("rb2410.SHFE").SourceLong)
}
