package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/pricing"
)

func quote() pricing.Entry {
	return pricing.Entry{Bid: 100, Ask: 101, LimitUp: 110, LimitDown: 90}
}

func TestConvertPrice_GoodForOther_Long_AsksAndAddsTicks(t *testing.T) {
	price := ConvertPrice(PriceParams{
		Direction: model.DirectionLong, OrderType: model.OrderTypeLimit,
		BasePrice: model.BaseGoodForOther, TickOffset: 2, PriceTick: 0.5,
	}, quote())
	assert.Equal(t, 102.0, price) // 101 (ask) + 2*0.5
}

func TestConvertPrice_GoodForSelf_Short_UsesAskAndSubtracts(t *testing.T) {
	price := ConvertPrice(PriceParams{
		Direction: model.DirectionShort, OrderType: model.OrderTypeLimit,
		BasePrice: model.BaseGoodForSelf, TickOffset: 1, PriceTick: 1,
	}, quote())
	assert.Equal(t, 100.0, price) // 101 (ask) - 1*1
}

func TestConvertPrice_MarketOrder_UsesHardLimit(t *testing.T) {
	priceLong := ConvertPrice(PriceParams{
		Direction: model.DirectionLong, OrderType: model.OrderTypeMarket,
		BasePrice: model.BaseGoodForOther,
	}, quote())
	assert.Equal(t, 110.0, priceLong)

	priceShort := ConvertPrice(PriceParams{
		Direction: model.DirectionShort, OrderType: model.OrderTypeMarket,
		BasePrice: model.BaseGoodForOther,
	}, quote())
	assert.Equal(t, 90.0, priceShort)
}

func TestConvertPrice_ExplicitSentinel_UsesHardLimit(t *testing.T) {
	sentinel := -1.0
	price := ConvertPrice(PriceParams{
		Direction: model.DirectionLong, OrderType: model.OrderTypeLimit,
		BasePrice: model.BaseGoodForOther, ExplicitPrice: &sentinel,
	}, quote())
	assert.Equal(t, 110.0, price)
}

func TestConvertPrice_ClampsToHardLimit(t *testing.T) {
	price := ConvertPrice(PriceParams{
		Direction: model.DirectionLong, OrderType: model.OrderTypeLimit,
		BasePrice: model.BaseGoodForOther, TickOffset: 100, PriceTick: 1,
	}, quote())
	assert.Equal(t, 110.0, price)
}

func TestConvertPrice_SanitizesImpossibleQuote(t *testing.T) {
	bad := pricing.Entry{Bid: 0, Ask: 0, LimitUp: 110, LimitDown: 90}
	price := ConvertPrice(PriceParams{
		Direction: model.DirectionLong, OrderType: model.OrderTypeLimit,
		BasePrice: model.BaseGoodForOther, TickOffset: 0, PriceTick: 1,
	}, bad)
	assert.Equal(t, 110.0, price) // ask sanitized to LimitUp
}

func TestConvertPrice_BidAtLimitUpIsKeptNotFlippedToLimitDown(t *testing.T) {
	atLimit := pricing.Entry{Bid: 110, Ask: 111, LimitUp: 110, LimitDown: 90}
	price := ConvertPrice(PriceParams{
		Direction: model.DirectionLong, OrderType: model.OrderTypeLimit,
		BasePrice: model.BaseGoodForSelf, TickOffset: 0, PriceTick: 1,
	}, atLimit)
	assert.Equal(t, 110.0, price) // bid == limit_up is a real locked-limit quote, not sanitized away
}

func TestTickOffsetFor_SelectsAggressiveWhenMustDone(t *testing.T) {
	assert.Equal(t, 5, TickOffsetFor(true, 1, 5))
	assert.Equal(t, 1, TickOffsetFor(false, 1, 5))
}
