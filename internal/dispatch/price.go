package dispatch

import (
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/pricing"
)

// PriceParams bundles the inputs to the price conversion algorithm
// (§4.6). ExplicitPrice nil means "no explicit price"; a pointer to -1
// means "use market/hard-limit pricing" per step 3.
type PriceParams struct {
	Direction     model.Direction
	OrderType     model.OrderType
	BasePrice     model.OrderBasePrice
	TickOffset    int
	PriceTick     float64
	ExplicitPrice *float64
}

// ConvertPrice implements §4.6's four-step price conversion.
func ConvertPrice(p PriceParams, quote pricing.Entry) float64 {
	ask, bid := sanitize(quote)

	hardLimit := quote.LimitDown
	if p.Direction == model.DirectionLong {
		hardLimit = quote.LimitUp
	}

	var price float64
	switch p.BasePrice {
	case model.BaseGoodForOther:
		if p.Direction == model.DirectionLong {
			price = ask
		} else {
			price = bid
		}
	default: // BaseGoodForSelf
		if p.Direction == model.DirectionLong {
			price = bid
		} else {
			price = ask
		}
	}

	if p.ExplicitPrice != nil && *p.ExplicitPrice != -1 {
		price = *p.ExplicitPrice
	}

	useMarket := p.OrderType == model.OrderTypeMarket || (p.ExplicitPrice != nil && *p.ExplicitPrice == -1)
	if useMarket {
		return hardLimit
	}

	offset := float64(p.TickOffset) * p.PriceTick
	if p.Direction == model.DirectionLong {
		price += offset
		if price > hardLimit {
			price = hardLimit
		}
	} else {
		price -= offset
		if price < hardLimit {
			price = hardLimit
		}
	}
	return price
}

// sanitize defends against gateway sentinel values: an ask of zero or
// above limit-up is replaced by limit-up; a bid of zero or above
// limit-up (an impossible quote) is replaced by limit-down.
func sanitize(quote pricing.Entry) (ask, bid float64) {
	ask, bid = quote.Ask, quote.Bid
	if ask <= 0 || ask > quote.LimitUp {
		ask = quote.LimitUp
	}
	if bid <= 0 || bid > quote.LimitUp {
		bid = quote.LimitDown
	}
	return ask, bid
}

// TickOffsetFor selects the configured tick offset for a non-chase
// dispatch: the aggressive must_done_tick_add if mustDone, otherwise the
// ordinary tick_add.
func TickOffsetFor(mustDone bool, tickAdd, mustDoneTickAdd int) int {
	if mustDone {
		return mustDoneTickAdd
	}
	return tickAdd
}
