// Package offsetconv is the external-collaborator surface (§6, §4.4)
// that rewrites a generic close request into today-close and
// yesterday-close legs given the target account's actual holdings. The
// engine core only depends on the Converter interface; BasicConverter is
// a simple in-memory stand-in for the real accounting service a gateway
// would normally provide.
package offsetconv

import "github.com/abdoElHodaky/followtrader/internal/model"

// Holding is one contract's target-side long/short holding, split by
// whether it was opened in a prior session (yesterday) or the current
// one (today). Today-opened positions are exempt from some exchanges'
// same-day close fee; yesterday holdings are closed first when both are
// available.
type Holding struct {
	YesterdayLong  int
	TodayLong      int
	YesterdayShort int
	TodayShort     int
}

// Converter rewrites a close-offset request into one or more
// dispatch-ready legs. Non-close requests pass through unchanged.
type Converter interface {
	Split(req model.OrderRequest) []model.OrderRequest
}

// HoldingLookup returns the current target-side holding for a contract
// key, or the zero Holding if the contract is not held.
type HoldingLookup func(contractKey string) Holding

// BasicConverter splits close requests against a holding lookup funded
// by the position book. It has no state of its own.
type BasicConverter struct {
	Holdings HoldingLookup
}

func New(lookup HoldingLookup) *BasicConverter { return &BasicConverter{Holdings: lookup} }

// Split implements Converter. A request with offset=close closing a
// long position (direction=short) draws first against yesterday's long
// holding, then today's; closing a short position (direction=long)
// mirrors against the short holding. Legs with zero volume are omitted.
func (c *BasicConverter) Split(req model.OrderRequest) []model.OrderRequest {
	if req.Offset != model.OffsetClose {
		return []model.OrderRequest{req}
	}

	h := Holding{}
	if c.Holdings != nil {
		h = c.Holdings(req.ContractID().Key())
	}

	var yesterdayAvail, todayAvail int
	switch req.Direction {
	case model.DirectionShort:
		yesterdayAvail, todayAvail = h.YesterdayLong, h.TodayLong
	case model.DirectionLong:
		yesterdayAvail, todayAvail = h.YesterdayShort, h.TodayShort
	default:
		return []model.OrderRequest{req}
	}

	yesterdayLeg := min(req.Volume, yesterdayAvail)
	todayLeg := req.Volume - yesterdayLeg
	if todayLeg > todayAvail {
		todayLeg = todayAvail
	}

	var legs []model.OrderRequest
	if yesterdayLeg > 0 {
		leg := req.Clone()
		leg.Offset = model.OffsetCloseYesterday
		leg.Volume = yesterdayLeg
		legs = append(legs, leg)
	}
	if todayLeg > 0 {
		leg := req.Clone()
		leg.Offset = model.OffsetCloseToday
		leg.Volume = todayLeg
		legs = append(legs, leg)
	}
	return legs
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
