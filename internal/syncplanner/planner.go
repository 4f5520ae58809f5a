// Package syncplanner implements the Manual Sync Planner (§4.9): the
// operator-invoked commands that compute and dispatch whatever orders
// are needed to reconcile the target account to the source account's
// scaled position.
package syncplanner

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/dispatch"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/position"
)

// Planner mints synthetic SYNC_/BASIC_ signal ids and feeds the
// resulting requests through the ordinary dispatch pipeline so their
// fills update target_* counters like any other follow order.
type Planner struct {
	Settings   func() config.Settings
	Book       *position.Book
	Dispatcher *dispatch.Dispatcher
	Clock      func() time.Time
	// PreCancel, if set, cancels any fail-chase residual orders still
	// outstanding for a contract before new sync work is planned.
	PreCancel func(contractKey string)

	counter int
}

func New(settings func() config.Settings, book *position.Book, disp *dispatch.Dispatcher) *Planner {
	return &Planner{Settings: settings, Book: book, Dispatcher: disp, Clock: time.Now}
}

// nextID mints a signal id for a synthetic sync/basic request. In
// run_type=live the id is a k-sortable ksuid, so ids minted across a
// restart still sort by mint time; run_type=test keeps the plain
// HHMMSSmmm scheme so fixtures stay deterministic and human-readable.
func (p *Planner) nextID(prefix string) string {
	p.counter++
	if p.Settings().RunType == model.RunTypeLive {
		return prefix + ksuid.New().String()
	}
	now := p.Clock()
	ts := fmt.Sprintf("%s%03d", now.Format("150405"), now.Nanosecond()/1e6)
	return fmt.Sprintf("%s%s_%d", prefix, ts, p.counter)
}

func (p *Planner) preCancel(key string) {
	if p.PreCancel != nil {
		p.PreCancel(key)
	}
}

func (p *Planner) enqueue(signalID string, direction model.Direction, offset model.Offset, volume int, cid model.ContractID) {
	if volume <= 0 {
		return
	}
	req := model.OrderRequest{
		Symbol: cid.Symbol, Exchange: cid.Exchange,
		Direction: direction, Offset: offset, Volume: volume,
		Type: p.Settings().OrderType, Reference: model.RefSync,
	}
	p.Dispatcher.Enqueue(signalID, req, true, true, true, false)
}

// OpenLeg issues a buy for a positive long-delta and a short for a
// positive short-delta, ignoring negative deltas.
func (p *Planner) OpenLeg(cid model.ContractID) {
	key := cid.Key()
	p.preCancel(key)
	s := p.Settings()
	entry := p.Book.Get(key)
	longDelta, shortDelta := entry.LegDelta(s.Multiplier, s.InverseFollow)

	if longDelta > 0 {
		p.enqueue(p.nextID(dispatch.PrefixSync), model.DirectionLong, model.OffsetOpen, longDelta, cid)
	}
	if shortDelta > 0 {
		p.enqueue(p.nextID(dispatch.PrefixSync), model.DirectionShort, model.OffsetOpen, shortDelta, cid)
	}
}

// CloseLeg issues a sell for a negative long-delta's magnitude and a
// cover (buy) for a negative short-delta's magnitude, ignoring
// non-negative deltas.
func (p *Planner) CloseLeg(cid model.ContractID) {
	key := cid.Key()
	p.preCancel(key)
	s := p.Settings()
	entry := p.Book.Get(key)
	longDelta, shortDelta := entry.LegDelta(s.Multiplier, s.InverseFollow)

	if longDelta < 0 {
		p.enqueue(p.nextID(dispatch.PrefixSync), model.DirectionShort, model.OffsetClose, -longDelta, cid)
	}
	if shortDelta < 0 {
		p.enqueue(p.nextID(dispatch.PrefixSync), model.DirectionLong, model.OffsetClose, -shortDelta, cid)
	}
}

// Both runs the open-leg sync followed by the close-leg sync.
func (p *Planner) Both(cid model.ContractID) {
	p.OpenLeg(cid)
	p.CloseLeg(cid)
}

// Net issues a single signed order for (net_delta - basic_delta),
// intraday-only. When basic is true the order forces market pricing and
// zeroes basic_delta on issue, marking it as the new sync baseline.
func (p *Planner) Net(cid model.ContractID, basic bool) {
	key := cid.Key()
	s := p.Settings()
	if !s.IsIntradayTrading {
		return
	}
	p.preCancel(key)
	entry := p.Book.Get(key)
	delta := entry.NetDelta - entry.BasicDelta
	if delta == 0 {
		return
	}

	direction := model.DirectionLong
	if delta < 0 {
		direction = model.DirectionShort
	}
	volume := delta
	if volume < 0 {
		volume = -volume
	}

	prefix := dispatch.PrefixSync
	if basic {
		prefix = dispatch.PrefixBasic
	}
	signalID := p.nextID(prefix)

	req := model.OrderRequest{
		Symbol: cid.Symbol, Exchange: cid.Exchange,
		Direction: direction, Offset: model.OffsetOpen, Volume: volume,
		Type: model.OrderTypeLimit, Reference: model.RefSync,
	}
	if basic {
		req.Type = model.OrderTypeMarket
		req.Reference = model.RefBasic
	}
	p.Dispatcher.Enqueue(signalID, req, true, true, true, false)

	if basic {
		p.Book.SetField(key, "basic_delta", 0)
	}
}

// All runs the open/close combined sync across every contract
// currently tracked in the position book.
func (p *Planner) All() {
	for _, key := range p.Book.Keys() {
		p.Both(model.ParseContractID(key))
	}
}

// CloseHedged flattens a symmetric hedge at market: up to
// min(target_long, target_short) contracts, closed on both sides at
// once with a sell (close long) and a cover (close short). A quantity
// above the available hedge is rejected outright, the pure operator-
// triggered path that replaces is_hedged_closed (§9 open question).
func (p *Planner) CloseHedged(cid model.ContractID, quantity int) bool {
	key := cid.Key()
	entry := p.Book.Get(key)
	available := entry.TargetLong
	if entry.TargetShort < available {
		available = entry.TargetShort
	}
	if quantity <= 0 || quantity > available {
		return false
	}

	p.enqueueMarketClose(cid, model.DirectionShort, quantity)
	p.enqueueMarketClose(cid, model.DirectionLong, quantity)
	return true
}

func (p *Planner) enqueueMarketClose(cid model.ContractID, direction model.Direction, quantity int) {
	signalID := p.nextID(dispatch.PrefixSync)
	req := model.OrderRequest{
		Symbol: cid.Symbol, Exchange: cid.Exchange,
		Direction: direction, Offset: model.OffsetClose, Volume: quantity,
		Type: model.OrderTypeMarket, Reference: model.RefSync,
	}
	p.Dispatcher.Enqueue(signalID, req, true, true, true, false)
}
