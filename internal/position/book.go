// Package position maintains the six-counters-per-contract position
// book (§4.3) and emits position-delta notifications to observers on
// every update.
package position

import (
	"sync"

	"github.com/abdoElHodaky/followtrader/internal/catalog"
	"github.com/abdoElHodaky/followtrader/internal/model"
)

// Observer is notified with a full snapshot every time a contract's
// position changes.
type Observer func(model.PosDelta)

// Book is the position book. Multiplier and InverseFollow are read on
// every recompute so the book always reflects the engine's current
// parameters without needing to be rebuilt when they change.
type Book struct {
	mu         sync.Mutex
	entries    map[string]*model.PositionEntry
	observers  []Observer
	Multiplier func() int
	Inverse    func() bool
}

func New(multiplier func() int, inverse func() bool) *Book {
	return &Book{
		entries:    map[string]*model.PositionEntry{},
		Multiplier: multiplier,
		Inverse:    inverse,
	}
}

// LoadAll replaces the book's contents, used at startup to restore
// persisted run-data.
func (b *Book) LoadAll(entries map[string]*model.PositionEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entries == nil {
		entries = map[string]*model.PositionEntry{}
	}
	b.entries = entries
}

// Snapshot returns a copy of the full position map, for persistence.
func (b *Book) Snapshot() map[string]*model.PositionEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*model.PositionEntry, len(b.entries))
	for k, v := range b.entries {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Observe registers an observer invoked after every position-changing
// update.
func (b *Book) Observe(o Observer) { b.observers = append(b.observers, o) }

// Get returns the entry for key, creating it lazily if absent (§3:
// "created lazily on first mention of the contract").
func (b *Book) Get(key string) *model.PositionEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getLocked(key)
}

func (b *Book) getLocked(key string) *model.PositionEntry {
	e, ok := b.entries[key]
	if !ok {
		e = &model.PositionEntry{}
		b.entries[key] = e
	}
	return e
}

func (b *Book) recalc(e *model.PositionEntry) {
	e.RecalculateNet(b.Multiplier(), b.Inverse())
}

func (b *Book) notify(key string) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		b.mu.Unlock()
		return
	}
	cp := *e
	longDelta, shortDelta := cp.LegDelta(b.Multiplier(), b.Inverse())
	b.mu.Unlock()

	delta := model.PosDelta{ContractKey: key, PositionEntry: cp, LongDelta: longDelta, ShortDelta: shortDelta}
	for _, o := range b.observers {
		o(delta)
	}
}

// UpdateSourcePosition applies a source-account position snapshot for
// one leg. Direction=net snapshots are ignored (an invalid composite).
func (b *Book) UpdateSourcePosition(pos model.Position) {
	if pos.Direction == model.DirectionNet {
		return
	}
	key := pos.ContractID().Key()
	b.mu.Lock()
	e := b.getLocked(key)
	if pos.Direction == model.DirectionLong {
		e.SourceLong = pos.Volume
	} else {
		e.SourceShort = pos.Volume
	}
	b.recalc(e)
	b.mu.Unlock()
	b.notify(key)
}

// UpdateTargetPosition applies a target-account position snapshot for
// one leg.
func (b *Book) UpdateTargetPosition(pos model.Position) {
	if pos.Direction == model.DirectionNet {
		return
	}
	key := pos.ContractID().Key()
	b.mu.Lock()
	e := b.getLocked(key)
	if pos.Direction == model.DirectionLong {
		e.TargetLong = pos.Volume
	} else {
		e.TargetShort = pos.Volume
	}
	b.recalc(e)
	b.mu.Unlock()
	b.notify(key)
}

// UpdateSourceTrade folds a source-account trade into the book per the
// (direction, offset) table in §4.3.
func (b *Book) UpdateSourceTrade(trade model.Trade) {
	key := trade.ContractID().Key()
	b.mu.Lock()
	e := b.getLocked(key)
	applyTradeLeg(e, true, trade)
	b.recalc(e)
	b.mu.Unlock()
	b.notify(key)
}

// UpdateTargetTrade folds a target-account trade into the book.
func (b *Book) UpdateTargetTrade(trade model.Trade) {
	key := trade.ContractID().Key()
	b.mu.Lock()
	e := b.getLocked(key)
	applyTradeLeg(e, false, trade)
	b.recalc(e)
	b.mu.Unlock()
	b.notify(key)
}

// applyTradeLeg implements: long+open -> long += v, short+open -> short
// += v, short+close -> long -= v, long+close -> short -= v.
func applyTradeLeg(e *model.PositionEntry, source bool, trade model.Trade) {
	long, short := &e.TargetLong, &e.TargetShort
	if source {
		long, short = &e.SourceLong, &e.SourceShort
	}
	switch {
	case trade.Direction == model.DirectionLong && trade.Offset == model.OffsetOpen:
		*long += trade.Volume
	case trade.Direction == model.DirectionShort && trade.Offset == model.OffsetOpen:
		*short += trade.Volume
	case trade.Direction == model.DirectionShort && trade.Offset.IsCloseVariant():
		*long -= trade.Volume
	case trade.Direction == model.DirectionLong && trade.Offset.IsCloseVariant():
		*short -= trade.Volume
	}
}

// UpdateSourceTradedNet adds signedVolume to the contract's
// session-local source-traded-net counter, used by the builder's
// open/close decomposition.
func (b *Book) UpdateSourceTradedNet(key string, signedVolume int) {
	b.mu.Lock()
	e := b.getLocked(key)
	e.SourceTradedNet += signedVolume
	b.mu.Unlock()
	b.notify(key)
}

// AddLostFollow adds a signed volume to the contract's lost-follow-net
// debt, invoked when an open-side follow order is cancelled unfilled.
func (b *Book) AddLostFollow(key string, signedVolume int) {
	b.mu.Lock()
	e := b.getLocked(key)
	e.LostFollowNet += signedVolume
	b.mu.Unlock()
	b.notify(key)
}

// SetField overrides one of the operator-settable fields (basic_delta,
// source_traded_net, lost_follow_net) for manual correction.
func (b *Book) SetField(key, field string, value int) {
	b.mu.Lock()
	e := b.getLocked(key)
	switch field {
	case "basic_delta":
		e.BasicDelta = value
	case "source_traded_net":
		e.SourceTradedNet = value
	case "lost_follow_net":
		e.LostFollowNet = value
	}
	b.recalc(e)
	b.mu.Unlock()
	b.notify(key)
}

// Keys returns every contract key currently in the book, used by
// sync_all to iterate every known contract.
func (b *Book) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	return keys
}

// ClearEmpty removes every contract whose four raw counters are all
// zero, run at stop (§4.1).
func (b *Book) ClearEmpty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, e := range b.entries {
		if e.IsEmpty() {
			delete(b.entries, key)
		}
	}
}

// ClearExpired removes contracts whose metadata is no longer present in
// the symbol catalog, run at stop (§3).
func (b *Book) ClearExpired(cat *catalog.Catalog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.entries {
		cid := model.ParseContractID(key)
		if !cat.Exists(cid.Symbol, cid.Exchange) {
			delete(b.entries, key)
		}
	}
}
