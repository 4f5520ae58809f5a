// Package builder implements the Order Builder (§4.5): it turns one
// filtered source trade into zero or more dispatch-ready order
// requests, applying the volume multiplier, direction inversion,
// intraday open/close decomposition, loss-follow offset consumption,
// close-side clamping against target holdings, and volume-limit
// splitting.
package builder

import (
	"errors"

	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/position"
)

var ErrInvalidTrade = errors.New("builder: trade has offset=none or direction=net")

// Built is one order request produced by the builder, tagged with
// must_done (aggressive pricing, chase-eligible) and whether it is
// intraday-marked for the tracker's bookkeeping.
type Built struct {
	Request  model.OrderRequest
	MustDone bool
	Intraday bool
}

// Builder holds the dependencies needed to run the algorithm: the
// current settings (including the intraday-symbol product prefixes) and
// the position book (for source_traded_net and lost_follow_net).
type Builder struct {
	Settings func() config.Settings
	Book     *position.Book
}

func New(settings func() config.Settings, book *position.Book) *Builder {
	return &Builder{Settings: settings, Book: book}
}

// leg is one decomposed piece of a trade, prior to multiplier/inversion.
type leg struct {
	Volume    int
	Direction model.Direction
	Offset    model.Offset
	MustDone  bool
}

// Build runs the full algorithm for one source trade and returns the
// resulting dispatch-ready requests.
func (b *Builder) Build(trade model.Trade, signalID string) ([]Built, error) {
	if trade.Offset == model.OffsetNone {
		return nil, ErrInvalidTrade
	}

	s := b.Settings()
	key := trade.ContractID().Key()

	var legs []leg
	if s.IsIntradayTrading {
		legs = b.decompose(key, trade)
	} else {
		legs = []leg{{Volume: trade.Volume, Direction: trade.Direction, Offset: trade.Offset, MustDone: false}}
	}

	var out []Built
	for _, l := range legs {
		built, ok, err := b.buildLeg(key, l, s)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, built...)
		}
	}
	return out, nil
}

// decompose applies §4.5's open/close decomposition using the
// contract's running source_traded_net, and advances that counter by
// the trade's signed volume afterward.
func (b *Builder) decompose(key string, trade model.Trade) []leg {
	entry := b.Book.Get(key)
	stn := entry.SourceTradedNet
	delta := trade.SignedVolume()

	defer b.Book.UpdateSourceTradedNet(key, delta)

	sameSign := stn == 0 || (stn > 0) == (delta > 0)
	if sameSign {
		return []leg{{Volume: abs(delta), Direction: dirOf(delta), Offset: model.OffsetOpen, MustDone: false}}
	}

	if abs(delta) <= abs(stn) {
		return []leg{{Volume: abs(delta), Direction: dirOf(delta), Offset: model.OffsetClose, MustDone: true}}
	}

	closeVol := abs(stn)
	openVol := abs(delta + stn)
	return []leg{
		{Volume: closeVol, Direction: dirOf(delta), Offset: model.OffsetClose, MustDone: true},
		{Volume: openVol, Direction: dirOf(delta), Offset: model.OffsetOpen, MustDone: false},
	}
}

// buildLeg runs steps 2-6 of §4.5 for one decomposed leg. ok=false
// means the leg was fully consumed (loss-follow offset) or clamped to
// zero and nothing should be dispatched.
func (b *Builder) buildLeg(key string, l leg, s config.Settings) ([]Built, bool, error) {
	if l.Direction == model.DirectionNet {
		return nil, false, ErrInvalidTrade
	}

	req := model.OrderRequest{
		Direction: l.Direction,
		Offset:    l.Offset,
		Type:      s.OrderType,
		Volume:    l.Volume * s.Multiplier,
		Reference: model.RefFollow,
	}
	cid := model.ParseContractID(key)
	req.Symbol, req.Exchange = cid.Symbol, cid.Exchange

	if s.InverseFollow {
		req.Direction = model.InvertDirection(req.Direction)
	}

	if s.IsIntradayTrading && l.MustDone {
		delta := model.SignedVolume(req.Direction, req.Volume)
		entry := b.Book.Get(key)
		lost := entry.LostFollowNet
		if abs(delta) > abs(lost) {
			newVol := abs(lost + delta)
			b.Book.SetField(key, "lost_follow_net", 0)
			req.Volume = newVol
		} else {
			b.Book.SetField(key, "lost_follow_net", lost+delta)
			return nil, false, nil
		}
	}

	intraday := false
	if isIntradaySymbol(cid.Symbol, s.IntradaySymbols) {
		intraday = true
	} else if req.Offset.IsCloseVariant() {
		req.Offset = model.OffsetClose
		entry := b.Book.Get(key)
		avail := targetHolding(req.Direction, *entry)
		if req.Volume > avail {
			req.Volume = avail
		}
		if req.Volume <= 0 {
			return nil, false, nil
		}
	}
	if s.IsIntradayTrading {
		intraday = true
	}

	pieces := splitVolume(req, s.SingleMax, s.SingleMaxDict[cid.Symbol])
	out := make([]Built, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Built{Request: p, MustDone: l.MustDone, Intraday: intraday})
	}
	return out, true, nil
}

// targetHolding returns the target-side holding available to close
// against a request of the given (post-inversion) direction: closing a
// long position trades short, closing a short position trades long.
func targetHolding(direction model.Direction, entry model.PositionEntry) int {
	if direction == model.DirectionShort {
		return entry.TargetLong
	}
	return entry.TargetShort
}

func isIntradaySymbol(symbol string, symbols []string) bool {
	prefix := model.ProductPrefix(symbol)
	for _, s := range symbols {
		if s == prefix || s == symbol {
			return true
		}
	}
	return false
}

// splitVolume divides req into equal pieces of at most max (the lower
// of the global and per-product caps, ignoring a zero cap), plus a
// remainder piece. max<=0 means uncapped.
func splitVolume(req model.OrderRequest, globalMax, productMax int) []model.OrderRequest {
	max := globalMax
	if productMax > 0 && (max <= 0 || productMax < max) {
		max = productMax
	}
	if max <= 0 || req.Volume <= max {
		return []model.OrderRequest{req}
	}

	whole := req.Volume / max
	remainder := req.Volume % max
	pieces := make([]model.OrderRequest, 0, whole+1)
	for i := 0; i < whole; i++ {
		p := req.Clone()
		p.Volume = max
		pieces = append(pieces, p)
	}
	if remainder > 0 {
		p := req.Clone()
		p.Volume = remainder
		pieces = append(pieces, p)
	}
	return pieces
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func dirOf(signed int) model.Direction {
	if signed < 0 {
		return model.DirectionShort
	}
	return model.DirectionLong
}
