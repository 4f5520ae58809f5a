package dispatch

import (
	"go.uber.org/zap"

	"github.com/abdoElHodaky/followtrader/internal/catalog"
	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/offsetconv"
	"github.com/abdoElHodaky/followtrader/internal/pricing"
)

// Sender is the gateway send surface the dispatcher drives (§6).
// send_order returning an empty order id is treated as a send failure:
// logged, no child recorded.
type Sender interface {
	SendOrder(req model.OrderRequest, gatewayName string) (orderID string, err error)
}

// entry is one queued request awaiting a priced quote.
type entry struct {
	SignalID     string
	Request      model.OrderRequest
	MustDone     bool
	Intraday     bool
	IsFirst      bool
	ChaseEnabled bool
	// Resend fields are set only when this entry is a chase resend, not
	// a fresh follow/sync dispatch.
	ResendAncestor string
	BasePriceFrom  *float64 // chase "base on last order price" override
}

// Dispatcher is the send queue plus the price-conversion/dispatch step
// of §4.6. Requests for unpriced symbols are held; the timer tick
// re-scans and dispatches whatever has become priced.
type Dispatcher struct {
	Settings  func() config.Settings
	Prices    *pricing.Cache
	Catalog   *catalog.Catalog
	Converter offsetconv.Converter
	Sender    Sender
	Registry  *Registry
	Subscribe func(symbol, exchange string) bool
	Logger    *zap.Logger
	GatewayOf func(signalID string) string

	// OnDispatched and OnSendFailure, if set, are invoked after every
	// dispatch attempt for metrics instrumentation.
	OnDispatched  func()
	OnSendFailure func()

	queue      []entry
	subscribed map[string]bool
}

func New(settings func() config.Settings, prices *pricing.Cache, cat *catalog.Catalog, conv offsetconv.Converter, sender Sender, registry *Registry) *Dispatcher {
	return &Dispatcher{
		Settings:   settings,
		Prices:     prices,
		Catalog:    cat,
		Converter:  conv,
		Sender:     sender,
		Registry:   registry,
		subscribed: map[string]bool{},
	}
}

// Enqueue holds a built request for dispatch once its symbol is priced.
func (d *Dispatcher) Enqueue(signalID string, req model.OrderRequest, mustDone, intraday, isFirst, chaseEnabled bool) {
	d.queue = append(d.queue, entry{
		SignalID: signalID, Request: req, MustDone: mustDone,
		Intraday: intraday, IsFirst: isFirst, ChaseEnabled: chaseEnabled,
	})
}

// EnqueueResend holds a chase-resend request, tagged with its ancestor
// order id and (if configured) the price to chain the next offset from.
func (d *Dispatcher) EnqueueResend(signalID string, req model.OrderRequest, ancestor string, basePriceFrom *float64) {
	d.queue = append(d.queue, entry{
		SignalID: signalID, Request: req, MustDone: true, Intraday: true,
		ResendAncestor: ancestor, BasePriceFrom: basePriceFrom,
	})
}

// OnTimerTick scans the queue once: priced entries are converted and
// dispatched and removed; unpriced entries are retained, triggering a
// subscribe side-effect on first sight.
func (d *Dispatcher) OnTimerTick() {
	var remaining []entry
	for _, e := range d.queue {
		key := e.Request.ContractID().Key()
		quote, priced := d.Prices.Get(key)
		if !priced {
			if !d.subscribed[key] && d.Subscribe != nil {
				d.Subscribe(e.Request.Symbol, e.Request.Exchange)
				d.subscribed[key] = true
			}
			remaining = append(remaining, e)
			continue
		}
		d.dispatch(e, quote)
	}
	d.queue = remaining
}

func (d *Dispatcher) dispatch(e entry, quote pricing.Entry) {
	s := d.Settings()
	key := e.Request.ContractID().Key()

	basePrice := s.ChaseBasePrice
	mustDone := e.MustDone
	switch {
	case IsResend(e):
		// chase path: base price possibly overridden below.
	case hasPrefix(e.SignalID, PrefixSync), hasPrefix(e.SignalID, PrefixBasic):
		basePrice = s.SyncBasePrice
		mustDone = true
	default:
		basePrice = model.BaseGoodForOther
	}

	tickOffset := TickOffsetFor(mustDone, s.TickAdd, s.MustDoneTickAdd)
	var explicit *float64
	if IsResend(e) {
		tickOffset = s.ChaseOrderTickAdd
		if s.ChaseBaseLastOrderPrice && e.BasePriceFrom != nil {
			explicit = e.BasePriceFrom
		}
	}

	priceTick := 0.0
	if meta, ok := d.Catalog.Lookup(e.Request.Symbol, e.Request.Exchange); ok {
		priceTick = meta.PriceTick
	}

	price := ConvertPrice(PriceParams{
		Direction:     e.Request.Direction,
		OrderType:     e.Request.Type,
		BasePrice:     basePrice,
		TickOffset:    tickOffset,
		PriceTick:     priceTick,
		ExplicitPrice: explicit,
	}, quote)

	priced := e.Request.Clone()
	priced.Price = price

	var legs []model.OrderRequest
	if d.Converter != nil {
		legs = d.Converter.Split(priced)
	} else {
		legs = []model.OrderRequest{priced}
	}

	gateway := ""
	if d.GatewayOf != nil {
		gateway = d.GatewayOf(e.SignalID)
	}

	for i, leg := range legs {
		orderID, err := d.Sender.SendOrder(leg, gateway)
		if err != nil || orderID == "" {
			if d.Logger != nil {
				d.Logger.Error("dispatch: send_order failed, child not recorded",
					zap.String("signal_id", e.SignalID), zap.String("key", key), zap.Error(err))
			}
			if d.OnSendFailure != nil {
				d.OnSendFailure()
			}
			continue
		}
		if d.OnDispatched != nil {
			d.OnDispatched()
		}
		if IsResend(e) {
			d.Registry.RegisterResend(e.SignalID, orderID, e.ResendAncestor)
			continue
		}
		d.Registry.Register(e.SignalID, orderID, RegisterOptions{
			IsFirst:      e.IsFirst && i == 0,
			MustDone:     mustDone,
			ChaseEnabled: e.ChaseEnabled,
			Intraday:     e.Intraday,
		})
	}
}

func IsResend(e entry) bool { return e.ResendAncestor != "" }

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
