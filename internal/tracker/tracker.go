// Package tracker implements the Active-Order Tracker and Chase
// Resender (§4.7, §4.8): the per-order timeout-cancel state machine and
// the cancel-and-resend-at-better-price loop it drives.
package tracker

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/dispatch"
	"github.com/abdoElHodaky/followtrader/internal/filter"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/position"
)

// resendBurst is the burst size of the tracker's single resend limiter,
// which is shared by all contracts: up to resendBurst chase resends may
// go out back to back, then one per 200ms. A resend the limiter refuses
// does not wait; it is replaced by a keep-chase order (see resend).
const resendBurst = 3

// Canceller issues a cancel for a working order at its gateway.
type Canceller func(orderID, gatewayName string) error

// Tracker owns the per-order elapsed-ticks counters and cancel-attempt
// counts, and drives resends through a Dispatcher.
type Tracker struct {
	Settings   func() config.Settings
	Registry   *dispatch.Registry
	Dispatcher *dispatch.Dispatcher
	Book       *position.Book
	Dedup      *filter.Dedup
	Cancel     Canceller
	GatewayOf  func(signalID string) string
	Logger     *zap.Logger

	// OnCancel and OnResend, if set, are invoked for metrics
	// instrumentation whenever a cancel is issued or a chase resend
	// completes.
	OnCancel    func()
	OnResend    func()
	ActiveGauge func(n int)

	elapsed        map[string]int
	cancelCounts   map[string]bool // orderID -> permanently stopped (cancel_count exceeded)
	cancelAttempts map[string]int
	failChase      map[string]bool
	resendLimiter  *rate.Limiter
}

func New(settings func() config.Settings, registry *dispatch.Registry, disp *dispatch.Dispatcher, book *position.Book, dedup *filter.Dedup) *Tracker {
	return &Tracker{
		Settings:       settings,
		Registry:       registry,
		Dispatcher:     disp,
		Book:           book,
		Dedup:          dedup,
		elapsed:        map[string]int{},
		cancelCounts:   map[string]bool{},
		cancelAttempts: map[string]int{},
		failChase:      map[string]bool{},
		resendLimiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), resendBurst),
	}
}

// Track begins timeout-cancel timing for orderID, which belongs to
// signalID. In follow-by-order mode, a child whose signal is currently
// held (keep_hang) is exempt: it is not tracked until the hold is
// released via PrimeElapsed.
func (t *Tracker) Track(signalID, orderID string) {
	if t.Dedup != nil && t.Dedup.IsHeld(signalID) {
		return
	}
	if _, tracked := t.elapsed[orderID]; !tracked {
		t.elapsed[orderID] = 0
	}
}

// PrimeElapsed begins timing for a batch of children whose signal's
// keep_hang hold has just been released.
func (t *Tracker) PrimeElapsed(orderIDs []string) {
	for _, id := range orderIDs {
		t.elapsed[id] = 0
	}
}

// OnTimerTick advances every tracked order's elapsed-ticks counter and
// issues timeout cancels, per §4.7.
func (t *Tracker) OnTimerTick() {
	s := t.Settings()
	for orderID := range t.elapsed {
		if t.cancelCounts[orderID] {
			delete(t.elapsed, orderID)
			continue
		}
		threshold := s.CancelOrderTimeout
		if t.Registry.IsChaseOrder(orderID) && !t.Registry.IsFirst(orderID) {
			threshold = s.ChaseOrderTimeout
		}
		if t.elapsed[orderID] > threshold {
			t.sendCancel(orderID, s.MaxCancel)
			t.elapsed[orderID] = 0
		} else {
			t.elapsed[orderID]++
		}
	}
	if t.ActiveGauge != nil {
		t.ActiveGauge(len(t.elapsed))
	}
}

func (t *Tracker) sendCancel(orderID string, maxCancel int) {
	t.cancelAttempts[orderID]++
	if t.cancelAttempts[orderID] > maxCancel {
		t.cancelCounts[orderID] = true
		return
	}
	if t.Cancel == nil {
		return
	}
	gateway := ""
	if signalID, ok := t.Registry.SignalOf(orderID); ok && t.GatewayOf != nil {
		gateway = t.GatewayOf(signalID)
	}
	if err := t.Cancel(orderID, gateway); err != nil && t.Logger != nil {
		t.Logger.Error("tracker: cancel failed", zap.String("order_id", orderID), zap.Error(err))
	}
	if t.OnCancel != nil {
		t.OnCancel()
	}
}

// OnOrderUpdate processes a gateway order report: a cancellation
// triggers lost-follow accounting and chase-resend handling; any other
// active status begins tracking if not already tracked.
func (t *Tracker) OnOrderUpdate(order model.Order) {
	signalID, known := t.Registry.SignalOf(order.OrderID)
	if !known {
		return
	}

	if order.Status == model.StatusCancelled {
		t.onCancelled(signalID, order)
		return
	}
	if order.IsActive() {
		t.Track(signalID, order.OrderID)
	}
}

func (t *Tracker) onCancelled(signalID string, order model.Order) {
	delete(t.elapsed, order.OrderID)
	delete(t.cancelAttempts, order.OrderID)
	delete(t.cancelCounts, order.OrderID)

	key := order.ContractID().Key()
	if t.Registry.IsOpenOrder(order.OrderID) {
		remainder := order.Remaining()
		t.Book.AddLostFollow(key, model.SignedVolume(order.Direction, remainder))
	}

	if !t.Registry.IsChaseOrder(order.OrderID) {
		return
	}
	ancestor, ok := t.Registry.Ancestor(order.OrderID)
	if !ok {
		return
	}
	s := t.Settings()
	if t.Registry.ResendCount(ancestor) < s.ChaseMaxResend {
		t.resend(signalID, ancestor, order)
		return
	}
	if s.KeepOrderAfterChase {
		t.issueKeepChase(signalID, ancestor, order)
	}
}

// resend implements §4.8: cancel completion of an order whose ancestor
// is still under its chase-resend budget triggers a fresh limit request
// at a more aggressive price. A resend that resendLimiter refuses (the
// limiter is shared by all contracts) falls back to a final untracked
// keep-chase replacement instead of adding to the flood.
func (t *Tracker) resend(signalID, ancestor string, order model.Order) {
	if t.resendLimiter != nil && !t.resendLimiter.Allow() {
		t.issueKeepChase(signalID, ancestor, order)
		return
	}
	s := t.Settings()
	newVolume := order.Remaining()
	if newVolume <= 0 {
		return
	}
	req := model.OrderRequest{
		Symbol: order.Symbol, Exchange: order.Exchange,
		Direction: order.Direction, Offset: order.Offset,
		Type: s.OrderType, Volume: newVolume, Reference: model.RefChase,
	}
	var basePriceFrom *float64
	if s.ChaseBaseLastOrderPrice {
		p := order.Price
		basePriceFrom = &p
	}
	t.Dispatcher.EnqueueResend(signalID, req, ancestor, basePriceFrom)
	if t.OnResend != nil {
		t.OnResend()
	}
}

// issueKeepChase issues a final, untracked replacement at the
// cancelled order's price once the chase budget is exhausted, recording
// it as a fail-chase residual rather than continuing to chase it.
func (t *Tracker) issueKeepChase(signalID, ancestor string, order model.Order) {
	newVolume := order.Remaining()
	if newVolume <= 0 {
		return
	}
	s := t.Settings()
	req := model.OrderRequest{
		Symbol: order.Symbol, Exchange: order.Exchange,
		Direction: order.Direction, Offset: order.Offset,
		Type: s.OrderType, Volume: newVolume, Price: order.Price,
		Reference: model.RefKeepChase,
	}
	gateway := ""
	if t.GatewayOf != nil {
		gateway = t.GatewayOf(signalID)
	}
	orderID, err := t.Dispatcher.Sender.SendOrder(req, gateway)
	if err != nil || orderID == "" {
		if t.Logger != nil {
			t.Logger.Error("tracker: keep-after-chase send failed", zap.String("signal_id", signalID), zap.Error(err))
		}
		return
	}
	t.failChase[orderID] = true
}

// OnSourceOrderCancelled implements the order-mode source-side cancel
// rule: every live child of signalID is marked not-resendable (removed
// from chase eligibility), then cancelled.
func (t *Tracker) OnSourceOrderCancelled(signalID string) {
	for _, orderID := range t.Registry.Children(signalID) {
		t.Registry.RemoveChaseEligibility(orderID)
		t.sendCancel(orderID, t.Settings().MaxCancel)
	}
}

// IsFailChase reports whether orderID is a recorded keep-after-chase
// residual, consulted by the manual sync planner before it plans new
// work for a contract (§4.9: only fail-chase residuals are
// pre-cancelled, not live follow work).
func (t *Tracker) IsFailChase(orderID string) bool { return t.failChase[orderID] }
