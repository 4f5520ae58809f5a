package engine

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/followtrader/internal/eventbus"
	"github.com/abdoElHodaky/followtrader/internal/filter"
	"github.com/abdoElHodaky/followtrader/internal/model"
)

func (e *Engine) onTickRaw(payload []byte) error {
	var tick model.Tick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return fmt.Errorf("engine: decode tick: %w", err)
	}
	e.prices.OnTick(tick)
	return nil
}

func (e *Engine) onOrderRaw(payload []byte) error {
	var order model.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return fmt.Errorf("engine: decode order: %w", err)
	}
	source, target := e.gatewayFor(order.GatewayName)
	if source {
		e.handleSourceOrder(order)
	}
	if target {
		e.track.OnOrderUpdate(order)
	}
	return nil
}

func (e *Engine) onTradeRaw(payload []byte) error {
	var trade model.Trade
	if err := json.Unmarshal(payload, &trade); err != nil {
		return fmt.Errorf("engine: decode trade: %w", err)
	}
	source, target := e.gatewayFor(trade.GatewayName)
	if source {
		e.book.UpdateSourceTrade(trade)
		if e.Settings().FollowBased == model.FollowBaseTrade {
			e.handleSourceTrade(trade)
		}
	}
	if target {
		e.book.UpdateTargetTrade(trade)
	}
	return nil
}

func (e *Engine) onPositionRaw(payload []byte) error {
	var pos model.Position
	if err := json.Unmarshal(payload, &pos); err != nil {
		return fmt.Errorf("engine: decode position: %w", err)
	}
	source, target := e.gatewayFor(pos.GatewayName)
	if source {
		e.book.UpdateSourcePosition(pos)
	}
	if target {
		e.book.UpdateTargetPosition(pos)
	}
	return nil
}

func (e *Engine) onTimerRaw(_ []byte) error {
	e.disp.OnTimerTick()
	e.track.OnTimerTick()
	return nil
}

// handleSourceTrade runs a source-account trade through the filter
// pipeline and, on a pass, the order builder, enqueuing every resulting
// request for dispatch (§4.4, §4.5, trade-follow mode).
func (e *Engine) handleSourceTrade(trade model.Trade) {
	ctx := filter.Context{SignalID: trade.TradeID, Symbol: trade.Symbol, Volume: trade.Volume, EventTime: trade.Time}
	if pass, reason := e.pipeline.Evaluate(ctx); !pass {
		e.logDrop(trade.TradeID, reason)
		return
	}
	e.buildAndEnqueue(trade, trade.TradeID)
}

// handleSourceOrder implements order-follow mode: the dedup/keep_hang
// gate of §4.4 precedes the ordinary filter pipeline, and a terminal
// cancel triggers the source-side cancel propagation of §4.7.
func (e *Engine) handleSourceOrder(order model.Order) {
	if order.Status == model.StatusCancelled {
		e.dedup.Evaluate(order.OrderID, false, e.registry.IsFollowed(order.OrderID))
		e.track.OnSourceOrderCancelled(order.OrderID)
		return
	}

	if e.Settings().FollowBased != model.FollowBaseOrder {
		return
	}

	switch order.Status {
	case model.StatusNotTraded, model.StatusPartTraded, model.StatusAllTraded:
	default:
		return
	}

	fullyFilled := order.Status == model.StatusAllTraded
	accept, release := e.dedup.Evaluate(order.OrderID, fullyFilled, e.registry.IsFollowed(order.OrderID))
	if release {
		e.track.PrimeElapsed(e.registry.Children(order.OrderID))
	}
	if !accept {
		return
	}

	ctx := filter.Context{SignalID: order.OrderID, Symbol: order.Symbol, Volume: order.Volume, EventTime: order.Time}
	if pass, reason := e.pipeline.Evaluate(ctx); !pass {
		e.logDrop(order.OrderID, reason)
		return
	}

	trade := model.Trade{
		Symbol: order.Symbol, Exchange: order.Exchange,
		Direction: order.Direction, Offset: order.Offset,
		Price: order.Price, Volume: order.Volume, Time: order.Time,
	}
	e.buildAndEnqueue(trade, order.OrderID)

	if order.IsActive() {
		e.dedup.Hold(order.OrderID)
	}
}

func (e *Engine) buildAndEnqueue(trade model.Trade, signalID string) {
	built, err := e.build.Build(trade, signalID)
	if err != nil {
		e.logError("builder", err)
		return
	}
	s := e.Settings()
	for _, b := range built {
		chaseEnabled := s.IsChaseOrder && b.MustDone
		e.disp.Enqueue(signalID, b.Request, b.MustDone, b.Intraday, true, chaseEnabled)
	}
}

func (e *Engine) logDrop(signalID, reason string) {
	if e.Logger != nil {
		e.Logger.Info("engine: signal dropped", zap.String("signal_id", signalID), zap.String("reason", reason))
	}
	if e.bus != nil {
		_ = e.bus.Publish(eventbus.KindFollowLog, reason)
	}
}
