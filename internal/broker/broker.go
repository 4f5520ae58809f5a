// Package broker defines the gateway surface the engine drives (§6)
// and routes calls to named gateways through a circuit breaker per
// gateway, so a jammed broker connection degrades to fast failures
// instead of hanging the single event-loop consumer.
package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

var ErrUnknownGateway = errors.New("broker: unknown gateway")

// SubscribeRequest asks a gateway to start streaming ticks for a
// contract.
type SubscribeRequest struct {
	Symbol   string
	Exchange string
}

// Account is a target (or source) trading account snapshot, persisted
// daily to account_info.csv.
type Account struct {
	AccountID string
	Balance   float64
	Available float64
}

// Gateway is the full outbound surface one broker adapter must provide.
// The engine core never implements this itself; it is supplied by a
// real broker connector at wiring time.
type Gateway interface {
	Subscribe(req SubscribeRequest) bool
	SendOrder(req model.OrderRequest) (orderID string, err error)
	CancelOrder(orderID string) error
	GetContract(symbol string) (model.ContractMeta, bool)
	GetOrder(orderID string) (model.Order, bool)
	GetAllActiveOrders(symbol string) []model.Order
	GetAllTrades() []model.Trade
	GetAllAccounts() []Account
}

// Router dispatches by gateway name to a registered Gateway, wrapping
// every call in a per-gateway circuit breaker.
type Router struct {
	gateways map[string]Gateway
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRouter() *Router {
	return &Router{gateways: map[string]Gateway{}, breakers: map[string]*gobreaker.CircuitBreaker{}}
}

// Register wires gatewayName to gw, creating its circuit breaker.
func (r *Router) Register(gatewayName string, gw Gateway) {
	r.gateways[gatewayName] = gw
	r.breakers[gatewayName] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        gatewayName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func (r *Router) breaker(name string) (*gobreaker.CircuitBreaker, Gateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return r.breakers[name], gw, nil
}

// SendOrder implements dispatch.Sender, routing through gatewayName's
// breaker. A breaker trip or gateway error surfaces as an empty order
// id, which the dispatcher treats as a send failure per §7.
func (r *Router) SendOrder(req model.OrderRequest, gatewayName string) (string, error) {
	b, gw, err := r.breaker(gatewayName)
	if err != nil {
		return "", err
	}
	result, err := b.Execute(func() (interface{}, error) {
		id, sendErr := gw.SendOrder(req)
		if sendErr != nil {
			return "", sendErr
		}
		if id == "" {
			return "", errors.New("broker: send_order returned empty order id")
		}
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// CancelOrder routes a cancel through gatewayName's breaker.
func (r *Router) CancelOrder(orderID, gatewayName string) error {
	b, gw, err := r.breaker(gatewayName)
	if err != nil {
		return err
	}
	_, err = b.Execute(func() (interface{}, error) {
		return nil, gw.CancelOrder(orderID)
	})
	return err
}

// Subscribe routes a subscribe call through gatewayName's breaker.
func (r *Router) Subscribe(symbol, exchange, gatewayName string) bool {
	b, gw, err := r.breaker(gatewayName)
	if err != nil {
		return false
	}
	result, err := b.Execute(func() (interface{}, error) {
		return gw.Subscribe(SubscribeRequest{Symbol: symbol, Exchange: exchange}), nil
	})
	if err != nil {
		return false
	}
	return result.(bool)
}

// GetContract fetches contract metadata directly from gatewayName,
// bypassing the breaker: it backs the symbol catalog's cache-miss path
// and a transient failure there should surface immediately rather than
// trip a breaker meant for order flow.
func (r *Router) GetContract(symbol, gatewayName string) (model.ContractMeta, bool) {
	gw, ok := r.gateways[gatewayName]
	if !ok {
		return model.ContractMeta{}, false
	}
	return gw.GetContract(symbol)
}

// GetAllActiveOrders fetches gatewayName's active orders for symbol
// directly, bypassing the breaker for the same reason GetContract does.
func (r *Router) GetAllActiveOrders(symbol, gatewayName string) []model.Order {
	gw, ok := r.gateways[gatewayName]
	if !ok {
		return nil
	}
	return gw.GetAllActiveOrders(symbol)
}

// TradesFor fetches gatewayName's trades directly, bypassing the
// breaker for the same reason GetContract does.
func (r *Router) TradesFor(gatewayName string) []model.Trade {
	gw, ok := r.gateways[gatewayName]
	if !ok {
		return nil
	}
	return gw.GetAllTrades()
}

// AccountsFor fetches gatewayName's accounts directly, bypassing the
// breaker for the same reason GetContract does.
func (r *Router) AccountsFor(gatewayName string) []Account {
	gw, ok := r.gateways[gatewayName]
	if !ok {
		return nil
	}
	return gw.GetAllAccounts()
}

// AllAccounts aggregates AccountsFor across every registered gateway,
// backing the daily account-info CSV snapshot (§6).
func (r *Router) AllAccounts() []Account {
	var accounts []Account
	for name := range r.gateways {
		accounts = append(accounts, r.AccountsFor(name)...)
	}
	return accounts
}

// SubscribeGatewayName implements the gateway-name-inference rule used
// by the dispatcher's subscribe hook and by Engine.Start's test-mode
// subscribe: an RPC-fronted source
// gateway cannot itself push market data, so market data is requested
// from the target gateway instead.
func SubscribeGatewayName(sourceGateway, targetGateway string) string {
	if sourceGateway == "RPC" {
		return targetGateway
	}
	return sourceGateway
}
