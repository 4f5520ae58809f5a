// Package engine wires every component into the FollowEngine
// orchestrator: the single event-bus consumer that owns the position
// book, filter pipeline, order builder, send queue, active-order
// tracker, and manual sync planner, and exposes the command surface of
// §6 (start/stop/set_parameter/set_position/sync_*/close_hedged).
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/followtrader/internal/broker"
	"github.com/abdoElHodaky/followtrader/internal/builder"
	"github.com/abdoElHodaky/followtrader/internal/catalog"
	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/dispatch"
	"github.com/abdoElHodaky/followtrader/internal/eventbus"
	"github.com/abdoElHodaky/followtrader/internal/filter"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/persistence"
	"github.com/abdoElHodaky/followtrader/internal/position"
	"github.com/abdoElHodaky/followtrader/internal/pricing"
	"github.com/abdoElHodaky/followtrader/internal/syncplanner"
	"github.com/abdoElHodaky/followtrader/internal/tracker"
)

// Engine is the trade-follower orchestrator. Construct with New and
// wire it to an event bus with Attach. Every dependency reads its
// tunable parameters from the same *config.Live the engine writes
// through SetParameter, so there is exactly one live settings document
// in the process.
type Engine struct {
	Logger *zap.Logger

	store    *config.Store
	live     *config.Live
	bus      *eventbus.Bus
	book     *position.Book
	prices   *pricing.Cache
	catalog  *catalog.Catalog
	pipeline *filter.Pipeline
	dedup    *filter.Dedup
	build    *builder.Builder
	disp     *dispatch.Dispatcher
	registry *dispatch.Registry
	track    *tracker.Tracker
	plan     *syncplanner.Planner
	brk      *broker.Router
	trades   *persistence.TradeWriter
	accounts *persistence.AccountWriter

	mu      sync.Mutex
	running bool
}

// Deps bundles every component Engine wires together. All fields are
// required.
type Deps struct {
	Logger     *zap.Logger
	Store      *config.Store
	Live       *config.Live
	Bus        *eventbus.Bus
	Book       *position.Book
	Prices     *pricing.Cache
	Catalog    *catalog.Catalog
	Pipeline   *filter.Pipeline
	Dedup      *filter.Dedup
	Builder    *builder.Builder
	Dispatcher *dispatch.Dispatcher
	Registry   *dispatch.Registry
	Tracker    *tracker.Tracker
	Planner    *syncplanner.Planner
	Broker     *broker.Router
	Trades     *persistence.TradeWriter
	Accounts   *persistence.AccountWriter
}

func New(d Deps) *Engine {
	return &Engine{
		Logger:   d.Logger,
		store:    d.Store,
		live:     d.Live,
		bus:      d.Bus,
		book:     d.Book,
		prices:   d.Prices,
		catalog:  d.Catalog,
		pipeline: d.Pipeline,
		dedup:    d.Dedup,
		build:    d.Builder,
		disp:     d.Dispatcher,
		registry: d.Registry,
		track:    d.Tracker,
		plan:     d.Planner,
		brk:      d.Broker,
		trades:   d.Trades,
		accounts: d.Accounts,
	}
}

func (e *Engine) Settings() config.Settings { return e.live.Get() }

// Attach registers the engine's handlers on the event bus. Call once,
// before Start.
func (e *Engine) Attach(ctx context.Context) error {
	subs := []struct {
		kind    eventbus.Kind
		decoder eventbus.Handler
	}{
		{eventbus.KindTick, e.onTickRaw},
		{eventbus.KindOrder, e.onOrderRaw},
		{eventbus.KindTrade, e.onTradeRaw},
		{eventbus.KindPosition, e.onPositionRaw},
		{eventbus.KindTimer, e.onTimerRaw},
	}
	for _, s := range subs {
		if err := e.bus.Subscribe(ctx, s.kind, s.decoder); err != nil {
			return fmt.Errorf("engine: subscribe %s: %w", s.kind, err)
		}
	}
	return nil
}

// Start loads persisted settings and run-data and marks the engine
// running (§4.1).
func (e *Engine) Start() error {
	settings, err := e.store.LoadSettings()
	if err != nil {
		e.logError("start: load settings", err)
	}
	e.live.Set(settings)

	data, err := e.store.LoadRunData()
	if err != nil {
		e.logError("start: load run-data", err)
	}
	e.book.LoadAll(data.Positions)
	e.registry.LoadFollowMap(data.TradeIDOrderIDs)

	if settings.RunType == model.RunTypeTest && settings.TestSymbol != "" {
		gw := broker.SubscribeGatewayName(settings.SourceGateway, settings.TargetGateway)
		if e.brk.Subscribe(settings.TestSymbol, "", gw) {
			e.Logger.Info("engine: running in test mode, clock sourced from test symbol",
				zap.String("test_symbol", settings.TestSymbol))
		} else if e.Logger != nil {
			e.Logger.Warn("engine: test mode subscribe failed", zap.String("test_symbol", settings.TestSymbol))
		}
	}

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	return nil
}

// Stop persists settings and run-data unconditionally; if wall-clock is
// within the end-of-session window it additionally snapshots history
// and clears the clearable subset of run-data (§4.1). It does not
// cancel any working order.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.book.ClearEmpty()
	e.book.ClearExpired(e.catalog)

	if err := e.store.SaveSettings(e.live.Get()); err != nil {
		e.logError("stop: save settings", err)
	}

	data := config.RunData{TradeIDOrderIDs: e.registry.Snapshot(), Positions: e.book.Snapshot()}
	if err := e.store.SaveRunData(data); err != nil {
		e.logError("stop: save run-data", err)
	}

	e.saveTrades()

	if config.InEndOfSessionWindow(e.store.Clock()) {
		if err := e.store.SnapshotHistory(data); err != nil {
			e.logError("stop: snapshot history", err)
		}
		config.ClearClearable(&data)
		e.registry.ClearFollowMap()
		e.saveAccounts()
	}

	return nil
}

// saveTrades appends every trade currently known to the broker router
// to today's trade CSV, tagging each with which side of the follow
// relationship (source/target) and account id it belongs to.
func (e *Engine) saveTrades() {
	if e.trades == nil || e.brk == nil {
		return
	}
	settings := e.live.Get()
	gatewayInfo := map[string]struct {
		accountType persistence.AccountType
		accountID   string
	}{
		settings.SourceGateway: {persistence.AccountSource, firstAccountID(e.brk.AccountsFor(settings.SourceGateway))},
		settings.TargetGateway: {persistence.AccountTarget, firstAccountID(e.brk.AccountsFor(settings.TargetGateway))},
	}

	today := e.store.Clock().Format("20060102")
	for gatewayName, info := range gatewayInfo {
		for _, trade := range e.brk.TradesFor(gatewayName) {
			if err := e.trades.Append(today, trade, info.accountType, info.accountID); err != nil {
				e.logError("stop: save trade", err)
			}
		}
	}
}

func firstAccountID(accounts []broker.Account) string {
	if len(accounts) == 0 {
		return ""
	}
	return accounts[0].AccountID
}

// saveAccounts appends a snapshot row per known account to the daily
// account ledger, only within the end-of-session window (§4.1).
func (e *Engine) saveAccounts() {
	if e.accounts == nil || e.brk == nil {
		return
	}
	today := e.store.Clock().Format("20060102")
	for _, account := range e.brk.AllAccounts() {
		if err := e.accounts.Append(today, account); err != nil {
			e.logError("stop: save account info", err)
		}
	}
}

func (e *Engine) logError(where string, err error) {
	if e.Logger != nil {
		e.Logger.Error("engine: "+where, zap.Error(err))
	}
}

// SetParameter applies a single (name, value) mutation to the live
// settings and persists the result immediately, so a crash before the
// next clean stop does not lose it.
func (e *Engine) SetParameter(name config.ParamName, value interface{}) error {
	settings, err := e.live.Mutate(func(s *config.Settings) error {
		return config.ApplyParam(s, name, value)
	})
	if err != nil {
		return err
	}
	return e.store.SaveSettings(settings)
}

// SetPosition overrides one operator-settable field of a contract's
// position entry (basic_delta, source_traded_net, lost_follow_net).
func (e *Engine) SetPosition(cid model.ContractID, field string, value int) {
	e.book.SetField(cid.Key(), field, value)
}

func (e *Engine) SyncOpen(cid model.ContractID)            { e.plan.OpenLeg(cid) }
func (e *Engine) SyncClose(cid model.ContractID)           { e.plan.CloseLeg(cid) }
func (e *Engine) SyncBoth(cid model.ContractID)            { e.plan.Both(cid) }
func (e *Engine) SyncAll()                                 { e.plan.All() }
func (e *Engine) SyncNet(cid model.ContractID, basic bool) { e.plan.Net(cid, basic) }
func (e *Engine) CloseHedged(cid model.ContractID, quantity int) bool {
	return e.plan.CloseHedged(cid, quantity)
}

// gatewayFor resolves which configured gateway name an inbound event
// belongs to, matching exactly by string per §6 ("the engine routes by
// exact string match against configured source_gateway or
// target_gateway").
func (e *Engine) gatewayFor(name string) (source, target bool) {
	s := e.Settings()
	return name == s.SourceGateway, name == s.TargetGateway
}
