package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/followtrader/internal/broker"
	"github.com/abdoElHodaky/followtrader/internal/builder"
	"github.com/abdoElHodaky/followtrader/internal/catalog"
	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/dispatch"
	"github.com/abdoElHodaky/followtrader/internal/engine"
	"github.com/abdoElHodaky/followtrader/internal/eventbus"
	"github.com/abdoElHodaky/followtrader/internal/filter"
	"github.com/abdoElHodaky/followtrader/internal/metrics"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/offsetconv"
	"github.com/abdoElHodaky/followtrader/internal/persistence"
	"github.com/abdoElHodaky/followtrader/internal/position"
	"github.com/abdoElHodaky/followtrader/internal/pricing"
	"github.com/abdoElHodaky/followtrader/internal/syncplanner"
	"github.com/abdoElHodaky/followtrader/internal/tracker"
)

func main() {
	app := fx.New(
		fx.Provide(
			newLogger,
			newBootstrap,
			newStore,
			newLive,
			newEventBus,
			newBrokerRouter,
			newCatalog,
			newPositionBook,
			pricing.New,
			newFilterDedup,
			newFilterPipeline,
			newOffsetConverter,
			newBuilder,
			dispatch.NewRegistry,
			newDispatcher,
			newTracker,
			newPlanner,
			newTradeWriter,
			newAccountWriter,
			newPrometheusRegistry,
			metrics.New,
			newEngine,
		),
		fx.Invoke(registerHooks),
	)
	app.Run()
}

func newLogger() (*zap.Logger, error) { return zap.NewProduction() }

func newBootstrap() (config.Bootstrap, error) { return config.LoadBootstrap("") }

func newStore(b config.Bootstrap, logger *zap.Logger) *config.Store {
	return config.NewStore(b.DataDir, logger)
}

// newLive constructs the shared live-settings holder, seeded from
// whatever is currently persisted (or DefaultSettings if nothing has
// been saved yet). Engine.Start reloads and re-Sets it once the fx
// lifecycle begins; this seed only needs to be good enough for the
// other constructors below, which close over the same *config.Live.
func newLive(store *config.Store) *config.Live {
	settings, err := store.LoadSettings()
	if err != nil {
		settings = config.DefaultSettings()
	}
	return config.NewLive(settings)
}

func newEventBus(logger *zap.Logger) (*eventbus.Bus, error) {
	return eventbus.New(logger, eventbus.DefaultConfig())
}

// newBrokerRouter constructs an empty gateway router. Real gateway
// adapters (CTP, RPC, or any other broker connector) are out of scope
// for this core and register themselves against the router at
// deployment time via Router.Register.
func newBrokerRouter() *broker.Router { return broker.NewRouter() }

// newCatalog wires the symbol catalog to the broker router's
// GetContract, using the currently-configured source gateway to resolve
// metadata.
func newCatalog(router *broker.Router, live *config.Live) *catalog.Catalog {
	fetch := func(symbol, exchange string) (model.ContractMeta, bool) {
		return router.GetContract(symbol, live.Get().SourceGateway)
	}
	return catalog.New(fetch, 10*time.Minute, time.Minute)
}

// newPositionBook wires the position book's multiplier/inverse hooks to
// the live settings document, so a set_parameter change to either takes
// effect on the book's very next recompute.
func newPositionBook(live *config.Live) *position.Book {
	return position.New(
		func() int { return live.Get().Multiplier },
		func() bool { return live.Get().InverseFollow },
	)
}

func newFilterDedup() *filter.Dedup { return filter.NewDedup() }

func newFilterPipeline(live *config.Live, registry *dispatch.Registry) *filter.Pipeline {
	return filter.New(live.Get, registry.IsFollowed, time.Now)
}

func newOffsetConverter(book *position.Book) *offsetconv.BasicConverter {
	return offsetconv.New(func(key string) offsetconv.Holding {
		entry := book.Get(key)
		return offsetconv.Holding{
			YesterdayLong: entry.TargetLong, TodayLong: 0,
			YesterdayShort: entry.TargetShort, TodayShort: 0,
		}
	})
}

func newBuilder(live *config.Live, book *position.Book) *builder.Builder {
	return builder.New(live.Get, book)
}

func newDispatcher(
	live *config.Live, prices *pricing.Cache, cat *catalog.Catalog,
	conv *offsetconv.BasicConverter, router *broker.Router, registry *dispatch.Registry,
	m *metrics.Metrics,
) *dispatch.Dispatcher {
	d := dispatch.New(live.Get, prices, cat, conv, router, registry)
	d.Subscribe = func(symbol, exchange string) bool {
		s := live.Get()
		gw := broker.SubscribeGatewayName(s.SourceGateway, s.TargetGateway)
		return router.Subscribe(symbol, exchange, gw)
	}
	d.GatewayOf = func(string) string { return live.Get().TargetGateway }
	d.OnDispatched = m.DispatchedOrders.Inc
	d.OnSendFailure = m.SendFailures.Inc
	return d
}

func newTracker(
	live *config.Live, registry *dispatch.Registry, disp *dispatch.Dispatcher,
	book *position.Book, dedup *filter.Dedup, router *broker.Router, m *metrics.Metrics,
) *tracker.Tracker {
	t := tracker.New(live.Get, registry, disp, book, dedup)
	t.Cancel = router.CancelOrder
	t.GatewayOf = func(string) string { return live.Get().TargetGateway }
	t.OnCancel = m.CancelledOrders.Inc
	t.OnResend = m.ChaseResends.Inc
	t.ActiveGauge = func(n int) { m.ActiveOrders.Set(float64(n)) }
	return t
}

func newPlanner(
	live *config.Live, book *position.Book, disp *dispatch.Dispatcher,
	trk *tracker.Tracker, router *broker.Router,
) *syncplanner.Planner {
	p := syncplanner.New(live.Get, book, disp)
	p.PreCancel = func(contractKey string) {
		cid := model.ParseContractID(contractKey)
		gatewayName := live.Get().TargetGateway
		for _, o := range router.GetAllActiveOrders(cid.Symbol, gatewayName) {
			if trk.IsFailChase(o.OrderID) {
				_ = router.CancelOrder(o.OrderID, gatewayName)
			}
		}
	}
	return p
}

func newPrometheusRegistry() *prometheus.Registry { return prometheus.NewRegistry() }

// newTradeWriter and newAccountWriter write their CSV artifacts
// alongside the JSON settings/run-data documents, in the same data
// directory (§6).
func newTradeWriter(store *config.Store) *persistence.TradeWriter { return persistence.NewTradeWriter(store.Dir) }
func newAccountWriter(store *config.Store) *persistence.AccountWriter {
	return persistence.NewAccountWriter(store.Dir)
}

func newEngine(
	logger *zap.Logger, store *config.Store, live *config.Live, bus *eventbus.Bus, book *position.Book,
	prices *pricing.Cache, cat *catalog.Catalog, pipeline *filter.Pipeline, dedup *filter.Dedup,
	b *builder.Builder, disp *dispatch.Dispatcher, registry *dispatch.Registry,
	trk *tracker.Tracker, plan *syncplanner.Planner, router *broker.Router,
	trades *persistence.TradeWriter, accounts *persistence.AccountWriter,
) *engine.Engine {
	return engine.New(engine.Deps{
		Logger: logger, Store: store, Live: live, Bus: bus, Book: book, Prices: prices, Catalog: cat,
		Pipeline: pipeline, Dedup: dedup, Builder: b, Dispatcher: disp, Registry: registry,
		Tracker: trk, Planner: plan, Broker: router, Trades: trades, Accounts: accounts,
	})
}

func registerHooks(
	lc fx.Lifecycle, logger *zap.Logger, bus *eventbus.Bus, eng *engine.Engine,
	b config.Bootstrap, reg *prometheus.Registry,
) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: b.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := eng.Attach(ctx); err != nil {
				return err
			}
			go func() {
				if err := bus.Run(ctx); err != nil {
					logger.Error("event bus stopped", zap.Error(err))
				}
			}()
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server stopped", zap.Error(err))
				}
			}()
			return eng.Start()
		},
		OnStop: func(stopCtx context.Context) error {
			err := eng.Stop()
			_ = srv.Shutdown(stopCtx)
			_ = bus.Close()
			cancel()
			return err
		},
	})
}
