package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/abdoElHodaky/followtrader/internal/broker"
	"github.com/abdoElHodaky/followtrader/internal/builder"
	"github.com/abdoElHodaky/followtrader/internal/catalog"
	"github.com/abdoElHodaky/followtrader/internal/config"
	"github.com/abdoElHodaky/followtrader/internal/dispatch"
	"github.com/abdoElHodaky/followtrader/internal/filter"
	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/abdoElHodaky/followtrader/internal/offsetconv"
	"github.com/abdoElHodaky/followtrader/internal/persistence"
	"github.com/abdoElHodaky/followtrader/internal/position"
	"github.com/abdoElHodaky/followtrader/internal/pricing"
	"github.com/abdoElHodaky/followtrader/internal/syncplanner"
	"github.com/abdoElHodaky/followtrader/internal/tracker"
)

// fakeGateway is a narrow stand-in for a real broker connector,
// recording every request it is asked to send or cancel.
type fakeGateway struct {
	sent       []model.OrderRequest
	cancels    []string
	nextID     int
	sendErr    error
	subscribed []string
	trades     []model.Trade
	accounts   []broker.Account
}

func (g *fakeGateway) Subscribe(req broker.SubscribeRequest) bool {
	g.subscribed = append(g.subscribed, req.Symbol+"."+req.Exchange)
	return true
}

func (g *fakeGateway) SendOrder(req model.OrderRequest) (string, error) {
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.sent = append(g.sent, req)
	g.nextID++
	return fmt.Sprintf("ord-%d", g.nextID), nil
}

func (g *fakeGateway) CancelOrder(orderID string) error {
	g.cancels = append(g.cancels, orderID)
	return nil
}

func (g *fakeGateway) GetContract(symbol string) (model.ContractMeta, bool) {
	return model.ContractMeta{PriceTick: 1}, true
}
func (g *fakeGateway) GetOrder(orderID string) (model.Order, bool)    { return model.Order{}, false }
func (g *fakeGateway) GetAllActiveOrders(symbol string) []model.Order { return nil }
func (g *fakeGateway) GetAllTrades() []model.Trade                    { return g.trades }
func (g *fakeGateway) GetAllAccounts() []broker.Account               { return g.accounts }

// EngineTestSuite wires a complete Engine from real components (no
// mocks beyond the gateway at the broker boundary), matching the
// target gateway to a fakeGateway so dispatched orders can be
// observed directly.
type EngineTestSuite struct {
	suite.Suite

	eng    *Engine
	live   *config.Live
	store  *config.Store
	book   *position.Book
	prices *pricing.Cache
	gw     *fakeGateway
	router *broker.Router
	disp   *dispatch.Dispatcher
	trk    *tracker.Tracker
	plan   *syncplanner.Planner
	reg    *dispatch.Registry
}

func (s *EngineTestSuite) SetupTest() {
	settings := config.DefaultSettings()
	settings.IsFilterOrderVolume = false // tests use arbitrary volumes
	live := config.NewLive(settings)

	store := config.NewStore(s.T().TempDir(), nil)
	book := position.New(func() int { return live.Get().Multiplier }, func() bool { return live.Get().InverseFollow })
	prices := pricing.New()
	cat := catalog.New(func(symbol, exchange string) (model.ContractMeta, bool) {
		return model.ContractMeta{PriceTick: 1}, true
	}, time.Hour, time.Hour)

	gw := &fakeGateway{}
	router := broker.NewRouter()
	router.Register(settings.TargetGateway, gw)
	router.Register(settings.SourceGateway, gw)

	conv := offsetconv.New(func(key string) offsetconv.Holding {
		entry := book.Get(key)
		return offsetconv.Holding{
			YesterdayLong: entry.TargetLong, TodayLong: 0,
			YesterdayShort: entry.TargetShort, TodayShort: 0,
		}
	})

	registry := dispatch.NewRegistry()
	disp := dispatch.New(live.Get, prices, cat, conv, router, registry)
	disp.GatewayOf = func(string) string { return live.Get().TargetGateway }
	disp.Subscribe = func(symbol, exchange string) bool { return router.Subscribe(symbol, exchange, live.Get().TargetGateway) }

	dedup := filter.NewDedup()
	b := builder.New(live.Get, book)
	trk := tracker.New(live.Get, registry, disp, book, dedup)
	trk.Cancel = router.CancelOrder
	trk.GatewayOf = func(string) string { return live.Get().TargetGateway }
	plan := syncplanner.New(live.Get, book, disp)

	pipeline := filter.New(live.Get, registry.IsFollowed, func() time.Time { return time.Now() })

	trades := persistence.NewTradeWriter(store.Dir)
	accounts := persistence.NewAccountWriter(store.Dir)

	eng := New(Deps{
		Logger: nil, Store: store, Live: live, Bus: nil, Book: book, Prices: prices, Catalog: cat,
		Pipeline: pipeline, Dedup: dedup, Builder: b, Dispatcher: disp, Registry: registry,
		Tracker: trk, Planner: plan, Broker: router, Trades: trades, Accounts: accounts,
	})

	s.eng = eng
	s.live = live
	s.store = store
	s.book = book
	s.prices = prices
	s.gw = gw
	s.router = router
	s.disp = disp
	s.trk = trk
	s.plan = plan
	s.reg = registry
}

func (s *EngineTestSuite) quote(symbol, exchange string) {
	s.prices.OnTick(model.Tick{Symbol: symbol, Exchange: exchange, BidPrice1: 100, AskPrice1: 101, LimitUp: 110, LimitDown: 90})
}

func (s *EngineTestSuite) TestHandleSourceTrade_DispatchesScaledFollowOrder() {
	s.live.Mutate(func(st *config.Settings) error { st.Multiplier = 3; return nil })
	s.quote("rb2410", "SHFE")

	s.eng.handleSourceTrade(model.Trade{
		GatewayName: "CTP", TradeID: "t-1", Symbol: "rb2410", Exchange: "SHFE",
		Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 2, Price: 100,
	})
	s.disp.OnTimerTick()

	require.Len(s.T(), s.gw.sent, 1)
	assert.Equal(s.T(), 6, s.gw.sent[0].Volume)
	assert.True(s.T(), s.reg.IsFollowed("t-1"))
}

func (s *EngineTestSuite) TestHandleSourceTrade_AlreadyFollowedSignalDropped() {
	s.quote("rb2410", "SHFE")
	trade := model.Trade{
		GatewayName: "CTP", TradeID: "t-1", Symbol: "rb2410", Exchange: "SHFE",
		Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 1, Price: 100,
	}

	s.eng.handleSourceTrade(trade)
	s.disp.OnTimerTick()
	require.Len(s.T(), s.gw.sent, 1)

	// a repeated push for the same signal id must not dispatch again.
	s.eng.handleSourceTrade(trade)
	s.disp.OnTimerTick()
	assert.Len(s.T(), s.gw.sent, 1)
}

func (s *EngineTestSuite) TestHandleSourceOrder_OrderFollowMode_DedupAndHold() {
	s.live.Mutate(func(st *config.Settings) error { st.FollowBased = model.FollowBaseOrder; return nil })
	s.quote("rb2410", "SHFE")

	order := model.Order{
		GatewayName: "CTP", OrderID: "o-1", Symbol: "rb2410", Exchange: "SHFE",
		Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 2, Traded: 1,
		Status: model.StatusPartTraded,
	}
	s.eng.handleSourceOrder(order)
	s.disp.OnTimerTick()
	require.Len(s.T(), s.gw.sent, 1, "first push for an order id always passes dedup")

	// repeated push for the same still-active order id is deduped.
	s.eng.handleSourceOrder(order)
	s.disp.OnTimerTick()
	assert.Len(s.T(), s.gw.sent, 1)
}

func (s *EngineTestSuite) TestHandleSourceOrder_CancelledOrder_PropagatesToTracker() {
	s.live.Mutate(func(st *config.Settings) error {
		st.IsChaseOrder = true
		st.IsIntradayTrading = true
		return nil
	})
	s.quote("rb2410", "SHFE")
	// seed a same-day long position already bought, and target holding
	// to close against, so the opposing trade below decomposes into a
	// single must-done close leg (chase-eligible).
	s.book.SetField("rb2410.SHFE", "source_traded_net", 5)
	s.book.UpdateTargetPosition(model.Position{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionLong, Volume: 1})

	s.eng.handleSourceTrade(model.Trade{
		GatewayName: "CTP", TradeID: "t-1", Symbol: "rb2410", Exchange: "SHFE",
		Direction: model.DirectionShort, Offset: model.OffsetOpen, Volume: 1, Price: 100,
	})
	s.disp.OnTimerTick()
	require.Len(s.T(), s.gw.sent, 1)
	childID := s.reg.Children("t-1")[0]
	require.True(s.T(), s.reg.IsChaseOrder(childID))

	s.eng.handleSourceOrder(model.Order{
		GatewayName: "CTP", OrderID: "t-1", Status: model.StatusCancelled,
	})

	// the source leg cancelling removes chase eligibility from its
	// children and cancels them at the target gateway.
	assert.False(s.T(), s.reg.IsChaseOrder(childID))
	assert.Contains(s.T(), s.gw.cancels, childID)
}

func (s *EngineTestSuite) TestOnTimerRaw_TimeoutCancelsWorkingOrder() {
	s.live.Mutate(func(st *config.Settings) error { st.CancelOrderTimeout = 0; return nil })
	s.quote("rb2410", "SHFE")

	s.eng.handleSourceTrade(model.Trade{
		GatewayName: "CTP", TradeID: "t-1", Symbol: "rb2410", Exchange: "SHFE",
		Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 1, Price: 100,
	})
	require.NoError(s.T(), s.eng.onTimerRaw(nil))
	require.Len(s.T(), s.gw.sent, 1)
	childID := s.reg.Children("t-1")[0]

	// the target gateway's first status push is what starts the
	// tracker's timeout-cancel clock for the child order.
	report, err := json.Marshal(model.Order{
		GatewayName: s.live.Get().TargetGateway, OrderID: childID,
		Symbol: "rb2410", Exchange: "SHFE", Status: model.StatusNotTraded, Volume: 1,
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.eng.onOrderRaw(report))

	// CancelOrderTimeout=0 means every other tick crosses the
	// elapsed>threshold check (elapsed resets to 0 after a cancel).
	for i := 0; i < 4; i++ {
		require.NoError(s.T(), s.eng.onTimerRaw(nil))
	}
	assert.Contains(s.T(), s.gw.cancels, childID)
}

func (s *EngineTestSuite) TestStartStop_RoundTripsSettingsAndRunData() {
	require.NoError(s.T(), s.eng.Start())
	require.NoError(s.T(), s.eng.SetParameter(config.ParamMultiplier, 7))

	s.quote("rb2410", "SHFE")
	s.eng.handleSourceTrade(model.Trade{
		GatewayName: "CTP", TradeID: "t-1", Symbol: "rb2410", Exchange: "SHFE",
		Direction: model.DirectionLong, Offset: model.OffsetOpen, Volume: 1, Price: 100,
	})
	s.disp.OnTimerTick()
	require.NoError(s.T(), s.eng.Stop())

	loaded, err := s.store.LoadSettings()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 7, loaded.Multiplier)

	data, err := s.store.LoadRunData()
	require.NoError(s.T(), err)
	assert.Contains(s.T(), data.TradeIDOrderIDs, "t-1")
}

func (s *EngineTestSuite) TestSyncOpenLeg_IssuesSyntheticOrderThroughPlanner() {
	s.live.Mutate(func(st *config.Settings) error { st.RunType = model.RunTypeTest; return nil })
	s.quote("rb2410", "SHFE")
	s.book.UpdateSourcePosition(model.Position{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionLong, Volume: 5})

	s.eng.SyncOpen(model.ContractID{Symbol: "rb2410", Exchange: "SHFE"})
	s.disp.OnTimerTick()

	require.Len(s.T(), s.gw.sent, 1)
	assert.Equal(s.T(), model.OffsetOpen, s.gw.sent[0].Offset)
}

func (s *EngineTestSuite) TestStop_WritesTradeAndAccountCSVWithinEndOfSessionWindow() {
	s.gw.trades = []model.Trade{
		{GatewayName: s.live.Get().SourceGateway, TradeID: "t-1", Symbol: "rb2410", Exchange: "SHFE", Volume: 1},
	}
	s.gw.accounts = []broker.Account{{AccountID: "acct-1", Balance: 1000, Available: 900}}
	fixed := time.Date(2026, 7, 30, 15, 30, 0, 0, time.Local)
	s.store.Clock = func() time.Time { return fixed }

	require.NoError(s.T(), s.eng.Stop())

	tradeRaw, err := os.ReadFile(filepath.Join(s.store.Dir, "trade_20260730.csv"))
	require.NoError(s.T(), err)
	assert.Contains(s.T(), string(tradeRaw), "t-1")

	accountRaw, err := os.ReadFile(filepath.Join(s.store.Dir, "account_info.csv"))
	require.NoError(s.T(), err)
	assert.Contains(s.T(), string(accountRaw), "acct-1")
}

func (s *EngineTestSuite) TestStop_ClearsEmptyPositionsBeforeSnapshotting() {
	s.book.UpdateSourcePosition(model.Position{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionLong, Volume: 1})
	s.book.UpdateSourcePosition(model.Position{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionLong, Volume: 0})
	s.book.UpdateSourcePosition(model.Position{Symbol: "rb2410", Exchange: "SHFE", Direction: model.DirectionShort, Volume: 0})

	require.NoError(s.T(), s.eng.Stop())

	data, err := s.store.LoadRunData()
	require.NoError(s.T(), err)
	assert.NotContains(s.T(), data.Positions, "rb2410.SHFE")
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
