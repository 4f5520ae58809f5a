package model

import "time"

// Tick is a best-bid/best-ask/limit snapshot for a contract.
type Tick struct {
	Symbol    string
	Exchange  string
	DateTime  time.Time
	BidPrice1 float64
	AskPrice1 float64
	LimitUp   float64
	LimitDown float64
}

func (t Tick) ContractID() ContractID { return ContractID{Symbol: t.Symbol, Exchange: t.Exchange} }

// Order is a gateway order report.
type Order struct {
	GatewayName string
	OrderID     string
	Symbol      string
	Exchange    string
	Direction   Direction
	Offset      Offset
	Type        OrderType
	Price       float64
	Volume      int
	Traded      int
	Status      Status
	Time        string // HH:MM:SS, as pushed by the gateway
}

func (o Order) ContractID() ContractID { return ContractID{Symbol: o.Symbol, Exchange: o.Exchange} }

// IsActive reports whether the order is still working at the gateway.
func (o Order) IsActive() bool { return o.Status.IsActive() }

// Remaining is the unfilled quantity.
func (o Order) Remaining() int { return o.Volume - o.Traded }

// Trade is a gateway trade (fill) report.
type Trade struct {
	GatewayName string
	TradeID     string
	OrderID     string
	Symbol      string
	Exchange    string
	Direction   Direction
	Offset      Offset
	Price       float64
	Volume      int
	Time        string
}

func (t Trade) ContractID() ContractID { return ContractID{Symbol: t.Symbol, Exchange: t.Exchange} }

// SignedVolume returns the trade's volume signed by direction: positive
// for long, negative for short.
func (t Trade) SignedVolume() int { return SignedVolume(t.Direction, t.Volume) }

// Position is a gateway position snapshot for one leg of a contract.
type Position struct {
	GatewayName string
	Symbol      string
	Exchange    string
	Direction   Direction // long, short, or net (net snapshots are ignored)
	Volume      int
}

func (p Position) ContractID() ContractID { return ContractID{Symbol: p.Symbol, Exchange: p.Exchange} }

// OrderRequest is a pre-dispatch order, carrying a synthetic request id
// and a reference tag describing its role in the pipeline.
type OrderRequest struct {
	RequestID string
	Symbol    string
	Exchange  string
	Direction Direction
	Offset    Offset
	Type      OrderType
	Volume    int
	Price     float64
	Reference ReferenceTag
}

func (r OrderRequest) ContractID() ContractID { return ContractID{Symbol: r.Symbol, Exchange: r.Exchange} }

// Clone returns a shallow copy, used whenever the pipeline needs to
// mutate volume/price/offset without disturbing the original request.
func (r OrderRequest) Clone() OrderRequest { return r }
