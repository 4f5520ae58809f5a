// Package config loads and persists the engine's two run-time documents:
// Settings (tunable parameters) and RunData (the follow map and position
// book), mirroring the vnpy module's follow_trading_setting.json and
// follow_trading_data.json.
package config

import "github.com/abdoElHodaky/followtrader/internal/model"

// Settings is the full set of engine-tunable parameters (§4.1). It is
// intentionally a flat struct rather than a string-keyed map: the
// command surface's SetParameter dispatches on a closed enum of field
// names (see ParamName in params.go), not on reflection.
type Settings struct {
	SourceGateway string `json:"source_gateway_name"`
	TargetGateway string `json:"target_gateway_name"`

	FollowTimeoutSeconds int `json:"filter_trade_timeout"`
	CancelOrderTimeout   int `json:"cancel_order_timeout"`
	MaxCancel            int `json:"max_cancel"`

	Multiplier   int                  `json:"multiples"`
	FollowBased  model.FollowBaseMode `json:"follow_based"`
	InverseFollow bool                `json:"inverse_follow"`

	OrderType    model.OrderType      `json:"order_type"`
	RunType      model.RunType        `json:"run_type"`
	TestSymbol   string               `json:"test_symbol"`

	TickAdd         int `json:"tick_add"`
	MustDoneTickAdd int `json:"must_done_tick_add"`

	IsChaseOrder           bool                 `json:"is_chase_order"`
	ChaseBaseLastOrderPrice bool                `json:"chase_base_last_order_price"`
	ChaseBasePrice         model.OrderBasePrice `json:"chase_base_price"`
	ChaseOrderTickAdd      int                  `json:"chase_order_tick_add"`
	ChaseOrderTimeout      int                  `json:"chase_order_timeout"`
	ChaseMaxResend         int                  `json:"chase_max_resend"`
	KeepOrderAfterChase    bool                 `json:"is_keep_order_after_chase"`

	SyncBasePrice model.OrderBasePrice `json:"sync_base_price"`

	IsIntradayTrading bool     `json:"is_intraday_trading"`
	IntradaySymbols   []string `json:"intraday_symbols"`
	SkipContracts     []string `json:"skip_contracts"`

	SingleMax     int            `json:"single_max"`
	SingleMaxDict map[string]int `json:"single_max_dict"`

	IsFilterOrderVolume bool  `json:"is_filter_order_vol"`
	OrderVolumesToFollow []int `json:"order_volumes_to_follow"`
}

// DefaultSettings returns the parameter defaults used when no settings
// file exists yet, matching the original module's constructor defaults.
func DefaultSettings() Settings {
	return Settings{
		SourceGateway:        "CTP",
		TargetGateway:        "RPC",
		FollowTimeoutSeconds: 60,
		CancelOrderTimeout:   10,
		MaxCancel:            3,
		Multiplier:           1,
		FollowBased:          model.FollowBaseTrade,
		SyncBasePrice:        model.BaseGoodForOther,
		TickAdd:              5,
		MustDoneTickAdd:      25,
		IsChaseOrder:         false,
		ChaseBaseLastOrderPrice: true,
		ChaseBasePrice:       model.BaseGoodForSelf,
		ChaseOrderTickAdd:    5,
		ChaseOrderTimeout:    10,
		ChaseMaxResend:       3,
		KeepOrderAfterChase:  false,
		IsIntradayTrading:    false,
		InverseFollow:        false,
		OrderType:            model.OrderTypeLimit,
		SingleMax:            1000,
		SingleMaxDict:        map[string]int{},
		IntradaySymbols:      []string{},
		SkipContracts:        []string{},
		IsFilterOrderVolume:  true,
		OrderVolumesToFollow: []int{1, 2},
		RunType:              model.RunTypeLive,
	}
}

// RunData is the persisted follow map and position book.
type RunData struct {
	// TradeIDOrderIDs maps a signal id (trade id, order id, or a
	// synthetic SYNC_/BASIC_ id) to its dispatched child order ids.
	TradeIDOrderIDs map[string][]string `json:"tradeid_orderids_dict"`

	// Positions maps a contract key to its position entry.
	Positions map[string]*model.PositionEntry `json:"positions"`
}

// NewRunData returns an empty run-data document.
func NewRunData() RunData {
	return RunData{
		TradeIDOrderIDs: map[string][]string{},
		Positions:       map[string]*model.PositionEntry{},
	}
}
