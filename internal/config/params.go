package config

import (
	"fmt"

	"github.com/abdoElHodaky/followtrader/internal/model"
)

// ParamName enumerates the tunable parameters exposed through the
// command surface's set_parameter(name, value) entry point (§9 design
// note: "implement as a tagged union / command variant, not
// string-keyed reflection"). ParamValue below is the corresponding
// closed variant of settable values.
type ParamName string

const (
	ParamSourceGateway        ParamName = "source_gateway_name"
	ParamTargetGateway        ParamName = "target_gateway_name"
	ParamFollowTimeoutSeconds ParamName = "filter_trade_timeout"
	ParamCancelOrderTimeout   ParamName = "cancel_order_timeout"
	ParamMaxCancel            ParamName = "max_cancel"
	ParamMultiplier           ParamName = "multiples"
	ParamFollowBased          ParamName = "follow_based"
	ParamInverseFollow        ParamName = "inverse_follow"
	ParamOrderType            ParamName = "order_type"
	ParamRunType              ParamName = "run_type"
	ParamTestSymbol           ParamName = "test_symbol"
	ParamTickAdd              ParamName = "tick_add"
	ParamMustDoneTickAdd      ParamName = "must_done_tick_add"
	ParamIsChaseOrder         ParamName = "is_chase_order"
	ParamChaseBaseLastOrderPrice ParamName = "chase_base_last_order_price"
	ParamChaseBasePrice       ParamName = "chase_base_price"
	ParamChaseOrderTickAdd    ParamName = "chase_order_tick_add"
	ParamChaseOrderTimeout    ParamName = "chase_order_timeout"
	ParamChaseMaxResend       ParamName = "chase_max_resend"
	ParamKeepOrderAfterChase  ParamName = "is_keep_order_after_chase"
	ParamSyncBasePrice        ParamName = "sync_base_price"
	ParamIsIntradayTrading    ParamName = "is_intraday_trading"
	ParamIntradaySymbols      ParamName = "intraday_symbols"
	ParamSkipContracts        ParamName = "skip_contracts"
	ParamSingleMax            ParamName = "single_max"
	ParamSingleMaxDict        ParamName = "single_max_dict"
	ParamIsFilterOrderVolume  ParamName = "is_filter_order_vol"
	ParamOrderVolumesToFollow ParamName = "order_volumes_to_follow"
)

// ApplyParam mutates s in place for the given (name, value) pair,
// returning an error if name is unknown or value has the wrong type for
// that parameter. Unlike Python's setattr(self, name, value), every
// branch is checked at compile time against the Settings struct shape.
func ApplyParam(s *Settings, name ParamName, value interface{}) error {
	switch name {
	case ParamSourceGateway:
		return setString(&s.SourceGateway, name, value)
	case ParamTargetGateway:
		return setString(&s.TargetGateway, name, value)
	case ParamFollowTimeoutSeconds:
		return setInt(&s.FollowTimeoutSeconds, name, value)
	case ParamCancelOrderTimeout:
		return setInt(&s.CancelOrderTimeout, name, value)
	case ParamMaxCancel:
		return setInt(&s.MaxCancel, name, value)
	case ParamMultiplier:
		return setInt(&s.Multiplier, name, value)
	case ParamFollowBased:
		v, ok := value.(model.FollowBaseMode)
		if !ok {
			return typeErr(name, value)
		}
		s.FollowBased = v
	case ParamInverseFollow:
		return setBool(&s.InverseFollow, name, value)
	case ParamOrderType:
		v, ok := value.(model.OrderType)
		if !ok {
			return typeErr(name, value)
		}
		s.OrderType = v
	case ParamRunType:
		v, ok := value.(model.RunType)
		if !ok {
			return typeErr(name, value)
		}
		s.RunType = v
	case ParamTestSymbol:
		return setString(&s.TestSymbol, name, value)
	case ParamTickAdd:
		return setInt(&s.TickAdd, name, value)
	case ParamMustDoneTickAdd:
		return setInt(&s.MustDoneTickAdd, name, value)
	case ParamIsChaseOrder:
		return setBool(&s.IsChaseOrder, name, value)
	case ParamChaseBaseLastOrderPrice:
		return setBool(&s.ChaseBaseLastOrderPrice, name, value)
	case ParamChaseBasePrice:
		v, ok := value.(model.OrderBasePrice)
		if !ok {
			return typeErr(name, value)
		}
		s.ChaseBasePrice = v
	case ParamChaseOrderTickAdd:
		return setInt(&s.ChaseOrderTickAdd, name, value)
	case ParamChaseOrderTimeout:
		return setInt(&s.ChaseOrderTimeout, name, value)
	case ParamChaseMaxResend:
		return setInt(&s.ChaseMaxResend, name, value)
	case ParamKeepOrderAfterChase:
		return setBool(&s.KeepOrderAfterChase, name, value)
	case ParamSyncBasePrice:
		v, ok := value.(model.OrderBasePrice)
		if !ok {
			return typeErr(name, value)
		}
		s.SyncBasePrice = v
	case ParamIsIntradayTrading:
		return setBool(&s.IsIntradayTrading, name, value)
	case ParamIntradaySymbols:
		v, ok := value.([]string)
		if !ok {
			return typeErr(name, value)
		}
		s.IntradaySymbols = v
	case ParamSkipContracts:
		v, ok := value.([]string)
		if !ok {
			return typeErr(name, value)
		}
		s.SkipContracts = v
	case ParamSingleMax:
		return setInt(&s.SingleMax, name, value)
	case ParamSingleMaxDict:
		v, ok := value.(map[string]int)
		if !ok {
			return typeErr(name, value)
		}
		s.SingleMaxDict = v
	case ParamIsFilterOrderVolume:
		return setBool(&s.IsFilterOrderVolume, name, value)
	case ParamOrderVolumesToFollow:
		v, ok := value.([]int)
		if !ok {
			return typeErr(name, value)
		}
		s.OrderVolumesToFollow = v
	default:
		return fmt.Errorf("config: unknown parameter %q", name)
	}
	return nil
}

func setString(dst *string, name ParamName, value interface{}) error {
	v, ok := value.(string)
	if !ok {
		return typeErr(name, value)
	}
	*dst = v
	return nil
}

func setInt(dst *int, name ParamName, value interface{}) error {
	v, ok := value.(int)
	if !ok {
		return typeErr(name, value)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, name ParamName, value interface{}) error {
	v, ok := value.(bool)
	if !ok {
		return typeErr(name, value)
	}
	*dst = v
	return nil
}

func typeErr(name ParamName, value interface{}) error {
	return fmt.Errorf("config: parameter %q rejects value of type %T", name, value)
}
