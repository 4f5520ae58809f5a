package model

import "strings"

// ContractID is a (symbol, exchange) pair combined into a canonical key,
// e.g. "rb2410.SHFE". It is the key used throughout the engine for
// contracts, positions, and price entries.
type ContractID struct {
	Symbol   string
	Exchange string
}

// Key returns the canonical "SYMBOL.EXCHANGE" string used as a map key
// and as the vt_symbol wire value.
func (c ContractID) Key() string {
	return c.Symbol + "." + c.Exchange
}

func (c ContractID) String() string { return c.Key() }

// ParseContractID splits a canonical key back into symbol and exchange.
// Symbols never contain '.', so the split on the last dot is unambiguous.
func ParseContractID(key string) ContractID {
	idx := strings.LastIndexByte(key, '.')
	if idx < 0 {
		return ContractID{Symbol: key}
	}
	return ContractID{Symbol: key[:idx], Exchange: key[idx+1:]}
}

// ProductPrefix returns the alphabetic product prefix of a symbol,
// stopping at the first digit, e.g. "rb2410" -> "rb", "IF2312" -> "IF".
func ProductPrefix(symbol string) string {
	for i, r := range symbol {
		if r >= '0' && r <= '9' {
			return symbol[:i]
		}
	}
	return symbol
}

// ContractMeta is the subset of contract metadata the engine needs from
// the symbol catalog: enough to compute prices and to decide whether a
// position entry's contract has expired.
type ContractMeta struct {
	Symbol    string
	Exchange  string
	PriceTick float64
}
