// Package persistence writes the two CSV artifacts described in §6:
// a per-day trade ledger and a daily-appended account snapshot. Neither
// file is read back by the engine; they exist purely as an operator
// audit trail alongside the JSON settings/run-data documents that
// config.Store owns.
package persistence

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdoElHodaky/followtrader/internal/broker"
	"github.com/abdoElHodaky/followtrader/internal/model"
)

// AccountType distinguishes which side of the follow relationship a
// recorded trade or account snapshot belongs to.
type AccountType string

const (
	AccountSource AccountType = "source"
	AccountTarget AccountType = "target"
)

// TradeWriter appends one row per accumulated trade to
// trade_YYYYMMDD.csv in Dir.
type TradeWriter struct {
	Dir string
}

func NewTradeWriter(dir string) *TradeWriter { return &TradeWriter{Dir: dir} }

// Append writes one trade row, creating the file (with header) on
// first use for a given date. date is formatted YYYYMMDD.
func (w *TradeWriter) Append(date string, trade model.Trade, accountType AccountType, accountID string) error {
	path := filepath.Join(w.Dir, "trade_"+date+".csv")
	header := []string{"trade_id", "order_id", "symbol", "exchange", "direction", "offset", "price", "volume", "time", "account_type", "account_id"}
	row := []string{
		trade.TradeID, trade.OrderID, trade.Symbol, trade.Exchange,
		string(trade.Direction), string(trade.Offset),
		fmt.Sprintf("%g", trade.Price), fmt.Sprintf("%d", trade.Volume),
		trade.Time, string(accountType), accountID,
	}
	return appendRow(path, header, row)
}

// AccountWriter appends one row per account per day to
// account_info.csv in Dir, regardless of date (it is a single growing
// ledger, unlike the trade file which rolls daily).
type AccountWriter struct {
	Dir string
}

func NewAccountWriter(dir string) *AccountWriter { return &AccountWriter{Dir: dir} }

// Append writes one account snapshot row for date (YYYYMMDD).
func (w *AccountWriter) Append(date string, account broker.Account) error {
	path := filepath.Join(w.Dir, "account_info.csv")
	header := []string{"date", "account_id", "balance", "available"}
	row := []string{
		date, account.AccountID,
		fmt.Sprintf("%g", account.Balance), fmt.Sprintf("%g", account.Available),
	}
	return appendRow(path, header, row)
}

func appendRow(path string, header, row []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("persistence: create dir: %w", err)
	}
	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("persistence: write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("persistence: write row: %w", err)
	}
	w.Flush()
	return w.Error()
}
