package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abdoElHodaky/followtrader/internal/model"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DaylightMarketEnd and NightMarketBegin bound the end-of-session
// auto-save window (§6). They default to the China futures trading
// calendar thresholds but are configurable per §9's open question.
var (
	DaylightMarketEnd = clockTime(15, 2)
	NightMarketBegin  = clockTime(20, 45)
)

func clockTime(hour, minute int) time.Duration {
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute
}

// InEndOfSessionWindow reports whether t's time-of-day falls in
// [DaylightMarketEnd, NightMarketBegin).
func InEndOfSessionWindow(t time.Time) bool {
	since := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	return since >= DaylightMarketEnd && since < NightMarketBegin
}

// Store loads and atomically persists the Settings and RunData
// documents, plus end-of-session history snapshots. Bootstrap knobs
// (directory layout) may additionally be sourced from viper-backed
// environment/YAML config by the caller; Store itself only owns the two
// JSON documents. The engine loads both at Start and saves both at Stop;
// the settings document is also saved on every SetParameter. Position
// changes and dispatches are not saved when they happen, only at Stop.
type Store struct {
	Dir    string // directory holding the two JSON documents
	Logger *zap.Logger
	Clock  func() time.Time
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{Dir: dir, Logger: logger, Clock: time.Now}
}

const (
	settingsFilename = "follow_trading_setting.json"
	dataFilename     = "follow_trading_data.json"
	historyDir       = "follow_history"
)

func (s *Store) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// LoadSettings reads the settings document, returning DefaultSettings
// when the file does not exist.
func (s *Store) LoadSettings() (Settings, error) {
	settings := DefaultSettings()
	path := filepath.Join(s.Dir, settingsFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("config: read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("config: decode settings: %w", err)
	}
	return settings, nil
}

// SaveSettings atomically replaces the settings document (write to a
// temp file, then rename).
func (s *Store) SaveSettings(settings Settings) error {
	return s.writeJSONAtomic(settingsFilename, settings)
}

// LoadRunData reads the run-data document, returning an empty document
// when the file does not exist.
func (s *Store) LoadRunData() (RunData, error) {
	data := NewRunData()
	path := filepath.Join(s.Dir, dataFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return data, fmt.Errorf("config: read run-data: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return NewRunData(), fmt.Errorf("config: decode run-data: %w", err)
	}
	if data.TradeIDOrderIDs == nil {
		data.TradeIDOrderIDs = map[string][]string{}
	}
	if data.Positions == nil {
		data.Positions = map[string]*model.PositionEntry{}
	}
	return data, nil
}

// SaveRunData atomically replaces the run-data document.
func (s *Store) SaveRunData(data RunData) error {
	return s.writeJSONAtomic(dataFilename, data)
}

func (s *Store) writeJSONAtomic(filename string, v interface{}) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", filename, err)
	}
	final := filepath.Join(s.Dir, filename)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", filename, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("config: rename %s: %w", filename, err)
	}
	return nil
}

// SnapshotHistory mirrors today's run-data into
// follow_history/YYYYMMDD_follow_trading_data.json, skipping the write
// if a snapshot for today already exists.
func (s *Store) SnapshotHistory(data RunData) error {
	today := s.now().Format("20060102")
	name := filepath.Join(historyDir, today+"_"+dataFilename)
	full := filepath.Join(s.Dir, name)
	if _, err := os.Stat(full); err == nil {
		if s.Logger != nil {
			s.Logger.Info("history snapshot already exists, skipping", zap.String("path", full))
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("config: create history dir: %w", err)
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal history snapshot: %w", err)
	}
	if err := os.WriteFile(full, payload, 0o644); err != nil {
		return fmt.Errorf("config: write history snapshot: %w", err)
	}
	return nil
}

// ClearClearable empties the subset of RunData that is session-local:
// the signal-to-children map. Positions are retained.
func ClearClearable(data *RunData) {
	data.TradeIDOrderIDs = map[string][]string{}
}

// LoadBootstrap reads process-level bootstrap knobs (data directory,
// metrics port) from followtrader.yaml / FOLLOWTRADER_* environment
// variables via viper. These are distinct from the engine's own
// Settings document: bootstrap knobs are read once at process start,
// while Settings are mutated at runtime through the command surface and
// persisted as JSON.
type Bootstrap struct {
	DataDir     string `mapstructure:"data_dir"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func LoadBootstrap(configPath string) (Bootstrap, error) {
	b := Bootstrap{DataDir: "./data", MetricsAddr: ":9090"}

	v := viper.New()
	v.SetConfigName("followtrader")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/followtrader")
	}
	v.SetEnvPrefix("FOLLOWTRADER")
	v.AutomaticEnv()
	v.SetDefault("data_dir", b.DataDir)
	v.SetDefault("metrics_addr", b.MetricsAddr)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return b, fmt.Errorf("config: read bootstrap config: %w", err)
		}
	}
	if err := v.Unmarshal(&b); err != nil {
		return b, fmt.Errorf("config: unmarshal bootstrap config: %w", err)
	}
	return b, nil
}
