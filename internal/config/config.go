package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"StagePlanner/internal/model"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// WatchItem is one stock on the watchlist with its plan settings.
type WatchItem struct {
	Symbol           string  `yaml:"symbol"`
	Name             string  `yaml:"name"`
	Market           string  `yaml:"market"`
	Strength         float64 `yaml:"strength"`
	StartDropPercent float64 `yaml:"start_drop_percent"`
	Steps            int     `yaml:"steps"`
	FlatQuantity     int64   `yaml:"flat_quantity"`
	ForeignTick      float64 `yaml:"foreign_tick"`
	PeakLookbackDays int     `yaml:"peak_lookback_days"`
	SwingWindow      int     `yaml:"swing_window"`
	Grade            string  `yaml:"grade"`
}

// UnmarshalYAML fills plan defaults before decoding, so only absent keys take them.
// An explicit zero is kept and left for Validate to judge.
func (w *WatchItem) UnmarshalYAML(value *yaml.Node) error {
	type plain WatchItem
	item := plain{
		Strength:         1.0,
		StartDropPercent: 12,
		Steps:            5,
	}
	if err := value.Decode(&item); err != nil {
		return err
	}
	*w = WatchItem(item)
	return nil
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		AlpacaKey       string  `yaml:"alpaca_key"`
		AlpacaSecret    string  `yaml:"alpaca_secret"`
		YahooRatePerSec float64 `yaml:"yahoo_rate_per_sec"`
		FXSymbol        string  `yaml:"fx_symbol"`
	} `yaml:"data_source"`
	Schedule struct {
		DailyCron  string `yaml:"daily_cron"`
		WeeklyCron string `yaml:"weekly_cron"`
	} `yaml:"schedule"`
	Tracker struct {
		StateFile string `yaml:"state_file"`
	} `yaml:"tracker"`
	Database struct {
		SQLitePath   string `yaml:"sqlite_path"`
		DynamoTable  string `yaml:"dynamo_table"`
		DynamoRegion string `yaml:"dynamo_region"`
	} `yaml:"database"`
	Proxy     string      `yaml:"proxy"`
	Workers   int         `yaml:"workers"`
	Watchlist []WatchItem `yaml:"watchlist"`
}

// Load reads .env and the YAML file, then applies environment variable overrides
// and defaults. A missing file of either kind is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.DataSource.AlpacaKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.DataSource.AlpacaSecret = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("CRON_WEEKLY"); v != "" {
		cfg.Schedule.WeeklyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Database.DynamoTable = v
	}
	if v := os.Getenv("TRACKER_STATE_FILE"); v != "" {
		cfg.Tracker.StateFile = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	// Defaults
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 40 15 * * 1-5" // after KRX close
	}
	if cfg.Schedule.WeeklyCron == "" {
		cfg.Schedule.WeeklyCron = "0 0 8 * * 1"
	}
	if cfg.DataSource.YahooRatePerSec == 0 {
		cfg.DataSource.YahooRatePerSec = 2
	}
	if cfg.DataSource.FXSymbol == "" {
		cfg.DataSource.FXSymbol = "KRW=X"
	}
	if cfg.Tracker.StateFile == "" {
		cfg.Tracker.StateFile = "data/tracker_state.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stage_planner.db"
	}
	if cfg.Database.DynamoRegion == "" {
		cfg.Database.DynamoRegion = "ap-northeast-2"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	for i := range cfg.Watchlist {
		w := &cfg.Watchlist[i]
		w.Market = strings.ToLower(w.Market)
		if w.Market == "" {
			w.Market = string(model.MarketDomestic)
		}
		w.Grade = strings.ToUpper(w.Grade)
	}

	return cfg, nil
}

// Validate checks the watchlist entries.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Watchlist))
	for i, w := range c.Watchlist {
		if w.Symbol == "" {
			return fmt.Errorf("watchlist[%d].symbol is required", i)
		}
		if seen[w.Symbol] {
			return fmt.Errorf("watchlist[%d].symbol %q is duplicated", i, w.Symbol)
		}
		seen[w.Symbol] = true

		switch model.CurrencyMarket(w.Market) {
		case model.MarketDomestic, model.MarketForeign:
		default:
			return fmt.Errorf("watchlist[%d].market must be domestic or foreign, got %q", i, w.Market)
		}
		if w.Strength <= 0 {
			return fmt.Errorf("watchlist[%d].strength must be positive", i)
		}
		if w.Steps < 1 {
			return fmt.Errorf("watchlist[%d].steps must be at least 1", i)
		}
		if w.StartDropPercent < 0 || w.StartDropPercent >= 100 {
			return fmt.Errorf("watchlist[%d].start_drop_percent must be in [0, 100)", i)
		}
		if w.FlatQuantity < 0 {
			return fmt.Errorf("watchlist[%d].flat_quantity must not be negative", i)
		}
		if w.ForeignTick < 0 {
			return fmt.Errorf("watchlist[%d].foreign_tick must not be negative", i)
		}
		switch w.Grade {
		case "", "A", "B", "C", "D":
		default:
			return fmt.Errorf("watchlist[%d].grade must be A-D, got %q", i, w.Grade)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// ValidateNotifier checks that the Telegram credentials needed by the daemon are set.
func (c *Config) ValidateNotifier() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// Find returns the watch item for a symbol, case-insensitively.
func (c *Config) Find(symbol string) (WatchItem, bool) {
	for _, w := range c.Watchlist {
		if strings.EqualFold(w.Symbol, symbol) {
			return w, true
		}
	}
	return WatchItem{}, false
}

// Target returns the market data request for this item.
func (w WatchItem) Target() model.WatchTarget {
	return model.WatchTarget{
		Symbol:           w.Symbol,
		Market:           model.CurrencyMarket(w.Market),
		PeakLookbackDays: w.PeakLookbackDays,
		SwingWindow:      w.SwingWindow,
	}
}

// Settings converts the item to plan settings. Float settings go through their
// shortest decimal representation, so 12.5 stays exactly 12.5.
func (w WatchItem) Settings() model.PlanSettings {
	return model.PlanSettings{
		Strength:         w.Strength,
		StartDropPercent: decimal.NewFromFloat(w.StartDropPercent),
		Steps:            w.Steps,
		Market:           model.CurrencyMarket(w.Market),
		FlatQuantity:     w.FlatQuantity,
		ForeignTick:      decimal.NewFromFloat(w.ForeignTick),
		Grade:            w.Grade,
	}
}

// Params builds exponential-mode generator input for the given peak price.
func (w WatchItem) Params(peak decimal.Decimal) model.PlanParameters {
	return w.Settings().Params(peak, model.ModeExponential)
}
