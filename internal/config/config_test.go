package config

import (
	"os"
	"path/filepath"
	"testing"

	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  bot_token: "file-token"
  chat_id: "42"
workers: 2
watchlist:
  - symbol: "005930.KS"
    name: "Samsung Electronics"
    strength: 1.5
    start_drop_percent: 12.5
    steps: 6
    grade: b
  - symbol: "AAPL"
    market: FOREIGN
    foreign_tick: 0.01
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "0 0 8 * * 1", cfg.Schedule.WeeklyCron)
	assert.Equal(t, "KRW=X", cfg.DataSource.FXSymbol)
	require.Len(t, cfg.Watchlist, 2)

	samsung := cfg.Watchlist[0]
	assert.Equal(t, "domestic", samsung.Market)
	assert.Equal(t, "B", samsung.Grade)

	aapl := cfg.Watchlist[1]
	assert.Equal(t, "foreign", aapl.Market)
	assert.Equal(t, 1.0, aapl.Strength)
	assert.Equal(t, 12.0, aapl.StartDropPercent)
	assert.Equal(t, 5, aapl.Steps)
}

func TestLoad_ExplicitZeroPlanSettings(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
watchlist:
  - symbol: "005930.KS"
    start_drop_percent: 0
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	w := cfg.Watchlist[0]
	assert.Equal(t, 0.0, w.StartDropPercent)
	assert.Equal(t, 5, w.Steps)
	assert.Equal(t, 1.0, w.Strength)

	cfg, err = Load(writeConfig(t, `
watchlist:
  - symbol: "005930.KS"
    steps: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Watchlist[0].Steps)
	assert.ErrorContains(t, cfg.Validate(), "steps")

	cfg, err = Load(writeConfig(t, `
watchlist:
  - symbol: "005930.KS"
    strength: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Watchlist[0].Strength)
	assert.ErrorContains(t, cfg.Validate(), "strength")
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data/tracker_state.json", cfg.Tracker.StateFile)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("CRON_DAILY", "0 0 16 * * 1-5")
	t.Setenv("DYNAMODB_TABLE", "plans")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "0 0 16 * * 1-5", cfg.Schedule.DailyCron)
	assert.Equal(t, "plans", cfg.Database.DynamoTable)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "watchlist: [unclosed"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	valid := WatchItem{Symbol: "X", Market: "domestic", Strength: 1, StartDropPercent: 10, Steps: 3}
	tests := []struct {
		name   string
		mutate func(*WatchItem)
	}{
		{"empty symbol", func(w *WatchItem) { w.Symbol = "" }},
		{"bad market", func(w *WatchItem) { w.Market = "crypto" }},
		{"zero strength", func(w *WatchItem) { w.Strength = 0 }},
		{"no steps", func(w *WatchItem) { w.Steps = 0 }},
		{"drop 100", func(w *WatchItem) { w.StartDropPercent = 100 }},
		{"negative drop", func(w *WatchItem) { w.StartDropPercent = -1 }},
		{"negative flat", func(w *WatchItem) { w.FlatQuantity = -1 }},
		{"bad grade", func(w *WatchItem) { w.Grade = "E" }},
	}
	for _, tt := range tests {
		w := valid
		tt.mutate(&w)
		cfg := &Config{Workers: 1, Watchlist: []WatchItem{w}}
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	dup := &Config{Workers: 1, Watchlist: []WatchItem{valid, valid}}
	assert.ErrorContains(t, dup.Validate(), "duplicated")
}

func TestValidateNotifier(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateNotifier())
	cfg.Telegram.BotToken = "t"
	assert.Error(t, cfg.ValidateNotifier())
	cfg.Telegram.ChatID = "1"
	assert.NoError(t, cfg.ValidateNotifier())
}

func TestWatchItem_Conversions(t *testing.T) {
	w := WatchItem{Symbol: "005930.KS", Market: "domestic", Strength: 1.5, StartDropPercent: 12.5, Steps: 6, Grade: "D"}

	p := w.Params(decimal.NewFromInt(80000))
	assert.True(t, p.StartDropPercent.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, model.ModeExponential, p.Mode)
	assert.Equal(t, 6, p.Steps)
	assert.True(t, p.PeakPrice.Equal(decimal.NewFromInt(80000)))

	s := w.Settings()
	assert.Equal(t, "D", s.Grade)
	assert.True(t, s.ForeignTick.IsZero())

	target := w.Target()
	assert.Equal(t, model.MarketDomestic, target.Market)

	cfg := &Config{Watchlist: []WatchItem{w}}
	found, ok := cfg.Find("005930.ks")
	assert.True(t, ok)
	assert.Equal(t, w.Symbol, found.Symbol)
}
