package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"StagePlanner/internal/calculator"
	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
)

const (
	DefaultPeakLookbackDays = 250
	DefaultSwingWindow      = 5
	DefaultFXSymbol         = "KRW=X"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData []model.OHLCV
	Err       error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, days int) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	return generateMockBars(m.Price, days), nil
}

func (m *MockFetcher) FetchCurrentPrice(_ context.Context, _ string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Price, nil
}

// generateMockBars produces a rise to a peak at two thirds of the series followed by a decline.
func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	peak := count * 2 / 3
	for i := 0; i < count; i++ {
		d := i - peak
		if d < 0 {
			d = -d
		}
		p := basePrice * (1.15 - float64(d)*0.002)
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector gathers bars and quotes for a watch target and derives its swing reference.
type Collector struct {
	Domestic Fetcher
	Foreign  Fetcher
	FX       Fetcher // quotes FXSymbol; nil skips the conversion rate
	FXSymbol string
}

// NewCollector creates a Collector. A nil foreign fetcher falls back to the domestic one.
func NewCollector(domestic, foreign, fx Fetcher, fxSymbol string) *Collector {
	if foreign == nil {
		foreign = domestic
	}
	if fxSymbol == "" {
		fxSymbol = DefaultFXSymbol
	}
	return &Collector{Domestic: domestic, Foreign: foreign, FX: fx, FXSymbol: fxSymbol}
}

func (c *Collector) fetcherFor(market model.CurrencyMarket) Fetcher {
	if market == model.MarketForeign {
		return c.Foreign
	}
	return c.Domestic
}

// Collect fetches market data for the target and builds its snapshot.
func (c *Collector) Collect(ctx context.Context, t model.WatchTarget) (*model.MarketSnapshot, error) {
	lookback := t.PeakLookbackDays
	if lookback <= 0 {
		lookback = DefaultPeakLookbackDays
	}
	window := t.SwingWindow
	if window <= 0 {
		window = DefaultSwingWindow
	}

	f := c.fetcherFor(t.Market)
	bars, err := f.FetchDailyBars(ctx, t.Symbol, lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars: %w", err)
	}
	current, err := f.FetchCurrentPrice(ctx, t.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch current price: %w", err)
	}
	if current <= 0 {
		return nil, fmt.Errorf("%s: non-positive current price %v", t.Symbol, current)
	}

	peak, err := calculator.PeakHigh(bars, lookback)
	if err != nil {
		return nil, fmt.Errorf("peak high: %w", err)
	}
	ref, err := calculator.LastConfirmedSwing(bars, window)
	if err != nil {
		log.Printf("[WARN] %s: %v, using lookback peak as reference", t.Symbol, err)
		ref = model.SwingPoint{Type: model.ReferenceHigh, Price: decimal.NewFromFloat(peak)}
	}

	snap := &model.MarketSnapshot{
		Symbol:       t.Symbol,
		Market:       t.Market,
		CurrentPrice: decimal.NewFromFloat(current),
		PeakPrice:    decimal.NewFromFloat(peak),
		Reference:    ref,
		FetchedAt:    time.Now().UTC(),
	}
	if low, ok := calculator.LastConfirmed(bars, window, model.ReferenceLow); ok {
		snap.SwingLowPrice = low.Price
	}

	if t.Market == model.MarketForeign && c.FX != nil {
		if rate, err := c.FX.FetchCurrentPrice(ctx, c.FXSymbol); err != nil {
			log.Printf("[WARN] FX rate %s unavailable: %v", c.FXSymbol, err)
		} else {
			snap.FXRate = decimal.NewFromFloat(rate)
		}
	}
	return snap, nil
}
