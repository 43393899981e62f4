package collector

import (
	"context"
	"fmt"
	"time"

	"StagePlanner/internal/model"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaFetcher implements Fetcher for US-listed tickers via the Alpaca market data API.
type AlpacaFetcher struct {
	client *marketdata.Client
}

// NewAlpacaFetcher creates a fetcher. Empty credentials fall back to the
// APCA_API_KEY_ID / APCA_API_SECRET_KEY environment variables read by the SDK.
func NewAlpacaFetcher(apiKey, apiSecret string) *AlpacaFetcher {
	return &AlpacaFetcher{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

func (f *AlpacaFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// calendar days cover weekends and holidays
	start := time.Now().AddDate(0, 0, -(days*7/5 + 10))
	bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		Feed:      marketdata.IEX,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("alpaca: no bars for %s", symbol)
	}

	result := make([]model.OHLCV, 0, len(bars))
	for _, b := range bars {
		result = append(result, model.OHLCV{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	if len(result) > days {
		result = result[len(result)-days:]
	}
	return result, nil
}

func (f *AlpacaFetcher) FetchCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	trade, err := f.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: marketdata.IEX})
	if err != nil {
		return 0, fmt.Errorf("alpaca latest trade %s: %w", symbol, err)
	}
	if trade == nil {
		return 0, fmt.Errorf("alpaca: no trade for %s", symbol)
	}
	return trade.Price, nil
}
