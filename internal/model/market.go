package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SwingPoint is a confirmed local extreme of a price series.
type SwingPoint struct {
	Type  ReferenceType
	Price decimal.Decimal
	Time  time.Time
}

// MarketSnapshot is the market input for one watched stock.
type MarketSnapshot struct {
	Symbol        string
	Market        CurrencyMarket
	CurrentPrice  decimal.Decimal
	PeakPrice     decimal.Decimal
	SwingLowPrice decimal.Decimal
	Reference     SwingPoint
	FXRate        decimal.Decimal // KRW per unit of foreign currency, zero for domestic
	FetchedAt     time.Time
}

// WatchTarget describes what market data to gather for one watched stock.
type WatchTarget struct {
	Symbol           string
	Market           CurrencyMarket
	PeakLookbackDays int
	SwingWindow      int
}
