package calculator

import (
	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
)

// krxTicks is the domestic tick table; each band applies to prices below its bound.
var krxTicks = []struct {
	Below decimal.Decimal
	Tick  decimal.Decimal
}{
	{decimal.NewFromInt(2_000), decimal.NewFromInt(1)},
	{decimal.NewFromInt(5_000), decimal.NewFromInt(5)},
	{decimal.NewFromInt(20_000), decimal.NewFromInt(10)},
	{decimal.NewFromInt(50_000), decimal.NewFromInt(50)},
	{decimal.NewFromInt(200_000), decimal.NewFromInt(100)},
	{decimal.NewFromInt(500_000), decimal.NewFromInt(500)},
}

var krxTopTick = decimal.NewFromInt(1_000)

// KRXTickSize returns the domestic tick size for a price level.
func KRXTickSize(price decimal.Decimal) decimal.Decimal {
	for _, band := range krxTicks {
		if price.LessThan(band.Below) {
			return band.Tick
		}
	}
	return krxTopTick
}

// TickSize resolves the tick for a price. Foreign prices use the caller-supplied
// constant; a zero foreignTick means no rounding and yields a zero tick.
func TickSize(price decimal.Decimal, market model.CurrencyMarket, foreignTick decimal.Decimal) decimal.Decimal {
	if market == model.MarketForeign {
		if foreignTick.IsPositive() {
			return foreignTick
		}
		return decimal.Zero
	}
	return KRXTickSize(price)
}

// RoundToTick rounds price to the nearest multiple of tick, halves rounding up.
// A non-positive tick returns price unchanged.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}
