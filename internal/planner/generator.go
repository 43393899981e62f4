package planner

import (
	"math"
	"strconv"
	"time"

	"StagePlanner/internal/calculator"
	"StagePlanner/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxSafeQuantity is the largest quantity (per step or cumulative) a plan may hold.
// Beyond 2^53 float64 quantities stop being exact integers.
const MaxSafeQuantity int64 = 1 << 53

// growthDivisor sets the exponential schedule: quantity = strength × e^(step/3).
const growthDivisor = 3.0

var hundred = decimal.NewFromInt(100)

// Validate checks PlanParameters. An empty Mode means exponential.
func Validate(p model.PlanParameters) error {
	if !p.PeakPrice.IsPositive() {
		return invalid("peak_price", "must be positive")
	}
	if math.IsNaN(p.Strength) || math.IsInf(p.Strength, 0) || p.Strength <= 0 {
		return invalid("strength", "must be a positive finite number")
	}
	if p.Steps < 1 {
		return invalid("steps", "must be at least 1")
	}
	if p.StartDropPercent.IsNegative() || !p.StartDropPercent.LessThan(hundred) {
		return invalid("start_drop_percent", "must be in [0, 100)")
	}
	lastDrop := p.StartDropPercent.Add(decimal.NewFromInt(int64(p.Steps - 1)))
	if !lastDrop.LessThan(hundred) {
		return invalid("steps", "drive the drawdown to 100% or beyond")
	}
	switch p.Market {
	case model.MarketDomestic, model.MarketForeign:
	default:
		return invalid("market", "must be domestic or foreign")
	}
	switch p.Mode {
	case "", model.ModeExponential:
	case model.ModeFlat:
		if p.FlatQuantity < 1 {
			return invalid("flat_quantity", "must be at least 1 in flat mode")
		}
		if p.FlatQuantity > MaxSafeQuantity {
			return invalid("flat_quantity", "exceeds the safe integer range")
		}
	default:
		return invalid("mode", "must be exponential or flat")
	}
	if p.ForeignTick.IsNegative() {
		return invalid("foreign_tick", "must not be negative")
	}
	return nil
}

// Generate builds the ordered plan rows. It is a pure function of p: identical
// parameters always produce identical rows.
func Generate(p model.PlanParameters) ([]model.PlanStep, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	rows := make([]model.PlanStep, 0, p.Steps)
	var cumQty int64
	cumCost := decimal.Zero

	for i := 1; i <= p.Steps; i++ {
		drop := p.StartDropPercent.Add(decimal.NewFromInt(int64(i - 1)))
		raw := p.PeakPrice.Mul(decimal.NewFromInt(1).Sub(drop.Shift(-2)))
		tick := calculator.TickSize(raw, p.Market, p.ForeignTick)
		price := calculator.RoundToTick(raw, tick)
		if !price.IsPositive() {
			return nil, &NumericRangeError{Step: i, What: "price", Value: price.String()}
		}

		qty, err := stepQuantity(p, i)
		if err != nil {
			return nil, err
		}
		if cumQty > MaxSafeQuantity-qty {
			return nil, &NumericRangeError{Step: i, What: "cumulative quantity", Value: strconv.FormatInt(cumQty, 10) + "+" + strconv.FormatInt(qty, 10)}
		}

		cost := price.Mul(decimal.NewFromInt(qty))
		cumQty += qty
		cumCost = cumCost.Add(cost)

		rows = append(rows, model.PlanStep{
			Step:               i,
			DropPercent:        drop,
			RawPrice:           raw,
			TickSize:           tick,
			Price:              price,
			Quantity:           qty,
			StepCost:           cost,
			CumulativeQuantity: cumQty,
			CumulativeCost:     cumCost,
			AverageCost:        cumCost.Div(decimal.NewFromInt(cumQty)),
		})
	}
	return rows, nil
}

// stepQuantity truncates toward zero and never returns less than 1.
func stepQuantity(p model.PlanParameters, step int) (int64, error) {
	if p.Mode == model.ModeFlat {
		return p.FlatQuantity, nil
	}
	raw := p.Strength * math.Exp(float64(step)/growthDivisor)
	if math.IsInf(raw, 0) || math.IsNaN(raw) || raw >= float64(MaxSafeQuantity) {
		return 0, &NumericRangeError{Step: step, What: "quantity", Value: strconv.FormatFloat(raw, 'g', -1, 64)}
	}
	q := int64(math.Trunc(raw))
	if q < 1 {
		q = 1
	}
	return q, nil
}

// New generates a plan and wraps it with an ID and timestamp.
func New(symbol string, strategy model.Strategy, p model.PlanParameters) (*model.Plan, error) {
	rows, err := Generate(p)
	if err != nil {
		return nil, err
	}
	if p.Mode == "" {
		p.Mode = model.ModeExponential
	}
	return &model.Plan{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Strategy:  strategy,
		Params:    p,
		Steps:     rows,
		CreatedAt: time.Now().UTC(),
	}, nil
}
