package strategy

import (
	"StagePlanner/internal/model"
	"StagePlanner/internal/planner"

	"github.com/shopspring/decimal"
)

// ZoneThresholdPercent is the deviation from the reference extreme that separates zones.
var ZoneThresholdPercent = decimal.NewFromInt(12)

// Classify places the current price relative to the last confirmed swing extreme.
// A move of exactly ±12% falls into the drawdown (high reference) or overextended
// (low reference) zone.
func Classify(in model.ZoneInput) (model.ZoneResult, error) {
	if !in.ReferencePrice.IsPositive() {
		return model.ZoneResult{}, &planner.ValidationError{Field: "reference_price", Reason: "must be positive"}
	}
	if !in.CurrentPrice.IsPositive() {
		return model.ZoneResult{}, &planner.ValidationError{Field: "current_price", Reason: "must be positive"}
	}

	// Compare the absolute move against the threshold in exact decimal arithmetic;
	// the percentage itself is only reported.
	diff := in.CurrentPrice.Sub(in.ReferencePrice)
	bound := in.ReferencePrice.Mul(ZoneThresholdPercent.Shift(-2))
	change := diff.Div(in.ReferencePrice).Shift(2)

	var zone model.Zone
	switch in.ReferenceType {
	case model.ReferenceHigh:
		if diff.LessThanOrEqual(bound.Neg()) {
			zone = model.Zone3Drawdown
		} else {
			zone = model.Zone2NearPeak
		}
	case model.ReferenceLow:
		if diff.LessThan(bound) {
			zone = model.Zone4EarlyRebound
		} else {
			zone = model.Zone1Overextended
		}
	default:
		return model.ZoneResult{}, &planner.ValidationError{Field: "reference_type", Reason: "must be high or low"}
	}

	return model.ZoneResult{Zone: zone, Strategy: Recommend(zone), ChangePercent: change}, nil
}

// Recommend maps a zone to its strategy.
func Recommend(z model.Zone) model.Strategy {
	switch z {
	case model.Zone3Drawdown:
		return model.StrategyAccumulate
	case model.Zone4EarlyRebound:
		return model.StrategyPeriodic
	case model.Zone1Overextended:
		return model.StrategyHoldExit
	default:
		return model.StrategyHold
	}
}
