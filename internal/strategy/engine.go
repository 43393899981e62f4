package strategy

import (
	"fmt"

	"StagePlanner/internal/model"
	"StagePlanner/internal/planner"
)

// BlockedGrade is the fundamental grade that keeps a plan from being executed.
const BlockedGrade = "D"

// Evaluate classifies the snapshot and, when the zone calls for purchases, generates
// the matching plan: exponential in a drawdown, flat in an early rebound.
func Evaluate(snap model.MarketSnapshot, settings model.PlanSettings) (*model.Decision, error) {
	result, err := Classify(model.ZoneInput{
		ReferenceType:  snap.Reference.Type,
		ReferencePrice: snap.Reference.Price,
		CurrentPrice:   snap.CurrentPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", snap.Symbol, err)
	}

	d := &model.Decision{
		Symbol:   snap.Symbol,
		Snapshot: snap,
		Result:   result,
	}

	var mode model.PlanMode
	switch result.Strategy {
	case model.StrategyAccumulate:
		mode = model.ModeExponential
	case model.StrategyPeriodic:
		mode = model.ModeFlat
	case model.StrategyHoldExit:
		d.Note = "overextended from swing low: no new purchases, review exit"
		return d, nil
	default:
		d.Note = "near peak: hold, no new purchases"
		return d, nil
	}

	plan, err := planner.New(snap.Symbol, result.Strategy, settings.Params(snap.PeakPrice, mode))
	if err != nil {
		return nil, fmt.Errorf("generate plan %s: %w", snap.Symbol, err)
	}
	d.Plan = plan
	d.Executable = settings.Grade != BlockedGrade
	if !d.Executable {
		d.Note = fmt.Sprintf("fundamental grade %s: plan kept for reference only", settings.Grade)
	}
	return d, nil
}
