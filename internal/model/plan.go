package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyMarket selects the tick-rounding table.
type CurrencyMarket string

const (
	MarketDomestic CurrencyMarket = "domestic"
	MarketForeign  CurrencyMarket = "foreign"
)

// PlanMode selects how quantities grow from step to step.
type PlanMode string

const (
	ModeExponential PlanMode = "exponential"
	ModeFlat        PlanMode = "flat"
)

// PlanParameters is the immutable input of plan generation.
type PlanParameters struct {
	PeakPrice        decimal.Decimal `json:"peak_price"`
	Strength         float64         `json:"strength"`
	StartDropPercent decimal.Decimal `json:"start_drop_percent"`
	Steps            int             `json:"steps"`
	Market           CurrencyMarket  `json:"market"`
	Mode             PlanMode        `json:"mode"`
	FlatQuantity     int64           `json:"flat_quantity,omitempty"`
	ForeignTick      decimal.Decimal `json:"foreign_tick"` // zero: foreign prices pass through unrounded
}

// PlanStep is one row of a plan.
type PlanStep struct {
	Step               int             `json:"step"`
	DropPercent        decimal.Decimal `json:"drop_percent"`
	RawPrice           decimal.Decimal `json:"raw_price"`
	TickSize           decimal.Decimal `json:"tick_size"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int64           `json:"quantity"`
	StepCost           decimal.Decimal `json:"step_cost"`
	CumulativeQuantity int64           `json:"cumulative_quantity"`
	CumulativeCost     decimal.Decimal `json:"cumulative_cost"`
	AverageCost        decimal.Decimal `json:"average_cost"`
}

// Plan is the ordered sequence of steps generated from one PlanParameters.
type Plan struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Strategy  Strategy       `json:"strategy"`
	Params    PlanParameters `json:"params"`
	Steps     []PlanStep     `json:"steps"`
	CreatedAt time.Time      `json:"created_at"`
}

// Last returns the final step, or false for an empty plan.
func (p *Plan) Last() (PlanStep, bool) {
	if p == nil || len(p.Steps) == 0 {
		return PlanStep{}, false
	}
	return p.Steps[len(p.Steps)-1], true
}

// SameParams reports whether two plans were generated from identical parameters.
func (p *Plan) SameParams(o *Plan) bool {
	if p == nil || o == nil {
		return false
	}
	a, b := p.Params, o.Params
	return a.PeakPrice.Equal(b.PeakPrice) &&
		a.Strength == b.Strength &&
		a.StartDropPercent.Equal(b.StartDropPercent) &&
		a.Steps == b.Steps &&
		a.Market == b.Market &&
		a.Mode == b.Mode &&
		a.FlatQuantity == b.FlatQuantity &&
		a.ForeignTick.Equal(b.ForeignTick)
}

// PlanSettings are the user-tuned parts of PlanParameters; the peak price comes from
// market data at evaluation time.
type PlanSettings struct {
	Strength         float64
	StartDropPercent decimal.Decimal
	Steps            int
	Market           CurrencyMarket
	FlatQuantity     int64
	ForeignTick      decimal.Decimal
	Grade            string // fundamental grade A-D, supplied externally
}

// Params builds generator input for the given peak and mode.
func (s PlanSettings) Params(peak decimal.Decimal, mode PlanMode) PlanParameters {
	p := PlanParameters{
		PeakPrice:        peak,
		Strength:         s.Strength,
		StartDropPercent: s.StartDropPercent,
		Steps:            s.Steps,
		Market:           s.Market,
		Mode:             mode,
		ForeignTick:      s.ForeignTick,
	}
	if mode == ModeFlat {
		p.FlatQuantity = s.FlatQuantity
		if p.FlatQuantity == 0 {
			p.FlatQuantity = 1
		}
	}
	return p
}
