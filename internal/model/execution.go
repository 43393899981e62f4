package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StepStatus tracks manual execution of a plan step.
type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepOrdered StepStatus = "ORDERED"
	StepFilled  StepStatus = "FILLED"
)

// StepExecution is the execution overlay for one plan step.
type StepExecution struct {
	Status    StepStatus      `json:"status"`
	OrderedAt *time.Time      `json:"ordered_at,omitempty"`
	FilledAt  *time.Time      `json:"filled_at,omitempty"`
	FillPrice decimal.Decimal `json:"fill_price"`
	Note      string          `json:"note,omitempty"`
}

// ExecutionLog is the overlay for one symbol's current plan.
type ExecutionLog struct {
	Symbol    string                 `json:"symbol"`
	PlanID    string                 `json:"plan_id"`
	StepCount int                    `json:"step_count"`
	Steps     map[int]*StepExecution `json:"steps"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TrackerState is the persisted state of all execution logs.
type TrackerState struct {
	Logs      map[string]*ExecutionLog `json:"logs"`
	UpdatedAt time.Time                `json:"updated_at"`
}
