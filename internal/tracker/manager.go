package tracker

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownSymbol  = errors.New("tracker: no plan attached for symbol")
	ErrStepOutOfRange = errors.New("tracker: step out of range")
	ErrAlreadyFilled  = errors.New("tracker: step already filled")
)

// Manager records manual execution of plan steps with concurrency safety.
// The overlay is keyed by step index and never modifies the plan itself.
type Manager struct {
	mu       sync.Mutex
	state    *model.TrackerState
	filePath string
}

// NewManager creates a Manager, loading state from disk.
func NewManager(filePath string) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	m := &Manager{state: state, filePath: filePath}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Attach binds a plan to a symbol. Re-attaching the same plan ID is a no-op; a new plan
// ID replaces the overlay with all steps pending. Reports whether the overlay was reset.
func (m *Manager) Attach(symbol, planID string, steps int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.state.Logs[symbol]; ok && cur.PlanID == planID {
		return false
	}
	execLog := &model.ExecutionLog{
		Symbol:    symbol,
		PlanID:    planID,
		StepCount: steps,
		Steps:     make(map[int]*model.StepExecution, steps),
		UpdatedAt: time.Now().UTC(),
	}
	for i := 1; i <= steps; i++ {
		execLog.Steps[i] = &model.StepExecution{Status: model.StepPending}
	}
	m.state.Logs[symbol] = execLog
	m.persist()
	return true
}

// step returns the overlay entry; the caller holds mu.
func (m *Manager) step(symbol string, step int) (*model.ExecutionLog, *model.StepExecution, error) {
	execLog, ok := m.state.Logs[symbol]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if step < 1 || step > execLog.StepCount {
		return nil, nil, fmt.Errorf("%w: %d not in 1..%d", ErrStepOutOfRange, step, execLog.StepCount)
	}
	se, ok := execLog.Steps[step]
	if !ok {
		se = &model.StepExecution{Status: model.StepPending}
		execLog.Steps[step] = se
	}
	return execLog, se, nil
}

// MarkOrdered records that the order for a step was placed.
func (m *Manager) MarkOrdered(symbol string, step int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	execLog, se, err := m.step(symbol, step)
	if err != nil {
		return err
	}
	if se.Status == model.StepFilled {
		return fmt.Errorf("%w: step %d", ErrAlreadyFilled, step)
	}
	at = at.UTC()
	se.Status = model.StepOrdered
	se.OrderedAt = &at
	execLog.UpdatedAt = time.Now().UTC()
	m.persist()
	return nil
}

// MarkFilled records the actual fill price of a step.
func (m *Manager) MarkFilled(symbol string, step int, price decimal.Decimal, at time.Time) error {
	if !price.IsPositive() {
		return fmt.Errorf("fill price must be positive, got %s", price)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	execLog, se, err := m.step(symbol, step)
	if err != nil {
		return err
	}
	at = at.UTC()
	if se.OrderedAt == nil {
		se.OrderedAt = &at
	}
	se.Status = model.StepFilled
	se.FilledAt = &at
	se.FillPrice = price
	execLog.UpdatedAt = time.Now().UTC()
	m.persist()
	return nil
}

// SetNote attaches a free-form note to a step.
func (m *Manager) SetNote(symbol string, step int, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	execLog, se, err := m.step(symbol, step)
	if err != nil {
		return err
	}
	se.Note = note
	execLog.UpdatedAt = time.Now().UTC()
	m.persist()
	return nil
}

// Get returns a deep copy of a symbol's overlay.
func (m *Manager) Get(symbol string) (model.ExecutionLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	execLog, ok := m.state.Logs[symbol]
	if !ok {
		return model.ExecutionLog{}, false
	}
	cp := *execLog
	cp.Steps = make(map[int]*model.StepExecution, len(execLog.Steps))
	for i, se := range execLog.Steps {
		s := *se
		cp.Steps[i] = &s
	}
	return cp, true
}

// Symbols returns the symbols with an attached plan.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.state.Logs))
	for s := range m.state.Logs {
		out = append(out, s)
	}
	return out
}

// Summary aggregates filled steps against the plan they belong to.
type Summary struct {
	Symbol           string
	PlanID           string
	TotalSteps       int
	OrderedSteps     int
	FilledSteps      int
	FilledQuantity   int64
	FilledCost       decimal.Decimal
	AverageFillPrice decimal.Decimal // zero when nothing is filled
	NextStep         int             // first step not yet filled, 0 when complete
}

// Summary computes fill progress for plan. The plan must be the one attached to its symbol.
func (m *Manager) Summary(plan *model.Plan) (Summary, error) {
	execLog, ok := m.Get(plan.Symbol)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, plan.Symbol)
	}
	if execLog.PlanID != plan.ID {
		return Summary{}, fmt.Errorf("tracker: %s overlay belongs to plan %s, not %s", plan.Symbol, execLog.PlanID, plan.ID)
	}

	s := Summary{
		Symbol:     plan.Symbol,
		PlanID:     plan.ID,
		TotalSteps: len(plan.Steps),
		FilledCost: decimal.Zero,
	}
	for _, ps := range plan.Steps {
		se, ok := execLog.Steps[ps.Step]
		if !ok {
			se = &model.StepExecution{Status: model.StepPending}
		}
		switch se.Status {
		case model.StepFilled:
			s.FilledSteps++
			s.FilledQuantity += ps.Quantity
			s.FilledCost = s.FilledCost.Add(se.FillPrice.Mul(decimal.NewFromInt(ps.Quantity)))
		case model.StepOrdered:
			s.OrderedSteps++
		}
		if se.Status != model.StepFilled && s.NextStep == 0 {
			s.NextStep = ps.Step
		}
	}
	if s.FilledQuantity > 0 {
		s.AverageFillPrice = s.FilledCost.Div(decimal.NewFromInt(s.FilledQuantity))
	}
	return s, nil
}

// persist saves state; the caller holds mu.
func (m *Manager) persist() {
	m.state.UpdatedAt = time.Now().UTC()
	if err := m.save(); err != nil {
		log.Printf("[ERROR] failed to save tracker state: %v", err)
	}
}

func (m *Manager) save() error {
	return SaveState(m.filePath, m.state)
}
