package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when nothing has been recorded for a symbol.
var ErrNotFound = errors.New("recorder: not found")

// ZoneCheck holds the outcome of one daily classification.
type ZoneCheck struct {
	Symbol         string
	Zone           model.Zone
	Strategy       model.Strategy
	ReferenceType  model.ReferenceType
	ReferencePrice decimal.Decimal
	CurrentPrice   decimal.Decimal
	ChangePercent  decimal.Decimal
	PlanID         string // empty when no plan was generated
	Executable     bool
	CheckedAt      time.Time
}

// NewZoneCheck builds the record for an evaluated decision.
func NewZoneCheck(d *model.Decision) *ZoneCheck {
	zc := &ZoneCheck{
		Symbol:         d.Symbol,
		Zone:           d.Result.Zone,
		Strategy:       d.Result.Strategy,
		ReferenceType:  d.Snapshot.Reference.Type,
		ReferencePrice: d.Snapshot.Reference.Price,
		CurrentPrice:   d.Snapshot.CurrentPrice,
		ChangePercent:  d.Result.ChangePercent,
		Executable:     d.Executable,
		CheckedAt:      time.Now().UTC(),
	}
	if d.Plan != nil {
		zc.PlanID = d.Plan.ID
	}
	return zc
}

// setPrices parses the stored decimal columns of a zone check.
func (zc *ZoneCheck) setPrices(ref, current, change string) error {
	var err error
	if zc.ReferencePrice, err = decimal.NewFromString(ref); err != nil {
		return fmt.Errorf("reference price %q: %w", ref, err)
	}
	if zc.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return fmt.Errorf("current price %q: %w", current, err)
	}
	if zc.ChangePercent, err = decimal.NewFromString(change); err != nil {
		return fmt.Errorf("change percent %q: %w", change, err)
	}
	return nil
}

// Recorder persists plans and zone history.
type Recorder interface {
	// SavePlan stores plan as the current plan of its symbol, replacing any previous one.
	SavePlan(ctx context.Context, plan *model.Plan) error
	LatestPlan(ctx context.Context, symbol string) (*model.Plan, error)
	RecordZoneCheck(ctx context.Context, zc *ZoneCheck) error
	LastZone(ctx context.Context, symbol string) (*ZoneCheck, error)
	Close() error
}

var (
	_ Recorder = (*SQLiteRecorder)(nil)
	_ Recorder = (*DynamoRecorder)(nil)
	_ Recorder = (*NoopRecorder)(nil)
)
