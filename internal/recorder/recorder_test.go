package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StagePlanner/internal/model"
	"StagePlanner/internal/planner"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan(t *testing.T, symbol string, peak int64) *model.Plan {
	t.Helper()
	plan, err := planner.New(symbol, model.StrategyAccumulate, model.PlanParameters{
		PeakPrice:        decimal.NewFromInt(peak),
		Strength:         1,
		StartDropPercent: decimal.NewFromInt(12),
		Steps:            5,
		Market:           model.MarketDomestic,
	})
	require.NoError(t, err)
	return plan
}

func sampleZone(symbol string, zone model.Zone, at time.Time) *ZoneCheck {
	return &ZoneCheck{
		Symbol:         symbol,
		Zone:           zone,
		Strategy:       model.StrategyAccumulate,
		ReferenceType:  model.ReferenceHigh,
		ReferencePrice: decimal.NewFromInt(80000),
		CurrentPrice:   decimal.NewFromInt(68000),
		ChangePercent:  decimal.NewFromInt(-15),
		PlanID:         "p-1",
		Executable:     true,
		CheckedAt:      at,
	}
}

func assertSamePlan(t *testing.T, want, got *model.Plan) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Strategy, got.Strategy)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.SameParams(got), "params differ: %+v vs %+v", want.Params, got.Params)
	require.Len(t, got.Steps, len(want.Steps))
	for i := range want.Steps {
		w, g := want.Steps[i], got.Steps[i]
		assert.Equal(t, w.Step, g.Step)
		assert.True(t, w.Price.Equal(g.Price))
		assert.Equal(t, w.Quantity, g.Quantity)
		assert.Equal(t, w.CumulativeQuantity, g.CumulativeQuantity)
		assert.True(t, w.AverageCost.Equal(g.AverageCost), "avg %s vs %s", w.AverageCost, g.AverageCost)
	}
}

func TestSQLiteRecorder_PlanReplace(t *testing.T) {
	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	_, err = r.LatestPlan(ctx, "005930.KS")
	assert.True(t, errors.Is(err, ErrNotFound))

	first := samplePlan(t, "005930.KS", 80000)
	require.NoError(t, r.SavePlan(ctx, first))
	second := samplePlan(t, "005930.KS", 90000)
	require.NoError(t, r.SavePlan(ctx, second))
	other := samplePlan(t, "000660.KS", 150000)
	require.NoError(t, r.SavePlan(ctx, other))

	got, err := r.LatestPlan(ctx, "005930.KS")
	require.NoError(t, err)
	assertSamePlan(t, second, got)

	var count int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM plan_steps WHERE plan_id = ?`, first.ID).Scan(&count))
	assert.Zero(t, count, "replaced plan's steps removed")

	got, err = r.LatestPlan(ctx, "000660.KS")
	require.NoError(t, err)
	assertSamePlan(t, other, got)
}

func TestSQLiteRecorder_ZoneChecks(t *testing.T) {
	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	_, err = r.LastZone(ctx, "X")
	assert.True(t, errors.Is(err, ErrNotFound))

	base := time.Date(2024, 5, 1, 6, 40, 0, 0, time.UTC)
	require.NoError(t, r.RecordZoneCheck(ctx, sampleZone("X", model.Zone2NearPeak, base)))
	require.NoError(t, r.RecordZoneCheck(ctx, sampleZone("X", model.Zone3Drawdown, base.Add(24*time.Hour))))

	zc, err := r.LastZone(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, model.Zone3Drawdown, zc.Zone)
	assert.True(t, zc.CheckedAt.Equal(base.Add(24*time.Hour)))
	assert.Equal(t, "-15", zc.ChangePercent.String())
	assert.True(t, zc.Executable)
	assert.Equal(t, "p-1", zc.PlanID)
}

func TestNewZoneCheck_FromDecision(t *testing.T) {
	plan := samplePlan(t, "X", 80000)
	d := &model.Decision{
		Symbol: "X",
		Snapshot: model.MarketSnapshot{
			CurrentPrice: decimal.NewFromInt(68000),
			Reference:    model.SwingPoint{Type: model.ReferenceHigh, Price: decimal.NewFromInt(80000)},
		},
		Result:     model.ZoneResult{Zone: model.Zone3Drawdown, Strategy: model.StrategyAccumulate, ChangePercent: decimal.NewFromInt(-15)},
		Plan:       plan,
		Executable: true,
	}
	zc := NewZoneCheck(d)
	assert.Equal(t, plan.ID, zc.PlanID)
	assert.Equal(t, model.Zone3Drawdown, zc.Zone)
	assert.Equal(t, "80000", zc.ReferencePrice.String())
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	ctx := context.Background()
	assert.NoError(t, r.SavePlan(ctx, &model.Plan{}))
	_, err := r.LatestPlan(ctx, "X")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.LastZone(ctx, "X")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, r.Close())
}

// fakeDynamo stores items by partition key.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]dynamotypes.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.Item["pk"].(*dynamotypes.AttributeValueMemberS).Value
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.Key["pk"].(*dynamotypes.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func TestDynamoRecorder_RoundTrip(t *testing.T) {
	fake := &fakeDynamo{items: map[string]map[string]dynamotypes.AttributeValue{}}
	r := NewDynamoRecorderWithClient(fake, "plans")
	ctx := context.Background()

	_, err := r.LatestPlan(ctx, "X")
	assert.ErrorIs(t, err, ErrNotFound)

	plan := samplePlan(t, "X", 80000)
	require.NoError(t, r.SavePlan(ctx, plan))
	got, err := r.LatestPlan(ctx, "X")
	require.NoError(t, err)
	assertSamePlan(t, plan, got)
	assert.Contains(t, fake.items, "PLAN#X")

	at := time.Date(2024, 5, 2, 6, 40, 0, 0, time.UTC)
	require.NoError(t, r.RecordZoneCheck(ctx, sampleZone("X", model.Zone4EarlyRebound, at)))
	zc, err := r.LastZone(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, model.Zone4EarlyRebound, zc.Zone)
	assert.True(t, zc.CheckedAt.Equal(at))
	assert.Equal(t, "80000", zc.ReferencePrice.String())
}

func TestLastZone_CorruptPriceIsError(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 2, 6, 40, 0, 0, time.UTC)

	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.RecordZoneCheck(ctx, sampleZone("X", model.Zone3Drawdown, at)))
	_, err = r.db.Exec(`UPDATE zone_checks SET current_price = 'n/a' WHERE symbol = 'X'`)
	require.NoError(t, err)
	_, err = r.LastZone(ctx, "X")
	assert.ErrorContains(t, err, "current price")

	fake := &fakeDynamo{items: map[string]map[string]dynamotypes.AttributeValue{}}
	d := NewDynamoRecorderWithClient(fake, "plans")
	require.NoError(t, d.RecordZoneCheck(ctx, sampleZone("X", model.Zone3Drawdown, at)))
	fake.items["ZONE#X"]["current_price"] = &dynamotypes.AttributeValueMemberS{Value: "n/a"}
	_, err = d.LastZone(ctx, "X")
	assert.ErrorContains(t, err, "current price")
}
