package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"StagePlanner/internal/config"
	"StagePlanner/internal/model"
	"StagePlanner/internal/recorder"
	"StagePlanner/internal/tracker"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	snaps map[string]*model.MarketSnapshot
	calls int
}

func (f *fakeSource) Collect(_ context.Context, t model.WatchTarget) (*model.MarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	snap, ok := f.snaps[t.Symbol]
	if !ok {
		return nil, fmt.Errorf("no data for %s", t.Symbol)
	}
	cp := *snap
	return &cp, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func snap(symbol string, refType model.ReferenceType, ref, current int64) *model.MarketSnapshot {
	return &model.MarketSnapshot{
		Symbol:       symbol,
		Market:       model.MarketDomestic,
		CurrentPrice: decimal.NewFromInt(current),
		PeakPrice:    decimal.NewFromInt(80000),
		Reference:    model.SwingPoint{Type: refType, Price: decimal.NewFromInt(ref)},
	}
}

func item(symbol string) config.WatchItem {
	return config.WatchItem{Symbol: symbol, Market: "domestic", Strength: 1, StartDropPercent: 12, Steps: 5}
}

type fixture struct {
	s      *Scheduler
	src    *fakeSource
	sender *fakeSender
	rec    *recorder.SQLiteRecorder
	tm     *tracker.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	tm, err := tracker.NewManager(filepath.Join(t.TempDir(), "tracker.json"))
	require.NoError(t, err)

	src := &fakeSource{snaps: map[string]*model.MarketSnapshot{
		"AAA": snap("AAA", model.ReferenceHigh, 80000, 68000),
		"BBB": snap("BBB", model.ReferenceHigh, 80000, 79000),
	}}
	sender := &fakeSender{}
	watch := []config.WatchItem{item("AAA"), item("BBB"), item("CCC")}
	s := NewScheduler(context.Background(), src, tm, sender, rec, watch, 2)
	return &fixture{s: s, src: src, sender: sender, rec: rec, tm: tm}
}

func TestRunDaily_PersistsAndAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sum := f.s.RunDaily(ctx)
	assert.Equal(t, DailySummary{Evaluated: 2, Changed: 2, Failed: 1}, sum)
	assert.Len(t, f.sender.messages(), 3, "two zone alerts and one failure report")

	zc, err := f.rec.LastZone(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, model.Zone3Drawdown, zc.Zone)

	plan, err := f.rec.LatestPlan(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, zc.PlanID, plan.ID)
	execLog, ok := f.tm.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, plan.ID, execLog.PlanID)

	_, err = f.rec.LatestPlan(ctx, "BBB")
	assert.True(t, errors.Is(err, recorder.ErrNotFound), "near peak makes no plan")
}

func TestRunDaily_StableZoneKeepsPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.s.RunDaily(ctx)
	first, err := f.rec.LatestPlan(ctx, "AAA")
	require.NoError(t, err)
	require.NoError(t, f.tm.MarkFilled("AAA", 1, decimal.NewFromInt(70400), first.CreatedAt))

	sent := len(f.sender.messages())
	sum := f.s.RunDaily(ctx)
	assert.Zero(t, sum.Changed)
	assert.Len(t, f.sender.messages(), sent+1, "only the failure report")

	second, err := f.rec.LatestPlan(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	execLog, _ := f.tm.Get("AAA")
	assert.Equal(t, model.StepFilled, execLog.Steps[1].Status, "overlay kept")
}

func TestRunDaily_NewPeakReplacesPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.RunDaily(ctx)
	first, _ := f.rec.LatestPlan(ctx, "AAA")

	moved := snap("AAA", model.ReferenceHigh, 90000, 70000)
	moved.PeakPrice = decimal.NewFromInt(90000)
	f.src.mu.Lock()
	f.src.snaps["AAA"] = moved
	f.src.mu.Unlock()

	f.s.RunDaily(ctx)
	second, err := f.rec.LatestPlan(ctx, "AAA")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Params.PeakPrice.Equal(decimal.NewFromInt(90000)))
}

func TestEvaluateAll_OrderAndIsolation(t *testing.T) {
	f := newFixture(t)
	results := f.s.evaluateAll(context.Background(), f.s.Watchlist)
	require.Len(t, results, 3)
	assert.Equal(t, "AAA", results[0].item.Symbol)
	assert.NoError(t, results[0].err)
	assert.NoError(t, results[1].err)
	assert.Error(t, results[2].err)
	assert.Equal(t, 3, f.src.calls)
}

func TestEvaluateAll_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, r := range f.s.evaluateAll(ctx, f.s.Watchlist) {
		assert.ErrorIs(t, r.err, context.Canceled)
	}
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	f.s.RunDaily(context.Background())

	tests := []struct {
		command string
		want    string
	}{
		{"/help", "/fill SYMBOL STEP PRICE"},
		{"", "StagePlanner commands"},
		{"/zone aaa", "Zone3_Drawdown"},
		{"/zone ZZZ", "not on the watchlist"},
		{"/zone", "Usage: /zone"},
		{"/plan aaa", "70400"},
		{"/plan@planner_bot AAA", "67200"},
		{"/plan BBB", "No plan recorded for BBB"},
		{"/order AAA 1", "step 1 marked as ordered"},
		{"/order AAA x", "Invalid step"},
		{"/order AAA 9", "step out of range"},
		{"/fill AAA 1 70300", "step 1 filled at 70300"},
		{"/fill AAA 2 abc", "Invalid price"},
		{"/fill AAA 2", "Usage: /fill"},
		{"/fill BBB 1 100", "no plan attached"},
		{"/status", "1/5"},
	}
	for _, tt := range tests {
		got := f.s.HandleCommand(tt.command)
		assert.Contains(t, got, tt.want, "command %q", tt.command)
	}
}

func TestRegisterAll(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.RegisterAll("0 40 15 * * 1-5", "0 0 8 * * 1"))
	assert.Len(t, f.s.Cron.Entries(), 2)
	assert.Error(t, f.s.RegisterAll("not a cron", "0 0 8 * * 1"))
}

func TestWeeklyTask_SendsStatusAndPlans(t *testing.T) {
	f := newFixture(t)
	f.s.RunDaily(context.Background())
	before := len(f.sender.messages())

	f.s.weeklyTask()
	msgs := f.sender.messages()[before:]
	require.Len(t, msgs, 2, "status plus the single stored plan")
	assert.Contains(t, msgs[0], "Execution status")
	assert.Contains(t, msgs[1], "AAA")
}

func TestEvaluateWatchlist_NoSideEffects(t *testing.T) {
	f := newFixture(t)
	out := f.s.EvaluateWatchlist(context.Background())
	require.Len(t, out, 3)
	assert.Equal(t, "AAA", out[0].Symbol)
	require.NotNil(t, out[0].Decision.Plan)
	assert.Error(t, out[2].Err)

	assert.Empty(t, f.sender.messages())
	_, err := f.rec.LatestPlan(context.Background(), "AAA")
	assert.ErrorIs(t, err, recorder.ErrNotFound)
}

type failingSave struct {
	*recorder.SQLiteRecorder
}

func (f failingSave) SavePlan(context.Context, *model.Plan) error {
	return errors.New("disk full")
}

func TestRunDaily_UnsavedPlanNotTracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.RunDaily(ctx)
	before, ok := f.tm.Get("AAA")
	require.True(t, ok)
	require.NoError(t, f.tm.MarkOrdered("AAA", 1, time.Now()))

	f.src.mu.Lock()
	f.src.snaps["AAA"].PeakPrice = decimal.NewFromInt(90000)
	f.src.mu.Unlock()
	f.s.Recorder = failingSave{f.rec}
	f.s.RunDaily(ctx)

	after, ok := f.tm.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, before.PlanID, after.PlanID)
	assert.Equal(t, model.StepOrdered, after.Steps[1].Status)

	stored, err := f.rec.LatestPlan(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, before.PlanID, stored.ID)
}
