package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"StagePlanner/internal/config"
	"StagePlanner/internal/model"
	"StagePlanner/internal/notifier"
	"StagePlanner/internal/recorder"
	"StagePlanner/internal/tracker"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// SnapshotSource builds market snapshots; *collector.Collector implements it.
type SnapshotSource interface {
	Collect(ctx context.Context, t model.WatchTarget) (*model.MarketSnapshot, error)
}

// Sender delivers notifications; *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Collector SnapshotSource
	Tracker   *tracker.Manager
	Notifier  Sender
	Recorder  recorder.Recorder
	Watchlist []config.WatchItem
	Workers   int
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col SnapshotSource, tm *tracker.Manager, sender Sender, rec recorder.Recorder, watchlist []config.WatchItem, workers int) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Tracker:   tm,
		Notifier:  sender,
		Recorder:  rec,
		Watchlist: watchlist,
		Workers:   workers,
		Ctx:       ctx,
	}
}

// RegisterAll registers the daily zone check and the weekly plan summary.
func (s *Scheduler) RegisterAll(dailyCron, weeklyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if _, err := s.Cron.AddFunc(weeklyCron, s.weeklyTask); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDailyNow executes the daily task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	s.dailyTask()
}

// DailySummary counts the outcomes of one daily run.
type DailySummary struct {
	Evaluated int
	Changed   int
	Failed    int
}

func (s *Scheduler) dailyTask() {
	log.Println("[INFO] running daily zone check")
	sum := s.RunDaily(s.Ctx)
	log.Printf("[INFO] daily check done: %d evaluated, %d zone changes, %d failed",
		sum.Evaluated, sum.Changed, sum.Failed)
}

// RunDaily evaluates the whole watchlist, persists the results, and notifies on zone changes.
func (s *Scheduler) RunDaily(ctx context.Context) DailySummary {
	var (
		sum      DailySummary
		failures []string
	)
	for _, r := range s.evaluateAll(ctx, s.Watchlist) {
		if r.err != nil {
			log.Printf("[ERROR] daily %s: %v", r.item.Symbol, r.err)
			failures = append(failures, fmt.Sprintf("%s: %v", r.item.Symbol, r.err))
			sum.Failed++
			continue
		}
		sum.Evaluated++
		if s.apply(ctx, r.decision) {
			sum.Changed++
		}
	}
	if len(failures) > 0 {
		s.trySend(notifier.FormatError("daily zone check", errors.New(strings.Join(failures, "\n"))))
	}
	return sum
}

// apply persists a decision, binds its plan to the tracker, and sends an alert when the
// zone differs from the last recorded one. Reports whether the zone changed.
func (s *Scheduler) apply(ctx context.Context, d *model.Decision) bool {
	prev := model.ZoneUnknown
	if last, err := s.Recorder.LastZone(ctx, d.Symbol); err == nil {
		prev = last.Zone
	} else if !errors.Is(err, recorder.ErrNotFound) {
		log.Printf("[WARN] last zone %s: %v", d.Symbol, err)
	}

	if d.Plan != nil {
		if err := s.keepPlan(ctx, d); err != nil {
			log.Printf("[ERROR] save plan %s: %v", d.Symbol, err)
		} else if s.Tracker != nil && s.Tracker.Attach(d.Symbol, d.Plan.ID, len(d.Plan.Steps)) {
			log.Printf("[INFO] %s: tracking new plan %s", d.Symbol, d.Plan.ID)
		}
	}

	if err := s.Recorder.RecordZoneCheck(ctx, recorder.NewZoneCheck(d)); err != nil {
		log.Printf("[ERROR] record zone check %s: %v", d.Symbol, err)
	}

	if prev == d.Result.Zone {
		return false
	}
	log.Printf("[INFO] %s: zone %s -> %s", d.Symbol, prev, d.Result.Zone)
	s.trySend(notifier.FormatZoneChange(d, prev))
	return true
}

// keepPlan reuses the stored plan when it was generated from the same parameters, so its
// ID and execution overlay survive; otherwise the new plan replaces it. An error means
// the new plan was not stored and must not be tracked.
func (s *Scheduler) keepPlan(ctx context.Context, d *model.Decision) error {
	stored, err := s.Recorder.LatestPlan(ctx, d.Symbol)
	if err == nil && stored.Strategy == d.Plan.Strategy && stored.SameParams(d.Plan) {
		d.Plan = stored
		return nil
	}
	if err != nil && !errors.Is(err, recorder.ErrNotFound) {
		log.Printf("[WARN] latest plan %s: %v", d.Symbol, err)
	}
	return s.Recorder.SavePlan(ctx, d.Plan)
}

func (s *Scheduler) weeklyTask() {
	log.Println("[INFO] running weekly plan summary")
	s.trySend(s.statusReport(s.Ctx))
	for _, item := range s.Watchlist {
		plan, err := s.Recorder.LatestPlan(s.Ctx, item.Symbol)
		if err != nil {
			if !errors.Is(err, recorder.ErrNotFound) {
				log.Printf("[ERROR] weekly plan %s: %v", item.Symbol, err)
			}
			continue
		}
		s.trySend(notifier.FormatPlan(plan))
	}
}

// statusReport summarises execution progress of every tracked plan.
func (s *Scheduler) statusReport(ctx context.Context) string {
	if s.Tracker == nil {
		return notifier.FormatTrackerStatus(nil)
	}
	var summaries []tracker.Summary
	for _, sym := range s.Tracker.Symbols() {
		plan, err := s.Recorder.LatestPlan(ctx, sym)
		if err != nil {
			continue
		}
		sum, err := s.Tracker.Summary(plan)
		if err != nil {
			log.Printf("[WARN] summary %s: %v", sym, err)
			continue
		}
		summaries = append(summaries, sum)
	}
	return notifier.FormatTrackerStatus(summaries)
}

func (s *Scheduler) findItem(symbol string) (config.WatchItem, bool) {
	for _, w := range s.Watchlist {
		if strings.EqualFold(w.Symbol, symbol) {
			return w, true
		}
	}
	return config.WatchItem{}, false
}

// resolveSymbol maps user input to the watchlist spelling of a symbol.
func (s *Scheduler) resolveSymbol(input string) string {
	if w, ok := s.findItem(input); ok {
		return w.Symbol
	}
	return strings.ToUpper(input)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i] // /plan@my_bot
	}
	args := fields[1:]
	ctx := s.Ctx

	switch cmd {
	case "/zone":
		if len(args) != 1 {
			return "Usage: /zone SYMBOL"
		}
		item, ok := s.findItem(args[0])
		if !ok {
			return fmt.Sprintf("%s is not on the watchlist", args[0])
		}
		d, err := s.evaluate(ctx, item)
		if err != nil {
			return notifier.FormatError("zone "+item.Symbol, err)
		}
		return notifier.FormatDecision(d)

	case "/plan":
		if len(args) != 1 {
			return "Usage: /plan SYMBOL"
		}
		sym := s.resolveSymbol(args[0])
		plan, err := s.Recorder.LatestPlan(ctx, sym)
		if errors.Is(err, recorder.ErrNotFound) {
			return fmt.Sprintf("No plan recorded for %s", sym)
		}
		if err != nil {
			return notifier.FormatError("plan "+sym, err)
		}
		return notifier.FormatPlan(plan)

	case "/order", "/fill":
		if s.Tracker == nil {
			return "Execution tracking is disabled"
		}
		want := 2
		if cmd == "/fill" {
			want = 3
		}
		if len(args) != want {
			if cmd == "/fill" {
				return "Usage: /fill SYMBOL STEP PRICE"
			}
			return "Usage: /order SYMBOL STEP"
		}
		sym := s.resolveSymbol(args[0])
		step, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Sprintf("Invalid step %q", args[1])
		}
		now := time.Now()
		if cmd == "/order" {
			if err := s.Tracker.MarkOrdered(sym, step, now); err != nil {
				return notifier.FormatError("order "+sym, err)
			}
			return fmt.Sprintf("✅ %s step %d marked as ordered", sym, step)
		}
		price, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Sprintf("Invalid price %q", args[2])
		}
		if err := s.Tracker.MarkFilled(sym, step, price, now); err != nil {
			return notifier.FormatError("fill "+sym, err)
		}
		return fmt.Sprintf("✅ %s step %d filled at %s", sym, step, price)

	case "/status":
		return s.statusReport(ctx)

	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
