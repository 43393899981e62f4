package scheduler

import (
	"context"
	"fmt"
	"sync"

	"StagePlanner/internal/config"
	"StagePlanner/internal/model"
	"StagePlanner/internal/strategy"
)

// evaluation is the outcome of collecting and evaluating one watch item.
type evaluation struct {
	index    int
	item     config.WatchItem
	decision *model.Decision
	err      error
}

// evaluateAll collects and evaluates every item using a pool of workers.
// Results come back in watchlist order; a failing item does not affect the others.
func (s *Scheduler) evaluateAll(ctx context.Context, items []config.WatchItem) []evaluation {
	if len(items) == 0 {
		return nil
	}
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	workCh := make(chan int, len(items))
	resultCh := make(chan evaluation, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				item := items[idx]
				d, err := s.evaluate(ctx, item)
				resultCh <- evaluation{index: idx, item: item, decision: d, err: err}
			}
		}()
	}

	for i := range items {
		workCh <- i
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]evaluation, len(items))
	for r := range resultCh {
		results[r.index] = r
	}
	return results
}

// evaluate collects a snapshot for item and evaluates it.
func (s *Scheduler) evaluate(ctx context.Context, item config.WatchItem) (*model.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.Collector.Collect(ctx, item.Target())
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", item.Symbol, err)
	}
	return strategy.Evaluate(*snap, item.Settings())
}

// Outcome is the result of evaluating one watchlist entry.
type Outcome struct {
	Symbol   string
	Decision *model.Decision
	Err      error
}

// EvaluateWatchlist evaluates every watch item without persisting or notifying.
func (s *Scheduler) EvaluateWatchlist(ctx context.Context) []Outcome {
	results := s.evaluateAll(ctx, s.Watchlist)
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = Outcome{Symbol: r.item.Symbol, Decision: r.decision, Err: r.err}
	}
	return out
}
