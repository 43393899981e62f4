package calculator

import (
	"errors"
	"math"

	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
)

// PeakHigh scans the most recent lookback bars and returns the highest high.
func PeakHigh(bars []model.OHLCV, lookback int) (float64, error) {
	if len(bars) == 0 {
		return 0, errors.New("no bars provided")
	}
	if lookback <= 0 {
		return 0, errors.New("lookback must be positive")
	}
	n := len(bars)
	start := n - lookback
	if start < 0 {
		start = 0
	}
	high := math.Inf(-1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
	}
	return high, nil
}

// LastConfirmed returns the most recent confirmed swing of the given type.
// Bar i is a swing high when its high is the maximum of bars[i-window:i+window+1]
// (a swing low likewise for lows); it is confirmed once window bars have closed after it.
func LastConfirmed(bars []model.OHLCV, window int, typ model.ReferenceType) (model.SwingPoint, bool) {
	if window <= 0 {
		return model.SwingPoint{}, false
	}
	for i := len(bars) - 1 - window; i >= window; i-- {
		if isExtreme(bars, i, window, typ) {
			price := bars[i].High
			if typ == model.ReferenceLow {
				price = bars[i].Low
			}
			return model.SwingPoint{Type: typ, Price: decimal.NewFromFloat(price), Time: bars[i].Time}, true
		}
	}
	return model.SwingPoint{}, false
}

// LastConfirmedSwing returns whichever confirmed swing high or low is more recent.
func LastConfirmedSwing(bars []model.OHLCV, window int) (model.SwingPoint, error) {
	if window <= 0 {
		return model.SwingPoint{}, errors.New("window must be positive")
	}
	if len(bars) < 2*window+1 {
		return model.SwingPoint{}, errors.New("not enough bars to confirm a swing")
	}
	high, hasHigh := LastConfirmed(bars, window, model.ReferenceHigh)
	low, hasLow := LastConfirmed(bars, window, model.ReferenceLow)
	switch {
	case hasHigh && hasLow:
		if low.Time.After(high.Time) {
			return low, nil
		}
		return high, nil
	case hasHigh:
		return high, nil
	case hasLow:
		return low, nil
	default:
		return model.SwingPoint{}, errors.New("no confirmed swing in series")
	}
}

func isExtreme(bars []model.OHLCV, i, window int, typ model.ReferenceType) bool {
	for j := i - window; j <= i+window; j++ {
		if j == i {
			continue
		}
		if typ == model.ReferenceHigh && bars[j].High > bars[i].High {
			return false
		}
		if typ == model.ReferenceLow && bars[j].Low < bars[i].Low {
			return false
		}
	}
	return true
}
