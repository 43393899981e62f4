package model

import "github.com/shopspring/decimal"

// ReferenceType indicates which swing extreme the current price is measured against.
type ReferenceType string

const (
	ReferenceHigh ReferenceType = "high"
	ReferenceLow  ReferenceType = "low"
)

// Zone is the market position relative to the last confirmed swing extreme.
type Zone int

const (
	ZoneUnknown Zone = iota
	Zone1Overextended
	Zone2NearPeak
	Zone3Drawdown
	Zone4EarlyRebound
)

func (z Zone) String() string {
	switch z {
	case Zone1Overextended:
		return "Zone1_Overextended"
	case Zone2NearPeak:
		return "Zone2_NearPeak"
	case Zone3Drawdown:
		return "Zone3_Drawdown"
	case Zone4EarlyRebound:
		return "Zone4_EarlyRebound"
	default:
		return "Zone_Unknown"
	}
}

// ParseZone is the inverse of Zone.String.
func ParseZone(s string) Zone {
	for _, z := range []Zone{Zone1Overextended, Zone2NearPeak, Zone3Drawdown, Zone4EarlyRebound} {
		if z.String() == s {
			return z
		}
	}
	return ZoneUnknown
}

// Strategy is the recommended action for a zone.
type Strategy string

const (
	StrategyAccumulate Strategy = "ACCUMULATE" // exponential MCA schedule
	StrategyPeriodic   Strategy = "PERIODIC"   // flat DCA, reduced allocation
	StrategyHold       Strategy = "HOLD"       // no new purchases
	StrategyHoldExit   Strategy = "HOLD_EXIT"  // no new purchases, evaluate exit
)

// ZoneInput is the classifier input.
type ZoneInput struct {
	ReferenceType  ReferenceType
	ReferencePrice decimal.Decimal
	CurrentPrice   decimal.Decimal
}

// ZoneResult is the classifier output.
type ZoneResult struct {
	Zone          Zone
	Strategy      Strategy
	ChangePercent decimal.Decimal
}

// Decision is the full evaluation of one watched stock.
type Decision struct {
	Symbol     string
	Snapshot   MarketSnapshot
	Result     ZoneResult
	Plan       *Plan // nil when the strategy makes no purchases
	Executable bool
	Note       string
}
