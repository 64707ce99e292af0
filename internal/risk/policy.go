package risk

import (
	"fmt"
	"time"

	"github.com/hustariz/rascarobingo/internal/config"
	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/shopspring/decimal"
)

// Policy holds the adaptive sizing parameters.
type Policy struct {
	MaxStreak      int     // streak clamp, also the resize cut-off
	MaxStopLosses  int     // stop-losses allowed per calendar day
	WinMultiplier  float64 // applied to the trade size on a target hit
	LossMultiplier float64 // applied to the trade size on a stop-loss hit
	MinTradeSize   float64
}

// DefaultPolicy is +/-3 streak, 3 stop-losses per day, x1.2 on wins and x0.8 on losses.
func DefaultPolicy() Policy {
	return Policy{
		MaxStreak:      3,
		MaxStopLosses:  3,
		WinMultiplier:  1.2,
		LossMultiplier: 0.8,
		MinTradeSize:   1,
	}
}

// PolicyFromConfig overlays the configured values on DefaultPolicy. Zero values keep the default.
func PolicyFromConfig(cfg config.Risk) Policy {
	p := DefaultPolicy()
	if cfg.MaxStreak > 0 {
		p.MaxStreak = cfg.MaxStreak
	}
	if cfg.MaxStopLossesPerDay > 0 {
		p.MaxStopLosses = cfg.MaxStopLossesPerDay
	}
	if cfg.WinMultiplier > 0 {
		p.WinMultiplier = cfg.WinMultiplier
	}
	if cfg.LossMultiplier > 0 {
		p.LossMultiplier = cfg.LossMultiplier
	}
	return p
}

// DailyLimitReached reports whether another stop-loss at time at must be refused.
// A counter left over from an earlier day does not count.
func (p Policy) DailyLimitReached(profile models.RiskProfile, at time.Time, loc *time.Location) bool {
	last := profile.DailyStats.LastTradeDate
	if last == nil || !SameDay(*last, at, loc) {
		return false
	}
	return profile.SLTaken >= p.MaxStopLosses
}

// Apply derives the next profile from an outcome closed at time at. pl is the
// magnitude returned by ComputeOutcome. The input profile is not modified.
//
// The resize decision looks at the streak before it is updated: the close that
// takes the streak to +/-MaxStreak is still resized, the next one is not.
func (p Policy) Apply(profile models.RiskProfile, status models.Status, pl float64, at time.Time, loc *time.Location) (models.RiskProfile, error) {
	if !status.IsOutcome() {
		return profile, fmt.Errorf("%w: %q is not an outcome", ErrInvalidStatus, status)
	}
	next := profile
	prev := profile.TradeStreak
	win := status == models.StatusTargetHit

	if win {
		if prev < p.MaxStreak {
			next.BaseTradeSize = p.resize(profile.BaseTradeSize, p.WinMultiplier)
		}
		next.TradeStreak = min(prev+1, p.MaxStreak)
		next.AccountSize = round(profile.AccountSize+pl, 0)
	} else {
		if prev > -p.MaxStreak {
			next.BaseTradeSize = p.resize(profile.BaseTradeSize, p.LossMultiplier)
		}
		next.TradeStreak = max(prev-1, -p.MaxStreak)
		next.AccountSize = max(round(profile.AccountSize-pl, 0), 0)
	}

	closedAt := at
	ds := profile.DailyStats
	if ds.LastTradeDate == nil || !SameDay(*ds.LastTradeDate, at, loc) {
		ds = models.DailyStats{}
		next.SLTaken = 0
	}
	ds.LastTradeDate = &closedAt
	ds.TradeCount++
	if win {
		ds.Wins++
		ds.DailyProfit = round(ds.DailyProfit+pl, 2)
	} else {
		ds.Losses++
		ds.DailyLoss = round(ds.DailyLoss+pl, 2)
		next.SLTaken = min(next.SLTaken+1, p.MaxStopLosses)
	}
	next.DailyStats = ds

	return next, nil
}

func (p Policy) resize(size, multiplier float64) float64 {
	v := decimal.NewFromFloat(size).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(0).
		InexactFloat64()
	return max(v, p.MinTradeSize)
}

// SameDay compares two instants by calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
