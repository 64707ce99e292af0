package risk

import (
	"errors"
	"fmt"

	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidStatus is returned when a status other than an outcome reaches the calculator or policy.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTrade is returned when a trade cannot be priced (entry price <= 0).
	ErrInvalidTrade = errors.New("invalid trade")
)

// PercentMove returns the direction-adjusted move from entry to ref in percent.
// Longs gain when ref > entry, shorts gain when ref < entry.
func PercentMove(entry, ref float64, isLong bool) (decimal.Decimal, error) {
	if entry <= 0 {
		return decimal.Zero, fmt.Errorf("%w: entry price %v must be positive", ErrInvalidTrade, entry)
	}
	e := decimal.NewFromFloat(entry)
	move := decimal.NewFromFloat(ref).Sub(e)
	if !isLong {
		move = move.Neg()
	}
	return move.Div(e).Mul(decimal.NewFromInt(100)), nil
}

// ComputeOutcome prices an automatic outcome against the profile's current
// trade size. The result is the P/L magnitude rounded half away from zero to 2 dp.
func ComputeOutcome(trade models.Trade, profile models.RiskProfile, status models.Status) (float64, error) {
	var ref float64
	switch status {
	case models.StatusTargetHit:
		ref = trade.TakeProfit
	case models.StatusStopLossHit:
		ref = trade.StopLoss
	default:
		return 0, fmt.Errorf("%w: %q is not an outcome", ErrInvalidStatus, status)
	}

	pct, err := PercentMove(trade.EntryPrice, ref, trade.IsLong)
	if err != nil {
		return 0, err
	}
	pl := pct.Abs().
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(profile.BaseTradeSize)).
		Round(2)
	return pl.InexactFloat64(), nil
}

// ComputeExitProfit prices a manual exit. Unlike ComputeOutcome the result is signed.
func ComputeExitProfit(trade models.Trade, profile models.RiskProfile, exitPrice float64) (float64, error) {
	pct, err := PercentMove(trade.EntryPrice, exitPrice, trade.IsLong)
	if err != nil {
		return 0, err
	}
	pl := pct.Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(profile.BaseTradeSize)).
		Round(2)
	return pl.InexactFloat64(), nil
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
