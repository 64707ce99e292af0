package risk

import (
	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/shopspring/decimal"
)

// ComputeTotals rebuilds lifetime statistics from the full trade history.
// Trades and the average risk/reward cover every trade; wins, losses and gain
// only count trades that have left OPEN. A manual exit is a win or a loss by
// the sign of its profit.
func ComputeTotals(trades []models.Trade) models.TotalStats {
	var stats models.TotalStats
	gain := decimal.Zero
	rr := decimal.Zero

	for _, t := range trades {
		stats.Trades++
		rr = rr.Add(decimal.NewFromFloat(t.RiskRewardRatio))

		switch t.Status {
		case models.StatusTargetHit:
			stats.Wins++
		case models.StatusStopLossHit:
			stats.Losses++
		case models.StatusClosed:
			if t.ActualProfit > 0 {
				stats.Wins++
			} else if t.ActualProfit < 0 {
				stats.Losses++
			}
		default:
			continue
		}
		gain = gain.Add(decimal.NewFromFloat(t.ActualProfit))
	}

	stats.TotalGain = gain.Round(2).InexactFloat64()
	if stats.Trades > 0 {
		stats.AverageRiskReward = rr.Div(decimal.NewFromInt(int64(stats.Trades))).Round(2).InexactFloat64()
	}
	return stats
}
