package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a journaled directional bet. It leaves OPEN exactly once.
type Trade struct {
	ID              string     `gorm:"primaryKey;size:26" json:"id"`
	UserID          string     `gorm:"size:64;not null;index:idx_trades_user_status" json:"userId"`
	Symbol          string     `gorm:"size:32;not null" json:"symbol"`
	IsLong          bool       `json:"isLong"`
	EntryPrice      float64    `gorm:"not null" json:"entryPrice"`
	StopLoss        float64    `gorm:"not null" json:"stopLoss"`
	TakeProfit      float64    `gorm:"not null" json:"takeProfit"`
	ExitPrice       *float64   `json:"exitPrice,omitempty"`
	Notes           string     `gorm:"type:text" json:"notes"`
	RiskRewardRatio float64    `json:"riskRewardRatio"`
	ActualProfit    float64    `json:"actualProfit"`
	Status          Status     `gorm:"size:16;not null;index:idx_trades_user_status" json:"status"`
	TradeDate       time.Time  `json:"tradeDate"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// RiskRewardRatio is |target-entry| / |stop-entry| rounded to 2 dp, or 0 when
// the stop sits on the entry.
func RiskRewardRatio(entry, stop, target float64) float64 {
	risk := math.Abs(stop - entry)
	if risk == 0 {
		return 0
	}
	reward := math.Abs(target - entry)
	return decimal.NewFromFloat(reward).
		Div(decimal.NewFromFloat(risk)).
		Round(2).
		InexactFloat64()
}
