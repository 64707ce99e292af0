package models

import "time"

// DailyStats is scoped to one calendar day and reset on rollover or by the nightly job.
type DailyStats struct {
	LastTradeDate *time.Time `json:"lastTradeDate"`
	TradeCount    int        `json:"tradeCount"`
	Wins          int        `json:"wins"`
	Losses        int        `json:"losses"`
	DailyProfit   float64    `json:"dailyProfit"`
	DailyLoss     float64    `json:"dailyLoss"`
}

// TotalStats is the lifetime aggregate, always recomputed from trade history.
type TotalStats struct {
	Trades            int     `json:"trades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	TotalGain         float64 `json:"totalGain"`
	AverageRiskReward float64 `json:"averageRiskReward"`
}

// RiskProfile is the per-user sizing, streak and statistics state.
type RiskProfile struct {
	AccountSize   float64    `json:"accountSize"`
	BaseTradeSize float64    `json:"baseTradeSize"`
	TradeStreak   int        `json:"tradeStreak"`
	SLTaken       int        `json:"slTaken"`
	DailyStats    DailyStats `gorm:"embedded;embeddedPrefix:daily_" json:"dailyStats"`
	TotalStats    TotalStats `gorm:"embedded;embeddedPrefix:total_" json:"totalStats"`
}

// User owns trades and carries the risk profile. Version guards concurrent writers.
type User struct {
	ID          string      `gorm:"primaryKey;size:64" json:"id"`
	RiskProfile RiskProfile `gorm:"embedded;embeddedPrefix:risk_" json:"riskManagement"`
	Version     int64       `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// NewRiskProfile returns a fresh profile with the configured starting sizes.
func NewRiskProfile(accountSize, baseTradeSize float64) RiskProfile {
	return RiskProfile{
		AccountSize:   accountSize,
		BaseTradeSize: baseTradeSize,
	}
}

// ResetDaily zeroes the day-scoped counters and the streak, keeping sizes.
func (p *RiskProfile) ResetDaily() {
	p.DailyStats = DailyStats{}
	p.SLTaken = 0
	p.TradeStreak = 0
}
