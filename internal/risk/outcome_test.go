package risk

import (
	"testing"

	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade(isLong bool) models.Trade {
	return models.Trade{
		ID:         "t1",
		UserID:     "u1",
		Symbol:     "BTCUSDT",
		IsLong:     isLong,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
		Status:     models.StatusOpen,
	}
}

func TestComputeOutcome(t *testing.T) {
	profile := models.NewRiskProfile(10000, 1000)

	testCases := []struct {
		name     string
		isLong   bool
		status   models.Status
		expected float64
	}{
		{name: "long target hit", isLong: true, status: models.StatusTargetHit, expected: 100},
		{name: "long stop-loss hit", isLong: true, status: models.StatusStopLossHit, expected: 50},
		// Short side: target below entry is a gain, stop-loss magnitude only.
		{name: "short stop-loss hit", isLong: false, status: models.StatusStopLossHit, expected: 50},
		{name: "short target hit", isLong: false, status: models.StatusTargetHit, expected: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trade := sampleTrade(tc.isLong)
			before := trade

			pl, err := ComputeOutcome(trade, profile, tc.status)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, pl)
			assert.Equal(t, before, trade)
		})
	}
}

func TestComputeOutcome_RoundsHalfAwayFromZero(t *testing.T) {
	// 1.2345% of 1000 = 12.345 -> 12.35
	trade := models.Trade{IsLong: true, EntryPrice: 100, TakeProfit: 101.2345, StopLoss: 98.7655}
	profile := models.NewRiskProfile(10000, 1000)

	win, err := ComputeOutcome(trade, profile, models.StatusTargetHit)
	require.NoError(t, err)
	assert.Equal(t, 12.35, win)

	loss, err := ComputeOutcome(trade, profile, models.StatusStopLossHit)
	require.NoError(t, err)
	assert.Equal(t, 12.35, loss)
}

func TestComputeOutcome_InvalidStatus(t *testing.T) {
	profile := models.NewRiskProfile(10000, 1000)
	for _, st := range []models.Status{models.StatusOpen, models.StatusClosed, models.Status("WHATEVER")} {
		_, err := ComputeOutcome(sampleTrade(true), profile, st)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	}
}

func TestComputeOutcome_InvalidEntry(t *testing.T) {
	trade := sampleTrade(true)
	trade.EntryPrice = 0
	_, err := ComputeOutcome(trade, models.NewRiskProfile(10000, 1000), models.StatusTargetHit)
	assert.ErrorIs(t, err, ErrInvalidTrade)
}

func TestComputeExitProfit(t *testing.T) {
	profile := models.NewRiskProfile(10000, 1000)

	pl, err := ComputeExitProfit(sampleTrade(true), profile, 104)
	require.NoError(t, err)
	assert.Equal(t, 40.0, pl)

	pl, err = ComputeExitProfit(sampleTrade(false), profile, 104)
	require.NoError(t, err)
	assert.Equal(t, -40.0, pl)
}
