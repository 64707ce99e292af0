package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/hustariz/rascarobingo/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrade(id, userID string) *models.Trade {
	return &models.Trade{
		ID:              id,
		UserID:          userID,
		Symbol:          "ETHUSDT",
		IsLong:          true,
		EntryPrice:      100,
		StopLoss:        95,
		TakeProfit:      110,
		RiskRewardRatio: 2,
		Status:          models.StatusOpen,
		TradeDate:       time.Now(),
	}
}

func TestTradeCRUD(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.NewDB(t))

	require.NoError(t, s.CreateTrade(ctx, newTrade("01A", "alice")))
	require.NoError(t, s.CreateTrade(ctx, newTrade("01B", "alice")))
	require.NoError(t, s.CreateTrade(ctx, newTrade("01C", "bob")))

	got, err := s.GetTrade(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.Nil(t, got.ExitPrice)

	trades, err := s.ListTrades(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "01B", trades[0].ID)

	assert.ErrorIs(t, s.DeleteTrade(ctx, "01C", "alice"), ErrNotFound)
	require.NoError(t, s.DeleteTrade(ctx, "01A", "alice"))

	_, err = s.GetTrade(ctx, "01A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkClosed_OnlyFromOpen(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.NewDB(t))
	trade := newTrade("01A", "alice")
	require.NoError(t, s.CreateTrade(ctx, trade))

	closedAt := time.Now()
	exit := 104.0
	trade.Status = models.StatusClosed
	trade.ExitPrice = &exit
	trade.ActualProfit = 40
	trade.ClosedAt = &closedAt
	require.NoError(t, s.MarkClosed(ctx, trade))

	got, err := s.GetTrade(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 104.0, *got.ExitPrice)
	assert.Equal(t, 40.0, got.ActualProfit)

	trade.Status = models.StatusTargetHit
	assert.ErrorIs(t, s.MarkClosed(ctx, trade), ErrNotOpen)

	got, err = s.GetTrade(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
}

func TestGetOrCreateUser(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.NewDB(t))

	_, err := s.GetUser(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	user, err := s.GetOrCreateUser(ctx, "alice", models.NewRiskProfile(10000, 1000))
	require.NoError(t, err)
	assert.Equal(t, 10000.0, user.RiskProfile.AccountSize)
	assert.Equal(t, 1000.0, user.RiskProfile.BaseTradeSize)

	// Existing users keep their profile.
	user.RiskProfile.AccountSize = 12000
	require.NoError(t, s.SaveProfile(ctx, user))
	again, err := s.GetOrCreateUser(ctx, "alice", models.NewRiskProfile(10000, 1000))
	require.NoError(t, err)
	assert.Equal(t, 12000.0, again.RiskProfile.AccountSize)
}

func TestGetOrCreateUser_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.NewDB(t))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetOrCreateUser(ctx, "alice", models.NewRiskProfile(10000, 1000))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)
}

func TestSaveProfile_Versioned(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.NewDB(t))

	user, err := s.GetOrCreateUser(ctx, "alice", models.NewRiskProfile(10000, 1000))
	require.NoError(t, err)
	stale := *user

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	user.RiskProfile.TradeStreak = -1
	user.RiskProfile.SLTaken = 1
	user.RiskProfile.DailyStats = models.DailyStats{LastTradeDate: &now, TradeCount: 1, Losses: 1, DailyLoss: 50}
	user.RiskProfile.TotalStats = models.TotalStats{Trades: 1, Losses: 1, TotalGain: -50, AverageRiskReward: 2}
	require.NoError(t, s.SaveProfile(ctx, user))
	assert.Equal(t, int64(1), user.Version)

	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, -1, got.RiskProfile.TradeStreak)
	assert.Equal(t, 1, got.RiskProfile.SLTaken)
	assert.Equal(t, 50.0, got.RiskProfile.DailyStats.DailyLoss)
	require.NotNil(t, got.RiskProfile.DailyStats.LastTradeDate)
	assert.True(t, now.Equal(*got.RiskProfile.DailyStats.LastTradeDate))
	assert.Equal(t, -50.0, got.RiskProfile.TotalStats.TotalGain)

	// Zero values are written too.
	got.RiskProfile.ResetDaily()
	require.NoError(t, s.SaveProfile(ctx, got))
	reset, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, reset.RiskProfile.TradeStreak)
	assert.Zero(t, reset.RiskProfile.SLTaken)
	assert.Nil(t, reset.RiskProfile.DailyStats.LastTradeDate)

	stale.RiskProfile.AccountSize = 1
	assert.ErrorIs(t, s.SaveProfile(ctx, &stale), ErrConflict)
}

func TestTransaction_RollsBackBothWrites(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewDB(t)
	s := New(db)

	trade := newTrade("01A", "alice")
	require.NoError(t, s.CreateTrade(ctx, trade))
	user, err := s.GetOrCreateUser(ctx, "alice", models.NewRiskProfile(10000, 1000))
	require.NoError(t, err)

	arm := storetest.FailWrites(t, db, "users", errors.New("disk full"))
	arm()

	err = s.Transaction(ctx, func(tx *Store) error {
		closed := *trade
		closed.Status = models.StatusTargetHit
		closed.ActualProfit = 100
		if err := tx.MarkClosed(ctx, &closed); err != nil {
			return err
		}
		next := *user
		next.RiskProfile.AccountSize = 10100
		return tx.SaveProfile(ctx, &next)
	})
	assert.ErrorContains(t, err, "disk full")

	got, err := s.GetTrade(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.Zero(t, got.ActualProfit)

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, u.RiskProfile.AccountSize)
	assert.Equal(t, int64(0), u.Version)
}
