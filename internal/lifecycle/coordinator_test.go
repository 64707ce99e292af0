package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hustariz/rascarobingo/internal/config"
	"github.com/hustariz/rascarobingo/internal/lock"
	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/hustariz/rascarobingo/internal/risk"
	"github.com/hustariz/rascarobingo/internal/store"
	"github.com/hustariz/rascarobingo/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	c     *Coordinator
	store *store.Store
	db    *gorm.DB

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.NewDB(t)
	st := store.New(db)
	f := &fixture{
		store: st,
		db:    db,
		now:   time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	cfg := config.Risk{DefaultAccountSize: 10000, DefaultBaseTradeSize: 1000}
	f.c = NewCoordinator(zap.NewNop(), cfg, st, lock.NewKeyedMutex(), time.UTC)
	f.c.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) open(t *testing.T, userID string, in NewTrade) *models.Trade {
	t.Helper()
	trade, err := f.c.CreateTrade(context.Background(), userID, in)
	require.NoError(t, err)
	return trade
}

func longTrade() NewTrade {
	return NewTrade{Symbol: "btcusdt", IsLong: true, EntryPrice: 100, StopLoss: 95, TakeProfit: 110}
}

func shortTrade() NewTrade {
	return NewTrade{Symbol: "ETHUSDT", IsLong: false, EntryPrice: 100, StopLoss: 105, TakeProfit: 90}
}

func TestCreateTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trade := f.open(t, "alice", longTrade())

	assert.Len(t, trade.ID, 26)
	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, models.StatusOpen, trade.Status)
	assert.Equal(t, 2.0, trade.RiskRewardRatio)

	profile, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, profile.AccountSize)
	assert.Equal(t, 1, profile.TotalStats.Trades)
	assert.Equal(t, 2.0, profile.TotalStats.AverageRiskReward)
}

func TestCreateTrade_Validation(t *testing.T) {
	f := newFixture(t)

	for name, in := range map[string]NewTrade{
		"no symbol":   {EntryPrice: 100, StopLoss: 95, TakeProfit: 110},
		"zero entry":  {Symbol: "BTCUSDT", StopLoss: 95, TakeProfit: 110},
		"zero stop":   {Symbol: "BTCUSDT", EntryPrice: 100, TakeProfit: 110},
		"zero target": {Symbol: "BTCUSDT", EntryPrice: 100, StopLoss: 95},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.c.CreateTrade(context.Background(), "alice", in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, "VALIDATION_FAILED", Code(err))
		})
	}
}

func TestCloseTrade_TargetHitLong(t *testing.T) {
	f := newFixture(t)
	trade := f.open(t, "alice", longTrade())

	res, err := f.c.CloseTrade(context.Background(), trade.ID, "alice", CloseRequest{Status: models.StatusTargetHit})
	require.NoError(t, err)

	assert.Equal(t, models.StatusTargetHit, res.Trade.Status)
	assert.Equal(t, 100.0, res.Trade.ActualProfit)
	require.NotNil(t, res.Trade.ClosedAt)

	p := res.Profile
	assert.Equal(t, 10100.0, p.AccountSize)
	assert.Equal(t, 1200.0, p.BaseTradeSize)
	assert.Equal(t, 1, p.TradeStreak)
	assert.Equal(t, 0, p.SLTaken)
	assert.Equal(t, 1, p.DailyStats.TradeCount)
	assert.Equal(t, 1, p.DailyStats.Wins)
	assert.Equal(t, 100.0, p.DailyStats.DailyProfit)
	assert.Equal(t, models.TotalStats{Trades: 1, Wins: 1, TotalGain: 100, AverageRiskReward: 2}, p.TotalStats)
}

func TestCloseTrade_StopLossShort(t *testing.T) {
	f := newFixture(t)
	trade := f.open(t, "alice", shortTrade())

	res, err := f.c.CloseTrade(context.Background(), trade.ID, "alice", CloseRequest{Status: models.StatusStopLossHit})
	require.NoError(t, err)

	assert.Equal(t, -50.0, res.Trade.ActualProfit)
	p := res.Profile
	assert.Equal(t, 9950.0, p.AccountSize)
	assert.Equal(t, 800.0, p.BaseTradeSize)
	assert.Equal(t, -1, p.TradeStreak)
	assert.Equal(t, 1, p.SLTaken)
	assert.Equal(t, 50.0, p.DailyStats.DailyLoss)
	assert.Equal(t, 1, p.TotalStats.Losses)
	assert.Equal(t, -50.0, p.TotalStats.TotalGain)
}

func TestCloseTrade_ManualExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.open(t, "alice", longTrade())

	_, err := f.c.CloseTrade(ctx, trade.ID, "alice", CloseRequest{Status: models.StatusClosed})
	assert.ErrorIs(t, err, ErrValidation)

	exit := 104.0
	res, err := f.c.CloseTrade(ctx, trade.ID, "alice", CloseRequest{Status: models.StatusClosed, ExitPrice: &exit})
	require.NoError(t, err)

	assert.Equal(t, models.StatusClosed, res.Trade.Status)
	assert.Equal(t, 40.0, res.Trade.ActualProfit)
	require.NotNil(t, res.Trade.ExitPrice)
	assert.Equal(t, 104.0, *res.Trade.ExitPrice)

	// Manual exits leave sizing and the day untouched.
	p := res.Profile
	assert.Equal(t, 10000.0, p.AccountSize)
	assert.Equal(t, 1000.0, p.BaseTradeSize)
	assert.Zero(t, p.TradeStreak)
	assert.Nil(t, p.DailyStats.LastTradeDate)
	assert.Equal(t, 1, p.TotalStats.Wins)
	assert.Equal(t, 40.0, p.TotalStats.TotalGain)
}

func TestCloseTrade_ManualExitWithProfitLoss(t *testing.T) {
	f := newFixture(t)
	trade := f.open(t, "alice", longTrade())

	pl := -12.345
	res, err := f.c.CloseTrade(context.Background(), trade.ID, "alice", CloseRequest{Status: models.StatusClosed, ProfitLoss: &pl})
	require.NoError(t, err)

	assert.Equal(t, -12.35, res.Trade.ActualProfit)
	assert.Nil(t, res.Trade.ExitPrice)
	assert.Equal(t, 1, res.Profile.TotalStats.Losses)
}

func TestCloseTrade_DailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, f.open(t, "alice", longTrade()).ID)
	}
	for _, id := range ids[:3] {
		_, err := f.c.CloseTrade(ctx, id, "alice", CloseRequest{Status: models.StatusStopLossHit})
		require.NoError(t, err)
	}

	before, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, before.SLTaken)
	assert.Equal(t, 512.0, before.BaseTradeSize)

	_, err = f.c.CloseTrade(ctx, ids[3], "alice", CloseRequest{Status: models.StatusStopLossHit})
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.Equal(t, "DAILY_LIMIT_EXCEEDED", Code(err))

	after, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	trade, err := f.c.GetTrade(ctx, ids[3], "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, trade.Status)

	// Winning is still allowed.
	_, err = f.c.CloseTrade(ctx, ids[3], "alice", CloseRequest{Status: models.StatusTargetHit})
	assert.NoError(t, err)
}

func TestCloseTrade_DayRollover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, f.open(t, "alice", longTrade()).ID)
	}
	for _, id := range ids[:3] {
		_, err := f.c.CloseTrade(ctx, id, "alice", CloseRequest{Status: models.StatusStopLossHit})
		require.NoError(t, err)
	}

	f.advance(24 * time.Hour)
	res, err := f.c.CloseTrade(ctx, ids[3], "alice", CloseRequest{Status: models.StatusStopLossHit})
	require.NoError(t, err)

	p := res.Profile
	assert.Equal(t, 1, p.SLTaken)
	assert.Equal(t, 1, p.DailyStats.TradeCount)
	assert.Equal(t, 1, p.DailyStats.Losses)
	assert.Equal(t, -3, p.TradeStreak)
	assert.Equal(t, 4, p.TotalStats.Losses)
}

func TestCloseTrade_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.open(t, "alice", longTrade())
	before, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)

	_, err = f.c.CloseTrade(ctx, trade.ID, "bob", CloseRequest{Status: models.StatusTargetHit})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.c.GetTrade(ctx, trade.ID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.c.GetTrade(ctx, trade.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)

	after, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCloseTrade_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.open(t, "alice", longTrade())

	_, err := f.c.CloseTrade(ctx, "01UNKNOWN", "alice", CloseRequest{Status: models.StatusTargetHit})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.c.CloseTrade(ctx, trade.ID, "alice", CloseRequest{Status: models.StatusOpen})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, "INVALID_STATUS", Code(err))

	_, err = f.c.CloseTrade(ctx, trade.ID, "alice", CloseRequest{Status: models.StatusTargetHit})
	require.NoError(t, err)
	closed, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)

	// A second close of the same trade is rejected every time and changes nothing.
	for i := 0; i < 2; i++ {
		_, err = f.c.CloseTrade(ctx, trade.ID, "alice", CloseRequest{Status: models.StatusStopLossHit})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	again, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, closed, again)
}

func TestCloseTrade_ConcurrentClosesAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A 100% target makes every profit equal the trade size, so no rounding is lost.
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, f.open(t, "alice", NewTrade{Symbol: "SOLUSDT", IsLong: true, EntryPrice: 100, StopLoss: 50, TakeProfit: 200}).ID)
	}

	var wg sync.WaitGroup
	profits := make(chan float64, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := f.c.CloseTrade(ctx, id, "alice", CloseRequest{Status: models.StatusTargetHit})
			if !assert.NoError(t, err) {
				return
			}
			profits <- res.Trade.ActualProfit
		}(id)
	}
	wg.Wait()
	close(profits)

	var got []float64
	for p := range profits {
		got = append(got, p)
	}
	sort.Float64s(got)
	assert.Equal(t, []float64{1000, 1200, 1440, 1728, 1728, 1728, 1728, 1728, 1728, 1728}, got)

	p, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 25736.0, p.AccountSize)
	assert.Equal(t, 1728.0, p.BaseTradeSize)
	assert.Equal(t, 3, p.TradeStreak)
	assert.Equal(t, 10, p.DailyStats.Wins)
	assert.Equal(t, 10, p.TotalStats.Wins)
}

func TestCloseTrade_PersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.open(t, "alice", longTrade())
	before, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)

	arm := storetest.FailWrites(t, f.db, "users", errors.New("disk full"))
	arm()

	_, err = f.c.CloseTrade(ctx, trade.ID, "alice", CloseRequest{Status: models.StatusTargetHit})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, "PERSISTENCE_FAILURE", Code(err))

	got, err := f.c.GetTrade(ctx, trade.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.Zero(t, got.ActualProfit)

	after, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTotalsMatchTradeHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.open(t, "alice", longTrade())
	b := f.open(t, "alice", shortTrade())
	c := f.open(t, "alice", NewTrade{Symbol: "ADAUSDT", IsLong: true, EntryPrice: 2, StopLoss: 1.5, TakeProfit: 3})
	d := f.open(t, "alice", longTrade())
	f.open(t, "bob", longTrade())

	check := func() {
		t.Helper()
		trades, err := f.c.ListTrades(ctx, "alice")
		require.NoError(t, err)
		p, err := f.c.GetProfile(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, risk.ComputeTotals(trades), p.TotalStats)
	}

	check()
	_, err := f.c.CloseTrade(ctx, a.ID, "alice", CloseRequest{Status: models.StatusTargetHit})
	require.NoError(t, err)
	check()
	_, err = f.c.CloseTrade(ctx, b.ID, "alice", CloseRequest{Status: models.StatusStopLossHit})
	require.NoError(t, err)
	check()
	exit := 2.5
	_, err = f.c.CloseTrade(ctx, c.ID, "alice", CloseRequest{Status: models.StatusClosed, ExitPrice: &exit})
	require.NoError(t, err)
	check()
	require.NoError(t, f.c.DeleteTrade(ctx, a.ID, "alice"))
	check()

	p, err := f.c.Recalculate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalStats.Trades)

	trades, err := f.c.ListTrades(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, d.ID, trades[0].ID)
}

func TestDeleteTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.open(t, "alice", longTrade())

	assert.ErrorIs(t, f.c.DeleteTrade(ctx, trade.ID, "bob"), ErrForbidden)
	require.NoError(t, f.c.DeleteTrade(ctx, trade.ID, "alice"))
	assert.ErrorIs(t, f.c.DeleteTrade(ctx, trade.ID, "alice"), ErrNotFound)

	p, err := f.c.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, p.TotalStats.Trades)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(store.ErrNotOpen), ErrInvalidTransition)
	assert.ErrorIs(t, translate(store.ErrConflict), ErrConflict)
	assert.ErrorIs(t, translate(risk.ErrInvalidTrade), ErrValidation)
	assert.ErrorIs(t, translate(errors.New("boom")), ErrPersistence)
	assert.Equal(t, ErrForbidden, translate(ErrForbidden))
	assert.Nil(t, translate(nil))
}
