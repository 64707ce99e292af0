package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hustariz/rascarobingo/internal/config"
	"github.com/hustariz/rascarobingo/internal/id"
	"github.com/hustariz/rascarobingo/internal/lock"
	"github.com/hustariz/rascarobingo/internal/metrics"
	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/hustariz/rascarobingo/internal/risk"
	"github.com/hustariz/rascarobingo/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewTrade is the input for journaling a trade.
type NewTrade struct {
	Symbol     string     `json:"symbol"`
	IsLong     bool       `json:"isLong"`
	EntryPrice float64    `json:"entryPrice"`
	StopLoss   float64    `json:"stopLoss"`
	TakeProfit float64    `json:"takeProfit"`
	Notes      string     `json:"notes"`
	TradeDate  *time.Time `json:"tradeDate,omitempty"`
}

// CloseRequest moves a trade out of OPEN. ProfitLoss and ExitPrice only apply to CLOSED.
type CloseRequest struct {
	Status     models.Status `json:"status"`
	ProfitLoss *float64      `json:"profitLoss,omitempty"`
	ExitPrice  *float64      `json:"exitPrice,omitempty"`
}

// CloseResult echoes the committed trade and the requester's profile.
type CloseResult struct {
	Trade   models.Trade       `json:"trade"`
	Profile models.RiskProfile `json:"riskManagement"`
}

// Coordinator owns every write to trades and risk profiles made on behalf of a user.
// Writes for one user are serialized through the Locker and committed in one transaction.
type Coordinator struct {
	logger   *zap.Logger
	store    *store.Store
	locker   lock.Locker
	policy   risk.Policy
	defaults models.RiskProfile
	loc      *time.Location
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. loc is the zone that defines a trading day.
func NewCoordinator(logger *zap.Logger, cfg config.Risk, st *store.Store, locker lock.Locker, loc *time.Location) *Coordinator {
	if loc == nil {
		loc = time.Local
	}
	return &Coordinator{
		logger:   logger.Named("lifecycle"),
		store:    st,
		locker:   locker,
		policy:   risk.PolicyFromConfig(cfg),
		defaults: models.NewRiskProfile(cfg.DefaultAccountSize, cfg.DefaultBaseTradeSize),
		loc:      loc,
		now:      time.Now,
	}
}

// GetProfile returns the user's risk profile, creating it with defaults on first read.
func (c *Coordinator) GetProfile(ctx context.Context, userID string) (*models.RiskProfile, error) {
	user, err := c.store.GetOrCreateUser(ctx, userID, c.defaults)
	if err != nil {
		return nil, c.fail("get_profile", err, zap.String("user_id", userID))
	}
	return &user.RiskProfile, nil
}

// GetTrade returns a trade owned by requesterID.
func (c *Coordinator) GetTrade(ctx context.Context, tradeID, requesterID string) (*models.Trade, error) {
	trade, err := c.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, c.fail("get_trade", err, zap.String("trade_id", tradeID))
	}
	if trade.UserID != requesterID {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ErrForbidden)
	}
	return trade, nil
}

// ListTrades returns the trades of userID, newest first.
func (c *Coordinator) ListTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	trades, err := c.store.ListTrades(ctx, userID)
	if err != nil {
		return nil, c.fail("list_trades", err, zap.String("user_id", userID))
	}
	return trades, nil
}

// CreateTrade journals an OPEN trade and refreshes the owner's lifetime stats.
func (c *Coordinator) CreateTrade(ctx context.Context, userID string, in NewTrade) (*models.Trade, error) {
	if err := validateNewTrade(in); err != nil {
		return nil, err
	}

	now := c.now()
	trade := models.Trade{
		ID:              id.New(),
		UserID:          userID,
		Symbol:          strings.ToUpper(strings.TrimSpace(in.Symbol)),
		IsLong:          in.IsLong,
		EntryPrice:      in.EntryPrice,
		StopLoss:        in.StopLoss,
		TakeProfit:      in.TakeProfit,
		Notes:           in.Notes,
		RiskRewardRatio: models.RiskRewardRatio(in.EntryPrice, in.StopLoss, in.TakeProfit),
		Status:          models.StatusOpen,
		TradeDate:       now,
	}
	if in.TradeDate != nil {
		trade.TradeDate = *in.TradeDate
	}

	err := c.withUser(ctx, userID, func(tx *store.Store, user *models.User) error {
		return tx.CreateTrade(ctx, &trade)
	})
	if err != nil {
		return nil, c.fail("create_trade", err, zap.String("user_id", userID))
	}

	metrics.RecordTradeCreated()
	c.logger.Info("Trade created",
		zap.String("trade_id", trade.ID),
		zap.String("user_id", userID),
		zap.String("symbol", trade.Symbol),
		zap.Float64("risk_reward", trade.RiskRewardRatio))
	return &trade, nil
}

// DeleteTrade removes a trade owned by requesterID and refreshes lifetime stats.
func (c *Coordinator) DeleteTrade(ctx context.Context, tradeID, requesterID string) error {
	err := c.withUser(ctx, requesterID, func(tx *store.Store, user *models.User) error {
		trade, err := tx.GetTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if trade.UserID != requesterID {
			return fmt.Errorf("trade %s: %w", tradeID, ErrForbidden)
		}
		return tx.DeleteTrade(ctx, tradeID, requesterID)
	})
	if err != nil {
		return c.fail("delete_trade", err, zap.String("trade_id", tradeID), zap.String("user_id", requesterID))
	}
	c.logger.Info("Trade deleted", zap.String("trade_id", tradeID), zap.String("user_id", requesterID))
	return nil
}

// Recalculate rebuilds the lifetime stats of userID from its trade history.
func (c *Coordinator) Recalculate(ctx context.Context, userID string) (*models.RiskProfile, error) {
	var profile models.RiskProfile
	err := c.withUser(ctx, userID, func(tx *store.Store, user *models.User) error {
		return nil
	}, func(user *models.User) { profile = user.RiskProfile })
	if err != nil {
		return nil, c.fail("recalculate", err, zap.String("user_id", userID))
	}
	return &profile, nil
}

// CloseTrade moves an OPEN trade to a terminal status on behalf of requesterID.
// A rejected close leaves both the trade and the profile untouched.
func (c *Coordinator) CloseTrade(ctx context.Context, tradeID, requesterID string, req CloseRequest) (*CloseResult, error) {
	start := time.Now()
	l := c.logger.With(
		zap.String("trade_id", tradeID),
		zap.String("user_id", requesterID),
		zap.String("status", req.Status.String()),
	)

	result, err := c.closeTrade(ctx, tradeID, requesterID, req)
	if err != nil {
		code := Code(err)
		metrics.RecordCloseRejected(code)
		if errors.Is(err, ErrPersistence) {
			metrics.RecordPersistenceFailure("close_trade")
			l.Error("Trade close failed, nothing committed", zap.Error(err))
		} else {
			l.Warn("Trade close rejected", zap.String("code", code), zap.Error(err))
		}
		return nil, err
	}

	metrics.RecordTradeClosed(result.Trade.Status.String(), time.Since(start))
	l.Info("Trade closed",
		zap.Float64("actual_profit", result.Trade.ActualProfit),
		zap.Float64("account_size", result.Profile.AccountSize),
		zap.Float64("base_trade_size", result.Profile.BaseTradeSize),
		zap.Int("trade_streak", result.Profile.TradeStreak),
		zap.Int("sl_taken", result.Profile.SLTaken))
	return result, nil
}

func (c *Coordinator) closeTrade(ctx context.Context, tradeID, requesterID string, req CloseRequest) (*CloseResult, error) {
	if !req.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot close a trade as %q", ErrInvalidStatus, req.Status)
	}
	if req.Status == models.StatusClosed && req.ExitPrice == nil && req.ProfitLoss == nil {
		return nil, fmt.Errorf("%w: a manual exit needs exitPrice or profitLoss", ErrValidation)
	}
	if req.ExitPrice != nil && *req.ExitPrice <= 0 {
		return nil, fmt.Errorf("%w: exitPrice must be positive", ErrValidation)
	}

	unlock, err := c.locker.Lock(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock user %s: %w", ErrPersistence, requesterID, err)
	}
	defer unlock()

	var (
		trade *models.Trade
		user  *models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trade, err = c.store.GetTrade(gctx, tradeID)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = c.store.GetOrCreateUser(gctx, requesterID, c.defaults)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translate(err)
	}

	if trade.UserID != requesterID {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ErrForbidden)
	}
	if trade.Status != models.StatusOpen {
		return nil, fmt.Errorf("%w: trade %s is %s", ErrInvalidTransition, tradeID, trade.Status)
	}

	now := c.now()
	closed := *trade
	closed.Status = req.Status
	closed.ClosedAt = &now
	profile := user.RiskProfile

	if req.Status.IsOutcome() {
		if req.Status == models.StatusStopLossHit && c.policy.DailyLimitReached(profile, now, c.loc) {
			return nil, fmt.Errorf("%w: %d stop-losses already taken today", ErrDailyLimitExceeded, profile.SLTaken)
		}
		pl, err := risk.ComputeOutcome(*trade, profile, req.Status)
		if err != nil {
			return nil, translate(err)
		}
		if profile, err = c.policy.Apply(profile, req.Status, pl, now, c.loc); err != nil {
			return nil, translate(err)
		}
		closed.ActualProfit = pl
		if req.Status == models.StatusStopLossHit {
			closed.ActualProfit = -pl
		}
	} else {
		pl, err := c.exitProfit(*trade, profile, req)
		if err != nil {
			return nil, translate(err)
		}
		closed.ExitPrice = req.ExitPrice
		closed.ActualProfit = pl
	}

	next := *user
	next.RiskProfile = profile
	var committed *models.Trade
	err = c.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.MarkClosed(ctx, &closed); err != nil {
			return err
		}
		trades, err := tx.ListTrades(ctx, requesterID)
		if err != nil {
			return err
		}
		next.RiskProfile.TotalStats = risk.ComputeTotals(trades)
		if err := tx.SaveProfile(ctx, &next); err != nil {
			return err
		}
		committed, err = tx.GetTrade(ctx, tradeID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	return &CloseResult{Trade: *committed, Profile: next.RiskProfile}, nil
}

// exitProfit prices a manual exit: an explicit profitLoss wins over the exit price.
func (c *Coordinator) exitProfit(trade models.Trade, profile models.RiskProfile, req CloseRequest) (float64, error) {
	if req.ProfitLoss != nil {
		return decimal.NewFromFloat(*req.ProfitLoss).Round(2).InexactFloat64(), nil
	}
	return risk.ComputeExitProfit(trade, profile, *req.ExitPrice)
}

// withUser runs fn under the user's lock inside a transaction, then recomputes
// the user's lifetime stats from the trade history and saves the profile.
// after, if given, sees the saved user.
func (c *Coordinator) withUser(ctx context.Context, userID string, fn func(tx *store.Store, user *models.User) error, after ...func(user *models.User)) error {
	unlock, err := c.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: lock user %s: %w", ErrPersistence, userID, err)
	}
	defer unlock()

	return c.store.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.GetOrCreateUser(ctx, userID, c.defaults)
		if err != nil {
			return err
		}
		if err := fn(tx, user); err != nil {
			return err
		}
		trades, err := tx.ListTrades(ctx, userID)
		if err != nil {
			return err
		}
		user.RiskProfile.TotalStats = risk.ComputeTotals(trades)
		if err := tx.SaveProfile(ctx, user); err != nil {
			return err
		}
		for _, f := range after {
			f(user)
		}
		return nil
	})
}

// fail translates err and logs it when it is a persistence failure.
func (c *Coordinator) fail(op string, err error, fields ...zap.Field) error {
	err = translate(err)
	if errors.Is(err, ErrPersistence) {
		metrics.RecordPersistenceFailure(op)
		c.logger.Error("Store operation failed", append(fields, zap.String("operation", op), zap.Error(err))...)
	}
	return err
}

func validateNewTrade(in NewTrade) error {
	switch {
	case strings.TrimSpace(in.Symbol) == "":
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	case in.EntryPrice <= 0:
		return fmt.Errorf("%w: entryPrice must be positive", ErrValidation)
	case in.StopLoss <= 0:
		return fmt.Errorf("%w: stopLoss must be positive", ErrValidation)
	case in.TakeProfit <= 0:
		return fmt.Errorf("%w: takeProfit must be positive", ErrValidation)
	}
	return nil
}
