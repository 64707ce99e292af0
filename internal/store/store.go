package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hustariz/rascarobingo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound means the trade or user row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNotOpen means the guarded OPEN -> terminal update matched no row.
	ErrNotOpen = errors.New("trade is not open")
	// ErrConflict means the user row changed since it was read.
	ErrConflict = errors.New("concurrent modification")
)

// Store persists trades and users. A Store obtained through Transaction is bound to that transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn against a transaction-bound Store. Any error from fn rolls back every write.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateTrade inserts a new trade.
func (s *Store) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if err := s.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to create trade %s: %w", trade.ID, err)
	}
	return nil
}

// GetTrade loads a trade by id.
func (s *Store) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	var trade models.Trade
	err := s.db.WithContext(ctx).First(&trade, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %s: %w", id, err)
	}
	return &trade, nil
}

// ListTrades returns every trade of userID, newest first.
func (s *Store) ListTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades of %s: %w", userID, err)
	}
	return trades, nil
}

// DeleteTrade removes a trade owned by userID.
func (s *Store) DeleteTrade(ctx context.Context, id, userID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Trade{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete trade %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkClosed writes the terminal fields of trade, but only if the stored row is still OPEN.
func (s *Store) MarkClosed(ctx context.Context, trade *models.Trade) error {
	res := s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("id = ? AND status = ?", trade.ID, models.StatusOpen).
		Updates(map[string]interface{}{
			"status":        trade.Status,
			"actual_profit": trade.ActualProfit,
			"exit_price":    trade.ExitPrice,
			"closed_at":     trade.ClosedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update trade %s: %w", trade.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("trade %s: %w", trade.ID, ErrNotOpen)
	}
	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

// GetOrCreateUser loads a user, inserting one with the given profile first if it does not exist.
// Concurrent first reads for the same id are safe.
func (s *Store) GetOrCreateUser(ctx context.Context, id string, defaults models.RiskProfile) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if !errors.Is(err, ErrNotFound) {
		return user, err
	}
	fresh := models.User{ID: id, RiskProfile: defaults}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

// SaveProfile writes user's risk profile if the stored version still equals
// user.Version, then bumps user.Version.
func (s *Store) SaveProfile(ctx context.Context, user *models.User) error {
	next := *user
	next.Version = user.Version + 1

	res := s.db.WithContext(ctx).Model(&next).
		Where("version = ?", user.Version).
		Select("*").
		Omit("created_at").
		Updates(&next)
	if res.Error != nil {
		return fmt.Errorf("failed to save profile of %s: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s at version %d: %w", user.ID, user.Version, ErrConflict)
	}
	user.Version = next.Version
	user.UpdatedAt = next.UpdatedAt
	return nil
}

// ListUserIDs returns the id of every user.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
