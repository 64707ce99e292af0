package lifecycle

import (
	"errors"
	"fmt"

	"github.com/hustariz/rascarobingo/internal/risk"
	"github.com/hustariz/rascarobingo/internal/store"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInvalidStatus      = risk.ErrInvalidStatus
	ErrDailyLimitExceeded = errors.New("daily stop-loss limit exceeded")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("concurrent modification")
	ErrPersistence        = errors.New("persistence failure")
)

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrInvalidStatus):
		return "INVALID_STATUS"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "DAILY_LIMIT_EXCEEDED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "PERSISTENCE_FAILURE"
	}
}

func isDomain(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrForbidden, ErrInvalidTransition, ErrInvalidStatus,
		ErrDailyLimitExceeded, ErrValidation, ErrConflict, ErrPersistence,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// translate maps store errors onto the lifecycle taxonomy.
func translate(err error) error {
	switch {
	case err == nil || isDomain(err):
		return err
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrNotOpen):
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, risk.ErrInvalidTrade):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
