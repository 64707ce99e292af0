package models

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a trade.
type Status string

const (
	StatusOpen        Status = "OPEN"
	StatusTargetHit   Status = "TARGET_HIT"
	StatusStopLossHit Status = "STOPLOSS_HIT"
	StatusClosed      Status = "CLOSED"
)

// ParseStatus accepts the canonical names case-insensitively and rejects anything else.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusOpen, StatusTargetHit, StatusStopLossHit, StatusClosed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown trade status %q", s)
	}
}

// IsOutcome reports whether s is an automatic outcome that drives the sizing policy.
func (s Status) IsOutcome() bool {
	return s == StatusTargetHit || s == StatusStopLossHit
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusTargetHit || s == StatusStopLossHit || s == StatusClosed
}

func (s Status) String() string { return string(s) }

// UnmarshalText rejects unknown statuses at the JSON boundary.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
