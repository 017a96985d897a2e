package domain

import (
	"context"
	"errors"
)

// QuotaStatus is the result of a quota check.
type QuotaStatus struct {
	HasQuota     bool  `json:"has_quota"`
	Remaining    int64 `json:"remaining"`
	MonthlyQuota int64 `json:"monthly_quota"`
	CurrentUsage int64 `json:"current_usage"`
}

type Service interface {
	// ApplyUsage folds one recorded event's tokens into the user's monthly
	// state, rolling the cycle over when the reset boundary has been crossed.
	ApplyUsage(ctx context.Context, userID int64, tokens int64) error

	// Check reports whether the user still has monthly quota, lazily creating
	// the row with defaults on first contact.
	Check(ctx context.Context, userID int64) (QuotaStatus, error)

	// Override replaces the user's monthly quota, creating the row if absent.
	Override(ctx context.Context, userID int64, monthlyQuota int64) (*UserQuota, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidQuota  = errors.New("invalid_quota")
	ErrInvalidTokens = errors.New("invalid_tokens")
)
