package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository is the append-only store of usage events. There is deliberately
// no update or delete: the ledger is the audit trail.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *UsageEvent) error
	SumTokens(ctx context.Context, db *gorm.DB, userID int64, from, to time.Time) (int64, error)
	DistinctUserIDs(ctx context.Context, db *gorm.DB) ([]int64, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidTokens = errors.New("invalid_tokens")
	ErrInvalidModel  = errors.New("invalid_model")
)
