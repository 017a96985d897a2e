package repository

import (
	"context"
	"time"

	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *ledgerdomain.UsageEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_events (id, user_id, coach_type, prompt_tokens, completion_tokens, total_tokens, cost_cents, model, conversation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.CoachType,
		e.PromptTokens,
		e.CompletionTokens,
		e.TotalTokens,
		e.CostCents,
		e.Model,
		e.ConversationID,
		e.CreatedAt,
	).Error
}

func (r *repo) SumTokens(ctx context.Context, db *gorm.DB, userID int64, from, to time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_tokens), 0)
		 FROM usage_events
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		userID,
		from,
		to,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) DistinctUserIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT user_id FROM usage_events ORDER BY user_id ASC`,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
