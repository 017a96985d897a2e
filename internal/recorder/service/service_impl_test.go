package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumenwell/aimeter/internal/clock"
	"github.com/lumenwell/aimeter/internal/config"
	dailylimitdomain "github.com/lumenwell/aimeter/internal/dailylimit/domain"
	dailylimitservice "github.com/lumenwell/aimeter/internal/dailylimit/service"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	ledgerrepo "github.com/lumenwell/aimeter/internal/ledger/repository"
	pricingservice "github.com/lumenwell/aimeter/internal/pricing/service"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
	quotaservice "github.com/lumenwell/aimeter/internal/quota/service"
	recorderdomain "github.com/lumenwell/aimeter/internal/recorder/domain"
)

type recorderFixture struct {
	svc     recorderdomain.Service
	limiter dailylimitdomain.Service
	db      *gorm.DB
	clock   *clock.FakeClock
}

func setupRecorder(t *testing.T) *recorderFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&ledgerdomain.UsageEvent{}, &quotadomain.UserQuota{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		DailyTokenLimit:      16_000,
		DefaultMonthlyQuota:  500_000,
		DefaultQuotaResetDay: 1,
	}
	log := zap.NewNop()
	ledger := ledgerrepo.Provide()

	holder, err := config.NewStaticPricingHolder(config.DefaultPricingConfig())
	require.NoError(t, err)
	calculator := pricingservice.NewService(pricingservice.ServiceParam{
		Log:     log,
		Pricing: holder,
	})

	quotaSvc := quotaservice.NewService(quotaservice.ServiceParam{
		DB:    db,
		Log:   log,
		Cfg:   cfg,
		Clock: fake,
	})

	limiter := dailylimitservice.NewService(dailylimitservice.ServiceParam{
		DB:     db,
		Log:    log,
		Cfg:    cfg,
		Clock:  fake,
		Ledger: ledger,
	})

	svc := NewService(ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Ledger:     ledger,
		Calculator: calculator,
		QuotaSvc:   quotaSvc,
	})

	return &recorderFixture{svc: svc, limiter: limiter, db: db, clock: fake}
}

func TestRecordPersistsEventAndQuota(t *testing.T) {
	f := setupRecorder(t)
	ctx := context.Background()

	conversation := "conv-123"
	event, err := f.svc.Record(ctx, recorderdomain.RecordRequest{
		UserID:           1,
		CoachType:        "sleep",
		PromptTokens:     500,
		CompletionTokens: 300,
		Model:            "gpt-4o",
		ConversationID:   &conversation,
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, int64(800), event.TotalTokens)
	assert.Equal(t, int64(1), event.CostCents)
	assert.Equal(t, ledgerdomain.CoachSleep, event.CoachType)
	assert.Equal(t, f.clock.Now(), event.CreatedAt)

	var persisted ledgerdomain.UsageEvent
	require.NoError(t, f.db.Raw(`SELECT * FROM usage_events WHERE id = ?`, event.ID).Scan(&persisted).Error)
	assert.Equal(t, event.TotalTokens, persisted.TotalTokens)
	assert.Equal(t, event.UserID, persisted.UserID)

	var usage int64
	require.NoError(t, f.db.Raw(`SELECT current_usage FROM user_quotas WHERE user_id = ?`, 1).Scan(&usage).Error)
	assert.Equal(t, int64(800), usage)
}

func TestRecordNormalizesUnknownCoachType(t *testing.T) {
	f := setupRecorder(t)

	event, err := f.svc.Record(context.Background(), recorderdomain.RecordRequest{
		UserID:           1,
		CoachType:        "astrology",
		PromptTokens:     10,
		CompletionTokens: 10,
		Model:            "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.CoachOther, event.CoachType)
}

func TestRecordValidation(t *testing.T) {
	f := setupRecorder(t)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, recorderdomain.RecordRequest{
		UserID: 0, PromptTokens: 1, CompletionTokens: 1, Model: "gpt-4o",
	})
	assert.ErrorIs(t, err, recorderdomain.ErrInvalidUser)

	_, err = f.svc.Record(ctx, recorderdomain.RecordRequest{
		UserID: 1, PromptTokens: -1, CompletionTokens: 1, Model: "gpt-4o",
	})
	assert.ErrorIs(t, err, recorderdomain.ErrInvalidTokens)

	_, err = f.svc.Record(ctx, recorderdomain.RecordRequest{
		UserID: 1, PromptTokens: 1, CompletionTokens: 1, Model: "   ",
	})
	assert.ErrorIs(t, err, recorderdomain.ErrInvalidModel)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM usage_events`).Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRecordReturnsEventOnQuotaFailure(t *testing.T) {
	f := setupRecorder(t)

	require.NoError(t, f.db.Exec(`DROP TABLE user_quotas`).Error)

	event, err := f.svc.Record(context.Background(), recorderdomain.RecordRequest{
		UserID:           1,
		CoachType:        "nutrition",
		PromptTokens:     100,
		CompletionTokens: 100,
		Model:            "gpt-4o",
	})
	require.Error(t, err)
	require.NotNil(t, event)

	// The ledger row outlives the quota failure.
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM usage_events WHERE user_id = ?`, 1).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

// Two requests that both pass the limit check before either records can
// overshoot the daily cap. The overshoot lands in the ledger and the next
// check refuses.
func TestCheckThenRecordInterleaving(t *testing.T) {
	f := setupRecorder(t)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, recorderdomain.RecordRequest{
		UserID:           1,
		CoachType:        "general",
		PromptTokens:     10_000,
		CompletionTokens: 5_900,
		Model:            "gpt-4o",
	})
	require.NoError(t, err)

	first := f.limiter.Check(ctx, 1)
	second := f.limiter.Check(ctx, 1)
	assert.True(t, first.CanProceed)
	assert.True(t, second.CanProceed)
	assert.Equal(t, int64(100), first.Remaining)
	assert.Equal(t, int64(100), second.Remaining)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Record(ctx, recorderdomain.RecordRequest{
			UserID:           1,
			CoachType:        "general",
			PromptTokens:     200,
			CompletionTokens: 100,
			Model:            "gpt-4o",
		})
		require.NoError(t, err)
	}

	final := f.limiter.Check(ctx, 1)
	assert.False(t, final.CanProceed)
	assert.Equal(t, int64(16_500), final.TokensUsedToday)
}
