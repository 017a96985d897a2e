package repository

import (
	"context"

	"github.com/lumenwell/aimeter/pkg/db/option"
)

// Reader is a generic gorm-backed read surface for a single model type.
// There are deliberately no write methods: usage events are appended through
// the ledger repository and never mutated.
type Reader[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T) (int64, error)
}
