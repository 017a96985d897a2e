package option

import (
	"strconv"
	"strings"
	"time"

	"github.com/lumenwell/aimeter/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithLimit caps the number of returned rows.
func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// ApplyPagination applies cursor pagination. One extra row is fetched so the
// caller can detect whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 50
		}
		db = db.Limit(size + 1)

		token := strings.TrimSpace(p.PageToken)
		if token == "" {
			return db
		}
		cursor, err := pagination.DecodeCursor(token)
		if err != nil || cursor == nil {
			return db
		}
		after, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return db
		}
		// Bind a time.Time so each driver formats the comparison value the
		// same way it stored the column. The id tie-break keeps events that
		// share a timestamp from being skipped across a page boundary.
		if id, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
			return db.Where("created_at > ? OR (created_at = ? AND id > ?)", after, after, id)
		}
		return db.Where("created_at > ?", after)
	})
}

// QuerySortBy restricts sortable columns to an allow list.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool

	// TieBreak is an optional secondary column, always ascending, so rows
	// sharing the primary sort value come back in a stable order.
	TieBreak string
}

// WithSortBy orders results by an allowed column, defaulting to created_at.
func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "created_at"
		}
		if sort.Desc {
			db = db.Order(field + " DESC")
		} else {
			db = db.Order(field + " ASC")
		}
		if tie := strings.TrimSpace(sort.TieBreak); tie != "" && tie != field {
			db = db.Order(tie + " ASC")
		}
		return db
	})
}
