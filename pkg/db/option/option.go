package option

import (
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/lognest/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies cursor pagination ordered by timestamp descending.
// One extra row is fetched so callers can detect a next page.
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
		if cursor.Timestamp == "" {
			return db
		}

		// Bind typed values so every dialect compares timestamps as
		// timestamps, not as strings.
		var ts any = cursor.Timestamp
		if parsed, err := time.Parse(time.RFC3339Nano, cursor.Timestamp); err == nil {
			ts = parsed
		}
		if cursor.ID == "" {
			return db.Where("timestamp < ?", ts)
		}
		var id any = cursor.ID
		if parsed, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
			id = parsed
		}
		return db.Where("timestamp < ? OR (timestamp = ? AND id < ?)", ts, ts, id)
	})
}

// QuerySortBy restricts ordering to an allowlisted column.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders results by an allowlisted column, defaulting to timestamp
// desc. The row id is always the secondary sort: sort columns are not unique,
// and the cursor predicate in ApplyPagination tie-breaks on id, so the order
// must too or rows sharing a sort value are skipped across page boundaries.
func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "timestamp"
		}
		direction := "ASC"
		if sort.Desc || strings.TrimSpace(sort.Field) == "" {
			direction = "DESC"
		}
		return db.Order(field + " " + direction + ", id " + direction)
	})
}

// WithLimit caps the result set size.
func WithLimit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}
