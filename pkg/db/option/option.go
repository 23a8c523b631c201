package option

import (
	"github.com/praxialabs/praxia/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option applies a reusable query refinement to a gorm statement.
type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination turns a cursor page request into a gorm Option. The
// limit is page size + 1 so callers can detect whether another page
// exists.
func ApplyPagination(page pagination.Pagination) Option {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	size := o.page.PageSize
	if size <= 0 {
		size = 50
	}
	if size > 250 {
		size = 250
	}

	if token := o.page.PageToken; token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err == nil && cursor != nil && cursor.CreatedAt != "" && cursor.ID != "" {
			stmt = stmt.Where(
				"(created_at, id) < (?, ?)",
				cursor.CreatedAt,
				cursor.ID,
			)
		}
	}

	return stmt.Limit(size + 1)
}
