package dbutil

import (
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/pkg/errors"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

func FindOne[T any](db *gorm.DB) (*T, error) {
	var item T
	result := db.Limit(1).Find(&item)
	if result.Error != nil {
		return nil, WrapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, errors.NotFound
	}
	return &item, nil
}

// Pagination is a normalized page request.
type Pagination struct {
	Page    int
	PerPage int
}

// NewPagination clamps page to >= 1 and perPage to [1, MaxPerPage].
func NewPagination(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Pagination{Page: page, PerPage: perPage}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }

// Scope applies LIMIT/OFFSET.
func (p Pagination) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.PerPage)
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
