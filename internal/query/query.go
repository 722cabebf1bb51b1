// Package query implements the list-view transform shared by every paginated
// endpoint: case-insensitive substring search, conjunctive equality filters,
// inclusive date bounds, and page slicing. The same Params drive both a gorm
// scope for DB-backed lists and a pure in-memory transform used by exports.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Page      int
	Limit     int
	Search    string
	Filters   map[string]string
	DateFrom  *time.Time
	DateTo    *time.Time
	SortBy    string
	SortOrder string
}

type Pagination struct {
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	Total           int64 `json:"total"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:            page,
		Limit:           limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// FromContext reads list parameters from the request query string.
// filterKeys whitelists which query parameters become equality filters.
func FromContext(c *gin.Context, filterKeys ...string) Params {
	p := Params{
		Page:      1,
		Limit:     DefaultLimit,
		Search:    c.Query("search"),
		Filters:   map[string]string{},
		SortBy:    c.DefaultQuery("sortBy", "created_at"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	if _, err := fmt.Sscanf(c.Query("page"), "%d", &p.Page); err != nil || p.Page < 1 {
		p.Page = 1
	}
	if _, err := fmt.Sscanf(c.Query("limit"), "%d", &p.Limit); err != nil || p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	for _, key := range filterKeys {
		if v := c.Query(key); v != "" {
			p.Filters[key] = v
		}
	}
	if from := c.Query("dateFrom"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			p.DateFrom = &t
		}
	}
	if to := c.Query("dateTo"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			p.DateTo = &t
		}
	}
	return p
}

// Scope applies search, filters and date bounds to a gorm query.
// searchColumns are the DB columns the substring search matches against;
// filter keys are assumed to already be whitelisted column names.
func Scope(p Params, timeColumn string, searchColumns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.Search != "" && len(searchColumns) > 0 {
			pattern := "%" + strings.ToLower(p.Search) + "%"
			clause := make([]string, len(searchColumns))
			args := make([]interface{}, len(searchColumns))
			for i, col := range searchColumns {
				clause[i] = "LOWER(" + col + ") LIKE ?"
				args[i] = pattern
			}
			db = db.Where(strings.Join(clause, " OR "), args...)
		}
		for col, val := range p.Filters {
			db = db.Where(col+" = ?", val)
		}
		if p.DateFrom != nil {
			db = db.Where(timeColumn+" >= ?", *p.DateFrom)
		}
		if p.DateTo != nil {
			db = db.Where(timeColumn+" <= ?", *p.DateTo)
		}
		return db
	}
}

// OrderAndPage applies sorting and the page slice to a gorm query.
// sortable whitelists column names; anything else falls back to timeColumn.
func OrderAndPage(p Params, timeColumn string, sortable ...string) func(*gorm.DB) *gorm.DB {
	column := timeColumn
	for _, s := range sortable {
		if p.SortBy == s {
			column = s
			break
		}
	}
	direction := "DESC"
	if strings.EqualFold(p.SortOrder, "asc") {
		direction = "ASC"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column + " " + direction).
			Offset((p.Page - 1) * p.Limit).
			Limit(p.Limit)
	}
}

// Filterable is implemented by records that can go through the in-memory
// transform. FilterFields returns the string-coercible fields keyed by filter
// name; search matches against all of them.
type Filterable interface {
	FilterFields() map[string]string
	FilterTime() time.Time
}

// Apply runs the full transform over an in-memory list: conjunctive search +
// equality filters + inclusive date bounds, then the page slice. Input order
// is preserved; an out-of-range page yields an empty slice.
func Apply[T Filterable](items []T, p Params) ([]T, Pagination) {
	matched := Filter(items, p)

	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start, end = len(matched), len(matched)
	} else if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], NewPagination(page, limit, int64(len(matched)))
}

// Filter applies search, equality filters and date bounds without paging.
func Filter[T Filterable](items []T, p Params) []T {
	search := strings.ToLower(p.Search)
	matched := make([]T, 0, len(items))
	for _, item := range items {
		fields := item.FilterFields()
		if search != "" && !matchesSearch(fields, search) {
			continue
		}
		if !matchesFilters(fields, p.Filters) {
			continue
		}
		ts := item.FilterTime()
		if p.DateFrom != nil && ts.Before(*p.DateFrom) {
			continue
		}
		if p.DateTo != nil && ts.After(*p.DateTo) {
			continue
		}
		matched = append(matched, item)
	}
	return matched
}

func matchesSearch(fields map[string]string, search string) bool {
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}

func matchesFilters(fields map[string]string, filters map[string]string) bool {
	for key, want := range filters {
		if fields[key] != want {
			return false
		}
	}
	return true
}
