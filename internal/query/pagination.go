package query

import (
	"fmt"
	"slices"

	"affiliate-gateway/internal/upstream"
)

// Limits are the page sizes a client may pick.
var Limits = []int{10, 25, 50, 100}

const DefaultLimit = 10

// Pagination is the client paging state. Total comes from the upstream response;
// Limit and Offset go back verbatim in the next request.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// NewPagination applies the default limit when limit is zero.
func NewPagination(limit, offset int) Pagination {
	if limit == 0 {
		limit = DefaultLimit
	}
	return Pagination{Limit: limit, Offset: offset}
}

// FromUpstream adopts the paging the upstream API reported.
func FromUpstream(p upstream.Pagination) Pagination {
	return Pagination{Limit: p.Limit, Offset: p.Offset, Total: p.Total}
}

func (p Pagination) Validate() error {
	if !slices.Contains(Limits, p.Limit) {
		return &upstream.ValidationError{Err: upstream.ErrInvalidLimit, Detail: fmt.Sprintf("%d not in %v", p.Limit, Limits)}
	}
	if p.Offset < 0 || (p.Total > 0 && p.Offset > p.Total) {
		return &upstream.ValidationError{Err: upstream.ErrInvalidOffset, Detail: fmt.Sprintf("offset %d, total %d", p.Offset, p.Total)}
	}
	return nil
}

// Page is the 1-based page number.
func (p Pagination) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Pages is the page count, at least 1.
func (p Pagination) Pages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

func (p Pagination) HasNext() bool { return p.Offset+p.Limit < p.Total }

func (p Pagination) HasPrev() bool { return p.Offset > 0 }

// Next moves one page forward, staying put on the last page.
func (p Pagination) Next() Pagination {
	if p.HasNext() {
		p.Offset += p.Limit
	}
	return p
}

// Prev moves one page back, never below zero.
func (p Pagination) Prev() Pagination {
	p.Offset -= p.Limit
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// WithTotal records a new total, pulling Offset back to the last page start if the
// result set shrank.
func (p Pagination) WithTotal(total int) Pagination {
	p.Total = total
	if total <= 0 {
		p.Offset = 0
		return p
	}
	if p.Offset >= total && p.Limit > 0 {
		p.Offset = ((total - 1) / p.Limit) * p.Limit
	}
	return p
}

// Paginate slices one page out of items held locally.
func Paginate[T any](items []T, p Pagination) ([]T, Pagination) {
	if p.Offset < 0 {
		p.Offset = 0
	}
	p = p.WithTotal(len(items))
	if p.Limit <= 0 || len(items) == 0 {
		return []T{}, p
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end], p
}
