package pagination

import (
	"strconv"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Params struct {
	Page     int
	PageSize int
}

// Parse reads the 1-based current/pageSize query values. Anything missing,
// non-numeric or non-positive falls back to the defaults.
func Parse(current, pageSize string) Params {
	p := Params{Page: DefaultPage, PageSize: DefaultPageSize}

	if n, err := strconv.Atoi(current); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(pageSize); err == nil && n > 0 {
		p.PageSize = n
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}

	return p
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type Meta struct {
	TotalItems   int64 `json:"totalItems"`
	ItemCount    int   `json:"itemCount"`
	ItemsPerPage int   `json:"itemsPerPage"`
	TotalPages   int   `json:"totalPages"`
	CurrentPage  int   `json:"currentPage"`
}

type Page[T any] struct {
	Items []T  `json:"items"`
	Meta  Meta `json:"meta"`
}

func NewPage[T any](items []T, total int64, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}

	totalPages := int(total / int64(p.PageSize))
	if total%int64(p.PageSize) != 0 {
		totalPages++
	}

	return Page[T]{
		Items: items,
		Meta: Meta{
			TotalItems:   total,
			ItemCount:    len(items),
			ItemsPerPage: p.PageSize,
			TotalPages:   totalPages,
			CurrentPage:  p.Page,
		},
	}
}

// Map converts the items of a page while keeping its meta.
func Map[T, U any](page Page[T], fn func(T) U) Page[U] {
	items := make([]U, len(page.Items))
	for i, item := range page.Items {
		items[i] = fn(item)
	}
	return Page[U]{Items: items, Meta: page.Meta}
}
