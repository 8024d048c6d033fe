// Package paging holds the page arithmetic shared by every list view and the
// canonical envelope all list endpoints are decoded into.
package paging

import (
	"encoding/json"
)

// FirstPage is the page every list starts on
const FirstPage = 1

// Advance returns the next page number, or page itself when it is already the last.
// An absent or zero totalPages is treated as a single page.
func Advance(page, totalPages int) int {
	if page < normalize(totalPages) {
		return page + 1
	}
	return page
}

// Retreat returns the previous page number, or page itself on the first page.
func Retreat(page int) int {
	if page > FirstPage {
		return page - 1
	}
	return page
}

func normalize(totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	return totalPages
}

// Page is the paging envelope {data, page, totalPages, total}
type Page[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// Pages returns the number of pages, at least one.
func (p *Page[T]) Pages() int {
	return normalize(p.TotalPages)
}

// HasNext reports whether Advance would move past the current page
func (p *Page[T]) HasNext() bool {
	return Advance(p.Page, p.TotalPages) != p.Page
}

// HasPrev reports whether Retreat would move before the current page
func (p *Page[T]) HasPrev() bool {
	return Retreat(p.Page) != p.Page
}

// Empty reports whether the page carries no items
func (p *Page[T]) Empty() bool {
	return len(p.Data) == 0
}

// UnmarshalJSON accepts the counters either at the top level or nested under
// "pagination", which some list endpoints use.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Data       []T  `json:"data"`
		Page       *int `json:"page"`
		TotalPages *int `json:"totalPages"`
		Total      *int `json:"total"`
		Pagination *struct {
			Page       *int `json:"page"`
			TotalPages *int `json:"totalPages"`
			Total      *int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Page[T]{Data: aux.Data}
	if p.Data == nil {
		p.Data = []T{}
	}

	if aux.Pagination != nil {
		setIfPresent(&p.Page, aux.Pagination.Page)
		setIfPresent(&p.TotalPages, aux.Pagination.TotalPages)
		setIfPresent(&p.Total, aux.Pagination.Total)
	}
	setIfPresent(&p.Page, aux.Page)
	setIfPresent(&p.TotalPages, aux.TotalPages)
	setIfPresent(&p.Total, aux.Total)

	if p.Page < FirstPage {
		p.Page = FirstPage
	}
	if p.Total < len(p.Data) {
		p.Total = len(p.Data)
	}
	return nil
}

func setIfPresent(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
