package dto

import qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta describes a clamped page of total rows.
func NewPaginationMeta(page qb.Page, total int64) PaginationMeta {
	return PaginationMeta{
		Page:       page.Number,
		PageSize:   page.Size,
		TotalItems: total,
		TotalPages: page.TotalPages(total),
	}
}

// PageQuery carries the shared page/per query parameters.
type PageQuery struct {
	Page    int `query:"page"`
	PerPage int `query:"per"`
}
