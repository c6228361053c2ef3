package api

import (
	"fmt"

	"github.com/c360/topstack/errors"
)

// PageRequest carries the pagination fields of list endpoints.
type PageRequest struct {
	PageNum  int `json:"pageNum"`
	PageSize int `json:"pageSize"`
}

// Page returns the request for page num of size entries.
func Page(num, size int) PageRequest {
	return PageRequest{PageNum: num, PageSize: size}
}

// Validate rejects page numbers below 1 and non-positive sizes.
func (p PageRequest) Validate() error {
	if p.PageNum < 1 {
		return invalid("pageNum", "must be at least 1, got %d", p.PageNum)
	}
	if p.PageSize <= 0 {
		return invalid("pageSize", "must be positive, got %d", p.PageSize)
	}
	return nil
}

// Next returns the request for the following page.
func (p PageRequest) Next() PageRequest {
	return PageRequest{PageNum: p.PageNum + 1, PageSize: p.PageSize}
}

// Pages returns how many pages of size entries hold total items.
func Pages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func invalid(field, format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%s %s: %w", field, fmt.Sprintf(format, args...), errors.ErrInvalidRequest),
		"api", "Validate", "request validation")
}

func required(field, value string) error {
	if value == "" {
		return invalid(field, "is required")
	}
	return nil
}
