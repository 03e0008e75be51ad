// internal/api/types/response.go
package types

import "goalflow/internal/domain"

// PaginatedResponse is one page of a list endpoint.
// T represents the type of data contained in the 'Data' slice.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}

// NewPage builds a page, replacing a nil slice with an empty one so clients always get a JSON array.
func NewPage[T any](data []T, limit, offset int, total int64) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	return PaginatedResponse[T]{Data: data, Limit: limit, Offset: offset, TotalCount: total}
}

// ErrorResponse is the body of every non-2xx reply. Fields maps a request
// field to the validation rule it broke.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// DriftResponse is returned when a reconciliation finds the stored balance
// disagreeing with the movement log.
type DriftResponse struct {
	Error  string                `json:"error"`
	Report *domain.BalanceReport `json:"report"`
}
