package domain

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// EntitySort captures one ordering preference for entity listings.
// Field is a declared filter field name or "id".
type EntitySort struct {
	Field     string
	Direction SortDirection
}

// PageRequest selects a window of an ordered result. Size 0 means unpaged.
type PageRequest struct {
	Page int
	Size int
}

// Unpaged returns a request for every row.
func Unpaged() PageRequest {
	return PageRequest{}
}

func (p PageRequest) Paged() bool {
	return p.Size > 0
}

func (p PageRequest) Offset() int {
	if !p.Paged() || p.Page <= 0 {
		return 0
	}
	return p.Page * p.Size
}

// Page is a window of results plus the total count for the same predicate.
type Page[T any] struct {
	Items []T
	Total int64
}
