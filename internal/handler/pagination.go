package handler

// CursorPage defines the structure for a cursor-paginated list of any type.
// NextCursor is opaque; clients pass it back verbatim to fetch the next page.
type CursorPage[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// NewCursorPage creates a new CursorPage.
func NewCursorPage[T any](data []T, nextCursor string, hasMore bool) CursorPage[T] {
	if data == nil {
		data = []T{}
	}
	return CursorPage[T]{
		Data:       data,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}
