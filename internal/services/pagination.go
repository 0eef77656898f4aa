package services

// Page is one slice of a paginated query result.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

func newPage[T any](items []T, total int64, page, size int) *Page[T] {
	return &Page[T]{
		Items:   items,
		Total:   total,
		Page:    page,
		Size:    size,
		HasNext: int64(page*size) < total,
		HasPrev: page > 1,
	}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
