package kernel

// Page is the pagination metadata returned with every list.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

type Paginated[T any] struct {
	Items []T  `json:"items"`
	Page  Page `json:"pagination"`
	Empty bool `json:"empty"`
}

func NewPaginated[T any](items []T, page, size, total int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Paginated[T]{
		Items: items,
		Page:  Page{Number: page, Size: size, Total: total, Pages: pages},
		Empty: len(items) == 0,
	}
}

func (p Paginated[T]) HasNext() bool { return p.Page.Number < p.Page.Pages }

// PaginationOptions is a 1-based page request.
type PaginationOptions struct {
	Page     int
	PageSize int
}

// Normalize clamps Page to at least 1 and replaces a PageSize outside
// [1, maxSize] with defaultSize.
func (o PaginationOptions) Normalize(defaultSize, maxSize int) PaginationOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 || o.PageSize > maxSize {
		o.PageSize = defaultSize
	}
	return o
}

func (o PaginationOptions) Offset() int { return (o.Page - 1) * o.PageSize }
