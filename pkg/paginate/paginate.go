// Package paginate slices ordered lists into fixed-size pages.
package paginate

// Entry is one item on a page together with its position in the full list.
type Entry[T any] struct {
	GlobalIndex int `json:"global_index"`
	Item        T   `json:"item"`
}

// Page is one page of a list.
type Page[T any] struct {
	PageIndex  int        `json:"page_index"`
	TotalPages int        `json:"total_pages"`
	TotalItems int        `json:"total_items"`
	PageSize   int        `json:"page_size"`
	Entries    []Entry[T] `json:"entries"`
}

// HasPrevious reports whether a page exists before this one.
func (p Page[T]) HasPrevious() bool {
	return p.PageIndex > 0
}

// HasNext reports whether a page exists after this one.
func (p Page[T]) HasNext() bool {
	return p.PageIndex < p.TotalPages-1
}

// NormalizePageSize returns pageSize, or 1 when it is not positive.
func NormalizePageSize(pageSize int) int {
	return max(1, pageSize)
}

// TotalPages returns the page count for totalItems, never less than 1.
func TotalPages(totalItems, pageSize int) int {
	pageSize = NormalizePageSize(pageSize)
	if totalItems <= 0 {
		return 1
	}
	return (totalItems + pageSize - 1) / pageSize
}

// ClampPageIndex clamps requested into [0, totalPages-1].
func ClampPageIndex(requested, totalPages int) int {
	if requested < 0 || totalPages <= 1 {
		return 0
	}
	return min(requested, totalPages-1)
}

// Paginate returns the requested page of items, clamping out-of-range page
// requests to the first or last page.
func Paginate[T any](items []T, requestedPage, pageSize int) Page[T] {
	pageSize = NormalizePageSize(pageSize)
	total := len(items)
	totalPages := TotalPages(total, pageSize)
	pageIndex := ClampPageIndex(requestedPage, totalPages)

	start := min(pageIndex*pageSize, total)
	end := min(start+pageSize, total)

	entries := make([]Entry[T], 0, end-start)
	for i := start; i < end; i++ {
		entries = append(entries, Entry[T]{GlobalIndex: i, Item: items[i]})
	}

	return Page[T]{
		PageIndex:  pageIndex,
		TotalPages: totalPages,
		TotalItems: total,
		PageSize:   pageSize,
		Entries:    entries,
	}
}
