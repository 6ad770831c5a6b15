package shared

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// Page carries offset pagination parameters parsed from a request.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads page/page_size query parameters with sane bounds.
func ParsePage(r *http.Request) Page {
	p := Page{Number: 1, Size: defaultPageSize}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		p.Size = v
		if p.Size > maxPageSize {
			p.Size = maxPageSize
		}
	}
	return p
}

// Offset returns the SQL offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
