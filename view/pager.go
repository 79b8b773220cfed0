package view

import (
	"net/http"
	"strconv"
)

// Pager describes one page of a list and links to its neighbours. Links keep
// the other query parameters such as filters.
type Pager struct {
	Number int
	Pages  int
	Total  int64
	Prev   string
	Next   string
}

func NewPage(r *http.Request, number, size int, total int64) Pager {
	if size <= 0 {
		size = 1
	}
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		pages = 1
	}
	p := Pager{Number: number, Pages: pages, Total: total}
	link := func(n int) string {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(n))
		return r.URL.Path + "?" + q.Encode()
	}
	if number > 1 {
		p.Prev = link(number - 1)
	}
	if number < pages {
		p.Next = link(number + 1)
	}
	return p
}
