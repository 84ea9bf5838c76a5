package httputil

import (
	"errors"
	"net/http"
	"strconv"
)

// Pagination defaults shared by list views.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is the requested slice of a list view.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ParsePage reads page and limit from the query string. Missing values get
// defaults and limit is capped at MaxLimit.
func ParsePage(r *http.Request) (Page, error) {
	p := Page{Page: DefaultPage, Limit: DefaultLimit}

	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return p, errors.New("page must be a positive integer")
		}
		p.Page = parsed
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return p, errors.New("limit must be a positive integer")
		}
		if parsed > MaxLimit {
			parsed = MaxLimit
		}
		p.Limit = parsed
	}

	return p, nil
}
