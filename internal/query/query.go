// Package query turns the page, limit and search parameters of a list
// request into an offset-based fetch shared by every collection.
package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// EscapeChar is the LIKE escape character used with Pattern. It is spelled
// out in every query as ESCAPE '!' because a backslash literal is not
// portable between sqlite, postgres and mysql.
const EscapeChar = "!"

// ErrInvalidParam is returned by Parse for a non-integer or out-of-range
// page or limit.
var ErrInvalidParam = errors.New("invalid list parameter")

// Params is a normalised list request. Page and Limit are always >= 1.
type Params struct {
	Page   int
	Limit  int
	Search string
}

// Default returns the first page with the default limit and no filter.
func Default() Params {
	return Params{Page: DefaultPage, Limit: DefaultLimit}
}

// Parse reads page, limit and search from a query string.
//
// Missing values fall back to the defaults. A limit above maxLimit is
// clamped rather than rejected; maxLimit <= 0 means MaxLimit.
func Parse(values url.Values, maxLimit int) (Params, error) {
	p := Default()

	page, err := positiveInt(values.Get("page"), DefaultPage)
	if err != nil {
		return Params{}, fmt.Errorf("page: %w", err)
	}
	limit, err := positiveInt(values.Get("limit"), DefaultLimit)
	if err != nil {
		return Params{}, fmt.Errorf("limit: %w", err)
	}

	p.Page = page
	p.Limit = limit
	p.Search = strings.TrimSpace(values.Get("search"))
	p = p.Clamp(maxLimit)

	// The offset must fit in an int.
	if p.Page-1 > math.MaxInt/p.Limit {
		return Params{}, fmt.Errorf("page: %w: %d is out of range", ErrInvalidParam, p.Page)
	}
	return p, nil
}

func positiveInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidParam, raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: must be at least 1", ErrInvalidParam)
	}
	return n, nil
}

// Clamp fixes Page and Limit into their valid ranges.
func (p Params) Clamp(maxLimit int) Params {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit < 1:
		p.Limit = DefaultLimit
	case p.Limit > maxLimit:
		p.Limit = maxLimit
	}
	return p
}

// Offset is the number of matching rows skipped before this page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// HasSearch reports whether the request filters at all.
func (p Params) HasSearch() bool {
	return p.Search != ""
}

// Pattern is the lower-cased LIKE pattern for a substring match of Search,
// with LIKE metacharacters escaped by EscapeChar. Callers compare it with
// LOWER(column) to make the match case-insensitive on every backend.
func (p Params) Pattern() string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(p.Search)) + "%"
}

// Values encodes p back into a query string.
func (p Params) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	return v
}

// TotalPages is ceil(total/limit); zero matching rows give zero pages.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}
