package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Params captures the UI's filter state for feed and search queries.
type Params struct {
	Query      string
	CategoryID string
	Sort       string
	Page       int
	PerPage    int
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

// Values renders the canonical query-parameter set: blank filters are
// omitted entirely and encoding order is stable.
func (p Params) Values() url.Values {
	values := url.Values{}
	if q := strings.TrimSpace(p.Query); q != "" {
		values.Set("q", q)
	}
	if p.CategoryID != "" {
		values.Set("category_id", p.CategoryID)
	}
	if p.Sort != "" {
		values.Set("sort", p.Sort)
	}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if p.MinPrice != nil {
		values.Set("min_price", p.MinPrice.String())
	}
	if p.MaxPrice != nil {
		values.Set("max_price", p.MaxPrice.String())
	}
	return values
}
