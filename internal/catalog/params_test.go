package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParamsValuesOmitBlankFilters(t *testing.T) {
	t.Parallel()

	values := Params{Query: "  shoes ", Page: 2}.Values()
	if got := values.Encode(); got != "page=2&q=shoes" {
		t.Fatalf("unexpected encoding: %q", got)
	}
	if _, ok := values["sort"]; ok {
		t.Fatal("blank sort must be omitted")
	}
}

func TestParamsValuesFullSet(t *testing.T) {
	t.Parallel()

	min := decimal.RequireFromString("10.50")
	max := decimal.RequireFromString("99")
	values := Params{
		Query:      "bag",
		CategoryID: "c7",
		Sort:       "price_asc",
		Page:       1,
		PerPage:    24,
		MinPrice:   &min,
		MaxPrice:   &max,
	}.Values()

	want := "category_id=c7&max_price=99&min_price=10.5&page=1&per_page=24&q=bag&sort=price_asc"
	if got := values.Encode(); got != want {
		t.Fatalf("unexpected encoding:\n got %q\nwant %q", got, want)
	}
}
