package cart

import (
	"github.com/shopspring/decimal"
)

// SellerGroup is the server's authoritative seller → products → variants
// grouping of the cart.
type SellerGroup struct {
	SellerID   string    `json:"seller_id"`
	SellerName string    `json:"seller_name"`
	Products   []Product `json:"products"`
}

type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	ImageURL string    `json:"image_url"`
	Variants []Variant `json:"variants"`
}

type Variant struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	BuyingMode string          `json:"buying_mode"`
	InStock    bool            `json:"in_stock"`
}

// InvalidItem is a cart entry the server refused to price; the client
// surfaces it but never reclassifies or retries it.
type InvalidItem struct {
	VariantID string `json:"variant_id"`
	Reason    string `json:"reason"`
}

// Summary is the priced view of the current selection.
type Summary struct {
	TotalPrice   decimal.Decimal `json:"total_price"`
	InvalidItems []InvalidItem   `json:"invalid_items"`
}

type itemEntry struct {
	Quantity  int
	ProductID string
}

type cartPayload struct {
	Groups       []SellerGroup `json:"groups"`
	InvalidItems []InvalidItem `json:"invalid_items"`
}
