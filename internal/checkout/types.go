package checkout

import (
	"encoding/json"

	"github.com/openbasket/storefront-client/pkg/types"
	"github.com/shopspring/decimal"
)

// Session is the server-tracked checkout negotiation. Status only moves
// forward; a new initiate call is the only way to start over.
type Session struct {
	ID                string
	Subtotal          decimal.Decimal
	DeliveryCharge    *decimal.Decimal
	TotalPayable      decimal.Decimal
	ShippingAddressID *string
	Status            string
	PaymentMethod     string
	PlatformDiscount  *decimal.Decimal
}

// ShippingAddress mirrors the address attached to a checkout session.
type ShippingAddress struct {
	ID             string   `json:"id"`
	RecipientName  string   `json:"recipient_name"`
	RecipientPhone string   `json:"recipient_phone"`
	RecipientEmail string   `json:"recipient_email"`
	AddressLine    string   `json:"address_line"`
	DeliveryNote   string   `json:"delivery_note"`
	CityID         int      `json:"city_id"`
	ZoneID         int      `json:"zone_id"`
	AreaID         int      `json:"area_id"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
}

// LineItem is a checkout entry the server priced successfully.
type LineItem struct {
	SellerID   string          `json:"seller_id"`
	CategoryID string          `json:"category_id"`
	ProductID  string          `json:"product_id"`
	VariantID  string          `json:"variant_id"`
	BuyingMode string          `json:"buying_mode"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Discount   string          `json:"discount"`
	Quantity   int             `json:"quantity"`
	Weight     float64         `json:"weight"`
}

// InvalidLineItem is a checkout entry the server rejected; the partition
// is authoritative and never reclassified client-side.
type InvalidLineItem struct {
	VariantID     string `json:"variant_id"`
	FailureReason string `json:"reason"`
}

// Details is the normalized view of GET /api/checkout/{id}.
type Details struct {
	Session         Session
	HasShipping     bool
	ShippingAddress *ShippingAddress
	ValidItems      []LineItem
	InvalidItems    []InvalidLineItem
}

// Review is the finalized snapshot fetched before confirmation.
type Review struct {
	ShippingAddress  *ShippingAddress
	PaymentMethod    string
	Subtotal         decimal.Decimal
	DeliveryCharge   *decimal.Decimal
	Weight           float64
	PlatformDiscount *decimal.Decimal
	TotalPayable     decimal.Decimal
	ValidItems       []LineItem
	InvalidItems     []InvalidLineItem
}

// Wire shapes: the backend serializes optional fields through tagged
// valid/value wrappers; they are unwrapped here and nowhere else.

type sessionPayload struct {
	ID                string                            `json:"id"`
	Subtotal          decimal.Decimal                   `json:"subtotal"`
	DeliveryCharge    types.Nullable[decimal.Decimal]   `json:"delivery_charge"`
	TotalPayable      decimal.Decimal                   `json:"total_payable"`
	ShippingAddressID types.Nullable[string]            `json:"shipping_address_id"`
	Status            string                            `json:"status"`
	PaymentMethod     string                            `json:"payment_method"`
	PlatformDiscount  types.Nullable[decimal.Decimal]   `json:"platform_discount"`
}

func (p sessionPayload) normalize() Session {
	return Session{
		ID:                p.ID,
		Subtotal:          p.Subtotal,
		DeliveryCharge:    p.DeliveryCharge.Ptr(),
		TotalPayable:      p.TotalPayable,
		ShippingAddressID: p.ShippingAddressID.Ptr(),
		Status:            p.Status,
		PaymentMethod:     p.PaymentMethod,
		PlatformDiscount:  p.PlatformDiscount.Ptr(),
	}
}

type detailsPayload struct {
	Session                   sessionPayload                  `json:"session"`
	HasShippingAddressDetails bool                            `json:"has_shipping_address_details"`
	ShippingAddress           types.Nullable[ShippingAddress] `json:"shipping_address"`
	ValidItems                []LineItem                      `json:"valid_items"`
	InvalidItems              []InvalidLineItem               `json:"invalid_items"`
}

func (p detailsPayload) normalize() *Details {
	return &Details{
		Session:         p.Session.normalize(),
		HasShipping:     p.HasShippingAddressDetails,
		ShippingAddress: p.ShippingAddress.Ptr(),
		ValidItems:      p.ValidItems,
		InvalidItems:    p.InvalidItems,
	}
}

type reviewPayload struct {
	ShippingAddress  types.Nullable[ShippingAddress] `json:"shipping_address"`
	PaymentMethod    string                          `json:"payment_method"`
	Subtotal         decimal.Decimal                 `json:"subtotal"`
	DeliveryCharge   types.Nullable[decimal.Decimal] `json:"delivery_charge"`
	Weight           float64                         `json:"weight"`
	PlatformDiscount types.Nullable[decimal.Decimal] `json:"platform_discount"`
	TotalPayable     decimal.Decimal                 `json:"total_payable"`
	ValidItems       []LineItem                      `json:"valid_items"`
	InvalidItems     []InvalidLineItem               `json:"invalid_items"`
}

func (p reviewPayload) normalize() *Review {
	return &Review{
		ShippingAddress:  p.ShippingAddress.Ptr(),
		PaymentMethod:    p.PaymentMethod,
		Subtotal:         p.Subtotal,
		DeliveryCharge:   p.DeliveryCharge.Ptr(),
		Weight:           p.Weight,
		PlatformDiscount: p.PlatformDiscount.Ptr(),
		TotalPayable:     p.TotalPayable,
		ValidItems:       p.ValidItems,
		InvalidItems:     p.InvalidItems,
	}
}

// extractSessionID tolerates the envelope shapes the initiate endpoint
// has been seen answering with.
func extractSessionID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var probe struct {
		CheckoutSessionID string `json:"checkout_session_id"`
		SessionID         string `json:"session_id"`
		ID                string `json:"id"`
		Session           struct {
			CheckoutSessionID string `json:"checkout_session_id"`
			ID                string `json:"id"`
		} `json:"session"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	for _, candidate := range []string{
		probe.CheckoutSessionID,
		probe.Session.CheckoutSessionID,
		probe.Session.ID,
		probe.SessionID,
		probe.ID,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
