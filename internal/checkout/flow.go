package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/openbasket/storefront-client/internal/rest"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/openbasket/storefront-client/pkg/validate"
)

type apiClient interface {
	Do(ctx context.Context, req rest.Request, out any) error
}

// Flow drives one checkout session through initiate → shipping → review
// → confirm. States only move forward; starting over requires a fresh
// initiate call.
type Flow struct {
	api     apiClient
	session *session.Store
	logger  *logger.Logger

	mu             sync.Mutex
	sessionID      string
	hasShipping    bool
	lastAddress    *ShippingAddress
	invalidItems   []InvalidLineItem
	invalidAlerted bool
	confirmBusy    bool
	confirmed      bool
}

// NewFlow builds a checkout flow bound to the backend client and session.
func NewFlow(api apiClient, sess *session.Store, logg *logger.Logger) (*Flow, error) {
	if api == nil {
		return nil, fmt.Errorf("api client required")
	}
	if sess == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Flow{api: api, session: sess, logger: logg}, nil
}

// SessionID returns the active checkout session id, empty before initiate.
func (f *Flow) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

// InitiateFromCart starts a checkout session from the selected cart
// variants.
func (f *Flow) InitiateFromCart(ctx context.Context, variantIDs []string) (string, error) {
	if len(variantIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no variants selected")
	}
	return f.initiate(ctx, map[string]any{
		"source":      "cart",
		"variant_ids": variantIDs,
	})
}

// InitiateFromProduct starts a buy-now checkout session for one variant.
func (f *Flow) InitiateFromProduct(ctx context.Context, variantID string, quantity int) (string, error) {
	if variantID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if quantity < 1 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return f.initiate(ctx, map[string]any{
		"source":     "product",
		"variant_id": variantID,
		"quantity":   quantity,
	})
}

func (f *Flow) initiate(ctx context.Context, body map[string]any) (string, error) {
	if !f.session.Authenticated() {
		return "", pkgerrors.New(pkgerrors.CodeUnauthenticated, "sign in required")
	}

	var raw json.RawMessage
	if err := f.api.Do(ctx, rest.Request{Method: "POST", Path: "/api/cart/checkout/initiate", Body: body}, &raw); err != nil {
		return "", err
	}

	sessionID := extractSessionID(raw)
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeBackend, "initiate response missing checkout session id")
	}

	f.mu.Lock()
	f.sessionID = sessionID
	f.hasShipping = false
	f.lastAddress = nil
	f.invalidItems = nil
	f.invalidAlerted = false
	f.confirmBusy = false
	f.confirmed = false
	f.mu.Unlock()

	f.logger.Debug(f.logger.WithCheckoutSession(ctx, sessionID), "checkout session initiated")
	return sessionID, nil
}

// Load fetches the session details and records shipping/invalid state
// for the confirm gate.
func (f *Flow) Load(ctx context.Context) (*Details, error) {
	sessionID, err := f.requireSession()
	if err != nil {
		return nil, err
	}

	var payload detailsPayload
	if err := f.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/checkout/" + sessionID}, &payload); err != nil {
		return nil, err
	}

	details := payload.normalize()

	f.mu.Lock()
	f.hasShipping = details.HasShipping
	f.lastAddress = details.ShippingAddress
	f.invalidItems = details.InvalidItems
	f.mu.Unlock()

	return details, nil
}

// ShouldAlertInvalidItems reports true exactly once per session load
// when the server flagged invalid items; the UI shows a blocking alert
// and sends the user back to the cart.
func (f *Flow) ShouldAlertInvalidItems() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.invalidItems) == 0 || f.invalidAlerted {
		return false
	}
	f.invalidAlerted = true
	return true
}

// AddressInput is the shipping form. Email and delivery note are
// optional and omitted from the request entirely when blank.
type AddressInput struct {
	RecipientName  string `json:"recipient_name" validate:"required"`
	RecipientPhone string `json:"recipient_phone" validate:"required"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
	AddressLine    string `json:"address_line" validate:"required"`
	DeliveryNote   string `json:"delivery_note"`
	CityID         int    `json:"city_id" validate:"gte=1"`
	ZoneID         int    `json:"zone_id" validate:"gte=1"`
	AreaID         int    `json:"area_id" validate:"gte=1"`
	PaymentMethod  string `json:"payment_method" validate:"required"`
}

// AddShippingAddress attaches the address to the session and reloads it.
func (f *Flow) AddShippingAddress(ctx context.Context, input AddressInput) error {
	sessionID, err := f.requireSession()
	if err != nil {
		return err
	}
	if err := validate.Struct(input); err != nil {
		return err
	}

	body := map[string]any{
		"recipient_name":  input.RecipientName,
		"recipient_phone": input.RecipientPhone,
		"address_line":    input.AddressLine,
		"city_id":         input.CityID,
		"zone_id":         input.ZoneID,
		"area_id":         input.AreaID,
		"payment_method":  input.PaymentMethod,
	}
	if input.RecipientEmail != "" {
		body["recipient_email"] = input.RecipientEmail
	}
	if input.DeliveryNote != "" {
		body["delivery_note"] = input.DeliveryNote
	}

	path := "/api/checkout/" + sessionID + "/add-shipping-address"
	if err := f.api.Do(ctx, rest.Request{Method: "POST", Path: path, Body: body}, nil); err != nil {
		return err
	}
	_, err = f.Load(ctx)
	return err
}

// EditShippingAddress sends only the fields that differ from the last
// loaded address. An empty diff skips the network call entirely.
// Optional fields cannot be cleared back to empty through this flow.
func (f *Flow) EditShippingAddress(ctx context.Context, input AddressInput) error {
	sessionID, err := f.requireSession()
	if err != nil {
		return err
	}

	f.mu.Lock()
	last := f.lastAddress
	f.mu.Unlock()
	if last == nil {
		return pkgerrors.New(pkgerrors.CodePrecondition, "no shipping address to edit")
	}

	patch := diffAddress(*last, input)
	if len(patch) == 0 {
		return nil
	}

	path := "/api/checkout/" + sessionID + "/shipping-address/" + last.ID + "/edit"
	if err := f.api.Do(ctx, rest.Request{Method: "PUT", Path: path, Body: patch}, nil); err != nil {
		return err
	}
	_, err = f.Load(ctx)
	return err
}

func diffAddress(last ShippingAddress, input AddressInput) map[string]any {
	patch := map[string]any{}
	if input.RecipientName != "" && input.RecipientName != last.RecipientName {
		patch["recipient_name"] = input.RecipientName
	}
	if input.RecipientPhone != "" && input.RecipientPhone != last.RecipientPhone {
		patch["recipient_phone"] = input.RecipientPhone
	}
	if input.AddressLine != "" && input.AddressLine != last.AddressLine {
		patch["address_line"] = input.AddressLine
	}
	if input.RecipientEmail != "" && input.RecipientEmail != last.RecipientEmail {
		patch["recipient_email"] = input.RecipientEmail
	}
	if input.DeliveryNote != "" && input.DeliveryNote != last.DeliveryNote {
		patch["delivery_note"] = input.DeliveryNote
	}
	if input.CityID >= 1 && input.CityID != last.CityID {
		patch["city_id"] = input.CityID
	}
	if input.ZoneID >= 1 && input.ZoneID != last.ZoneID {
		patch["zone_id"] = input.ZoneID
	}
	if input.AreaID >= 1 && input.AreaID != last.AreaID {
		patch["area_id"] = input.AreaID
	}
	return patch
}

// Review fetches the finalized snapshot and refreshes the confirm gate
// state from it.
func (f *Flow) Review(ctx context.Context) (*Review, error) {
	sessionID, err := f.requireSession()
	if err != nil {
		return nil, err
	}

	var payload reviewPayload
	if err := f.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/checkout/" + sessionID + "/review"}, &payload); err != nil {
		return nil, err
	}

	review := payload.normalize()

	f.mu.Lock()
	f.hasShipping = review.ShippingAddress != nil
	f.lastAddress = review.ShippingAddress
	f.invalidItems = review.InvalidItems
	f.mu.Unlock()

	return review, nil
}

// Confirm places the order. It is refused client-side, before any
// network call, unless a shipping address exists and no invalid items
// remain; a busy flag guards against double submission.
func (f *Flow) Confirm(ctx context.Context) error {
	sessionID, err := f.requireSession()
	if err != nil {
		return err
	}

	f.mu.Lock()
	switch {
	case f.confirmed:
		f.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout already confirmed")
	case f.confirmBusy:
		f.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "confirm already in progress")
	case !f.hasShipping:
		f.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodePrecondition, "shipping address required before confirm")
	case len(f.invalidItems) > 0:
		f.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodePrecondition, "cart has invalid items, fix them before confirm")
	}
	f.confirmBusy = true
	f.mu.Unlock()

	err = f.api.Do(ctx, rest.Request{Method: "POST", Path: "/api/checkout/" + sessionID + "/confirm"}, nil)

	f.mu.Lock()
	f.confirmBusy = false
	if err == nil {
		f.confirmed = true
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.logger.Info(f.logger.WithCheckoutSession(ctx, sessionID), "checkout confirmed")
	return nil
}

func (f *Flow) requireSession() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodePrecondition, "no active checkout session")
	}
	return f.sessionID, nil
}
