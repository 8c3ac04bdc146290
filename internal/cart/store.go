package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openbasket/storefront-client/internal/rest"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/shopspring/decimal"
)

type apiClient interface {
	Do(ctx context.Context, req rest.Request, out any) error
}

// Store tracks the authenticated user's cart. Every mutating operation
// calls the backend first and then re-fetches the canonical cart; the
// local state is never mutated optimistically.
type Store struct {
	api     apiClient
	session *session.Store
	logger  *logger.Logger

	mu           sync.RWMutex
	groups       []SellerGroup
	invalidItems []InvalidItem
	itemIndex    map[string]itemEntry
	selection    map[string]struct{}
	selectionSet bool
	summary      *Summary
}

// NewStore builds a cart store bound to the backend client and session.
func NewStore(api apiClient, sess *session.Store, logg *logger.Logger) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("api client required")
	}
	if sess == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Store{
		api:       api,
		session:   sess,
		logger:    logg,
		itemIndex: map[string]itemEntry{},
	}, nil
}

// Fetch loads the server's canonical cart, rebuilds the variant index,
// and recomputes the selection. It is a deliberate no-op when no user is
// signed in or a logout is in progress.
func (s *Store) Fetch(ctx context.Context) error {
	if !s.session.Authenticated() {
		return nil
	}

	var payload cartPayload
	if err := s.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/cart/items"}, &payload); err != nil {
		return err
	}

	index := map[string]itemEntry{}
	for _, group := range payload.Groups {
		for _, product := range group.Products {
			for _, variant := range product.Variants {
				index[variant.ID] = itemEntry{Quantity: variant.Quantity, ProductID: product.ID}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selection := map[string]struct{}{}
	if s.selectionSet {
		// Keep only previously selected variants that survived the
		// fetch; new arrivals stay unselected.
		for id := range s.selection {
			if _, ok := index[id]; ok {
				selection[id] = struct{}{}
			}
		}
	} else {
		for id := range index {
			selection[id] = struct{}{}
		}
	}

	s.groups = payload.Groups
	s.invalidItems = payload.InvalidItems
	s.itemIndex = index
	s.selection = selection
	s.selectionSet = true
	return nil
}

// AddInput identifies the variant being added and how many.
type AddInput struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Store) Add(ctx context.Context, input AddInput) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if err := s.api.Do(ctx, rest.Request{Method: "POST", Path: "/api/cart/add", Body: input}, nil); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

func (s *Store) UpdateQty(ctx context.Context, variantID string, quantity int) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	if err := s.api.Do(ctx, rest.Request{Method: "PUT", Path: "/api/cart/update", Body: body}, nil); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

func (s *Store) Remove(ctx context.Context, variantID string) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if err := s.api.Do(ctx, rest.Request{Method: "DELETE", Path: "/api/cart/remove/" + variantID}, nil); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if err := s.api.Do(ctx, rest.Request{Method: "DELETE", Path: "/api/cart/clear"}, nil); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// ToggleSelect flips the checkout selection for a variant currently in
// the cart. Unknown variant IDs are ignored.
func (s *Store) ToggleSelect(variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.itemIndex[variantID]; !ok {
		return
	}
	if s.selection == nil {
		s.selection = map[string]struct{}{}
	}
	if _, selected := s.selection[variantID]; selected {
		delete(s.selection, variantID)
	} else {
		s.selection[variantID] = struct{}{}
	}
	s.selectionSet = true
}

// SelectAll selects every variant currently in the item index.
func (s *Store) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	selection := make(map[string]struct{}, len(s.itemIndex))
	for id := range s.itemIndex {
		selection[id] = struct{}{}
	}
	s.selection = selection
	s.selectionSet = true
}

func (s *Store) UnselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = map[string]struct{}{}
	s.selectionSet = true
}

// RefreshSummary prices the current selection. An empty selection
// resolves locally to a zero summary without a network call.
func (s *Store) RefreshSummary(ctx context.Context) error {
	if !s.session.Authenticated() {
		return nil
	}

	selected := s.SelectedIDs()
	if len(selected) == 0 {
		s.mu.Lock()
		s.summary = &Summary{TotalPrice: decimal.Zero, InvalidItems: []InvalidItem{}}
		s.mu.Unlock()
		return nil
	}

	var summary Summary
	body := map[string]any{"variant_ids": selected}
	if err := s.api.Do(ctx, rest.Request{Method: "POST", Path: "/api/cart/summary", Body: body}, &summary); err != nil {
		return err
	}

	s.mu.Lock()
	s.summary = &summary
	s.mu.Unlock()
	return nil
}

func (s *Store) InCart(variantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.itemIndex[variantID]
	return ok
}

func (s *Store) Qty(variantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemIndex[variantID].Quantity
}

func (s *Store) Selected(variantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selection[variantID]
	return ok
}

// SelectedIDs returns the selected variant IDs in stable order.
func (s *Store) SelectedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Groups() []SellerGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SellerGroup(nil), s.groups...)
}

func (s *Store) InvalidItems() []InvalidItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]InvalidItem(nil), s.invalidItems...)
}

func (s *Store) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return nil
	}
	copied := *s.summary
	copied.InvalidItems = append([]InvalidItem(nil), s.summary.InvalidItems...)
	return &copied
}

func (s *Store) requireAuth() error {
	if !s.session.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthenticated, "sign in required")
	}
	return nil
}
