package seller

import (
	"context"
	"fmt"

	"github.com/openbasket/storefront-client/internal/rest"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/openbasket/storefront-client/pkg/validate"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type apiClient interface {
	Do(ctx context.Context, req rest.Request, out any) error
}

// Service drives the seller product-management console. The backend
// exposes one focused endpoint per mutable attribute, so each method
// maps to exactly one call.
type Service struct {
	api     apiClient
	session *session.Store
	logger  *logger.Logger
}

func NewService(api apiClient, sess *session.Store, logg *logger.Logger) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("api client required")
	}
	if sess == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{api: api, session: sess, logger: logg}, nil
}

type TitleInput struct {
	Title string `json:"title" validate:"required,max=200"`
}

func (s *Service) UpdateTitle(ctx context.Context, productID string, input TitleInput) error {
	return s.put(ctx, productPath(productID, "title"), input)
}

type DescriptionInput struct {
	Description string `json:"description" validate:"required"`
}

func (s *Service) UpdateDescription(ctx context.Context, productID string, input DescriptionInput) error {
	return s.put(ctx, productPath(productID, "description"), input)
}

type MediaInput struct {
	MediaURL  string `json:"media_url" validate:"required"`
	MediaType string `json:"media_type" validate:"required,oneof=image video"`
}

func (s *Service) AddMedia(ctx context.Context, productID string, input MediaInput) error {
	return s.post(ctx, productPath(productID, "media"), input)
}

func (s *Service) ArchiveMedia(ctx context.Context, productID, mediaID string) error {
	if mediaID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "media id required")
	}
	return s.post(ctx, productPath(productID, "media/"+mediaID+"/archive"), nil)
}

// ArchiveAllMedia archives every listed media item, collecting per-item
// failures instead of stopping at the first one.
func (s *Service) ArchiveAllMedia(ctx context.Context, productID string, mediaIDs []string) error {
	var errs []error
	for _, mediaID := range mediaIDs {
		if err := s.ArchiveMedia(ctx, productID, mediaID); err != nil {
			errs = append(errs, fmt.Errorf("archiving media %s: %w", mediaID, err))
		}
	}
	return multierr.Combine(errs...)
}

func (s *Service) SetPrimaryMedia(ctx context.Context, productID, mediaID string) error {
	if mediaID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "media id required")
	}
	return s.post(ctx, productPath(productID, "media/"+mediaID+"/set-primary"), nil)
}

type PriceInput struct {
	Price decimal.Decimal `json:"price"`
}

func (s *Service) UpdateRetailPrice(ctx context.Context, variantID string, input PriceInput) error {
	if input.Price.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	return s.put(ctx, variantPath(variantID, "retail-price"), input)
}

type StockInput struct {
	Stock int `json:"stock" validate:"gte=0"`
}

func (s *Service) UpdateStock(ctx context.Context, variantID string, input StockInput) error {
	return s.put(ctx, variantPath(variantID, "stock"), input)
}

type DiscountInput struct {
	Type  string          `json:"type" validate:"required,oneof=percentage fixed"`
	Value decimal.Decimal `json:"value"`
}

func (s *Service) AddDiscount(ctx context.Context, variantID string, input DiscountInput) error {
	if input.Value.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	return s.post(ctx, variantPath(variantID, "discount"), input)
}

func (s *Service) UpdateDiscount(ctx context.Context, variantID string, input DiscountInput) error {
	if input.Value.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	return s.put(ctx, variantPath(variantID, "discount"), input)
}

func (s *Service) RemoveDiscount(ctx context.Context, variantID string) error {
	return s.delete(ctx, variantPath(variantID, "discount"))
}

type WholesaleInput struct {
	MinQuantity int             `json:"min_quantity" validate:"gte=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (s *Service) EnableWholesale(ctx context.Context, variantID string, input WholesaleInput) error {
	if input.UnitPrice.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "wholesale unit price must be positive")
	}
	return s.post(ctx, variantPath(variantID, "wholesale/enable"), input)
}

func (s *Service) UpdateWholesale(ctx context.Context, variantID string, input WholesaleInput) error {
	if input.UnitPrice.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "wholesale unit price must be positive")
	}
	return s.put(ctx, variantPath(variantID, "wholesale"), input)
}

func (s *Service) DisableWholesale(ctx context.Context, variantID string) error {
	return s.post(ctx, variantPath(variantID, "wholesale/disable"), nil)
}

func (s *Service) AddWholesaleDiscount(ctx context.Context, variantID string, input DiscountInput) error {
	return s.post(ctx, variantPath(variantID, "wholesale-discount"), input)
}

func (s *Service) UpdateWholesaleDiscount(ctx context.Context, variantID string, input DiscountInput) error {
	return s.put(ctx, variantPath(variantID, "wholesale-discount"), input)
}

func (s *Service) RemoveWholesaleDiscount(ctx context.Context, variantID string) error {
	return s.delete(ctx, variantPath(variantID, "wholesale-discount"))
}

type CategoryInput struct {
	CategoryID string `json:"category_id" validate:"required"`
}

func (s *Service) ChangeCategory(ctx context.Context, productID string, input CategoryInput) error {
	return s.put(ctx, productPath(productID, "category"), input)
}

func (s *Service) post(ctx context.Context, path string, input any) error {
	return s.send(ctx, "POST", path, input)
}

func (s *Service) put(ctx context.Context, path string, input any) error {
	return s.send(ctx, "PUT", path, input)
}

func (s *Service) delete(ctx context.Context, path string) error {
	return s.send(ctx, "DELETE", path, nil)
}

func (s *Service) send(ctx context.Context, method, path string, input any) error {
	if !s.session.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthenticated, "sign in required")
	}
	if input != nil {
		if err := validate.Struct(input); err != nil {
			return err
		}
	}
	return s.api.Do(ctx, rest.Request{Method: method, Path: path, Body: input}, nil)
}

func productPath(productID, attribute string) string {
	return "/api/seller/products/" + productID + "/" + attribute
}

func variantPath(variantID, attribute string) string {
	return "/api/seller/variants/" + variantID + "/" + attribute
}
