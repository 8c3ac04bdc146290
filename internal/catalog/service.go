package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/openbasket/storefront-client/internal/rest"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/shopspring/decimal"
)

type apiClient interface {
	Do(ctx context.Context, req rest.Request, out any) error
}

// Category is one node of the store's category tree.
type Category struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	Children []Category `json:"children"`
}

// ProductSummary is a catalog card.
type ProductSummary struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	ImageURL   string          `json:"image_url"`
	CategoryID string          `json:"category_id"`
}

// Page is one page of catalog results.
type Page struct {
	Items   []ProductSummary `json:"items"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// ProductDetail is the full product view.
type ProductDetail struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	Media       []Media          `json:"media"`
	Variants    []ProductVariant `json:"variants"`
}

type Media struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Primary bool   `json:"primary"`
}

type ProductVariant struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	RetailPrice decimal.Decimal  `json:"retail_price"`
	Stock       int              `json:"stock"`
	Discount    *decimal.Decimal `json:"discount"`
	Wholesale   *Wholesale       `json:"wholesale"`
}

type Wholesale struct {
	MinQuantity int              `json:"min_quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Discount    *decimal.Decimal `json:"discount"`
}

// Service reads the public catalog.
type Service struct {
	api apiClient
}

func NewService(api apiClient) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("api client required")
	}
	return &Service{api: api}, nil
}

func (s *Service) CategoryTree(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := s.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/categories/tree"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Feed(ctx context.Context, params Params) (*Page, error) {
	var out Page
	if err := s.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/feed", Query: params.Values()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Search(ctx context.Context, params Params) (*Page, error) {
	if params.Query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	var out Page
	if err := s.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/search", Query: params.Values()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Product(ctx context.Context, productID string) (*ProductDetail, error) {
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	var out ProductDetail
	if err := s.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/products/" + productID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) CategoryProducts(ctx context.Context, categoryID string, params Params) (*Page, error) {
	if categoryID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id required")
	}
	query := params.Values()
	query.Set("category_id", categoryID)
	return s.categoryPage(ctx, query)
}

func (s *Service) categoryPage(ctx context.Context, query url.Values) (*Page, error) {
	var out Page
	if err := s.api.Do(ctx, rest.Request{Method: "GET", Path: "/api/category-products", Query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
