package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Service applies catalog rules on top of a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
	policy   *bluemonday.Policy
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validate.New(),
		policy:   bluemonday.UGCPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Query = strings.TrimSpace(f.Query)

	products, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: s.policy.Sanitize(in.Description),
		Price:       in.Price,
		Category:    in.Category,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, patch ProductPatch) (*Product, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	if err := s.check(patch); err != nil {
		return nil, err
	}

	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
		}
		p.Name = name
	}
	if patch.Description != nil {
		p.Description = s.policy.Sanitize(*patch.Description)
	}
	if patch.Price != nil {
		if err := checkPrice(*patch.Price); err != nil {
			return nil, err
		}
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	p.UpdatedAt = s.now()

	if err := s.repo.ReplaceProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, validate.Message(err))
	}
	return nil
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if !price.Equal(price.Round(2)) {
		return fmt.Errorf("%w: price must have at most 2 decimal places", ErrInvalidProduct)
	}
	return nil
}
