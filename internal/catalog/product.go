package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidID = errors.New("invalid product id")
	ErrNotFound  = errors.New("product not found")
	// ErrInvalidProduct wraps every field validation failure.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is a catalog entry. Price is exact; it is encoded as a JSON
// string such as "19.99".
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductInput is the body of a create request.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"max=100"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,max=2048"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// ProductPatch is the body of an update request. Nil fields are left
// unchanged.
type ProductPatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,max=2048"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
}

// Filter narrows List. Query matches name case-insensitively.
type Filter struct {
	Category string
	Query    string
	Limit    int
	Offset   int
}

// Repository stores products. Missing products are reported as
// ErrNotFound.
type Repository interface {
	ListProducts(ctx context.Context, f Filter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	ReplaceProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// ValidID reports whether id is a product identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
