package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidID     = errors.New("invalid order id")
	ErrNotFound      = errors.New("order not found")
	ErrForbidden     = errors.New("access denied")
	ErrEmptyOrder    = errors.New("order must contain at least one item")
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidOrder wraps item validation failures, including
	// references to products that do not exist.
	ErrInvalidOrder = errors.New("invalid order")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts the five known statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Items      []Item          `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ItemInput is one line of an order request.
type ItemInput struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=1000"`
}

// Actor is the caller of an order operation. ReadAll and WriteAny come
// from the caller's permissions.
type Actor struct {
	UserID   string
	ReadAll  bool
	WriteAny bool
}

// Repository stores orders. Missing orders are reported as ErrNotFound.
type Repository interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
}
