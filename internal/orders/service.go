package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	maxItems      = 100
	lookupWorkers = 4
)

// Products resolves catalog entries. *catalog.Service implements it.
type Products interface {
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

type Service struct {
	repo     Repository
	products Products
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, products Products) *Service {
	return &Service{
		repo:     repo,
		products: products,
		validate: validate.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create places a pending order for userID. Names and unit prices come
// from the catalog and the total is computed here.
func (s *Service) Create(ctx context.Context, userID string, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if len(items) > maxItems {
		return nil, fmt.Errorf("%w: at most %d items", ErrInvalidOrder, maxItems)
	}
	for _, in := range items {
		if err := s.validate.Struct(in); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, validate.Message(err))
		}
	}

	lines := make([]Item, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupWorkers)
	for i, in := range items {
		g.Go(func() error {
			p, err := s.products.Get(gctx, in.ProductID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrInvalidID) {
					return fmt.Errorf("%w: product %s does not exist", ErrInvalidOrder, in.ProductID)
				}
				return err
			}
			lines[i] = Item{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  in.Quantity,
				UnitPrice: p.Price,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	now := s.now()
	o := &Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Items:      lines,
		TotalPrice: total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListForUser returns userID's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return nonNil(s.repo.ListOrdersByUser(ctx, userID))
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context, actor Actor) ([]Order, error) {
	if !actor.ReadAll {
		return nil, ErrForbidden
	}
	return nonNil(s.repo.ListOrders(ctx))
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Order, error) {
	if !validID(id) {
		return nil, ErrInvalidID
	}
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID && !actor.ReadAll {
		return nil, ErrForbidden
	}
	return o, nil
}

// UpdateStatus sets the order status. An empty status keeps the current
// one.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id, status string) (*Order, error) {
	if !validID(id) {
		return nil, ErrInvalidID
	}
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID && !actor.WriteAny {
		return nil, ErrForbidden
	}

	next := o.Status
	if status != "" {
		if next, err = ParseStatus(status); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.repo.UpdateOrderStatus(ctx, id, next, now); err != nil {
		return nil, err
	}
	o.Status = next
	o.UpdatedAt = now
	return o, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNil(list []Order, err error) ([]Order, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Order{}
	}
	return list, nil
}
