// Package memstore is an in-memory document store used by tests and by
// `storefront serve --dev`. Records are copied on the way in and out.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/orders"
	"github.com/google/uuid"
)

type userRecord struct {
	user    storefront.User
	history []storefront.LoginRecord
}

type Store struct {
	mu       sync.RWMutex
	users    map[string]*userRecord
	byEmail  map[string]string
	products map[string]catalog.Product
	orders   map[string]orders.Order
}

var (
	_ storefront.UserProvider = (*Store)(nil)
	_ catalog.Repository      = (*Store)(nil)
	_ orders.Repository       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:    make(map[string]*userRecord),
		byEmail:  make(map[string]string),
		products: make(map[string]catalog.Product),
		orders:   make(map[string]orders.Order),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

/*
====================================
USERS
====================================
*/

func (s *Store) GetUserByEmail(_ context.Context, email string) (*storefront.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storefront.ErrUserNotFound
	}
	u := s.users[id].user
	return &u, nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*storefront.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, storefront.ErrUserNotFound
	}
	u := rec.user
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, in storefront.CreateUserInput) (*storefront.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(in.Email)
	if _, ok := s.byEmail[email]; ok {
		return nil, storefront.ErrUserExists
	}
	now := time.Now().UTC()
	u := storefront.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Verified:     in.Verified,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = &userRecord{user: u}
	s.byEmail[email] = u.ID
	return &u, nil
}

func (s *Store) updateUser(userID string, fn func(*storefront.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return storefront.ErrUserNotFound
	}
	fn(&rec.user)
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkVerified(_ context.Context, userID string) error {
	return s.updateUser(userID, func(u *storefront.User) { u.Verified = true })
}

func (s *Store) SetRole(_ context.Context, userID, role string) error {
	return s.updateUser(userID, func(u *storefront.User) { u.Role = role })
}

func (s *Store) SetActive(_ context.Context, userID string, active bool) error {
	return s.updateUser(userID, func(u *storefront.User) { u.Active = active })
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return s.updateUser(userID, func(u *storefront.User) { u.PasswordHash = hash })
}

func (s *Store) SetPendingTOTPSecret(_ context.Context, userID, secret string) error {
	return s.updateUser(userID, func(u *storefront.User) { u.TOTP.PendingSecret = secret })
}

func (s *Store) EnableTOTP(_ context.Context, userID, secret string, counter int64) error {
	return s.updateUser(userID, func(u *storefront.User) {
		u.TOTP = storefront.TOTPState{Enabled: true, Secret: secret, LastCounter: counter}
	})
}

func (s *Store) DisableTOTP(_ context.Context, userID string) error {
	return s.updateUser(userID, func(u *storefront.User) { u.TOTP = storefront.TOTPState{} })
}

func (s *Store) UpdateTOTPCounter(_ context.Context, userID string, counter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return storefront.ErrUserNotFound
	}
	if counter <= rec.user.TOTP.LastCounter {
		return storefront.ErrTOTPInvalid
	}
	rec.user.TOTP.LastCounter = counter
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AppendLoginHistory(_ context.Context, userID string, record storefront.LoginRecord, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return storefront.ErrUserNotFound
	}
	rec.history = append(rec.history, record)
	if limit > 0 && len(rec.history) > limit {
		rec.history = slices.Clone(rec.history[len(rec.history)-limit:])
	}
	return nil
}

func (s *Store) LoginHistory(_ context.Context, userID string) ([]storefront.LoginRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, storefront.ErrUserNotFound
	}
	return slices.Clone(rec.history), nil
}

/*
====================================
PRODUCTS
====================================
*/

func (s *Store) ListProducts(_ context.Context, f catalog.Filter) ([]catalog.Product, error) {
	s.mu.RLock()
	out := make([]catalog.Product, 0, len(s.products))
	query := strings.ToLower(f.Query)
	for _, p := range s.products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b catalog.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (s *Store) InsertProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) ReplaceProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

/*
====================================
ORDERS
====================================
*/

func (s *Store) InsertOrder(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	cp.Items = slices.Clone(o.Items)
	s.orders[o.ID] = cp
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]orders.Order, error) {
	return s.listOrders(func(o orders.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) ListOrders(context.Context) ([]orders.Order, error) {
	return s.listOrders(func(orders.Order) bool { return true }), nil
}

func (s *Store) listOrders(keep func(orders.Order) bool) []orders.Order {
	s.mu.RLock()
	out := make([]orders.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			o.Items = slices.Clone(o.Items)
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b orders.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status orders.Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	s.orders[id] = o
	return nil
}

func page[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
