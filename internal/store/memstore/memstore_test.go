package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersUniqueEmailAndCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, storefront.CreateUserInput{Name: "A", Email: "A@Example.com", Role: storefront.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.True(t, u.Active)

	_, err = s.CreateUser(ctx, storefront.CreateUserInput{Name: "B", Email: "a@example.com"})
	assert.ErrorIs(t, err, storefront.ErrUserExists)

	u.Name = "mutated"
	again, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, storefront.ErrUserNotFound)
	assert.ErrorIs(t, s.MarkVerified(ctx, "missing"), storefront.ErrUserNotFound)
}

func TestTOTPStateTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, storefront.CreateUserInput{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.SetPendingTOTPSecret(ctx, u.ID, "PENDING"))
	require.NoError(t, s.EnableTOTP(ctx, u.ID, "PENDING", 10))
	require.ErrorIs(t, s.UpdateTOTPCounter(ctx, u.ID, 9), storefront.ErrTOTPInvalid)
	require.ErrorIs(t, s.UpdateTOTPCounter(ctx, u.ID, 10), storefront.ErrTOTPInvalid)
	require.ErrorIs(t, s.UpdateTOTPCounter(ctx, "missing", 11), storefront.ErrUserNotFound)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, storefront.TOTPState{Enabled: true, Secret: "PENDING", LastCounter: 10}, got.TOTP)

	require.NoError(t, s.DisableTOTP(ctx, u.ID))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.TOTP.Enabled)
	assert.Empty(t, got.TOTP.Secret)
}

func TestLoginHistoryKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, storefront.CreateUserInput{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		require.NoError(t, s.AppendLoginHistory(ctx, u.ID, storefront.LoginRecord{
			IP:   "ip",
			Date: time.Unix(int64(i), 0),
		}, 10))
	}
	history, err := s.LoginHistory(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, int64(2), history[0].Date.Unix())
	assert.Equal(t, int64(11), history[9].Date.Unix())
}

func TestProductFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, p := range []struct{ name, category string }{
		{"Rose Serum", "skin"},
		{"Lip Balm", "lips"},
		{"Night Serum", "skin"},
	} {
		require.NoError(t, s.InsertProduct(ctx, &catalog.Product{
			ID:        uuid.NewString(),
			Name:      p.name,
			Category:  p.category,
			Price:     decimal.RequireFromString("9.99"),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	skin, err := s.ListProducts(ctx, catalog.Filter{Category: "SKIN"})
	require.NoError(t, err)
	require.Len(t, skin, 2)
	assert.Equal(t, "Night Serum", skin[0].Name)

	serums, err := s.ListProducts(ctx, catalog.Filter{Query: "serum", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, serums, 1)
	assert.Equal(t, "Rose Serum", serums[0].Name)

	none, err := s.ListProducts(ctx, catalog.Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetProduct(ctx, uuid.NewString())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, uuid.NewString()), catalog.ErrNotFound)
	assert.ErrorIs(t, s.ReplaceProduct(ctx, &catalog.Product{ID: uuid.NewString()}), catalog.ErrNotFound)
}

func TestOrdersByUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	mine := &orders.Order{ID: uuid.NewString(), UserID: "u1", Status: orders.StatusPending, CreatedAt: now}
	theirs := &orders.Order{ID: uuid.NewString(), UserID: "u2", Status: orders.StatusPending, CreatedAt: now.Add(time.Second)}
	require.NoError(t, s.InsertOrder(ctx, mine))
	require.NoError(t, s.InsertOrder(ctx, theirs))

	list, err := s.ListOrdersByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	all, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, theirs.ID, all[0].ID)

	require.NoError(t, s.UpdateOrderStatus(ctx, mine.ID, orders.StatusPaid, now))
	got, err := s.GetOrder(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)

	assert.ErrorIs(t, s.UpdateOrderStatus(ctx, "nope", orders.StatusPaid, now), orders.ErrNotFound)
}
