package catalog_test

import (
	"context"
	"testing"

	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateSanitizesAndValidates(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memstore.New())

	p, err := svc.Create(ctx, catalog.ProductInput{
		Name:        "  Rose Serum ",
		Description: `<p onclick="x()">Glow</p><script>alert(1)</script>`,
		Price:       price("19.99"),
		Category:    "skin",
		Stock:       3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Rose Serum", p.Name)
	assert.Equal(t, "<p>Glow</p>", p.Description)
	assert.True(t, catalog.ValidID(p.ID))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(price("19.99")))
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := catalog.NewService(memstore.New())

	cases := map[string]catalog.ProductInput{
		"missing name":   {Price: price("1")},
		"negative price": {Name: "x", Price: price("-1")},
		"three decimals": {Name: "x", Price: price("1.999")},
		"negative stock": {Name: "x", Price: price("1"), Stock: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
		})
	}
}

func TestGetErrors(t *testing.T) {
	svc := catalog.NewService(memstore.New())

	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, catalog.ErrInvalidID)
	_, err = svc.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memstore.New())
	p, err := svc.Create(ctx, catalog.ProductInput{Name: "Balm", Price: price("5"), Category: "lips"})
	require.NoError(t, err)

	newPrice := price("6.50")
	updated, err := svc.Update(ctx, p.ID, catalog.ProductPatch{Price: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, "Balm", updated.Name)
	assert.Equal(t, "lips", updated.Category)
	assert.True(t, updated.Price.Equal(newPrice))

	empty := " "
	_, err = svc.Update(ctx, p.ID, catalog.ProductPatch{Name: &empty})
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)

	_, err = svc.Update(ctx, uuid.NewString(), catalog.ProductPatch{Price: &newPrice})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memstore.New())
	p, err := svc.Create(ctx, catalog.ProductInput{Name: "Balm", Price: price("5")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), catalog.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "bad"), catalog.ErrInvalidID)
}

func TestListClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memstore.New())
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, catalog.ProductInput{Name: "P", Price: price("1")})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, catalog.Filter{Limit: -5, Offset: -1})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	empty, err := svc.List(ctx, catalog.Filter{Category: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
