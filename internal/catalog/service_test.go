package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

type catalogFixture struct {
	repo     *Repository
	svc      Service
	cake     models.Product
	topper   models.Product
	tart     models.Product
	bundle   models.Bundle
	sliceBox models.SliceBoxOption
}

func newCatalogFixture(t *testing.T) catalogFixture {
	t.Helper()
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)

	f := catalogFixture{repo: repo, svc: svc}
	f.cake = models.Product{Name: "Carrot Cake", Slug: "carrot-cake", Category: "Cakes", Price: decimal.NewFromInt(20), Active: true, IsSpecial: true}
	require.NoError(t, repo.SaveProduct(ctx, &f.cake))
	f.topper = models.Product{Name: "Lemon Tart", Slug: "lemon-tart", Price: decimal.NewFromInt(8), Active: true}
	require.NoError(t, repo.SaveProduct(ctx, &f.topper))
	f.tart = models.Product{Name: "Berry Tart", Slug: "berry-tart", Price: decimal.NewFromInt(10), Active: true,
		Variants: []models.ProductVariant{
			{Name: "Small", Price: decimal.NewFromInt(12), Active: true},
			{Name: "Large", Price: decimal.NewFromInt(18), Active: false},
		}}
	require.NoError(t, repo.SaveProduct(ctx, &f.tart))
	f.bundle = models.Bundle{Name: "Tea Party", Price: decimal.NewFromInt(45), Active: true,
		Items: []models.BundleItem{{ProductID: f.cake.ID, Qty: 1}, {ProductID: f.topper.ID, Qty: 2}}}
	require.NoError(t, repo.SaveBundle(ctx, &f.bundle))
	f.sliceBox = models.SliceBoxOption{Name: "Box of 4", Price: decimal.NewFromInt(24), Slots: 4, Active: true}
	require.NoError(t, repo.SaveSliceBox(ctx, &f.sliceBox))
	return f
}

func TestResolvePricesAndExpandsLines(t *testing.T) {
	f := newCatalogFixture(t)
	small := f.tart.Variants[0].ID

	resolved, err := f.svc.Resolve(context.Background(), []CartLine{
		{Kind: enums.OrderLineProduct, ProductID: &f.cake.ID, Quantity: 1, Candles: 3, Message: " Happy Birthday "},
		{Kind: enums.OrderLineProduct, ProductID: &f.tart.ID, VariantID: &small, Quantity: 2, Candles: 5},
		{Kind: enums.OrderLineBundle, BundleID: &f.bundle.ID, Quantity: 2},
		{Kind: enums.OrderLineSliceBox, SliceBoxID: &f.sliceBox.ID, Quantity: 1, Slices: []SliceSelection{
			{ProductID: f.topper.ID, Qty: 3},
			{ProductID: f.cake.ID, Qty: 1},
		}},
	}, ResolveOptions{})
	require.NoError(t, err)

	require.Len(t, resolved.Lines, 4)
	assert.Equal(t, 3, resolved.Lines[0].Candles)
	assert.Equal(t, "Happy Birthday", resolved.Lines[0].Message)
	assert.Zero(t, resolved.Lines[1].Candles, "customization is only kept for special products")
	assert.Equal(t, "Small", resolved.Lines[1].VariantName)
	assert.Equal(t, 2, resolved.Lines[2].Position)
	require.Len(t, resolved.Lines[2].Components, 2)
	assert.True(t, resolved.ProductsAmount.Equal(decimal.NewFromInt(20+24+90+24)))

	want := []stock.Usage{
		{ProductID: f.cake.ID, Qty: 1 + 2 + 1},
		{ProductID: f.tart.ID, VariantID: &small, Qty: 2},
		{ProductID: f.topper.ID, Qty: 4 + 3},
	}
	assert.Equal(t, want, resolved.Usages)
}

func TestResolveRejectsUnavailableLines(t *testing.T) {
	f := newCatalogFixture(t)
	large := f.tart.Variants[1].ID
	missing := uuid.New()
	price := decimal.NewFromInt(5)

	cases := []struct {
		name string
		line CartLine
		code pkgerrors.Code
	}{
		{"inactive variant", CartLine{Kind: enums.OrderLineProduct, ProductID: &f.tart.ID, VariantID: &large, Quantity: 1}, pkgerrors.CodeValidation},
		{"variant required", CartLine{Kind: enums.OrderLineProduct, ProductID: &f.tart.ID, Quantity: 1}, pkgerrors.CodeValidation},
		{"unknown product", CartLine{Kind: enums.OrderLineProduct, ProductID: &missing, Quantity: 1}, pkgerrors.CodeValidation},
		{"underfilled slice box", CartLine{Kind: enums.OrderLineSliceBox, SliceBoxID: &f.sliceBox.ID, Quantity: 1,
			Slices: []SliceSelection{{ProductID: f.cake.ID, Qty: 1}}}, pkgerrors.CodeValidation},
		{"custom line from storefront", CartLine{Kind: enums.OrderLineCustom, Name: "Delivery tip", Price: &price, Quantity: 1}, pkgerrors.CodeForbidden},
		{"zero quantity", CartLine{Kind: enums.OrderLineProduct, ProductID: &f.cake.ID}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Resolve(context.Background(), []CartLine{tc.line}, ResolveOptions{})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestResolveCustomLinesForAdmins(t *testing.T) {
	f := newCatalogFixture(t)
	price := decimal.RequireFromString("12.345")

	resolved, err := f.svc.Resolve(context.Background(), []CartLine{
		{Kind: enums.OrderLineCustom, Name: "Corporate platter", Price: &price, Quantity: 2},
	}, ResolveOptions{AllowCustom: true})
	require.NoError(t, err)
	assert.Empty(t, resolved.Usages)
	assert.True(t, resolved.ProductsAmount.Equal(decimal.RequireFromString("24.70")))
}

func TestResolveEmptyCart(t *testing.T) {
	f := newCatalogFixture(t)
	_, err := f.svc.Resolve(context.Background(), nil, ResolveOptions{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
