package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shoptest "github.com/harborline/shopcsv/internal/testing"
)

func seedSource(t *testing.T) *SQLiteSource {
	t.Helper()
	source := NewSQLiteSource(shoptest.CreateTestDB(t))
	ctx := context.Background()

	saleEnd := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	qty := 4
	tee := Package{
		Product: Product{
			ID:         1,
			Handle:     "tee",
			Title:      "Tee",
			Vendor:     "Harborline",
			Tags:       []string{"apparel", "sale"},
			Status:     "publish",
			Category:   "clothing",
			IsVariable: true,
			Attributes: []Attribute{
				{Name: "Color", Slug: "color", Options: []string{"Red", "Blue"}, Variation: true},
			},
		},
		Variants: []Variant{
			{
				ID: 11, ProductID: 1, SKU: "TEE-RED", Position: 1,
				Pricing:    Pricing{Regular: "25.00", Sale: "20.00", SaleEnd: &saleEnd},
				Inventory:  Inventory{ManageStock: true, Quantity: &qty, Backorders: "notify"},
				Attributes: map[string]string{"color": "Red"},
			},
			{
				ID: 12, ProductID: 1, SKU: "TEE-BLUE", Position: 2,
				Pricing:    Pricing{Regular: "25.00"},
				Attributes: map[string]string{"color": "Blue"},
			},
		},
		Images: []Image{
			{ID: 101, ProductID: 1, Src: "https://cdn.example.com/b.jpg", Position: 2},
			{ID: 102, ProductID: 1, Src: "https://cdn.example.com/a.jpg", Featured: true, Position: 5},
		},
	}
	require.NoError(t, source.InsertPackage(ctx, tee))

	mug := Package{
		Product: Product{
			ID: 2, Handle: "mug", Title: "Mug", Status: "publish",
			Category: "kitchen", Pricing: Pricing{Regular: "12.00"},
		},
	}
	require.NoError(t, source.InsertPackage(ctx, mug))

	draft := Package{
		Product: Product{
			ID: 3, Handle: "hat", Title: "Hat", Status: "draft",
			Category: "clothing", Tags: []string{"sale"},
		},
	}
	require.NoError(t, source.InsertPackage(ctx, draft))

	return source
}

func TestSQLiteSourcePageRoundTrip(t *testing.T) {
	source := seedSource(t)
	ctx := context.Background()

	page, err := source.Page(ctx, Scope{IncludeImages: true}, Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)

	tee := page[0]
	assert.Equal(t, "tee", tee.Product.Handle)
	assert.Equal(t, []string{"apparel", "sale"}, tee.Product.Tags)
	require.Len(t, tee.Product.Attributes, 1)
	assert.True(t, tee.Product.Attributes[0].Variation)

	require.Len(t, tee.Variants, 2)
	assert.Equal(t, "TEE-RED", tee.Variants[0].SKU, "ordered by position")
	require.NotNil(t, tee.Variants[0].Pricing.SaleEnd)
	assert.Equal(t, "Red", tee.Variants[0].Attributes["color"])
	require.NotNil(t, tee.Variants[0].Inventory.Quantity)
	assert.Equal(t, 4, *tee.Variants[0].Inventory.Quantity)
	assert.Nil(t, tee.Variants[1].Inventory.Quantity)

	require.Len(t, tee.Images, 2)
	assert.True(t, tee.Images[0].Featured, "featured image sorts first")
	assert.Equal(t, "https://cdn.example.com/a.jpg", tee.Images[0].Src)

	// Simple product carries no variants, and images are omitted by scope
	page, err = source.Page(ctx, Scope{}, Cursor{}, 10)
	require.NoError(t, err)
	assert.Empty(t, page[0].Images)
}

func TestSQLiteSourceCursorPagination(t *testing.T) {
	source := seedSource(t)
	ctx := context.Background()

	page, err := source.Page(ctx, Scope{}, Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Product.ID)
	assert.Equal(t, int64(2), page[1].Product.ID)

	// Next page starts strictly after the last committed id
	page, err = source.Page(ctx, Scope{}, Cursor{LastProductID: 2}, 2)
	require.NoError(t, err)
	require.Len(t, page, 1, "short page signals the end of the stream")
	assert.Equal(t, int64(3), page[0].Product.ID)
}

func TestSQLiteSourceScopeFilters(t *testing.T) {
	source := seedSource(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		scope   Scope
		wantIDs []int64
	}{
		{"status", Scope{Status: "publish"}, []int64{1, 2}},
		{"category", Scope{Category: "clothing"}, []int64{1, 3}},
		{"tag", Scope{Tag: "sale"}, []int64{1, 3}},
		{"tag must match whole token", Scope{Tag: "sal"}, nil},
		{"ids", Scope{IDs: []int64{2, 3}}, []int64{2, 3}},
		{"combined", Scope{Status: "publish", Category: "clothing"}, []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := source.Page(ctx, tt.scope, Cursor{}, 10)
			require.NoError(t, err)

			var ids []int64
			for _, pkg := range page {
				ids = append(ids, pkg.Product.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)

			count, err := source.Count(ctx, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantIDs), count, "Count agrees with Page")
		})
	}
}
