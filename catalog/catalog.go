// Package catalog defines the normalized product source consumed by the
// export pipeline, with SQLite-backed and in-memory implementations.
package catalog

import (
	"context"
	"time"
)

// Attribute is one named axis of product data, e.g. Color or Size.
// Variation marks attributes whose options produce distinct variants.
type Attribute struct {
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	Options   []string `json:"options,omitempty"`
	Variation bool     `json:"variation"`
}

// Pricing carries the price fields of a product or variant.
// All prices are decimal strings as stored by the source platform;
// empty means unset.
type Pricing struct {
	Regular   string     `json:"regular_price"`
	Sale      string     `json:"sale_price"`
	Current   string     `json:"current_price"`
	SaleStart *time.Time `json:"sale_start,omitempty"`
	SaleEnd   *time.Time `json:"sale_end,omitempty"`
}

// Inventory carries stock fields of a product or variant
type Inventory struct {
	ManageStock bool   `json:"manage_stock"`
	Quantity    *int   `json:"quantity,omitempty"`
	Backorders  string `json:"backorders"` // "notify", "yes", "no", or empty
}

// Product is the normalized view of one source-platform product
type Product struct {
	ID               int64       `json:"id"`
	Handle           string      `json:"handle"`
	Title            string      `json:"title"`
	BodyHTML         string      `json:"body_html"`
	Vendor           string      `json:"vendor"`
	ProductType      string      `json:"product_type"`
	Tags             []string    `json:"tags"`
	Status           string      `json:"status"` // source status, e.g. "publish", "draft"
	Category         string      `json:"category"`
	IsVariable       bool        `json:"is_variable"`
	SKU              string      `json:"sku"`
	Pricing          Pricing     `json:"pricing"`
	Inventory        Inventory   `json:"inventory"`
	WeightGrams      int         `json:"weight_grams"`
	RequiresShipping bool        `json:"requires_shipping"`
	Taxable          bool        `json:"taxable"`
	Barcode          string      `json:"barcode"`
	Attributes       []Attribute `json:"attributes"`
}

// Variant is one variation record of a variable product.
// Attributes maps attribute slug to the selected option value.
type Variant struct {
	ID               int64             `json:"id"`
	ProductID        int64             `json:"product_id"`
	SKU              string            `json:"sku"`
	Pricing          Pricing           `json:"pricing"`
	Inventory        Inventory         `json:"inventory"`
	WeightGrams      int               `json:"weight_grams"`
	RequiresShipping bool              `json:"requires_shipping"`
	Taxable          bool              `json:"taxable"`
	Barcode          string            `json:"barcode"`
	Attributes       map[string]string `json:"attributes"`
	Position         int               `json:"position"`
}

// Image is one product image
type Image struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Src       string `json:"src"`
	Alt       string `json:"alt"`
	Featured  bool   `json:"featured"`
	Position  int    `json:"position"`
}

// Package bundles one product with its variants and images.
// Produced by a Source, consumed once by the pipeline, not retained.
type Package struct {
	Product  Product   `json:"product"`
	Variants []Variant `json:"variants,omitempty"`
	Images   []Image   `json:"images,omitempty"`
}

// Scope filters which products an export covers
type Scope struct {
	Status        string  `json:"status,omitempty"`
	Category      string  `json:"category,omitempty"`
	Tag           string  `json:"tag,omitempty"`
	IDs           []int64 `json:"ids,omitempty"`
	IncludeImages bool    `json:"include_images"`
}

// Cursor marks the last durably committed position in a source stream
type Cursor struct {
	LastProductID int64 `json:"last_product_id"`
	LastPage      int   `json:"last_page"`
}

// Source produces pages of product packages ordered ascending by product id,
// restartable from any previously observed cursor.
type Source interface {
	// Page returns up to batchSize packages with product id strictly greater
	// than cursor.LastProductID. A short page (fewer than batchSize packages)
	// signals the end of the stream.
	Page(ctx context.Context, scope Scope, cursor Cursor, batchSize int) ([]Package, error)
}
