package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harborline/shopcsv/catalog"
)

// SKURegistry enforces case-insensitive SKU uniqueness across one export.
// On collision the suffix -N is appended, N incrementing from the previous
// collision count until an unused SKU is found.
type SKURegistry struct {
	used     map[string]bool
	suffixes map[string]int
}

// NewSKURegistry creates an empty registry
func NewSKURegistry() *SKURegistry {
	return &SKURegistry{
		used:     make(map[string]bool),
		suffixes: make(map[string]int),
	}
}

// Claim returns sku if unused, otherwise the first free sku-N variant,
// and records the result as taken.
func (r *SKURegistry) Claim(sku string) string {
	key := strings.ToLower(sku)
	if !r.used[key] {
		r.used[key] = true
		return sku
	}

	n := r.suffixes[key]
	for {
		n++
		candidate := fmt.Sprintf("%s-%d", sku, n)
		candidateKey := strings.ToLower(candidate)
		if !r.used[candidateKey] {
			r.suffixes[key] = n
			r.used[candidateKey] = true
			return candidate
		}
	}
}

// RowBuilder maps reconciled variants and images onto output rows
type RowBuilder struct {
	skus *SKURegistry
	now  func() time.Time
}

// NewRowBuilder creates a row builder with a fresh SKU registry
func NewRowBuilder() *RowBuilder {
	return &RowBuilder{skus: NewSKURegistry(), now: time.Now}
}

// BuildPackageRows assembles all output rows for one product package:
// one row per reconciled variant (the first carrying the product-level
// columns), then one row per image. Returns a Data failure when the package
// cannot be represented at all; the caller records it and moves on.
func (b *RowBuilder) BuildPackageRows(pkg catalog.Package, defs []OptionDefinition, records []VariantRecord, extraTags []string) ([]Row, *Failure) {
	product := pkg.Product
	if strings.TrimSpace(product.Handle) == "" {
		return nil, &Failure{
			Code:    FailureCodeMissingHandle,
			Message: "product has no handle",
			Context: fmt.Sprintf("product_id=%d title=%q", product.ID, product.Title),
		}
	}
	if strings.TrimSpace(product.Title) == "" {
		return nil, &Failure{
			Code:    FailureCodeMissingTitle,
			Message: "product has no title",
			Context: fmt.Sprintf("product_id=%d handle=%q", product.ID, product.Handle),
		}
	}

	rows := make([]Row, 0, len(records)+len(pkg.Images))
	for i, record := range records {
		row := b.buildVariantRow(record, product, defs, i+1)
		if i == 0 {
			applyProductColumns(&row, product, defs, extraTags)
		}
		rows = append(rows, row)
	}

	rows = append(rows, buildImageRows(product, pkg.Images)...)
	return rows, nil
}

// buildVariantRow maps one reconciled variant into the variant-level columns.
// position is the 1-based index of the record within its product, used for
// fallback SKU derivation.
func (b *RowBuilder) buildVariantRow(record VariantRecord, product catalog.Product, defs []OptionDefinition, position int) Row {
	variant := record.Variant
	price, compareAt := b.resolvePrice(variant.Pricing)

	row := Row{
		Handle:             product.Handle,
		VariantSKU:         b.resolveSKU(variant, record.Options, product.Handle, position),
		VariantGrams:       strconv.Itoa(variant.WeightGrams),
		InventoryQty:       strconv.Itoa(resolveQuantity(variant.Inventory)),
		InventoryPolicy:    resolveInventoryPolicy(variant.Inventory.Backorders),
		FulfillmentService: "manual",
		VariantPrice:       price,
		CompareAtPrice:     compareAt,
		RequiresShipping:   boolLiteral(variant.RequiresShipping),
		VariantTaxable:     boolLiteral(variant.Taxable),
		VariantBarcode:     variant.Barcode,
	}
	if variant.Inventory.ManageStock {
		row.InventoryTracker = "shopify"
	}

	for i, value := range record.Options {
		switch i {
		case 0:
			row.Option1Value = value
		case 1:
			row.Option2Value = value
		case 2:
			row.Option3Value = value
		}
	}

	return row
}

// applyProductColumns fills the product-level columns carried only by a
// product's first row.
func applyProductColumns(row *Row, product catalog.Product, defs []OptionDefinition, extraTags []string) {
	row.Title = product.Title
	row.BodyHTML = product.BodyHTML
	row.Vendor = product.Vendor
	row.Type = product.ProductType
	row.Tags = strings.Join(mergeTags(product.Tags, extraTags), ", ")
	row.Published = boolLiteral(product.Status == "publish")
	row.Status = resolveStatus(product.Status)

	for i, def := range defs {
		switch i {
		case 0:
			row.Option1Name = def.Name
		case 1:
			row.Option2Name = def.Name
		case 2:
			row.Option3Name = def.Name
		}
	}
}

// buildImageRows emits one row per image with a 1-based, order-preserving
// position counter that restarts for each product. The featured image sorts
// first; alt text falls back to the product title.
func buildImageRows(product catalog.Product, images []catalog.Image) []Row {
	if len(images) == 0 {
		return nil
	}

	ordered := make([]catalog.Image, 0, len(images))
	for _, img := range images {
		if img.Featured {
			ordered = append(ordered, img)
		}
	}
	for _, img := range images {
		if !img.Featured {
			ordered = append(ordered, img)
		}
	}

	rows := make([]Row, 0, len(ordered))
	for i, img := range ordered {
		alt := img.Alt
		if alt == "" {
			alt = product.Title
		}
		rows = append(rows, Row{
			Handle:        product.Handle,
			ImageSrc:      img.Src,
			ImagePosition: strconv.Itoa(i + 1),
			ImageAltText:  alt,
		})
	}
	return rows
}

// resolvePrice applies the sale-window rule: the sale price wins only while
// "now" falls inside [sale_start, sale_end] (either bound open-ended);
// otherwise the explicit current price wins, then the regular price.
// Compare-at is populated only when a sale is active and regular > sale.
func (b *RowBuilder) resolvePrice(pricing catalog.Pricing) (price, compareAt string) {
	if pricing.Sale != "" && saleActive(pricing, b.now()) {
		price = pricing.Sale
		regular, rOK := parsePrice(pricing.Regular)
		sale, sOK := parsePrice(pricing.Sale)
		if rOK && sOK && regular > sale {
			compareAt = pricing.Regular
		}
		return price, compareAt
	}

	if pricing.Current != "" {
		return pricing.Current, ""
	}
	return pricing.Regular, ""
}

func saleActive(pricing catalog.Pricing, now time.Time) bool {
	if pricing.SaleStart != nil && now.Before(*pricing.SaleStart) {
		return false
	}
	if pricing.SaleEnd != nil && now.After(*pricing.SaleEnd) {
		return false
	}
	return true
}

func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// resolveQuantity coerces quantity to 0 when stock is not managed and no
// quantity is present.
func resolveQuantity(inv catalog.Inventory) int {
	if inv.Quantity != nil {
		return *inv.Quantity
	}
	return 0
}

// resolveInventoryPolicy maps the source backorder setting onto the target
// platform's policy values.
func resolveInventoryPolicy(backorders string) string {
	switch strings.ToLower(strings.TrimSpace(backorders)) {
	case "notify", "yes":
		return "continue"
	default:
		return "deny"
	}
}

// resolveStatus maps the source status onto the target schema's status column
func resolveStatus(status string) string {
	switch status {
	case "publish":
		return "active"
	case "trash":
		return "archived"
	default:
		return "draft"
	}
}

// resolveSKU returns the explicit SKU verbatim when set, otherwise derives
// one from the handle plus normalized option value segments, or a
// zero-padded position index when no segments exist. The result is claimed
// through the registry so collisions pick up a -N suffix.
func (b *RowBuilder) resolveSKU(variant catalog.Variant, options []string, handle string, position int) string {
	if sku := strings.TrimSpace(variant.SKU); sku != "" {
		return b.skus.Claim(sku)
	}

	var segments []string
	for _, value := range options {
		segment := normalizeSKUSegment(value)
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	var sku string
	if len(segments) > 0 {
		sku = handle + "-" + strings.Join(segments, "-")
	} else {
		sku = fmt.Sprintf("%s-%03d", handle, position)
	}
	return b.skus.Claim(sku)
}

// normalizeSKUSegment uppercases a value and collapses runs of
// non-alphanumeric characters.
func normalizeSKUSegment(value string) string {
	var sb strings.Builder
	lastSkipped := false
	for _, r := range strings.ToUpper(strings.TrimSpace(value)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if lastSkipped && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			lastSkipped = false
		} else {
			lastSkipped = true
		}
	}
	return sb.String()
}

// mergeTags appends extra tags to the product's own, deduplicated
// case-insensitively with the product's ordering preserved.
func mergeTags(productTags, extraTags []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, tag := range productTags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, tag)
	}
	for _, tag := range extraTags {
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, tag)
	}
	return merged
}

// boolLiteral renders a boolean as the literal strings the importer expects
func boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
