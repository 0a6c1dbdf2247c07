package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harborline/shopcsv/errors"
)

// SQLiteSource reads packages from the catalog_* tables.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource creates a source over the given database
func NewSQLiteSource(db *sql.DB) *SQLiteSource {
	return &SQLiteSource{db: db}
}

// Page implements Source
func (s *SQLiteSource) Page(ctx context.Context, scope Scope, cursor Cursor, batchSize int) ([]Package, error) {
	query := `SELECT id, handle, title, body_html, vendor, product_type, tags, status,
		category, is_variable, regular_price, sale_price, current_price, sale_start, sale_end,
		sku, manage_stock, stock_quantity, backorders, weight_grams, requires_shipping,
		taxable, barcode, attributes
		FROM catalog_products WHERE id > ?`
	args := []interface{}{cursor.LastProductID}

	if scope.Status != "" {
		query += ` AND status = ?`
		args = append(args, scope.Status)
	}
	if scope.Category != "" {
		query += ` AND category = ?`
		args = append(args, scope.Category)
	}
	if scope.Tag != "" {
		// Tags are stored comma-separated; match with surrounding delimiters
		query += ` AND (',' || tags || ',') LIKE ?`
		args = append(args, "%,"+scope.Tag+",%")
	}
	if len(scope.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(scope.IDs)), ",")
		query += ` AND id IN (` + placeholders + `)`
		for _, id := range scope.IDs {
			args = append(args, id)
		}
	}

	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, batchSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query catalog products")
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan product")
		}
		packages = append(packages, Package{Product: product})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating products")
	}

	for i := range packages {
		p := &packages[i]
		if p.Product.IsVariable {
			variants, err := s.variantsFor(ctx, p.Product.ID)
			if err != nil {
				return nil, err
			}
			p.Variants = variants
		}
		if scope.IncludeImages {
			images, err := s.imagesFor(ctx, p.Product.ID)
			if err != nil {
				return nil, err
			}
			p.Images = images
		}
	}

	return packages, nil
}

func scanProduct(rows *sql.Rows) (Product, error) {
	var p Product
	var tags, attributes string
	var isVariable, manageStock, requiresShipping, taxable int
	var quantity sql.NullInt64
	var saleStart, saleEnd sql.NullTime

	err := rows.Scan(&p.ID, &p.Handle, &p.Title, &p.BodyHTML, &p.Vendor, &p.ProductType,
		&tags, &p.Status, &p.Category, &isVariable,
		&p.Pricing.Regular, &p.Pricing.Sale, &p.Pricing.Current, &saleStart, &saleEnd,
		&p.SKU, &manageStock, &quantity, &p.Inventory.Backorders,
		&p.WeightGrams, &requiresShipping, &taxable, &p.Barcode, &attributes)
	if err != nil {
		return Product{}, err
	}

	p.IsVariable = isVariable != 0
	p.Inventory.ManageStock = manageStock != 0
	p.RequiresShipping = requiresShipping != 0
	p.Taxable = taxable != 0
	if quantity.Valid {
		q := int(quantity.Int64)
		p.Inventory.Quantity = &q
	}
	p.Pricing.SaleStart = nullTimePtr(saleStart)
	p.Pricing.SaleEnd = nullTimePtr(saleEnd)
	if tags != "" {
		p.Tags = strings.Split(tags, ",")
	}
	if attributes != "" {
		if err := json.Unmarshal([]byte(attributes), &p.Attributes); err != nil {
			return Product{}, errors.Wrapf(err, "invalid attributes JSON for product %d", p.ID)
		}
	}

	return p, nil
}

func (s *SQLiteSource) variantsFor(ctx context.Context, productID int64) ([]Variant, error) {
	query := `SELECT id, product_id, sku, regular_price, sale_price, current_price,
		sale_start, sale_end, manage_stock, stock_quantity, backorders, weight_grams,
		requires_shipping, taxable, barcode, attributes, position
		FROM catalog_variants WHERE product_id = ? ORDER BY position ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query variants for product %d", productID)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		var manageStock, requiresShipping, taxable int
		var quantity sql.NullInt64
		var saleStart, saleEnd sql.NullTime
		var attributes string

		err := rows.Scan(&v.ID, &v.ProductID, &v.SKU,
			&v.Pricing.Regular, &v.Pricing.Sale, &v.Pricing.Current, &saleStart, &saleEnd,
			&manageStock, &quantity, &v.Inventory.Backorders, &v.WeightGrams,
			&requiresShipping, &taxable, &v.Barcode, &attributes, &v.Position)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan variant")
		}

		v.Inventory.ManageStock = manageStock != 0
		v.RequiresShipping = requiresShipping != 0
		v.Taxable = taxable != 0
		if quantity.Valid {
			q := int(quantity.Int64)
			v.Inventory.Quantity = &q
		}
		v.Pricing.SaleStart = nullTimePtr(saleStart)
		v.Pricing.SaleEnd = nullTimePtr(saleEnd)
		if attributes != "" {
			if err := json.Unmarshal([]byte(attributes), &v.Attributes); err != nil {
				return nil, errors.Wrapf(err, "invalid attributes JSON for variant %d", v.ID)
			}
		}

		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating variants")
	}

	return variants, nil
}

func (s *SQLiteSource) imagesFor(ctx context.Context, productID int64) ([]Image, error) {
	query := `SELECT id, product_id, src, alt, featured, position
		FROM catalog_images WHERE product_id = ? ORDER BY featured DESC, position ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query images for product %d", productID)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var featured int
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Src, &img.Alt, &featured, &img.Position); err != nil {
			return nil, errors.Wrap(err, "failed to scan image")
		}
		img.Featured = featured != 0
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating images")
	}

	return images, nil
}

// InsertPackage writes a package into the catalog tables.
// Used by ingestion tooling and test fixtures.
func (s *SQLiteSource) InsertPackage(ctx context.Context, pkg Package) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	p := pkg.Product
	attributes, err := json.Marshal(p.Attributes)
	if err != nil {
		return errors.Wrap(err, "marshal product attributes")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO catalog_products (
		id, handle, title, body_html, vendor, product_type, tags, status, category,
		is_variable, regular_price, sale_price, current_price, sale_start, sale_end,
		sku, manage_stock, stock_quantity, backorders, weight_grams, requires_shipping,
		taxable, barcode, attributes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Handle, p.Title, p.BodyHTML, p.Vendor, p.ProductType,
		strings.Join(p.Tags, ","), p.Status, p.Category, boolInt(p.IsVariable),
		p.Pricing.Regular, p.Pricing.Sale, p.Pricing.Current, timePtr(p.Pricing.SaleStart), timePtr(p.Pricing.SaleEnd),
		p.SKU, boolInt(p.Inventory.ManageStock), intPtr(p.Inventory.Quantity), p.Inventory.Backorders,
		p.WeightGrams, boolInt(p.RequiresShipping), boolInt(p.Taxable), p.Barcode, string(attributes))
	if err != nil {
		return errors.Wrapf(err, "insert product %d", p.ID)
	}

	for _, v := range pkg.Variants {
		variantAttrs, err := json.Marshal(v.Attributes)
		if err != nil {
			return errors.Wrapf(err, "marshal attributes for variant %d", v.ID)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO catalog_variants (
			id, product_id, sku, regular_price, sale_price, current_price, sale_start, sale_end,
			manage_stock, stock_quantity, backorders, weight_grams, requires_shipping,
			taxable, barcode, attributes, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, p.ID, v.SKU, v.Pricing.Regular, v.Pricing.Sale, v.Pricing.Current,
			timePtr(v.Pricing.SaleStart), timePtr(v.Pricing.SaleEnd),
			boolInt(v.Inventory.ManageStock), intPtr(v.Inventory.Quantity), v.Inventory.Backorders,
			v.WeightGrams, boolInt(v.RequiresShipping), boolInt(v.Taxable), v.Barcode,
			string(variantAttrs), v.Position)
		if err != nil {
			return errors.Wrapf(err, "insert variant %d", v.ID)
		}
	}

	for _, img := range pkg.Images {
		_, err = tx.ExecContext(ctx, `INSERT INTO catalog_images (
			id, product_id, src, alt, featured, position
		) VALUES (?, ?, ?, ?, ?, ?)`,
			img.ID, p.ID, img.Src, img.Alt, boolInt(img.Featured), img.Position)
		if err != nil {
			return errors.Wrapf(err, "insert image %d", img.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit package for product %d", p.ID)
	}
	return nil
}

// Count returns the number of products matching the scope.
// Used for progress estimation; filters must stay in sync with Page.
func (s *SQLiteSource) Count(ctx context.Context, scope Scope) (int, error) {
	query := `SELECT COUNT(*) FROM catalog_products WHERE 1=1`
	var args []interface{}
	if scope.Status != "" {
		query += ` AND status = ?`
		args = append(args, scope.Status)
	}
	if scope.Category != "" {
		query += ` AND category = ?`
		args = append(args, scope.Category)
	}
	if scope.Tag != "" {
		query += ` AND (',' || tags || ',') LIKE ?`
		args = append(args, "%,"+scope.Tag+",%")
	}
	if len(scope.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(scope.IDs)), ",")
		query += fmt.Sprintf(` AND id IN (%s)`, placeholders)
		for _, id := range scope.IDs {
			args = append(args, id)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count catalog products")
	}
	return count, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func intPtr(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
