package export

// Target-schema column names. The header is a fixed, ordered list; every
// data row renders exactly one value per header column.
const (
	ColHandle             = "Handle"
	ColTitle              = "Title"
	ColBodyHTML           = "Body (HTML)"
	ColVendor             = "Vendor"
	ColType               = "Type"
	ColTags               = "Tags"
	ColPublished          = "Published"
	ColOption1Name        = "Option1 Name"
	ColOption1Value       = "Option1 Value"
	ColOption2Name        = "Option2 Name"
	ColOption2Value       = "Option2 Value"
	ColOption3Name        = "Option3 Name"
	ColOption3Value       = "Option3 Value"
	ColVariantSKU         = "Variant SKU"
	ColVariantGrams       = "Variant Grams"
	ColInventoryTracker   = "Variant Inventory Tracker"
	ColInventoryQty       = "Variant Inventory Qty"
	ColInventoryPolicy    = "Variant Inventory Policy"
	ColFulfillmentService = "Variant Fulfillment Service"
	ColVariantPrice       = "Variant Price"
	ColCompareAtPrice     = "Variant Compare At Price"
	ColRequiresShipping   = "Variant Requires Shipping"
	ColVariantTaxable     = "Variant Taxable"
	ColVariantBarcode     = "Variant Barcode"
	ColImageSrc           = "Image Src"
	ColImagePosition      = "Image Position"
	ColImageAltText       = "Image Alt Text"
	ColStatus             = "Status"
)

// DefaultColumns is the default header, in the order the target platform's
// bulk importer documents it.
func DefaultColumns() []string {
	return []string{
		ColHandle,
		ColTitle,
		ColBodyHTML,
		ColVendor,
		ColType,
		ColTags,
		ColPublished,
		ColOption1Name,
		ColOption1Value,
		ColOption2Name,
		ColOption2Value,
		ColOption3Name,
		ColOption3Value,
		ColVariantSKU,
		ColVariantGrams,
		ColInventoryTracker,
		ColInventoryQty,
		ColInventoryPolicy,
		ColFulfillmentService,
		ColVariantPrice,
		ColCompareAtPrice,
		ColRequiresShipping,
		ColVariantTaxable,
		ColVariantBarcode,
		ColImageSrc,
		ColImagePosition,
		ColImageAltText,
		ColStatus,
	}
}

// RequiredColumns is the subset a valid import file must carry in its header.
// Used by the validate command.
func RequiredColumns() []string {
	return []string{
		ColHandle,
		ColTitle,
		ColOption1Name,
		ColOption1Value,
		ColVariantPrice,
	}
}

// Row is one output record with a named field per header column.
// The fixed struct (rather than a keyed map) gives compile-time column
// coverage: a column the schema does not know cannot be populated.
type Row struct {
	Handle             string
	Title              string
	BodyHTML           string
	Vendor             string
	Type               string
	Tags               string
	Published          string
	Option1Name        string
	Option1Value       string
	Option2Name        string
	Option2Value       string
	Option3Name        string
	Option3Value       string
	VariantSKU         string
	VariantGrams       string
	InventoryTracker   string
	InventoryQty       string
	InventoryPolicy    string
	FulfillmentService string
	VariantPrice       string
	CompareAtPrice     string
	RequiresShipping   string
	VariantTaxable     string
	VariantBarcode     string
	ImageSrc           string
	ImagePosition      string
	ImageAltText       string
	Status             string
}

// Get returns the row's value for a header column.
// Columns the schema does not know render empty, which keeps every data row
// at exactly the header's column count.
func (r *Row) Get(column string) string {
	switch column {
	case ColHandle:
		return r.Handle
	case ColTitle:
		return r.Title
	case ColBodyHTML:
		return r.BodyHTML
	case ColVendor:
		return r.Vendor
	case ColType:
		return r.Type
	case ColTags:
		return r.Tags
	case ColPublished:
		return r.Published
	case ColOption1Name:
		return r.Option1Name
	case ColOption1Value:
		return r.Option1Value
	case ColOption2Name:
		return r.Option2Name
	case ColOption2Value:
		return r.Option2Value
	case ColOption3Name:
		return r.Option3Name
	case ColOption3Value:
		return r.Option3Value
	case ColVariantSKU:
		return r.VariantSKU
	case ColVariantGrams:
		return r.VariantGrams
	case ColInventoryTracker:
		return r.InventoryTracker
	case ColInventoryQty:
		return r.InventoryQty
	case ColInventoryPolicy:
		return r.InventoryPolicy
	case ColFulfillmentService:
		return r.FulfillmentService
	case ColVariantPrice:
		return r.VariantPrice
	case ColCompareAtPrice:
		return r.CompareAtPrice
	case ColRequiresShipping:
		return r.RequiresShipping
	case ColVariantTaxable:
		return r.VariantTaxable
	case ColVariantBarcode:
		return r.VariantBarcode
	case ColImageSrc:
		return r.ImageSrc
	case ColImagePosition:
		return r.ImagePosition
	case ColImageAltText:
		return r.ImageAltText
	case ColStatus:
		return r.Status
	default:
		return ""
	}
}

// Values renders the row against a header, one value per column in order
func (r *Row) Values(columns []string) []string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = r.Get(col)
	}
	return values
}
