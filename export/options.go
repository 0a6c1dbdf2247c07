package export

import (
	"strings"

	"github.com/harborline/shopcsv/catalog"
)

// MaxOptionDimensions is the number of option columns the target schema
// supports per product.
const MaxOptionDimensions = 3

// TitleOptionSlug is the synthetic option dimension used for products
// without variation attributes.
const TitleOptionSlug = "title"

// DefaultTitleValue fills the synthetic title dimension when a product has
// no variation values of its own.
const DefaultTitleValue = "Default Title"

// OptionDefinition is one named axis of variation, e.g. {color, Color}.
// The writer's Option1/2/3 columns correspond 1:1, in order, to the
// definitions selected for a product.
type OptionDefinition struct {
	Slug string
	Name string
}

// SelectOptions picks up to MaxOptionDimensions variation attributes as the
// product's option dimensions, in attribute order. Variation attributes
// beyond the cap are returned as extras; their values become tags.
// A product with no variation attributes gets the synthetic title dimension.
func SelectOptions(product catalog.Product) (defs []OptionDefinition, extras []catalog.Attribute) {
	if product.IsVariable {
		for _, attr := range product.Attributes {
			if !attr.Variation {
				continue
			}
			if len(defs) < MaxOptionDimensions {
				defs = append(defs, OptionDefinition{Slug: attr.Slug, Name: attr.Name})
			} else {
				extras = append(extras, attr)
			}
		}
	}

	if len(defs) == 0 {
		defs = []OptionDefinition{{Slug: TitleOptionSlug, Name: "Title"}}
	}
	return defs, extras
}

// optionValueKey normalizes an option value for case-insensitive matching
// while preserving diacritics.
func optionValueKey(slug, value string) string {
	return slug + "::" + strings.ToLower(strings.TrimSpace(value))
}
