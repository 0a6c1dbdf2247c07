package export

import (
	"strings"

	"github.com/harborline/shopcsv/catalog"
)

// VariantRecord is one reconciled variant: the source record annotated with
// its option values, aligned index-for-index with the product's option
// definitions.
type VariantRecord struct {
	Variant   catalog.Variant
	Options   []string
	Synthetic bool // true when no source variant existed and the product's own data is used
}

// Flatten maps a product's variation records onto its selected option
// dimensions. It computes the full cartesian space of observed option values
// and reconciles it against the actual variant set: a combination is emitted
// only when a matching record exists, so sparse variation matrices are not
// padded with invented SKUs. The cartesian walk fixes the emission order;
// unmatched original records are appended afterward, deduplicated by their
// option signature. Attribute values outside the selected dimensions come
// back as "Name: Value" tag strings.
func Flatten(variants []catalog.Variant, defs []OptionDefinition, extras []catalog.Attribute, product catalog.Product) (records []VariantRecord, extraTags []string) {
	if len(variants) == 0 {
		// Variable product with zero resolvable variation records, or a
		// simple product: one synthetic variant carries the product's own
		// price and inventory.
		return []VariantRecord{syntheticRecord(product, defs)}, nil
	}

	valueSets := collectValueSets(variants, defs)

	// Index original records by their slug-keyed option signature
	indexed := make(map[string]*catalog.Variant, len(variants))
	order := make([]string, 0, len(variants))
	for i := range variants {
		sig := variantSignature(&variants[i], defs)
		if _, seen := indexed[sig]; !seen {
			order = append(order, sig)
		}
		indexed[sig] = &variants[i]
	}

	emitted := make(map[string]bool, len(variants))
	for _, combo := range cartesian(valueSets) {
		sig := comboSignature(combo, defs)
		variant, ok := indexed[sig]
		if !ok {
			// Combination never observed in the source: do not fabricate it
			continue
		}
		if emitted[sig] {
			continue
		}
		emitted[sig] = true
		records = append(records, VariantRecord{Variant: *variant, Options: combo})
	}

	// Records whose values fell outside the collected sets (e.g. blank in
	// one dimension) still must reach the output exactly once.
	for _, sig := range order {
		if emitted[sig] {
			continue
		}
		emitted[sig] = true
		variant := indexed[sig]
		records = append(records, VariantRecord{
			Variant: *variant,
			Options: optionValues(variant, defs),
		})
	}

	extraTags = collectExtraTags(variants, extras)
	return records, extraTags
}

// collectValueSets builds, per option slug, the ordered set of distinct
// values observed across all variation records. Empty sets are backfilled
// with a default so every product yields at least one combination.
func collectValueSets(variants []catalog.Variant, defs []OptionDefinition) [][]string {
	valueSets := make([][]string, len(defs))
	for i, def := range defs {
		seen := make(map[string]bool)
		var values []string
		for _, v := range variants {
			value := strings.TrimSpace(v.Attributes[def.Slug])
			if value == "" {
				// Absent values do not create a combination branch
				continue
			}
			key := optionValueKey(def.Slug, value)
			if seen[key] {
				continue
			}
			seen[key] = true
			values = append(values, value)
		}
		if len(values) == 0 {
			values = []string{defaultOptionValue(def.Slug)}
		}
		valueSets[i] = values
	}
	return valueSets
}

func defaultOptionValue(slug string) string {
	if slug == TitleOptionSlug {
		return DefaultTitleValue
	}
	return ""
}

// cartesian computes the cross product of the value sets, in set order
func cartesian(valueSets [][]string) [][]string {
	combos := [][]string{{}}
	for _, values := range valueSets {
		next := make([][]string, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, value := range values {
				extended := make([]string, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, value))
			}
		}
		combos = next
	}
	return combos
}

func variantSignature(v *catalog.Variant, defs []OptionDefinition) string {
	parts := make([]string, len(defs))
	for i, def := range defs {
		value := strings.TrimSpace(v.Attributes[def.Slug])
		if value == "" {
			value = defaultOptionValue(def.Slug)
		}
		parts[i] = optionValueKey(def.Slug, value)
	}
	return strings.Join(parts, "|")
}

func comboSignature(combo []string, defs []OptionDefinition) string {
	parts := make([]string, len(defs))
	for i, def := range defs {
		parts[i] = optionValueKey(def.Slug, combo[i])
	}
	return strings.Join(parts, "|")
}

func optionValues(v *catalog.Variant, defs []OptionDefinition) []string {
	values := make([]string, len(defs))
	for i, def := range defs {
		value := strings.TrimSpace(v.Attributes[def.Slug])
		if value == "" {
			value = defaultOptionValue(def.Slug)
		}
		values[i] = value
	}
	return values
}

// collectExtraTags renders overflow attribute values as "Name: Value"
// strings, deduplicated case-insensitively.
func collectExtraTags(variants []catalog.Variant, extras []catalog.Attribute) []string {
	if len(extras) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var tags []string
	for _, attr := range extras {
		for _, v := range variants {
			value := strings.TrimSpace(v.Attributes[attr.Slug])
			if value == "" {
				continue
			}
			tag := attr.Name + ": " + value
			key := strings.ToLower(tag)
			if seen[key] {
				continue
			}
			seen[key] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// syntheticRecord builds the fallback variant from the product's own
// price, inventory, and shipping fields.
func syntheticRecord(product catalog.Product, defs []OptionDefinition) VariantRecord {
	options := make([]string, len(defs))
	for i, def := range defs {
		options[i] = defaultOptionValue(def.Slug)
	}
	return VariantRecord{
		Variant: catalog.Variant{
			ProductID:        product.ID,
			SKU:              product.SKU,
			Pricing:          product.Pricing,
			Inventory:        product.Inventory,
			WeightGrams:      product.WeightGrams,
			RequiresShipping: product.RequiresShipping,
			Taxable:          product.Taxable,
			Barcode:          product.Barcode,
			Position:         1,
		},
		Options:   options,
		Synthetic: true,
	}
}
