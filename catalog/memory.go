package catalog

import (
	"context"
	"sort"
)

// MemorySource serves packages from a slice. Used in tests and anywhere a
// catalog is already materialized in memory.
type MemorySource struct {
	packages []Package
}

// NewMemorySource creates a source over the given packages.
// Packages are sorted ascending by product id once, up front.
func NewMemorySource(packages []Package) *MemorySource {
	sorted := make([]Package, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Product.ID < sorted[j].Product.ID
	})
	return &MemorySource{packages: sorted}
}

// Page implements Source
func (m *MemorySource) Page(ctx context.Context, scope Scope, cursor Cursor, batchSize int) ([]Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var page []Package
	for _, pkg := range m.packages {
		if pkg.Product.ID <= cursor.LastProductID {
			continue
		}
		if !matchesScope(pkg.Product, scope) {
			continue
		}
		if !scope.IncludeImages {
			pkg.Images = nil
		}
		page = append(page, pkg)
		if len(page) == batchSize {
			break
		}
	}
	return page, nil
}

func matchesScope(p Product, scope Scope) bool {
	if scope.Status != "" && p.Status != scope.Status {
		return false
	}
	if scope.Category != "" && p.Category != scope.Category {
		return false
	}
	if scope.Tag != "" {
		found := false
		for _, t := range p.Tags {
			if t == scope.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(scope.IDs) > 0 {
		found := false
		for _, id := range scope.IDs {
			if id == p.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
