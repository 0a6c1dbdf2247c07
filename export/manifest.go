package export

import (
	"context"

	"github.com/harborline/shopcsv/catalog"
)

// ManifestGenerator produces optional secondary output files alongside the
// primary export (e.g. collections or redirects). Given the same scope and
// output directory it returns zero or more additional file descriptors, or
// fails. Generators run once, at completion.
type ManifestGenerator interface {
	Generate(ctx context.Context, scope catalog.Scope, outputDir string) ([]FileDescriptor, error)
}
