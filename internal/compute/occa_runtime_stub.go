//go:build !occa

package compute

import "fmt"

func init() {
	RegisterBackend(BackendOCCA, func(Options) (Runtime, error) {
		return nil, fmt.Errorf("%w: occa support requires building with '-tags occa'", ErrNotBuilt)
	})
}
