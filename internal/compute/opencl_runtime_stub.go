//go:build !gpu

package compute

import "fmt"

func init() {
	RegisterBackend(BackendOpenCL, func(Options) (Runtime, error) {
		return nil, fmt.Errorf("%w: opencl support requires building with '-tags gpu'", ErrNotBuilt)
	})
}
