//go:build !gpu && !occa

package compute

import (
	"errors"
	"testing"
)

func TestUntaggedBackendsReportNotBuilt(t *testing.T) {
	for _, name := range []string{"opencl", "occa"} {
		_, err := Open(name, Options{})
		if !errors.Is(err, ErrBackendUnavailable) || !errors.Is(err, ErrNotBuilt) {
			t.Errorf("Open(%s) error = %v, want ErrBackendUnavailable wrapping ErrNotBuilt", name, err)
		}
	}
}
