package compute

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Backend identifies a runtime implementation.
type Backend string

const (
	BackendOpenCL Backend = "opencl"
	BackendOCCA   Backend = "occa"
	BackendSim    Backend = "sim"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown compute backend")
	// ErrBackendUnavailable indicates the backend is not available in this build or on this host.
	ErrBackendUnavailable = errors.New("compute backend unavailable")
)

// DefaultOCCAProps selects OCCA's portable serial mode.
const DefaultOCCAProps = `{"mode": "Serial"}`

// HostKernel is a CPU implementation of a kernel for runtimes that execute
// kernels in-process. Buffer arguments implement HostMemory.
type HostKernel func(args []any) error

// HostMemory exposes the backing bytes of an in-process buffer.
type HostMemory interface {
	Buffer
	Bytes() []byte
}

// Options configures backend construction.
type Options struct {
	// OCCAProps is the OCCA device property string, e.g. {"mode": "Serial"}.
	OCCAProps string
	// HostKernels are used by in-process backends in place of compiled code.
	HostKernels map[string]HostKernel
}

// Factory constructs a runtime for a backend.
type Factory func(opts Options) (Runtime, error)

var (
	registryMu sync.RWMutex
	registry   = map[Backend]Factory{}
)

// RegisterBackend makes a backend available to Open. Registering the same
// name twice replaces the earlier factory.
func RegisterBackend(name Backend, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "opencl", "cl", "gpu":
		return BackendOpenCL
	case "occa":
		return BackendOCCA
	case "sim", "simulated", "mock":
		return BackendSim
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the registered backends in name order.
func SupportedBackends() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Backend, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Open constructs the requested runtime.
func Open(name string, opts Options) (Runtime, error) {
	backend := NormalizeBackend(name)

	registryMu.RLock()
	factory, ok := registry[backend]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}

	rt, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, backend, err)
	}
	return rt, nil
}
