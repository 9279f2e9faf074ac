//go:build occa

package compute

import (
	"fmt"
	"regexp"
	"unsafe"

	"github.com/notargets/gocca"
)

var oklKernelPattern = regexp.MustCompile(`@kernel\s+void\s+(\w+)\s*\(`)

func init() {
	RegisterBackend(BackendOCCA, func(opts Options) (Runtime, error) {
		props := opts.OCCAProps
		if props == "" {
			props = DefaultOCCAProps
		}
		return &occaRuntime{props: props}, nil
	})
}

// occaRuntime exposes a single OCCA device as a one-device platform.
type occaRuntime struct {
	props  string
	device *gocca.OCCADevice
}

func (r *occaRuntime) Name() string     { return string(BackendOCCA) }
func (r *occaRuntime) Dialect() Dialect { return DialectOKL }

func (r *occaRuntime) Platforms() ([]Platform, error) {
	if r.device == nil {
		device, err := gocca.NewDevice(r.props)
		if err != nil {
			return nil, fmt.Errorf("occa: create device %s: %w", r.props, err)
		}
		r.device = device
	}

	mode := r.device.Mode()
	return []Platform{&occaPlatform{
		info: PlatformInfo{
			Name:    "OCCA",
			Vendor:  "libocca",
			Version: mode,
		},
		device: &occaDevice{
			device: r.device,
			info: DeviceInfo{
				Name:   mode,
				Vendor: "libocca",
				Type:   occaDeviceType(mode),
			},
		},
	}}, nil
}

func (r *occaRuntime) CreateContext(device Device) (Context, error) {
	d, ok := device.(*occaDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignObject, device)
	}
	return &occaContext{device: d.device}, nil
}

func (r *occaRuntime) Close() {
	if r.device != nil {
		r.device.Free()
		r.device = nil
	}
}

type occaPlatform struct {
	info   PlatformInfo
	device *occaDevice
}

func (p *occaPlatform) Info() PlatformInfo {
	info := p.info
	info.Devices = []DeviceInfo{p.device.info}
	return info
}

func (p *occaPlatform) Devices(filter DeviceType) ([]Device, error) {
	if !filter.Matches(p.device.info.Type) {
		return nil, ErrNoDevices
	}
	return []Device{p.device}, nil
}

type occaDevice struct {
	device *gocca.OCCADevice
	info   DeviceInfo
}

func (d *occaDevice) Info() DeviceInfo { return d.info }

type occaContext struct {
	device *gocca.OCCADevice
}

func (c *occaContext) CreateProgram(source string) (Program, error) {
	if len(oklKernelPattern.FindStringSubmatch(source)) == 0 {
		return nil, fmt.Errorf("occa: source declares no @kernel")
	}
	return &occaProgram{device: c.device, source: source, kernels: map[string]*gocca.OCCAKernel{}}, nil
}

func (c *occaContext) CreateBuffer(flags MemFlags, size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("occa: invalid buffer size %d", size)
	}
	mem := c.device.Malloc(int64(size), nil, nil)
	if mem == nil {
		return nil, fmt.Errorf("occa: malloc of %d bytes failed", size)
	}
	return &occaBuffer{mem: mem, size: size, flags: flags}, nil
}

func (c *occaContext) CreateCommandQueue() (Queue, error) {
	return &occaQueue{device: c.device}, nil
}

func (c *occaContext) Release() {}

// occaProgram compiles each @kernel of its source on Build; OCCA has no
// separate program object.
type occaProgram struct {
	device  *gocca.OCCADevice
	source  string
	kernels map[string]*gocca.OCCAKernel
	log     string
}

func (p *occaProgram) Build(options string) error {
	for _, match := range oklKernelPattern.FindAllStringSubmatch(p.source, -1) {
		name := match[1]

		var kernel *gocca.OCCAKernel
		var err error
		if options != "" {
			props := gocca.JsonParse(fmt.Sprintf(`{"compiler_flags": %q}`, options))
			kernel, err = p.device.BuildKernelFromString(p.source, name, props)
			props.Free()
		} else {
			kernel, err = p.device.BuildKernelFromString(p.source, name, nil)
		}

		if err != nil {
			p.log = err.Error()
			return &BuildError{Log: p.log, Err: fmt.Errorf("occa: build kernel %s: %w", name, err)}
		}
		p.kernels[name] = kernel
	}
	return nil
}

func (p *occaProgram) BuildLog() string { return p.log }

func (p *occaProgram) CreateKernel(name string) (Kernel, error) {
	kernel, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("occa: kernel %s not built", name)
	}
	return &occaKernel{kernel: kernel, name: name}, nil
}

func (p *occaProgram) Release() {
	for name, kernel := range p.kernels {
		kernel.Free()
		delete(p.kernels, name)
	}
}

type occaKernel struct {
	kernel *gocca.OCCAKernel
	name   string
	args   []any
}

func (k *occaKernel) Name() string { return k.name }

func (k *occaKernel) SetArg(index int, value any) error {
	if index < 0 {
		return fmt.Errorf("occa: invalid argument index %d", index)
	}

	var arg any
	switch v := value.(type) {
	case *occaBuffer:
		arg = v.mem
	case uint32, int32, uint64, int64, float32:
		arg = v
	case Buffer:
		return fmt.Errorf("occa: arg %d: %w: %T", index, ErrForeignObject, value)
	default:
		return fmt.Errorf("occa: arg %d: %w: %T", index, ErrUnsupportedArg, value)
	}

	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = arg
	return nil
}

// Release is a no-op; kernels are owned by their program.
func (k *occaKernel) Release() {}

type occaBuffer struct {
	mem   *gocca.OCCAMemory
	size  int
	flags MemFlags
}

func (b *occaBuffer) Size() int       { return b.size }
func (b *occaBuffer) Flags() MemFlags { return b.flags }

func (b *occaBuffer) Release() {
	if b.mem != nil {
		b.mem.Free()
		b.mem = nil
	}
}

type occaQueue struct {
	device *gocca.OCCADevice
}

func (q *occaQueue) EnqueueTask(kernel Kernel) error {
	k, ok := kernel.(*occaKernel)
	if !ok {
		return fmt.Errorf("occa: %w: %T", ErrForeignObject, kernel)
	}
	for i, arg := range k.args {
		if arg == nil {
			return fmt.Errorf("occa: kernel %s argument %d not set", k.name, i)
		}
	}
	if err := k.kernel.RunWithArgs(k.args...); err != nil {
		return fmt.Errorf("occa: run %s: %w", k.name, err)
	}
	return nil
}

// EnqueueReadBuffer copies device memory to dst. OCCA copies are synchronous
// with respect to the host, so blocking is implied.
func (q *occaQueue) EnqueueReadBuffer(buf Buffer, _ bool, offset int, dst []byte) error {
	b, ok := buf.(*occaBuffer)
	if !ok {
		return fmt.Errorf("occa: %w: %T", ErrForeignObject, buf)
	}
	if err := CheckRead(b.size, offset, len(dst)); err != nil {
		return fmt.Errorf("occa: %w", err)
	}
	if len(dst) == 0 {
		return nil
	}

	q.device.Finish()
	if offset == 0 {
		b.mem.CopyTo(unsafe.Pointer(&dst[0]), int64(len(dst)))
		return nil
	}

	whole := make([]byte, b.size)
	b.mem.CopyTo(unsafe.Pointer(&whole[0]), int64(b.size))
	copy(dst, whole[offset:])
	return nil
}

func (q *occaQueue) Finish() error {
	q.device.Finish()
	return nil
}

func (q *occaQueue) Release() {}

func occaDeviceType(mode string) DeviceType {
	switch mode {
	case "CUDA", "HIP", "OpenCL", "Metal", "dpcpp":
		return DeviceTypeGPU
	case "Serial", "OpenMP":
		return DeviceTypeCPU
	default:
		return DeviceTypeUnknown
	}
}
