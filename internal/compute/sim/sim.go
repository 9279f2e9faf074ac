// Package sim is an in-process compute runtime. Kernels are Go functions
// registered by name; buffers are host byte slices. It backs the "sim"
// backend and lets tests script failures at any binding call.
package sim

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cwbudde/clsizeof/internal/compute"
)

// Op names a binding call that can be recorded or made to fail.
type Op string

const (
	OpPlatforms Op = "platforms"
	OpDevices   Op = "devices"
	OpContext   Op = "context"
	OpProgram   Op = "program"
	OpBuild     Op = "build"
	OpKernel    Op = "kernel"
	OpBuffer    Op = "buffer"
	OpSetArg    Op = "setArg"
	OpQueue     Op = "queue"
	OpEnqueue   Op = "enqueue"
	OpRead      Op = "read"
	OpFinish    Op = "finish"
)

var kernelDecl = regexp.MustCompile(`__kernel\s+void\s+(\w+)\s*\(`)

func init() {
	compute.RegisterBackend(compute.BackendSim, func(opts compute.Options) (compute.Runtime, error) {
		return New(WithKernels(opts.HostKernels)), nil
	})
}

// DefaultPlatform is the platform reported when none is configured.
func DefaultPlatform() compute.PlatformInfo {
	return compute.PlatformInfo{
		Name:       "Simulated Platform",
		Vendor:     "clsizeof",
		Version:    "OpenCL 1.2 sim",
		Profile:    "FULL_PROFILE",
		Extensions: []string{"cl_khr_byte_addressable_store"},
		Devices: []compute.DeviceInfo{{
			Name:             "Simulated GPU",
			Vendor:           "clsizeof",
			Version:          "OpenCL 1.2",
			DriverVersion:    "1.0",
			Type:             compute.DeviceTypeGPU,
			MaxComputeUnits:  1,
			GlobalMemSize:    1 << 30,
			MaxWorkGroupSize: 1,
		}},
	}
}

// Runtime implements compute.Runtime in process.
type Runtime struct {
	platforms []compute.PlatformInfo
	kernels   map[string]compute.HostKernel
	faults    map[Op]error
	buildLog  string
	calls     []Op
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithPlatforms replaces the default platform list. Calling it with no
// arguments yields a runtime without platforms.
func WithPlatforms(platforms ...compute.PlatformInfo) Option {
	return func(r *Runtime) {
		r.platforms = append([]compute.PlatformInfo(nil), platforms...)
	}
}

// WithKernel registers a host implementation for a kernel name.
func WithKernel(name string, fn compute.HostKernel) Option {
	return func(r *Runtime) {
		r.kernels[name] = fn
	}
}

// WithKernels registers several host kernels.
func WithKernels(kernels map[string]compute.HostKernel) Option {
	return func(r *Runtime) {
		for name, fn := range kernels {
			r.kernels[name] = fn
		}
	}
}

// FailAt makes every call of op return err.
func FailAt(op Op, err error) Option {
	return func(r *Runtime) {
		r.faults[op] = err
	}
}

// FailBuild makes Program.Build fail with the given compiler log.
func FailBuild(log string) Option {
	return func(r *Runtime) {
		r.buildLog = log
		r.faults[OpBuild] = &compute.StatusError{Op: "clBuildProgram", Code: -11, Name: "CL_BUILD_PROGRAM_FAILURE"}
	}
}

// New returns a runtime with one simulated GPU unless configured otherwise.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		platforms: []compute.PlatformInfo{DefaultPlatform()},
		kernels:   map[string]compute.HostKernel{},
		faults:    map[Op]error{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Calls returns the binding calls made so far, in order.
func (r *Runtime) Calls() []Op {
	return append([]Op(nil), r.calls...)
}

// Called reports whether op was invoked at least once.
func (r *Runtime) Called(op Op) bool {
	for _, c := range r.calls {
		if c == op {
			return true
		}
	}
	return false
}

func (r *Runtime) hit(op Op) error {
	r.calls = append(r.calls, op)
	return r.faults[op]
}

func (r *Runtime) Name() string             { return string(compute.BackendSim) }
func (r *Runtime) Dialect() compute.Dialect { return compute.DialectOpenCLC }
func (r *Runtime) Close()                   {}

func (r *Runtime) Platforms() ([]compute.Platform, error) {
	if err := r.hit(OpPlatforms); err != nil {
		return nil, err
	}
	out := make([]compute.Platform, len(r.platforms))
	for i, info := range r.platforms {
		out[i] = &platform{rt: r, info: info}
	}
	return out, nil
}

func (r *Runtime) CreateContext(d compute.Device) (compute.Context, error) {
	if err := r.hit(OpContext); err != nil {
		return nil, err
	}
	dev, ok := d.(*device)
	if !ok || dev.rt != r {
		return nil, fmt.Errorf("%w: %T", compute.ErrForeignObject, d)
	}
	return &simContext{rt: r, device: dev}, nil
}

type platform struct {
	rt   *Runtime
	info compute.PlatformInfo
}

func (p *platform) Info() compute.PlatformInfo { return p.info }

func (p *platform) Devices(filter compute.DeviceType) ([]compute.Device, error) {
	if err := p.rt.hit(OpDevices); err != nil {
		return nil, err
	}
	var out []compute.Device
	for _, info := range p.info.Devices {
		if filter.Matches(info.Type) {
			out = append(out, &device{rt: p.rt, info: info})
		}
	}
	if len(out) == 0 {
		return nil, compute.ErrNoDevices
	}
	return out, nil
}

type device struct {
	rt   *Runtime
	info compute.DeviceInfo
}

func (d *device) Info() compute.DeviceInfo { return d.info }

type simContext struct {
	rt       *Runtime
	device   *device
	released bool
}

func (c *simContext) CreateProgram(source string) (compute.Program, error) {
	if err := c.rt.hit(OpProgram); err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, &compute.StatusError{Op: "clCreateProgramWithSource", Code: -30, Name: "CL_INVALID_VALUE"}
	}
	return &program{rt: c.rt, source: source}, nil
}

func (c *simContext) CreateBuffer(flags compute.MemFlags, size int) (compute.Buffer, error) {
	if err := c.rt.hit(OpBuffer); err != nil {
		return nil, err
	}
	limit := c.device.info.GlobalMemSize
	if size <= 0 || (limit > 0 && uint64(size) > limit) {
		return nil, &compute.StatusError{Op: "clCreateBuffer", Code: -61, Name: "CL_INVALID_BUFFER_SIZE"}
	}
	return &buffer{data: make([]byte, size), flags: flags}, nil
}

func (c *simContext) CreateCommandQueue() (compute.Queue, error) {
	if err := c.rt.hit(OpQueue); err != nil {
		return nil, err
	}
	return &queue{rt: c.rt}, nil
}

func (c *simContext) Release() { c.released = true }

type program struct {
	rt       *Runtime
	source   string
	declared map[string]bool
	log      string
}

func (p *program) Build(string) error {
	if err := p.rt.hit(OpBuild); err != nil {
		p.log = p.rt.buildLog
		return &compute.BuildError{Log: p.log, Err: err}
	}

	if strings.Count(p.source, "{") != strings.Count(p.source, "}") {
		p.log = "error: unbalanced braces in program source"
		return &compute.BuildError{Log: p.log, Err: &compute.StatusError{Op: "clBuildProgram", Code: -11, Name: "CL_BUILD_PROGRAM_FAILURE"}}
	}

	matches := kernelDecl.FindAllStringSubmatch(p.source, -1)
	if len(matches) == 0 {
		p.log = "error: program declares no __kernel function"
		return &compute.BuildError{Log: p.log, Err: &compute.StatusError{Op: "clBuildProgram", Code: -11, Name: "CL_BUILD_PROGRAM_FAILURE"}}
	}

	p.declared = make(map[string]bool, len(matches))
	for _, m := range matches {
		p.declared[m[1]] = true
	}
	p.log = ""
	return nil
}

func (p *program) BuildLog() string { return p.log }

func (p *program) CreateKernel(name string) (compute.Kernel, error) {
	if err := p.rt.hit(OpKernel); err != nil {
		return nil, err
	}
	if p.declared == nil {
		return nil, &compute.StatusError{Op: "clCreateKernel", Code: -45, Name: "CL_INVALID_PROGRAM_EXECUTABLE"}
	}
	fn, ok := p.rt.kernels[name]
	if !ok || !p.declared[name] {
		return nil, &compute.StatusError{Op: "clCreateKernel", Code: -46, Name: "CL_INVALID_KERNEL_NAME"}
	}
	return &kernel{rt: p.rt, name: name, fn: fn}, nil
}

func (p *program) Release() {}

type kernel struct {
	rt   *Runtime
	name string
	fn   compute.HostKernel
	args []any
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) SetArg(index int, value any) error {
	if err := k.rt.hit(OpSetArg); err != nil {
		return err
	}
	if index < 0 {
		return &compute.StatusError{Op: "clSetKernelArg", Code: -49, Name: "CL_INVALID_ARG_INDEX"}
	}

	switch v := value.(type) {
	case *buffer:
		if v.released {
			return &compute.StatusError{Op: "clSetKernelArg", Code: -38, Name: "CL_INVALID_MEM_OBJECT"}
		}
	case uint32, int32, uint64, int64, float32:
	case compute.Buffer:
		return fmt.Errorf("clSetKernelArg(%d): %w: %T", index, compute.ErrForeignObject, value)
	default:
		return fmt.Errorf("clSetKernelArg(%d): %w: %T", index, compute.ErrUnsupportedArg, value)
	}

	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = value
	return nil
}

func (k *kernel) Release() {}

type buffer struct {
	data     []byte
	flags    compute.MemFlags
	released bool
}

func (b *buffer) Size() int               { return len(b.data) }
func (b *buffer) Flags() compute.MemFlags { return b.flags }
func (b *buffer) Bytes() []byte           { return b.data }
func (b *buffer) Release()                { b.released = true }

type queue struct {
	rt *Runtime
}

func (q *queue) EnqueueTask(kern compute.Kernel) error {
	if err := q.rt.hit(OpEnqueue); err != nil {
		return err
	}
	k, ok := kern.(*kernel)
	if !ok {
		return fmt.Errorf("clEnqueueTask: %w: %T", compute.ErrForeignObject, kern)
	}
	for _, arg := range k.args {
		if arg == nil {
			return &compute.StatusError{Op: "clEnqueueTask", Code: -52, Name: "CL_INVALID_KERNEL_ARGS"}
		}
	}
	return k.fn(k.args)
}

func (q *queue) EnqueueReadBuffer(buf compute.Buffer, _ bool, offset int, dst []byte) error {
	if err := q.rt.hit(OpRead); err != nil {
		return err
	}
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("clEnqueueReadBuffer: %w: %T", compute.ErrForeignObject, buf)
	}
	if b.released {
		return &compute.StatusError{Op: "clEnqueueReadBuffer", Code: -38, Name: "CL_INVALID_MEM_OBJECT"}
	}
	if err := compute.CheckRead(len(b.data), offset, len(dst)); err != nil {
		return fmt.Errorf("clEnqueueReadBuffer: %w", err)
	}
	copy(dst, b.data[offset:])
	return nil
}

func (q *queue) Finish() error {
	return q.rt.hit(OpFinish)
}

func (q *queue) Release() {}
