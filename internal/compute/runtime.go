package compute

// Runtime is a host binding onto a compute runtime. Implementations are not
// safe for concurrent use; the size report drives them from one goroutine.
type Runtime interface {
	// Name identifies the backend ("opencl", "occa", "sim").
	Name() string
	// Dialect is the kernel language accepted by CreateProgram.
	Dialect() Dialect
	// Platforms enumerates the platforms exposed by the runtime. An empty
	// slice with a nil error means the runtime has no platform installed.
	Platforms() ([]Platform, error)
	// CreateContext binds a new context to a single device.
	CreateContext(device Device) (Context, error)
	// Close releases runtime-wide resources.
	Close()
}

// Platform is a vendor runtime instance exposing devices.
type Platform interface {
	Info() PlatformInfo
	// Devices returns the devices matching the filter, or ErrNoDevices.
	Devices(filter DeviceType) ([]Device, error)
}

// Device is a compute unit exposed by a platform.
type Device interface {
	Info() DeviceInfo
}

// Context groups a device with the programs, buffers and queues created on it.
type Context interface {
	CreateProgram(source string) (Program, error)
	CreateBuffer(flags MemFlags, size int) (Buffer, error)
	CreateCommandQueue() (Queue, error)
	Release()
}

// Program is kernel source compiled for the context's device.
type Program interface {
	// Build compiles the program. Compile failures are reported as *BuildError.
	Build(options string) error
	BuildLog() string
	CreateKernel(name string) (Kernel, error)
	Release()
}

// Kernel is an invocable entry point of a built program.
type Kernel interface {
	Name() string
	// SetArg binds argument index to a Buffer or a scalar (uint32, int32,
	// uint64, int64, float32).
	SetArg(index int, value any) error
	Release()
}

// Buffer is a device memory region.
type Buffer interface {
	Size() int
	Flags() MemFlags
	Release()
}

// Queue submits kernel launches and transfers in order.
type Queue interface {
	// EnqueueTask launches kernel as a single work-item.
	EnqueueTask(kernel Kernel) error
	// EnqueueReadBuffer copies len(dst) bytes starting at offset into dst.
	EnqueueReadBuffer(buf Buffer, blocking bool, offset int, dst []byte) error
	Finish() error
	Release()
}
