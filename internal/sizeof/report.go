// Package sizeof runs the type-size report: it compiles a kernel that writes
// sizeof() of each queried type into a device buffer, executes it as a single
// task and reads the sizes back in kernel write order.
package sizeof

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cwbudde/clsizeof/internal/compute"
)

// DefaultElements is the capacity of the sizes buffer in uint32 entries.
const DefaultElements = 1024

const uint32Bytes = 4

// Stage names a guarded step of the report.
type Stage string

const (
	StagePlatform Stage = "platform"
	StageDevice   Stage = "device"
	StageContext  Stage = "context"
	StageProgram  Stage = "program"
	StageBuild    Stage = "build"
	StageKernel   Stage = "kernel"
	StageBuffer   Stage = "buffer"
	StageArgument Stage = "argument"
	StageQueue    Stage = "queue"
	StageEnqueue  Stage = "enqueue"
	StageRead     Stage = "read"
	StageFinish   Stage = "finish"
)

var stageMessages = map[Stage]string{
	StagePlatform: "couldn't select a platform",
	StageDevice:   "couldn't select a device",
	StageContext:  "couldn't create a context",
	StageProgram:  "couldn't create the program",
	StageBuild:    "couldn't build the program",
	StageKernel:   "couldn't create a kernel",
	StageBuffer:   "couldn't create a buffer",
	StageArgument: "couldn't set a kernel argument",
	StageQueue:    "couldn't create a command queue",
	StageEnqueue:  "couldn't enqueue the kernel",
	StageRead:     "couldn't read the buffer",
	StageFinish:   "couldn't finish the queue",
}

// ErrCountMismatch is returned when the kernel reports more values than the
// host can pair with type names or than the sizes buffer holds.
var ErrCountMismatch = errors.New("returned value count does not match the type list")

// StageError is the first failure of a report run.
type StageError struct {
	Stage Stage
	Err   error
	// BuildLog is the compiler output for StageBuild failures.
	BuildLog string
	// Platform and Device name the selection the failing stage ran on,
	// empty when selection itself failed.
	Platform string
	Device   string
}

func (e *StageError) Error() string {
	msg, ok := stageMessages[e.Stage]
	if !ok {
		msg = string(e.Stage)
	}
	return msg + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	se := &StageError{Stage: stage, Err: err}
	var be *compute.BuildError
	if errors.As(err, &be) {
		se.BuildLog = be.Log
	}
	return se
}

// Options selects the device and shapes the program.
type Options struct {
	PlatformIndex int
	DeviceIndex   int
	DeviceType    compute.DeviceType
	// Elements is the sizes buffer capacity; the kernel's num argument.
	Elements     int
	BuildOptions string
	Types        TypeList
}

// DefaultOptions reproduces the stock run: first platform, first default device.
func DefaultOptions() Options {
	return Options{
		DeviceType: compute.DeviceTypeDefault,
		Elements:   DefaultElements,
		Types:      DefaultTypes(),
	}
}

// Entry pairs a type name with the size the device reported.
type Entry struct {
	Name     string `json:"name"`
	Size     uint32 `json:"size"`
	Expected uint32 `json:"expected"`
}

// Report is the outcome of a successful run.
type Report struct {
	Backend   string               `json:"backend"`
	Platform  compute.PlatformInfo `json:"platform"`
	Device    compute.DeviceInfo   `json:"device"`
	Count     uint32               `json:"count"`
	Entries   []Entry              `json:"entries"`
	Timestamp time.Time            `json:"timestamp"`
}

// Sizes returns the reported sizes keyed by type name.
func (r *Report) Sizes() map[string]uint32 {
	out := make(map[string]uint32, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Name] = e.Size
	}
	return out
}

// Run executes the size report against rt. Every step is guarded: the first
// failure aborts the run and is returned as *StageError. Resources created
// along the way are released before returning.
func Run(ctx context.Context, rt compute.Runtime, opts Options) (report *Report, err error) {
	if len(opts.Types) == 0 {
		opts.Types = DefaultTypes()
	}
	if opts.Elements <= 0 {
		return nil, fmt.Errorf("elements must be positive, got %d", opts.Elements)
	}
	if uint64(opts.Elements) > math.MaxUint32 {
		return nil, fmt.Errorf("elements must fit in uint32, got %d", opts.Elements)
	}
	if opts.DeviceType == "" {
		opts.DeviceType = compute.DeviceTypeDefault
	}

	slog.Debug("creating context", "backend", rt.Name())

	platform, err := selectPlatform(rt, opts.PlatformIndex)
	if err != nil {
		return nil, err
	}
	device, err := selectDevice(platform, opts.DeviceType, opts.DeviceIndex)
	if err != nil {
		return nil, err
	}

	report = &Report{
		Backend:  rt.Name(),
		Platform: platform.Info(),
		Device:   device.Info(),
	}
	report.Platform.Devices = nil
	selected := report
	defer func() {
		var se *StageError
		if errors.As(err, &se) {
			se.Platform = selected.Platform.Name
			se.Device = selected.Device.Name
		}
	}()
	slog.Info("using platform", "name", report.Platform.Name, "vendor", report.Platform.Vendor)
	slog.Info("using device", "name", report.Device.Name, "type", report.Device.Type)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cctx, err := rt.CreateContext(device)
	if err != nil {
		return nil, stageErr(StageContext, err)
	}
	defer cctx.Release()

	source, err := Source(opts.Types, rt.Dialect())
	if err != nil {
		return nil, stageErr(StageProgram, err)
	}
	program, err := cctx.CreateProgram(source)
	if err != nil {
		return nil, stageErr(StageProgram, err)
	}
	defer program.Release()

	if err := program.Build(opts.BuildOptions); err != nil {
		se := stageErr(StageBuild, err).(*StageError)
		if se.BuildLog == "" {
			se.BuildLog = program.BuildLog()
		}
		return nil, se
	}

	kernel, err := program.CreateKernel(KernelName)
	if err != nil {
		return nil, stageErr(StageKernel, err)
	}
	defer kernel.Release()

	dataBytes := opts.Elements * uint32Bytes
	dataBuf, err := cctx.CreateBuffer(compute.MemWriteOnly, dataBytes)
	if err != nil {
		return nil, stageErr(StageBuffer, err)
	}
	defer dataBuf.Release()

	retBuf, err := cctx.CreateBuffer(compute.MemWriteOnly, uint32Bytes)
	if err != nil {
		return nil, stageErr(StageBuffer, err)
	}
	defer retBuf.Release()
	slog.Debug("buffers created", "sizes", humanize.IBytes(uint64(dataBytes)), "count", humanize.IBytes(uint32Bytes))

	args := []any{dataBuf, uint32(opts.Elements), retBuf}
	for i, arg := range args {
		if err := kernel.SetArg(i, arg); err != nil {
			return nil, stageErr(StageArgument, err)
		}
	}

	queue, err := cctx.CreateCommandQueue()
	if err != nil {
		return nil, stageErr(StageQueue, err)
	}
	defer queue.Release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := queue.EnqueueTask(kernel); err != nil {
		return nil, stageErr(StageEnqueue, err)
	}

	countBytes := make([]byte, uint32Bytes)
	if err := queue.EnqueueReadBuffer(retBuf, true, 0, countBytes); err != nil {
		return nil, stageErr(StageRead, err)
	}
	report.Count = binary.NativeEndian.Uint32(countBytes)

	if int(report.Count) > opts.Elements || int(report.Count) > len(opts.Types) {
		return nil, stageErr(StageRead, fmt.Errorf("%w: kernel returned %d values for %d types (buffer holds %d)",
			ErrCountMismatch, report.Count, len(opts.Types), opts.Elements))
	}
	if int(report.Count) < len(opts.Types) {
		slog.Warn("kernel returned fewer values than queried types", "count", report.Count, "types", len(opts.Types))
	}

	data := make([]byte, dataBytes)
	if err := queue.EnqueueReadBuffer(dataBuf, true, 0, data); err != nil {
		return nil, stageErr(StageRead, err)
	}

	report.Entries = make([]Entry, report.Count)
	for i := range report.Entries {
		t := opts.Types[i]
		report.Entries[i] = Entry{
			Name:     t.Name,
			Size:     binary.NativeEndian.Uint32(data[i*uint32Bytes:]),
			Expected: uint32(Size(t)),
		}
	}

	if err := queue.Finish(); err != nil {
		return nil, stageErr(StageFinish, err)
	}
	report.Timestamp = time.Now().UTC()

	slog.Debug("queue finished", "elapsed", time.Since(start), "values", report.Count)
	return report, nil
}

func selectPlatform(rt compute.Runtime, index int) (compute.Platform, error) {
	platforms, err := rt.Platforms()
	if err != nil {
		return nil, stageErr(StagePlatform, err)
	}
	if len(platforms) == 0 {
		return nil, stageErr(StagePlatform, compute.ErrNoPlatforms)
	}
	if index < 0 || index >= len(platforms) {
		return nil, stageErr(StagePlatform, fmt.Errorf("%w: index %d out of range (%d available)",
			compute.ErrNoPlatforms, index, len(platforms)))
	}
	return platforms[index], nil
}

func selectDevice(platform compute.Platform, filter compute.DeviceType, index int) (compute.Device, error) {
	devices, err := platform.Devices(filter)
	if err != nil {
		return nil, stageErr(StageDevice, err)
	}
	if len(devices) == 0 {
		return nil, stageErr(StageDevice, compute.ErrNoDevices)
	}
	if index < 0 || index >= len(devices) {
		return nil, stageErr(StageDevice, fmt.Errorf("%w: index %d out of range (%d available)",
			compute.ErrNoDevices, index, len(devices)))
	}
	return devices[index], nil
}
