//go:build gpu

package compute

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static const char* clsizeof_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_MAP_FAILURE: return "CL_MAP_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE_TYPE: return "CL_INVALID_DEVICE_TYPE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_QUEUE_PROPERTIES: return "CL_INVALID_QUEUE_PROPERTIES";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_HOST_PTR: return "CL_INVALID_HOST_PTR";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BINARY: return "CL_INVALID_BINARY";
	case CL_INVALID_BUILD_OPTIONS: return "CL_INVALID_BUILD_OPTIONS";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL_DEFINITION: return "CL_INVALID_KERNEL_DEFINITION";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_EVENT_WAIT_LIST: return "CL_INVALID_EVENT_WAIT_LIST";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case -1001: return "CL_PLATFORM_NOT_FOUND_KHR";
	default: return "CL_UNKNOWN_ERROR";
	}
}
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"
)

// clPlatformNotFoundKHR is returned by ICD loaders when no vendor driver is installed.
const clPlatformNotFoundKHR = -1001

func init() {
	RegisterBackend(BackendOpenCL, func(Options) (Runtime, error) {
		return &openCLRuntime{}, nil
	})
}

type openCLRuntime struct{}

func (r *openCLRuntime) Name() string     { return string(BackendOpenCL) }
func (r *openCLRuntime) Dialect() Dialect { return DialectOpenCLC }
func (r *openCLRuntime) Close()           {}

func (r *openCLRuntime) Platforms() ([]Platform, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status == clPlatformNotFoundKHR {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	platforms := make([]Platform, 0, len(ids))
	for _, id := range ids {
		info, err := buildPlatformInfo(id)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, &openCLPlatform{id: id, info: info})
	}
	return platforms, nil
}

func (r *openCLRuntime) CreateContext(device Device) (Context, error) {
	d, ok := device.(*openCLDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignObject, device)
	}

	var status C.cl_int
	ctx := C.clCreateContext(nil, 1, &d.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}
	return &openCLContext{ctx: ctx, device: d.id}, nil
}

type openCLPlatform struct {
	id   C.cl_platform_id
	info PlatformInfo
}

func (p *openCLPlatform) Info() PlatformInfo { return p.info }

func (p *openCLPlatform) Devices(filter DeviceType) ([]Device, error) {
	clType, err := clDeviceType(filter)
	if err != nil {
		return nil, err
	}

	var count C.cl_uint
	status := C.clGetDeviceIDs(p.id, clType, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	ids := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(p.id, clType, count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &openCLDevice{id: id, info: info})
	}
	return devices, nil
}

type openCLDevice struct {
	id   C.cl_device_id
	info DeviceInfo
}

func (d *openCLDevice) Info() DeviceInfo { return d.info }

type openCLContext struct {
	ctx    C.cl_context
	device C.cl_device_id
}

func (c *openCLContext) CreateProgram(source string) (Program, error) {
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))

	var status C.cl_int
	prog := C.clCreateProgramWithSource(c.ctx, 1, &csrc, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}
	return &openCLProgram{program: prog, device: c.device}, nil
}

func (c *openCLContext) CreateBuffer(flags MemFlags, size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("clCreateBuffer: invalid size %d", size)
	}

	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, clMemFlags(flags), C.size_t(size), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &openCLBuffer{mem: mem, size: size, flags: flags}, nil
}

func (c *openCLContext) CreateCommandQueue() (Queue, error) {
	var status C.cl_int
	queue := C.clCreateCommandQueue(c.ctx, c.device, 0, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", status)
	}
	return &openCLQueue{queue: queue}, nil
}

func (c *openCLContext) Release() {
	if c.ctx != nil {
		C.clReleaseContext(c.ctx)
		c.ctx = nil
	}
}

type openCLProgram struct {
	program C.cl_program
	device  C.cl_device_id
}

func (p *openCLProgram) Build(options string) error {
	var copts *C.char
	if options != "" {
		copts = C.CString(options)
		defer C.free(unsafe.Pointer(copts))
	}

	status := C.clBuildProgram(p.program, 1, &p.device, copts, nil, nil)
	if status != C.CL_SUCCESS {
		return &BuildError{Log: p.BuildLog(), Err: statusError("clBuildProgram", status)}
	}
	return nil
}

func (p *openCLProgram) BuildLog() string {
	if p.program == nil {
		return ""
	}

	var size C.size_t
	if status := C.clGetProgramBuildInfo(p.program, p.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); status != C.CL_SUCCESS || size == 0 {
		return ""
	}

	buf := make([]byte, int(size))
	if status := C.clGetProgramBuildInfo(p.program, p.device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return ""
	}
	return strings.TrimSpace(trimNull(buf))
}

func (p *openCLProgram) CreateKernel(name string) (Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	kernel := C.clCreateKernel(p.program, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel", status)
	}
	return &openCLKernel{kernel: kernel, name: name}, nil
}

func (p *openCLProgram) Release() {
	if p.program != nil {
		C.clReleaseProgram(p.program)
		p.program = nil
	}
}

type openCLKernel struct {
	kernel C.cl_kernel
	name   string
}

func (k *openCLKernel) Name() string { return k.name }

func (k *openCLKernel) SetArg(index int, value any) error {
	idx := C.cl_uint(index)
	var status C.cl_int

	switch v := value.(type) {
	case *openCLBuffer:
		mem := v.mem
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	case uint32:
		x := C.cl_uint(v)
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case int32:
		x := C.cl_int(v)
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case uint64:
		x := C.cl_ulong(v)
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case int64:
		x := C.cl_long(v)
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case float32:
		x := C.cl_float(v)
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case Buffer:
		return fmt.Errorf("clSetKernelArg(%d): %w: %T", index, ErrForeignObject, value)
	default:
		return fmt.Errorf("clSetKernelArg(%d): %w: %T", index, ErrUnsupportedArg, value)
	}

	if status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d)", index), status)
	}
	return nil
}

func (k *openCLKernel) Release() {
	if k.kernel != nil {
		C.clReleaseKernel(k.kernel)
		k.kernel = nil
	}
}

type openCLBuffer struct {
	mem   C.cl_mem
	size  int
	flags MemFlags
}

func (b *openCLBuffer) Size() int       { return b.size }
func (b *openCLBuffer) Flags() MemFlags { return b.flags }

func (b *openCLBuffer) Release() {
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

type openCLQueue struct {
	queue C.cl_command_queue
}

func (q *openCLQueue) EnqueueTask(kernel Kernel) error {
	k, ok := kernel.(*openCLKernel)
	if !ok {
		return fmt.Errorf("clEnqueueTask: %w: %T", ErrForeignObject, kernel)
	}

	status := C.clEnqueueTask(q.queue, k.kernel, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueTask", status)
	}
	return nil
}

// EnqueueReadBuffer always waits for the transfer to land: dst is Go memory
// and must not be written after the call returns.
func (q *openCLQueue) EnqueueReadBuffer(buf Buffer, blocking bool, offset int, dst []byte) error {
	b, ok := buf.(*openCLBuffer)
	if !ok {
		return fmt.Errorf("clEnqueueReadBuffer: %w: %T", ErrForeignObject, buf)
	}
	if err := CheckRead(b.size, offset, len(dst)); err != nil {
		return fmt.Errorf("clEnqueueReadBuffer: %w", err)
	}
	if len(dst) == 0 {
		return nil
	}

	var blockingRead C.cl_bool = C.CL_FALSE
	if blocking {
		blockingRead = C.CL_TRUE
	}

	status := C.clEnqueueReadBuffer(q.queue, b.mem, blockingRead, C.size_t(offset), C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	if !blocking {
		return q.Finish()
	}
	return nil
}

func (q *openCLQueue) Finish() error {
	if status := C.clFinish(q.queue); status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	return nil
}

func (q *openCLQueue) Release() {
	if q.queue != nil {
		C.clReleaseCommandQueue(q.queue)
		q.queue = nil
	}
}

func clDeviceType(filter DeviceType) (C.cl_device_type, error) {
	switch filter {
	case DeviceTypeDefault:
		return C.CL_DEVICE_TYPE_DEFAULT, nil
	case DeviceTypeGPU:
		return C.CL_DEVICE_TYPE_GPU, nil
	case DeviceTypeCPU:
		return C.CL_DEVICE_TYPE_CPU, nil
	case DeviceTypeAccelerator:
		return C.CL_DEVICE_TYPE_ACCELERATOR, nil
	case DeviceTypeAll:
		return C.CL_DEVICE_TYPE_ALL, nil
	default:
		return 0, fmt.Errorf("unsupported device type filter %q", filter)
	}
}

func clMemFlags(flags MemFlags) C.cl_mem_flags {
	switch flags {
	case MemWriteOnly:
		return C.CL_MEM_WRITE_ONLY
	case MemReadOnly:
		return C.CL_MEM_READ_ONLY
	default:
		return C.CL_MEM_READ_WRITE
	}
}

func buildPlatformInfo(id C.cl_platform_id) (PlatformInfo, error) {
	var info PlatformInfo
	fields := []struct {
		param C.cl_platform_info
		dst   *string
	}{
		{C.CL_PLATFORM_NAME, &info.Name},
		{C.CL_PLATFORM_VENDOR, &info.Vendor},
		{C.CL_PLATFORM_VERSION, &info.Version},
		{C.CL_PLATFORM_PROFILE, &info.Profile},
	}
	for _, f := range fields {
		v, err := getPlatformString(id, f.param)
		if err != nil {
			return PlatformInfo{}, err
		}
		*f.dst = v
	}

	extensions, err := getPlatformString(id, C.CL_PLATFORM_EXTENSIONS)
	if err != nil {
		return PlatformInfo{}, err
	}
	info.Extensions = strings.Fields(extensions)
	return info, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	name, err := getDeviceString(id, C.CL_DEVICE_NAME)
	if err != nil {
		return DeviceInfo{}, err
	}
	vendor, err := getDeviceString(id, C.CL_DEVICE_VENDOR)
	if err != nil {
		return DeviceInfo{}, err
	}
	version, err := getDeviceString(id, C.CL_DEVICE_VERSION)
	if err != nil {
		return DeviceInfo{}, err
	}
	driver, err := getDeviceString(id, C.CL_DRIVER_VERSION)
	if err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(type)", status)
	}

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(computeUnits)", status)
	}

	var globalMem C.cl_ulong
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(globalMem)), unsafe.Pointer(&globalMem), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(globalMemSize)", status)
	}

	var workGroup C.size_t
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(workGroup)), unsafe.Pointer(&workGroup), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(maxWorkGroupSize)", status)
	}

	return DeviceInfo{
		Name:             name,
		Vendor:           vendor,
		Version:          version,
		DriverVersion:    driver,
		Type:             mapDeviceType(rawType),
		MaxComputeUnits:  uint32(computeUnits),
		GlobalMemSize:    uint64(globalMem),
		MaxWorkGroupSize: uint64(workGroup),
	}, nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}
	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(op string, status C.cl_int) error {
	return &StatusError{
		Op:   op,
		Code: int(status),
		Name: C.GoString(C.clsizeof_error_string(status)),
	}
}
