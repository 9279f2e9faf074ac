package compute

import (
	"fmt"
	"strings"
)

// DeviceType describes the class of a compute device.
type DeviceType string

const (
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeAll         DeviceType = "All"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// ParseDeviceType maps user input to a DeviceType filter.
func ParseDeviceType(name string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DeviceTypeDefault, nil
	case "gpu":
		return DeviceTypeGPU, nil
	case "cpu":
		return DeviceTypeCPU, nil
	case "accelerator", "acc":
		return DeviceTypeAccelerator, nil
	case "all":
		return DeviceTypeAll, nil
	default:
		return DeviceTypeUnknown, fmt.Errorf("unknown device type %q (want default, gpu, cpu, accelerator, all)", name)
	}
}

// Matches reports whether a device of type dt passes the filter.
// Default matches every device; the runtime decides which one is its default.
func (f DeviceType) Matches(dt DeviceType) bool {
	switch f {
	case DeviceTypeAll, DeviceTypeDefault:
		return true
	default:
		return f == dt
	}
}

// DeviceInfo captures metadata about a compute device.
type DeviceInfo struct {
	Name             string     `json:"name"`
	Vendor           string     `json:"vendor"`
	Version          string     `json:"version"`
	DriverVersion    string     `json:"driverVersion,omitempty"`
	Type             DeviceType `json:"type"`
	MaxComputeUnits  uint32     `json:"maxComputeUnits"`
	GlobalMemSize    uint64     `json:"globalMemSize"`
	MaxWorkGroupSize uint64     `json:"maxWorkGroupSize,omitempty"`
}

// PlatformInfo captures metadata about a platform and its devices.
type PlatformInfo struct {
	Name       string       `json:"name"`
	Vendor     string       `json:"vendor"`
	Version    string       `json:"version"`
	Profile    string       `json:"profile,omitempty"`
	Extensions []string     `json:"extensions,omitempty"`
	Devices    []DeviceInfo `json:"devices,omitempty"`
}

// MemFlags mirrors the subset of buffer access flags the binding exposes.
type MemFlags uint8

const (
	MemReadWrite MemFlags = iota
	MemWriteOnly
	MemReadOnly
)

func (f MemFlags) String() string {
	switch f {
	case MemWriteOnly:
		return "write-only"
	case MemReadOnly:
		return "read-only"
	default:
		return "read-write"
	}
}

// Dialect names the kernel language a runtime compiles.
type Dialect string

const (
	DialectOpenCLC Dialect = "opencl-c"
	DialectOKL     Dialect = "okl"
)
