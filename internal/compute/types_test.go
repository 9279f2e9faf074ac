package compute

import (
	"errors"
	"testing"
)

func TestParseDeviceType(t *testing.T) {
	tests := map[string]DeviceType{
		"":            DeviceTypeDefault,
		"default":     DeviceTypeDefault,
		"GPU":         DeviceTypeGPU,
		"cpu":         DeviceTypeCPU,
		"accelerator": DeviceTypeAccelerator,
		"all":         DeviceTypeAll,
	}
	for in, want := range tests {
		got, err := ParseDeviceType(in)
		if err != nil {
			t.Fatalf("ParseDeviceType(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDeviceType(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseDeviceType("fpga"); err == nil {
		t.Fatal("ParseDeviceType(fpga) succeeded")
	}
}

func TestDeviceTypeMatches(t *testing.T) {
	if !DeviceTypeDefault.Matches(DeviceTypeCPU) || !DeviceTypeAll.Matches(DeviceTypeGPU) {
		t.Fatal("default and all filters must match every device")
	}
	if !DeviceTypeGPU.Matches(DeviceTypeGPU) {
		t.Fatal("gpu filter must match a gpu")
	}
	if DeviceTypeGPU.Matches(DeviceTypeCPU) {
		t.Fatal("gpu filter matched a cpu")
	}
}

func TestStatusErrorString(t *testing.T) {
	err := &StatusError{Op: "clCreateKernel", Code: -46, Name: "CL_INVALID_KERNEL_NAME"}
	if got, want := err.Error(), "clCreateKernel: CL_INVALID_KERNEL_NAME (-46)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	unnamed := &StatusError{Op: "clFinish", Code: -9999}
	if got, want := unnamed.Error(), "clFinish: CL_UNKNOWN_ERROR (-9999)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestBuildErrorUnwrap(t *testing.T) {
	status := &StatusError{Op: "clBuildProgram", Code: -11, Name: "CL_BUILD_PROGRAM_FAILURE"}
	err := error(&BuildError{Log: "line 3: error", Err: status})

	var se *StatusError
	if !errors.As(err, &se) || se.Code != -11 {
		t.Fatalf("errors.As failed for %v", err)
	}
	if got, want := err.Error(), "program build failed: clBuildProgram: CL_BUILD_PROGRAM_FAILURE (-11)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestCheckRead(t *testing.T) {
	tests := []struct {
		size, offset, n int
		ok              bool
	}{
		{16, 0, 16, true},
		{16, 4, 12, true},
		{16, 4, 16, false},
		{16, -1, 4, false},
		{0, 0, 0, true},
	}
	for _, tt := range tests {
		err := CheckRead(tt.size, tt.offset, tt.n)
		if (err == nil) != tt.ok {
			t.Errorf("CheckRead(%d, %d, %d) = %v, want ok=%v", tt.size, tt.offset, tt.n, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrOutOfRange) {
			t.Errorf("CheckRead error %v does not wrap ErrOutOfRange", err)
		}
	}
}
