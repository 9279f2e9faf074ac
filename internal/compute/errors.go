package compute

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPlatforms indicates that the runtime reported no platform.
	ErrNoPlatforms = errors.New("no platform found")
	// ErrNoDevices indicates that no usable device was found.
	ErrNoDevices = errors.New("no device found")
	// ErrNotBuilt indicates the binary was built without the backend's tag.
	ErrNotBuilt = errors.New("backend not compiled into this binary")
	// ErrUnsupportedArg is returned by Kernel.SetArg for value types the binding cannot marshal.
	ErrUnsupportedArg = errors.New("unsupported kernel argument type")
	// ErrForeignObject is returned when an object from another backend is passed in.
	ErrForeignObject = errors.New("object does not belong to this runtime")
	// ErrOutOfRange is returned for reads that exceed a buffer.
	ErrOutOfRange = errors.New("buffer range out of bounds")
)

// StatusError carries a native runtime status code.
type StatusError struct {
	Op   string
	Code int
	Name string
}

func (e *StatusError) Error() string {
	name := e.Name
	if name == "" {
		name = "CL_UNKNOWN_ERROR"
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, name, e.Code)
}

// BuildError reports a failed program build together with the compiler log.
type BuildError struct {
	Log string
	Err error
}

func (e *BuildError) Error() string {
	if e.Err == nil {
		return "program build failed"
	}
	return "program build failed: " + e.Err.Error()
}

func (e *BuildError) Unwrap() error { return e.Err }

// CheckRead validates a read of n bytes at offset against a buffer of size bytes.
func CheckRead(size, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("%w: read [%d,%d) of %d bytes", ErrOutOfRange, offset, offset+n, size)
	}
	return nil
}
