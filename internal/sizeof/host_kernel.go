package sizeof

import (
	"encoding/binary"
	"fmt"

	"github.com/cwbudde/clsizeof/internal/compute"
)

// HostKernel returns a CPU implementation of ksizeof that answers from the
// layout model, for in-process runtimes.
func HostKernel(types TypeList) compute.HostKernel {
	sizes := make([]uint32, len(types))
	for i, t := range types {
		sizes[i] = uint32(Size(t))
	}
	return FixedKernel(sizes)
}

// FixedKernel returns a ksizeof implementation that writes the given values
// as if the device had measured them.
func FixedKernel(values []uint32) compute.HostKernel {
	return func(args []any) error {
		if len(args) != 3 {
			return fmt.Errorf("%s: want 3 arguments, got %d", KernelName, len(args))
		}
		out, ok := args[0].(compute.HostMemory)
		if !ok {
			return fmt.Errorf("%s: argument 0: want buffer, got %T", KernelName, args[0])
		}
		num, ok := args[1].(uint32)
		if !ok {
			return fmt.Errorf("%s: argument 1: want uint32, got %T", KernelName, args[1])
		}
		ret, ok := args[2].(compute.HostMemory)
		if !ok {
			return fmt.Errorf("%s: argument 2: want buffer, got %T", KernelName, args[2])
		}

		c := out.Bytes()
		var n uint32
		for _, v := range values {
			if n >= num || int(n+1)*4 > len(c) {
				break
			}
			binary.NativeEndian.PutUint32(c[n*4:], v)
			n++
		}

		r := ret.Bytes()
		if len(r) < 4 {
			return fmt.Errorf("%s: count buffer holds %d bytes", KernelName, len(r))
		}
		binary.NativeEndian.PutUint32(r, n)
		return nil
	}
}

// HostKernels maps the program's kernel names to host implementations.
func HostKernels(types TypeList) map[string]compute.HostKernel {
	return map[string]compute.HostKernel{KernelName: HostKernel(types)}
}
