//go:build occa

package compute

import "testing"

const twoKernelOKL = `
@kernel void first(unsigned int *out) {
  for (int i = 0; i < 1; ++i; @outer) {
    for (int j = 0; j < 1; ++j; @inner) {
      out[0] = 1;
    }
  }
}

@kernel void second(unsigned int *out) {
  for (int i = 0; i < 1; ++i; @outer) {
    for (int j = 0; j < 1; ++j; @inner) {
      out[0] = 2;
    }
  }
}
`

func TestOCCABuildWithOptionsBuildsEveryKernel(t *testing.T) {
	rt, err := Open("occa", Options{})
	if err != nil {
		t.Skipf("OCCA backend unavailable: %v", err)
	}
	defer rt.Close()

	platforms, err := rt.Platforms()
	if err != nil {
		t.Skipf("OCCA device unavailable: %v", err)
	}
	devices, err := platforms[0].Devices(DeviceTypeAll)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}

	ctx, err := rt.CreateContext(devices[0])
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	defer ctx.Release()

	program, err := ctx.CreateProgram(twoKernelOKL)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	defer program.Release()

	if err := program.Build("-O2"); err != nil {
		t.Fatalf("Build: %v (log: %s)", err, program.BuildLog())
	}
	for _, name := range []string{"first", "second"} {
		k, err := program.CreateKernel(name)
		if err != nil {
			t.Fatalf("CreateKernel(%s): %v", name, err)
		}
		k.Release()
	}
}
