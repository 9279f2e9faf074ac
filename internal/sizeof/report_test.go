package sizeof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clsizeof/internal/compute"
	"github.com/cwbudde/clsizeof/internal/compute/sim"
)

// mockSizes is what a device answered for DefaultTypes in the reference run.
var mockSizes = []uint32{1, 1, 3, 4, 2, 4, 6, 8, 4, 4, 8, 12, 16, 8, 16, 24, 32, 4, 8, 12, 16, 32, 128, 128}

func newSim(opts ...sim.Option) *sim.Runtime {
	base := []sim.Option{sim.WithKernels(HostKernels(DefaultTypes()))}
	return sim.New(append(base, opts...)...)
}

func TestRunReportsEveryType(t *testing.T) {
	rt := newSim()

	report, err := Run(context.Background(), rt, DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, uint32(24), report.Count)
	require.Len(t, report.Entries, 24)
	require.Equal(t, "Simulated Platform", report.Platform.Name)
	require.Equal(t, "Simulated GPU", report.Device.Name)
	require.Equal(t, "sim", report.Backend)
	require.False(t, report.Timestamp.IsZero())

	for i, name := range DefaultTypes().Names() {
		require.Equal(t, name, report.Entries[i].Name, "entry %d", i)
		require.Equal(t, report.Entries[i].Expected, report.Entries[i].Size, "entry %s", name)
	}
	require.Empty(t, Check(report, DefaultTypes()))
}

func TestRunMockSizesPrintedInOrder(t *testing.T) {
	rt := sim.New(sim.WithKernel(KernelName, FixedKernel(mockSizes)))

	report, err := Run(context.Background(), rt, DefaultOptions())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, WriteText(&out, report))

	want := []string{
		"using platform: Simulated Platform",
		"using device: Simulated GPU",
		"Returned 24 values",
	}
	for i, name := range DefaultTypes().Names() {
		want = append(want, fmt.Sprintf("%s size: %d", name, mockSizes[i]))
	}
	want = append(want, "queue finished")

	got := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("text output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunEmptyPlatformListStopsBeforeContext(t *testing.T) {
	rt := newSim(sim.WithPlatforms())

	_, err := Run(context.Background(), rt, DefaultOptions())
	require.ErrorIs(t, err, compute.ErrNoPlatforms)

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StagePlatform, se.Stage)

	require.False(t, rt.Called(sim.OpDevices))
	require.False(t, rt.Called(sim.OpContext))
}

func TestRunNoMatchingDevice(t *testing.T) {
	rt := newSim()
	opts := DefaultOptions()
	opts.DeviceType = compute.DeviceTypeCPU

	_, err := Run(context.Background(), rt, opts)
	require.ErrorIs(t, err, compute.ErrNoDevices)
	require.False(t, rt.Called(sim.OpContext))
}

func TestRunIndexOutOfRange(t *testing.T) {
	opts := DefaultOptions()
	opts.PlatformIndex = 3
	_, err := Run(context.Background(), newSim(), opts)
	require.ErrorIs(t, err, compute.ErrNoPlatforms)

	opts = DefaultOptions()
	opts.DeviceIndex = 1
	_, err = Run(context.Background(), newSim(), opts)
	require.ErrorIs(t, err, compute.ErrNoDevices)
}

func TestRunStageFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		op    sim.Op
		stage Stage
	}{
		{sim.OpPlatforms, StagePlatform},
		{sim.OpDevices, StageDevice},
		{sim.OpContext, StageContext},
		{sim.OpProgram, StageProgram},
		{sim.OpKernel, StageKernel},
		{sim.OpBuffer, StageBuffer},
		{sim.OpSetArg, StageArgument},
		{sim.OpQueue, StageQueue},
		{sim.OpEnqueue, StageEnqueue},
		{sim.OpRead, StageRead},
		{sim.OpFinish, StageFinish},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			rt := newSim(sim.FailAt(tt.op, boom))

			report, err := Run(context.Background(), rt, DefaultOptions())
			require.Nil(t, report)
			require.ErrorIs(t, err, boom)

			var se *StageError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tt.stage, se.Stage)
			require.True(t, strings.HasPrefix(err.Error(), stageMessages[tt.stage]))
		})
	}
}

func TestRunBuildFailureCarriesLog(t *testing.T) {
	const log = "<kernel>:3:5: error: unknown type name 'float5'"
	rt := newSim(sim.FailBuild(log))

	_, err := Run(context.Background(), rt, DefaultOptions())

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageBuild, se.Stage)
	require.Equal(t, log, se.BuildLog)

	var be *compute.BuildError
	require.ErrorAs(t, err, &be)
	require.False(t, rt.Called(sim.OpKernel))
}

func TestRunKernelNotRegistered(t *testing.T) {
	rt := sim.New()

	_, err := Run(context.Background(), rt, DefaultOptions())

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageKernel, se.Stage)

	var status *compute.StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, "CL_INVALID_KERNEL_NAME", status.Name)
}

func TestRunCountLargerThanTypeList(t *testing.T) {
	extra := append(append([]uint32(nil), mockSizes...), 64)
	rt := sim.New(sim.WithKernel(KernelName, FixedKernel(extra)))

	_, err := Run(context.Background(), rt, DefaultOptions())
	require.ErrorIs(t, err, ErrCountMismatch)

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageRead, se.Stage)
}

func TestRunElementsBoundsKernelWrites(t *testing.T) {
	opts := DefaultOptions()
	opts.Elements = 5

	report, err := Run(context.Background(), newSim(), opts)
	require.NoError(t, err)
	require.Equal(t, uint32(5), report.Count)
	require.Equal(t, []string{"bool", "char", "char2", "char3", "char4"}, names(report))
}

func TestRunRejectsNonPositiveElements(t *testing.T) {
	opts := DefaultOptions()
	opts.Elements = 0

	rt := newSim()
	_, err := Run(context.Background(), rt, opts)
	require.Error(t, err)
	require.Empty(t, rt.Calls())
}

func TestRunRejectsElementsBeyondUint32(t *testing.T) {
	big := uint64(math.MaxUint32) + 1
	opts := DefaultOptions()
	opts.Elements = int(big)

	rt := newSim()
	_, err := Run(context.Background(), rt, opts)
	require.ErrorContains(t, err, "must fit in uint32")
	require.Empty(t, rt.Calls())
}

func TestRunBufferLargerThanDeviceMemory(t *testing.T) {
	opts := DefaultOptions()
	opts.Elements = 1 << 29

	rt := newSim()
	_, err := Run(context.Background(), rt, opts)

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageBuffer, se.Stage)

	var status *compute.StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, "CL_INVALID_BUFFER_SIZE", status.Name)
	require.False(t, rt.Called(sim.OpEnqueue))
}

func TestStageErrorNamesSelection(t *testing.T) {
	rt := newSim(sim.FailBuild("error: boom"))
	_, err := Run(context.Background(), rt, DefaultOptions())

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "Simulated Platform", se.Platform)
	require.Equal(t, "Simulated GPU", se.Device)

	opts := DefaultOptions()
	opts.PlatformIndex = 3
	_, err = Run(context.Background(), newSim(), opts)
	require.ErrorAs(t, err, &se)
	require.Empty(t, se.Platform)
	require.Empty(t, se.Device)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rt := newSim()
	_, err := Run(ctx, rt, DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, rt.Called(sim.OpContext))
}

func TestRunCustomTypeList(t *testing.T) {
	types := TypeList{Int, Vector(Int, 3), Struct("Pair", 0, Field{"a", Char}, Field{"b", Long})}
	opts := DefaultOptions()
	opts.Types = types

	report, err := Run(context.Background(), sim.New(sim.WithKernels(HostKernels(types))), opts)
	require.NoError(t, err)

	want := map[string]uint32{"int": 4, "int3": 16, "Pair": 16}
	if diff := cmp.Diff(want, report.Sizes()); diff != "" {
		t.Fatalf("sizes mismatch (-want +got):\n%s", diff)
	}
}

func names(r *Report) []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Name
	}
	return out
}
