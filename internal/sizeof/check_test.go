package sizeof

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func reportOf(sizes map[string]uint32) *Report {
	r := &Report{}
	for _, t := range DefaultTypes() {
		size, ok := sizes[t.Name]
		if !ok {
			size = uint32(Size(t))
		}
		r.Entries = append(r.Entries, Entry{Name: t.Name, Size: size, Expected: uint32(Size(t))})
	}
	r.Count = uint32(len(r.Entries))
	return r
}

func TestCheckCleanReport(t *testing.T) {
	require.Empty(t, Check(reportOf(nil), DefaultTypes()))
}

func TestCheckIgnoresBoolSize(t *testing.T) {
	require.Empty(t, Check(reportOf(map[string]uint32{"bool": 4}), DefaultTypes()))
}

func TestCheckAlignedNotMultipleOf16(t *testing.T) {
	findings := Check(reportOf(map[string]uint32{"RayAligned": 120}), DefaultTypes())

	require.Len(t, findings, 3)
	require.Equal(t, "RayAligned", findings[0].Type)
	require.Contains(t, findings[0].Message, "multiple of its 16-byte alignment")
	require.Contains(t, findings[1].Message, "layout model expects 128")
	require.Equal(t, "Ray: size 128 exceeds RayAligned size 120", findings[2].String())
}

func TestCheckUnalignedLargerThanAligned(t *testing.T) {
	findings := Check(reportOf(map[string]uint32{"Ray": 144}), DefaultTypes())

	var twinFinding bool
	for _, f := range findings {
		if f.Type == "Ray" && strings.Contains(f.Message, "exceeds RayAligned size 128") {
			twinFinding = true
		}
	}
	require.True(t, twinFinding, "findings: %v", findings)
}

func TestCheckVectorMismatch(t *testing.T) {
	findings := Check(reportOf(map[string]uint32{"float3": 12}), DefaultTypes())

	require.Len(t, findings, 1)
	require.Equal(t, "float3: device reports 12 bytes, layout model expects 16", findings[0].String())
}

func TestCompare(t *testing.T) {
	baseline := &Report{Entries: []Entry{{Name: "int", Size: 4}, {Name: "float3", Size: 16}, {Name: "half", Size: 2}}}
	current := &Report{Entries: []Entry{{Name: "int", Size: 4}, {Name: "float3", Size: 12}, {Name: "long", Size: 8}}}

	diffs := Compare(current, baseline)
	require.Equal(t, []Difference{
		{Name: "float3", Was: 16, Now: 12},
		{Name: "half", Was: 2, Now: 0},
		{Name: "long", Was: 0, Now: 8},
	}, diffs)

	require.Empty(t, Compare(baseline, baseline))
}
