package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clsizeof/internal/compute"
	"github.com/cwbudde/clsizeof/internal/sizeof"
	"github.com/cwbudde/clsizeof/internal/store"
)

func saveTestReport(t *testing.T, s store.Store, key string, ts time.Time) {
	t.Helper()
	r := &sizeof.Report{
		Backend:   "sim",
		Platform:  compute.PlatformInfo{Name: "Simulated Platform"},
		Device:    compute.DeviceInfo{Name: "dev-" + key},
		Count:     24,
		Timestamp: ts,
	}
	if err := s.SaveReport(key, r); err != nil {
		t.Fatalf("SaveReport(%s) failed: %v", key, err)
	}
}

func setRetention(t *testing.T, keep, days int, force bool) {
	t.Helper()
	oldKeep, oldDays, oldForce := keepLast, olderThanDays, forceClean
	keepLast, olderThanDays, forceClean = keep, days, force
	t.Cleanup(func() { keepLast, olderThanDays, forceClean = oldKeep, oldDays, oldForce })
}

func TestListReports_Empty(t *testing.T) {
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, listReports(&out, s))
	require.Equal(t, "No reports found.\n", out.String())
}

func TestListReports_WithReports(t *testing.T) {
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	saveTestReport(t, s, "alpha", time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))
	saveTestReport(t, s, "beta", time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC))

	var out bytes.Buffer
	require.NoError(t, listReports(&out, s))

	require.Contains(t, out.String(), "alpha")
	require.Contains(t, out.String(), "dev-beta")
	require.Contains(t, out.String(), "2026-09-02 08:00:00")
	require.Contains(t, out.String(), "Total reports: 2")
}

func TestSelectReportsForDeletion(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	infos := []store.ReportInfo{
		{Key: "r1", Timestamp: now.AddDate(0, 0, -10)},
		{Key: "r2", Timestamp: now.AddDate(0, 0, -5)},
		{Key: "r3", Timestamp: now.AddDate(0, 0, -1)},
		{Key: "r4", Timestamp: now.AddDate(0, 0, -30)},
		{Key: "r5", Timestamp: now.AddDate(0, 0, -2)},
	}

	keys := func(infos []store.ReportInfo) []string {
		var out []string
		for _, info := range infos {
			out = append(out, info.Key)
		}
		return out
	}

	tests := []struct {
		name       string
		keep, days int
		want       []string
	}{
		{"by age", 0, 7, []string{"r1", "r4"}},
		{"by count", 2, 0, []string{"r4", "r1", "r2"}},
		{"combined", 3, 7, []string{"r1", "r4"}},
		{"combined count wins", 1, 7, []string{"r1", "r4", "r2", "r5"}},
		{"keep more than present", 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, keys(selectReportsForDeletion(infos, tt.keep, tt.days, now)))
		})
	}
}

func TestCleanReports(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	saveTestReport(t, s, "old", now.AddDate(0, 0, -30))
	saveTestReport(t, s, "new", now.AddDate(0, 0, -1))

	setRetention(t, 0, 7, false)

	var out bytes.Buffer
	require.NoError(t, cleanReports(strings.NewReader("n\n"), &out, s, now))
	require.Contains(t, out.String(), "Aborted.")
	infos, err := s.ListReports()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	out.Reset()
	require.NoError(t, cleanReports(strings.NewReader("y\n"), &out, s, now))
	require.Contains(t, out.String(), "Deleted 1 report(s), 0 failed.")

	infos, err = s.ListReports()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "new", infos[0].Key)
}

func TestCleanReports_Force(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	saveTestReport(t, s, "a", now.AddDate(0, 0, -3))
	saveTestReport(t, s, "b", now.AddDate(0, 0, -2))

	setRetention(t, 1, 0, true)

	var out bytes.Buffer
	require.NoError(t, cleanReports(strings.NewReader(""), &out, s, now))
	require.NotContains(t, out.String(), "Proceed")

	infos, err := s.ListReports()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "b", infos[0].Key)

	out.Reset()
	setRetention(t, 0, 30, true)
	require.NoError(t, cleanReports(strings.NewReader(""), &out, s, now))
	require.Equal(t, "No reports match deletion criteria.\n", out.String())
}

func TestShowFormatFlagIsSeparate(t *testing.T) {
	flag := showReportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	t.Cleanup(func() { _ = flag.Value.Set(flag.DefValue) })

	before := outputFormat
	require.NoError(t, flag.Value.Set("json"))
	require.Equal(t, "json", showFormat)
	require.Equal(t, before, outputFormat)
}
