package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clsizeof/internal/compute"
	"github.com/cwbudde/clsizeof/internal/sizeof"
	"github.com/cwbudde/clsizeof/internal/store"
)

var (
	platformIndex  int
	deviceIndex    int
	deviceTypeName string
	elements       int
	buildOptions   string
	outputFormat   string
	verifyLayout   bool
	saveReport     bool
	compareReport  bool
)

var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "Run the size report on a device",
	Long: `Compiles the ksizeof kernel for the selected device, runs it as a single
task and prints "<type> size: <N>" for every queried type in kernel order.
Any failing step prints its error (or the compiler build log) and exits 1.`,
	RunE: runSizes,
}

func init() {
	sizesCmd.Flags().IntVar(&platformIndex, "platform", 0, "Platform index")
	sizesCmd.Flags().IntVar(&deviceIndex, "device", 0, "Device index within the platform")
	sizesCmd.Flags().StringVar(&deviceTypeName, "device-type", "default", "Device type filter (default, gpu, cpu, accelerator, all)")
	sizesCmd.Flags().IntVar(&elements, "elements", sizeof.DefaultElements, "Capacity of the sizes buffer in uint32 entries")
	sizesCmd.Flags().StringVar(&buildOptions, "build-options", "", "Options passed to the program build")
	sizesCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, table, json)")
	sizesCmd.Flags().BoolVar(&verifyLayout, "verify", false, "Fail when sizes break layout rules or differ from the baseline")
	sizesCmd.Flags().BoolVar(&saveReport, "save", false, "Save the report under --data-dir as the device baseline")
	sizesCmd.Flags().BoolVar(&compareReport, "compare", false, "Compare against the saved baseline for this device")

	rootCmd.AddCommand(sizesCmd)
}

// sizesConfig is the resolved flag set of the sizes command.
type sizesConfig struct {
	options sizeof.Options
	format  sizeof.Format
	verify  bool
	save    bool
	compare bool
	store   store.Store
}

func runSizes(cmd *cobra.Command, args []string) error {
	deviceType, err := compute.ParseDeviceType(deviceTypeName)
	if err != nil {
		return err
	}
	format, err := sizeof.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg := sizesConfig{
		options: sizeof.Options{
			PlatformIndex: platformIndex,
			DeviceIndex:   deviceIndex,
			DeviceType:    deviceType,
			Elements:      elements,
			BuildOptions:  buildOptions,
			Types:         sizeof.DefaultTypes(),
		},
		format:  format,
		verify:  verifyLayout,
		save:    saveReport,
		compare: compareReport,
	}

	if cfg.save || cfg.compare {
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open report store: %w", err)
		}
		cfg.store = fsStore
	}

	rt, err := openRuntime(cfg.options.Types)
	if err != nil {
		return err
	}
	defer rt.Close()

	return reportSizes(cmd.Context(), cmd.OutOrStdout(), rt, cfg)
}

// reportSizes runs the report on rt and writes it to w, then applies the
// layout checks, baseline comparison and save requested by cfg.
func reportSizes(ctx context.Context, w io.Writer, rt compute.Runtime, cfg sizesConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := sizeof.Run(ctx, rt, cfg.options)
	if err != nil {
		var se *sizeof.StageError
		if errors.As(err, &se) {
			if se.Platform != "" {
				fmt.Fprintln(w, "using platform: "+se.Platform)
			}
			if se.Device != "" {
				fmt.Fprintln(w, "using device: "+se.Device)
			}
			if se.BuildLog != "" {
				fmt.Fprintln(w, se.BuildLog)
			}
		}
		fmt.Fprintln(w, err)
		return err
	}

	if err := sizeof.Write(w, report, cfg.format); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	problems := 0
	for _, f := range sizeof.Check(report, cfg.options.Types) {
		slog.Warn("Layout check failed", "type", f.Type, "detail", f.Message)
		problems++
	}

	key := store.KeyFor(report)
	if cfg.compare {
		baseline, err := cfg.store.LoadReport(key)
		if err != nil {
			return fmt.Errorf("failed to load baseline %s: %w", key, err)
		}
		diffs := sizeof.Compare(report, baseline)
		for _, d := range diffs {
			slog.Warn("Size changed since baseline", "type", d.Name, "was", d.Was, "now", d.Now)
		}
		problems += len(diffs)
		slog.Info("Compared with baseline", "key", key, "differences", len(diffs))
	}

	if cfg.save {
		if err := cfg.store.SaveReport(key, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		slog.Info("Report saved", "key", key)
	}

	if cfg.verify && problems > 0 {
		return fmt.Errorf("verification failed: %d problem(s) in %s report", problems, report.Device.Name)
	}
	return nil
}
