package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clsizeof/internal/compute"
)

var showExtensions bool

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List platforms and devices",
	Long:  `Enumerates every platform of the selected backend and the devices each one exposes.`,
	RunE:  runPlatforms,
}

func init() {
	platformsCmd.Flags().BoolVar(&showExtensions, "extensions", false, "Also print each platform's extensions")
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	return listPlatforms(cmd.OutOrStdout(), rt, showExtensions)
}

func listPlatforms(w io.Writer, rt compute.Runtime, extensions bool) error {
	platforms, err := rt.Platforms()
	if err != nil {
		return fmt.Errorf("failed to enumerate platforms: %w", err)
	}
	if len(platforms) == 0 {
		return compute.ErrNoPlatforms
	}

	var data [][]string
	for pi, platform := range platforms {
		info := platform.Info()
		devices, err := platform.Devices(compute.DeviceTypeAll)
		if errors.Is(err, compute.ErrNoDevices) {
			data = append(data, []string{strconv.Itoa(pi), info.Name, "-", "", "", "", "", ""})
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to enumerate devices of %s: %w", info.Name, err)
		}

		for di, device := range devices {
			d := device.Info()
			data = append(data, []string{
				strconv.Itoa(pi),
				info.Name,
				strconv.Itoa(di),
				d.Name,
				string(d.Type),
				d.Version,
				strconv.FormatUint(uint64(d.MaxComputeUnits), 10),
				humanize.IBytes(d.GlobalMemSize),
			})
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "PLATFORM", "DEV", "DEVICE", "TYPE", "VERSION", "UNITS", "GLOBAL MEM"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	if extensions {
		for pi, platform := range platforms {
			info := platform.Info()
			fmt.Fprintf(w, "\nplatform %d (%s, %s, %s):\n", pi, info.Vendor, info.Version, info.Profile)
			if len(info.Extensions) == 0 {
				fmt.Fprintln(w, "  (no extensions)")
				continue
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(info.Extensions, "\n  "))
		}
	}
	return nil
}
