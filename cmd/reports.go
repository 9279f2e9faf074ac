package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clsizeof/internal/sizeof"
	"github.com/cwbudde/clsizeof/internal/store"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage saved size reports",
	Long: `Saved reports are per-device baselines written by "sizes --save" and
read back by "sizes --compare".`,
}

var listReportsCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		reportStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		return listReports(cmd.OutOrStdout(), reportStore)
	},
}

var showFormat string

var showReportCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := sizeof.ParseFormat(showFormat)
		if err != nil {
			return err
		}
		reportStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		report, err := reportStore.LoadReport(args[0])
		if err != nil {
			return err
		}
		return sizeof.Write(cmd.OutOrStdout(), report, format)
	},
}

var deleteReportCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		if err := reportStore.DeleteReport(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var cleanReportsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old reports",
	Long: `Delete saved reports based on a retention policy.
You can keep only the N most recent reports or delete reports older than N days.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keepLast == 0 && olderThanDays == 0 {
			return fmt.Errorf("must specify either --keep-last or --older-than")
		}
		reportStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		return cleanReports(cmd.InOrStdin(), cmd.OutOrStdout(), reportStore, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)

	reportsCmd.AddCommand(listReportsCmd)
	reportsCmd.AddCommand(showReportCmd)
	reportsCmd.AddCommand(deleteReportCmd)
	reportsCmd.AddCommand(cleanReportsCmd)

	showReportCmd.Flags().StringVar(&showFormat, "format", "text", "Output format (text, table, json)")

	cleanReportsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N reports (0 = keep all)")
	cleanReportsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete reports older than N days (0 = no age limit)")
	cleanReportsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listReports(w io.Writer, s store.Store) error {
	infos, err := s.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No reports found.")
		return nil
	}

	data := make([][]string, 0, len(infos))
	for _, info := range infos {
		data = append(data, []string{
			info.Key,
			info.Backend,
			info.Platform,
			info.Device,
			strconv.FormatUint(uint64(info.Count), 10),
			info.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"KEY", "BACKEND", "PLATFORM", "DEVICE", "VALUES", "SAVED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(w, "\nTotal reports: %d\n", len(infos))
	return nil
}

func cleanReports(in io.Reader, w io.Writer, s store.Store, now time.Time) error {
	infos, err := s.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No reports to clean.")
		return nil
	}

	toDelete := selectReportsForDeletion(infos, keepLast, olderThanDays, now)
	if len(toDelete) == 0 {
		fmt.Fprintln(w, "No reports match deletion criteria.")
		return nil
	}

	fmt.Fprintf(w, "Found %d report(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(w, "  - %s (%s, %s)\n", info.Key, info.Device, info.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Fprint(w, "\nProceed with deletion? [y/N]: ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		if r := strings.TrimSpace(response); r != "y" && r != "Y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := s.DeleteReport(info.Key); err != nil {
			slog.Error("Failed to delete report", "key", info.Key, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted report", "key", info.Key)
		deleted++
	}

	fmt.Fprintf(w, "\nDeleted %d report(s), %d failed.\n", deleted, failed)
	return nil
}

// selectReportsForDeletion applies the retention policy: reports older than
// olderThanDays, plus the oldest ones beyond the keepLast most recent.
func selectReportsForDeletion(infos []store.ReportInfo, keepLast, olderThanDays int, now time.Time) []store.ReportInfo {
	var toDelete []store.ReportInfo
	selected := map[string]bool{}

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.Key] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := append([]store.ReportInfo(nil), infos...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.Key] {
				toDelete = append(toDelete, info)
				selected[info.Key] = true
			}
		}
	}

	return toDelete
}
