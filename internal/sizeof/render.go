package sizeof

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Format selects how a report is written.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat maps user input to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatText:
		return FormatText, nil
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, table, json)", name)
	}
}

// Write renders r in the given format.
func Write(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatTable:
		return WriteTable(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	default:
		return WriteText(w, r)
	}
}

// WriteText prints the classic log: platform, device, count, one
// "<type> size: <N>" line per value in kernel order, then "queue finished".
func WriteText(w io.Writer, r *Report) error {
	lines := []string{
		"using platform: " + r.Platform.Name,
		"using device: " + r.Device.Name,
		fmt.Sprintf("Returned %d values", r.Count),
	}
	for _, e := range r.Entries {
		lines = append(lines, e.Name+" size: "+strconv.FormatUint(uint64(e.Size), 10))
	}
	lines = append(lines, "queue finished")

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable prints the sizes next to the host layout expectation.
func WriteTable(w io.Writer, r *Report) error {
	if _, err := fmt.Fprintf(w, "%s / %s (%s)\n\n", r.Platform.Name, r.Device.Name, r.Backend); err != nil {
		return err
	}

	data := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		mark := ""
		if e.Size != e.Expected {
			mark = "*"
		}
		data = append(data, []string{
			e.Name,
			strconv.FormatUint(uint64(e.Size), 10),
			strconv.FormatUint(uint64(e.Expected), 10),
			mark,
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"TYPE", "SIZE", "EXPECTED", ""})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()

	_, err := fmt.Fprintf(w, "\nReturned %d values\n", r.Count)
	return err
}

// WriteJSON prints the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
