package common

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/dedupe"
)

// OutputFormat defines the format for command output
type OutputFormat string

const (
	// OutputFormatText is the standard human-readable text format
	OutputFormatText OutputFormat = "text"

	// OutputFormatJSON is the JSON format
	OutputFormatJSON OutputFormat = "json"

	// OutputFormatTable is the tabular format
	OutputFormatTable OutputFormat = "table"
)

// ParseOutputFormat validates an output format name
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputFormatText, "":
		return OutputFormatText, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatTable:
		return OutputFormatTable, nil
	}
	return "", errors.Newf("unknown output format %q (expected text, json or table)", s)
}

// OutputJSON marshals the given data to indented JSON on w
func OutputJSON(w io.Writer, data interface{}) error {
	jsonData, err := ToJSON(data)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, string(jsonData))
	return nil
}

// ToJSON marshals the given data to JSON
func ToJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// FormatTable formats tabular data with properly aligned columns
func FormatTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	totalWidth := 0
	for _, h := range headers {
		totalWidth += utf8.RuneCountInString(h) + 3
	}
	fmt.Fprintln(tw, strings.Repeat("-", totalWidth))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// lastSeenText prefers the value exactly as the service reported it
func lastSeenText(sel dedupe.Selection) string {
	if sel.RawLastSeen != "" {
		return sel.RawLastSeen
	}
	return sel.LastSeen.Format(time.RFC3339)
}

// AuditLine is the audit trail entry printed for each record selected for removal
func AuditLine(sel dedupe.Selection) string {
	return fmt.Sprintf("Removing duplicate %s (%s) with last check-in on %s", sel.Hostname, sel.ID, lastSeenText(sel))
}

// AuditWriter is a dedupe.Observer that prints one audit line per selection
type AuditWriter struct {
	W io.Writer
}

// Selected implements dedupe.Observer
func (a AuditWriter) Selected(sel dedupe.Selection) {
	fmt.Fprintln(a.W, AuditLine(sel))
}

// Skipped implements dedupe.Observer
func (a AuditWriter) Skipped(dedupe.HostRecord, string) {}

// PrintGroups renders duplicate hostname groups in the requested format
func PrintGroups(w io.Writer, format OutputFormat, groups []dedupe.Group) error {
	switch format {
	case OutputFormatJSON:
		if groups == nil {
			groups = []dedupe.Group{}
		}
		return OutputJSON(w, groups)
	case OutputFormatTable:
		rows := make([][]string, 0)
		for _, g := range groups {
			for _, sel := range g.Stale {
				rows = append(rows, []string{g.Hostname, sel.ID, lastSeenText(sel), "stale"})
			}
			rows = append(rows, []string{g.Hostname, g.Kept.ID, lastSeenText(g.Kept), "keep"})
		}
		FormatTable(w, []string{"HOSTNAME", "DEVICE ID", "LAST SEEN", "ACTION"}, rows)
		return nil
	default:
		if len(groups) == 0 {
			fmt.Fprintln(w, "No duplicate hostnames found")
			return nil
		}
		stale := 0
		for _, g := range groups {
			stale += len(g.Stale)
			fmt.Fprintf(w, "%s: %d records, keeping %s (last check-in %s)\n", g.Hostname, len(g.Stale)+1, g.Kept.ID, lastSeenText(g.Kept))
			for _, sel := range g.Stale {
				fmt.Fprintf(w, "  stale %s (last check-in %s)\n", sel.ID, lastSeenText(sel))
			}
		}
		fmt.Fprintf(w, "%d duplicate hostnames, %d stale records\n", len(groups), stale)
		return nil
	}
}

// PrintBatchOutcomes reports every failed chunk with each (code, message) pair
func PrintBatchOutcomes(w io.Writer, actionVerb string, outcomes []BatchOutcome) {
	for _, o := range outcomes {
		if o.Success() {
			fmt.Fprintf(w, "Batch %d: %s accepted for %d hosts\n", o.Index+1, actionVerb, len(o.IDs))
			continue
		}
		fmt.Fprintf(w, "Batch %d: failed to %s %d hosts\n", o.Index+1, actionVerb, len(o.IDs))
		if o.Err != nil {
			fmt.Fprintf(w, "  %v\n", o.Err)
		}
		for _, apiErr := range o.Errors {
			fmt.Fprintf(w, "  %s\n", apiErr)
		}
	}
	fmt.Fprintln(w, SummarizeBatchOutcomes(outcomes))
}

// PrintAPIErrors prints every (code, message) pair carried by err, one per line.
// Returns false when err carries no pairs.
func PrintAPIErrors(w io.Writer, err error) bool {
	pairs := api.ErrorPairs(err)
	if len(pairs) == 0 {
		return false
	}
	fmt.Fprintln(w, api.FormatAPIErrors(pairs))
	return true
}
