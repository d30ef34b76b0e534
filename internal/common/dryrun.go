package common

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DryRunOptions contains options for handling dry run behavior
type DryRunOptions struct {
	// Enabled indicates whether dry run mode is active
	Enabled bool

	// Verbose lists every item instead of a sample
	Verbose bool

	// ItemType is the type of items being processed (e.g., "hosts")
	ItemType string

	// ActionVerb is the action being performed (e.g., "hide", "unhide")
	ActionVerb string

	// BatchSize is the size of batches when processing in batches
	BatchSize int
}

// HandleDryRun reports what would be submitted when dry run mode is on.
// Returns true if execution should continue (false if in dry run mode)
func HandleDryRun(w io.Writer, opts DryRunOptions, items []string) bool {
	if !opts.Enabled {
		return true
	}

	batches := SplitIntoBatches(items, opts.BatchSize)

	fmt.Fprintf(w, "DRY RUN: Would %s %d %s", opts.ActionVerb, len(items), opts.ItemType)
	if len(batches) > 1 {
		fmt.Fprintf(w, " in %d batches (batch size: %d)", len(batches), opts.BatchSize)
	}
	fmt.Fprintln(w)

	displayBatches(w, batches, opts.Verbose)

	return false
}

// displayBatches shows every item in verbose mode, otherwise the first and
// last item of each batch
func displayBatches(w io.Writer, batches [][]string, verbose bool) {
	if len(batches) == 1 && verbose {
		for i, item := range batches[0] {
			fmt.Fprintf(w, "  %d. %s\n", i+1, item)
		}
		return
	}
	if len(batches) <= 1 {
		return
	}

	for i, batch := range batches {
		fmt.Fprintf(w, "Batch %d: %d items\n", i+1, len(batch))
		if verbose {
			for j, item := range batch {
				fmt.Fprintf(w, "  %d. %s\n", j+1, item)
			}
			continue
		}
		fmt.Fprintf(w, "  First item: %s\n", batch[0])
		if len(batch) > 1 {
			fmt.Fprintf(w, "  Last item: %s\n", batch[len(batch)-1])
		}
	}
}

// ConfirmBatchOperation asks the user to confirm a batch operation.
// Returns true if the user confirms, or if force is true
func ConfirmBatchOperation(in io.Reader, out io.Writer, itemCount int, itemType string, actionVerb string, force bool) bool {
	if force {
		return true
	}

	fmt.Fprintf(out, "\nYou are about to %s %d %s.\n", actionVerb, itemCount, itemType)
	fmt.Fprint(out, "Are you sure? [y/N]: ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	answer = strings.TrimSpace(answer)
	if (err != nil && answer == "") || (answer != "y" && answer != "Y") {
		fmt.Fprintln(out, "Operation cancelled.")
		return false
	}

	return true
}
