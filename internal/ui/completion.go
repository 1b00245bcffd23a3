package ui

import (
	"fmt"
	"strings"

	"github.com/bamsammich/treesync/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  copied 12  updated 3  deleted 1  unchanged 480  net +2.1 MiB  time 4s  errors 0
func CompletionSummary(snap stats.Snapshot, dryRun bool) string {
	head := "done ✓"
	switch {
	case dryRun:
		head = "dry run"
	case snap.Failed > 0:
		head = "done ✗"
	}
	parts := []string{head}

	counts := []struct {
		label string
		n     int64
	}{
		{"copied", snap.FilesCopied},
		{"dirs", snap.DirsCreated},
		{"updated", snap.FilesUpdated},
		{"renamed", snap.Renamed},
		{"recycled", snap.Recycled},
		{"deleted", snap.Deleted},
	}
	for _, c := range counts {
		if c.n > 0 {
			parts = append(parts, c.label+" "+FormatCount(c.n))
		}
	}
	if snap.Changed() == 0 && snap.Failed == 0 {
		parts = append(parts, "up to date")
	}
	if snap.Skipped > 0 {
		parts = append(parts, "unchanged "+FormatCount(snap.Skipped))
	}

	parts = append(parts,
		"net "+FormatByteDiff(snap.ByteDiff),
		"time "+FormatDuration(snap.Elapsed),
		fmt.Sprintf("errors %d", snap.Failed),
	)
	return strings.Join(parts, "  ")
}
