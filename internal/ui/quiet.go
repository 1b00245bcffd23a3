package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/treesync/internal/event"
	"github.com/bamsammich/treesync/internal/stats"
)

// quietPresenter reports only failures.
type quietPresenter struct {
	errW   io.Writer
	stats  *stats.Collector
	dryRun bool
}

func (p *quietPresenter) Run(events <-chan event.Event) error {
	for ev := range events {
		if ev.Type == event.ActionFailed && ev.Error != nil && p.errW != nil {
			fmt.Fprintf(p.errW, "! %v\n", ev.Error)
		}
	}
	return nil
}

// Summary is empty unless something failed.
func (p *quietPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	snap := p.stats.Snapshot()
	if snap.Failed == 0 {
		return ""
	}
	return CompletionSummary(snap, p.dryRun)
}
