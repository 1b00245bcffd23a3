package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/treesync/internal/event"
	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/stats"
)

// plainPresenter writes one line per destination change to w and failures
// to errW. With progress set it also ticks the collector once a second
// and prints a progress line every five.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	stats    *stats.Collector
	pal      palette
	verbose  bool
	dryRun   bool
	progress bool
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			if p.stats == nil {
				continue
			}
			p.stats.Tick()
			ticks++
			if p.progress && ticks%5 == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ActionCompleted:
		fmt.Fprintln(p.w, p.actionLine(ev))
	case event.ActionFailed:
		msg := "error"
		if ev.Error != nil {
			msg = ev.Error.Error()
		}
		fmt.Fprintf(p.errW, "%s %s\n", p.pal.render(p.pal.remove, "!"), msg)
	case event.ActionSkipped:
		if p.verbose {
			fmt.Fprintln(p.w, p.pal.render(p.pal.muted, fmt.Sprintf("  %s (%s)", ev.Path, ev.Reason)))
		}
	case event.PlanReady:
		if p.verbose {
			fmt.Fprintf(p.errW, "plan: %s changes, %s to transfer\n",
				FormatCount(ev.Total), FormatBytes(ev.TotalSize))
		}
	case event.CycleStarted, event.ScanComplete, event.ActionStarted,
		event.ScanWarning, event.CycleComplete:
	}
}

// actionLine formats a completed action: a one-character marker followed
// by the path.
func (p *plainPresenter) actionLine(ev event.Event) string {
	marker := ev.Kind.Symbol()
	switch ev.Kind {
	case plan.Copy:
		marker = p.pal.render(p.pal.add, marker)
	case plan.Update:
		marker = p.pal.render(p.pal.change, marker)
	case plan.Rename:
		return fmt.Sprintf("%s %s -> %s", p.pal.render(p.pal.move, marker), ev.From, ev.Path)
	case plan.Recycle, plan.Delete:
		marker = p.pal.render(p.pal.remove, marker)
	case plan.Skip:
	}
	return marker + " " + ev.Path
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.ActionsTotal == 0 || snap.ActionsDone >= snap.ActionsTotal {
		return
	}
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesCopied) / float64(snap.BytesTotal) * 100
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s actions %s eta %s\n",
			pct,
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesTotal),
			FormatCount(snap.ActionsDone), FormatCount(snap.ActionsTotal),
			FormatRate(p.stats.RollingSpeed(10)),
			FormatETA(p.stats.ETA()),
		)
		return
	}
	fmt.Fprintf(p.errW, "progress: %s/%s actions\n",
		FormatCount(snap.ActionsDone), FormatCount(snap.ActionsTotal))
}

func (p *plainPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	return CompletionSummary(p.stats.Snapshot(), p.dryRun)
}
