package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/treesync/internal/event"
	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/stats"
)

func runPlain(t *testing.T, p *plainPresenter, evs ...event.Event) {
	t.Helper()
	events := make(chan event.Event, len(evs))
	for _, ev := range evs {
		events <- ev
	}
	close(events)
	require.NoError(t, p.Run(events))
}

func TestPlainPresenterActionLines(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector()}

	runPlain(t, p,
		event.Event{Type: event.ActionCompleted, Kind: plan.Copy, Path: "dir/"},
		event.Event{Type: event.ActionCompleted, Kind: plan.Copy, Path: "dir/new.txt"},
		event.Event{Type: event.ActionCompleted, Kind: plan.Update, Path: "changed.txt"},
		event.Event{Type: event.ActionCompleted, Kind: plan.Rename, From: "old.txt", Path: "moved.txt"},
		event.Event{Type: event.ActionCompleted, Kind: plan.Recycle, Path: "stale.txt"},
		event.Event{Type: event.ActionCompleted, Kind: plan.Delete, Path: "gone/"},
	)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"+ dir/",
		"+ dir/new.txt",
		"* changed.txt",
		"> old.txt -> moved.txt",
		"~ stale.txt",
		"- gone/",
	}, lines)
	assert.Empty(t, errOut.String())
}

func TestPlainPresenterFailureGoesToErrWriter(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector()}

	runPlain(t, p, event.Event{
		Type:  event.ActionFailed,
		Kind:  plan.Copy,
		Path:  "fail.txt",
		Error: assert.AnError,
	})

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), assert.AnError.Error())
}

func TestPlainPresenterSkipsOnlyWhenVerbose(t *testing.T) {
	t.Parallel()

	skip := event.Event{Type: event.ActionSkipped, Kind: plan.Skip, Path: "same.txt", Reason: "unchanged"}

	var quiet bytes.Buffer
	runPlain(t, &plainPresenter{w: &quiet, errW: &bytes.Buffer{}}, skip)
	assert.Empty(t, quiet.String())

	var verbose bytes.Buffer
	runPlain(t, &plainPresenter{w: &verbose, errW: &bytes.Buffer{}, verbose: true}, skip)
	assert.Contains(t, verbose.String(), "same.txt")
	assert.Contains(t, verbose.String(), "unchanged")
}

func TestPlainPresenterPlanReadyVerbose(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer
	p := &plainPresenter{w: &bytes.Buffer{}, errW: &errOut, verbose: true}
	runPlain(t, p, event.Event{Type: event.PlanReady, Total: 1500, TotalSize: 2048})

	assert.Contains(t, errOut.String(), "1,500 changes")
	assert.Contains(t, errOut.String(), "2.0 KiB")
}

func TestPlainPresenterUnstyledWithoutColor(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := &plainPresenter{w: &out, errW: &bytes.Buffer{}, pal: newPalette(&out, false)}
	runPlain(t, p, event.Event{Type: event.ActionCompleted, Kind: plan.Copy, Path: "a"})

	assert.Equal(t, "+ a\n", out.String())
}

func TestPlainPresenterSummary(t *testing.T) {
	t.Parallel()

	collector := stats.NewCollector()
	collector.AddFilesCopied(2)
	collector.AddByteDiff(2048)

	p := &plainPresenter{w: &bytes.Buffer{}, errW: &bytes.Buffer{}, stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "copied 2")
	assert.Contains(t, s, "net +2.0 KiB")
	assert.Contains(t, s, "errors 0")
}

func TestQuietPresenter(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer
	collector := stats.NewCollector()
	p := NewPresenter(Config{Quiet: true, ErrWriter: &errOut, Stats: collector})

	events := make(chan event.Event, 2)
	events <- event.Event{Type: event.ActionCompleted, Kind: plan.Copy, Path: "ok.txt"}
	events <- event.Event{Type: event.ActionFailed, Path: "bad.txt", Error: assert.AnError}
	close(events)
	require.NoError(t, p.Run(events))

	assert.NotContains(t, errOut.String(), "ok.txt")
	assert.Contains(t, errOut.String(), assert.AnError.Error())
	assert.Empty(t, p.Summary())

	collector.AddFailed(1)
	assert.Contains(t, p.Summary(), "errors 1")
}
