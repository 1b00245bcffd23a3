// Package syncer runs sync cycles: connect to both trees, enumerate them,
// plan, execute, and report.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/bamsammich/treesync/internal/engine"
	"github.com/bamsammich/treesync/internal/event"
	"github.com/bamsammich/treesync/internal/filter"
	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/stats"
	"github.com/bamsammich/treesync/internal/transport"
	"github.com/bamsammich/treesync/internal/tree"
	"github.com/bamsammich/treesync/internal/ui"
)

// Connector opens the tree at loc for one cycle. A missing root is an
// error only when mustExist is set.
type Connector func(ctx context.Context, loc transport.Location, mustExist bool) (transport.WriteEndpoint, error)

// Config describes what to sync and how.
type Config struct {
	Source transport.Location
	Dest   transport.Location
	// Rules selects the entries that take part. Nil means everything.
	Rules *filter.Rules
	// RenameThreshold, when set, is the smallest file considered for
	// rename matching.
	RenameThreshold *uint64
	// Connect opens endpoints. Nil uses transport.Open with SSH.
	Connect Connector
	// Presenter builds the reporter for one cycle. Nil discards events.
	Presenter func(*stats.Collector) ui.Presenter
	// SummaryWriter receives the presenter's summary after each cycle.
	SummaryWriter io.Writer
	// RecycleDir is where destination-only entries go when Extraneous is
	// MoveToRecycle: AutoRecycle, a path relative to the destination's
	// parent, or an absolute path.
	RecycleDir    string
	SSH           transport.SSHOpts
	Extraneous    plan.Disposal
	Workers       int
	BWLimit       int64
	ForceUpdate   bool
	VerifyRenames bool
	NoRenames     bool
	DryRun        bool
}

// Syncer runs sync cycles for one source and destination.
type Syncer struct {
	cfg     Config
	recycle recycleSpec
	now     func() time.Time
}

// New validates cfg and returns a Syncer.
func New(cfg Config) (*Syncer, error) {
	if cfg.Rules == nil {
		cfg.Rules = filter.MustCompile(filter.DefaultFilter, filter.Options{})
	}
	if cfg.Connect == nil {
		opts := cfg.SSH
		cfg.Connect = func(ctx context.Context, loc transport.Location, mustExist bool) (transport.WriteEndpoint, error) {
			return transport.Open(ctx, loc, opts, mustExist)
		}
	}
	s := &Syncer{cfg: cfg, now: time.Now}
	if cfg.Extraneous == plan.MoveToRecycle {
		spec, err := parseRecycle(cfg.RecycleDir, cfg.Dest)
		if err != nil {
			return nil, err
		}
		s.recycle = spec
	}
	return s, nil
}

// CycleResult is the outcome of one cycle.
type CycleResult struct {
	Plan   plan.Plan
	Result engine.Result
}

// Failed returns the number of actions that failed or were canceled.
func (r CycleResult) Failed() int {
	return len(r.Result.Failed()) + r.Result.Canceled()
}

// RunOnce runs a single cycle. Errors returned are fatal for the cycle:
// an endpoint that cannot be opened or enumerated (*transport.Error) or
// an unusable recycle directory. Per-action failures are reported in the
// result instead.
func (s *Syncer) RunOnce(ctx context.Context) (CycleResult, error) {
	collector := stats.NewCollector()
	var (
		events chan event.Event
		done   chan error
		pres   ui.Presenter
	)
	if s.cfg.Presenter != nil {
		pres = s.cfg.Presenter(collector)
		events = make(chan event.Event, 256)
		done = make(chan error, 1)
		go func() { done <- pres.Run(events) }()
	}

	res, err := s.cycle(ctx, collector, events)

	if events != nil {
		close(events)
		if perr := <-done; perr != nil {
			slog.Warn("presenter error", "error", perr)
		}
		if err == nil && s.cfg.SummaryWriter != nil {
			if summary := pres.Summary(); summary != "" {
				fmt.Fprintln(s.cfg.SummaryWriter, summary)
			}
		}
	}
	return res, err
}

func (s *Syncer) cycle(ctx context.Context, collector *stats.Collector, events chan<- event.Event) (CycleResult, error) {
	sink := event.Sink{C: events, Done: ctx.Done()}
	sink.Emit(event.Event{Type: event.CycleStarted, DryRun: s.cfg.DryRun})

	src, err := s.cfg.Connect(ctx, s.cfg.Source, true)
	if err != nil {
		return CycleResult{}, err
	}
	defer closeEndpoint(src)
	dst, err := s.cfg.Connect(ctx, s.cfg.Dest, false)
	if err != nil {
		return CycleResult{}, err
	}
	defer closeEndpoint(dst)
	src, dst = transport.Serialize(src), transport.Serialize(dst)

	srcSnap, err := tree.Enumerate(ctx, src, s.cfg.Rules)
	if err != nil {
		return CycleResult{}, err
	}
	dstSnap, err := tree.Enumerate(ctx, dst, s.cfg.Rules)
	if err != nil {
		return CycleResult{}, err
	}
	for _, w := range append(srcSnap.Warnings, dstSnap.Warnings...) {
		sink.Emit(event.Event{Type: event.ScanWarning, Path: w.Path, Error: w})
	}
	sink.Emit(event.Event{
		Type:  event.ScanComplete,
		Total: int64(srcSnap.Len() + dstSnap.Len()),
	})

	pcfg := plan.Config{
		Comparator: tree.Comparator{
			Resolution: tree.Coarsest(src.Caps().TimeResolution, dst.Caps().TimeResolution),
		},
		Extraneous:      s.cfg.Extraneous,
		RenameThreshold: s.cfg.RenameThreshold,
		ForceUpdate:     s.cfg.ForceUpdate,
		NoRenames:       s.cfg.NoRenames,
	}
	if s.cfg.VerifyRenames {
		pcfg.Confirm = engine.VerifyRename(src, dst)
	}
	p := plan.Build(srcSnap, dstSnap, pcfg)
	changes := p.Changes()
	slog.Info("plan ready",
		"source", s.cfg.Source.String(), "dest", s.cfg.Dest.String(),
		"changes", len(changes), "bytes", p.Bytes())

	var recycleDir string
	if p.Counts()[plan.Recycle] > 0 {
		recycleDir, err = s.recycle.at(s.now()).resolve(dst)
		if err != nil {
			return CycleResult{Plan: p}, err
		}
	}

	if len(changes) > 0 && !s.cfg.DryRun {
		if err := ensureRoot(dst); err != nil {
			return CycleResult{Plan: p}, &transport.Error{Op: "create", Location: s.cfg.Dest.String(), Err: err}
		}
	}

	result := engine.Execute(ctx, p, engine.Config{
		Src:        src,
		Dst:        dst,
		Events:     events,
		Stats:      collector,
		RecycleDir: recycleDir,
		Workers:    s.cfg.Workers,
		BWLimit:    s.cfg.BWLimit,
		DryRun:     s.cfg.DryRun,
	})
	for _, r := range result.Failed() {
		slog.Error("action failed", "action", r.Action.Kind.String(), "path", r.Action.Path(), "error", r.Err)
	}
	sink.Emit(event.Event{Type: event.CycleComplete, DryRun: s.cfg.DryRun})
	return CycleResult{Plan: p, Result: result}, nil
}

func ensureRoot(dst transport.WriteEndpoint) error {
	_, err := dst.Stat("")
	if errors.Is(err, fs.ErrNotExist) {
		return dst.MkdirAll("")
	}
	return err
}

func closeEndpoint(ep transport.ReadEndpoint) {
	if err := ep.Close(); err != nil {
		slog.Debug("close endpoint", "root", ep.Root(), "error", err)
	}
}
