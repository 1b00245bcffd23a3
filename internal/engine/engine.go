// Package engine executes sync plans against a destination endpoint.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/time/rate"

	"github.com/bamsammich/treesync/internal/event"
	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/stats"
	"github.com/bamsammich/treesync/internal/transport"
)

// Outcome is what happened to one action.
type Outcome int

const (
	// Applied means the action changed the destination.
	Applied Outcome = iota
	// WouldApply means the action was reported but not performed (dry run).
	WouldApply
	// Skipped means the plan asked for no change.
	Skipped
	// Failed means the action was attempted, or blocked by a failed
	// prerequisite, and did not take effect.
	Failed
	// Canceled means the run was canceled before the action started.
	Canceled
)

var outcomeNames = [...]string{
	Applied:    "applied",
	WouldApply: "would apply",
	Skipped:    "skipped",
	Failed:     "failed",
	Canceled:   "canceled",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ErrDependency is reported for an action that was not attempted because
// an action it depends on failed.
var ErrDependency = errors.New("prerequisite action failed")

var (
	errNoRecycleDir = errors.New("no recycle directory configured")
	errRecycleTaken = errors.New("no free name in recycle directory")
)

// ActionError is a failure of a single action. It never aborts a run.
type ActionError struct {
	Err    error
	Action plan.Action
}

func (e *ActionError) Error() string {
	if e.Action.Kind == plan.Rename {
		return fmt.Sprintf("%s %s -> %s: %v", e.Action.Kind, e.Action.From, e.Action.Entry, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Action.Kind, e.Action.Entry, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ActionResult pairs an action with its outcome.
type ActionResult struct {
	Err     error
	Action  plan.Action
	Outcome Outcome
}

// Result is the outcome of executing a plan. Results is in plan order.
type Result struct {
	Results []ActionResult
	Stats   stats.Snapshot
}

// Failed returns the results of actions that failed.
func (r Result) Failed() []ActionResult {
	var out []ActionResult
	for _, res := range r.Results {
		if res.Outcome == Failed {
			out = append(out, res)
		}
	}
	return out
}

// Canceled returns the number of actions that never started.
func (r Result) Canceled() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == Canceled {
			n++
		}
	}
	return n
}

// Err joins the errors of all failed actions, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

// Config describes how to execute a plan.
type Config struct {
	Src    transport.ReadEndpoint
	Dst    transport.WriteEndpoint
	Events chan<- event.Event
	Stats  *stats.Collector
	// RecycleDir is where Recycle actions move entries, relative to the
	// destination root. It may point outside the root with "..".
	RecycleDir string
	Workers    int
	// BWLimit caps aggregate copy throughput in bytes per second; 0 means
	// unlimited.
	BWLimit int64
	DryRun  bool
}

// DefaultWorkers returns the default number of concurrent actions.
func DefaultWorkers() int {
	return min(runtime.NumCPU()*2, 16)
}

type executor struct {
	cfg     Config
	sink    event.Sink
	limiter *rate.Limiter
	tmps    *tmpRegistry
}

// Execute performs the plan's actions, running independent actions
// concurrently. An action starts only after every earlier action that
// touches the same path, one of its ancestors, or one of its descendants
// has finished. Failures are recorded per action and never stop the run.
// Canceling ctx stops new actions from starting; actions in flight stop
// at their next read.
func Execute(ctx context.Context, p plan.Plan, cfg Config) Result {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}

	ex := &executor{
		cfg:  cfg,
		sink: event.Sink{C: cfg.Events, Done: ctx.Done()},
		tmps: newTmpRegistry(cfg.Dst),
	}
	if cfg.BWLimit > 0 {
		ex.limiter = NewBWLimiter(cfg.BWLimit)
	}
	defer ex.tmps.cleanup()

	changes := p.Changes()
	cfg.Stats.SetTotals(int64(len(changes)), int64(p.Bytes())) //nolint:gosec // G115: byte totals fit in int64
	ex.sink.Emit(event.Event{
		Type:      event.PlanReady,
		Total:     int64(len(changes)),
		TotalSize: int64(p.Bytes()), //nolint:gosec // G115: byte totals fit in int64
		DryRun:    cfg.DryRun,
	})

	results := make([]ActionResult, len(p.Actions))
	for i, a := range p.Actions {
		if a.Kind != plan.Skip {
			continue
		}
		results[i] = ActionResult{Action: a, Outcome: Skipped}
		cfg.Stats.AddSkipped(1)
		ex.sink.Emit(event.FromAction(event.ActionSkipped, a))
	}

	g := buildGraph(p.Actions)
	slog.Debug("executing plan",
		"actions", len(p.Actions), "changes", len(changes),
		"workers", cfg.Workers, "dry_run", cfg.DryRun)
	ex.run(ctx, g, p.Actions, results)

	return Result{Results: results, Stats: cfg.Stats.Snapshot()}
}

func (ex *executor) runOne(ctx context.Context, workerID int, a plan.Action, blocked bool) ActionResult {
	if err := ctx.Err(); err != nil {
		return ActionResult{Action: a, Outcome: Canceled, Err: err}
	}
	if blocked {
		return ex.fail(workerID, a, ErrDependency)
	}

	started := event.FromAction(event.ActionStarted, a)
	started.WorkerID = workerID
	ex.sink.Emit(started)

	if ex.cfg.DryRun {
		ex.record(a, int64(a.Bytes())) //nolint:gosec // G115: file sizes fit in int64
		done := event.FromAction(event.ActionCompleted, a)
		done.WorkerID, done.DryRun = workerID, true
		ex.sink.Emit(done)
		return ActionResult{Action: a, Outcome: WouldApply}
	}

	n, err := ex.apply(ctx, a)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return ActionResult{Action: a, Outcome: Canceled, Err: ctx.Err()}
		}
		return ex.fail(workerID, a, err)
	}

	ex.record(a, n)
	done := event.FromAction(event.ActionCompleted, a)
	done.WorkerID = workerID
	ex.sink.Emit(done)
	return ActionResult{Action: a, Outcome: Applied}
}

func (ex *executor) fail(workerID int, a plan.Action, err error) ActionResult {
	ae := &ActionError{Action: a, Err: err}
	ex.cfg.Stats.AddFailed(1)
	slog.Debug("action failed", "kind", a.Kind.String(), "path", a.Entry.Path, "error", err)

	e := event.FromAction(event.ActionFailed, a)
	e.WorkerID, e.Error = workerID, ae
	ex.sink.Emit(e)
	return ActionResult{Action: a, Outcome: Failed, Err: ae}
}

func (ex *executor) record(a plan.Action, n int64) {
	s := ex.cfg.Stats
	switch a.Kind {
	case plan.Copy:
		if a.IsDir() {
			s.AddDirsCreated(1)
		} else {
			s.AddFilesCopied(1)
			s.AddBytesCopied(n)
		}
	case plan.Update:
		s.AddFilesUpdated(1)
		s.AddBytesCopied(n)
	case plan.Rename:
		s.AddRenamed(1)
	case plan.Recycle:
		s.AddRecycled(1)
	case plan.Delete:
		s.AddDeleted(1)
	case plan.Skip:
	}
	s.AddByteDiff(a.ByteDiff())
	s.AddActionsDone(1)
}
