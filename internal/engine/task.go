package engine

import (
	"context"
	"sync"

	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/tree"
)

// task is one schedulable action in the dependency graph.
type task struct {
	dependents []int
	deps       int  // unfinished prerequisites
	blocked    bool // a prerequisite did not take effect
}

type graph struct {
	tasks []task
	roots []int
	n     int // number of scheduled tasks
}

// touched returns the destination paths an action reads or writes.
func touched(a plan.Action) []string {
	if a.Kind == plan.Rename {
		return []string{a.From, a.Entry.Path}
	}
	return []string{a.Entry.Path}
}

func ancestors(p string) []string {
	var out []string
	for d := tree.Parent(p); d != ""; d = tree.Parent(d) {
		out = append(out, d)
	}
	return out
}

// buildGraph links every action to the earlier actions it conflicts with:
// those touching the same path, an ancestor, or a descendant. Skips are
// not scheduled.
func buildGraph(actions []plan.Action) *graph {
	g := &graph{tasks: make([]task, len(actions))}
	last := make(map[string]int)    // last action touching exactly the path
	under := make(map[string][]int) // actions touching a descendant since then

	for i, a := range actions {
		if a.Kind == plan.Skip {
			continue
		}
		g.n++

		deps := make(map[int]struct{})
		for _, p := range touched(a) {
			if j, ok := last[p]; ok {
				deps[j] = struct{}{}
			}
			for _, j := range under[p] {
				deps[j] = struct{}{}
			}
			for _, anc := range ancestors(p) {
				if j, ok := last[anc]; ok {
					deps[j] = struct{}{}
				}
			}
		}
		delete(deps, i)
		for j := range deps {
			g.tasks[j].dependents = append(g.tasks[j].dependents, i)
		}
		g.tasks[i].deps = len(deps)
		if len(deps) == 0 {
			g.roots = append(g.roots, i)
		}

		for _, p := range touched(a) {
			last[p] = i
			delete(under, p)
			for _, anc := range ancestors(p) {
				under[anc] = append(under[anc], i)
			}
		}
	}
	return g
}

// run dispatches ready tasks to cfg.Workers goroutines until every task
// has finished.
func (ex *executor) run(ctx context.Context, g *graph, actions []plan.Action, results []ActionResult) {
	if g.n == 0 {
		return
	}

	ready := make(chan int, g.n)
	for _, i := range g.roots {
		ready <- i
	}

	var (
		mu        sync.Mutex
		remaining = g.n
		wg        sync.WaitGroup
	)
	for w := range ex.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ready {
				mu.Lock()
				blocked := g.tasks[i].blocked
				mu.Unlock()

				res := ex.runOne(ctx, w, actions[i], blocked)
				results[i] = res
				ok := res.Outcome == Applied || res.Outcome == WouldApply

				mu.Lock()
				for _, d := range g.tasks[i].dependents {
					if !ok {
						g.tasks[d].blocked = true
					}
					g.tasks[d].deps--
					if g.tasks[d].deps == 0 {
						ready <- d
					}
				}
				remaining--
				if remaining == 0 {
					close(ready)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
