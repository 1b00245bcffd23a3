package engine

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/tree"
)

func act(kind plan.Kind, p string, isDir bool) plan.Action {
	e := tree.Entry{Path: p, Kind: tree.File}
	if isDir {
		e.Kind = tree.Dir
	}
	return plan.Action{Kind: kind, Entry: e}
}

func dependents(g *graph, i int) []int {
	out := append([]int(nil), g.tasks[i].dependents...)
	sort.Ints(out)
	return out
}

func TestBuildGraph(t *testing.T) {
	actions := []plan.Action{
		act(plan.Copy, "d", true),       // 0
		act(plan.Copy, "d/f", false),    // 1
		act(plan.Copy, "e", false),      // 2
		act(plan.Delete, "x/a", false),  // 3
		act(plan.Delete, "x/b", false),  // 4
		act(plan.Delete, "x", true),     // 5
		act(plan.Skip, "s", false),      // 6
		act(plan.Copy, "d/g/h", false),  // 7
	}
	g := buildGraph(actions)

	assert.Equal(t, 7, g.n)
	assert.Equal(t, []int{0, 2, 3, 4}, g.roots)
	assert.Equal(t, []int{1, 7}, dependents(g, 0))
	assert.Equal(t, []int{5}, dependents(g, 3))
	assert.Equal(t, []int{5}, dependents(g, 4))
	assert.Equal(t, 2, g.tasks[5].deps)
	assert.Empty(t, g.tasks[6].dependents)
	assert.Equal(t, 0, g.tasks[6].deps)
}

func TestBuildGraphRenameTouchesBothPaths(t *testing.T) {
	rename := act(plan.Rename, "y", false)
	rename.From = "x"
	actions := []plan.Action{
		rename,                     // 0
		act(plan.Copy, "x", true),  // 1
		act(plan.Copy, "z", false), // 2
	}
	g := buildGraph(actions)

	assert.Equal(t, []int{0, 2}, g.roots)
	assert.Equal(t, []int{1}, dependents(g, 0))
}

func TestBuildGraphSamePathChain(t *testing.T) {
	actions := []plan.Action{
		act(plan.Recycle, "a", false),
		act(plan.Copy, "a", true),
		act(plan.Copy, "a/b", false),
	}
	g := buildGraph(actions)

	assert.Equal(t, []int{0}, g.roots)
	assert.Equal(t, []int{1}, dependents(g, 0))
	assert.Equal(t, []int{2}, dependents(g, 1))
}
