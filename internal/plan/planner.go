package plan

import (
	"sort"
	"strings"

	"github.com/bamsammich/treesync/internal/tree"
)

// Disposal says what happens to entries that exist only in the destination.
type Disposal int

const (
	// Keep leaves destination-only entries untouched.
	Keep Disposal = iota
	// Remove deletes destination-only entries.
	Remove
	// MoveToRecycle moves destination-only entries into the recycle directory.
	MoveToRecycle
)

// Config controls planning.
type Config struct {
	// Confirm, when set, must approve a rename candidate before it is
	// used. It receives the destination orphan and the source file.
	Confirm func(orphan, src tree.Entry) bool
	// RenameThreshold, when set, is the minimum file size for rename
	// matching. Smaller files are always copied.
	RenameThreshold *uint64
	Comparator      tree.Comparator
	Extraneous      Disposal
	// ForceUpdate overwrites destination files that are newer than the
	// source.
	ForceUpdate bool
	// NoRenames disables rename matching.
	NoRenames bool
}

// Build computes the actions that make dst match src. It performs no I/O
// other than what cfg.Confirm does.
func Build(src, dst *tree.Snapshot, cfg Config) Plan {
	p := planner{src: src, dst: dst, cfg: cfg}
	p.classifyFiles()
	p.matchRenames()
	p.disposeOrphans()
	p.disposeDirs()
	p.createDirs()
	return Plan{Actions: p.order()}
}

type planner struct {
	src, dst *tree.Snapshot
	cfg      Config

	fileActions []Action // Copy, Update, Skip
	copies      []int    // indexes into fileActions of tentative copies
	renames     []Action
	removals    []Action // file Recycle/Delete
	dirRemovals []Action
	dirCreates  []Action

	renamedFrom map[string]bool
	gone        map[string]bool // destination paths that will not exist after execution
}

func (p *planner) classifyFiles() {
	for _, s := range p.src.Files() {
		d, ok := p.dst.Get(s.Path)
		if !ok || d.IsDir() {
			p.copies = append(p.copies, len(p.fileActions))
			p.fileActions = append(p.fileActions, Action{Kind: Copy, Entry: s})
			continue
		}
		switch p.cfg.Comparator.Compare(s, d) {
		case tree.Same:
			p.fileActions = append(p.fileActions, Action{Kind: Skip, Entry: s, Reason: "unchanged"})
		case tree.SourceNewer:
			p.fileActions = append(p.fileActions, Action{Kind: Update, Entry: s, Replaces: d.Size})
		case tree.DestNewer:
			if p.cfg.ForceUpdate {
				p.fileActions = append(p.fileActions, Action{Kind: Update, Entry: s, Replaces: d.Size, Reason: "forced"})
			} else {
				p.fileActions = append(p.fileActions, Action{Kind: Skip, Entry: s, Reason: "destination is newer"})
			}
		}
	}
}

// orphans returns destination files with no source file at the same path,
// in path order. Files at or below a source path that could not be read
// are not orphans: the source may still hold them.
func (p *planner) orphans() []tree.Entry {
	var out []tree.Entry
	for _, d := range p.dst.Files() {
		if s, ok := p.src.Get(d.Path); ok && !s.IsDir() {
			continue
		}
		if p.src.Unreadable(d.Path) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (p *planner) matchRenames() {
	p.renamedFrom = make(map[string]bool)
	if p.cfg.NoRenames {
		return
	}

	bySig := make(map[tree.Signature][]tree.Entry)
	for _, o := range p.orphans() {
		sig := p.cfg.Comparator.Signature(o)
		bySig[sig] = append(bySig[sig], o)
	}
	if len(bySig) == 0 {
		return
	}

	for _, i := range p.copies {
		s := p.fileActions[i].Entry
		if p.cfg.RenameThreshold != nil && s.Size < *p.cfg.RenameThreshold {
			continue
		}
		// A directory in the way is removed after renames run, so the
		// file has to be copied.
		if d, ok := p.dst.Get(s.Path); ok && d.IsDir() {
			continue
		}
		for _, o := range bySig[p.cfg.Comparator.Signature(s)] {
			if p.renamedFrom[o.Path] {
				continue
			}
			// The orphan file sits where one of the target's parents must
			// be created, so it has to be out of the way before the move.
			if strings.HasPrefix(s.Path, o.Path+"/") {
				continue
			}
			if p.cfg.Confirm != nil && !p.cfg.Confirm(o, s) {
				continue
			}
			p.renamedFrom[o.Path] = true
			p.fileActions[i].Kind = Rename
			p.fileActions[i].From = o.Path
			break
		}
	}

	kept := p.fileActions[:0]
	for _, a := range p.fileActions {
		if a.Kind == Rename {
			p.renames = append(p.renames, a)
			continue
		}
		kept = append(kept, a)
	}
	p.fileActions = kept
}

func (p *planner) removalKind() (Kind, bool) {
	switch p.cfg.Extraneous {
	case Remove:
		return Delete, true
	case MoveToRecycle:
		return Recycle, true
	default:
		return Skip, false
	}
}

func (p *planner) disposeOrphans() {
	p.gone = make(map[string]bool, len(p.renamedFrom))
	for from := range p.renamedFrom {
		p.gone[from] = true
	}
	kind, ok := p.removalKind()
	if !ok {
		return
	}
	for _, o := range p.orphans() {
		if p.renamedFrom[o.Path] {
			continue
		}
		p.removals = append(p.removals, Action{Kind: kind, Entry: o})
		p.gone[o.Path] = true
	}
}

// disposeDirs removes destination-only directories that end up empty.
// Directories are visited deepest first so a parent sees its children's
// outcome. A directory whose listing was incomplete is never removed.
func (p *planner) disposeDirs() {
	kind, ok := p.removalKind()
	if !ok {
		return
	}
	children := make(map[string][]string)
	for _, e := range p.dst.Entries() {
		parent := tree.Parent(e.Path)
		children[parent] = append(children[parent], e.Path)
	}
	dirs := p.dst.Dirs()
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].Path > dirs[j].Path })
	for _, d := range dirs {
		if s, ok := p.src.Get(d.Path); ok && s.IsDir() {
			continue
		}
		if p.src.Unreadable(d.Path) {
			continue
		}
		if p.dst.Partial(d.Path) || !p.allGone(children[d.Path]) {
			continue
		}
		p.dirRemovals = append(p.dirRemovals, Action{Kind: kind, Entry: d})
		p.gone[d.Path] = true
	}
}

func (p *planner) allGone(paths []string) bool {
	for _, c := range paths {
		if !p.gone[c] {
			return false
		}
	}
	return true
}

func (p *planner) createDirs() {
	for _, s := range p.src.Dirs() {
		if d, ok := p.dst.Get(s.Path); ok && d.IsDir() {
			continue
		}
		p.dirCreates = append(p.dirCreates, Action{Kind: Copy, Entry: s})
	}
}

// order assembles the final action list. Removals and renames of files
// occupying a path where a directory is about to be created are hoisted
// in front of the directory creations, removals first so a rename never
// lands below a file that is still there.
func (p *planner) order() []Action {
	creating := make(map[string]bool, len(p.dirCreates))
	for _, a := range p.dirCreates {
		creating[a.Path()] = true
	}

	var hoisted, renames, removals []Action
	for _, a := range p.removals {
		if creating[a.Path()] {
			hoisted = append(hoisted, a)
		} else {
			removals = append(removals, a)
		}
	}
	for _, a := range p.renames {
		if creating[a.From] {
			hoisted = append(hoisted, a)
		} else {
			renames = append(renames, a)
		}
	}

	out := make([]Action, 0, len(hoisted)+len(p.dirCreates)+len(p.renames)+
		len(p.removals)+len(p.dirRemovals)+len(p.fileActions))
	out = append(out, hoisted...)
	out = append(out, p.dirCreates...)
	out = append(out, renames...)
	out = append(out, removals...)
	out = append(out, p.dirRemovals...)
	out = append(out, p.fileActions...)
	return out
}
