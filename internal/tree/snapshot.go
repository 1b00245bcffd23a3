package tree

import (
	"path"
	"sort"
	"strings"
)

// Snapshot is the filtered state of one tree, ordered by path.
type Snapshot struct {
	entries []Entry
	index   map[string]int
	partial map[string]bool

	// Warnings lists entries that were skipped during enumeration.
	Warnings []Warning
}

// NewSnapshot builds a snapshot from entries in any order. partial names
// directories ("" for the root) whose listing is incomplete because
// children were filtered out or could not be read.
func NewSnapshot(entries []Entry, partial ...string) *Snapshot {
	s := &Snapshot{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
		partial: make(map[string]bool, len(partial)),
	}
	copy(s.entries, entries)
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].Path < s.entries[j].Path })
	for i, e := range s.entries {
		s.index[e.Path] = i
	}
	for _, p := range partial {
		s.partial[p] = true
	}
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Get looks up an entry by path.
func (s *Snapshot) Get(p string) (Entry, bool) {
	i, ok := s.index[p]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Entries returns all entries in path order. The slice must not be
// modified.
func (s *Snapshot) Entries() []Entry { return s.entries }

// Files returns the file entries in path order.
func (s *Snapshot) Files() []Entry { return s.filter(File) }

// Dirs returns the directory entries in path order.
func (s *Snapshot) Dirs() []Entry { return s.filter(Dir) }

func (s *Snapshot) filter(k Kind) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Partial reports whether the directory's listing in this snapshot is
// incomplete, meaning it holds entries the snapshot does not show.
func (s *Snapshot) Partial(dir string) bool { return s.partial[dir] }

// Unreadable reports whether p, or a directory above it, was skipped
// with a warning, so its state in this tree is unknown.
func (s *Snapshot) Unreadable(p string) bool {
	for _, w := range s.Warnings {
		if p == w.Path || strings.HasPrefix(p, w.Path+"/") {
			return true
		}
	}
	return false
}

// Children returns the entries directly inside dir ("" for the root).
func (s *Snapshot) Children(dir string) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if Parent(e.Path) == dir {
			out = append(out, e)
		}
	}
	return out
}

// Parent returns the parent directory of a relative path, "" for
// top-level entries.
func Parent(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}

// Depth returns the number of path components in p.
func Depth(p string) int {
	if p == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			n++
		}
	}
	return n
}
