// Package tree builds filtered snapshots of directory trees and compares
// the entries in them.
package tree

import (
	"fmt"
	"time"
)

// Kind is the type of a snapshot entry.
type Kind int

const (
	File Kind = iota
	Dir
)

func (k Kind) String() string {
	if k == Dir {
		return "dir"
	}
	return "file"
}

// Entry is one file or directory in a snapshot. Path is slash-separated
// and relative to the tree root.
type Entry struct {
	ModTime time.Time
	Path    string
	Size    uint64
	Kind    Kind
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == Dir }

func (e Entry) String() string {
	if e.IsDir() {
		return e.Path + "/"
	}
	return e.Path
}

// Warning is a non-fatal problem met while enumerating: an entry that was
// skipped because it is a symlink or special file, or a directory that
// could not be read.
type Warning struct {
	Err  error
	Path string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }
