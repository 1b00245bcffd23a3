// Package plan turns a pair of tree snapshots into an ordered list of
// actions that make the destination match the source.
package plan

import (
	"fmt"

	"github.com/bamsammich/treesync/internal/tree"
)

// Kind is the type of a planned action.
type Kind int

const (
	// Copy creates a file or directory that is missing from the destination.
	Copy Kind = iota
	// Update replaces a destination file with the source's content.
	Update
	// Rename moves an orphaned destination file to a new path instead of
	// copying identical content again.
	Rename
	// Recycle moves a destination-only entry into the recycle directory.
	Recycle
	// Delete removes a destination-only entry.
	Delete
	// Skip leaves a destination file alone.
	Skip
)

var kindNames = [...]string{
	Copy:    "copy",
	Update:  "update",
	Rename:  "rename",
	Recycle: "recycle",
	Delete:  "delete",
	Skip:    "skip",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Symbol is a one-character marker for the action kind, used in listings.
func (k Kind) Symbol() string {
	switch k {
	case Copy:
		return "+"
	case Update:
		return "*"
	case Rename:
		return ">"
	case Recycle:
		return "~"
	case Delete:
		return "-"
	default:
		return " "
	}
}

// Kinds lists every action kind in declaration order.
func Kinds() []Kind {
	return []Kind{Copy, Update, Rename, Recycle, Delete, Skip}
}

// Action is one step of a plan. It carries everything needed to perform
// it without consulting the snapshots again.
//
// Copy, Update, and Skip carry the source entry. Rename carries the source
// entry the file is moved to and, in From, the destination path it moves
// from. Recycle and Delete carry the destination entry being removed.
// Replaces is the size of the destination file an Update overwrites.
type Action struct {
	Entry    tree.Entry
	From     string
	Reason   string
	Replaces uint64
	Kind     Kind
}

// Path returns the destination path the action creates, replaces, or
// removes.
func (a Action) Path() string { return a.Entry.Path }

// IsDir reports whether the action is about a directory.
func (a Action) IsDir() bool { return a.Entry.IsDir() }

// Bytes is the number of bytes the action transfers: the file size for
// Copy and Update, zero otherwise.
func (a Action) Bytes() uint64 {
	if (a.Kind == Copy || a.Kind == Update) && !a.IsDir() {
		return a.Entry.Size
	}
	return 0
}

// ByteDiff is the change in destination size the action causes.
func (a Action) ByteDiff() int64 {
	switch a.Kind {
	case Copy:
		return int64(a.Bytes()) //nolint:gosec // G115: file sizes fit in int64
	case Update:
		return int64(a.Entry.Size) - int64(a.Replaces) //nolint:gosec // G115: file sizes fit in int64
	case Recycle, Delete:
		return -int64(a.Entry.Size) //nolint:gosec // G115: file sizes fit in int64
	default:
		return 0
	}
}

func (a Action) String() string {
	switch {
	case a.Kind == Rename:
		return fmt.Sprintf("%s %s -> %s", a.Kind.Symbol(), a.From, a.Entry)
	case a.Reason != "":
		return fmt.Sprintf("%s %s (%s)", a.Kind.Symbol(), a.Entry, a.Reason)
	default:
		return fmt.Sprintf("%s %s", a.Kind.Symbol(), a.Entry)
	}
}

// Plan is an ordered list of actions.
//
// Order guarantees: removals that clear a path for a directory come
// first, then directory creations (parents before children), renames,
// file removals, directory removals (children before parents), and last
// file copies, updates, and skips in path order.
type Plan struct {
	Actions []Action
}

// Changes returns the actions that modify the destination, in order.
func (p Plan) Changes() []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Kind != Skip {
			out = append(out, a)
		}
	}
	return out
}

// Counts returns the number of actions of each kind.
func (p Plan) Counts() map[Kind]int {
	out := make(map[Kind]int, len(kindNames))
	for _, a := range p.Actions {
		out[a.Kind]++
	}
	return out
}

// ByteDiff returns the net change in destination size the plan causes.
func (p Plan) ByteDiff() int64 {
	var n int64
	for _, a := range p.Actions {
		n += a.ByteDiff()
	}
	return n
}

// Bytes returns the total number of bytes the plan transfers.
func (p Plan) Bytes() uint64 {
	var n uint64
	for _, a := range p.Actions {
		n += a.Bytes()
	}
	return n
}
