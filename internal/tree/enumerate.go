package tree

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path"

	"github.com/bamsammich/treesync/internal/filter"
	"github.com/bamsammich/treesync/internal/transport"
)

var (
	// ErrSymlink marks a symlink skipped during enumeration.
	ErrSymlink = errors.New("symbolic link skipped")
	// ErrSpecial marks a device, socket, or pipe skipped during enumeration.
	ErrSpecial = errors.New("special file skipped")
)

// Enumerate walks ep depth-first from its root and returns a snapshot of
// the entries rules include. Excluded and unmatched directories are not
// descended into. Symlinks, special files, and unreadable directories
// become warnings; only an unreadable root is an error, returned as a
// *transport.Error. A root that does not exist yields an empty snapshot.
func Enumerate(ctx context.Context, ep transport.ReadEndpoint, rules *filter.Rules) (*Snapshot, error) {
	w := &walker{
		ep:      ep,
		rules:   rules,
		partial: make(map[string]bool),
	}

	children, err := ep.ReadDir("")
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("tree root does not exist", "root", ep.Root())
		return NewSnapshot(nil), nil
	case err != nil:
		return nil, &transport.Error{Op: "enumerate", Location: ep.Root(), Err: err}
	}

	if err := w.visit(ctx, "", children); err != nil {
		return nil, err
	}

	snap := NewSnapshot(w.entries)
	snap.partial = w.partial
	snap.Warnings = w.warnings
	return snap, nil
}

type walker struct {
	ep       transport.ReadEndpoint
	rules    *filter.Rules
	entries  []Entry
	partial  map[string]bool
	warnings []Warning
}

func (w *walker) warn(p string, err error) {
	slog.Warn("skipping entry", "root", w.ep.Root(), "path", p, "error", err)
	w.warnings = append(w.warnings, Warning{Path: p, Err: err})
	w.partial[Parent(p)] = true
}

func (w *walker) visit(ctx context.Context, dir string, children []transport.FileEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, child := range children {
		p := child.RelPath
		switch {
		case child.IsSymlink:
			w.warn(p, ErrSymlink)

		case child.IsDir:
			if w.rules.Match(p, true) != filter.Include {
				w.partial[dir] = true
				continue
			}
			w.entries = append(w.entries, Entry{Path: p, Kind: Dir, ModTime: child.ModTime})

			grand, err := w.ep.ReadDir(p)
			if err != nil {
				w.warn(p, err)
				// The directory itself is known; only its contents are not.
				w.partial[p] = true
				continue
			}
			if err := w.visit(ctx, p, grand); err != nil {
				return err
			}

		case !child.IsRegular():
			w.warn(p, ErrSpecial)

		case transport.IsTempName(path.Base(p)):
			slog.Debug("ignoring leftover temp file", "root", w.ep.Root(), "path", p)
			w.partial[dir] = true

		default:
			if w.rules.Match(p, false) != filter.Include {
				w.partial[dir] = true
				continue
			}
			w.entries = append(w.entries, Entry{
				Path:    p,
				Kind:    File,
				Size:    uint64(max(child.Size, 0)), //nolint:gosec // G115: clamped to non-negative
				ModTime: child.ModTime,
			})
		}
	}
	return nil
}
