package syncer

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/treesync/internal/transport"
)

// AutoRecycle asks for a fresh timestamped recycle directory next to the
// destination root for each cycle.
const AutoRecycle = "auto"

// cycleStamp names the per-cycle recycle directory.
const cycleStamp = "20060102_150405"

var (
	// ErrRecycleDevice means a local recycle directory is on a different
	// filesystem than the destination, so entries cannot be moved there.
	ErrRecycleDevice = errors.New("recycle directory is on a different filesystem than the destination")
	// ErrRecycleInside means the recycle directory lies within the
	// destination tree.
	ErrRecycleInside = errors.New("recycle directory is inside the destination")
	// ErrNoRecycleDir means recycling was requested without a directory.
	ErrNoRecycleDir = errors.New("no recycle directory given")
)

// recycleSpec is a recycle directory as given by the user. Relative paths
// are relative to the destination root's parent.
type recycleSpec struct {
	dir      string
	absolute bool
	local    bool
	auto     bool
}

func parseRecycle(dir string, dest transport.Location) (recycleSpec, error) {
	switch dir {
	case "":
		return recycleSpec{}, ErrNoRecycleDir
	case AutoRecycle:
		return recycleSpec{auto: true, local: !dest.IsRemote()}, nil
	}
	spec := recycleSpec{local: !dest.IsRemote()}
	if spec.local {
		spec.dir = filepath.ToSlash(filepath.Clean(dir))
		spec.absolute = filepath.IsAbs(dir)
	} else {
		spec.dir = path.Clean(dir)
		spec.absolute = path.IsAbs(dir)
	}
	return spec, nil
}

// at returns the directory a cycle started at now recycles into: a
// Trash_<stamp> sibling of the destination for AutoRecycle, otherwise a
// <stamp> subdirectory of the given one. Earlier cycles' entries are
// never mixed with this one's.
func (r recycleSpec) at(now time.Time) recycleSpec {
	stamp := now.Format(cycleStamp)
	if r.auto {
		r.dir = "Trash_" + stamp
		return r
	}
	r.dir = path.Join(r.dir, stamp)
	return r
}

type rooted interface{ Root() string }

// resolve returns the recycle directory relative to dst's root and checks
// that entries can be moved there.
func (r recycleSpec) resolve(dst rooted) (string, error) {
	rel, err := r.resolveRoot(dst)
	if err != nil || !r.local {
		return rel, err
	}
	target := path.Join(filepath.ToSlash(dst.Root()), rel)
	same, err := transport.SameDevice(dst.Root(), filepath.FromSlash(target))
	if err != nil {
		return "", fmt.Errorf("recycle directory %s: %w", target, err)
	}
	if !same {
		return "", fmt.Errorf("%s: %w", target, ErrRecycleDevice)
	}
	return rel, nil
}

// resolveRoot places the recycle directory relative to dst's root. It
// must lie outside the destination tree.
func (r recycleSpec) resolveRoot(dst rooted) (string, error) {
	root := filepath.ToSlash(dst.Root())
	target := r.dir
	if !r.absolute {
		target = path.Join(path.Dir(root), r.dir)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("recycle directory %s: %w", target, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, "../")) {
		return "", fmt.Errorf("%s: %w", target, ErrRecycleInside)
	}
	return rel, nil
}
