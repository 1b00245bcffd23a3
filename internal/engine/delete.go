package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"

	"github.com/bamsammich/treesync/internal/plan"
)

// remove deletes a file or an already emptied directory. An entry that is
// already gone counts as removed.
func (ex *executor) remove(a plan.Action) error {
	if err := ex.cfg.Dst.Remove(a.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// recycle moves an entry to the same relative path under the recycle
// directory. Directories are recreated there and removed here, since
// their contents were moved by earlier actions. A file never replaces
// something already recycled.
func (ex *executor) recycle(a plan.Action) error {
	if ex.cfg.RecycleDir == "" {
		return errNoRecycleDir
	}
	target := path.Join(ex.cfg.RecycleDir, a.Path())

	if a.IsDir() {
		if err := ex.cfg.Dst.MkdirAll(target); err != nil {
			return fmt.Errorf("create recycle dir: %w", err)
		}
		return ex.remove(a)
	}

	if err := ex.cfg.Dst.MkdirAll(path.Dir(target)); err != nil {
		return fmt.Errorf("create recycle dir: %w", err)
	}
	target, err := ex.freeRecyclePath(target)
	if err != nil {
		return err
	}
	if err := ex.cfg.Dst.Rename(a.Path(), target); err != nil {
		return fmt.Errorf("move to recycle dir: %w", err)
	}
	return nil
}

// maxRecycleSuffix bounds the search for a free name in the recycle
// directory.
const maxRecycleSuffix = 1000

// freeRecyclePath returns target, or target with the first ".N" suffix
// that names nothing yet.
func (ex *executor) freeRecyclePath(target string) (string, error) {
	candidate := target
	for n := 1; n <= maxRecycleSuffix; n++ {
		_, err := ex.cfg.Dst.Stat(candidate)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return candidate, nil
		case err != nil:
			return "", fmt.Errorf("check recycle target: %w", err)
		}
		candidate = target + "." + strconv.Itoa(n)
	}
	return "", fmt.Errorf("recycle target %s: %w", target, errRecycleTaken)
}
