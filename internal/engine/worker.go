package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/tree"
)

// apply performs one action and returns the number of bytes transferred.
func (ex *executor) apply(ctx context.Context, a plan.Action) (int64, error) {
	switch a.Kind {
	case plan.Copy, plan.Update:
		if a.IsDir() {
			if err := ex.cfg.Dst.MkdirAll(a.Path()); err != nil {
				return 0, fmt.Errorf("mkdir: %w", err)
			}
			return 0, nil
		}
		return ex.copyFile(ctx, a)
	case plan.Rename:
		return 0, ex.rename(a)
	case plan.Recycle:
		return 0, ex.recycle(a)
	case plan.Delete:
		return 0, ex.remove(a)
	default:
		return 0, fmt.Errorf("unexpected action kind %s", a.Kind)
	}
}

// rename moves an orphaned destination file to its new path. The target's
// parent may not exist yet when the rename runs ahead of directory
// creation.
func (ex *executor) rename(a plan.Action) error {
	if parent := tree.Parent(a.Path()); parent != "" {
		if err := ex.cfg.Dst.MkdirAll(parent); err != nil {
			return fmt.Errorf("rename: create parent: %w", err)
		}
	}
	if err := ex.cfg.Dst.Rename(a.From, a.Path()); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// copyFile streams the source file into a temporary file next to the
// destination, sets its modification time, and renames it into place, so
// the destination path never holds a partial file.
func (ex *executor) copyFile(ctx context.Context, a plan.Action) (int64, error) {
	src, err := ex.cfg.Src.OpenRead(a.Path())
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	tmp, err := ex.cfg.Dst.CreateTemp(a.Path())
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpRel := tmp.Name()
	ex.tmps.register(tmpRel)
	committed := false
	defer func() {
		if committed {
			ex.tmps.deregister(tmpRel)
			return
		}
		// Left registered on failure so cleanup retries.
		if err := ex.cfg.Dst.Remove(tmpRel); err == nil {
			ex.tmps.deregister(tmpRel)
		}
	}()

	var r io.Reader = &ctxReader{ctx: ctx, r: src}
	if ex.limiter != nil {
		r = newRateLimitedReader(ctx, r, ex.limiter)
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return n, fmt.Errorf("copy data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close temp: %w", err)
	}
	if err := ex.cfg.Dst.Chtimes(tmpRel, a.Entry.ModTime); err != nil {
		return n, fmt.Errorf("set mtime: %w", err)
	}
	if err := ex.cfg.Dst.Rename(tmpRel, a.Path()); err != nil {
		return n, fmt.Errorf("rename into place: %w", err)
	}
	committed = true

	if n != int64(a.Entry.Size) { //nolint:gosec // G115: file sizes fit in int64
		slog.Debug("source size changed during copy",
			"path", a.Path(), "planned", a.Entry.Size, "copied", n)
	}
	return n, nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
