package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bamsammich/treesync/internal/transport"
)

// Watch runs a cycle immediately and then one more for every request,
// until ctx is canceled. Requests that arrive while a cycle runs stay
// pending on the channel; a cycle is never interrupted by one, and
// cancellation takes effect only between cycles. Endpoint failures are
// logged and retried on the next request.
func (s *Syncer) Watch(ctx context.Context, requests <-chan struct{}) error {
	cycleCtx := context.WithoutCancel(ctx)
	for {
		if err := s.watchCycle(cycleCtx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-requests:
			if !ok {
				return nil
			}
			// Prefer shutdown over a request that raced with it.
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

func (s *Syncer) watchCycle(ctx context.Context) error {
	res, err := s.RunOnce(ctx)
	var terr *transport.Error
	switch {
	case errors.As(err, &terr):
		slog.Error("sync cycle failed, waiting for next change", "error", err)
		return nil
	case err != nil:
		return err
	}
	if n := res.Failed(); n > 0 {
		slog.Warn("sync cycle finished with failures", "failed", n)
	}
	return nil
}
