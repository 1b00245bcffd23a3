package ui

import (
	"io"

	"github.com/bamsammich/treesync/internal/event"
	"github.com/bamsammich/treesync/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Stats     *stats.Collector
	// Color enables styled markers. Styles only take effect when Writer is
	// a terminal.
	Color   bool
	Quiet   bool
	Verbose bool
	DryRun  bool
	// Progress enables a periodic progress line on ErrWriter.
	Progress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{
			errW:   cfg.ErrWriter,
			stats:  cfg.Stats,
			dryRun: cfg.DryRun,
		}
	}
	return &plainPresenter{
		w:        cfg.Writer,
		errW:     cfg.ErrWriter,
		stats:    cfg.Stats,
		pal:      newPalette(cfg.Writer, cfg.Color),
		verbose:  cfg.Verbose,
		dryRun:   cfg.DryRun,
		progress: cfg.Progress,
	}
}
