package ui

import (
	"io"

	"github.com/bamsammich/ringcp/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer // progress and event lines
	Stats      *stats.Collector
	Src        string
	Dst        string
	Width      int // terminal columns, 0 for unknown
	PoolSize   int // slots in the engine's pool, 0 hides the slot indicator
	IsTTY      bool
	Color      bool // ANSI styling in the HUD
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:        cfg.Writer,
			stats:    cfg.Stats,
			verbose:  cfg.Verbose,
			progress: !cfg.NoProgress,
		}
	}
	return &hudPresenter{
		w:       cfg.Writer,
		stats:   cfg.Stats,
		verbose: cfg.Verbose,
		label:   cfg.Src + " → " + cfg.Dst,
		width:   cfg.Width,
		color:   cfg.Color,
		slots:   cfg.PoolSize,
	}
}
