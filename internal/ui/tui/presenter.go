package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/ringcp/internal/config"
	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/stats"
	"github.com/bamsammich/ringcp/internal/ui"
)

// Config configures the full-screen presenter.
type Config struct {
	Stats    stats.ReadTicker
	PoolSize int
	Src      string
	Dst      string
	Theme    config.ThemeConfig
}

// Presenter runs the copy view on the alternate screen. It stays up after
// the event channel closes until the user quits.
type Presenter struct {
	cfg   Config
	model Model
}

var _ ui.Presenter = (*Presenter)(nil)

// NewPresenter applies the configured theme and returns a presenter.
func NewPresenter(cfg Config) *Presenter {
	ApplyTheme(cfg.Theme)
	return &Presenter{cfg: cfg}
}

// Run starts the Bubble Tea program and blocks until the user quits.
func (p *Presenter) Run(events <-chan event.Event) error {
	p.model = NewModel(events, p.cfg.Stats, p.cfg.PoolSize, p.cfg.Src, p.cfg.Dst)
	prog := tea.NewProgram(
		p.model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	final, err := prog.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		p.model = fm
	}
	return nil
}
