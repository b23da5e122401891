package tui

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/stats"
	"github.com/bamsammich/ringcp/internal/ui"
)

type viewMode int

const (
	viewFeed viewMode = iota
	viewRate
)

// Bubble Tea messages.
type engineEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time
type saveResultMsg struct{ err error }

// readNextEvent blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return engineEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// saveModal is the text input overlay for saving a report.
type saveModal struct {
	active bool
	input  string
	cursor int
}

func (s *saveModal) insertRune(r rune) {
	s.input = s.input[:s.cursor] + string(r) + s.input[s.cursor:]
	s.cursor += len(string(r))
}

// cursor is a byte offset kept on rune boundaries.
func (s *saveModal) backspace() {
	if s.cursor > 0 {
		_, n := utf8.DecodeLastRuneInString(s.input[:s.cursor])
		s.input = s.input[:s.cursor-n] + s.input[s.cursor:]
		s.cursor -= n
	}
}

func (s *saveModal) deleteChar() {
	if s.cursor < len(s.input) {
		_, n := utf8.DecodeRuneInString(s.input[s.cursor:])
		s.input = s.input[:s.cursor] + s.input[s.cursor+n:]
	}
}

func (s *saveModal) moveLeft() {
	if s.cursor > 0 {
		_, n := utf8.DecodeLastRuneInString(s.input[:s.cursor])
		s.cursor -= n
	}
}

func (s *saveModal) moveRight() {
	if s.cursor < len(s.input) {
		_, n := utf8.DecodeRuneInString(s.input[s.cursor:])
		s.cursor += n
	}
}

func (s *saveModal) render() string {
	return "  " + styleSavePrompt.Render("Save to: ") +
		styleSaveInput.Render(s.input[:s.cursor]) +
		styleSaveInput.Render("█") +
		styleSaveInput.Render(s.input[s.cursor:])
}

// Model is the root Bubble Tea model.
type Model struct {
	events   <-chan event.Event
	stats    stats.ReadTicker
	poolSize int
	src      string
	dst      string

	mode      viewMode
	feed      feedView
	rate      rateView
	width     int
	height    int
	statusMsg string
	done      bool
	failed    bool
	quitting  bool

	lastSnap  stats.Snapshot
	lastSpeed float64
	lastETA   time.Duration

	save saveModal
}

// NewModel creates a model reading events until the channel closes.
func NewModel(events <-chan event.Event, collector stats.ReadTicker, poolSize int, src, dst string) Model {
	return Model{
		events:   events,
		stats:    collector,
		poolSize: poolSize,
		src:      src,
		dst:      dst,
		feed:     newFeedView(),
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		ev := event.Event(msg)
		m.feed.handleEvent(ev)
		m.rate.handleEvent(ev, m.poolSize)
		if ev.Type == event.CopyFailed {
			m.failed = true
		}
		return m, readNextEvent(m.events)

	case channelDoneMsg:
		// Stay open so the final state can be read and saved.
		m.done = true
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = 0
		return m, tickCmd()

	case tickMsg:
		if !m.done {
			m.stats.Tick()
			m.lastSnap = m.stats.Snapshot()
			m.lastSpeed = m.stats.RollingSpeed(10)
			m.lastETA = m.stats.ETA()
		}
		return m, tickCmd()

	case saveResultMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("saved to %s", m.save.input)
		}
		m.save.active = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.save.active {
		return m.handleSaveKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.mode = viewRate
		m.statusMsg = ""

	case "f", "e":
		m.mode = viewFeed
		m.statusMsg = ""

	case "j", "down":
		if m.mode == viewFeed {
			m.feed.scrollDown()
		}

	case "k", "up":
		if m.mode == viewFeed {
			m.feed.scrollUp()
		}

	case "G":
		if m.mode == viewFeed {
			m.feed.scrollToBottom()
		}

	case "g":
		if m.mode == viewFeed {
			m.feed.scrollToTop()
		}

	case "s":
		if m.done {
			m.save.active = true
			m.save.input = fmt.Sprintf("ringcp-%s.log", time.Now().Format("2006-01-02-150405"))
			m.save.cursor = len(m.save.input)
			m.statusMsg = ""
		}
	}

	return m, nil
}

func (m Model) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.save.active = false
		m.statusMsg = ""
	case tea.KeyEnter:
		return m, m.writeReport(m.save.input)
	case tea.KeyBackspace:
		m.save.backspace()
	case tea.KeyDelete:
		m.save.deleteChar()
	case tea.KeyLeft:
		m.save.moveLeft()
	case tea.KeyRight:
		m.save.moveRight()
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.save.insertRune(r)
		}
	}
	return m, nil
}

func (m Model) writeReport(path string) tea.Cmd {
	snap := m.lastSnap
	src, dst := m.src, m.dst
	failed := m.failed
	dropped := m.feed.dropped
	history := make([]logEntry, len(m.feed.history))
	copy(history, m.feed.history)

	return func() tea.Msg {
		var b strings.Builder

		b.WriteString("ringcp copy report\n")
		b.WriteString("==================\n")
		fmt.Fprintf(&b, "source:       %s\n", src)
		fmt.Fprintf(&b, "destination:  %s\n", dst)
		fmt.Fprintf(&b, "finished:     %s\n", time.Now().Format("2006-01-02 15:04:05"))
		status := "ok"
		if failed {
			status = "failed"
		}
		fmt.Fprintf(&b, "status:       %s\n", status)
		fmt.Fprintf(&b, "duration:     %s\n", ui.FormatDuration(snap.Elapsed))
		fmt.Fprintf(&b, "size:         %s / %s\n", ui.FormatBytes(snap.BytesWritten), ui.FormatBytes(snap.BytesTotal))
		fmt.Fprintf(&b, "avg speed:    %s\n", ui.FormatRate(snap.AverageSpeed()))
		fmt.Fprintf(&b, "reads:        %s (%s short)\n", ui.FormatCount(snap.Reads), ui.FormatCount(snap.ShortReads))
		fmt.Fprintf(&b, "writes:       %s (%s short)\n", ui.FormatCount(snap.Writes), ui.FormatCount(snap.ShortWrites))
		fmt.Fprintf(&b, "retries:      %s\n", ui.FormatCount(snap.Retries))
		b.WriteString("\n--- log ---\n")
		if dropped > 0 {
			fmt.Fprintf(&b, "(%d earlier entries not kept)\n", dropped)
		}
		for _, e := range history {
			b.WriteString(reportLine(e))
			b.WriteByte('\n')
		}

		err := os.WriteFile(path, []byte(b.String()), 0o644) //nolint:gosec // user-chosen path for report output
		return saveResultMsg{err: err}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	// header, status and footer take one line each
	contentHeight := max(m.height-3, 3)

	switch m.mode {
	case viewFeed:
		b.WriteString(m.feed.view(m.width, contentHeight))
	case viewRate:
		b.WriteString(m.rate.view(m.width, m.lastSnap, m.stats, m.poolSize))
	}

	switch {
	case m.save.active:
		b.WriteString(m.save.render())
	case m.statusMsg != "":
		b.WriteString(styleStatus.Render("  " + m.statusMsg))
	}
	b.WriteByte('\n')

	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.lastSnap
	label := styleHeaderLabel.Render("ringcp")

	if m.done {
		state := styleIconDone.Render("done")
		if m.failed {
			state = styleIconFailed.Render("failed")
		}
		return styleHeader.Render(fmt.Sprintf("  %s  %s  %s / %s  %s",
			label, state,
			ui.FormatBytes(snap.BytesWritten),
			ui.FormatBytes(snap.BytesTotal),
			ui.FormatDuration(snap.Elapsed)))
	}

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesWritten) / float64(snap.BytesTotal)
	}
	return styleHeader.Render(fmt.Sprintf("  %s  %3.0f%%  %s  %s / %s  eta %s  %d slots",
		label,
		pct*100,
		styleProgressFilled.Render(ui.ProgressBar(pct, 10)),
		ui.FormatBytes(snap.BytesWritten),
		ui.FormatBytes(snap.BytesTotal),
		ui.FormatETA(m.lastETA),
		m.poolSize))
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	binds := []keybind{
		{"q", "quit"},
		{"r", "rate"},
		{"f", "log"},
		{"j/k", "scroll"},
	}
	if m.done {
		binds = []keybind{
			{"s", "save"},
			{"j/k", "scroll"},
			{"r", "rate"},
			{"f", "log"},
			{"q", "quit"},
		}
	}

	parts := make([]string, 0, len(binds))
	for _, kb := range binds {
		parts = append(parts, styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}
	return "  " + strings.Join(parts, "   ")
}
