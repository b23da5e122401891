package tui

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/stats"
)

func newTestModel() (Model, *stats.Collector) {
	ch := make(chan event.Event, 10)
	c := stats.NewCollector()
	c.SetTotal(1024 * 1024 * 1024)
	return NewModel(ch, c, 8, "/src/a.img", "/dst/a.img"), c
}

func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(Model)
	require.True(t, ok)
	return model
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Init(t *testing.T) {
	m, _ := newTestModel()
	assert.NotNil(t, m.Init())
}

func TestModel_KeyQ_Quits(t *testing.T) {
	m, _ := newTestModel()
	updated, cmd := m.Update(runes("q"))
	model, ok := updated.(Model)
	require.True(t, ok)
	assert.True(t, model.quitting)
	assert.NotNil(t, cmd) // tea.Quit
}

func TestModel_KeyR_SwitchesToRate(t *testing.T) {
	m, _ := newTestModel()
	assert.Equal(t, viewRate, press(t, m, runes("r")).mode)
}

func TestModel_KeyF_SwitchesToFeed(t *testing.T) {
	m, _ := newTestModel()
	m.mode = viewRate
	assert.Equal(t, viewFeed, press(t, m, runes("f")).mode)
}

func TestModel_WindowResize(t *testing.T) {
	m, _ := newTestModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model, ok := updated.(Model)
	require.True(t, ok)
	assert.Equal(t, 120, model.width)
	assert.Equal(t, 40, model.height)
}

func TestModel_EngineEvent(t *testing.T) {
	m, _ := newTestModel()
	updated, cmd := m.Update(engineEventMsg(event.Event{
		Type:   event.BatchRead,
		Offset: 0,
		Size:   32 * 1024,
		Slots:  4,
	}))
	model, ok := updated.(Model)
	require.True(t, ok)

	require.Len(t, model.feed.inFlight, 1)
	assert.Equal(t, 4, model.rate.busySlots)
	assert.NotNil(t, cmd) // next readNextEvent
}

func TestModel_CopyFailedMarksFailed(t *testing.T) {
	m, _ := newTestModel()
	updated, _ := m.Update(engineEventMsg(event.Event{
		Type:  event.CopyFailed,
		Total: 4096,
		Error: errors.New("premature end of input"),
	}))
	model, ok := updated.(Model)
	require.True(t, ok)
	updated, _ = model.Update(channelDoneMsg{})
	model, ok = updated.(Model)
	require.True(t, ok)

	assert.True(t, model.failed)
	assert.Contains(t, model.renderHeader(), "failed")
}

func TestModel_ChannelDone_StaysOpen(t *testing.T) {
	m, _ := newTestModel()
	updated, cmd := m.Update(channelDoneMsg{})
	model, ok := updated.(Model)
	require.True(t, ok)
	assert.True(t, model.done)
	assert.False(t, model.quitting)
	assert.NotNil(t, cmd) // tickCmd keeps the view alive
	assert.Contains(t, model.renderHeader(), "done")
}

func TestModel_Tick(t *testing.T) {
	m, c := newTestModel()
	c.AddBytesWritten(1024 * 1024)
	c.AddWrites(3)

	updated, cmd := m.Update(tickMsg(time.Now()))
	model, ok := updated.(Model)
	require.True(t, ok)
	assert.Equal(t, int64(1024*1024), model.lastSnap.BytesWritten)
	assert.Equal(t, int64(3), model.lastSnap.Writes)
	assert.NotNil(t, cmd)
}

func TestModel_ViewFeed(t *testing.T) {
	m, _ := newTestModel()
	m.width = 80
	m.height = 30
	out := m.View()
	assert.Contains(t, out, "ringcp")
	assert.Contains(t, out, "quit")
}

func TestModel_ViewRate(t *testing.T) {
	m, _ := newTestModel()
	m.mode = viewRate
	m.width = 80
	m.height = 30
	m.stats.Tick()
	m.lastSnap = m.stats.Snapshot()

	out := m.View()
	assert.Contains(t, out, "ringcp")
	assert.Contains(t, out, "slots")
	assert.Contains(t, out, "short writes")
}

func TestModel_ViewQuitting(t *testing.T) {
	m, _ := newTestModel()
	m.quitting = true
	assert.Empty(t, m.View())
}

func TestModel_ScrollKeys(t *testing.T) {
	m, _ := newTestModel()
	for i := range 10 {
		m.feed.handleEvent(event.Event{
			Type:   event.BatchWritten,
			Offset: int64(i) * 8192,
			Size:   8192,
			Slots:  1,
		})
	}

	model := press(t, m, runes("j"))
	assert.False(t, model.feed.autoScroll)

	model = press(t, model, runes("G"))
	assert.True(t, model.feed.autoScroll)

	model = press(t, model, runes("g"))
	assert.Equal(t, 0, model.feed.scrollOffset)
	assert.False(t, model.feed.autoScroll)
}

func TestModel_SaveModal_ActivatesOnlyWhenDone(t *testing.T) {
	m, _ := newTestModel()

	model := press(t, m, runes("s"))
	assert.False(t, model.save.active)

	model.done = true
	model = press(t, model, runes("s"))
	assert.True(t, model.save.active)
	assert.Contains(t, model.save.input, "ringcp-")
	assert.Contains(t, model.save.input, ".log")
}

func TestModel_SaveModal_EscCancels(t *testing.T) {
	m, _ := newTestModel()
	m.done = true
	m.save.active = true
	m.save.input = "test.log"

	model := press(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.False(t, model.save.active)
}

func TestModel_SaveModal_TextInput(t *testing.T) {
	m, _ := newTestModel()
	m.save.active = true

	model := press(t, m, runes("a"))
	model = press(t, model, runes("b"))
	model = press(t, model, runes("é"))
	assert.Equal(t, "abé", model.save.input)
	assert.Equal(t, len("abé"), model.save.cursor)

	model = press(t, model, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "ab", model.save.input)

	model = press(t, model, tea.KeyMsg{Type: tea.KeyLeft})
	model = press(t, model, tea.KeyMsg{Type: tea.KeyDelete})
	assert.Equal(t, "a", model.save.input)
	assert.Equal(t, 1, model.save.cursor)
}

func TestModel_SaveModal_WritesFile(t *testing.T) {
	m, c := newTestModel()
	c.AddBytesWritten(16384)
	c.AddShortWrites(1)
	m.done = true
	m.lastSnap = m.stats.Snapshot()

	m.feed.handleEvent(event.Event{Type: event.ShortWrite, Offset: 8192, Size: 100, Slot: 3})
	m.feed.handleEvent(event.Event{Type: event.BatchWritten, Offset: 0, Size: 16384, Slots: 2})

	path := filepath.Join(t.TempDir(), "report.log")
	msg := m.writeReport(path)()
	result, ok := msg.(saveResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "ringcp copy report")
	assert.Contains(t, string(content), "/src/a.img")
	assert.Contains(t, string(content), "/dst/a.img")
	assert.Contains(t, string(content), "short write slot 3")
	assert.Contains(t, string(content), "2 slots")
	assert.Contains(t, string(content), "status:       ok")
}

func TestModel_FooterChangesWhenDone(t *testing.T) {
	m, _ := newTestModel()
	assert.NotContains(t, m.renderFooter(), "save")

	m.done = true
	footer := m.renderFooter()
	assert.Contains(t, footer, "save")
	assert.Contains(t, footer, "scroll")
}

func TestModel_ReadsEventsUntilClosed(t *testing.T) {
	ch := make(chan event.Event, 2)
	c := stats.NewCollector()
	m := NewModel(ch, c, 4, "a", "b")

	ch <- event.Event{Type: event.CopyStarted, Size: 10}
	close(ch)

	msg := readNextEvent(m.events)()
	ev, ok := msg.(engineEventMsg)
	require.True(t, ok)
	assert.Equal(t, event.CopyStarted, ev.Type)

	_, ok = readNextEvent(m.events)().(channelDoneMsg)
	assert.True(t, ok)
}
