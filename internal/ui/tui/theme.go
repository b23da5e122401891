package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/ringcp/internal/config"
)

// Catppuccin Mocha palette. Mutable so [theme] in the config file can
// override it.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorTeal   = lipgloss.Color("#94e2d5")
	ColorMauve  = lipgloss.Color("#cba6f7")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorDim    = lipgloss.Color("#3a4055")
	ColorBright = lipgloss.Color("#cdd6f4")
)

// Rebuilt by rebuildStyles after color changes.
var (
	styleHeader         lipgloss.Style
	styleHeaderLabel    lipgloss.Style
	styleDivider        lipgloss.Style
	styleIconDone       lipgloss.Style
	styleIconFailed     lipgloss.Style
	styleIconShort      lipgloss.Style
	styleOffset         lipgloss.Style
	styleSize           lipgloss.Style
	styleSpeed          lipgloss.Style
	styleInFlight       lipgloss.Style
	styleError          lipgloss.Style
	styleKeybindKey     lipgloss.Style
	styleKeybindLabel   lipgloss.Style
	styleBigNumber      lipgloss.Style
	styleSparkline      lipgloss.Style
	styleSlotBusy       lipgloss.Style
	styleSlotIdle       lipgloss.Style
	styleProgressFilled lipgloss.Style
	styleStatus         lipgloss.Style
	styleSavePrompt     lipgloss.Style
	styleSaveInput      lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	styleHeaderLabel = lipgloss.NewStyle().Bold(true).Foreground(ColorMauve)
	styleDivider = lipgloss.NewStyle().Foreground(ColorDim)
	styleIconDone = lipgloss.NewStyle().Foreground(ColorGreen)
	styleIconFailed = lipgloss.NewStyle().Foreground(ColorRed)
	styleIconShort = lipgloss.NewStyle().Foreground(ColorYellow)
	styleOffset = lipgloss.NewStyle().Foreground(ColorBright)
	styleSize = lipgloss.NewStyle().Foreground(ColorMuted)
	styleSpeed = lipgloss.NewStyle().Foreground(ColorTeal)
	styleInFlight = lipgloss.NewStyle().Foreground(ColorBlue)
	styleError = lipgloss.NewStyle().Foreground(ColorRed)
	styleKeybindKey = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
	styleKeybindLabel = lipgloss.NewStyle().Foreground(ColorMuted)
	styleBigNumber = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	styleSparkline = lipgloss.NewStyle().Foreground(ColorBlue)
	styleSlotBusy = lipgloss.NewStyle().Foreground(ColorBlue)
	styleSlotIdle = lipgloss.NewStyle().Foreground(ColorDim)
	styleProgressFilled = lipgloss.NewStyle().Foreground(ColorGreen)
	styleStatus = lipgloss.NewStyle().Foreground(ColorYellow).Italic(true)
	styleSavePrompt = lipgloss.NewStyle().Foreground(ColorMuted)
	styleSaveInput = lipgloss.NewStyle().Foreground(ColorBright)
}

// ApplyTheme overrides colors set in tc and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	set := func(dst *lipgloss.Color, v *string) {
		if v != nil {
			*dst = lipgloss.Color(*v)
		}
	}
	set(&ColorGreen, tc.Green)
	set(&ColorBlue, tc.Blue)
	set(&ColorYellow, tc.Yellow)
	set(&ColorRed, tc.Red)
	set(&ColorTeal, tc.Teal)
	set(&ColorMauve, tc.Mauve)
	set(&ColorMuted, tc.Muted)
	set(&ColorDim, tc.Dim)
	set(&ColorBright, tc.Bright)
	rebuildStyles()
}
