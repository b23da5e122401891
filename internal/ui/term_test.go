package ui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermHelpersOnRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTTY(f.Fd()))
	assert.Equal(t, 80, TermWidth(f.Fd()))
	assert.False(t, UseColor(f.Fd()))
}

func TestUseColorHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor(os.Stderr.Fd()))
}
