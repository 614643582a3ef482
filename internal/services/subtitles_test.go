package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelsmith/internal/render"
)

func TestWriteCaptions(t *testing.T) {
	out := filepath.Join(t.TempDir(), "caption_000.ass")
	spec := render.CaptionSpec{Text: "Hello {world}\nagain", Width: 720, Height: 1280, Duration: 3.5}

	require.NoError(t, ASSCaptionWriter{}.WriteCaptions(spec, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	ass := string(data)

	assert.Contains(t, ass, "PlayResX: 720\n")
	assert.Contains(t, ass, "PlayResY: 1280\n")
	// font size = width/20, side margins = 5% of width, bottom-center alignment
	assert.Contains(t, ass, "Style: Default,Noto Sans,36,")
	assert.True(t, strings.Contains(ass, ",2,36,36,106,1\n"), ass)
	assert.Contains(t, ass, "Dialogue: 0,0:00:00.00,0:00:03.50,Default,,0,0,0,,Hello \\{world\\}\\Nagain\n")
	assert.Equal(t, 1, strings.Count(ass, "Dialogue:"))
}

func TestWriteCaptionsRejectsBlank(t *testing.T) {
	out := filepath.Join(t.TempDir(), "c.ass")
	err := ASSCaptionWriter{}.WriteCaptions(render.CaptionSpec{Text: "  ", Width: 720, Height: 1280, Duration: 2}, out)
	assert.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFormatASSTime(t *testing.T) {
	assert.Equal(t, "0:00:00.00", formatASSTime(-1))
	assert.Equal(t, "0:00:04.00", formatASSTime(4))
	assert.Equal(t, "1:01:01.25", formatASSTime(3661.25))
}
