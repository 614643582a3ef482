package render

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
)

func newInput(t *testing.T, ws *Workspace, index int, seg models.Segment, visual VisualSource, narration *Narration) SegmentInput {
	t.Helper()
	return SegmentInput{
		VideoID:         uuid.New(),
		Prepared:        PreparedSegment{Index: index, Segment: seg, Visual: visual, Narration: narration},
		Width:           720,
		Height:          1280,
		Style:           models.EditingStyleZoom,
		CaptionsEnabled: true,
		Workspace:       ws,
	}
}

func TestComposeClampsDuration(t *testing.T) {
	enc := newFakeEncoder()
	c := NewComposer(enc, &fakeCaptions{}, true, logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	color := VisualSource{Kind: models.MediaTypeColor, Background: "#000000"}
	hints := []float64{1, 5, 3, 0}
	want := []float64{2, 4, 3, 3}

	for i, hint := range hints {
		clip, err := c.Compose(context.Background(), newInput(t, ws, i, models.Segment{DurationHint: hint, CaptionsEnabled: true}, color, nil))
		require.NoError(t, err)
		assert.Equal(t, want[i], clip.Duration)
		assert.Empty(t, clip.AudioPath)
		assert.Equal(t, want[i], enc.segments[i].Duration)
		assert.Equal(t, FPS, enc.segments[i].FPS)
	}
}

func TestComposeCaptions(t *testing.T) {
	enc := newFakeEncoder()
	captions := &fakeCaptions{}
	c := NewComposer(enc, captions, true, logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	color := VisualSource{Kind: models.MediaTypeColor}
	ctx := context.Background()

	clip, err := c.Compose(ctx, newInput(t, ws, 0, models.Segment{Text: " Big idea ", CaptionsEnabled: true}, color, nil))
	require.NoError(t, err)
	assert.True(t, clip.Captioned)
	require.Len(t, captions.specs, 1)
	assert.Equal(t, "Big idea", captions.specs[0].Text)
	assert.Equal(t, 36, captions.specs[0].FontSize())
	assert.Equal(t, 36, captions.specs[0].SideMargin())
	assert.Equal(t, ws.SegmentPath(0, "caption", "ass"), enc.segments[0].CaptionPath)

	// Blank text, segment flag off, job flag off: no captions.
	clip, err = c.Compose(ctx, newInput(t, ws, 1, models.Segment{Text: "  ", CaptionsEnabled: true}, color, nil))
	require.NoError(t, err)
	assert.False(t, clip.Captioned)

	clip, err = c.Compose(ctx, newInput(t, ws, 2, models.Segment{Text: "hi", CaptionsEnabled: false}, color, nil))
	require.NoError(t, err)
	assert.False(t, clip.Captioned)

	in := newInput(t, ws, 3, models.Segment{Text: "hi", CaptionsEnabled: true}, color, nil)
	in.CaptionsEnabled = false
	clip, err = c.Compose(ctx, in)
	require.NoError(t, err)
	assert.False(t, clip.Captioned)

	assert.Len(t, captions.specs, 1)
	assert.Empty(t, enc.segments[3].CaptionPath)
}

func TestComposeFitsNarration(t *testing.T) {
	enc := newFakeEncoder()
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)
	color := VisualSource{Kind: models.MediaTypeColor}
	narr := &Narration{Path: ws.Path("n.mp3"), Duration: 6}

	c := NewComposer(enc, nil, true, logging.Discard())
	clip, err := c.Compose(context.Background(), newInput(t, ws, 0, models.Segment{Text: "long narration", DurationHint: 4}, color, narr))
	require.NoError(t, err)
	assert.Equal(t, ws.SegmentPath(0, "audio", "wav"), clip.AudioPath)
	require.Len(t, enc.fits, 1)
	assert.Equal(t, 4.0, enc.fits[0].Duration)
	assert.Equal(t, 1.0, enc.fits[0].Tempo, "truncation never speeds up")

	c = NewComposer(enc, nil, false, logging.Discard())
	_, err = c.Compose(context.Background(), newInput(t, ws, 1, models.Segment{Text: "long narration", DurationHint: 4}, color, narr))
	require.NoError(t, err)
	assert.Equal(t, 1.5, enc.fits[1].Tempo)
	assert.Equal(t, 4.0, enc.fits[1].Duration)
}

func TestComposeFitFailureIsSilent(t *testing.T) {
	enc := newFakeEncoder()
	enc.failFit = true
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	c := NewComposer(enc, nil, true, logging.Discard())
	clip, err := c.Compose(context.Background(), newInput(t, ws, 0, models.Segment{Text: "x"}, VisualSource{Kind: models.MediaTypeColor}, &Narration{Path: "n.mp3", Duration: 1}))
	require.NoError(t, err)
	assert.Empty(t, clip.AudioPath)
}

func TestComposeUndecodableAssetFallsBack(t *testing.T) {
	enc := newFakeEncoder()
	enc.failKinds["image"] = true
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	c := NewComposer(enc, nil, true, logging.Discard())
	img := VisualSource{Kind: models.MediaTypeImage, Path: "/assets/images/bad.jpg", Background: "#123456"}
	clip, err := c.Compose(context.Background(), newInput(t, ws, 0, models.Segment{}, img, nil))
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeColor, clip.Visual)
	require.Len(t, enc.segments, 2)
	assert.Equal(t, VisualSource{Kind: models.MediaTypeColor, Background: "#123456"}, enc.segments[1].Source)
}

func TestComposeColorFailureIsFatal(t *testing.T) {
	enc := newFakeEncoder()
	enc.failKinds["color"] = true
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	c := NewComposer(enc, nil, true, logging.Discard())
	_, err = c.Compose(context.Background(), newInput(t, ws, 0, models.Segment{}, VisualSource{Kind: models.MediaTypeColor}, nil))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindComposition))
}
