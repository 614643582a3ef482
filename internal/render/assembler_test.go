package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
)

func clipsFor(ws *Workspace, durations []float64, narrated []bool) []*SegmentClip {
	clips := make([]*SegmentClip, len(durations))
	for i, d := range durations {
		clips[i] = &SegmentClip{Index: i, VideoPath: ws.SegmentPath(i, "clip", "mp4"), Duration: d}
		if narrated[i] {
			clips[i].AudioPath = ws.SegmentPath(i, "audio", "wav")
		}
	}
	return clips
}

func TestAssembleNarrationAtSegmentOffsets(t *testing.T) {
	enc := newFakeEncoder()
	renderDir := t.TempDir()
	a := NewAssembler(enc, t.TempDir(), renderDir, logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	id := uuid.New()
	clips := clipsFor(ws, []float64{2, 4, 3, 2}, []bool{true, false, true, false})

	art, err := a.Assemble(context.Background(), clips, AssembleOptions{VideoID: id, Format: "mp4", Workspace: ws})
	require.NoError(t, err)

	assert.Equal(t, 11.0, art.Duration)
	assert.Len(t, art.Spans, 4)
	assert.Equal(t, 9.0, art.NarrationLength, "track ends with the last narrated segment")
	assert.Nil(t, art.Music)

	require.Len(t, enc.concats, 1)
	assert.Len(t, enc.concats[0], 4)

	require.Len(t, enc.narration, 1)
	assert.Equal(t, []NarrationPart{
		{Path: clips[0].AudioPath, Offset: 0, Duration: 2},
		{Offset: 2, Duration: 4},
		{Path: clips[2].AudioPath, Offset: 6, Duration: 3},
	}, enc.narration[0])

	require.Len(t, enc.muxes, 1)
	assert.Equal(t, FPS, enc.muxes[0].FPS)
	assert.Equal(t, ws.Path("narration.wav"), enc.muxes[0].AudioPath)

	assert.Equal(t, filepath.Join(renderDir, "video_"+id.String()+".mp4"), art.Path)
	assert.FileExists(t, art.Path)
	assert.NoFileExists(t, enc.muxes[0].OutPath, "temp output is renamed")
}

func TestAssembleSilentTimeline(t *testing.T) {
	enc := newFakeEncoder()
	assets := t.TempDir()
	writeAsset(t, assets, "audio", "calm.mp3")
	a := NewAssembler(enc, assets, t.TempDir(), logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	art, err := a.Assemble(context.Background(), clipsFor(ws, []float64{3, 3}, []bool{false, false}),
		AssembleOptions{VideoID: uuid.New(), Format: "webm", MusicTrack: "calm", MusicVolume: 0.3, Workspace: ws})
	require.NoError(t, err)

	assert.Equal(t, 6.0, art.Duration)
	assert.Zero(t, art.NarrationLength)
	assert.Empty(t, enc.narration)
	assert.Empty(t, enc.mixes, "music is only laid under narration")
	assert.Empty(t, enc.muxes[0].AudioPath)
}

func TestAssembleMusicLoop(t *testing.T) {
	enc := newFakeEncoder()
	assets := t.TempDir()
	music := writeAsset(t, assets, "audio", "upbeat.mp3")
	enc.durations[music] = 4

	a := NewAssembler(enc, assets, t.TempDir(), logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	art, err := a.Assemble(context.Background(), clipsFor(ws, []float64{2, 4, 3}, []bool{true, true, true}),
		AssembleOptions{VideoID: uuid.New(), Format: "mp4", MusicTrack: "upbeat", MusicVolume: 0.3, Workspace: ws})
	require.NoError(t, err)

	require.NotNil(t, art.Music)
	assert.Equal(t, 3, art.Music.Repeats)
	assert.Equal(t, 12.0, art.Music.LoopedLength)
	assert.Equal(t, 9.0, art.Music.FinalLength)

	require.Len(t, enc.mixes, 1)
	assert.Equal(t, 0.3, enc.mixes[0].Volume)
	assert.Equal(t, music, enc.mixes[0].MusicPath)
	assert.Equal(t, enc.mixes[0].OutPath, enc.muxes[0].AudioPath)
}

func TestAssembleMissingMusicSkipped(t *testing.T) {
	enc := newFakeEncoder()
	a := NewAssembler(enc, t.TempDir(), t.TempDir(), logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	art, err := a.Assemble(context.Background(), clipsFor(ws, []float64{3}, []bool{true}),
		AssembleOptions{VideoID: uuid.New(), Format: "mp4", MusicTrack: "nope", MusicVolume: 0.5, Workspace: ws})
	require.NoError(t, err)
	assert.Nil(t, art.Music)
	assert.Empty(t, enc.mixes)
	assert.Equal(t, ws.Path("narration.wav"), enc.muxes[0].AudioPath)
}

func TestAssembleFailedEncodeLeavesNoOutput(t *testing.T) {
	enc := newFakeEncoder()
	enc.failMux = true
	renderDir := t.TempDir()
	a := NewAssembler(enc, t.TempDir(), renderDir, logging.Discard())
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	require.NoError(t, err)

	id := uuid.New()
	_, err = a.Assemble(context.Background(), clipsFor(ws, []float64{3}, []bool{false}),
		AssembleOptions{VideoID: id, Format: "mp4", Workspace: ws})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindComposition))

	entries, err := os.ReadDir(renderDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembleNoClips(t *testing.T) {
	a := NewAssembler(newFakeEncoder(), t.TempDir(), t.TempDir(), logging.Discard())
	_, err := a.Assemble(context.Background(), nil, AssembleOptions{})
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))
}

func TestMusicPath(t *testing.T) {
	a := NewAssembler(nil, "/srv/assets", "", logging.Discard())
	assert.Equal(t, "/srv/assets/audio/lofi.mp3", a.MusicPath("lofi"))
	assert.Equal(t, "/srv/assets/audio/lofi.mp3", a.MusicPath("lofi.mp3"))
	assert.Equal(t, "/srv/assets/audio/passwd.mp3", a.MusicPath("../../etc/passwd"))
}
