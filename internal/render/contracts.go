package render

import (
	"context"

	"github.com/bobarin/reelsmith/internal/models"
)

// Narrator synthesizes speech for a segment's text and writes it to outPath.
type Narrator interface {
	Narrate(ctx context.Context, text, voice, outPath string) (*Narration, error)
}

// Narration is a synthesized audio file and its natural length in seconds.
type Narration struct {
	Path     string
	Duration float64
}

// CaptionSpec describes the caption overlay of one segment clip.
type CaptionSpec struct {
	Text     string
	Width    int
	Height   int
	Duration float64
}

// FontSize is proportional to the frame width.
func (c CaptionSpec) FontSize() int {
	return c.Width / 20
}

// SideMargin keeps 5% of the frame width clear on each side.
func (c CaptionSpec) SideMargin() int {
	return c.Width * 5 / 100
}

// CaptionWriter writes a caption file the encoder can burn into a clip.
type CaptionWriter interface {
	WriteCaptions(spec CaptionSpec, outPath string) error
}

// SegmentVideoSpec is everything the encoder needs to produce one silent clip.
type SegmentVideoSpec struct {
	Source      VisualSource
	Width       int
	Height      int
	Duration    float64
	FPS         int
	Style       models.EditingStyle
	CaptionPath string // empty when the clip has no captions
	OutPath     string
}

// AudioFitSpec trims or pads a narration file to exactly Duration seconds.
// Tempo above 1 speeds the narration up before trimming.
type AudioFitSpec struct {
	InPath   string
	OutPath  string
	Duration float64
	Tempo    float64
}

// NarrationPart is one piece of the narration track. An empty Path is silence.
type NarrationPart struct {
	Path     string
	Offset   float64
	Duration float64
}

// MusicMixSpec mixes a looped music bed under the narration track.
type MusicMixSpec struct {
	NarrationPath string
	MusicPath     string
	Plan          MusicPlan
	Volume        float64
	OutPath       string
}

// MuxSpec binds the concatenated video to the final audio track.
type MuxSpec struct {
	VideoPath string
	AudioPath string // empty for a silent render
	Format    string
	FPS       int
	OutPath   string
}

// Encoder is the media composition backend.
type Encoder interface {
	RenderSegmentVideo(ctx context.Context, spec SegmentVideoSpec) error
	FitAudio(ctx context.Context, spec AudioFitSpec) error
	ConcatVideos(ctx context.Context, paths []string, outPath string) error
	BuildNarrationTrack(ctx context.Context, parts []NarrationPart, outPath string) error
	MixMusic(ctx context.Context, spec MusicMixSpec) error
	Mux(ctx context.Context, spec MuxSpec) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
