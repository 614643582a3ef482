package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
)

// AssembleOptions carries the job-wide settings used during assembly.
type AssembleOptions struct {
	VideoID     uuid.UUID
	Format      string
	MusicTrack  string
	MusicVolume float64
	Workspace   *Workspace
}

// Artifact is a finished render.
type Artifact struct {
	Path            string
	Duration        float64
	Spans           []Span
	NarrationLength float64
	Music           *MusicPlan // nil when no music was mixed
}

// Assembler joins composed clips into the final file.
type Assembler struct {
	encoder   Encoder
	assetsDir string
	renderDir string
	log       *logrus.Entry
}

func NewAssembler(encoder Encoder, assetsDir, renderDir string, logger *logrus.Logger) *Assembler {
	return &Assembler{
		encoder:   encoder,
		assetsDir: assetsDir,
		renderDir: renderDir,
		log:       logging.Component(logger, "assembler"),
	}
}

// OutputPath is where the finished render of a video is written.
func (a *Assembler) OutputPath(videoID uuid.UUID, format string) string {
	return filepath.Join(a.renderDir, fmt.Sprintf("video_%s.%s", videoID, format))
}

// MusicPath is where a named music track is looked up.
func (a *Assembler) MusicPath(track string) string {
	name := filepath.Base(strings.TrimSuffix(track, ".mp3"))
	return filepath.Join(a.assetsDir, "audio", name+".mp3")
}

// Assemble concatenates clips in order, builds the narration track with each
// narrated segment at its own offset, mixes optional music, and writes the
// output file. The output only appears at its final path once fully encoded.
func (a *Assembler) Assemble(ctx context.Context, clips []*SegmentClip, opts AssembleOptions) (*Artifact, error) {
	const op = "assembler.assemble"

	if len(clips) == 0 {
		return nil, apperr.Precondition(op, "no clips to assemble")
	}
	ws := opts.Workspace
	entry := a.log.WithField("video_id", opts.VideoID)

	durations := make([]float64, len(clips))
	videoPaths := make([]string, len(clips))
	for i, clip := range clips {
		durations[i] = clip.Duration
		videoPaths[i] = clip.VideoPath
	}
	spans, total := PlanSpans(durations)

	videoPath := ws.Path("video_concat.mp4")
	if err := a.encoder.ConcatVideos(ctx, videoPaths, videoPath); err != nil {
		return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("concatenate clips: %w", err))
	}

	artifact := &Artifact{Duration: total, Spans: spans}

	parts, narrationLen := narrationParts(clips, spans)
	artifact.NarrationLength = narrationLen

	var audioPath string
	if narrationLen > 0 {
		audioPath = ws.Path("narration.wav")
		if err := a.encoder.BuildNarrationTrack(ctx, parts, audioPath); err != nil {
			return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("build narration track: %w", err))
		}

		if mixed, plan := a.mixMusic(ctx, entry, audioPath, narrationLen, opts); mixed != "" {
			audioPath = mixed
			artifact.Music = plan
		}
	} else if opts.MusicTrack != "" {
		entry.Info("no narration in timeline, skipping music")
	}

	if err := os.MkdirAll(a.renderDir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("create render dir: %w", err))
	}

	finalPath := a.OutputPath(opts.VideoID, opts.Format)
	tmpPath := filepath.Join(a.renderDir, fmt.Sprintf(".video_%s.partial.%s", opts.VideoID, opts.Format))

	mux := MuxSpec{
		VideoPath: videoPath,
		AudioPath: audioPath,
		Format:    opts.Format,
		FPS:       FPS,
		OutPath:   tmpPath,
	}
	if err := a.encoder.Mux(ctx, mux); err != nil {
		os.Remove(tmpPath)
		return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("encode output: %w", err))
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("finalize output: %w", err))
	}

	artifact.Path = finalPath
	entry.WithFields(logrus.Fields{
		"path":      finalPath,
		"duration":  total,
		"narration": narrationLen,
		"segments":  len(clips),
	}).Info("render assembled")
	return artifact, nil
}

// mixMusic returns the mixed track path, or "" when music is skipped.
func (a *Assembler) mixMusic(ctx context.Context, entry *logrus.Entry, narrationPath string, narrationLen float64, opts AssembleOptions) (string, *MusicPlan) {
	if opts.MusicTrack == "" {
		return "", nil
	}

	musicPath := a.MusicPath(opts.MusicTrack)
	entry = entry.WithField("music", musicPath)
	if _, err := os.Stat(musicPath); err != nil {
		entry.Warn("music track not found, skipping")
		return "", nil
	}

	musicLen, err := a.encoder.ProbeDuration(ctx, musicPath)
	if err != nil {
		entry.WithError(err).Warn("could not read music duration, skipping")
		return "", nil
	}

	plan, ok := PlanMusicLoop(musicLen, narrationLen)
	if !ok {
		entry.Warn("music track is empty, skipping")
		return "", nil
	}

	out := opts.Workspace.Path("narration_music.wav")
	spec := MusicMixSpec{
		NarrationPath: narrationPath,
		MusicPath:     musicPath,
		Plan:          plan,
		Volume:        opts.MusicVolume,
		OutPath:       out,
	}
	if err := a.encoder.MixMusic(ctx, spec); err != nil {
		entry.WithError(err).Warn("music mix failed, continuing with narration only")
		return "", nil
	}

	entry.WithFields(logrus.Fields{
		"repeats": plan.Repeats,
		"length":  plan.FinalLength,
	}).Info("music mixed")
	return out, &plan
}

// narrationParts lays narrated clips at their span offsets with silence in
// between. The track ends where the last narrated segment ends.
func narrationParts(clips []*SegmentClip, spans []Span) ([]NarrationPart, float64) {
	var parts []NarrationPart
	var cursor float64
	for i, clip := range clips {
		if clip.AudioPath == "" {
			continue
		}
		span := spans[i]
		if gap := span.Start - cursor; gap > 0 {
			parts = append(parts, NarrationPart{Offset: cursor, Duration: gap})
		}
		parts = append(parts, NarrationPart{Path: clip.AudioPath, Offset: span.Start, Duration: span.Duration})
		cursor = span.End()
	}
	return parts, cursor
}
