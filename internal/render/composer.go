package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
)

// SegmentInput is one prepared segment plus the job-wide settings that shape it.
type SegmentInput struct {
	VideoID         uuid.UUID
	Prepared        PreparedSegment
	Width           int
	Height          int
	Style           models.EditingStyle
	CaptionsEnabled bool
	Workspace       *Workspace
}

// SegmentClip is a composed segment ready for assembly.
type SegmentClip struct {
	Index     int
	VideoPath string
	AudioPath string // empty when the segment is silent
	Duration  float64
	Visual    models.MediaType
	Captioned bool
}

// Composer turns prepared segments into fixed-length clips.
type Composer struct {
	encoder  Encoder
	captions CaptionWriter
	truncate bool
	log      *logrus.Entry
}

// NewComposer creates a composer. When truncate is false, narration longer
// than its segment is sped up (bounded by MaxNarrationTempo) before the
// remainder is cut.
func NewComposer(encoder Encoder, captions CaptionWriter, truncate bool, logger *logrus.Logger) *Composer {
	return &Composer{
		encoder:  encoder,
		captions: captions,
		truncate: truncate,
		log:      logging.Component(logger, "composer"),
	}
}

// Compose renders one segment. The clip is always exactly the clamped
// duration of the segment.
func (c *Composer) Compose(ctx context.Context, in SegmentInput) (*SegmentClip, error) {
	const op = "composer.compose"

	p := in.Prepared
	seg := p.Segment
	duration := ClampDuration(seg.DurationHint)

	entry := c.log.WithFields(logrus.Fields{
		"video_id": in.VideoID,
		"segment":  p.Index,
		"visual":   p.Visual.Kind,
		"duration": duration,
	})

	clip := &SegmentClip{
		Index:    p.Index,
		Duration: duration,
		Visual:   p.Visual.Kind,
	}

	var captionPath string
	if in.CaptionsEnabled && seg.CaptionsEnabled && seg.HasText() && c.captions != nil {
		captionPath = in.Workspace.SegmentPath(p.Index, "caption", "ass")
		spec := CaptionSpec{
			Text:     strings.TrimSpace(seg.Text),
			Width:    in.Width,
			Height:   in.Height,
			Duration: duration,
		}
		if err := c.captions.WriteCaptions(spec, captionPath); err != nil {
			return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("segment %d captions: %w", p.Index, err))
		}
		clip.Captioned = true
	}

	spec := SegmentVideoSpec{
		Source:      p.Visual,
		Width:       in.Width,
		Height:      in.Height,
		Duration:    duration,
		FPS:         FPS,
		Style:       in.Style,
		CaptionPath: captionPath,
		OutPath:     in.Workspace.SegmentPath(p.Index, "clip", "mp4"),
	}

	if err := c.encoder.RenderSegmentVideo(ctx, spec); err != nil {
		if p.Visual.Kind == models.MediaTypeColor || ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("segment %d: %w", p.Index, err))
		}
		// An asset that exists but cannot be decoded is treated like a missing one.
		entry.WithError(err).Warn("asset could not be encoded, using color panel")
		spec.Source = VisualSource{Kind: models.MediaTypeColor, Background: p.Visual.Background}
		clip.Visual = models.MediaTypeColor
		if err := c.encoder.RenderSegmentVideo(ctx, spec); err != nil {
			return nil, apperr.Wrap(apperr.KindComposition, op, fmt.Errorf("segment %d: %w", p.Index, err))
		}
	}
	clip.VideoPath = spec.OutPath

	if p.Narration != nil {
		tempo := 1.0
		if p.Narration.Duration > duration {
			if !c.truncate {
				tempo = NarrationTempo(p.Narration.Duration, duration)
			}
			entry.WithFields(logrus.Fields{
				"narration": p.Narration.Duration,
				"tempo":     tempo,
			}).Info("narration longer than segment, cutting to fit")
		}

		fit := AudioFitSpec{
			InPath:   p.Narration.Path,
			OutPath:  in.Workspace.SegmentPath(p.Index, "audio", "wav"),
			Duration: duration,
			Tempo:    tempo,
		}
		if err := c.encoder.FitAudio(ctx, fit); err != nil {
			if ctx.Err() != nil {
				return nil, apperr.Wrap(apperr.KindComposition, op, ctx.Err())
			}
			entry.WithError(err).Warn("narration could not be fitted, segment will be silent")
		} else {
			clip.AudioPath = fit.OutPath
		}
	}

	entry.WithField("captioned", clip.Captioned).Debug("segment composed")
	return clip, nil
}
