package render

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
)

// Job is a render request with its timeline already loaded.
type Job struct {
	VideoID  uuid.UUID
	Timeline *models.Timeline
	Options  models.RenderOptions
}

// ProgressFunc receives progress checkpoints in increasing order.
type ProgressFunc func(percent int)

// SegmentObserver is notified after each segment clip is composed.
type SegmentObserver func(clip *SegmentClip)

// Pipeline runs resolve, compose and assemble for one job.
type Pipeline struct {
	resolver    *Resolver
	composer    *Composer
	assembler   *Assembler
	workDir     string
	concurrency int
	observer    SegmentObserver
	log         *logrus.Entry
}

type PipelineConfig struct {
	WorkDir            string
	PrepareConcurrency int
}

func NewPipeline(resolver *Resolver, composer *Composer, assembler *Assembler, cfg PipelineConfig, logger *logrus.Logger) *Pipeline {
	if cfg.PrepareConcurrency < 1 {
		cfg.PrepareConcurrency = 1
	}
	return &Pipeline{
		resolver:    resolver,
		composer:    composer,
		assembler:   assembler,
		workDir:     cfg.WorkDir,
		concurrency: cfg.PrepareConcurrency,
		log:         logging.Component(logger, "pipeline"),
	}
}

// OnSegment registers an observer for composed segments.
func (p *Pipeline) OnSegment(fn SegmentObserver) {
	p.observer = fn
}

// Render produces the final file for job. Temporary files are removed
// whether or not the render succeeds.
func (p *Pipeline) Render(ctx context.Context, job Job, progress ProgressFunc) (*Artifact, error) {
	const op = "pipeline.render"

	if progress == nil {
		progress = func(int) {}
	}
	if !job.Timeline.Renderable() {
		return nil, apperr.Precondition(op, "timeline of video %s has nothing to render", job.VideoID)
	}

	entry := p.log.WithField("video_id", job.VideoID)
	started := time.Now()

	ws, err := NewWorkspace(p.workDir, job.VideoID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindComposition, op, err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			entry.WithError(err).Warn("failed to remove render workspace")
		}
	}()

	segments := job.Timeline.Segments
	prepared, err := p.resolver.Prepare(ctx, ws, job.VideoID, segments, job.Options.VoiceID, p.concurrency)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindComposition, op, err)
	}

	width, height := job.Options.Dimensions()
	clips := make([]*SegmentClip, 0, len(prepared))
	for i, ps := range prepared {
		clip, err := p.composer.Compose(ctx, SegmentInput{
			VideoID:         job.VideoID,
			Prepared:        ps,
			Width:           width,
			Height:          height,
			Style:           job.Options.EditingStyle,
			CaptionsEnabled: job.Options.CaptionsEnabled,
			Workspace:       ws,
		})
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
		if p.observer != nil {
			p.observer(clip)
		}
		progress(SegmentProgress(i+1, len(prepared)))
	}

	progress(ProgressSegmentsDone)

	artifact, err := p.assembler.Assemble(ctx, clips, AssembleOptions{
		VideoID:     job.VideoID,
		Format:      job.Options.Format,
		MusicTrack:  job.Options.MusicTrack,
		MusicVolume: job.Options.MusicVolume,
		Workspace:   ws,
	})
	if err != nil {
		return nil, err
	}

	entry.WithFields(logrus.Fields{
		"segments": len(clips),
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("render pipeline finished")
	return artifact, nil
}
