package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/db"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/metrics"
	"github.com/bobarin/reelsmith/internal/models"
	"github.com/bobarin/reelsmith/internal/progress"
	"github.com/bobarin/reelsmith/internal/queue"
	"github.com/bobarin/reelsmith/internal/render"
)

// Renderer produces the final file for one job.
type Renderer interface {
	Render(ctx context.Context, job render.Job, progress render.ProgressFunc) (*render.Artifact, error)
}

// Publisher uploads a finished render and returns its public URL.
type Publisher interface {
	PublishRender(ctx context.Context, videoID uuid.UUID, localPath string) (string, error)
}

// Scheduler owns the render queue. Jobs run one at a time on the goroutine
// that calls Run.
type Scheduler struct {
	repo      db.Repository
	queue     queue.Queue
	store     *progress.Store
	renderer  Renderer
	publisher Publisher
	metrics   *metrics.RenderMetrics
	log       *logrus.Entry

	pollInterval time.Duration

	enqueueMu sync.Mutex // serializes duplicate checks with pushes

	mu       sync.Mutex
	inflight map[uuid.UUID]bool // queued or rendering, accepted by this process
}

func New(repo db.Repository, q queue.Queue, store *progress.Store, renderer Renderer, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		repo:         repo,
		queue:        q,
		store:        store,
		renderer:     renderer,
		log:          logging.Component(logger, "scheduler"),
		pollInterval: 5 * time.Second,
		inflight:     make(map[uuid.UUID]bool),
	}
}

// WithPublisher enables upload of finished renders. Upload failures are
// logged and do not fail the job.
func (s *Scheduler) WithPublisher(p Publisher) *Scheduler {
	s.publisher = p
	return s
}

func (s *Scheduler) WithMetrics(m *metrics.RenderMetrics) *Scheduler {
	s.metrics = m
	return s
}

// Enqueue validates a render request and appends it to the queue. It never
// blocks on rendering and leaves all state untouched when it rejects.
// The returned position is 1-based, or 0 if the worker already picked it up.
func (s *Scheduler) Enqueue(ctx context.Context, videoID uuid.UUID, opts models.RenderOptions) (int, error) {
	const op = "scheduler.enqueue"

	if err := opts.Validate(); err != nil {
		s.metrics.JobFinished(metrics.OutcomeRejected, 0)
		return 0, err
	}

	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()

	if _, err := s.renderableTimeline(ctx, op, videoID); err != nil {
		s.metrics.JobFinished(metrics.OutcomeRejected, 0)
		return 0, err
	}

	if s.isInflight(videoID) {
		s.metrics.JobFinished(metrics.OutcomeRejected, 0)
		return 0, apperr.Conflict(op, "video %s already has a pending render", videoID)
	}
	// Jobs left in a persistent queue by a previous process are not in inflight.
	pos, err := s.queue.Position(ctx, videoID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, op, err)
	}
	if pos > 0 {
		s.metrics.JobFinished(metrics.OutcomeRejected, 0)
		return 0, apperr.Conflict(op, "video %s is already queued at position %d", videoID, pos)
	}

	job := &models.RenderJob{
		ID:         uuid.New(),
		VideoID:    videoID,
		Options:    opts,
		EnqueuedAt: time.Now(),
	}
	s.setInflight(videoID, true)
	if err := s.queue.Push(ctx, job); err != nil {
		s.setInflight(videoID, false)
		return 0, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("failed to enqueue render: %w", err))
	}

	pos, err = s.queue.Position(ctx, videoID)
	if err != nil {
		s.log.WithError(err).Warn("could not read queue position")
	}
	s.refreshDepth(ctx)

	s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video_id": videoID,
		"position": pos,
		"options":  opts.String(),
	}).Info("render queued")
	return pos, nil
}

// Status returns the progress record of a video with its current queue
// position. Videos not yet tracked are seeded from the repository.
func (s *Scheduler) Status(ctx context.Context, videoID uuid.UUID) (models.VideoRecord, error) {
	rec, ok := s.store.Get(videoID)
	if !ok {
		video, err := s.repo.GetVideo(ctx, videoID)
		if err != nil {
			return models.VideoRecord{}, err
		}
		s.store.Seed(*video)
		rec, _ = s.store.Get(videoID)
	}

	if pos := s.QueuePosition(ctx, videoID); pos > 0 {
		rec.QueuePosition = &pos
	}
	return rec, nil
}

// QueuePosition returns the 1-based position of a pending job, or 0.
func (s *Scheduler) QueuePosition(ctx context.Context, videoID uuid.UUID) int {
	pos, err := s.queue.Position(ctx, videoID)
	if err != nil {
		s.log.WithError(err).WithField("video_id", videoID).Warn("could not read queue position")
		return 0
	}
	return pos
}

// Run drains the queue until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("render scheduler started")
	defer s.log.Info("render scheduler stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := s.queue.Pop(ctx, s.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Error("error dequeuing render job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if job == nil {
			continue // No job available, retry
		}

		s.process(ctx, job)
	}
}

func (s *Scheduler) process(ctx context.Context, job *models.RenderJob) {
	const op = "scheduler.process"

	defer s.setInflight(job.VideoID, false)
	s.refreshDepth(ctx)

	entry := s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video_id": job.VideoID,
	})

	// State may have changed while the job waited.
	timeline, err := s.renderableTimeline(ctx, op, job.VideoID)
	if err == nil {
		err = job.Options.Validate()
	}
	if err != nil {
		entry.WithError(err).Warn("dropping render job")
		s.metrics.JobFinished(metrics.OutcomeDropped, 0)
		return
	}

	if err := s.store.Begin(job.VideoID); err != nil {
		entry.WithError(err).Warn("dropping render job")
		s.metrics.JobFinished(metrics.OutcomeDropped, 0)
		return
	}

	s.metrics.SetActive(true)
	defer s.metrics.SetActive(false)

	started := time.Now()
	entry.WithField("segments", len(timeline.Segments)).Info("render started")
	s.advance(entry, job.VideoID, render.ProgressTimelineLoaded)

	artifact, err := s.runRender(ctx, job, timeline, entry)
	elapsed := time.Since(started)

	// Terminal writes must land even when shutdown cancelled the render.
	writeCtx := context.WithoutCancel(ctx)

	if err != nil {
		msg := apperr.Message(err)
		if ctx.Err() != nil {
			msg = "render interrupted"
		}
		entry.WithError(err).WithField("elapsed", elapsed.Round(time.Millisecond)).Error("render failed")

		if err := s.store.Fail(job.VideoID, msg); err != nil {
			entry.WithError(err).Error("failed to record render failure")
		}
		if err := s.repo.UpdateVideoRender(writeCtx, job.VideoID, models.RenderOutcome{
			Status:       models.VideoStatusError,
			ErrorMessage: msg,
		}); err != nil {
			entry.WithError(err).Error("failed to persist render failure")
		}
		s.metrics.JobFinished(metrics.OutcomeError, elapsed)
		return
	}

	var publicURL string
	if s.publisher != nil {
		url, err := s.publisher.PublishRender(writeCtx, job.VideoID, artifact.Path)
		if err != nil {
			entry.WithError(err).Warn("failed to publish render, keeping local file only")
		} else {
			publicURL = url
		}
	}

	duration := models.FormatDuration(artifact.Duration)
	if err := s.repo.UpdateVideoRender(writeCtx, job.VideoID, models.RenderOutcome{
		Status:     models.VideoStatusReady,
		Duration:   duration,
		OutputPath: artifact.Path,
		PublicURL:  publicURL,
	}); err != nil {
		entry.WithError(err).Error("failed to persist render result")
	}

	if err := s.store.Complete(job.VideoID, progress.Result{
		Duration:   duration,
		OutputPath: artifact.Path,
		PublicURL:  publicURL,
	}); err != nil {
		entry.WithError(err).Error("failed to record render completion")
	}

	s.metrics.JobFinished(metrics.OutcomeReady, elapsed)
	entry.WithFields(logrus.Fields{
		"duration": duration,
		"path":     artifact.Path,
		"elapsed":  elapsed.Round(time.Millisecond),
	}).Info("render complete")
}

// runRender converts a panic in the pipeline into a job failure so the
// scheduler keeps draining the queue.
func (s *Scheduler) runRender(ctx context.Context, job *models.RenderJob, timeline *models.Timeline, entry *logrus.Entry) (artifact *render.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Newf(apperr.KindInternal, "scheduler.render", "render panicked: %v", r)
		}
	}()

	return s.renderer.Render(ctx, render.Job{
		VideoID:  job.VideoID,
		Timeline: timeline,
		Options:  job.Options,
	}, func(pct int) {
		s.advance(entry, job.VideoID, pct)
	})
}

func (s *Scheduler) advance(entry *logrus.Entry, videoID uuid.UUID, pct int) {
	if err := s.store.Advance(videoID, pct); err != nil {
		entry.WithError(err).Warn("failed to record progress")
		return
	}
	entry.WithField("progress", pct).Debug("render progress")
}

// renderableTimeline checks the preconditions shared by Enqueue and dequeue.
func (s *Scheduler) renderableTimeline(ctx context.Context, op string, videoID uuid.UUID) (*models.Timeline, error) {
	if _, err := s.repo.GetVideo(ctx, videoID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(op, "video %s not found", videoID)
		}
		return nil, err
	}

	timeline, err := s.repo.GetTimeline(ctx, videoID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Precondition(op, "video %s has no timeline", videoID)
		}
		return nil, err
	}

	if !timeline.Renderable() {
		return nil, apperr.Precondition(op, "timeline of video %s has no segments with text", videoID)
	}
	return timeline, nil
}

func (s *Scheduler) isInflight(videoID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[videoID]
}

func (s *Scheduler) setInflight(videoID uuid.UUID, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.inflight[videoID] = true
	} else {
		delete(s.inflight, videoID)
	}
}

func (s *Scheduler) refreshDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.queue.Len(ctx); err == nil {
		s.metrics.SetQueueDepth(n)
	}
}
