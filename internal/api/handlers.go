package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/db"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
	"github.com/bobarin/reelsmith/internal/services"
	"github.com/bobarin/reelsmith/internal/templates"
)

// RenderScheduler accepts render requests and reports their progress.
type RenderScheduler interface {
	Enqueue(ctx context.Context, videoID uuid.UUID, opts models.RenderOptions) (int, error)
	Status(ctx context.Context, videoID uuid.UUID) (models.VideoRecord, error)
}

type ScriptDrafter interface {
	DraftScript(ctx context.Context, req models.ScriptRequest) (*services.ScriptDraft, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, req models.GenerateImageRequest) (*models.GeneratedImage, error)
}

// Deps are the collaborators of the HTTP handlers. Drafter and Images may
// be nil when their provider is not configured.
type Deps struct {
	Repo         db.Repository
	Scheduler    RenderScheduler
	Drafter      ScriptDrafter
	Images       ImageGenerator
	Templates    *templates.Catalog
	DefaultVoice string
}

type Handler struct {
	repo         db.Repository
	scheduler    RenderScheduler
	drafter      ScriptDrafter
	images       ImageGenerator
	templates    *templates.Catalog
	defaultVoice string
	now          func() time.Time
	log          *logrus.Entry
}

func NewHandler(deps Deps, logger *logrus.Logger) *Handler {
	catalog := deps.Templates
	if catalog == nil {
		catalog = templates.Builtin()
	}
	return &Handler{
		repo:         deps.Repo,
		scheduler:    deps.Scheduler,
		drafter:      deps.Drafter,
		images:       deps.Images,
		templates:    catalog,
		defaultVoice: deps.DefaultVoice,
		now:          time.Now,
		log:          logging.Component(logger, "api"),
	}
}

// CreateVideo handles POST /v1/videos
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVideoRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.respondErr(w, r, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		h.respondErr(w, r, apperr.Precondition("api.create_video", "title is required"))
		return
	}

	video := &models.Video{
		ID:       uuid.New(),
		Title:    title,
		Status:   models.VideoStatusDraft,
		Duration: "0:00",
	}
	if err := h.repo.CreateVideo(r.Context(), video); err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.log.WithField("video_id", video.ID).Info("video created")
	respondJSON(w, http.StatusCreated, h.videoResponse(r.Context(), *video))
}

// ListVideos handles GET /v1/videos
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.repo.ListVideos(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	out := make([]models.VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, h.videoResponse(r.Context(), v))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"videos": out})
}

// GetVideo handles GET /v1/videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.videoResponse(r.Context(), *video))
}

// StreamVideo handles GET /v1/videos/{id}/stream
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	if video.Status != models.VideoStatusReady || video.OutputPath == nil {
		h.respondErr(w, r, apperr.NotFound("api.stream_video", "video not ready"))
		return
	}
	if _, err := os.Stat(*video.OutputPath); err != nil {
		h.respondErr(w, r, apperr.NotFound("api.stream_video", "rendered file missing"))
		return
	}

	http.ServeFile(w, r, *video.OutputPath)
}

// GetTimeline handles GET /v1/timeline/{id}
// Videos without a saved timeline get the default four-segment draft.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	timeline, err := h.timelineOrDefault(r.Context(), video.ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, timeline)
}

// SaveTimeline handles PUT /v1/timeline/{id}
func (h *Handler) SaveTimeline(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	var timeline models.Timeline
	if err := decodeJSON(r, &timeline, false); err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.repo.SaveTimeline(r.Context(), video.ID, &timeline); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, timeline)
}

// DraftScript handles POST /v1/timeline/{id}/script
// The drafted segments replace the timeline's segments.
func (h *Handler) DraftScript(w http.ResponseWriter, r *http.Request) {
	const op = "api.draft_script"

	if h.drafter == nil {
		h.respondErr(w, r, apperr.New(apperr.KindUnavailable, op, "script drafting is not configured"))
		return
	}
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	var req models.ScriptRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = video.Title
	}

	draft, err := h.drafter.DraftScript(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	timeline, err := h.timelineOrDefault(r.Context(), video.ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	timeline.Segments = make([]models.Segment, len(draft.Segments))
	for i, s := range draft.Segments {
		timeline.Segments[i] = models.Segment{
			ID:              uuid.NewString(),
			Type:            s.Type,
			Text:            s.Text,
			DurationHint:    draft.SegmentSeconds,
			Visual:          models.ColorVisual{Background: models.DefaultBackground},
			VisualPrompt:    s.VisualPrompt,
			CaptionsEnabled: true,
		}
	}

	if err := h.repo.SaveTimeline(r.Context(), video.ID, timeline); err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.log.WithFields(logrus.Fields{"video_id": video.ID, "segments": len(timeline.Segments)}).Info("script drafted")
	respondJSON(w, http.StatusOK, timeline)
}

// GenerateImage handles POST /v1/images
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	const op = "api.generate_image"

	if h.images == nil {
		h.respondErr(w, r, apperr.New(apperr.KindUnavailable, op, "image generation is not configured"))
		return
	}

	var req models.GenerateImageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.generateImage(w, r, op, req)
}

// RegenerateImage handles POST /v1/images/{segmentId}/regenerate
func (h *Handler) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	const op = "api.regenerate_image"

	if h.images == nil {
		h.respondErr(w, r, apperr.New(apperr.KindUnavailable, op, "image generation is not configured"))
		return
	}

	var req models.GenerateImageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.respondErr(w, r, err)
		return
	}
	req.SegmentID = chi.URLParam(r, "segmentId")
	h.generateImage(w, r, op, req)
}

// generateImage asks the provider for a new image and records it on the
// segment's history.
func (h *Handler) generateImage(w http.ResponseWriter, r *http.Request, op string, req models.GenerateImageRequest) {
	if req.VideoID == uuid.Nil {
		h.respondErr(w, r, apperr.Precondition(op, "videoId is required"))
		return
	}
	if _, err := h.repo.GetVideo(r.Context(), req.VideoID); err != nil {
		h.respondErr(w, r, err)
		return
	}

	img, err := h.images.GenerateImage(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	// Record the image on the timeline so it survives restarts
	timeline, err := h.timelineOrDefault(r.Context(), req.VideoID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	timeline.AddImage(req.SegmentID, *img)
	if err := h.repo.SaveTimeline(r.Context(), req.VideoID, timeline); err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, img)
}

// ListImages handles GET /v1/images/{segmentId}?videoId=
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_images"

	videoID, err := uuid.Parse(r.URL.Query().Get("videoId"))
	if err != nil {
		h.respondErr(w, r, apperr.Precondition(op, "valid videoId query parameter is required"))
		return
	}

	images := []models.GeneratedImage{}
	timeline, err := h.repo.GetTimeline(r.Context(), videoID)
	switch {
	case err == nil:
		if found := timeline.Images[chi.URLParam(r, "segmentId")]; found != nil {
			images = found
		}
	case !apperr.Is(err, apperr.KindNotFound):
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// ListTemplates handles GET /v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.templates.All())
}

// Render handles POST /v1/render/{id}
// The body is optional; missing fields take their defaults.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseID(w, r, h)
	if !ok {
		return
	}

	var req models.RenderRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.respondErr(w, r, err)
		return
	}

	opts, err := req.Normalize(h.defaultVoice)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	pos, err := h.scheduler.Enqueue(r.Context(), videoID, opts)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, models.EnqueueResponse{
		Status:        "queued",
		QueuePosition: pos,
	})
}

// RenderProgress handles GET /v1/render/{id}/progress
func (h *Handler) RenderProgress(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseID(w, r, h)
	if !ok {
		return
	}

	rec, err := h.scheduler.Status(r.Context(), videoID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ProgressResponse{
		Status:        rec.Status,
		Progress:      rec.Progress,
		QueuePosition: rec.QueuePosition,
	})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper methods

func (h *Handler) videoResponse(ctx context.Context, v models.Video) models.VideoResponse {
	resp := models.VideoResponse{Video: v}
	rec, err := h.scheduler.Status(ctx, v.ID)
	if err != nil {
		h.log.WithError(err).WithField("video_id", v.ID).Warn("no progress record")
		return resp
	}
	resp.Status = rec.Status
	resp.Progress = rec.Progress
	resp.QueuePosition = rec.QueuePosition
	resp.Error = rec.Error
	return resp
}

func (h *Handler) loadVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	id, ok := parseID(w, r, h)
	if !ok {
		return nil, false
	}
	video, err := h.repo.GetVideo(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return nil, false
	}
	return video, true
}

func (h *Handler) timelineOrDefault(ctx context.Context, videoID uuid.UUID) (*models.Timeline, error) {
	timeline, err := h.repo.GetTimeline(ctx, videoID)
	if apperr.Is(err, apperr.KindNotFound) {
		return models.DefaultTimeline(h.now()), nil
	}
	return timeline, err
}

func parseID(w http.ResponseWriter, r *http.Request, h *Handler) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, r, apperr.Precondition("api.parse_id", "invalid video ID"))
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads a JSON body. With allowEmpty, an empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperr.Precondition("api.decode", "invalid request body")
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	respondJSON(w, status, map[string]string{
		"error": apperr.Message(err),
		"code":  string(apperr.KindOf(err)),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
