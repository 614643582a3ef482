package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/models"
)

// FileStore keeps the catalog in videos.json and each timeline in
// timelines/timeline_<id>.json under a data directory.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	videos map[uuid.UUID]models.Video
	now    func() time.Time
}

var _ Repository = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "timelines"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		videos: make(map[uuid.UUID]models.Video),
		now:    time.Now,
	}

	data, err := os.ReadFile(s.catalogPath())
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read video catalog: %w", err)
	}

	var videos []models.Video
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, fmt.Errorf("failed to parse video catalog: %w", err)
	}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) catalogPath() string {
	return filepath.Join(s.dir, "videos.json")
}

func (s *FileStore) timelinePath(id uuid.UUID) string {
	return filepath.Join(s.dir, "timelines", fmt.Sprintf("timeline_%s.json", id))
}

func (s *FileStore) CreateVideo(ctx context.Context, video *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[video.ID]; ok {
		return apperr.Conflict("db.create_video", "video %s already exists", video.ID)
	}
	now := s.now()
	video.CreatedAt = now
	video.UpdatedAt = now
	s.videos[video.ID] = *video
	return s.flushLocked()
}

func (s *FileStore) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, apperr.NotFound("db.get_video", "video %s not found", id)
	}
	return &v, nil
}

// ListVideos returns videos newest first.
func (s *FileStore) ListVideos(ctx context.Context) ([]models.Video, error) {
	s.mu.RLock()
	videos := make([]models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		videos = append(videos, v)
	}
	s.mu.RUnlock()

	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

func (s *FileStore) UpdateVideoRender(ctx context.Context, id uuid.UUID, outcome models.RenderOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return apperr.NotFound("db.update_video_render", "video %s not found", id)
	}
	v.Status = outcome.Status
	if outcome.Duration != "" {
		v.Duration = outcome.Duration
	}
	v.OutputPath = optional(outcome.OutputPath)
	v.PublicURL = optional(outcome.PublicURL)
	v.ErrorMessage = optional(outcome.ErrorMessage)
	v.UpdatedAt = s.now()
	s.videos[id] = v
	return s.flushLocked()
}

func (s *FileStore) GetTimeline(ctx context.Context, videoID uuid.UUID) (*models.Timeline, error) {
	data, err := os.ReadFile(s.timelinePath(videoID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("db.get_timeline", "no timeline for video %s", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}

	var timeline models.Timeline
	if err := json.Unmarshal(data, &timeline); err != nil {
		return nil, fmt.Errorf("failed to parse timeline: %w", err)
	}
	return &timeline, nil
}

// SaveTimeline replaces the stored timeline. Latest write wins.
func (s *FileStore) SaveTimeline(ctx context.Context, videoID uuid.UUID, timeline *models.Timeline) error {
	data, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.timelinePath(videoID), data)
}

func (s *FileStore) flushLocked() error {
	videos := make([]models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		videos = append(videos, v)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].ID.String() < videos[j].ID.String()
	})

	data, err := json.MarshalIndent(videos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal video catalog: %w", err)
	}
	return writeAtomic(s.catalogPath(), data)
}

// writeAtomic writes to a temp file in the same directory and renames it into
// place so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
