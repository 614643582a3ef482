package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/models"
)

// Listener is called with a copy of the record after every change.
type Listener func(models.VideoRecord)

// Result is the outcome of a successful render.
type Result struct {
	Duration   string
	OutputPath string
	PublicURL  string
}

// Store holds the live status of every known video. Reads may run
// concurrently with the single writer that drives a render.
type Store struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]*models.VideoRecord
	listeners []Listener
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: make(map[uuid.UUID]*models.VideoRecord),
		now:     time.Now,
	}
}

// OnChange registers a listener. Listeners run synchronously, outside the lock.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Seed registers a video with its persisted state. A video that is currently
// rendering keeps its live record. A persisted "rendering" status means a
// previous process died mid-render and is reset to error.
func (s *Store) Seed(video models.Video) {
	s.mu.Lock()
	if rec, ok := s.records[video.ID]; ok && rec.Status == models.VideoStatusRendering {
		s.mu.Unlock()
		return
	}

	rec := &models.VideoRecord{
		VideoID:   video.ID,
		Status:    video.Status,
		Duration:  video.Duration,
		UpdatedAt: s.now(),
	}
	switch video.Status {
	case models.VideoStatusReady:
		rec.Progress = 100
	case models.VideoStatusError:
		if video.ErrorMessage != nil {
			rec.Error = *video.ErrorMessage
		}
	case models.VideoStatusRendering:
		rec.Status = models.VideoStatusError
		rec.Error = "render interrupted"
	case "":
		rec.Status = models.VideoStatusDraft
	}
	if video.OutputPath != nil {
		rec.OutputPath = *video.OutputPath
	}
	if video.PublicURL != nil {
		rec.PublicURL = *video.PublicURL
	}
	s.records[video.ID] = rec
	snapshot := *rec
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Get returns a copy of the record.
func (s *Store) Get(id uuid.UUID) (models.VideoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return models.VideoRecord{}, false
	}
	return *rec, true
}

// Begin moves a video into rendering with progress 0. Unknown videos start
// from draft.
func (s *Store) Begin(id uuid.UUID) error {
	return s.update(id, "progress.begin", func(rec *models.VideoRecord) error {
		if rec.Status == models.VideoStatusRendering {
			return fmt.Errorf("video %s is already rendering", id)
		}
		rec.Status = models.VideoStatusRendering
		rec.Progress = 0
		rec.Error = ""
		return nil
	}, true)
}

// Advance raises the progress of a rendering video. Lower values are ignored
// so progress never moves backwards within a job.
func (s *Store) Advance(id uuid.UUID, percent int) error {
	return s.update(id, "progress.advance", func(rec *models.VideoRecord) error {
		if rec.Status != models.VideoStatusRendering {
			return fmt.Errorf("video %s is %s, not rendering", id, rec.Status)
		}
		if percent > 99 {
			percent = 99 // 100 is reserved for Complete
		}
		if percent <= rec.Progress {
			return errUnchanged
		}
		rec.Progress = percent
		return nil
	}, false)
}

// Complete marks a rendering video ready.
func (s *Store) Complete(id uuid.UUID, result Result) error {
	return s.update(id, "progress.complete", func(rec *models.VideoRecord) error {
		if rec.Status != models.VideoStatusRendering {
			return fmt.Errorf("video %s is %s, not rendering", id, rec.Status)
		}
		rec.Status = models.VideoStatusReady
		rec.Progress = 100
		rec.Duration = result.Duration
		rec.OutputPath = result.OutputPath
		rec.PublicURL = result.PublicURL
		rec.Error = ""
		return nil
	}, false)
}

// Fail marks a rendering video as errored and resets its progress.
func (s *Store) Fail(id uuid.UUID, message string) error {
	return s.update(id, "progress.fail", func(rec *models.VideoRecord) error {
		if rec.Status != models.VideoStatusRendering {
			return fmt.Errorf("video %s is %s, not rendering", id, rec.Status)
		}
		rec.Status = models.VideoStatusError
		rec.Progress = 0
		rec.Error = message
		return nil
	}, false)
}

// errUnchanged tells update to keep the record as is without notifying.
var errUnchanged = errors.New("unchanged")

func (s *Store) update(id uuid.UUID, op string, mutate func(*models.VideoRecord) error, create bool) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		if !create {
			s.mu.Unlock()
			return apperr.NotFound(op, "no progress record for video %s", id)
		}
		rec = &models.VideoRecord{VideoID: id, Status: models.VideoStatusDraft}
	}

	next := *rec
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	next.UpdatedAt = s.now()
	s.records[id] = &next
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, next)
	return nil
}

func notify(listeners []Listener, rec models.VideoRecord) {
	for _, l := range listeners {
		l(rec)
	}
}
