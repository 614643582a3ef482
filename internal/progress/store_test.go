package progress

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/models"
)

func TestLifecycle(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	s.Seed(models.Video{ID: id, Status: models.VideoStatusDraft})

	rec, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.VideoStatusDraft, rec.Status)

	require.NoError(t, s.Begin(id))
	require.NoError(t, s.Advance(id, 10))
	require.NoError(t, s.Advance(id, 45))
	require.NoError(t, s.Advance(id, 30), "lower values are ignored, not rejected")

	rec, _ = s.Get(id)
	assert.Equal(t, models.VideoStatusRendering, rec.Status)
	assert.Equal(t, 45, rec.Progress)

	require.NoError(t, s.Complete(id, Result{Duration: "0:09", OutputPath: "rendered/video.mp4"}))
	rec, _ = s.Get(id)
	assert.Equal(t, models.VideoStatusReady, rec.Status)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, "0:09", rec.Duration)
	assert.Equal(t, "rendered/video.mp4", rec.OutputPath)

	// ready -> rendering again is allowed
	require.NoError(t, s.Begin(id))
	rec, _ = s.Get(id)
	assert.Equal(t, 0, rec.Progress)
}

func TestFailResetsProgress(t *testing.T) {
	s := NewStore()
	id := uuid.New()

	require.NoError(t, s.Begin(id), "unknown videos start from draft")
	require.NoError(t, s.Advance(id, 56))
	require.NoError(t, s.Fail(id, "encode failed"))

	rec, _ := s.Get(id)
	assert.Equal(t, models.VideoStatusError, rec.Status)
	assert.Equal(t, 0, rec.Progress)
	assert.Equal(t, "encode failed", rec.Error)

	// error -> rendering clears the message
	require.NoError(t, s.Begin(id))
	rec, _ = s.Get(id)
	assert.Empty(t, rec.Error)
}

func TestInvalidTransitions(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	s.Seed(models.Video{ID: id, Status: models.VideoStatusReady})

	assert.True(t, apperr.Is(s.Advance(id, 20), apperr.KindConflict))
	assert.True(t, apperr.Is(s.Complete(id, Result{}), apperr.KindConflict))
	assert.True(t, apperr.Is(s.Fail(id, "x"), apperr.KindConflict))

	require.NoError(t, s.Begin(id))
	assert.True(t, apperr.Is(s.Begin(id), apperr.KindConflict), "rendering -> rendering rejected")

	assert.True(t, apperr.Is(s.Advance(uuid.New(), 10), apperr.KindNotFound))
}

func TestAdvanceReservesComplete(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	require.NoError(t, s.Begin(id))
	require.NoError(t, s.Advance(id, 100))
	rec, _ := s.Get(id)
	assert.Equal(t, 99, rec.Progress)
	assert.Equal(t, models.VideoStatusRendering, rec.Status)
}

func TestSeedInterruptedRender(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	s.Seed(models.Video{ID: id, Status: models.VideoStatusRendering})

	rec, _ := s.Get(id)
	assert.Equal(t, models.VideoStatusError, rec.Status)
	assert.NotEmpty(t, rec.Error)
}

func TestSeedRestoresRenderError(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	msg := "exit status 1"
	s.Seed(models.Video{ID: id, Status: models.VideoStatusError, ErrorMessage: &msg})

	rec, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.VideoStatusError, rec.Status)
	assert.Equal(t, 0, rec.Progress)
	assert.Equal(t, "exit status 1", rec.Error)
}

func TestSeedKeepsLiveRender(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	require.NoError(t, s.Begin(id))
	require.NoError(t, s.Advance(id, 40))

	s.Seed(models.Video{ID: id, Status: models.VideoStatusDraft})
	rec, _ := s.Get(id)
	assert.Equal(t, models.VideoStatusRendering, rec.Status)
	assert.Equal(t, 40, rec.Progress)
}

func TestListenersSeeEveryChange(t *testing.T) {
	s := NewStore()
	id := uuid.New()

	var seen []int
	s.OnChange(func(r models.VideoRecord) { seen = append(seen, r.Progress) })

	require.NoError(t, s.Begin(id))
	require.NoError(t, s.Advance(id, 10))
	require.NoError(t, s.Advance(id, 80))
	require.NoError(t, s.Complete(id, Result{}))

	assert.Equal(t, []int{0, 10, 80, 100}, seen)
}

func TestAdvanceWithoutChangeIsSilent(t *testing.T) {
	s := NewStore()
	id := uuid.New()

	var seen []int
	s.OnChange(func(r models.VideoRecord) { seen = append(seen, r.Progress) })

	require.NoError(t, s.Begin(id))
	require.NoError(t, s.Advance(id, 80))
	require.NoError(t, s.Advance(id, 80))
	require.NoError(t, s.Advance(id, 50))
	require.NoError(t, s.Advance(id, 120))
	require.NoError(t, s.Advance(id, 99))

	assert.Equal(t, []int{0, 80, 99}, seen)
	rec, _ := s.Get(id)
	assert.Equal(t, 99, rec.Progress)
}

func TestConcurrentReads(t *testing.T) {
	s := NewStore()
	id := uuid.New()
	require.NoError(t, s.Begin(id))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for j := 0; j < 200; j++ {
				rec, _ := s.Get(id)
				if rec.Progress < last {
					t.Errorf("progress went backwards: %d < %d", rec.Progress, last)
					return
				}
				last = rec.Progress
			}
		}()
	}
	for p := 1; p <= 80; p++ {
		require.NoError(t, s.Advance(id, p))
	}
	wg.Wait()
	rec, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, 80, rec.Progress)
}
