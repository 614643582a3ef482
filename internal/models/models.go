package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type VideoStatus string

const (
	VideoStatusDraft     VideoStatus = "draft"
	VideoStatusRendering VideoStatus = "rendering"
	VideoStatusReady     VideoStatus = "ready"
	VideoStatusError     VideoStatus = "error"
)

type MediaType string

const (
	MediaTypeColor MediaType = "color"
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type EditingStyle string

const (
	EditingStyleStandard EditingStyle = "standard"
	EditingStyleZoom     EditingStyle = "zoom"
	EditingStyleFade     EditingStyle = "fade"
)

// DefaultBackground is the panel color used when a segment names none.
const DefaultBackground = "#1e293b"

// Models

type Video struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Status       VideoStatus `json:"status"`
	Duration     string      `json:"duration"` // "m:ss"
	OutputPath   *string     `json:"output_path,omitempty"`
	PublicURL    *string     `json:"public_url,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"` // last render failure
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// VideoRecord is the live progress projection of a video.
type VideoRecord struct {
	VideoID       uuid.UUID   `json:"video_id"`
	Status        VideoStatus `json:"status"`
	Progress      int         `json:"progress"`
	Duration      string      `json:"duration"`
	QueuePosition *int        `json:"queuePosition"`
	OutputPath    string      `json:"output_path,omitempty"`
	PublicURL     string      `json:"public_url,omitempty"`
	Error         string      `json:"error,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// RenderOutcome is what the scheduler writes back to the catalog once a job
// reaches a terminal state.
type RenderOutcome struct {
	Status       VideoStatus
	Duration     string
	OutputPath   string
	PublicURL    string
	ErrorMessage string
}

// GeneratedImage is one image produced for a segment.
type GeneratedImage struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Timeline struct {
	Segments []Segment                   `json:"segments"`
	Images   map[string][]GeneratedImage `json:"images,omitempty"`
	Videos   map[string]string           `json:"videos,omitempty"`
}

// Renderable reports whether the timeline has at least one segment and at
// least one segment with non-blank text.
func (t *Timeline) Renderable() bool {
	if t == nil || len(t.Segments) == 0 {
		return false
	}
	for _, seg := range t.Segments {
		if seg.HasText() {
			return true
		}
	}
	return false
}

// AddImage records a generated image for a segment.
func (t *Timeline) AddImage(segmentID string, img GeneratedImage) {
	if t.Images == nil {
		t.Images = make(map[string][]GeneratedImage)
	}
	t.Images[segmentID] = append(t.Images[segmentID], img)
}

// Value stores a timeline in a PostgreSQL JSONB column.
func (t Timeline) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		*t = Timeline{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported timeline column type %T", value)
	}
	return json.Unmarshal(data, t)
}

// DefaultTimeline is served for a video that has never been saved.
func DefaultTimeline(now time.Time) *Timeline {
	kinds := []string{"intro", "point", "point", "conclusion"}
	segments := make([]Segment, 0, len(kinds))
	for i, kind := range kinds {
		segments = append(segments, Segment{
			ID:              fmt.Sprintf("%d", now.UnixMilli()+int64(i)),
			Type:            kind,
			DurationHint:    5,
			Visual:          ColorVisual{Background: DefaultBackground},
			CaptionsEnabled: true,
		})
	}
	return &Timeline{Segments: segments}
}

// FormatDuration renders seconds as "m:ss".
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// DTOs for API requests and responses

type CreateVideoRequest struct {
	Title string `json:"title"`
}

type VideoResponse struct {
	Video
	Progress      int    `json:"progress"`
	QueuePosition *int   `json:"queuePosition"`
	Error         string `json:"error,omitempty"`
}

type ProgressResponse struct {
	Status        VideoStatus `json:"status"`
	Progress      int         `json:"progress"`
	QueuePosition *int        `json:"queuePosition"`
}

type EnqueueResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queuePosition"`
}

type ScriptRequest struct {
	Title            string   `json:"title"`
	Topic            string   `json:"topic"`
	Goal             string   `json:"goal"`
	TargetAudience   string   `json:"targetAudience"`
	Tone             string   `json:"tone"`
	SelectedTemplate string   `json:"selectedTemplate"`
	SegmentTypes     []string `json:"segmentTypes,omitempty"`
	TargetDuration   int      `json:"targetDuration,omitempty"`
}

type ScriptSegment struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	VisualPrompt string `json:"visualPrompt"`
}

type GenerateImageRequest struct {
	Prompt      string    `json:"prompt"`
	SegmentID   string    `json:"segmentId"`
	VideoID     uuid.UUID `json:"videoId"`
	Style       string    `json:"style,omitempty"`
	AspectRatio string    `json:"aspectRatio,omitempty"`
}

// WordCap truncates text to at most n words, marking the cut with "...".
func WordCap(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
