package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/reelsmith/internal/apperr"
)

const (
	DefaultFormat      = "mp4"
	DefaultResolution  = "720p"
	DefaultAspectRatio = "9:16"
	DefaultMusicVolume = 0.3
)

var (
	validFormats      = map[string]bool{"mp4": true, "mov": true, "webm": true}
	validResolutions  = map[string]bool{"720p": true, "1080p": true, "square": true}
	validAspectRatios = map[string]bool{"9:16": true, "16:9": true}
	validStyles       = map[EditingStyle]bool{
		EditingStyleStandard: true,
		EditingStyleZoom:     true,
		EditingStyleFade:     true,
	}
)

// RenderRequest is the body of a render request. Pointer fields distinguish
// "not sent" from zero values.
type RenderRequest struct {
	VoiceID         string   `json:"voiceId"`
	Format          string   `json:"format"`
	Resolution      string   `json:"resolution"`
	EditingStyle    string   `json:"editingStyle"`
	MusicTrack      string   `json:"musicTrack"`
	MusicVolume     *float64 `json:"musicVolume"`
	CaptionsEnabled *bool    `json:"captionsEnabled"`
	AspectRatio     string   `json:"aspectRatio"`
}

// RenderOptions is a validated render configuration.
type RenderOptions struct {
	VoiceID         string       `json:"voice_id"`
	Format          string       `json:"format"`
	Resolution      string       `json:"resolution"`
	EditingStyle    EditingStyle `json:"editing_style"`
	MusicTrack      string       `json:"music_track,omitempty"`
	MusicVolume     float64      `json:"music_volume"`
	CaptionsEnabled bool         `json:"captions_enabled"`
	AspectRatio     string       `json:"aspect_ratio"`
}

// RenderJob is one queued render.
type RenderJob struct {
	ID         uuid.UUID     `json:"id"`
	VideoID    uuid.UUID     `json:"video_id"`
	Options    RenderOptions `json:"options"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Normalize applies defaults and validates the request.
func (r RenderRequest) Normalize(defaultVoice string) (RenderOptions, error) {
	const op = "render.options"

	opts := RenderOptions{
		VoiceID:         strings.TrimSpace(r.VoiceID),
		Format:          strings.ToLower(strings.TrimSpace(r.Format)),
		Resolution:      strings.ToLower(strings.TrimSpace(r.Resolution)),
		EditingStyle:    EditingStyle(strings.ToLower(strings.TrimSpace(r.EditingStyle))),
		MusicTrack:      strings.TrimSpace(r.MusicTrack),
		MusicVolume:     DefaultMusicVolume,
		CaptionsEnabled: true,
		AspectRatio:     strings.TrimSpace(r.AspectRatio),
	}
	if opts.VoiceID == "" {
		opts.VoiceID = defaultVoice
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	if opts.Resolution == "" {
		opts.Resolution = DefaultResolution
	}
	if opts.EditingStyle == "" {
		opts.EditingStyle = EditingStyleStandard
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = DefaultAspectRatio
	}
	if r.MusicVolume != nil {
		opts.MusicVolume = *r.MusicVolume
	}
	if r.CaptionsEnabled != nil {
		opts.CaptionsEnabled = *r.CaptionsEnabled
	}

	if !validFormats[opts.Format] {
		return RenderOptions{}, apperr.Precondition(op, "unsupported format %q", opts.Format)
	}
	if !validResolutions[opts.Resolution] {
		return RenderOptions{}, apperr.Precondition(op, "unsupported resolution %q", opts.Resolution)
	}
	if !validStyles[opts.EditingStyle] {
		return RenderOptions{}, apperr.Precondition(op, "unsupported editing style %q", opts.EditingStyle)
	}
	if !validAspectRatios[opts.AspectRatio] {
		return RenderOptions{}, apperr.Precondition(op, "unsupported aspect ratio %q", opts.AspectRatio)
	}
	if opts.MusicVolume < 0 || opts.MusicVolume > 1 {
		return RenderOptions{}, apperr.Precondition(op, "music volume must be between 0 and 1, got %v", opts.MusicVolume)
	}
	return opts, nil
}

// Validate re-checks already normalized options, e.g. after a queue round trip.
func (o RenderOptions) Validate() error {
	vol := o.MusicVolume
	captions := o.CaptionsEnabled
	_, err := RenderRequest{
		VoiceID:         o.VoiceID,
		Format:          o.Format,
		Resolution:      o.Resolution,
		EditingStyle:    string(o.EditingStyle),
		MusicTrack:      o.MusicTrack,
		MusicVolume:     &vol,
		CaptionsEnabled: &captions,
		AspectRatio:     o.AspectRatio,
	}.Normalize(o.VoiceID)
	return err
}

// Dimensions returns the output frame size in pixels.
func (o RenderOptions) Dimensions() (width, height int) {
	switch o.Resolution {
	case "1080p":
		width, height = 1080, 1920
	case "square":
		return 720, 720
	default:
		width, height = 720, 1280
	}
	if o.AspectRatio == "16:9" {
		width, height = height, width
	}
	return width, height
}

func (o RenderOptions) String() string {
	w, h := o.Dimensions()
	return fmt.Sprintf("%s %dx%d style=%s captions=%t music=%q@%.2f",
		o.Format, w, h, o.EditingStyle, o.CaptionsEnabled, o.MusicTrack, o.MusicVolume)
}
