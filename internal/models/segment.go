package models

import (
	"encoding/json"
	"strings"
)

// Visual describes what a segment shows. Exactly one of ColorVisual,
// ImageVisual or VideoVisual.
type Visual interface {
	MediaType() MediaType
	BackgroundColor() string
}

type ColorVisual struct {
	Background string
}

func (v ColorVisual) MediaType() MediaType    { return MediaTypeColor }
func (v ColorVisual) BackgroundColor() string { return orDefaultBackground(v.Background) }

// ImageVisual shows a still image. Source is the asset URL or file name.
type ImageVisual struct {
	Background string
	Source     string
}

func (v ImageVisual) MediaType() MediaType    { return MediaTypeImage }
func (v ImageVisual) BackgroundColor() string { return orDefaultBackground(v.Background) }

type VideoVisual struct {
	Background string
	Source     string
}

func (v VideoVisual) MediaType() MediaType    { return MediaTypeVideo }
func (v VideoVisual) BackgroundColor() string { return orDefaultBackground(v.Background) }

// Segment is one scripted unit of the timeline.
type Segment struct {
	ID              string
	Type            string
	Text            string
	DurationHint    float64 // requested seconds, 0 means unset
	Visual          Visual
	VisualPrompt    string
	CaptionsEnabled bool
}

// HasText reports whether the segment carries narratable text.
func (s Segment) HasText() bool {
	return strings.TrimSpace(s.Text) != ""
}

// VisualOrDefault never returns nil.
func (s Segment) VisualOrDefault() Visual {
	if s.Visual == nil {
		return ColorVisual{Background: DefaultBackground}
	}
	return s.Visual
}

// segmentWire is the flat JSON form shared with the editor.
type segmentWire struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Text         string    `json:"text"`
	Duration     float64   `json:"duration,omitempty"`
	MediaType    MediaType `json:"mediaType"`
	Background   string    `json:"background,omitempty"`
	VisualPrompt string    `json:"visualPrompt,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	VideoURL     string    `json:"videoUrl,omitempty"`
	Captions     *bool     `json:"captions,omitempty"`
}

func (s Segment) MarshalJSON() ([]byte, error) {
	visual := s.VisualOrDefault()
	captions := s.CaptionsEnabled
	w := segmentWire{
		ID:           s.ID,
		Type:         s.Type,
		Text:         s.Text,
		Duration:     s.DurationHint,
		MediaType:    visual.MediaType(),
		Background:   visual.BackgroundColor(),
		VisualPrompt: s.VisualPrompt,
		Captions:     &captions,
	}
	switch v := visual.(type) {
	case ImageVisual:
		w.ImageURL = v.Source
	case VideoVisual:
		w.VideoURL = v.Source
	}
	return json.Marshal(w)
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var w segmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ID = w.ID
	s.Type = w.Type
	s.Text = w.Text
	s.DurationHint = w.Duration
	s.VisualPrompt = w.VisualPrompt
	s.CaptionsEnabled = w.Captions == nil || *w.Captions

	switch w.MediaType {
	case MediaTypeVideo:
		// Older editors stored the uploaded video under imageUrl.
		src := w.VideoURL
		if src == "" {
			src = w.ImageURL
		}
		s.Visual = VideoVisual{Background: w.Background, Source: src}
	case MediaTypeImage:
		s.Visual = ImageVisual{Background: w.Background, Source: w.ImageURL}
	default:
		s.Visual = ColorVisual{Background: w.Background}
	}
	return nil
}

func orDefaultBackground(bg string) string {
	if strings.TrimSpace(bg) == "" {
		return DefaultBackground
	}
	return bg
}
