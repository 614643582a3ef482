package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
	"github.com/bobarin/reelsmith/internal/render"
	"github.com/bobarin/reelsmith/internal/templates"
)

const (
	defaultChatModel = "gpt-4o-mini"

	// Each drafted line is one short spoken sentence
	maxScriptWords = 15

	fillerText         = "Brief additional content here."
	fillerVisualPrompt = "Generic visual related to the topic"
)

var defaultSegmentTypes = []string{"intro", "point", "point", "conclusion"}

type OpenAIService struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	templates *templates.Catalog
	log       *logrus.Entry
}

// NewOpenAIService creates a script drafter. Each chat call is bounded by
// timeout; zero means no limit.
func NewOpenAIService(apiKey, model string, timeout time.Duration, catalog *templates.Catalog, logger *logrus.Logger) *OpenAIService {
	return NewOpenAIServiceWithConfig(openai.DefaultConfig(apiKey), model, timeout, catalog, logger)
}

// NewOpenAIServiceWithConfig allows pointing the client at another base URL.
func NewOpenAIServiceWithConfig(cfg openai.ClientConfig, model string, timeout time.Duration, catalog *templates.Catalog, logger *logrus.Logger) *OpenAIService {
	if model == "" {
		model = defaultChatModel
	}
	if catalog == nil {
		catalog = templates.Builtin()
	}
	return &OpenAIService{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		timeout:   timeout,
		templates: catalog,
		log:       logging.Component(logger, "openai"),
	}
}

// ScriptDraft is the drafted content for a timeline.
type ScriptDraft struct {
	Segments []models.ScriptSegment
	// SegmentSeconds is the suggested duration of every segment.
	SegmentSeconds float64
}

// scriptPlan is the segment structure decided before calling the model.
type scriptPlan struct {
	types    []string
	purposes []string
	seconds  float64
}

// DraftScript asks the chat model for one line and one visual prompt per
// segment. The result always has exactly as many segments as planned.
func (s *OpenAIService) DraftScript(ctx context.Context, req models.ScriptRequest) (*ScriptDraft, error) {
	const op = "script.draft"

	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Topic) == "" {
		return nil, apperr.Precondition(op, "title or topic is required")
	}

	plan := s.planSegments(req)
	entry := s.log.WithFields(logrus.Fields{
		"template": req.SelectedTemplate,
		"segments": len(plan.types),
	})
	entry.Info("drafting script")

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scriptSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScriptUserPrompt(req, plan),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCollaborator, op, fmt.Errorf("openai request failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.KindCollaborator, op, "no response from openai")
	}

	raw := resp.Choices[0].Message.Content
	drafted, err := parseScriptSegments(raw)
	if err != nil {
		entry.WithField("raw", truncateString(raw, 500)).WithError(err).Warn("could not parse script")
		return nil, apperr.Wrap(apperr.KindCollaborator, op, err)
	}

	segments := fitScript(drafted, plan.types)
	entry.WithField("returned", len(drafted)).Info("script drafted")
	return &ScriptDraft{Segments: segments, SegmentSeconds: plan.seconds}, nil
}

// planSegments resolves the segment structure: a named template wins over
// explicit segment types, which win over the default. A target duration
// resizes the structure to one segment per four seconds.
func (s *OpenAIService) planSegments(req models.ScriptRequest) scriptPlan {
	var plan scriptPlan

	if tmpl, ok := s.templates.Get(req.SelectedTemplate); ok && req.SelectedTemplate != "" {
		for _, b := range tmpl.Structure {
			plan.types = append(plan.types, b.Type)
			plan.purposes = append(plan.purposes, b.Purpose)
		}
	} else if len(req.SegmentTypes) > 0 {
		plan.types = append(plan.types, req.SegmentTypes...)
	} else {
		plan.types = append(plan.types, defaultSegmentTypes...)
	}
	plan.seconds = render.DefaultSegmentSeconds

	if req.TargetDuration > 0 {
		avg := float64(req.TargetDuration / len(plan.types))
		plan.seconds = math.Max(render.MinSegmentSeconds, math.Min(render.MaxSegmentSeconds, avg))
		n := req.TargetDuration / 4
		if n < 1 {
			n = 1
		}
		plan.types = resize(plan.types, n)
		if len(plan.purposes) > 0 {
			plan.purposes = resize(plan.purposes, n)
		}
	}
	return plan
}

// resize truncates, or extends by repeating the last element.
func resize(items []string, n int) []string {
	if len(items) >= n {
		return items[:n]
	}
	out := append([]string(nil), items...)
	last := items[len(items)-1]
	for len(out) < n {
		out = append(out, last)
	}
	return out
}

const scriptSystemPrompt = `You are an expert scriptwriter for short-form vertical videos. Every segment lasts 2-4 seconds and carries exactly one spoken sentence of at most 15 words. Write to be listened to: short, conversational, engaging. Respond with JSON only.`

func buildScriptUserPrompt(req models.ScriptRequest, plan scriptPlan) string {
	tone := req.Tone
	if tone == "" {
		tone = "informative"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a script for a short-form video about %s.\n\n", firstNonEmpty(req.Title, req.Topic))
	fmt.Fprintf(&sb, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&sb, "Goal: %s\n", req.Goal)
	fmt.Fprintf(&sb, "Target Audience: %s\n", req.TargetAudience)
	fmt.Fprintf(&sb, "Tone: %s\n\n", tone)

	fmt.Fprintf(&sb, "The script must have exactly %d segments, each lasting about %.0f seconds, in this order:\n", len(plan.types), plan.seconds)
	for i, t := range plan.types {
		if i < len(plan.purposes) && plan.purposes[i] != "" {
			fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, t, plan.purposes[i])
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
		}
	}

	sb.WriteString(`
Respond with a JSON object {"segments": [...]} where each segment has:
- text: the line to be read aloud (1 sentence, max 15 words)
- visualPrompt: what should be shown on screen (brief, concrete, no text overlays)

Keep the pacing fast to maintain viewer retention.`)
	return sb.String()
}

type draftedSegment struct {
	Text         string `json:"text"`
	VisualPrompt string `json:"visualPrompt"`
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// parseScriptSegments accepts {"segments": [...]} or a bare array, possibly
// wrapped in prose.
func parseScriptSegments(raw string) ([]draftedSegment, error) {
	raw = strings.TrimSpace(raw)

	var wrapped struct {
		Segments []draftedSegment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Segments != nil {
		return wrapped.Segments, nil
	}

	var list []draftedSegment
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}

	if m := jsonArrayPattern.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), &list); err == nil {
			return list, nil
		}
	}
	return nil, fmt.Errorf("failed to parse script segments from response")
}

// fitScript pads or truncates the drafted lines to the planned types and
// caps every line at maxScriptWords.
func fitScript(drafted []draftedSegment, types []string) []models.ScriptSegment {
	out := make([]models.ScriptSegment, len(types))
	for i, t := range types {
		seg := draftedSegment{Text: fillerText, VisualPrompt: fillerVisualPrompt}
		if i < len(drafted) {
			seg = drafted[i]
		}
		out[i] = models.ScriptSegment{
			Type:         t,
			Text:         models.WordCap(strings.TrimSpace(seg.Text), maxScriptWords),
			VisualPrompt: strings.TrimSpace(seg.VisualPrompt),
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// OpenAI speech
// ---------------------------------------------------------------------------

var openAIVoices = map[string]openai.SpeechVoice{
	"alloy":   openai.VoiceAlloy,
	"echo":    openai.VoiceEcho,
	"fable":   openai.VoiceFable,
	"onyx":    openai.VoiceOnyx,
	"nova":    openai.VoiceNova,
	"shimmer": openai.VoiceShimmer,
}

// OpenAITTSService implements TTSService with the OpenAI speech endpoint.
type OpenAITTSService struct {
	client *openai.Client
	voice  openai.SpeechVoice
	log    *logrus.Entry
}

var _ TTSService = (*OpenAITTSService)(nil)

func NewOpenAITTSService(cfg openai.ClientConfig, defaultVoice string, logger *logrus.Logger) *OpenAITTSService {
	voice, ok := openAIVoices[strings.ToLower(defaultVoice)]
	if !ok {
		voice = openai.VoiceAlloy
	}
	return &OpenAITTSService{
		client: openai.NewClientWithConfig(cfg),
		voice:  voice,
		log:    logging.Component(logger, "openai_tts"),
	}
}

// GenerateSpeech synthesizes MP3 speech. Voices OpenAI does not know fall
// back to the service default.
func (s *OpenAITTSService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	v, ok := openAIVoices[strings.ToLower(strings.TrimSpace(voice))]
	if !ok {
		v = s.voice
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          v,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	s.log.WithFields(logrus.Fields{"voice": v, "bytes": len(audio)}).Debug("speech generated")
	return &TTSResponse{
		AudioData:  audio,
		DurationMs: estimateAudioDuration(text, 1.0),
		Format:     "mp3",
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
