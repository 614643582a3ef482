package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
)

// ---------------------------------------------------------------------------
// Imagen image generation via the Google Gen AI SDK.
// Generated stills land in <assets>/images so the resolver can pick them up
// by basename when a segment references them.
// ---------------------------------------------------------------------------

const defaultImagenModel = "imagen-4.0-generate-001"

// imageModels is the part of genai.Models used here.
type imageModels interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

type GeminiService struct {
	models    imageModels
	model     string
	assetsDir string
	timeout   time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

// NewGeminiService creates an image service backed by the Gemini API.
// model: the Imagen model to use (empty string defaults to imagen-4.0-generate-001)
// timeout: upper bound of one image request (zero means no limit)
func NewGeminiService(ctx context.Context, apiKey, model, assetsDir string, timeout time.Duration, logger *logrus.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	s := newGeminiService(client.Models, model, assetsDir, logger)
	s.timeout = timeout
	return s, nil
}

func newGeminiService(m imageModels, model, assetsDir string, logger *logrus.Logger) *GeminiService {
	if model == "" {
		model = defaultImagenModel
	}
	return &GeminiService{
		models:    m,
		model:     model,
		assetsDir: assetsDir,
		now:       time.Now,
		log:       logging.Component(logger, "gemini"),
	}
}

// GenerateImage renders one still for a segment and stores it under the
// assets directory.
func (s *GeminiService) GenerateImage(ctx context.Context, req models.GenerateImageRequest) (*models.GeneratedImage, error) {
	const op = "images.generate"

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperr.Precondition(op, "prompt is required")
	}
	if strings.TrimSpace(req.SegmentID) == "" {
		return nil, apperr.Precondition(op, "segmentId is required")
	}

	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = models.DefaultAspectRatio
	}

	entry := s.log.WithFields(logrus.Fields{
		"video_id": req.VideoID,
		"segment":  req.SegmentID,
		"model":    s.model,
	})
	entry.Info("generating image")

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.models.GenerateImages(ctx, s.model, composeImagePrompt(prompt, req.Style, aspectRatio), &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCollaborator, op, fmt.Errorf("imagen request failed: %w", err))
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, apperr.New(apperr.KindCollaborator, op, "imagen returned no image")
	}
	data := resp.GeneratedImages[0].Image.ImageBytes

	created := s.now()
	id := fmt.Sprintf("img_%s_%d", safeName(req.SegmentID), created.Unix())
	dir := filepath.Join(s.assetsDir, "images")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images dir: %w", err)
	}
	path := filepath.Join(dir, id+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	entry.WithFields(logrus.Fields{"path": path, "bytes": len(data)}).Info("image generated")
	return &models.GeneratedImage{
		ID:        id,
		Path:      path,
		URL:       "/images/" + id + ".png",
		Prompt:    prompt,
		CreatedAt: created,
	}, nil
}

// composeImagePrompt builds the full prompt: optional style + scene + framing.
func composeImagePrompt(scene, style, aspectRatio string) string {
	var prompt bytes.Buffer

	if style = strings.TrimSpace(style); style != "" {
		fmt.Fprintf(&prompt, "VISUAL STYLE: Render this scene in a \"%s\" aesthetic.\n\n", style)
	}

	prompt.WriteString("SCENE TO DEPICT:\n")
	prompt.WriteString(scene)

	orientLabel := "Portrait"
	switch aspectRatio {
	case "16:9":
		orientLabel = "Landscape"
	case "1:1":
		orientLabel = "Square"
	}
	fmt.Fprintf(&prompt, "\n\nOutput: %s %s, no text or captions in the image.", orientLabel, aspectRatio)

	return prompt.String()
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func safeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "-")
	if s == "" {
		return "segment"
	}
	return s
}
