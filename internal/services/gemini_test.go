package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
)

type fakeImageModels struct {
	model, prompt string
	config        *genai.GenerateImagesConfig
	resp          *genai.GenerateImagesResponse
	err           error
	hang          bool // wait for the context to end
}

func (f *fakeImageModels) GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.model, f.prompt, f.config = model, prompt, config
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func TestGenerateImageWritesAsset(t *testing.T) {
	fake := &fakeImageModels{resp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte("png")}}},
	}}
	assets := t.TempDir()
	s := newGeminiService(fake, "", assets, logging.Discard())
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	img, err := s.GenerateImage(context.Background(), models.GenerateImageRequest{
		Prompt:    "a red fox in snow",
		SegmentID: "seg 1",
		VideoID:   uuid.New(),
		Style:     "watercolor",
	})
	require.NoError(t, err)

	assert.Equal(t, defaultImagenModel, fake.model)
	assert.Equal(t, "9:16", fake.config.AspectRatio)
	assert.Contains(t, fake.prompt, "a red fox in snow")
	assert.Contains(t, fake.prompt, "watercolor")

	assert.Equal(t, "img_seg-1_1700000000", img.ID)
	assert.Equal(t, filepath.Join(assets, "images", "img_seg-1_1700000000.png"), img.Path)
	assert.Equal(t, "/images/img_seg-1_1700000000.png", img.URL)
	data, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestGenerateImageErrors(t *testing.T) {
	fake := &fakeImageModels{err: errors.New("quota exceeded")}
	s := newGeminiService(fake, "imagen-x", t.TempDir(), logging.Discard())

	_, err := s.GenerateImage(context.Background(), models.GenerateImageRequest{SegmentID: "1"})
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	_, err = s.GenerateImage(context.Background(), models.GenerateImageRequest{Prompt: "x", SegmentID: "1"})
	assert.True(t, apperr.Is(err, apperr.KindCollaborator))

	fake.err = nil
	fake.resp = &genai.GenerateImagesResponse{}
	_, err = s.GenerateImage(context.Background(), models.GenerateImageRequest{Prompt: "x", SegmentID: "1"})
	assert.True(t, apperr.Is(err, apperr.KindCollaborator))
}

func TestGenerateImageTimesOut(t *testing.T) {
	fake := &fakeImageModels{hang: true}
	s := newGeminiService(fake, "", t.TempDir(), logging.Discard())
	s.timeout = 50 * time.Millisecond

	_, err := s.GenerateImage(context.Background(), models.GenerateImageRequest{Prompt: "x", SegmentID: "1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCollaborator))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
