package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/render"
)

// DurationProber measures media files.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// NarrationWriter adapts a TTS provider to render.Narrator.
type NarrationWriter struct {
	tts     TTSService
	prober  DurationProber
	timeout time.Duration
	log     *logrus.Entry
}

var _ render.Narrator = (*NarrationWriter)(nil)

// NewNarrationWriter wraps tts. prober may be nil, in which case the
// provider's estimate is used as the duration.
func NewNarrationWriter(tts TTSService, prober DurationProber, timeout time.Duration, logger *logrus.Logger) *NarrationWriter {
	return &NarrationWriter{
		tts:     tts,
		prober:  prober,
		timeout: timeout,
		log:     logging.Component(logger, "narration"),
	}
}

// Narrate synthesizes text with voice and writes the audio to outPath.
func (n *NarrationWriter) Narrate(ctx context.Context, text, voice, outPath string) (*render.Narration, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to narrate")
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := n.tts.GenerateSpeech(ctx, text, voice)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outPath, resp.AudioData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write narration: %w", err)
	}

	duration := float64(resp.DurationMs) / 1000
	if n.prober != nil {
		probed, err := n.prober.ProbeDuration(ctx, outPath)
		if err != nil {
			n.log.WithError(err).WithField("path", outPath).Warn("could not measure narration, using estimate")
		} else {
			duration = probed
		}
	}
	if duration <= 0 {
		return nil, fmt.Errorf("narration has no duration")
	}

	return &render.Narration{Path: outPath, Duration: duration}, nil
}
