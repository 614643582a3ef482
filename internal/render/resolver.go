package render

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
)

// VisualSource is the resolved input for a segment's picture.
type VisualSource struct {
	Kind       models.MediaType
	Path       string // empty for color
	Background string
}

// PreparedSegment pairs a segment with its resolved inputs.
type PreparedSegment struct {
	Index     int
	Segment   models.Segment
	Visual    VisualSource
	Narration *Narration // nil when the segment is silent
}

// Resolver decides which media each segment uses. It never fails a render:
// missing assets fall back to a color panel and failed narration leaves the
// segment silent.
type Resolver struct {
	assetsDir string
	narrator  Narrator
	log       *logrus.Entry
}

// NewResolver creates a resolver. narrator may be nil, in which case every
// segment is silent.
func NewResolver(assetsDir string, narrator Narrator, logger *logrus.Logger) *Resolver {
	return &Resolver{
		assetsDir: assetsDir,
		narrator:  narrator,
		log:       logging.Component(logger, "resolver"),
	}
}

// ResolveVisual picks video, then image, then color.
func (r *Resolver) ResolveVisual(videoID uuid.UUID, index int, seg models.Segment) VisualSource {
	visual := seg.VisualOrDefault()
	color := VisualSource{Kind: models.MediaTypeColor, Background: visual.BackgroundColor()}

	var dir, source string
	switch v := visual.(type) {
	case models.VideoVisual:
		dir, source = "videos", v.Source
	case models.ImageVisual:
		dir, source = "images", v.Source
	default:
		return color
	}

	entry := r.log.WithFields(logrus.Fields{
		"video_id": videoID,
		"segment":  index,
		"source":   source,
	})

	name := assetName(source)
	if name == "" {
		entry.Warnf("%s segment has no source, using color panel", visual.MediaType())
		return color
	}

	assetPath := filepath.Join(r.assetsDir, dir, name)
	info, err := os.Stat(assetPath)
	if err != nil || info.IsDir() {
		entry.WithField("path", assetPath).Warn("asset not found, using color panel")
		return color
	}

	return VisualSource{Kind: visual.MediaType(), Path: assetPath, Background: visual.BackgroundColor()}
}

// ResolveNarration synthesizes speech for the segment, or returns nil if the
// segment has no text, no narrator is configured, or synthesis fails.
func (r *Resolver) ResolveNarration(ctx context.Context, ws *Workspace, videoID uuid.UUID, index int, seg models.Segment, voice string) *Narration {
	if r.narrator == nil || !seg.HasText() {
		return nil
	}

	outPath := ws.SegmentPath(index, "narration", "mp3")
	narration, err := r.narrator.Narrate(ctx, strings.TrimSpace(seg.Text), voice, outPath)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"video_id": videoID,
			"segment":  index,
		}).WithError(err).Warn("narration failed, segment will be silent")
		return nil
	}
	return narration
}

// Prepare resolves every segment. Up to concurrency segments are prepared at
// once; results keep timeline order. Only context cancellation is an error.
func (r *Resolver) Prepare(ctx context.Context, ws *Workspace, videoID uuid.UUID, segments []models.Segment, voice string, concurrency int) ([]PreparedSegment, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	prepared := make([]PreparedSegment, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prepared[i] = PreparedSegment{
				Index:     i,
				Segment:   seg,
				Visual:    r.ResolveVisual(videoID, i, seg),
				Narration: r.ResolveNarration(gctx, ws, videoID, i, seg, voice),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prepared, nil
}

// assetName reduces a URL or path to the file name looked up in the assets
// directory.
func assetName(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		source = u.Path
	}
	name := path.Base(filepath.ToSlash(source))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
