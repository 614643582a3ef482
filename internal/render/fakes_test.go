package render

import (
	"context"
	"errors"
	"os"
	"sync"
)

// fakeEncoder records calls and writes empty files so path handling can be
// checked without ffmpeg.
type fakeEncoder struct {
	mu sync.Mutex

	segments  []SegmentVideoSpec
	fits      []AudioFitSpec
	concats   [][]string
	narration [][]NarrationPart
	mixes     []MusicMixSpec
	muxes     []MuxSpec

	durations map[string]float64
	failKinds map[string]bool // visual kinds whose RenderSegmentVideo fails
	failMux   bool
	failFit   bool
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{durations: map[string]float64{}, failKinds: map[string]bool{}}
}

func touch(path string) error {
	return os.WriteFile(path, []byte("x"), 0644)
}

func (f *fakeEncoder) RenderSegmentVideo(ctx context.Context, spec SegmentVideoSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, spec)
	if f.failKinds[string(spec.Source.Kind)] {
		return errors.New("decode failed")
	}
	return touch(spec.OutPath)
}

func (f *fakeEncoder) FitAudio(ctx context.Context, spec AudioFitSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fits = append(f.fits, spec)
	if f.failFit {
		return errors.New("fit failed")
	}
	return touch(spec.OutPath)
}

func (f *fakeEncoder) ConcatVideos(ctx context.Context, paths []string, outPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concats = append(f.concats, append([]string(nil), paths...))
	return touch(outPath)
}

func (f *fakeEncoder) BuildNarrationTrack(ctx context.Context, parts []NarrationPart, outPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.narration = append(f.narration, append([]NarrationPart(nil), parts...))
	return touch(outPath)
}

func (f *fakeEncoder) MixMusic(ctx context.Context, spec MusicMixSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mixes = append(f.mixes, spec)
	return touch(spec.OutPath)
}

func (f *fakeEncoder) Mux(ctx context.Context, spec MuxSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muxes = append(f.muxes, spec)
	if err := touch(spec.OutPath); err != nil {
		return err
	}
	if f.failMux {
		return errors.New("encode failed")
	}
	return nil
}

func (f *fakeEncoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[path]
	if !ok {
		return 0, errors.New("no such file")
	}
	return d, nil
}

type fakeNarrator struct {
	mu       sync.Mutex
	duration float64
	fail     map[string]bool // texts that fail
	calls    []string
}

func (n *fakeNarrator) Narrate(ctx context.Context, text, voice, outPath string) (*Narration, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, text)
	if n.fail[text] {
		return nil, errors.New("tts unavailable")
	}
	if err := touch(outPath); err != nil {
		return nil, err
	}
	return &Narration{Path: outPath, Duration: n.duration}, nil
}

type fakeCaptions struct {
	mu    sync.Mutex
	specs []CaptionSpec
}

func (c *fakeCaptions) WriteCaptions(spec CaptionSpec, outPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs = append(c.specs, spec)
	return touch(outPath)
}
