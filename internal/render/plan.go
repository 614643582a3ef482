package render

import "math"

const (
	MinSegmentSeconds     = 2.0
	MaxSegmentSeconds     = 4.0
	DefaultSegmentSeconds = 3.0

	FPS         = 30
	ZoomStart   = 1.0
	ZoomEnd     = 1.2
	FadeSeconds = 0.5

	// MaxNarrationTempo bounds how much narration is sped up when truncation
	// is disabled.
	MaxNarrationTempo = 2.0
)

// Progress checkpoints reported while a job runs.
const (
	ProgressTimelineLoaded = 10
	ProgressSegmentsDone   = 80
	ProgressComplete       = 100
)

// ClampDuration returns the effective clip length for a requested duration.
// A hint of zero or less is treated as unset.
func ClampDuration(hint float64) float64 {
	if hint <= 0 || math.IsNaN(hint) {
		hint = DefaultSegmentSeconds
	}
	return math.Max(MinSegmentSeconds, math.Min(MaxSegmentSeconds, hint))
}

// Span places one segment on the final timeline.
type Span struct {
	Index    int
	Start    float64
	Duration float64
}

// End is the timeline offset at which the span stops.
func (s Span) End() float64 {
	return s.Start + s.Duration
}

// PlanSpans lays clamped durations end to end and returns the total length.
func PlanSpans(durations []float64) ([]Span, float64) {
	spans := make([]Span, len(durations))
	var offset float64
	for i, d := range durations {
		spans[i] = Span{Index: i, Start: offset, Duration: d}
		offset += d
	}
	return spans, offset
}

// MusicPlan describes how a music bed is looped under the narration.
type MusicPlan struct {
	Repeats      int     // number of times the track is played back to back
	TrackLength  float64 // natural length of the music file
	LoopedLength float64 // Repeats * TrackLength
	FinalLength  float64 // trimmed length, equal to the narration
}

// PlanMusicLoop computes how many times a track of musicLen seconds must be
// repeated to cover narrationLen seconds. ok is false when either length is
// not positive.
func PlanMusicLoop(musicLen, narrationLen float64) (plan MusicPlan, ok bool) {
	if musicLen <= 0 || narrationLen <= 0 {
		return MusicPlan{}, false
	}
	repeats := 1
	if musicLen < narrationLen {
		repeats = int(narrationLen/musicLen) + 1
	}
	return MusicPlan{
		Repeats:      repeats,
		TrackLength:  musicLen,
		LoopedLength: float64(repeats) * musicLen,
		FinalLength:  narrationLen,
	}, true
}

// SegmentProgress is the checkpoint reported after done of total segments
// have been composed.
func SegmentProgress(done, total int) int {
	if total <= 0 {
		return ProgressSegmentsDone
	}
	if done > total {
		done = total
	}
	span := ProgressSegmentsDone - ProgressTimelineLoaded
	return ProgressTimelineLoaded + span*done/total
}

// NarrationTempo is the speed-up needed to fit natural seconds of speech into
// target seconds, bounded to [1, MaxNarrationTempo].
func NarrationTempo(natural, target float64) float64 {
	if natural <= target || target <= 0 {
		return 1
	}
	return math.Min(MaxNarrationTempo, natural/target)
}
