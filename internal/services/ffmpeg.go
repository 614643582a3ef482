package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/models"
	"github.com/bobarin/reelsmith/internal/render"
)

// Audio is kept as 44.1kHz stereo PCM until the final mux.
const (
	audioSampleRate = 44100
	audioCodecPCM   = "pcm_s16le"
	audioBitrate    = "192k"
)

// FFmpegService is the ffmpeg/ffprobe backed render.Encoder.
type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	log         *logrus.Entry
}

var _ render.Encoder = (*FFmpegService)(nil)

func NewFFmpegService(logger *logrus.Logger) *FFmpegService {
	return &FFmpegService{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		log:         logging.Component(logger, "ffmpeg"),
	}
}

// RenderSegmentVideo produces one silent clip of exactly spec.Duration seconds.
func (s *FFmpegService) RenderSegmentVideo(ctx context.Context, spec render.SegmentVideoSpec) error {
	args := buildSegmentArgs(spec)
	s.log.WithFields(logrus.Fields{
		"visual":   spec.Source.Kind,
		"style":    spec.Style,
		"duration": spec.Duration,
		"captions": spec.CaptionPath != "",
	}).Debug("rendering segment clip")

	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg render segment (%s) failed: %w", spec.Source.Kind, err)
	}
	return nil
}

// FitAudio speeds narration up by spec.Tempo, then pads or trims it to
// exactly spec.Duration seconds.
func (s *FFmpegService) FitAudio(ctx context.Context, spec render.AudioFitSpec) error {
	args := []string{
		"-i", spec.InPath,
		"-af", buildFitFilter(spec.Tempo, spec.Duration),
		"-ar", strconv.Itoa(audioSampleRate),
		"-ac", "2",
		"-c:a", audioCodecPCM,
		"-y",
		spec.OutPath,
	}
	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg fit audio failed: %w", err)
	}
	return nil
}

// ConcatVideos joins clips that share codec parameters without re-encoding.
func (s *FFmpegService) ConcatVideos(ctx context.Context, paths []string, outPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := outPath + ".txt"
	if err := os.WriteFile(listPath, []byte(buildConcatList(paths)), 0644); err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy", // Copy without re-encoding
		"-y",
		outPath,
	}
	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// BuildNarrationTrack lays the parts end to end. Parts without a path are
// generated silence.
func (s *FFmpegService) BuildNarrationTrack(ctx context.Context, parts []render.NarrationPart, outPath string) error {
	if len(parts) == 0 {
		return fmt.Errorf("no narration parts")
	}
	args := buildNarrationArgs(parts, outPath)
	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg build narration track failed: %w", err)
	}
	return nil
}

// MixMusic loops the music bed spec.Plan.Repeats times, trims it to the
// narration and mixes it underneath at spec.Volume.
func (s *FFmpegService) MixMusic(ctx context.Context, spec render.MusicMixSpec) error {
	args := buildMusicArgs(spec)
	s.log.WithFields(logrus.Fields{
		"music":   spec.MusicPath,
		"repeats": spec.Plan.Repeats,
		"volume":  spec.Volume,
	}).Debug("mixing background music")

	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg mix background music failed: %w", err)
	}
	return nil
}

// Mux writes the final container.
func (s *FFmpegService) Mux(ctx context.Context, spec render.MuxSpec) error {
	if err := s.run(ctx, buildMuxArgs(spec)); err != nil {
		return fmt.Errorf("ffmpeg mux %s failed: %w", spec.Format, err)
	}
	return nil
}

// ProbeDuration returns the duration of a media file in seconds.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeDuration(string(output))
}

func (s *FFmpegService) run(ctx context.Context, args []string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error"}, args...)
	s.log.WithField("args", strings.Join(full, " ")).Trace("exec ffmpeg")

	cmd := exec.CommandContext(ctx, s.ffmpegPath, full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, truncateString(msg, 500))
		}
		return err
	}
	return nil
}

func parseProbeDuration(output string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(output), err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	return d, nil
}

// buildSegmentArgs assembles the ffmpeg command line for one clip.
func buildSegmentArgs(spec render.SegmentVideoSpec) []string {
	fps := spec.FPS
	if fps <= 0 {
		fps = render.FPS
	}
	dur := formatSeconds(spec.Duration)

	var args []string
	switch spec.Source.Kind {
	case models.MediaTypeImage:
		args = append(args, "-loop", "1", "-framerate", strconv.Itoa(fps), "-i", spec.Source.Path)
	case models.MediaTypeVideo:
		args = append(args, "-i", spec.Source.Path)
	default:
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
				ffmpegColor(spec.Source.Background), spec.Width, spec.Height, fps, dur),
		)
	}

	args = append(args,
		"-vf", buildSegmentFilter(spec, fps),
		"-an",
		"-t", dur,
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-y",
		spec.OutPath,
	)
	return args
}

// buildSegmentFilter constructs the -vf chain: fit the source to the frame,
// apply the editing style, then burn in captions.
func buildSegmentFilter(spec render.SegmentVideoSpec, fps int) string {
	var chain []string

	switch spec.Source.Kind {
	case models.MediaTypeVideo:
		// Freeze the last frame when the source is shorter than the clip
		chain = append(chain, fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%s", formatSeconds(spec.Duration)))
		fallthrough
	case models.MediaTypeImage:
		// Match the frame height, then center-crop wider sources and pad
		// narrower ones with the segment background.
		chain = append(chain,
			fmt.Sprintf("scale=-2:%d", spec.Height),
			fmt.Sprintf("crop='min(iw,%d)':%d", spec.Width, spec.Height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:0:color=%s", spec.Width, spec.Height, ffmpegColor(spec.Source.Background)),
		)
	}
	chain = append(chain, "setsar=1")

	switch spec.Style {
	case models.EditingStyleZoom:
		frames := int(spec.Duration*float64(fps) + 0.5)
		if frames < 1 {
			frames = 1
		}
		chain = append(chain, fmt.Sprintf(
			"zoompan=z='%.1f+%.1f*on/%d':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d",
			render.ZoomStart, render.ZoomEnd-render.ZoomStart, frames, spec.Width, spec.Height, fps,
		))
	case models.EditingStyleFade:
		fade := render.FadeSeconds
		if 2*fade > spec.Duration {
			fade = spec.Duration / 2
		}
		chain = append(chain,
			fmt.Sprintf("fade=t=in:st=0:d=%s", formatSeconds(fade)),
			fmt.Sprintf("fade=t=out:st=%s:d=%s", formatSeconds(spec.Duration-fade), formatSeconds(fade)),
		)
	}

	if spec.CaptionPath != "" {
		chain = append(chain, fmt.Sprintf("ass='%s'", escapeFFmpegFilterPath(spec.CaptionPath)))
	}

	chain = append(chain, fmt.Sprintf("fps=%d", fps), "format=yuv420p")
	return strings.Join(chain, ",")
}

func buildFitFilter(tempo, duration float64) string {
	var chain []string
	if tempo > 1 {
		chain = append(chain, fmt.Sprintf("atempo=%.3f", tempo))
	}
	chain = append(chain,
		fmt.Sprintf("apad=whole_dur=%s", formatSeconds(duration)),
		fmt.Sprintf("atrim=0:%s", formatSeconds(duration)),
	)
	return strings.Join(chain, ",")
}

func buildNarrationArgs(parts []render.NarrationPart, outPath string) []string {
	var args []string
	var filter strings.Builder
	var labels strings.Builder

	for i, p := range parts {
		dur := formatSeconds(p.Duration)
		if p.Path == "" {
			args = append(args, "-f", "lavfi", "-t", dur, "-i",
				fmt.Sprintf("anullsrc=r=%d:cl=stereo", audioSampleRate))
		} else {
			args = append(args, "-i", p.Path)
		}
		fmt.Fprintf(&filter,
			"[%d:a]aresample=%d,aformat=channel_layouts=stereo,apad=whole_dur=%s,atrim=0:%s,asetpts=N/SR/TB[a%d];",
			i, audioSampleRate, dur, dur, i)
		fmt.Fprintf(&labels, "[a%d]", i)
	}
	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[aout]", labels.String(), len(parts))

	return append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		"-c:a", audioCodecPCM,
		"-y",
		outPath,
	)
}

func buildMusicArgs(spec render.MusicMixSpec) []string {
	repeats := spec.Plan.Repeats
	if repeats < 1 {
		repeats = 1
	}
	filter := fmt.Sprintf(
		"[1:a]atrim=0:%s,asetpts=N/SR/TB,volume=%.2f[music];[0:a][music]amix=inputs=2:duration=first:normalize=0[aout]",
		formatSeconds(spec.Plan.FinalLength), spec.Volume,
	)
	return []string{
		"-i", spec.NarrationPath, // Input 0: narration track
		"-stream_loop", strconv.Itoa(repeats - 1),
		"-i", spec.MusicPath, // Input 1: background music
		"-filter_complex", filter,
		"-map", "[aout]",
		"-c:a", audioCodecPCM,
		"-y",
		spec.OutPath,
	}
}

func buildMuxArgs(spec render.MuxSpec) []string {
	fps := spec.FPS
	if fps <= 0 {
		fps = render.FPS
	}

	args := []string{"-i", spec.VideoPath}
	if spec.AudioPath != "" {
		args = append(args, "-i", spec.AudioPath, "-map", "0:v", "-map", "1:a")
	} else {
		args = append(args, "-map", "0:v")
	}

	switch spec.Format {
	case "webm":
		args = append(args, "-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "32")
		if spec.AudioPath != "" {
			args = append(args, "-c:a", "libopus", "-b:a", "128k")
		}
	default:
		args = append(args, "-c:v", "copy")
		if spec.AudioPath != "" {
			args = append(args, "-c:a", "aac", "-b:a", audioBitrate)
		}
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, "-r", strconv.Itoa(fps), "-y", spec.OutPath)
}

func buildConcatList(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	return sb.String()
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
// FFmpeg filter strings treat colons, backslashes, and single quotes specially.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// ffmpegColor converts "#rrggbb" to ffmpeg's 0xRRGGBB form. Named colors
// pass through.
func ffmpegColor(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		c = models.DefaultBackground
	}
	if strings.HasPrefix(c, "#") {
		return "0x" + strings.ToUpper(c[1:])
	}
	return c
}

func formatSeconds(s float64) string {
	if s < 0 {
		s = 0
	}
	return strconv.FormatFloat(s, 'f', 3, 64)
}
