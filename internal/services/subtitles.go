package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobarin/reelsmith/internal/render"
)

// ---------------------------------------------------------------------------
// ASS caption writer
//
// One caption per segment: the whole segment text, bottom-centered, shown for
// the full clip. Font size and side margins scale with the frame width so the
// same file works for every resolution.
// ---------------------------------------------------------------------------

const (
	// Must match a font installed in the Docker image
	captionFontName = "Noto Sans"

	// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	assColorWhite     = "&H00FFFFFF"
	assColorBlack     = "&H00000000"
	assColorSemiBlack = "&H80000000"

	// Alignment 2 = bottom center (numpad layout)
	assAlignBottomCenter = 2
)

// ASSCaptionWriter implements render.CaptionWriter.
type ASSCaptionWriter struct{}

var _ render.CaptionWriter = ASSCaptionWriter{}

// WriteCaptions writes a single-dialogue ASS file for the segment.
func (ASSCaptionWriter) WriteCaptions(spec render.CaptionSpec, outPath string) error {
	text := escapeASSText(spec.Text)
	if text == "" {
		return fmt.Errorf("no caption text")
	}
	if err := os.WriteFile(outPath, []byte(buildASS(spec, text)), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

func buildASS(spec render.CaptionSpec, text string) string {
	fontSize := spec.FontSize()
	margin := spec.SideMargin()
	outline := fontSize / 16
	if outline < 1 {
		outline = 1
	}
	marginV := spec.Height / 12

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", spec.Width)
	fmt.Fprintf(&sb, "PlayResY: %d\n", spec.Height)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,0,0,1,%d,0,%d,%d,%d,%d,1\n",
		captionFontName, fontSize,
		assColorWhite,     // PrimaryColour (text)
		assColorWhite,     // SecondaryColour
		assColorBlack,     // OutlineColour
		assColorSemiBlack, // BackColour (shadow)
		outline,
		assAlignBottomCenter,
		margin, margin, marginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
		formatASSTime(0), formatASSTime(spec.Duration), text)

	return sb.String()
}

// escapeASSText neutralizes override blocks and folds line breaks into ASS
// hard breaks.
func escapeASSText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "{", "\\{")
	text = strings.ReplaceAll(text, "}", "\\}")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\\N")
	return text
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	cs := int(seconds*100 + 0.5)
	hours := cs / 360000
	minutes := (cs % 360000) / 6000
	secs := (cs % 6000) / 100
	centiseconds := cs % 100

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
