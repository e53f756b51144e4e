package services

import (
	"fmt"
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

// ---------------------------------------------------------------------------
// Short-form caption generator
//
// Writes word-by-word highlighted captions in ASS (Advanced SubStation Alpha)
// format. Words are shown in small chunks with the currently spoken word
// outlined in purple. Timing comes either from Whisper word timestamps or,
// when only the script is known, from the voiceover time ranges.
// ---------------------------------------------------------------------------

const (
	// How many words to show at once
	wordsPerChunk = 4

	subtitleFontName = "Noto Sans"
	subtitleFontSize = 62 // Scaled for a 1920-height canvas

	// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	assColorWhite     = "&H00FFFFFF"
	assColorBlack     = "&H00000000"
	assColorPurple    = "&H00CC3299" // #9932CC
	assColorSemiBlack = "&H80000000"

	outlineNormal    = 3
	outlineHighlight = 8 // thick border on the active word reads as a pill

	subtitleMarginV = 220
)

// CaptionWords derives word timings from voiceover tracks. Each track's words
// are spread over its estimated duration starting at its range start.
func CaptionWords(tracks []models.GenerationResult) []WordTimestamp {
	var words []WordTimestamp
	for _, track := range tracks {
		fields := strings.Fields(track.Text)
		if len(fields) == 0 {
			continue
		}
		start := float64(models.TimecodeMillis(models.RangeStart(track.TimeRange))) / 1000

		per := mockWordSeconds
		if track.Duration > 0 {
			per = track.Duration / float64(len(fields))
		}
		for i, w := range fields {
			ws := start + float64(i)*per
			words = append(words, WordTimestamp{Word: w, Start: ws, End: ws + per})
		}
	}
	return words
}

// BuildASSSubtitles renders words as an ASS document for a canvas of
// width x height. offsetSec shifts every timestamp.
func BuildASSSubtitles(words []WordTimestamp, width, height int, offsetSec float64) (string, error) {
	if len(words) == 0 {
		return "", fmt.Errorf("no words to generate subtitles from")
	}

	chunks := chunkWords(words, wordsPerChunk)

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", width)
	fmt.Fprintf(&sb, "PlayResY: %d\n", height)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,2,0,1,%d,0,2,40,40,%d,1\n",
		subtitleFontName, subtitleFontSize,
		assColorWhite,     // PrimaryColour (text)
		assColorWhite,     // SecondaryColour
		assColorBlack,     // OutlineColour
		assColorSemiBlack, // BackColour (shadow)
		outlineNormal,
		subtitleMarginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, chunk := range chunks {
		for wordIdx, word := range chunk {
			startTime := word.Start + offsetSec
			var endTime float64

			if wordIdx < len(chunk)-1 {
				// End when the next word starts (seamless transition)
				endTime = chunk[wordIdx+1].Start + offsetSec
			} else {
				endTime = word.End + offsetSec
			}

			fmt.Fprintf(&sb,
				"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
				formatASSTime(startTime),
				formatASSTime(endTime),
				buildHighlightedChunkText(chunk, wordIdx),
			)
		}
	}

	return sb.String(), nil
}

// WriteASSSubtitles renders words for the preset canvas and writes them to path.
func WriteASSSubtitles(words []WordTimestamp, preset PlatformPreset, path string) error {
	doc, err := BuildASSSubtitles(words, preset.Width, preset.Height, 0)
	if err != nil {
		return err
	}
	if err := writeFile(path, []byte(doc)); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

// chunkWords groups words into display chunks of the specified size.
// It also breaks at sentence boundaries (., !, ?) to keep chunks natural.
func chunkWords(words []WordTimestamp, chunkSize int) [][]WordTimestamp {
	var chunks [][]WordTimestamp
	var current []WordTimestamp

	for _, word := range words {
		current = append(current, word)

		isSentenceEnd := strings.ContainsAny(word.Word, ".!?")
		if len(current) >= chunkSize || (isSentenceEnd && len(current) >= 2) {
			chunks = append(chunks, current)
			current = nil
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return chunks
}

// buildHighlightedChunkText builds the ASS text for a chunk where the word at
// activeIdx is highlighted.
//
// Output example: "THE {\3c&H00CC3299\bord8}HOODIE{\r} KNOWS"
func buildHighlightedChunkText(chunk []WordTimestamp, activeIdx int) string {
	var parts []string

	for i, word := range chunk {
		cleanWord := strings.ToUpper(strings.TrimSpace(word.Word))
		cleanWord = strings.NewReplacer("{", "(", "}", ")", "\\", "/").Replace(cleanWord)
		if cleanWord == "" {
			continue
		}

		if i == activeIdx {
			parts = append(parts, fmt.Sprintf(
				"{\\3c%s\\bord%d}%s{\\r}",
				assColorPurple, outlineHighlight, cleanWord,
			))
		} else {
			parts = append(parts, cleanWord)
		}
	}

	return strings.Join(parts, " ")
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centiseconds := int((seconds - float64(int(seconds))) * 100)

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
