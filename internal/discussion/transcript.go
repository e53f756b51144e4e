package discussion

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const maxSlugLen = 50

// TranscriptPath is where the transcript for topic is saved under dir.
func TranscriptPath(dir, topic string) string {
	return filepath.Join(dir, "podcast_"+slug(topic)+".md")
}

// Markdown renders d as a transcript, one section per round.
func Markdown(d *Discussion) string {
	var b strings.Builder
	if d.QuickTakes() {
		fmt.Fprintf(&b, "# Quick Takes: %s\n\n", d.Topic)
	} else {
		fmt.Fprintf(&b, "# Podcast Discussion: %s\n\n", d.Topic)
		fmt.Fprintf(&b, "**Rounds:** %d\n\n", d.Rounds)
	}
	b.WriteString("---\n")

	heading := ""
	for _, e := range d.Entries {
		if h := sectionHeading(e); h != heading {
			heading = h
			fmt.Fprintf(&b, "\n## %s\n", h)
		}
		fmt.Fprintf(&b, "\n### %s\n\n%s\n", e.Title, e.Text)
	}
	return b.String()
}

func sectionHeading(e Entry) string {
	switch e.Kind {
	case KindConclusion:
		return "Final Thoughts"
	case KindTake:
		return "Takes"
	default:
		return fmt.Sprintf("Round %d", e.Round)
	}
}

// SaveTranscript writes the markdown transcript of d to path.
func SaveTranscript(fs afero.Fs, d *Discussion, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(Markdown(d)), 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// SaveAudio writes every voiced entry as NN_<speaker>.mp3 in dir and
// returns the paths written, in conversation order. Entries without audio
// data are skipped.
func SaveAudio(fs afero.Fs, d *Discussion, dir string) ([]string, error) {
	var paths []string
	for i, e := range d.Entries {
		if e.Audio == nil || len(e.Audio.AudioData) == 0 {
			continue
		}
		if len(paths) == 0 {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create audio directory: %w", err)
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("%02d_%s.mp3", i+1, slug(e.Speaker)))
		if err := afero.WriteFile(fs, path, e.Audio.AudioData, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write audio for entry %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if len(out) > maxSlugLen {
		out = strings.TrimSuffix(out[:maxSlugLen], "_")
	}
	if out == "" {
		return "discussion"
	}
	return out
}
