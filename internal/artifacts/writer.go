// Package artifacts persists an output bundle as a run directory.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/afero"

	"github.com/bobarin/viralforge/internal/models"
)

// Files written into every run directory.
const (
	PlanFile        = "production_plan.json"
	LogFile         = "generation_log.json"
	ReadmeFile      = "README.md"
	AssetsDir       = "assets"
	AudioScriptFile = "audio_script.json"

	runDirPrefix = "viral_video_"
	runDirLayout = "20060102_150405"
)

// Writer lays out bundles under Root on an afero filesystem.
type Writer struct {
	fs   afero.Fs
	root string
}

func NewWriter(fs afero.Fs, root string) *Writer {
	return &Writer{fs: fs, root: root}
}

// Fs exposes the filesystem the writer targets.
func (w *Writer) Fs() afero.Fs { return w.fs }

// SceneMetadataFile names the metadata file of the 1-based scene n.
func SceneMetadataFile(n int) string {
	return fmt.Sprintf("scene_%d_metadata.json", n)
}

// Write creates viral_video_<YYYYMMDD_HHMMSS> under the root and fills it.
// A directory that already exists for the same second gets a numeric suffix.
// Any I/O error is returned.
func (w *Writer) Write(bundle *models.OutputBundle) (string, error) {
	if bundle == nil {
		return "", fmt.Errorf("nil bundle")
	}

	ts := bundle.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	dir, err := w.claimRunDir(ts)
	if err != nil {
		return "", err
	}

	assets := filepath.Join(dir, AssetsDir)
	if err := w.fs.Mkdir(assets, 0o755); err != nil {
		return dir, fmt.Errorf("failed to create assets directory: %w", err)
	}

	if err := w.writeJSON(filepath.Join(dir, PlanFile), bundle.ProductionPlan); err != nil {
		return dir, err
	}
	if err := w.writeJSON(filepath.Join(dir, LogFile), bundle); err != nil {
		return dir, err
	}

	for n, meta := range bundle.SceneMetadata() {
		if err := w.writeJSON(filepath.Join(assets, SceneMetadataFile(n)), meta); err != nil {
			return dir, err
		}
	}

	if bundle.GeneratedAssets.Audio != nil {
		if err := w.writeJSON(filepath.Join(assets, AudioScriptFile), bundle.GeneratedAssets.Audio); err != nil {
			return dir, err
		}
	}

	readme, err := RenderReadme(bundle, ts)
	if err != nil {
		return dir, err
	}
	if err := afero.WriteFile(w.fs, filepath.Join(dir, ReadmeFile), readme, 0o644); err != nil {
		return dir, fmt.Errorf("failed to write %s: %w", ReadmeFile, err)
	}

	return dir, nil
}

// claimRunDir creates the run directory for ts. Mkdir fails on an existing
// directory, so two writers in the same second never share one.
func (w *Writer) claimRunDir(ts time.Time) (string, error) {
	if err := w.fs.MkdirAll(w.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output root: %w", err)
	}

	base := filepath.Join(w.root, runDirPrefix+ts.Format(runDirLayout))
	dir := base
	for i := 2; ; i++ {
		err := w.fs.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create run directory: %w", err)
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
}

func (w *Writer) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var readmeTemplate = template.Must(template.New("readme").Parse(`# Viral Video Generation Output

Generated: {{ .Generated }}
Run: {{ .RunID }}
Topic: {{ .Topic }}
{{- if .Brief }}
Brief: {{ .Brief }}
{{- end }}

## Production Summary

- **Scenes Generated**: {{ .Scenes }}
- **Audio Tracks**: {{ .Voiceovers }}
- **Dialogue Clips**: {{ .Dialogue }}
- **Sound Effects**: {{ .SoundEffects }}
- **Final Output**: {{ .FinalOutput }}

## Pipeline Stages

| Stage | Outcome | Validated |
|---|---|---|
{{- range .Stages }}
| {{ .Name }} | {{ .Outcome }} | {{ .Validated }} |
{{- end }}

## Files

- ` + "`production_plan.json`" + `: production plan assembled by the final stage
- ` + "`generation_log.json`" + `: full generation log with every result
- ` + "`assets/`" + `: per-scene metadata and the processed audio script

## Status

{{ if .Error }}Partial generation: {{ .Error }}{{ else }}Generation successful{{ end }}
`))

type readmeData struct {
	Generated    string
	RunID        string
	Topic        string
	Brief        string
	Scenes       int
	Voiceovers   int
	Dialogue     int
	SoundEffects int
	FinalOutput  string
	Stages       []models.StageTrace
	Error        string
}

// RenderReadme renders the human-readable summary of a bundle.
func RenderReadme(bundle *models.OutputBundle, generated time.Time) ([]byte, error) {
	assets := bundle.GeneratedAssets
	data := readmeData{
		Generated:   generated.Format("2006-01-02 15:04:05"),
		RunID:       bundle.RunID,
		Topic:       bundle.Topic,
		Brief:       bundle.Brief,
		Scenes:      len(assets.Videos),
		FinalOutput: "not produced",
		Stages:      bundle.Stages,
		Error:       bundle.Error,
	}
	if assets.Audio != nil {
		data.Voiceovers = len(assets.Audio.VoiceoverTracks)
		data.Dialogue = len(assets.Audio.DialogueTracks)
		data.SoundEffects = len(assets.Audio.SoundEffects)
	}
	if fo := assets.FinalOutput; fo != nil {
		data.FinalOutput = fmt.Sprintf("%s (%s)", fo.Artifact, fo.Status)
		if !fo.OK() {
			data.FinalOutput = fmt.Sprintf("failed (%s)", fo.Error)
		}
	}

	var buf bytes.Buffer
	if err := readmeTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render README: %w", err)
	}
	return buf.Bytes(), nil
}
