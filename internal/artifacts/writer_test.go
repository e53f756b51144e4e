package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/models"
)

func sampleBundle() *models.OutputBundle {
	v1 := models.NewMock(models.KindVideo, "https://mock-veo3-output.com/videos/a.mp4").WithMeta("style_preset", "cinematic_wide")
	v2 := models.NewFailure(models.KindVideo, errors.New("quota"))
	v2.Metadata = nil
	v3 := models.NewMock(models.KindVideo, "https://mock-veo3-output.com/videos/c.mp4").WithMeta("style_preset", "epic_dramatic")
	final := models.NewMock(models.KindMedia, "mock:///tmp/optimized_tiktok.mp4")

	return &models.OutputBundle{
		RunID:     "run-1",
		Topic:     "minimalist hoodies",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		ProductionPlan: models.ProductionPlan{
			Scenes: json.RawMessage(`{"scenes":[{"scene_id":1}]}`),
		},
		PlanValidated: true,
		Stages: []models.StageTrace{
			{Name: "trend_analysis", Outcome: models.OutcomeMock, Validated: true},
		},
		GeneratedAssets: models.GeneratedAssets{
			Videos: []models.GenerationResult{v1, v2, v3},
			Audio: &models.ProcessedAudio{
				ScriptTitle:     "Script: hoodies",
				VoiceoverTracks: make([]models.GenerationResult, 6),
				SoundEffects:    make([]models.GenerationResult, 9),
			},
			FinalOutput: &final,
		},
	}
}

func TestWriter_LaysOutRunDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, "output")

	dir, err := w.Write(sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("output", "viral_video_20260314_092653"), dir)

	for _, name := range []string{
		PlanFile,
		LogFile,
		ReadmeFile,
		filepath.Join(AssetsDir, "scene_1_metadata.json"),
		filepath.Join(AssetsDir, "scene_3_metadata.json"),
		filepath.Join(AssetsDir, AudioScriptFile),
	} {
		ok, err := afero.Exists(fs, filepath.Join(dir, name))
		require.NoError(t, err)
		assert.True(t, ok, "missing %s", name)
	}

	// The failed scene has no metadata, so position 2 is skipped.
	ok, _ := afero.Exists(fs, filepath.Join(dir, AssetsDir, "scene_2_metadata.json"))
	assert.False(t, ok)

	var meta map[string]any
	data, err := afero.ReadFile(fs, filepath.Join(dir, AssetsDir, "scene_3_metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "epic_dramatic", meta["style_preset"])

	var log map[string]any
	data, err = afero.ReadFile(fs, filepath.Join(dir, LogFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &log))
	assert.Equal(t, "run-1", log["run_id"])
	assets, ok := log["generated_assets"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, assets["videos"], 3)
}

func TestWriter_SameSecondGetsSuffix(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, "output")

	first, err := w.Write(sampleBundle())
	require.NoError(t, err)
	second, err := w.Write(sampleBundle())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "_2"))
}

func TestWriter_ConcurrentWritesGetDistinctDirs(t *testing.T) {
	const writers = 64
	w := NewWriter(afero.NewOsFs(), t.TempDir())

	var wg sync.WaitGroup
	dirs := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := sampleBundle()
			b.RunID = fmt.Sprintf("run-%d", i)
			dirs[i], errs[i] = w.Write(b)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, writers)
	for i, dir := range dirs {
		require.NoError(t, errs[i])
		assert.False(t, seen[dir], "%s written twice", dir)
		seen[dir] = true

		var log map[string]any
		data, err := afero.ReadFile(w.Fs(), filepath.Join(dir, LogFile))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &log))
		assert.Equal(t, fmt.Sprintf("run-%d", i), log["run_id"])
	}
	assert.Len(t, seen, writers)
}

func TestWriter_NoAudioScriptWithoutAudio(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := sampleBundle()
	b.GeneratedAssets.Audio = nil

	dir, err := NewWriter(fs, "out").Write(b)
	require.NoError(t, err)

	ok, _ := afero.Exists(fs, filepath.Join(dir, AssetsDir, AudioScriptFile))
	assert.False(t, ok)
}

func TestWriter_RawOutputPlan(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := sampleBundle()
	b.ProductionPlan = models.ProductionPlan{RawOutput: "the model rambled"}

	dir, err := NewWriter(fs, "out").Write(b)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, filepath.Join(dir, PlanFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw_output":"the model rambled"}`, string(data))
}

func TestWriter_PropagatesIOErrors(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := NewWriter(fs, "out").Write(sampleBundle())
	assert.Error(t, err)
}

func TestRenderReadme(t *testing.T) {
	b := sampleBundle()
	out, err := RenderReadme(b, b.Timestamp)
	require.NoError(t, err)
	readme := string(out)

	assert.Contains(t, readme, "**Scenes Generated**: 3")
	assert.Contains(t, readme, "**Audio Tracks**: 6")
	assert.Contains(t, readme, "**Sound Effects**: 9")
	assert.Contains(t, readme, "| trend_analysis | mock | true |")
	assert.Contains(t, readme, "Generation successful")
	assert.NotContains(t, readme, "Partial generation")

	b.Error = "stitch exploded"
	out, err = RenderReadme(b, b.Timestamp)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Partial generation: stitch exploded")
}
