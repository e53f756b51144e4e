// Package production runs one complete job: the reasoning pipeline, asset
// realization through the capability clients, and the output bundle.
package production

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bobarin/viralforge/internal/artifacts"
	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/pipeline"
	"github.com/bobarin/viralforge/internal/services"
)

const (
	defaultMusicVolume  = 30
	defaultTitleSeconds = 3
)

// VideoClient renders scenes and materializes the results.
type VideoClient interface {
	GenerateBatch(ctx context.Context, scenes []models.Scene) []models.GenerationResult
	Download(ctx context.Context, ref, path string) bool
}

// SpeechClient voices an audio script.
type SpeechClient interface {
	ProcessScript(ctx context.Context, script models.AudioScript) models.ProcessedAudio
	SaveAudio(result models.GenerationResult, path string) bool
}

// MediaClient assembles the final video.
type MediaClient interface {
	Stitch(ctx context.Context, files []string, output, transition string) models.GenerationResult
	MixLayers(ctx context.Context, video string, layers []models.AudioLayer, output string) models.GenerationResult
	AddAudioTrack(ctx context.Context, video, audio, output string, volume float64) models.GenerationResult
	OverlayText(ctx context.Context, video, text, output, position string, start, duration float64) models.GenerationResult
	BurnCaptions(ctx context.Context, video, assPath, output string) models.GenerationResult
	OptimizeForPlatform(ctx context.Context, video, platform, output string) models.GenerationResult
}

// BundleWriter persists a finished bundle and returns its location.
type BundleWriter interface {
	Write(bundle *models.OutputBundle) (string, error)
}

// Orchestrator wires the pipeline to the capability clients.
type Orchestrator struct {
	pipeline *pipeline.Pipeline
	video    VideoClient
	speech   SpeechClient
	media    MediaClient
	writer   BundleWriter
	defaults config.PipelineConfig
	tempDir  string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Video    VideoClient
	Speech   SpeechClient
	Media    MediaClient
	Writer   BundleWriter
}

func New(deps Deps, defaults config.PipelineConfig, tempDir string) *Orchestrator {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "viralforge")
	}
	return &Orchestrator{
		pipeline: deps.Pipeline,
		video:    deps.Video,
		speech:   deps.Speech,
		media:    deps.Media,
		writer:   deps.Writer,
		defaults: defaults,
		tempDir:  tempDir,
	}
}

// NewFromConfig builds every client from cfg. Clients without credentials run
// in mock mode; bundles go to the output directory on the OS filesystem.
func NewFromConfig(cfg *config.Config) *Orchestrator {
	reasoner := pipeline.NewReasoner(services.NewOpenAIService(cfg.Reasoning), cfg.Reasoning.Strict)
	return New(Deps{
		Pipeline: pipeline.New(reasoner),
		Video:    services.NewVideoGenerator(cfg.Video),
		Speech:   services.NewElevenLabsService(cfg.Speech),
		Media:    services.NewFFmpegService(cfg.Media),
		Writer:   artifacts.NewWriter(afero.NewOsFs(), cfg.Pipeline.OutputDir),
	}, cfg.Pipeline, cfg.Media.TempDir)
}

// Normalize fills the empty fields of brief from the configured defaults. A
// brief with neither topic nor free-form text gets the default topic.
func (o *Orchestrator) Normalize(brief models.Brief) models.Brief {
	brief.Topic = strings.TrimSpace(brief.Topic)
	brief.Custom = strings.TrimSpace(brief.Custom)
	if brief.Topic == "" && brief.Custom == "" {
		brief.Topic = o.defaults.DefaultTopic
		if brief.Topic == "" {
			brief.Topic = config.DefaultTopic
		}
	}
	if brief.Style == "" {
		brief.Style = o.defaults.Style
	}
	if brief.Tone == "" {
		brief.Tone = o.defaults.Tone
	}
	if brief.Platform == "" {
		brief.Platform = o.defaults.Platform
	}
	if !brief.BurnCaptions {
		brief.BurnCaptions = o.defaults.BurnCaptions
	}
	if !brief.TitleCard {
		brief.TitleCard = o.defaults.TitleCard
	}
	if brief.Music == "" {
		brief.Music = o.defaults.MusicPath
	}
	return brief
}

// WorkDir is where the intermediate and final media of a run are kept.
func (o *Orchestrator) WorkDir(runID string) string {
	return filepath.Join(o.tempDir, runID)
}

// Cleanup removes the work directory of a run. The bundle is not touched.
func (o *Orchestrator) Cleanup(runID string) error {
	if runID == "" {
		return nil
	}
	if err := os.RemoveAll(o.WorkDir(runID)); err != nil {
		return fmt.Errorf("failed to remove work dir: %w", err)
	}
	return nil
}

// Run executes one job and persists its bundle. Failures during asset
// realization are recorded in bundle.Error; only pipeline aborts and write
// errors are returned.
func (o *Orchestrator) Run(ctx context.Context, brief models.Brief) (*models.OutputBundle, string, error) {
	brief = o.Normalize(brief)
	runID := uuid.New().String()

	log.Printf("[Production] Run %s: topic=%q style=%s tone=%s platform=%s", runID, brief.Topic, brief.Style, brief.Tone, brief.Platform)
	if brief.Custom != "" {
		log.Printf("[Production] Run %s: brief=%q", runID, brief.Custom)
	}

	st, err := o.pipeline.Run(ctx, brief)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline failed: %w", err)
	}

	plan, validated := pipeline.ParsePlan(st.FinalText)
	if !validated {
		log.Printf("[Production] Run %s: final plan did not parse, keeping raw output", runID)
	}

	bundle := &models.OutputBundle{
		RunID:          runID,
		Topic:          brief.Topic,
		Brief:          brief.Custom,
		Timestamp:      time.Now(),
		ProductionPlan: plan,
		PlanValidated:  validated,
		Stages:         st.Trace,
	}

	if err := o.realize(ctx, runID, st, brief, plan, &bundle.GeneratedAssets); err != nil {
		log.Printf("[Production] Run %s: asset realization error: %v", runID, err)
		bundle.Error = err.Error()
	}

	dir, err := o.writer.Write(bundle)
	if err != nil {
		return bundle, dir, fmt.Errorf("failed to write output bundle: %w", err)
	}

	log.Printf("[Production] Run %s complete: %s", runID, dir)
	return bundle, dir, nil
}

// realize turns the plan into media. Everything it produced stays in assets
// even when it returns an error; panics are recovered into errors.
func (o *Orchestrator) realize(ctx context.Context, runID string, st *pipeline.State, brief models.Brief,
	plan models.ProductionPlan, assets *models.GeneratedAssets) (err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("asset realization panicked: %v", r)
		}
	}()

	scenes, err := planScenes(plan, st)
	if err != nil {
		return err
	}
	log.Printf("[Production] Generating %d video scenes...", len(scenes))
	assets.Videos = o.video.GenerateBatch(ctx, scenes)

	script, err := planAudio(plan, st)
	if err != nil {
		return err
	}
	log.Println("[Production] Generating audio tracks...")
	audio := o.speech.ProcessScript(ctx, script)
	assets.Audio = &audio

	workDir := o.WorkDir(runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}

	var files []string
	for i, v := range assets.Videos {
		if !v.OK() {
			continue
		}
		sceneID := v.SceneID
		if sceneID == 0 {
			sceneID = i + 1
		}
		path := filepath.Join(workDir, fmt.Sprintf("scene_%d.mp4", sceneID))
		if !o.video.Download(ctx, v.Artifact, path) {
			log.Printf("[Production] Scene %d could not be materialized, skipping", sceneID)
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		log.Println("[Production] No video clips to stitch")
		return nil
	}

	log.Printf("[Production] Stitching %d clips...", len(files))
	stitchedPath := filepath.Join(workDir, "stitched.mp4")
	stitched := o.media.Stitch(ctx, files, stitchedPath, services.TransitionFade)
	assets.Stitched = &stitched

	layers := o.voiceoverLayers(audio.VoiceoverTracks, workDir)
	if len(layers) == 0 || !stitched.OK() {
		return nil
	}

	mixedPath := filepath.Join(workDir, "mixed.mp4")
	mixed := o.media.MixLayers(ctx, stitchedPath, layers, mixedPath)
	assets.Mixed = &mixed
	current := mixedPath

	if brief.Music != "" {
		log.Printf("[Production] Adding music track %s", filepath.Base(brief.Music))
		scoredPath := filepath.Join(workDir, "scored.mp4")
		music := o.media.AddAudioTrack(ctx, current, brief.Music, scoredPath, o.musicVolume())
		assets.Music = &music
		if produced(music) {
			current = scoredPath
		}
	}

	platform := finalPlatform(plan, st, brief)

	if brief.BurnCaptions {
		if words := services.CaptionWords(audio.VoiceoverTracks); len(words) > 0 {
			assPath := filepath.Join(workDir, "captions.ass")
			if err := services.WriteASSSubtitles(words, services.Preset(platform), assPath); err != nil {
				return fmt.Errorf("failed to write captions: %w", err)
			}
			captionedPath := filepath.Join(workDir, "captioned.mp4")
			captioned := o.media.BurnCaptions(ctx, current, assPath, captionedPath)
			assets.Captions = &captioned
			if produced(captioned) {
				current = captionedPath
			}
		}
	}

	if brief.TitleCard {
		if title, window := titleCard(plan, st); title != "" {
			titledPath := filepath.Join(workDir, "titled.mp4")
			titled := o.media.OverlayText(ctx, current, title, titledPath, "top", 0, window)
			assets.TitleCard = &titled
			if produced(titled) {
				current = titledPath
			}
		}
	}

	log.Printf("[Production] Optimizing for %s...", platform)
	final := o.media.OptimizeForPlatform(ctx, current, platform, filepath.Join(workDir, fmt.Sprintf("optimized_%s.mp4", platform)))
	assets.FinalOutput = &final
	return nil
}

func (o *Orchestrator) musicVolume() float64 {
	v := o.defaults.MusicVolume
	if v <= 0 || v > 100 {
		v = defaultMusicVolume
	}
	return float64(v) / 100
}

// produced reports whether a media step left a file the next step can read.
// Fallback results point at placeholders.
func produced(r models.GenerationResult) bool {
	return r.Outcome == models.OutcomeSuccess || r.Outcome == models.OutcomeMock
}

// voiceoverLayers saves every voiceover that carries audio and places it at
// the start of its time range.
func (o *Orchestrator) voiceoverLayers(tracks []models.GenerationResult, workDir string) []models.AudioLayer {
	var layers []models.AudioLayer
	for i, vo := range tracks {
		if len(vo.AudioData) == 0 {
			continue
		}
		path := filepath.Join(workDir, fmt.Sprintf("voiceover_%d.mp3", i+1))
		if !o.speech.SaveAudio(vo, path) {
			continue
		}
		start := models.RangeStart(vo.TimeRange)
		if start == "" {
			start = "00:00"
		}
		layers = append(layers, models.AudioLayer{File: path, StartTime: start, Volume: 100})
	}
	return layers
}

// planScenes reads the scenes of the final plan. When the plan has none that
// decode, the scene stage's own record is used instead.
func planScenes(plan models.ProductionPlan, st *pipeline.State) ([]models.Scene, error) {
	scenes, err := pipeline.PlanScenes(plan)
	if err == nil {
		return scenes, nil
	}
	if st.Scenes.Valid() {
		log.Printf("[Production] Plan scenes unusable (%v), using the scene stage output", err)
		return st.Scenes.Value.Scenes, nil
	}
	if errors.Is(err, pipeline.ErrNoScenes) {
		return nil, nil
	}
	return nil, fmt.Errorf("scenes: %w", err)
}

func planAudio(plan models.ProductionPlan, st *pipeline.State) (models.AudioScript, error) {
	script, err := pipeline.PlanAudio(plan)
	if err == nil {
		return script, nil
	}
	if st.Audio.Valid() {
		log.Printf("[Production] Plan audio unusable (%v), using the audio stage output", err)
		return *st.Audio.Value, nil
	}
	if errors.Is(err, pipeline.ErrNoAudio) {
		return models.AudioScript{}, nil
	}
	return models.AudioScript{}, fmt.Errorf("audio: %w", err)
}

// titleCard picks the on-screen title and how long it stays up: the plan's
// optimization, then the optimization stage, then the concept title.
func titleCard(plan models.ProductionPlan, st *pipeline.State) (string, float64) {
	var title string
	window := 0
	if opt, err := pipeline.PlanOptimization(plan); err == nil {
		title, window = opt.Title, opt.HookWindowSeconds
	}
	if st.Optimization.Valid() {
		if title == "" {
			title = st.Optimization.Value.Title
		}
		if window <= 0 {
			window = st.Optimization.Value.HookWindowSeconds
		}
	}
	if title == "" && st.Concept.Valid() {
		title = st.Concept.Value.Title
	}
	if window <= 0 {
		window = defaultTitleSeconds
	}
	return strings.TrimSpace(title), float64(window)
}

// finalPlatform prefers the plan's optimization platform, then the
// optimization stage, then the brief, then tiktok.
func finalPlatform(plan models.ProductionPlan, st *pipeline.State, brief models.Brief) string {
	if opt, err := pipeline.PlanOptimization(plan); err == nil && opt.Platform != "" {
		return opt.Platform
	}
	if st.Optimization.Valid() && st.Optimization.Value.Platform != "" {
		return st.Optimization.Value.Platform
	}
	if brief.Platform != "" {
		return brief.Platform
	}
	return services.DefaultPlatform
}
