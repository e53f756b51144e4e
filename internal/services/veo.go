package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Uses the Google Gen AI SDK to generate one clip per scene from its text
// prompt. Finished clips are downloaded into the cache directory right away
// so the artifact reference is a local path.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel     = "veo-3.1-generate-preview"
	defaultVeoPoll      = 10 * time.Second
	defaultVeoMaxPoll   = 5 * time.Minute // Max time to wait for a single video
	veoMockHost         = "mock-veo3-output.com"
	veoClientName       = "Veo"
	veoPersonGeneration = "allow_adult"
	veoMinClipSeconds   = 4
	veoMaxClipSeconds   = 8
)

// VeoService handles video generation via Google's Veo model.
type VeoService struct {
	cfg      config.VideoConfig
	mockMode bool
	mock     videoMock
	http     *http.Client
}

// NewVeoService creates a new Veo video generation service. Without an API
// key the service runs in mock mode.
func NewVeoService(cfg config.VideoConfig) *VeoService {
	if cfg.VeoModel == "" {
		cfg.VeoModel = defaultVeoModel
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = int(defaultVeoPoll / time.Second)
	}
	if cfg.MaxWaitSec <= 0 {
		cfg.MaxWaitSec = int(defaultVeoMaxPoll / time.Second)
	}

	s := &VeoService{
		cfg:      cfg,
		mockMode: cfg.VeoAPIKey == "",
		mock:     videoMock{host: veoMockHost},
		http:     &http.Client{Timeout: 120 * time.Second},
	}
	if s.mockMode {
		warnMockMode(veoClientName, "VEO3 API key", "VEO3_API_KEY")
	}
	return s
}

func (s *VeoService) MockMode() bool { return s.mockMode }

func (s *VeoService) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.cfg.VeoAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// GenerateScene renders one scene. Live failures are logged and replaced by
// a fallback result.
func (s *VeoService) GenerateScene(ctx context.Context, scene models.Scene) models.GenerationResult {
	if s.mockMode {
		return s.mock.result(scene)
	}

	result, err := s.generate(ctx, scene)
	if err != nil {
		log.Printf("[Veo] Generation failed for scene %d: %v", scene.SceneID, err)
		return s.mock.fallback(scene, err)
	}
	return result
}

func (s *VeoService) GenerateBatch(ctx context.Context, scenes []models.Scene) []models.GenerationResult {
	return generateBatch(ctx, veoClientName, scenes, !s.mockMode, s.cfg.BatchDelay(), s.GenerateScene)
}

func (s *VeoService) generate(ctx context.Context, scene models.Scene) (models.GenerationResult, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return models.GenerationResult{}, err
	}

	prompt := BuildScenePrompt(scene)
	seconds := veoClipSeconds(scene.EffectiveDuration())

	genConfig := &genai.GenerateVideosConfig{
		AspectRatio:      s.cfg.AspectRatio,
		Resolution:       s.cfg.Resolution,
		PersonGeneration: veoPersonGeneration,
		NumberOfVideos:   1,
		DurationSeconds:  genai.Ptr(seconds),
	}

	log.Printf("[Veo] Starting video generation (model=%s, scene=%d, promptLen=%d, duration=%ds)", s.cfg.VeoModel, scene.SceneID, len(prompt), seconds)

	start := time.Now()
	operation, err := client.Models.GenerateVideos(ctx, s.cfg.VeoModel, prompt, nil, genConfig)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("failed to start video generation: %w", err)
	}

	log.Printf("[Veo] Operation started: %s", operation.Name)

	// Poll until done, cancelled, or timed out
	deadline := time.Now().Add(s.cfg.MaxWait())
	pollCount := 0
	for !operation.Done {
		if time.Now().After(deadline) {
			return models.GenerationResult{}, fmt.Errorf("video generation timed out after %v (polled %d times)", s.cfg.MaxWait(), pollCount)
		}

		if err := sleepCtx(ctx, s.cfg.PollInterval()); err != nil {
			return models.GenerationResult{}, fmt.Errorf("video generation cancelled: %w", err)
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return models.GenerationResult{}, fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Veo] Poll %d: done=%v", pollCount, operation.Done)
	}

	video, err := veoFirstVideo(operation)
	if err != nil {
		return models.GenerationResult{}, err
	}

	log.Printf("[Veo] Video ready, downloading...")

	downloadURI := genai.NewDownloadURIFromVideo(video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return models.GenerationResult{}, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	localPath := filepath.Join(s.cfg.CacheDir, fmt.Sprintf("veo_%s_scene_%d.mp4", sanitizeName(operation.Name), scene.SceneID))
	if err := writeFile(localPath, videoBytes); err != nil {
		return models.GenerationResult{}, err
	}

	log.Printf("[Veo] Video generated successfully (%d bytes, %d polls)", len(videoBytes), pollCount)

	r := models.NewSuccess(models.KindVideo, localPath)
	r.SceneID = scene.SceneID
	r.GenerationID = operation.Name
	r.Duration = float64(seconds)
	r.Metadata = map[string]any{
		"prompt_used":       prompt,
		"duration":          seconds,
		"style_preset":      StylePreset(scene.Type),
		"scene_description": sceneDescription(scene),
		"video_uri":         video.URI,
		"model":             s.cfg.VeoModel,
		"processing_time":   time.Since(start).Round(time.Second).String(),
		"bytes":             len(videoBytes),
	}
	return r, nil
}

func veoFirstVideo(operation *genai.GenerateVideosOperation) (*genai.Video, error) {
	// Check for operation-level errors (e.g. invalid request, quota exceeded)
	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		return nil, fmt.Errorf("no response in completed operation %s", operation.Name)
	}

	// Check if videos were blocked by RAI (Responsible AI) safety filters
	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %d video(s) filtered, reasons: %s", operation.Response.RAIMediaFilteredCount, reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 || operation.Response.GeneratedVideos[0].Video == nil {
		return nil, fmt.Errorf("no videos in response for operation %s", operation.Name)
	}

	return operation.Response.GeneratedVideos[0].Video, nil
}

// Status looks up a generation by operation name.
func (s *VeoService) Status(ctx context.Context, generationID string) models.StatusRecord {
	if s.mockMode {
		return s.mock.status(generationID)
	}

	record := models.StatusRecord{GenerationID: generationID}

	client, err := s.newClient(ctx)
	if err != nil {
		record.Status = "error"
		record.Error = err.Error()
		return record
	}

	operation, err := client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: generationID}, nil)
	if err != nil {
		record.Status = "error"
		record.Error = err.Error()
		return record
	}

	if !operation.Done {
		record.Status = "processing"
		record.Progress = 50
		record.EstimatedTimeRemaining = int(s.cfg.PollInterval().Seconds())
		return record
	}

	video, err := veoFirstVideo(operation)
	if err != nil {
		record.Status = "failed"
		record.Error = err.Error()
		return record
	}

	record.Status = "completed"
	record.Progress = 100
	record.Artifact = video.URI
	return record
}

// Download writes the clip behind ref to path. Remote Veo file URIs need the
// API key, local cache paths are copied.
func (s *VeoService) Download(ctx context.Context, ref, path string) bool {
	header := http.Header{}
	if s.cfg.VeoAPIKey != "" {
		header.Set("x-goog-api-key", s.cfg.VeoAPIKey)
	}
	return downloadArtifact(ctx, s.http, veoClientName, ref, path, header)
}

// veoClipSeconds clamps a scene duration into the range Veo accepts.
func veoClipSeconds(d float64) int32 {
	sec := int32(d + 0.5)
	if sec < veoMinClipSeconds {
		sec = veoMinClipSeconds
	}
	if sec > veoMaxClipSeconds {
		sec = veoMaxClipSeconds
	}
	return sec
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
