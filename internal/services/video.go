package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
)

// ---------------------------------------------------------------------------
// Video generation
// Two providers (Veo through the Gen AI SDK, xAI over REST) share the prompt
// builder, the style presets, the mock results and the batch loop below.
// ---------------------------------------------------------------------------

const (
	maxPromptLength      = 2000
	mockVideoPlaceholder = "MOCK_VIDEO_DATA"
	promptQualitySuffix  = "High quality, sharp focus, detailed, professional production"
)

// VideoGenerator is the contract every video provider implements.
type VideoGenerator interface {
	// MockMode reports whether the provider runs without a credential.
	MockMode() bool
	// GenerateScene renders one scene. It never fails: live errors degrade to
	// a fallback result.
	GenerateScene(ctx context.Context, scene models.Scene) models.GenerationResult
	// GenerateBatch renders scenes in order, pausing between live calls.
	GenerateBatch(ctx context.Context, scenes []models.Scene) []models.GenerationResult
	// Status looks up an asynchronous generation.
	Status(ctx context.Context, generationID string) models.StatusRecord
	// Download writes the artifact behind ref to path.
	Download(ctx context.Context, ref, path string) bool
}

// NewVideoGenerator returns the provider selected by cfg.Provider.
func NewVideoGenerator(cfg config.VideoConfig) VideoGenerator {
	if cfg.Provider == config.VideoProviderXAI {
		return NewXAIVideoService(cfg)
	}
	return NewVeoService(cfg)
}

var stylePresets = map[models.SceneType]string{
	models.SceneEstablishing:    "cinematic_wide",
	models.SceneCharacterMoment: "portrait_dramatic",
	models.SceneAction:          "dynamic_motion",
	models.SceneRevelation:      "surreal_artistic",
	models.SceneClimax:          "epic_dramatic",
	models.SceneSetup:           "comedy_bright",
	models.SceneEscalation:      "chaotic_energy",
	models.SceneTwist:           "unexpected_surreal",
	models.SceneCallback:        "nostalgic_warm",
	models.ScenePunchline:       "absurdist_comedy",
}

// StylePreset maps a scene type to the provider style preset.
func StylePreset(t models.SceneType) string {
	if p, ok := stylePresets[models.SceneType(strings.ToLower(string(t)))]; ok {
		return p
	}
	return "versatile_balanced"
}

// BuildScenePrompt turns a scene into a single text prompt, capped at 2000 characters.
func BuildScenePrompt(scene models.Scene) string {
	var modifiers []string
	if scene.CameraMovement != "" {
		modifiers = append(modifiers, "camera: "+scene.CameraMovement)
	}
	if scene.Lighting != "" {
		modifiers = append(modifiers, "lighting: "+scene.Lighting)
	}
	if scene.Mood != "" {
		modifiers = append(modifiers, "mood: "+scene.Mood)
	}
	if scene.ColorGrading != "" {
		modifiers = append(modifiers, "color grading: "+scene.ColorGrading)
	}
	if scene.InspiredBy != "" {
		modifiers = append(modifiers, "visual style inspired by "+scene.InspiredBy)
	}
	modifiers = append(modifiers, "preset: "+StylePreset(scene.Type))

	prompt := strings.TrimSpace(scene.Description)
	prompt += " | Style: " + strings.Join(modifiers, ", ")
	prompt += " | " + promptQualitySuffix

	if r := []rune(prompt); len(r) > maxPromptLength {
		prompt = string(r[:maxPromptLength])
	}
	return prompt
}

// videoMock builds the placeholder results of one provider.
type videoMock struct {
	host string // e.g. "mock-veo3-output.com"
}

func (m videoMock) result(scene models.Scene) models.GenerationResult {
	id := fmt.Sprintf("mock_gen_%d_%d", time.Now().Unix(), scene.SceneID)
	r := models.NewMock(models.KindVideo, fmt.Sprintf("https://%s/videos/%s.mp4", m.host, id))
	r.SceneID = scene.SceneID
	r.GenerationID = id
	r.Duration = scene.EffectiveDuration()
	r.Metadata = map[string]any{
		"prompt_used":       BuildScenePrompt(scene),
		"duration":          scene.EffectiveDuration(),
		"resolution":        "1920x1080",
		"fps":               24,
		"codec":             "h264",
		"mock_mode":         true,
		"actual_generation": "Would generate if API key was present",
		"scene_description": sceneDescription(scene),
		"style_preset":      StylePreset(scene.Type),
		"processing_time":   "2.3s (mock)",
	}
	return r
}

// fallback is the mock result for a live call that failed.
func (m videoMock) fallback(scene models.Scene, cause error) models.GenerationResult {
	r := m.result(scene).AsFallback(cause)
	r.Metadata["actual_generation"] = "Live generation failed; placeholder substituted"
	return r
}

func (m videoMock) status(generationID string) models.StatusRecord {
	return models.StatusRecord{
		GenerationID: generationID,
		Status:       "completed",
		Progress:     100,
		MockMode:     true,
	}
}

func sceneDescription(scene models.Scene) string {
	if strings.TrimSpace(scene.Description) == "" {
		return "No description provided"
	}
	return scene.Description
}

// generateBatch runs gen over scenes in order. Missing scene ids are filled
// with the 1-based position so results line up with their input. When live,
// it pauses delay between consecutive calls; a cancelled pause marks every
// remaining scene as failed.
func generateBatch(ctx context.Context, provider string, scenes []models.Scene, live bool, delay time.Duration,
	gen func(context.Context, models.Scene) models.GenerationResult) []models.GenerationResult {

	results := make([]models.GenerationResult, 0, len(scenes))
	for i, scene := range scenes {
		if scene.SceneID == 0 {
			scene.SceneID = i + 1
		}

		if i > 0 && live {
			if err := sleepCtx(ctx, delay); err != nil {
				for j := i; j < len(scenes); j++ {
					r := models.NewFailure(models.KindVideo, fmt.Errorf("batch cancelled: %w", err))
					r.SceneID = scenes[j].SceneID
					if r.SceneID == 0 {
						r.SceneID = j + 1
					}
					results = append(results, r)
				}
				return results
			}
		}

		log.Printf("[%s] Generating scene %d/%d", provider, i+1, len(scenes))
		results = append(results, gen(ctx, scene))
	}
	return results
}

// downloadArtifact materializes ref at path. Mock references get a placeholder
// file, local files are copied and anything else is fetched over HTTP.
func downloadArtifact(ctx context.Context, client *http.Client, provider, ref, path string, header http.Header) bool {
	if models.IsMockReference(ref) {
		log.Printf("[%s] Mock mode: writing placeholder video to %s", provider, path)
		if err := writeFile(path, []byte(mockVideoPlaceholder)); err != nil {
			log.Printf("[%s] Failed to write placeholder: %v", provider, err)
			return false
		}
		return true
	}

	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		data, err := os.ReadFile(ref)
		if err != nil {
			log.Printf("[%s] Failed to read local artifact %s: %v", provider, ref, err)
			return false
		}
		if err := writeFile(path, data); err != nil {
			log.Printf("[%s] %v", provider, err)
			return false
		}
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		log.Printf("[%s] Failed to create download request: %v", provider, err)
		return false
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[%s] Download request failed: %v", provider, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[%s] Video download returned status %d", provider, resp.StatusCode)
		return false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[%s] Failed to read video data: %v", provider, err)
		return false
	}
	if err := writeFile(path, data); err != nil {
		log.Printf("[%s] %v", provider, err)
		return false
	}

	log.Printf("[%s] Downloaded video to %s (%d bytes)", provider, path, len(data))
	return true
}
