package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
)

// ---------------------------------------------------------------------------
// xAI Grok Imagine Video Generation Service
// Uses the xAI REST API to generate videos from text prompts.
// Follows a deferred request pattern: submit generation → poll by request_id → download.
// ---------------------------------------------------------------------------

const (
	xaiDefaultBaseURL    = "https://api.x.ai/v1"
	xaiDefaultModel      = "grok-imagine-video"
	xaiInitialDelay      = 15 * time.Second // Wait before first poll (videos typically take 30-40s)
	xaiPollMinInterval   = 5 * time.Second  // Start polling every 5s
	xaiPollMaxInterval   = 20 * time.Second // Cap at 20s between polls
	xaiPollBackoffFactor = 1.5              // Multiply interval by 1.5 each attempt
	xaiMaxPollDuration   = 5 * time.Minute  // Hard timeout per clip
	xaiMinDuration       = 1                // xAI minimum video duration
	xaiMaxDuration       = 15               // xAI maximum video duration
	xaiMockHost          = "mock-xai-output.com"
	xaiClientName        = "xAI Video"
)

// XAIVideoService handles video generation via xAI's Grok Imagine Video API.
type XAIVideoService struct {
	cfg        config.VideoConfig
	mockMode   bool
	mock       videoMock
	httpClient *http.Client

	initialDelay time.Duration
	minInterval  time.Duration
	maxInterval  time.Duration
	maxWait      time.Duration
}

// NewXAIVideoService creates a new xAI video generation service. Without an
// API key the service runs in mock mode.
func NewXAIVideoService(cfg config.VideoConfig) *XAIVideoService {
	if cfg.XAIBaseURL == "" {
		cfg.XAIBaseURL = xaiDefaultBaseURL
	}
	if cfg.XAIModel == "" {
		cfg.XAIModel = xaiDefaultModel
	}

	maxWait := xaiMaxPollDuration
	if cfg.MaxWaitSec > 0 {
		maxWait = cfg.MaxWait()
	}

	s := &XAIVideoService{
		cfg:      cfg,
		mockMode: cfg.XAIAPIKey == "",
		mock:     videoMock{host: xaiMockHost},
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Timeout for individual HTTP calls, not the full poll cycle
		},
		initialDelay: xaiInitialDelay,
		minInterval:  xaiPollMinInterval,
		maxInterval:  xaiPollMaxInterval,
		maxWait:      maxWait,
	}
	if s.mockMode {
		warnMockMode(xaiClientName, "xAI API key", "XAI_API_KEY")
	}
	return s
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// xaiGenerationRequest is the body for POST /v1/videos/generations
type xaiGenerationRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	Duration    int    `json:"duration,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// xaiGenerationResponse is the response from POST /v1/videos/generations
type xaiGenerationResponse struct {
	RequestID string `json:"request_id"`
}

// xaiVideoResult is the unified response from GET /v1/videos/{request_id}.
//
// xAI returns two different shapes depending on state:
//   - Pending: {"status":"pending"}
//   - Completed: {"video":{"url":"...","duration":8,"respect_moderation":true},"model":"grok-imagine-video"}
//     (no "status" field once completed, so status is "")
//   - Failed: {"status":"failed","error":"..."}
type xaiVideoResult struct {
	Status string          `json:"status"`
	Video  *xaiVideoOutput `json:"video,omitempty"`
	Model  string          `json:"model,omitempty"`
	Error  string          `json:"error"`
}

type xaiVideoOutput struct {
	URL               string `json:"url"`
	Duration          int    `json:"duration"`
	RespectModeration bool   `json:"respect_moderation"`
}

func (r *xaiVideoResult) completed() bool {
	return r.Video != nil && r.Video.URL != ""
}

func (s *XAIVideoService) MockMode() bool { return s.mockMode }

// GenerateScene submits one scene, waits for it and returns the hosted video
// URL. Live failures are logged and replaced by a fallback result.
func (s *XAIVideoService) GenerateScene(ctx context.Context, scene models.Scene) models.GenerationResult {
	if s.mockMode {
		return s.mock.result(scene)
	}

	result, err := s.generate(ctx, scene)
	if err != nil {
		log.Printf("[xAI Video] Generation failed for scene %d: %v", scene.SceneID, err)
		return s.mock.fallback(scene, err)
	}
	return result
}

func (s *XAIVideoService) GenerateBatch(ctx context.Context, scenes []models.Scene) []models.GenerationResult {
	return generateBatch(ctx, xaiClientName, scenes, !s.mockMode, s.cfg.BatchDelay(), s.GenerateScene)
}

func (s *XAIVideoService) generate(ctx context.Context, scene models.Scene) (models.GenerationResult, error) {
	prompt := BuildScenePrompt(scene)

	// Clamp duration to xAI's allowed range
	durationSec := int(scene.EffectiveDuration() + 0.5)
	if durationSec < xaiMinDuration {
		durationSec = xaiMinDuration
	}
	if durationSec > xaiMaxDuration {
		durationSec = xaiMaxDuration
	}

	reqBody := xaiGenerationRequest{
		Prompt:      prompt,
		Model:       s.cfg.XAIModel,
		Duration:    durationSec,
		AspectRatio: s.cfg.AspectRatio,
		Resolution:  s.cfg.Resolution,
	}

	log.Printf("[xAI Video] Starting video generation (scene=%d, promptLen=%d, duration=%ds, aspect=%s)",
		scene.SceneID, len(prompt), durationSec, s.cfg.AspectRatio)

	start := time.Now()
	requestID, err := s.submitGeneration(ctx, reqBody)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("failed to submit video generation: %w", err)
	}

	log.Printf("[xAI Video] Generation submitted, request_id=%s", requestID)

	result, err := s.pollForResult(ctx, requestID)
	if err != nil {
		return models.GenerationResult{}, err
	}

	log.Printf("[xAI Video] Video ready (duration=%ds): %s", result.Video.Duration, truncateString(result.Video.URL, 80))

	r := models.NewSuccess(models.KindVideo, result.Video.URL)
	r.SceneID = scene.SceneID
	r.GenerationID = requestID
	r.Duration = float64(result.Video.Duration)
	r.Metadata = map[string]any{
		"prompt_used":        prompt,
		"duration":           result.Video.Duration,
		"style_preset":       StylePreset(scene.Type),
		"scene_description":  sceneDescription(scene),
		"model":              result.Model,
		"respect_moderation": result.Video.RespectModeration,
		"processing_time":    time.Since(start).Round(time.Second).String(),
	}
	return r, nil
}

// submitGeneration sends the initial video generation request and returns the request_id.
func (s *XAIVideoService) submitGeneration(ctx context.Context, reqBody xaiGenerationRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.XAIBaseURL+"/videos/generations", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.XAIAPIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("xAI returned status %d: %s", resp.StatusCode, string(body))
	}

	var genResp xaiGenerationResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse generation response: %w (body: %s)", err, string(body))
	}

	if genResp.RequestID == "" {
		return "", fmt.Errorf("no request_id in generation response: %s", string(body))
	}

	return genResp.RequestID, nil
}

// pollForResult polls GET /v1/videos/{request_id} until the video is ready or an error occurs.
//
// Polling strategy: exponential backoff starting at 5s, scaling by 1.5x up to a 20s cap,
// after an initial 15s wait. Hard timeout: 5 minutes per clip unless configured.
func (s *XAIVideoService) pollForResult(ctx context.Context, requestID string) (*xaiVideoResult, error) {
	deadline := time.Now().Add(s.maxWait)
	pollCount := 0
	currentInterval := s.minInterval

	if err := sleepCtx(ctx, s.initialDelay); err != nil {
		return nil, fmt.Errorf("video generation cancelled during initial wait: %w", err)
	}

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video generation timed out after %v (polled %d times, request_id=%s)", s.maxWait, pollCount, requestID)
		}

		pollCount++

		result, err := s.getVideoResult(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll video result (attempt %d): %w", pollCount, err)
		}

		if result.completed() {
			log.Printf("[xAI Video] Poll %d: completed (video url present, duration=%ds)", pollCount, result.Video.Duration)
			return result, nil
		}

		log.Printf("[xAI Video] Poll %d: status=%s (next poll in %v)", pollCount, result.Status, currentInterval)

		if result.Status == "failed" {
			errMsg := result.Error
			if errMsg == "" {
				errMsg = "unknown error"
			}
			return nil, fmt.Errorf("video generation failed: %s (request_id=%s)", errMsg, requestID)
		}

		if err := sleepCtx(ctx, currentInterval); err != nil {
			return nil, fmt.Errorf("video generation cancelled: %w", err)
		}

		// Increase interval: 5s → 7.5s → 11.25s → 16.8s → 20s (capped)
		next := time.Duration(float64(currentInterval) * xaiPollBackoffFactor)
		if next > s.maxInterval {
			next = s.maxInterval
		}
		currentInterval = next
	}
}

// getVideoResult fetches the current status of a video generation request.
func (s *XAIVideoService) getVideoResult(ctx context.Context, requestID string) (*xaiVideoResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/videos/%s", s.cfg.XAIBaseURL, requestID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.XAIAPIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// xAI returns 202 with {"status":"pending"} while the video is being generated.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("xAI returned status %d: %s", resp.StatusCode, string(body))
	}

	var result xaiVideoResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse video result: %w (body: %s)", err, string(body))
	}

	return &result, nil
}

// Status reports a generation by request id.
func (s *XAIVideoService) Status(ctx context.Context, generationID string) models.StatusRecord {
	if s.mockMode {
		return s.mock.status(generationID)
	}

	record := models.StatusRecord{GenerationID: generationID}
	result, err := s.getVideoResult(ctx, generationID)
	if err != nil {
		record.Status = "error"
		record.Error = err.Error()
		return record
	}

	switch {
	case result.completed():
		record.Status = "completed"
		record.Progress = 100
		record.Artifact = result.Video.URL
	case strings.EqualFold(result.Status, "failed"):
		record.Status = "failed"
		record.Error = result.Error
	default:
		record.Status = "processing"
		record.Progress = 50
		record.EstimatedTimeRemaining = int(s.minInterval.Seconds())
	}
	return record
}

// Download fetches the video behind ref into path.
func (s *XAIVideoService) Download(ctx context.Context, ref, path string) bool {
	// Use a longer timeout for video download (videos can be large)
	downloadClient := &http.Client{Timeout: 120 * time.Second}
	return downloadArtifact(ctx, downloadClient, xaiClientName, ref, path, nil)
}
