package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
)

// ---------------------------------------------------------------------------
// ElevenLabs Speech Service
// Uses ElevenLabs REST API for narration, character dialogue and sound
// effects. Model: eleven_flash_v2_5 for speech, eleven_text_to_sound_v2 for
// effects.
// ---------------------------------------------------------------------------

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_flash_v2_5"
	elevenLabsSoundModel     = "eleven_text_to_sound_v2"
	elevenLabsOutputFormat   = "mp3_44100_128" // High-quality MP3
	elevenLabsClientName     = "ElevenLabs"
	elevenLabsMockSFXHost    = "mock-elevenlabs.com"

	defaultVoice        = "existential_narrator"
	defaultEmotion      = "neutral"
	defaultTimeMarker   = "00:00"
	defaultSFXDuration  = 2.0
	defaultSFXVolume    = 50
	speechWordsPerMin   = 150.0
	voiceSimilarity     = 0.85
	mockAudioTextPrefix = 20
)

// Voices maps the catalogue names onto ElevenLabs voice ids.
var Voices = map[string]string{
	"existential_narrator": "21m00Tcm4TlvDq8ikWAM",
	"gen_z_entrepreneur":   "AZnzlk1XvdvUeBnXmlld",
	"confused_millennial":  "EXAVITQu4vr4xnSDxMaL",
	"corporate_overlord":   "ErXwobaYiN019PkySvjV",
	"therapy_voice":        "MF3mGyEYCl7XYWbV9V6O",
	"hype_beast":           "TxGEqnHWrfWFTfGW9XjX",
	"philosophy_bro":       "VR6AewLTigWG4xSOukaG",
	"karen_energy":         "pNInz6obpgDQGcFmaJgB",
	"zoomer_chaos":         "yoZ06aMxZJJ28mfd3POQ",
}

// emotionProfile holds the voice settings used for one delivery emotion.
type emotionProfile struct {
	Stability float64
	StyleName string
	Style     float64 // style exaggeration sent to the API
}

var emotionProfiles = map[string]emotionProfile{
	"neutral":  {Stability: 0.75, StyleName: "news", Style: 0.0},
	"excited":  {Stability: 0.5, StyleName: "entertainment", Style: 0.6},
	"calm":     {Stability: 0.9, StyleName: "meditation", Style: 0.1},
	"chaotic":  {Stability: 0.3, StyleName: "sports_commentary", Style: 0.8},
	"dramatic": {Stability: 0.6, StyleName: "documentary", Style: 0.5},
	"deadpan":  {Stability: 0.95, StyleName: "news", Style: 0.0},
	"manic":    {Stability: 0.2, StyleName: "advertisement", Style: 0.9},
	"resigned": {Stability: 0.8, StyleName: "audiobook", Style: 0.2},
}

// EmotionProfile returns the settings for emotion, neutral when unknown.
func EmotionProfile(emotion string) emotionProfile {
	if p, ok := emotionProfiles[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return p
	}
	return emotionProfiles[defaultEmotion]
}

// NormalizeVoice turns a display name like "Existential narrator" into the
// catalogue key "existential_narrator".
func NormalizeVoice(voice string) string {
	v := strings.ToLower(strings.TrimSpace(voice))
	v = strings.Join(strings.Fields(v), "_")
	if v == "" {
		return defaultVoice
	}
	return v
}

// VoiceID resolves a voice name. Names outside the catalogue are assumed to be
// raw ElevenLabs voice ids and passed through.
func VoiceID(voice string) string {
	if id, ok := Voices[NormalizeVoice(voice)]; ok {
		return id
	}
	return strings.TrimSpace(voice)
}

// CharacterVoice picks the catalogue voice for a dialogue character.
func CharacterVoice(character string) string {
	c := strings.ToLower(character)
	switch {
	case strings.Contains(c, "person 1"), strings.Contains(c, "background"):
		return "confused_millennial"
	case strings.Contains(c, "person 2"):
		return "gen_z_entrepreneur"
	case strings.Contains(c, "child"):
		return "zoomer_chaos"
	case strings.Contains(c, "mother"), strings.Contains(c, "parent"):
		return "karen_energy"
	case strings.Contains(c, "narrator"):
		return "existential_narrator"
	default:
		return "philosophy_bro"
	}
}

// EstimateSpeechDuration estimates spoken length in seconds at 150 words per
// minute, rounded to a tenth of a second.
func EstimateSpeechDuration(text string) float64 {
	words := len(strings.Fields(text))
	seconds := float64(words) / speechWordsPerMin * 60
	return math.Round(seconds*10) / 10
}

// ElevenLabsService handles speech and sound effects via ElevenLabs API.
type ElevenLabsService struct {
	cfg      config.SpeechConfig
	mockMode bool
	client   *http.Client
}

// NewElevenLabsService creates the speech client. Without an API key the
// service runs in mock mode.
func NewElevenLabsService(cfg config.SpeechConfig) *ElevenLabsService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = elevenLabsDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ModelID == "" {
		cfg.ModelID = elevenLabsDefaultModel
	}
	if cfg.SoundModelID == "" {
		cfg.SoundModelID = elevenLabsSoundModel
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	s := &ElevenLabsService{
		cfg:      cfg,
		mockMode: cfg.APIKey == "",
		client:   &http.Client{Timeout: timeout},
	}
	if s.mockMode {
		warnMockMode(elevenLabsClientName, "ElevenLabs API key", "ELEVENLABS_API_KEY")
	}
	return s
}

func (s *ElevenLabsService) MockMode() bool { return s.mockMode }

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type soundGenerationRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
	ModelID         string  `json:"model_id,omitempty"`
}

// GenerateVoice synthesizes text with the named voice and emotion. It never
// fails: live errors degrade to a fallback result.
func (s *ElevenLabsService) GenerateVoice(ctx context.Context, text, voice, emotion string) models.GenerationResult {
	voice = NormalizeVoice(voice)
	if emotion == "" {
		emotion = defaultEmotion
	}

	if s.mockMode {
		return s.mockVoice(text, voice, emotion)
	}

	profile := EmotionProfile(emotion)
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.cfg.ModelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       profile.Stability,
			SimilarityBoost: voiceSimilarity,
			Style:           profile.Style,
			UseSpeakerBoost: true,
		},
	}

	voiceID := VoiceID(voice)
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", s.cfg.BaseURL, voiceID, elevenLabsOutputFormat)

	log.Printf("[ElevenLabs] Generating speech (voice=%s, emotion=%s, model=%s, textLen=%d)",
		voice, emotion, s.cfg.ModelID, len(text))

	audioData, err := s.post(ctx, url, reqBody)
	if err != nil {
		log.Printf("[ElevenLabs] Speech generation failed: %v", err)
		return s.mockVoice(text, voice, emotion).AsFallback(err)
	}

	duration := EstimateSpeechDuration(text)
	log.Printf("[ElevenLabs] Speech generated (%d bytes, estimated %.1fs)", len(audioData), duration)

	filename := fmt.Sprintf("%s_%d.mp3", voice, time.Now().Unix())
	r := models.NewSuccess(models.KindVoice, filename)
	r.Filename = filename
	r.AudioData = audioData
	r.AudioBytes = len(audioData)
	r.Duration = duration
	r.Text = text
	r.Voice = voice
	r.Emotion = emotion
	r.Metadata = map[string]any{
		"voice_id":         voiceID,
		"model":            s.cfg.ModelID,
		"stability":        profile.Stability,
		"style":            profile.StyleName,
		"similarity_boost": voiceSimilarity,
		"format":           "mp3",
	}
	return r
}

func (s *ElevenLabsService) mockVoice(text, voice, emotion string) models.GenerationResult {
	filename := fmt.Sprintf("mock_%s_%d.mp3", voice, time.Now().Unix())
	audio := []byte("MOCK_AUDIO_" + clipRunes(text, mockAudioTextPrefix))
	profile := EmotionProfile(emotion)

	r := models.NewMock(models.KindVoice, filename)
	r.Filename = filename
	r.AudioData = audio
	r.AudioBytes = len(audio)
	r.Duration = EstimateSpeechDuration(text)
	r.Text = text
	r.Voice = voice
	r.Emotion = emotion
	r.Metadata = map[string]any{
		"voice_id":          VoiceID(voice),
		"stability":         profile.Stability,
		"style":             profile.StyleName,
		"mock_mode":         true,
		"actual_generation": "Would generate audio if API key was present",
	}
	return r
}

// GenerateDialogue voices each line with the voice mapped from its character,
// keeping input order. Live calls are spaced by the configured dialogue delay.
func (s *ElevenLabsService) GenerateDialogue(ctx context.Context, lines []models.DialogueLine) []models.GenerationResult {
	results := make([]models.GenerationResult, 0, len(lines))
	for i, line := range lines {
		if i > 0 && !s.mockMode {
			if err := sleepCtx(ctx, s.cfg.DialogueDelay()); err != nil {
				for _, rest := range lines[i:] {
					r := models.NewFailure(models.KindDialogue, fmt.Errorf("dialogue cancelled: %w", err))
					r.Character = rest.Character
					r.TimeMarker = timeMarker(rest.Time)
					results = append(results, r)
				}
				return results
			}
		}

		voice := CharacterVoice(line.Character)
		r := s.GenerateVoice(ctx, line.Text, voice, "neutral")
		r.Kind = models.KindDialogue
		r.Character = line.Character
		r.Delivery = line.Delivery
		r.TimeMarker = timeMarker(line.Time)
		results = append(results, r)
	}
	return results
}

// GenerateSoundEffect renders a described effect of duration seconds.
func (s *ElevenLabsService) GenerateSoundEffect(ctx context.Context, description string, duration float64) models.GenerationResult {
	if duration <= 0 {
		duration = defaultSFXDuration
	}
	if s.mockMode {
		return s.mockSoundEffect(description, duration)
	}

	log.Printf("[ElevenLabs] Generating sound effect %q (%.1fs)", truncateString(description, 60), duration)

	audioData, err := s.post(ctx, s.cfg.BaseURL+"/v1/sound-generation", soundGenerationRequest{
		Text:            description,
		DurationSeconds: duration,
		ModelID:         s.cfg.SoundModelID,
	})
	if err != nil {
		log.Printf("[ElevenLabs] Sound effect generation failed: %v", err)
		return s.mockSoundEffect(description, duration).AsFallback(err)
	}

	filename := fmt.Sprintf("sfx_%d.mp3", time.Now().UnixNano())
	r := models.NewSuccess(models.KindSoundEffect, filename)
	r.Filename = filename
	r.AudioData = audioData
	r.AudioBytes = len(audioData)
	r.Duration = duration
	r.Text = description
	r.Metadata = map[string]any{
		"model":  s.cfg.SoundModelID,
		"format": "mp3",
	}
	return r
}

func (s *ElevenLabsService) mockSoundEffect(description string, duration float64) models.GenerationResult {
	effectID := fmt.Sprintf("mock_sfx_%d", time.Now().Unix())
	r := models.NewMock(models.KindSoundEffect, fmt.Sprintf("https://%s/sfx/%s.mp3", elevenLabsMockSFXHost, effectID))
	r.GenerationID = effectID
	r.Filename = effectID + ".mp3"
	r.Duration = duration
	r.Text = description
	r.Metadata = map[string]any{
		"effect_id":         effectID,
		"mock_mode":         true,
		"actual_generation": fmt.Sprintf("Would generate %s sound for %gs", description, duration),
	}
	return r
}

// ProcessScript voices a whole audio script: every voiceover line, the
// dialogue track and every sound effect, in that order.
func (s *ElevenLabsService) ProcessScript(ctx context.Context, script models.AudioScript) models.ProcessedAudio {
	out := models.ProcessedAudio{
		Timestamp:       time.Now().UTC(),
		ScriptTitle:     script.Title,
		VoiceoverTracks: []models.GenerationResult{},
		DialogueTracks:  []models.GenerationResult{},
		SoundEffects:    []models.GenerationResult{},
		ProcessingLog:   []string{},
	}

	for _, vo := range script.Voiceover {
		timeRange := vo.Time
		if timeRange == "" {
			timeRange = defaultTimeMarker
		}
		voice := vo.Voice
		if voice == "" {
			voice = defaultVoice
		}
		emotion := vo.Emotion
		if emotion == "" {
			emotion = defaultEmotion
		}

		r := s.GenerateVoice(ctx, vo.Text, voice, emotion)
		r.TimeRange = timeRange
		r.Delivery = vo.Delivery
		out.VoiceoverTracks = append(out.VoiceoverTracks, r)
		out.ProcessingLog = append(out.ProcessingLog, "Generated voiceover for "+timeRange)
	}

	if len(script.Dialogue) > 0 {
		out.DialogueTracks = s.GenerateDialogue(ctx, script.Dialogue)
		out.ProcessingLog = append(out.ProcessingLog, fmt.Sprintf("Generated %d dialogue clips", len(out.DialogueTracks)))
	}

	for _, sfx := range script.SoundEffects {
		volume := sfx.Volume
		if volume == 0 {
			volume = defaultSFXVolume
		}
		r := s.GenerateSoundEffect(ctx, sfx.Effect, defaultSFXDuration)
		r.TimeMarker = timeMarker(sfx.Time)
		r.Volume = volume
		out.SoundEffects = append(out.SoundEffects, r)
		out.ProcessingLog = append(out.ProcessingLog, "Generated SFX: "+sfx.Effect)
	}

	status := "complete"
	if s.mockMode {
		status = "mock_complete"
	}
	out.Summary = models.AudioSummary{
		TotalVoiceoverClips: len(out.VoiceoverTracks),
		TotalDialogueClips:  len(out.DialogueTracks),
		TotalSoundEffects:   len(out.SoundEffects),
		ProcessingStatus:    status,
	}

	log.Printf("[ElevenLabs] Processed script %q: %d voiceover, %d dialogue, %d sfx (%s)",
		script.Title, out.Summary.TotalVoiceoverClips, out.Summary.TotalDialogueClips, out.Summary.TotalSoundEffects, status)
	return out
}

// SaveAudio writes the in-memory audio of result to path.
func (s *ElevenLabsService) SaveAudio(result models.GenerationResult, path string) bool {
	if len(result.AudioData) == 0 {
		log.Printf("[ElevenLabs] No audio data to save for %s", path)
		return false
	}
	if err := writeFile(path, result.AudioData); err != nil {
		log.Printf("[ElevenLabs] %v", err)
		return false
	}
	return true
}

// post sends body as JSON to url and returns the raw audio response.
func (s *ElevenLabsService) post(ctx context.Context, url string, body any) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, string(body))
	}

	// The response body IS the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}
	return audioData, nil
}

func timeMarker(t string) string {
	if strings.TrimSpace(t) == "" {
		return defaultTimeMarker
	}
	return t
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
