package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/viralforge/internal/config"
)

const (
	openAIClientName   = "OpenAI"
	defaultOpenAIModel = "gpt-5-mini" // gpt-5-mini best for reasoning and cost efficiency
	maxLogLen          = 2000
	mockWordSeconds    = 0.4
)

// ErrNoCompletion is returned when the backend answers without any choice.
var ErrNoCompletion = errors.New("no response from openai")

// OpenAIService talks to an OpenAI-compatible chat and transcription API.
type OpenAIService struct {
	client   *openai.Client
	model    string
	mockMode bool
}

// NewOpenAIService builds the client. A custom base URL points it at an
// OpenAI-compatible router. Without an API key the service runs in mock mode.
func NewOpenAIService(cfg config.ReasoningConfig) *OpenAIService {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	s := &OpenAIService{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		mockMode: cfg.APIKey == "",
	}
	if s.mockMode {
		warnMockMode(openAIClientName, "OpenAI API key", "OPENAI_API_KEY")
	}
	return s
}

func (s *OpenAIService) MockMode() bool { return s.mockMode }

func (s *OpenAIService) Model() string { return s.model }

// CompletionRequest is one system+user exchange. When Schema is set the
// reply is constrained to it through the JSON-schema response format.
type CompletionRequest struct {
	System     string
	User       string
	SchemaName string
	Schema     json.RawMessage
}

// Complete returns the raw text of the first choice.
func (s *OpenAIService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.User,
			},
		},
		Temperature: 1.0,
	}

	if len(req.Schema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
				Strict: false,
			},
		}
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("openai returned empty content (finish_reason=%s)", resp.Choices[0].FinishReason)
	}

	log.Printf("[OpenAI] %s completion in %v (%d prompt / %d completion tokens)",
		req.SchemaName, time.Since(start).Round(time.Millisecond), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(content) > maxLogLen {
		log.Printf("[OpenAI] raw response (truncated): %s...", content[:maxLogLen])
	}

	return content, nil
}

// ---------------------------------------------------------------------------
// Whisper transcription: word-level timestamps for captions
// ---------------------------------------------------------------------------

// WordTimestamp represents a single word with its precise timing from Whisper.
type WordTimestamp struct {
	Word  string  `json:"word" yaml:"word"`
	Start float64 `json:"start" yaml:"start"` // seconds
	End   float64 `json:"end" yaml:"end"`     // seconds
}

// Transcribe sends audio to Whisper and returns word-level timestamps. In
// mock mode it spaces the words of hint evenly instead.
func (s *OpenAIService) Transcribe(ctx context.Context, audioData []byte, language, hint string) ([]WordTimestamp, error) {
	if s.mockMode {
		words := MockWordTimestamps(hint, 0)
		if len(words) == 0 {
			return nil, fmt.Errorf("mock transcription needs a text hint")
		}
		return words, nil
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("no audio to transcribe")
	}
	if language == "" {
		language = "en"
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audioData),
		FilePath: "audio.mp3", // Filename hint for the API (required by the library)
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: language,
		Prompt:   hint,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	if len(resp.Words) == 0 {
		return nil, fmt.Errorf("whisper returned no word timestamps (text: %q)", resp.Text)
	}

	words := make([]WordTimestamp, len(resp.Words))
	for i, w := range resp.Words {
		words[i] = WordTimestamp{
			Word:  strings.TrimSpace(w.Word),
			Start: w.Start,
			End:   w.End,
		}
	}

	log.Printf("[Whisper] Transcribed %d words (duration: %.1fs, text: %q)",
		len(words), resp.Duration, truncateString(resp.Text, 80))

	return words, nil
}

// MockWordTimestamps spreads the words of text evenly from offset seconds on.
func MockWordTimestamps(text string, offset float64) []WordTimestamp {
	fields := strings.Fields(text)
	words := make([]WordTimestamp, 0, len(fields))
	for i, w := range fields {
		start := offset + float64(i)*mockWordSeconds
		words = append(words, WordTimestamp{Word: w, Start: start, End: start + mockWordSeconds})
	}
	return words
}
