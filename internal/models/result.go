package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the wire-level result status every capability operation reports.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusMockSuccess Status = "mock_success"
	StatusError       Status = "error"
)

// Outcome tells apart the three ways a capability call can end well or badly.
// Mock is an intentional degradation (capability not configured), Fallback is
// a degradation caused by a fault in a live call.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeMock     Outcome = "mock"
	OutcomeFallback Outcome = "fallback"
	OutcomeFailure  Outcome = "failure"
)

// Status maps an outcome onto the wire status.
func (o Outcome) Status() Status {
	switch o {
	case OutcomeSuccess:
		return StatusSuccess
	case OutcomeMock, OutcomeFallback:
		return StatusMockSuccess
	default:
		return StatusError
	}
}

// Degraded reports whether the outcome carries placeholder output.
func (o Outcome) Degraded() bool {
	return o == OutcomeMock || o == OutcomeFallback
}

// Kind names the capability operation that produced a result.
type Kind string

const (
	KindVideo       Kind = "video"
	KindVoice       Kind = "voice"
	KindDialogue    Kind = "dialogue"
	KindSoundEffect Kind = "sound_effect"
	KindMedia       Kind = "media"
)

// MockMarker is the sentinel substring every placeholder reference carries.
const MockMarker = "mock"

var (
	ErrMissingArtifact = errors.New("result has no artifact reference")
	ErrMissingError    = errors.New("failed result has no error message")
)

// GenerationResult is the uniform record returned by every capability
// operation. Build it through NewSuccess, NewMock, NewFallback or NewFailure.
type GenerationResult struct {
	Status       Status  `json:"status"`
	Outcome      Outcome `json:"outcome"`
	Kind         Kind    `json:"kind"`
	SceneID      int     `json:"scene_id,omitempty"`
	GenerationID string  `json:"generation_id,omitempty"`
	Artifact     string  `json:"artifact,omitempty"` // URL, remote reference or local path
	Filename     string  `json:"filename,omitempty"`

	// AudioData holds synthesized audio in memory; it is never serialized.
	AudioData  []byte  `json:"-"`
	AudioBytes int     `json:"audio_bytes,omitempty"`
	Duration   float64 `json:"duration,omitempty"`

	// Speech fields, filled by the speech client.
	Text       string `json:"text,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Emotion    string `json:"emotion,omitempty"`
	Character  string `json:"character,omitempty"`
	Delivery   string `json:"delivery,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
	TimeMarker string `json:"time_marker,omitempty"`
	Volume     int    `json:"volume,omitempty"`

	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func newResult(kind Kind, outcome Outcome, artifact string) GenerationResult {
	if artifact == "" {
		return NewFailure(kind, ErrMissingArtifact)
	}
	return GenerationResult{
		Status:    outcome.Status(),
		Outcome:   outcome,
		Kind:      kind,
		Artifact:  artifact,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

// NewSuccess records a live call that produced artifact.
func NewSuccess(kind Kind, artifact string) GenerationResult {
	return newResult(kind, OutcomeSuccess, artifact)
}

// NewMock records placeholder output for an unconfigured capability.
func NewMock(kind Kind, artifact string) GenerationResult {
	return newResult(kind, OutcomeMock, artifact)
}

// NewFallback records placeholder output substituted after a live call failed.
func NewFallback(kind Kind, artifact string, cause error) GenerationResult {
	r := newResult(kind, OutcomeFallback, artifact)
	if r.Outcome == OutcomeFallback && cause != nil {
		r.FallbackReason = cause.Error()
	}
	return r
}

// AsFallback turns a mock result into a fallback caused by cause.
func (r GenerationResult) AsFallback(cause error) GenerationResult {
	if r.Outcome != OutcomeMock {
		return r
	}
	r.Outcome = OutcomeFallback
	r.Status = OutcomeFallback.Status()
	if cause != nil {
		r.FallbackReason = cause.Error()
	}
	return r
}

// NewFailure records an operation that produced nothing.
func NewFailure(kind Kind, err error) GenerationResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return GenerationResult{
		Status:    StatusError,
		Outcome:   OutcomeFailure,
		Kind:      kind,
		Error:     msg,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

// OK reports whether the result carries a usable (real or placeholder) artifact.
func (r GenerationResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusMockSuccess
}

// IsMockReference reports whether the artifact points at placeholder output.
func (r GenerationResult) IsMockReference() bool {
	return IsMockReference(r.Artifact)
}

// IsMockReference reports whether ref contains the mock sentinel.
func IsMockReference(ref string) bool {
	return strings.Contains(ref, MockMarker)
}

// Validate checks the status/artifact/error invariants.
func (r GenerationResult) Validate() error {
	switch r.Status {
	case StatusSuccess, StatusMockSuccess:
		if r.Artifact == "" {
			return ErrMissingArtifact
		}
	case StatusError:
		if r.Error == "" {
			return ErrMissingError
		}
		if r.Artifact != "" {
			return fmt.Errorf("failed result carries artifact %q", r.Artifact)
		}
	default:
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.Outcome.Status() != r.Status {
		return fmt.Errorf("outcome %q does not match status %q", r.Outcome, r.Status)
	}
	return nil
}

// WithMeta sets a metadata entry and returns the result for chaining.
func (r GenerationResult) WithMeta(key string, value any) GenerationResult {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
	return r
}

// StatusRecord is the normalized answer to an asynchronous job lookup.
type StatusRecord struct {
	GenerationID           string `json:"generation_id" yaml:"generation_id"`
	Status                 string `json:"status" yaml:"status"` // pending, processing, completed, failed, error
	Progress               int    `json:"progress" yaml:"progress"`
	EstimatedTimeRemaining int    `json:"estimated_time_remaining" yaml:"estimated_time_remaining"`
	MockMode               bool   `json:"mock_mode" yaml:"mock_mode"`
	Artifact               string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Error                  string `json:"error,omitempty" yaml:"error,omitempty"`
}
