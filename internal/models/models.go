package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial" // bundle written, asset realization recorded an error
	RunStatusFailed    RunStatus = "failed"
)

// Valid reports whether s is one of the known run statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusCompleted, RunStatusPartial, RunStatusFailed:
		return true
	}
	return false
}

type AssetType string

const (
	AssetTypePlanJSON      AssetType = "plan_json"
	AssetTypeGenerationLog AssetType = "generation_log"
	AssetTypeSceneMetadata AssetType = "scene_metadata"
	AssetTypeAudioScript   AssetType = "audio_script"
	AssetTypeReadme        AssetType = "readme"
	AssetTypeFinalVideo    AssetType = "final_video"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Brief is everything a caller can say about a run before it starts.
// Empty fields fall back to the configured pipeline defaults.
type Brief struct {
	Topic        string `json:"topic,omitempty"`
	Custom       string `json:"brief,omitempty"` // free-form brief, takes precedence over Topic in prompts
	Style        string `json:"style,omitempty"` // cinematic, funny, hybrid
	Tone         string `json:"tone,omitempty"`  // chaotic, dramatic
	Platform     string `json:"platform,omitempty"`
	BurnCaptions bool   `json:"burn_captions,omitempty"`
	TitleCard    bool   `json:"title_card,omitempty"`
	Music        string `json:"music,omitempty"` // local audio file, never taken from API requests
}

// Models

type Run struct {
	ID            uuid.UUID  `json:"id"`
	Topic         string     `json:"topic"`
	Brief         *string    `json:"brief,omitempty"`
	Style         string     `json:"style"`
	Tone          string     `json:"tone"`
	Platform      string     `json:"platform"`
	BurnCaptions  bool       `json:"burn_captions"`
	Status        RunStatus  `json:"status"`
	RunDir        *string    `json:"run_dir,omitempty"`        // local bundle directory on the worker
	StoragePrefix *string    `json:"storage_prefix,omitempty"` // object storage prefix of the uploaded bundle
	ErrorMessage  *string    `json:"error_message,omitempty"`
	Summary       JSONB      `json:"summary,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BriefOf rebuilds the brief a run was submitted with.
func (r *Run) BriefOf() Brief {
	b := Brief{
		Topic:        r.Topic,
		Style:        r.Style,
		Tone:         r.Tone,
		Platform:     r.Platform,
		BurnCaptions: r.BurnCaptions,
	}
	if r.Brief != nil {
		b.Custom = *r.Brief
	}
	return b
}

// RunUpdate is what the worker records when a run finishes.
type RunUpdate struct {
	Status        RunStatus
	RunDir        *string
	StoragePrefix *string
	Summary       JSONB
	ErrorMessage  *string
}

type RunAsset struct {
	ID            uuid.UUID `json:"id"`
	RunID         uuid.UUID `json:"run_id"`
	Type          AssetType `json:"type"`
	StorageBucket string    `json:"storage_bucket"`
	StoragePath   string    `json:"storage_path"`
	ContentType   *string   `json:"content_type,omitempty"`
	ByteSize      *int64    `json:"byte_size,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DTOs for API responses
type RunResponse struct {
	Run
	Assets []RunAssetResponse `json:"assets,omitempty"`
}

type RunAssetResponse struct {
	RunAsset
	URL *string `json:"url,omitempty"`
}

type ListRunsResponse struct {
	Runs   []Run `json:"runs"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type CreateRunRequest struct {
	Topic        string  `json:"topic"`
	Brief        *string `json:"brief,omitempty"`
	Style        *string `json:"style,omitempty"`    // Default: config DEFAULT_STYLE
	Tone         *string `json:"tone,omitempty"`     // Default: config DEFAULT_TONE
	Platform     *string `json:"platform,omitempty"` // Default: config DEFAULT_PLATFORM
	BurnCaptions *bool   `json:"burn_captions,omitempty"`
}

type CreateRunResponse struct {
	RunID  uuid.UUID `json:"run_id"`
	Status RunStatus `json:"status"`
}
