package models

import (
	"encoding/json"
	"time"
)

// ProductionPlan is the parsed output of the final stage. Each section holds
// whatever JSON the stage produced for it: an object, an array or a string
// that itself contains JSON. Keys outside the three sections are kept in
// Extra and written back at the top level. RawOutput is set instead when the
// stage output had none of the sections; it then holds the whole text.
type ProductionPlan struct {
	Scenes       json.RawMessage            `json:"scenes,omitempty"`
	Audio        json.RawMessage            `json:"audio,omitempty"`
	Optimization json.RawMessage            `json:"optimization,omitempty"`
	RawOutput    string                     `json:"raw_output,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

// MarshalJSON writes the sections and the extra keys side by side. A section
// wins over an extra key of the same name.
func (p ProductionPlan) MarshalJSON() ([]byte, error) {
	type plain ProductionPlan
	base, err := json.Marshal(plain(p))
	if err != nil || len(p.Extra) == 0 {
		return base, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(fields)+len(p.Extra))
	for k, v := range p.Extra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (p *ProductionPlan) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*p = ProductionPlan{}
	for k, v := range fields {
		switch k {
		case "scenes":
			p.Scenes = v
		case "audio":
			p.Audio = v
		case "optimization":
			p.Optimization = v
		case "raw_output":
			if err := json.Unmarshal(v, &p.RawOutput); err != nil {
				return err
			}
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[k] = v
		}
	}
	return nil
}

// Structured reports whether the plan carries at least one parsed section.
func (p ProductionPlan) Structured() bool {
	return len(p.Scenes) > 0 || len(p.Audio) > 0 || len(p.Optimization) > 0
}

// StageTrace records what one pipeline stage produced.
type StageTrace struct {
	Name           string    `json:"name"`
	Outcome        Outcome   `json:"outcome"`
	Output         string    `json:"output"`
	Validated      bool      `json:"validated"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
}

// GeneratedAssets collects everything asset realization produced. Fields stay
// nil for steps that never ran.
type GeneratedAssets struct {
	Videos      []GenerationResult `json:"videos"`
	Audio       *ProcessedAudio    `json:"audio,omitempty"`
	Stitched    *GenerationResult  `json:"stitched,omitempty"`
	Mixed       *GenerationResult  `json:"mixed,omitempty"`
	Music       *GenerationResult  `json:"music,omitempty"`
	Captions    *GenerationResult  `json:"captions,omitempty"`
	TitleCard   *GenerationResult  `json:"title_card,omitempty"`
	FinalOutput *GenerationResult  `json:"final_output,omitempty"`
}

// OutputBundle is the complete result of one pipeline run.
type OutputBundle struct {
	RunID           string          `json:"run_id"`
	Topic           string          `json:"topic"`
	Brief           string          `json:"brief,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	ProductionPlan  ProductionPlan  `json:"production_plan"`
	PlanValidated   bool            `json:"plan_validated"`
	Stages          []StageTrace    `json:"stages"`
	GeneratedAssets GeneratedAssets `json:"generated_assets"`
	Error           string          `json:"error,omitempty"`
}

// Complete reports whether asset realization finished without recording an error.
func (b *OutputBundle) Complete() bool {
	return b.Error == ""
}

// SceneMetadata returns the metadata of every realized video keyed by its
// 1-based position in the batch. Results without metadata are skipped.
func (b *OutputBundle) SceneMetadata() map[int]map[string]any {
	out := make(map[int]map[string]any)
	for i, v := range b.GeneratedAssets.Videos {
		if len(v.Metadata) == 0 {
			continue
		}
		out[i+1] = v.Metadata
	}
	return out
}
