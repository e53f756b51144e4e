package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

var (
	ErrNoScenes       = errors.New("production plan has no scenes")
	ErrNoAudio        = errors.New("production plan has no audio script")
	ErrNoOptimization = errors.New("production plan has no optimization section")
)

// planSectionKeys are the keys ParsePlan lifts into typed sections.
var planSectionKeys = map[string]bool{"scenes": true, "audio": true, "optimization": true}

// ParsePlan turns the final stage output into a production plan. Keys beside
// the three sections are kept in Extra. When the text holds no JSON object
// with at least one section the plan keeps the whole text as RawOutput and
// ok is false.
func ParsePlan(text string) (plan models.ProductionPlan, ok bool) {
	if payload, found := ExtractJSON(text); found {
		var sections map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &sections); err == nil {
			plan.Scenes = nonNull(sections["scenes"])
			plan.Audio = nonNull(sections["audio"])
			plan.Optimization = nonNull(sections["optimization"])
			for k, v := range sections {
				if planSectionKeys[k] {
					continue
				}
				if plan.Extra == nil {
					plan.Extra = make(map[string]json.RawMessage)
				}
				plan.Extra[k] = v
			}
		}
	}
	if !plan.Structured() {
		return models.ProductionPlan{RawOutput: text}, false
	}
	return plan, true
}

// PlanScenes extracts the scene list. The section may be a breakdown object,
// a bare array of scenes, or a string holding either.
func PlanScenes(plan models.ProductionPlan) ([]models.Scene, error) {
	if len(plan.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	payload, ok := ExtractJSON(string(plan.Scenes))
	if !ok {
		return nil, fmt.Errorf("%w: section is not JSON", ErrNoScenes)
	}

	if strings.HasPrefix(payload, "[") {
		var scenes []models.Scene
		if err := json.Unmarshal([]byte(payload), &scenes); err != nil {
			return nil, fmt.Errorf("failed to decode scene list: %w", err)
		}
		return scenes, nil
	}

	var breakdown models.SceneBreakdown
	if err := json.Unmarshal([]byte(payload), &breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode scene breakdown: %w", err)
	}
	if breakdown.Scenes == nil {
		return nil, ErrNoScenes
	}
	return breakdown.Scenes, nil
}

// PlanAudio extracts the audio script, accepting a nested JSON string.
func PlanAudio(plan models.ProductionPlan) (models.AudioScript, error) {
	if len(plan.Audio) == 0 {
		return models.AudioScript{}, ErrNoAudio
	}
	d := DecodeRaw[models.AudioScript](plan.Audio)
	if !d.Valid() {
		return models.AudioScript{}, fmt.Errorf("%w: section does not decode", ErrNoAudio)
	}
	return *d.Value, nil
}

// PlanOptimization extracts the optimization section.
func PlanOptimization(plan models.ProductionPlan) (models.OptimizationPlan, error) {
	if len(plan.Optimization) == 0 {
		return models.OptimizationPlan{}, ErrNoOptimization
	}
	d := DecodeRaw[models.OptimizationPlan](plan.Optimization)
	if !d.Valid() {
		return models.OptimizationPlan{}, fmt.Errorf("%w: section does not decode", ErrNoOptimization)
	}
	return *d.Value, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return nil
	}
	return raw
}
