package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type SceneType string

const (
	SceneEstablishing    SceneType = "establishing"
	SceneCharacterMoment SceneType = "character_moment"
	SceneAction          SceneType = "action"
	SceneRevelation      SceneType = "revelation"
	SceneClimax          SceneType = "climax"
	SceneSetup           SceneType = "setup"
	SceneEscalation      SceneType = "escalation"
	SceneTwist           SceneType = "twist"
	SceneCallback        SceneType = "callback"
	ScenePunchline       SceneType = "punchline"
)

// DefaultSceneDuration is used whenever a scene omits a positive duration.
const DefaultSceneDuration = 6.0

var (
	ErrSceneDuration    = errors.New("scene duration must be positive")
	ErrSceneDescription = errors.New("scene description is empty")
)

// Scene is one shot of the production plan.
type Scene struct {
	SceneID        int       `json:"scene_id" jsonschema_description:"1-based position of the scene"`
	Duration       float64   `json:"duration" jsonschema_description:"Length in seconds"`
	Type           SceneType `json:"type" jsonschema:"enum=establishing,enum=character_moment,enum=action,enum=revelation,enum=climax,enum=setup,enum=escalation,enum=twist,enum=callback,enum=punchline"`
	Description    string    `json:"description" jsonschema_description:"Visual prompt for the video model"`
	CameraMovement string    `json:"camera_movement,omitempty"`
	Lighting       string    `json:"lighting,omitempty"`
	Mood           string    `json:"mood,omitempty"`
	ColorGrading   string    `json:"color_grading,omitempty"`
	InspiredBy     string    `json:"inspired_by,omitempty"`
}

// EffectiveDuration returns the scene duration, or the default when unset.
func (s Scene) EffectiveDuration() float64 {
	if s.Duration <= 0 {
		return DefaultSceneDuration
	}
	return s.Duration
}

// Validate reports the first broken invariant, if any.
func (s Scene) Validate() error {
	if s.Duration <= 0 {
		return ErrSceneDuration
	}
	if strings.TrimSpace(s.Description) == "" {
		return ErrSceneDescription
	}
	return nil
}

// UnmarshalJSON accepts scene_id and duration as numbers or numeric strings
// ("6", "6s"), which reasoning models emit interchangeably.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type plain Scene
	var aux struct {
		plain
		SceneID  json.RawMessage `json:"scene_id"`
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Scene(aux.plain)
	if v, ok := flexNumber(aux.SceneID); ok {
		s.SceneID = int(v)
	}
	if v, ok := flexNumber(aux.Duration); ok {
		s.Duration = v
	}
	return nil
}

// flexNumber reads a JSON number, or a string holding one with an optional
// unit suffix such as "s" or "%".
func flexNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	str = strings.TrimSpace(str)
	str = strings.TrimRight(str, "s%")
	str = strings.TrimSpace(strings.TrimSuffix(str, "sec"))
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
