package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AudioScript is the output of the audio/script stage.
type AudioScript struct {
	Title        string          `json:"title,omitempty"`
	Tone         string          `json:"tone,omitempty"`
	Voiceover    []VoiceoverLine `json:"voiceover_track"`
	Dialogue     []DialogueLine  `json:"dialogue_track"`
	SoundEffects []SoundEffect   `json:"sound_effects"`
	MusicCues    []MusicCue      `json:"music_cues,omitempty"`
}

type VoiceoverLine struct {
	Time     string `json:"time" jsonschema_description:"MM:SS-MM:SS range"`
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Delivery string `json:"delivery,omitempty"`
	Emotion  string `json:"emotion,omitempty"`
}

type DialogueLine struct {
	Time      string `json:"time"`
	Character string `json:"character"`
	Text      string `json:"text"`
	Delivery  string `json:"delivery,omitempty"`
}

type SoundEffect struct {
	Time   string `json:"time"`
	Effect string `json:"effect"`
	Volume int    `json:"volume,omitempty" jsonschema:"minimum=0,maximum=100"`
}

func (e *SoundEffect) UnmarshalJSON(data []byte) error {
	type plain SoundEffect
	var aux struct {
		plain
		Volume json.RawMessage `json:"volume"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = SoundEffect(aux.plain)
	if v, ok := flexNumber(aux.Volume); ok {
		e.Volume = int(v)
	}
	return nil
}

type MusicCue struct {
	Time  string `json:"time"`
	Track string `json:"track"`
	BPM   int    `json:"bpm,omitempty"`
	Key   string `json:"key,omitempty"`
}

func (c *MusicCue) UnmarshalJSON(data []byte) error {
	type plain MusicCue
	var aux struct {
		plain
		BPM json.RawMessage `json:"bpm"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = MusicCue(aux.plain)
	if v, ok := flexNumber(aux.BPM); ok {
		c.BPM = int(v)
	}
	return nil
}

// AudioLayer is one input of the final mix.
type AudioLayer struct {
	File      string `json:"file"`
	StartTime string `json:"start_time"` // MM:SS
	Volume    int    `json:"volume"`     // 0..100
}

// ProcessedAudio aggregates every speech and effect generated for a script.
type ProcessedAudio struct {
	Timestamp       time.Time          `json:"timestamp"`
	ScriptTitle     string             `json:"script_title"`
	VoiceoverTracks []GenerationResult `json:"voiceover_tracks"`
	DialogueTracks  []GenerationResult `json:"dialogue_tracks"`
	SoundEffects    []GenerationResult `json:"sound_effects"`
	ProcessingLog   []string           `json:"processing_log"`
	Summary         AudioSummary       `json:"summary"`
}

type AudioSummary struct {
	TotalVoiceoverClips int    `json:"total_voiceover_clips"`
	TotalDialogueClips  int    `json:"total_dialogue_clips"`
	TotalSoundEffects   int    `json:"total_sound_effects"`
	ProcessingStatus    string `json:"processing_status"` // complete, mock_complete
}

// RangeStart returns the start of a "MM:SS-MM:SS" range, or the value itself
// when it is a single timecode.
func RangeStart(timeRange string) string {
	start, _, _ := strings.Cut(timeRange, "-")
	return strings.TrimSpace(start)
}

// ParseTimecode parses "SS", "MM:SS" or "HH:MM:SS" (seconds may be fractional).
func ParseTimecode(tc string) (time.Duration, error) {
	tc = strings.TrimSpace(tc)
	if tc == "" {
		return 0, fmt.Errorf("empty timecode")
	}
	parts := strings.Split(tc, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timecode %q", tc)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timecode %q", tc)
		}
		if i < len(parts)-1 && v != float64(int(v)) {
			return 0, fmt.Errorf("invalid timecode %q", tc)
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)), nil
}

// TimecodeMillis is ParseTimecode in milliseconds, with 0 for anything unparsable.
func TimecodeMillis(tc string) int64 {
	d, err := ParseTimecode(tc)
	if err != nil {
		return 0
	}
	return d.Milliseconds()
}
