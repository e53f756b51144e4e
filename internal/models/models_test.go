package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"videos": 5,
		"status": "partial",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["status"] != "partial" {
		t.Errorf("expected status=partial, got %v", result["status"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"platform": "tiktok", "videos": 5}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["platform"] != "tiktok" {
		t.Errorf("expected platform=tiktok, got %v", j["platform"])
	}

	if j["videos"].(float64) != 5 {
		t.Errorf("expected videos=5, got %v", j["videos"])
	}
}

func TestRunStatus(t *testing.T) {
	statuses := []RunStatus{
		RunStatusQueued,
		RunStatusRunning,
		RunStatusCompleted,
		RunStatusPartial,
		RunStatusFailed,
	}

	for _, status := range statuses {
		if !status.Valid() {
			t.Errorf("status %q should be valid", status)
		}
	}
	if RunStatus("done").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestOutcomeStatus(t *testing.T) {
	cases := map[Outcome]Status{
		OutcomeSuccess:  StatusSuccess,
		OutcomeMock:     StatusMockSuccess,
		OutcomeFallback: StatusMockSuccess,
		OutcomeFailure:  StatusError,
	}
	for outcome, want := range cases {
		if got := outcome.Status(); got != want {
			t.Errorf("%s: expected %s, got %s", outcome, want, got)
		}
	}
}

func TestResultConstructorsKeepInvariants(t *testing.T) {
	results := []GenerationResult{
		NewSuccess(KindVideo, "https://example.com/a.mp4"),
		NewMock(KindVideo, "https://mock.example.com/a.mp4"),
		NewFallback(KindVoice, "mock_voice.mp3", errors.New("timeout")),
		NewFailure(KindMedia, errors.New("ffmpeg exited 1")),
		NewSuccess(KindVideo, ""),
	}
	for i, r := range results {
		if err := r.Validate(); err != nil {
			t.Errorf("result %d violates invariants: %v", i, err)
		}
	}

	if results[4].Status != StatusError {
		t.Errorf("success without artifact should become error, got %s", results[4].Status)
	}
	if results[2].FallbackReason != "timeout" {
		t.Errorf("expected fallback reason, got %q", results[2].FallbackReason)
	}
}

func TestAsFallback(t *testing.T) {
	r := NewMock(KindVideo, "mock://x").AsFallback(errors.New("boom"))
	if r.Outcome != OutcomeFallback || r.Status != StatusMockSuccess {
		t.Fatalf("unexpected result %s/%s", r.Outcome, r.Status)
	}

	s := NewSuccess(KindVideo, "https://x").AsFallback(errors.New("boom"))
	if s.Outcome != OutcomeSuccess {
		t.Errorf("success result must not be rewritten, got %s", s.Outcome)
	}
}

func TestSceneUnmarshalFlexibleNumbers(t *testing.T) {
	var s Scene
	data := `{"scene_id": "3", "duration": "8s", "type": "climax", "description": "rooftop"}`
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.SceneID != 3 || s.Duration != 8 || s.Type != SceneClimax {
		t.Errorf("unexpected scene %+v", s)
	}

	var missing Scene
	if err := json.Unmarshal([]byte(`{"description": "x"}`), &missing); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if missing.EffectiveDuration() != DefaultSceneDuration {
		t.Errorf("expected default duration, got %v", missing.EffectiveDuration())
	}
	if err := missing.Validate(); !errors.Is(err, ErrSceneDuration) {
		t.Errorf("expected ErrSceneDuration, got %v", err)
	}
}

func TestParseTimecode(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"00:05", 5 * time.Second, true},
		{"01:30", 90 * time.Second, true},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second, true},
		{"12", 12 * time.Second, true},
		{"00:02.5", 2500 * time.Millisecond, true},
		{"", 0, false},
		{"ab:cd", 0, false},
	}
	for _, c := range cases {
		got, err := ParseTimecode(c.in)
		if (err == nil) != c.ok {
			t.Errorf("%q: unexpected error state %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: expected %v, got %v", c.in, c.want, got)
		}
	}

	if RangeStart("00:03-00:09") != "00:03" {
		t.Errorf("unexpected range start %q", RangeStart("00:03-00:09"))
	}
	if TimecodeMillis("garbage") != 0 {
		t.Error("unparsable timecode should map to 0ms")
	}
}

func TestSceneMetadataIsOneBased(t *testing.T) {
	b := &OutputBundle{}
	b.GeneratedAssets.Videos = []GenerationResult{
		NewMock(KindVideo, "mock-1").WithMeta("prompt_used", "a"),
		NewFailure(KindVideo, errors.New("x")),
		NewMock(KindVideo, "mock-3").WithMeta("prompt_used", "c"),
	}
	meta := b.SceneMetadata()
	if len(meta) != 2 {
		t.Fatalf("expected 2 metadata entries, got %d", len(meta))
	}
	if meta[1]["prompt_used"] != "a" || meta[3]["prompt_used"] != "c" {
		t.Errorf("unexpected metadata %v", meta)
	}
}
