package creative

import (
	"reflect"
	"strings"
	"testing"

	"github.com/bobarin/viralforge/internal/models"
)

func TestScenesPerStyle(t *testing.T) {
	cases := []struct {
		style string
		want  int
	}{
		{"cinematic", 5},
		{"Cinematic noir", 5},
		{"funny", 5},
		{"hybrid", 1},
		{"", 1},
		{"documentary", 1},
	}
	for _, c := range cases {
		got := Scenes("minimalist hoodies", c.style)
		if len(got.Scenes) != c.want {
			t.Errorf("style %q: expected %d scenes, got %d", c.style, c.want, len(got.Scenes))
		}
	}
}

func TestScenesAreValidAndOrdered(t *testing.T) {
	b := Scenes("minimalist hoodies", "cinematic")
	for i, s := range b.Scenes {
		if s.SceneID != i+1 {
			t.Errorf("scene %d has id %d", i, s.SceneID)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("scene %d invalid: %v", s.SceneID, err)
		}
		if !strings.Contains(s.Description, "minimalist hoodies") {
			t.Errorf("scene %d does not mention the subject", s.SceneID)
		}
	}
	if b.TotalDuration != 30 {
		t.Errorf("expected 30s total, got %v", b.TotalDuration)
	}
}

func TestScenesDeterministic(t *testing.T) {
	a := Scenes("socks", "funny")
	b := Scenes("socks", "funny")
	if !reflect.DeepEqual(a, b) {
		t.Error("same inputs produced different breakdowns")
	}
	if Scenes("hats", "funny").VideoID == a.VideoID {
		t.Error("different subjects should get different video ids")
	}
}

func TestScriptChaoticCounts(t *testing.T) {
	s := Script("minimalist hoodies", "chaotic")
	if len(s.Voiceover) != 6 {
		t.Errorf("expected 6 voiceover lines, got %d", len(s.Voiceover))
	}
	if len(s.Dialogue) != 4 {
		t.Errorf("expected 4 dialogue lines, got %d", len(s.Dialogue))
	}
	if len(s.SoundEffects) != 9 {
		t.Errorf("expected 9 sound effects, got %d", len(s.SoundEffects))
	}
	if len(s.MusicCues) != 3 {
		t.Errorf("expected 3 music cues, got %d", len(s.MusicCues))
	}
	for _, vo := range s.Voiceover {
		if _, err := models.ParseTimecode(models.RangeStart(vo.Time)); err != nil {
			t.Errorf("voiceover time %q does not parse: %v", vo.Time, err)
		}
	}
}

func TestScriptOtherTones(t *testing.T) {
	if n := len(Script("x", "dramatic").Voiceover); n != 4 {
		t.Errorf("expected 4 dramatic voiceover lines, got %d", n)
	}
	s := Script("x", "wholesome")
	if len(s.Voiceover)+len(s.Dialogue)+len(s.SoundEffects) != 0 {
		t.Error("unknown tone should produce empty tracks")
	}
}

func TestStoryboardTransitions(t *testing.T) {
	sb := BuildStoryboard(Scenes("x", "cinematic").Scenes)
	if sb.TotalBoards != 5 || len(sb.Boards) != 5 {
		t.Fatalf("expected 5 boards, got %d", len(sb.Boards))
	}
	if sb.Boards[0].TransitionIn != "Fade from black" {
		t.Errorf("first board transition in = %q", sb.Boards[0].TransitionIn)
	}
	if sb.Boards[4].TransitionOut != "Cut to logo" {
		t.Errorf("last board transition out = %q", sb.Boards[4].TransitionOut)
	}
}

func TestConceptUsesStrongestTrend(t *testing.T) {
	report := Trends("minimalist hoodies")
	c := Concept(report, "minimalist hoodies")
	if c.SourceTrend.MemePotential != "extreme" {
		t.Errorf("expected an extreme trend, got %+v", c.SourceTrend)
	}
	if len(c.NarrativeArc) == 0 || c.Hook == "" {
		t.Errorf("incomplete concept %+v", c)
	}
}

func TestOptimizationDefaultsToTikTok(t *testing.T) {
	p := Optimization("", "Minimalist hoodies forever", Script("x", "chaotic"))
	if p.Platform != "tiktok" {
		t.Errorf("expected tiktok, got %q", p.Platform)
	}
	for _, s := range p.SecondaryPlatforms {
		if s == "tiktok" {
			t.Error("primary platform listed as secondary")
		}
	}
	if !strings.HasPrefix(p.Description, "Link in bio") {
		t.Errorf("unexpected description %q", p.Description)
	}
}

func TestClipRuneSafe(t *testing.T) {
	if got := clip("héllo wörld", 4); got != "héll" {
		t.Errorf("clip = %q", got)
	}
}
