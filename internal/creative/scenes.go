// Package creative produces the deterministic stage outputs used when no
// reasoning backend is configured. Every generator is a pure function of its
// inputs so offline runs are reproducible.
package creative

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

const (
	StyleCinematic = "cinematic"
	StyleFunny     = "funny"
	StyleHybrid    = "hybrid"
)

// NormalizeStyle maps any style hint onto one of the three scene templates.
// Anything that is neither cinematic nor funny becomes hybrid.
func NormalizeStyle(style string) string {
	s := strings.ToLower(style)
	switch {
	case strings.Contains(s, StyleCinematic):
		return StyleCinematic
	case strings.Contains(s, StyleFunny):
		return StyleFunny
	default:
		return StyleHybrid
	}
}

// Scenes breaks a concept into shots: five for the cinematic and funny
// templates, one for hybrid.
func Scenes(subject, style string) models.SceneBreakdown {
	subject = subjectOf(subject)
	style = NormalizeStyle(style)

	var scenes []models.Scene
	switch style {
	case StyleCinematic:
		scenes = cinematicScenes(subject)
	case StyleFunny:
		scenes = funnyScenes(subject)
	default:
		scenes = hybridScenes(subject)
	}

	var total float64
	for _, s := range scenes {
		total += s.EffectiveDuration()
	}

	return models.SceneBreakdown{
		VideoID:       "vid_" + shortHash(subject+"|"+style),
		TotalDuration: total,
		Style:         style,
		AspectRatio:   "9:16",
		Scenes:        scenes,
	}
}

func cinematicScenes(subject string) []models.Scene {
	return []models.Scene{
		{
			SceneID:        1,
			Duration:       6,
			Type:           models.SceneEstablishing,
			Description:    fmt.Sprintf("WIDE SHOT: an empty laundromat at 2 AM, one washer spinning. A lone figure folds %s with ceremonial care while the neon sign outside flickers.", subject),
			CameraMovement: "Slow push in from the doorway",
			Lighting:       "Sodium vapour spill, deep shadows between machines",
			Mood:           "Quiet ritual in an indifferent city",
			ColorGrading:   "Teal shadows, amber highlights",
			InspiredBy:     "late-night neo-noir",
		},
		{
			SceneID:        2,
			Duration:       6,
			Type:           models.SceneCharacterMoment,
			Description:    fmt.Sprintf("CLOSE-UP: the figure's face lit only by a dryer window. They hold %s up to the glass as if checking it against the moon.", subject),
			CameraMovement: "Locked off, breathing handheld",
			Lighting:       "Single practical source through the dryer door",
			Mood:           "Private conviction",
			ColorGrading:   "Warm skin against cold steel",
			InspiredBy:     "intimate character study",
		},
		{
			SceneID:        3,
			Duration:       6,
			Type:           models.SceneAction,
			Description:    fmt.Sprintf("TRACKING SHOT: the figure walks out into rain-slick streets wearing %s. Every storefront they pass flickers to the same pattern a beat later.", subject),
			CameraMovement: "Lateral track that gradually overtakes the subject",
			Lighting:       "Wet reflections, moving signage",
			Mood:           "The city quietly imitating one person",
			ColorGrading:   "Saturated reflections, crushed blacks",
			InspiredBy:     "music video long take",
		},
		{
			SceneID:        4,
			Duration:       6,
			Type:           models.SceneRevelation,
			Description:    fmt.Sprintf("OVERHEAD SHOT: the subject stops at a crossing. As the camera rises, dozens of strangers in %s fill the intersection in a perfect grid.", subject),
			CameraMovement: "Vertical crane up, slow",
			Lighting:       "Overcast dawn, soft and even",
			Mood:           "Individual choice becoming a movement",
			ColorGrading:   "Muted palette with the product as the only colour",
			InspiredBy:     "architectural crowd photography",
		},
		{
			SceneID:        5,
			Duration:       6,
			Type:           models.SceneClimax,
			Description:    fmt.Sprintf("MATCH CUT MONTAGE: a tailor, a climber and a skater each pull on %s with the same motion. The last cut lands on the logo stitched at the collar.", subject),
			CameraMovement: "Static frames, rhythmic cuts",
			Lighting:       "Matched key light across every setup",
			Mood:           "Shared gesture across very different lives",
			ColorGrading:   "Each setup graded to its own world",
			InspiredBy:     "graphic match-cut editing",
		},
	}
}

func funnyScenes(subject string) []models.Scene {
	return []models.Scene{
		{
			SceneID:        1,
			Duration:       6,
			Type:           models.SceneSetup,
			Description:    fmt.Sprintf("A founder pitches %s to a boardroom of houseplants. The slide deck has one slide and it just says 'vibes'.", subject),
			CameraMovement: "Video-call framing, static",
			Lighting:       "Ring light with one dead bulb",
			Mood:           "Unearned confidence",
			InspiredBy:     "workplace mockumentary",
		},
		{
			SceneID:        2,
			Duration:       6,
			Type:           models.SceneEscalation,
			Description:    fmt.Sprintf("The same founder trains for a marathon whose only event is folding %s. A coach with a whistle times every fold.", subject),
			CameraMovement: "Sports broadcast zooms",
			Lighting:       "Stadium floodlights in a living room",
			Mood:           "Stakes wildly out of proportion",
			InspiredBy:     "sports documentary parody",
		},
		{
			SceneID:        3,
			Duration:       6,
			Type:           models.SceneTwist,
			Description:    fmt.Sprintf("A pirate at a self-checkout scans %s, gets 'unexpected item in bagging area', and negotiates with the machine in full sea shanty.", subject),
			CameraMovement: "Security camera angle",
			Lighting:       "Flat retail fluorescent",
			Mood:           "Nobody else in the shop reacts",
			InspiredBy:     "anachronism sketch comedy",
		},
		{
			SceneID:        4,
			Duration:       6,
			Type:           models.SceneCallback,
			Description:    fmt.Sprintf("Couples therapy between a washing machine and a dryer, arguing over who treats %s better. The therapist takes very serious notes.", subject),
			CameraMovement: "Classic two-shot therapy framing",
			Lighting:       "Soft office daylight",
			Mood:           "Earnest absurdity",
			InspiredBy:     "prestige drama played straight",
		},
		{
			SceneID:        5,
			Duration:       6,
			Type:           models.ScenePunchline,
			Description:    fmt.Sprintf("TIME-LAPSE: %s lies on a bed, then slowly folds itself, walks to the wardrobe and straightens the other clothes. Text on screen: 'it has its life together'.", subject),
			CameraMovement: "Locked off time-lapse",
			Lighting:       "Day to night",
			Mood:           "Product as the only competent character",
			InspiredBy:     "stop-motion animation",
		},
	}
}

func hybridScenes(subject string) []models.Scene {
	return []models.Scene{
		{
			SceneID:        1,
			Duration:       6,
			Type:           models.SceneType("philosophical_slapstick"),
			Description:    fmt.Sprintf("A lecturer in %s explains free will to a room of students on their phones, trips over a cable mid-sentence and keeps lecturing in slow motion as the room finally looks up.", subject),
			CameraMovement: "Full orbit around the fall",
			Mood:           "Insight arriving through a pratfall",
			InspiredBy:     "bullet-time action parody",
		},
	}
}

// BuildStoryboard lays out one board per scene with composition and
// transition notes.
func BuildStoryboard(scenes []models.Scene) models.Storyboard {
	sb := models.Storyboard{
		Title:       "Storyboard",
		TotalBoards: len(scenes),
		Boards:      make([]models.StoryboardPanel, 0, len(scenes)),
	}
	for i, s := range scenes {
		idx := i + 1
		panel := models.StoryboardPanel{
			BoardNumber:       idx,
			SceneID:           s.SceneID,
			Duration:          s.EffectiveDuration(),
			ShotType:          string(s.Type),
			VisualDescription: s.Description,
			Composition:       "Subject on the left third, key action inside the centre 80% safe zone, 9:16",
			TransitionIn:      "Match cut from previous",
			TransitionOut:     "Smash cut to next",
			ColorPalette:      []string{"#111111", "#f2f2f2", "#ff3355", "#22dd99"},
			AudioNotes:        "Room tone under voiceover",
		}
		if s.SceneID == 0 {
			panel.SceneID = idx
		}
		if panel.ShotType == "" {
			panel.ShotType = "standard"
		}
		if idx == 1 {
			panel.TransitionIn = "Fade from black"
		}
		if idx == len(scenes) {
			panel.TransitionOut = "Cut to logo"
		}
		sb.Boards = append(sb.Boards, panel)
	}
	return sb
}

func subjectOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "the shirt"
	}
	return clip(s, 80)
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func shortHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
