package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobarin/viralforge/internal/creative"
	"github.com/bobarin/viralforge/internal/models"
)

const jsonOnly = "Respond with a single JSON object that matches the response schema. No prose, no markdown."

// DefaultStages returns fresh copies of the six standard stages.
func DefaultStages() []*Stage {
	return []*Stage{
		trendStage(),
		conceptStage(),
		sceneStage(),
		audioStage(),
		optimizationStage(),
		finalPlanStage(),
	}
}

func trendStage() *Stage {
	return &Stage{
		Name: StageTrends,
		Role: "You are a trend analyst for short-form video platforms.",
		Instructions: "List the topics with the highest viral potential right now, strongest first, " +
			"with the formats, sounds and hooks that carry them. " + jsonOnly,
		Schema: trendSchema,
		Build: func(st *State) (string, error) {
			subject := st.Subject
			if subject == "" {
				subject = "whatever is trending"
			}
			return fmt.Sprintf("Find viral opportunities for: %q\nPreferred style: %s\nPreferred tone: %s",
				subject, orDefault(st.Brief.Style, "any"), orDefault(st.Brief.Tone, "any")), nil
		},
		Record: func(st *State, reply Reply) bool {
			st.Trends = Decode[models.TrendReport](reply.Text)
			return st.Trends.Valid()
		},
		Offline: func(st *State) any {
			return creative.Trends(st.Subject)
		},
	}
}

func conceptStage() *Stage {
	return &Stage{
		Name: StageConcept,
		Role: "You are a creative director who turns trends into thirty-second video concepts.",
		Instructions: "Pick the strongest opportunity and write one concept: a three-second hook, " +
			"the mechanism that makes people share it, and a beat-by-beat narrative arc. " + jsonOnly,
		Schema: conceptSchema,
		Build: func(st *State) (string, error) {
			trends := st.Output(StageTrends)
			if trends == "" {
				return "", fmt.Errorf("no trend analysis to build on")
			}
			return fmt.Sprintf("Trend analysis:\n%s\n\nDevelop one concept for: %q", trends, orDefault(st.Subject, "the brand")), nil
		},
		Record: func(st *State, reply Reply) bool {
			st.Concept = Decode[models.Concept](reply.Text)
			return st.Concept.Valid()
		},
		Offline: func(st *State) any {
			return creative.Concept(st.Trends.Or(creative.Trends(st.Subject)), st.Subject)
		},
	}
}

func sceneStage() *Stage {
	return &Stage{
		Name: StageScenes,
		Role: "You are a director of photography breaking a concept into generated video shots.",
		Instructions: "Break the concept into scenes. Every scene needs a 1-based scene_id, a duration in seconds, " +
			"a type, and a self-contained visual description usable as a text-to-video prompt, " +
			"plus camera movement, lighting, mood and color grading. " + jsonOnly,
		Schema: sceneSchema,
		Build: func(st *State) (string, error) {
			concept := st.Output(StageConcept)
			if concept == "" {
				return "", fmt.Errorf("no concept to build on")
			}
			return fmt.Sprintf("Concept:\n%s\n\nVisual style: %s\nAspect ratio: 9:16",
				concept, orDefault(st.Brief.Style, creative.StyleCinematic)), nil
		},
		Record: func(st *State, reply Reply) bool {
			st.Scenes = Decode[models.SceneBreakdown](reply.Text)
			return st.Scenes.Valid() && len(st.Scenes.Value.Scenes) > 0
		},
		Offline: func(st *State) any {
			breakdown := creative.Scenes(st.Subject, st.Brief.Style)
			board := creative.BuildStoryboard(breakdown.Scenes)
			breakdown.Storyboard = &board
			return breakdown
		},
	}
}

func audioStage() *Stage {
	return &Stage{
		Name: StageAudio,
		Role: "You are a sound designer and script writer for short-form video.",
		Instructions: "Write the audio script for the scenes: a voiceover track with MM:SS-MM:SS ranges, voices and emotions, " +
			"a dialogue track, sound effects with MM:SS times and 0-100 volumes, and music cues. " + jsonOnly,
		Schema: audioSchema,
		Build: func(st *State) (string, error) {
			scenes := st.Output(StageScenes)
			if scenes == "" {
				return "", fmt.Errorf("no scenes to build on")
			}
			return fmt.Sprintf("Scenes:\n%s\n\nTone: %s", scenes, orDefault(st.Brief.Tone, "chaotic")), nil
		},
		Record: func(st *State, reply Reply) bool {
			st.Audio = Decode[models.AudioScript](reply.Text)
			return st.Audio.Valid()
		},
		Offline: func(st *State) any {
			return creative.Script(st.Subject, st.Brief.Tone)
		},
	}
}

func optimizationStage() *Stage {
	return &Stage{
		Name: StageOptimization,
		Role: "You are a distribution strategist who packages videos for each platform.",
		Instructions: "Choose the primary platform, caption policy, hook window, share triggers, hashtags, " +
			"posting windows, title, description and A/B tests. " + jsonOnly,
		Schema: optimizationSchema,
		Build: func(st *State) (string, error) {
			return fmt.Sprintf("Concept:\n%s\n\nScenes:\n%s\n\nAudio script:\n%s\n\nPreferred platform: %s",
				st.Output(StageConcept), st.Output(StageScenes), st.Output(StageAudio),
				orDefault(st.Brief.Platform, "tiktok")), nil
		},
		Record: func(st *State, reply Reply) bool {
			st.Optimization = Decode[models.OptimizationPlan](reply.Text)
			return st.Optimization.Valid()
		},
		Offline: func(st *State) any {
			var title string
			if st.Concept.Valid() {
				title = st.Concept.Value.Title
			}
			script := st.Audio.Or(creative.Script(st.Subject, st.Brief.Tone))
			return creative.Optimization(st.Brief.Platform, title, script)
		},
	}
}

func finalPlanStage() *Stage {
	return &Stage{
		Name: StageFinalPlan,
		Role: "You are the producer assembling the final production plan.",
		Instructions: "Merge the scenes, audio script and optimization into one plan with the keys " +
			`"scenes", "audio" and "optimization". Keep every scene and every audio line. ` + jsonOnly,
		Schema: finalPlanSchemaDoc,
		Build: func(st *State) (string, error) {
			data, err := json.MarshalIndent(planSections(st), "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		Record: func(st *State, reply Reply) bool {
			st.FinalText = reply.Text
			_, ok := ParsePlan(reply.Text)
			return ok
		},
		Offline: func(st *State) any {
			return planSections(st)
		},
	}
}

// planSections collects the outputs the final stage merges. A section whose
// text holds JSON is embedded as JSON, anything else as a string.
func planSections(st *State) map[string]any {
	sections := map[string]any{}
	for key, stage := range map[string]string{
		"scenes":       StageScenes,
		"audio":        StageAudio,
		"optimization": StageOptimization,
	} {
		text := st.Output(stage)
		if payload, ok := ExtractJSON(text); ok {
			sections[key] = json.RawMessage(payload)
		} else {
			sections[key] = text
		}
	}
	return sections
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
