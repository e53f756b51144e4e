package creative

import (
	"fmt"
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

// Concept picks the strongest topic of a trend report and turns it into a
// thirty-second concept for subject.
func Concept(report models.TrendReport, subject string) models.Concept {
	subject = subjectOf(subject)

	var source models.TrendTopic
	for _, t := range report.ViralTopics {
		if t.MemePotential == "extreme" {
			source = t
			break
		}
	}
	if source.Topic == "" && len(report.ViralTopics) > 0 {
		source = report.ViralTopics[0]
	}

	hook := fmt.Sprintf("Open on %s doing something it should not be able to do", subject)
	if len(report.Hooks) > 0 {
		hook = report.Hooks[0]
	}

	title := capitalize(subject)
	if source.Topic != "" {
		title = fmt.Sprintf("%s meets %s", capitalize(subject), strings.ToLower(source.Topic))
	}

	return models.Concept{
		Title:          title,
		Hook:           hook,
		ViralMechanism: "Expectation set in the first three seconds, broken at the halfway mark",
		EmotionalCurve: []string{"curiosity", "recognition", "surprise", "warmth"},
		NarrativeArc: []models.ArcBeat{
			{Time: "00:00-00:03", Beat: "Hook: an ordinary moment framed as an event"},
			{Time: "00:03-00:12", Beat: "Escalation: the world reacts to the product"},
			{Time: "00:12-00:24", Beat: "Turn: the joke reveals something true"},
			{Time: "00:24-00:30", Beat: "Payoff and call to action"},
		},
		ProductIntegration: fmt.Sprintf("%s is on screen in every scene but never pitched until the last line", capitalize(subject)),
		PlatformNotes:      []string{"Vertical 9:16", "Captions burned in for sound-off viewing", "Loopable last frame"},
		SourceTrend:        source,
	}
}
