package creative

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bobarin/viralforge/internal/models"
)

// Trends returns a canned trend report, tailored to query when one is given.
func Trends(query string) models.TrendReport {
	query = strings.TrimSpace(query)
	report := models.TrendReport{
		Query: query,
		ViralTopics: []models.TrendTopic{
			{Topic: "Quiet luxury on a student budget", Engagement: "9.1M views", Sentiment: "aspirational irony", MemePotential: "extreme",
				Description: "Dupes styled as if they cost ten times more"},
			{Topic: "Explaining office jargon to grandparents", Engagement: "6.4M views", Sentiment: "wholesome confusion", MemePotential: "high",
				Description: "Grandparents translating 'circle back' into plain speech"},
			{Topic: "Main quest vs side quest days", Engagement: "11.8M views", Sentiment: "self-aware", MemePotential: "extreme",
				Description: "Framing errands as video game quests"},
			{Topic: "Overly serious product reviews", Engagement: "4.2M views", Sentiment: "deadpan", MemePotential: "high",
				Description: "Documentary narration for a pair of socks"},
			{Topic: "Things that are oddly calming", Engagement: "7.7M views", Sentiment: "soothing", MemePotential: "medium",
				Description: "Slow folding, perfect stacks, clean edges"},
		},
		ViralFormats: []string{
			"POV with a twist in the last second",
			"Before/after where the after is worse",
			"Rating things nobody asked to have rated",
			"Day in the life that slowly stops making sense",
			"Tutorial that turns into a confession",
		},
		TrendingSounds: []string{
			"Orchestral swell over a mundane task",
			"Sped-up early-2000s chorus",
			"Stadium announcer for everyday wins",
		},
		AestheticTrends: []string{
			"Soft minimalism with one loud accent colour",
			"Retro camcorder grain",
			"Studio-clean product flat lays",
		},
		Hooks:       ViralHooks(query),
		ContentGaps: []string{"Products that admit they are ordinary", "Calm content in chaotic feeds"},
	}
	if query != "" {
		report.ContentGaps = append(report.ContentGaps, fmt.Sprintf("Nobody is making slow, honest videos about %s", query))
	}
	return report
}

// ViralHooks returns opening lines known to hold attention, filled in with topic.
func ViralHooks(topic string) []string {
	t := strings.TrimSpace(topic)
	if t == "" {
		t = "this"
	}
	return []string{
		fmt.Sprintf("Nobody talks about %s, so I will", t),
		fmt.Sprintf("POV: you finally understand %s", t),
		fmt.Sprintf("Rating %s like it is a fine wine", t),
		"Wait for the last second",
	}
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
