package creative

import (
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

// Optimization produces the distribution package for a video targeted at platform.
func Optimization(platform, title string, script models.AudioScript) models.OptimizationPlan {
	platform = strings.TrimSpace(strings.ToLower(platform))
	if platform == "" {
		platform = "tiktok"
	}

	var secondary []string
	for _, p := range []string{"tiktok", "instagram_reels", "youtube_shorts"} {
		if p != platform {
			secondary = append(secondary, p)
		}
	}

	plan := models.OptimizationPlan{
		Platform:           platform,
		SecondaryPlatforms: secondary,
		Captions:           true,
		HookWindowSeconds:  3,
		ShareTriggers:      []string{"00:18", "00:27"},
		Hashtags:           hashtags(title),
		PostingWindows:     []string{"Tue 15:00 EST", "Thu 19:00 EST", "Sat 11:00 EST"},
		Title:              title,
		Description:        "Watch to the end.",
		ABTests:            []string{"Hook with text overlay vs without", "Ending on logo vs ending on loop"},
	}

	// The last voiceover line is the natural caption for the post.
	if n := len(script.Voiceover); n > 0 {
		plan.Description = script.Voiceover[n-1].Text
	}
	return plan
}

func hashtags(title string) []string {
	tags := []string{"#fyp", "#viral"}
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,:;!?'\"")
		if len(w) < 5 || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, "#"+w)
		if len(tags) == 5 {
			break
		}
	}
	return tags
}
