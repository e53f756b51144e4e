package creative

import (
	"fmt"
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

const (
	ToneChaotic  = "chaotic"
	ToneDramatic = "dramatic"
)

// Script writes the audio script for a concept. The chaotic tone yields six
// voiceover lines, four dialogue lines, nine sound effects and three music
// cues; dramatic is shorter. Any other tone yields empty tracks.
func Script(subject, tone string) models.AudioScript {
	subject = subjectOf(subject)
	script := models.AudioScript{
		Title: "Script: " + clip(subject, 50),
		Tone:  tone,
	}

	t := strings.ToLower(tone)
	switch {
	case strings.Contains(t, ToneChaotic):
		chaoticScript(&script, subject)
	case strings.Contains(t, ToneDramatic):
		dramaticScript(&script, subject)
	}
	return script
}

func chaoticScript(s *models.AudioScript, subject string) {
	narrator := "Existential narrator"
	s.Voiceover = []models.VoiceoverLine{
		{Time: "00:00-00:03", Voice: narrator, Emotion: "resigned", Delivery: "Flat, almost bored",
			Text: "Quick question. When did you last buy something just because it was honest?"},
		{Time: "00:03-00:08", Voice: narrator, Emotion: "manic", Delivery: "Speeding up",
			Text: "Everything in your feed is shouting. Every ad wants to be your best friend by Thursday."},
		{Time: "00:08-00:14", Voice: narrator, Emotion: "deadpan", Delivery: "Slow, leaning into the mic",
			Text: fmt.Sprintf("So here is %s. It does not shout. It does not have a podcast.", subject)},
		{Time: "00:14-00:20", Voice: narrator, Emotion: "calm", Delivery: "Quiet",
			Text: "It just shows up, every day, and does the one thing it promised."},
		{Time: "00:20-00:26", Voice: narrator, Emotion: "chaotic", Delivery: "Energy coming back",
			Text: "Which, honestly, is more than most of us managed this week."},
		{Time: "00:26-00:30", Voice: narrator, Emotion: "excited", Delivery: "Full announcer voice",
			Text: "Link in bio. Be the calm thing in somebody's feed."},
	}
	s.Dialogue = []models.DialogueLine{
		{Time: "00:05", Character: "Background Person 1", Text: "Wait, is this an ad?", Delivery: "Confused"},
		{Time: "00:07", Character: "Background Person 2", Text: "It's always an ad. Keep walking.", Delivery: "Tired"},
		{Time: "00:15", Character: "Random Child", Text: "Why is that shirt folding itself?", Delivery: "Curious"},
		{Time: "00:17", Character: "Mother", Text: "Don't stare, it's working.", Delivery: "Deadpan"},
	}
	s.SoundEffects = []models.SoundEffect{
		{Time: "00:00", Effect: "phone notification chime", Volume: 70},
		{Time: "00:02", Effect: "low bass hit", Volume: 30},
		{Time: "00:06", Effect: "cash register ding", Volume: 50},
		{Time: "00:10", Effect: "chat app ping", Volume: 40},
		{Time: "00:13", Effect: "retro game damage blip", Volume: 25},
		{Time: "00:18", Effect: "old computer shutdown tune", Volume: 35},
		{Time: "00:22", Effect: "alarm klaxon, short", Volume: 45},
		{Time: "00:25", Effect: "metal pipe clatter", Volume: 60},
		{Time: "00:28", Effect: "achievement unlocked jingle", Volume: 80},
	}
	s.MusicCues = []models.MusicCue{
		{Time: "00:00-00:10", Track: "lo-fi loop that slowly detunes", BPM: 72, Key: "C minor"},
		{Time: "00:10-00:20", Track: "choir pad over trap hats", BPM: 140, Key: "F# minor"},
		{Time: "00:20-00:30", Track: "bright ukulele jingle, reversed tail", BPM: 120, Key: "G major"},
	}
}

func dramaticScript(s *models.AudioScript, subject string) {
	narrator := "Corporate overlord"
	s.Voiceover = []models.VoiceoverLine{
		{Time: "00:00-00:06", Voice: narrator, Emotion: "dramatic", Delivery: "Trailer voice",
			Text: "In a world of fast fashion, one garment refused to be forgotten."},
		{Time: "00:06-00:14", Voice: narrator, Emotion: "calm", Delivery: "Measured",
			Text: fmt.Sprintf("%s was never designed to trend. It was designed to last.", capitalize(subject))},
		{Time: "00:14-00:22", Voice: narrator, Emotion: "resigned", Delivery: "Hushed",
			Text: "And somewhere along the way, people noticed."},
		{Time: "00:22-00:30", Voice: narrator, Emotion: "excited", Delivery: "Rising",
			Text: "This season, wear the thing that stays."},
	}
	s.Dialogue = []models.DialogueLine{
		{Time: "00:10", Character: "Narrator", Text: "Remember this moment.", Delivery: "Whisper"},
		{Time: "00:20", Character: "Background Person 2", Text: "Where did you get that?", Delivery: "Impressed"},
	}
	s.SoundEffects = []models.SoundEffect{
		{Time: "00:00", Effect: "deep cinematic boom", Volume: 70},
		{Time: "00:06", Effect: "fabric swish", Volume: 40},
		{Time: "00:14", Effect: "heartbeat pulse", Volume: 35},
		{Time: "00:22", Effect: "rising riser", Volume: 55},
		{Time: "00:29", Effect: "final impact hit", Volume: 80},
	}
	s.MusicCues = []models.MusicCue{
		{Time: "00:00-00:14", Track: "sparse piano with string swells", BPM: 64, Key: "D minor"},
		{Time: "00:14-00:30", Track: "full orchestral build", BPM: 96, Key: "D minor"},
	}
}
