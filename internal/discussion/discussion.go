// Package discussion stages a panel conversation about a topic: opening
// statements, rounds of responses to the previous speaker, and closing
// thoughts. Each line comes from the chat backend when one is configured and
// from a deterministic generator otherwise, and can be voiced.
package discussion

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/services"
)

// Kind says where in the conversation an entry sits.
type Kind string

const (
	KindOpening    Kind = "opening"
	KindResponse   Kind = "response"
	KindConclusion Kind = "conclusion"
	KindTake       Kind = "take"
)

// DefaultRounds is used when Run is asked for fewer than one round.
const DefaultRounds = 3

// maxQuoted bounds how much of the previous statement a response prompt quotes.
const maxQuoted = 280

// Speaker is one panel member.
type Speaker struct {
	Name    string `json:"name" yaml:"name"`
	Title   string `json:"title" yaml:"title"`
	Focus   string `json:"focus" yaml:"focus"`
	Voice   string `json:"voice" yaml:"voice"`
	Emotion string `json:"emotion" yaml:"emotion"`
}

// DefaultPanel returns the three standing panel members.
func DefaultPanel() []Speaker {
	return []Speaker{
		{
			Name:    "philosopher",
			Title:   "The Philosopher",
			Focus:   "why the audience cares and what the trend says about them",
			Voice:   "philosophy_bro",
			Emotion: "calm",
		},
		{
			Name:    "architect",
			Title:   "The Architect",
			Focus:   "how the video is built: hook, structure, pacing and format",
			Voice:   "gen_z_entrepreneur",
			Emotion: "excited",
		},
		{
			Name:    "optimizer",
			Title:   "The Optimizer",
			Focus:   "distribution: platforms, timing, hashtags and what the numbers reward",
			Voice:   "corporate_overlord",
			Emotion: "deadpan",
		},
	}
}

// Entry is one statement in the conversation.
type Entry struct {
	Round          int                      `json:"round" yaml:"round"`
	Kind           Kind                     `json:"kind" yaml:"kind"`
	Speaker        string                   `json:"speaker" yaml:"speaker"`
	Title          string                   `json:"title" yaml:"title"`
	Text           string                   `json:"text" yaml:"text"`
	Outcome        models.Outcome           `json:"outcome" yaml:"outcome"`
	FallbackReason string                   `json:"fallback_reason,omitempty" yaml:"fallback_reason,omitempty"`
	Audio          *models.GenerationResult `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// Discussion is a finished conversation.
type Discussion struct {
	Topic     string    `json:"topic" yaml:"topic"`
	Rounds    int       `json:"rounds" yaml:"rounds"`
	Speakers  []Speaker `json:"speakers" yaml:"speakers"`
	Entries   []Entry   `json:"entries" yaml:"entries"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// QuickTakes reports whether d holds one take per speaker instead of rounds.
func (d *Discussion) QuickTakes() bool { return d.Rounds == 0 }

// Completer is the chat backend that writes lines.
type Completer interface {
	Complete(ctx context.Context, req services.CompletionRequest) (string, error)
}

// Voicer synthesizes a line of speech.
type Voicer interface {
	GenerateVoice(ctx context.Context, text, voice, emotion string) models.GenerationResult
}

// Host runs conversations for a panel. A nil Completer writes every line
// offline; a nil Voicer leaves entries unvoiced.
type Host struct {
	speakers  []Speaker
	completer Completer
	voicer    Voicer
}

func NewHost(speakers []Speaker, completer Completer, voicer Voicer) *Host {
	if len(speakers) == 0 {
		speakers = DefaultPanel()
	}
	return &Host{speakers: speakers, completer: completer, voicer: voicer}
}

func (h *Host) Speakers() []Speaker { return h.speakers }

// Run holds a discussion of rounds rounds. Round one is opening statements,
// every later round answers the statement made just before it, and each
// speaker closes with a conclusion. Backend failures fall back to offline
// lines; only a cancelled context aborts.
func (h *Host) Run(ctx context.Context, topic string, rounds int) (*Discussion, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("discussion needs a topic")
	}
	if rounds < 1 {
		rounds = DefaultRounds
	}

	d := &Discussion{Topic: topic, Rounds: rounds, Speakers: h.speakers, CreatedAt: time.Now().UTC()}
	log.Printf("[Discussion] %d rounds on %q with %d speakers", rounds, topic, len(h.speakers))

	var previous *Entry
	for round := 1; round <= rounds; round++ {
		kind := KindResponse
		if round == 1 {
			kind = KindOpening
		}
		for _, sp := range h.speakers {
			e, err := h.speak(ctx, sp, topic, kind, round, previous)
			if err != nil {
				return d, err
			}
			d.Entries = append(d.Entries, e)
			previous = &d.Entries[len(d.Entries)-1]
		}
	}
	for _, sp := range h.speakers {
		e, err := h.speak(ctx, sp, topic, KindConclusion, rounds+1, nil)
		if err != nil {
			return d, err
		}
		d.Entries = append(d.Entries, e)
	}
	return d, nil
}

// QuickTakes asks every speaker for one independent take, concurrently.
func (h *Host) QuickTakes(ctx context.Context, topic string) (*Discussion, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("discussion needs a topic")
	}

	type take struct {
		entry Entry
		err   error
	}
	takes := iter.Map(h.speakers, func(sp *Speaker) take {
		e, err := h.speak(ctx, *sp, topic, KindTake, 1, nil)
		return take{entry: e, err: err}
	})

	d := &Discussion{Topic: topic, Speakers: h.speakers, CreatedAt: time.Now().UTC()}
	for _, t := range takes {
		if t.err != nil {
			return d, t.err
		}
		d.Entries = append(d.Entries, t.entry)
	}
	return d, nil
}

func (h *Host) speak(ctx context.Context, sp Speaker, topic string, kind Kind, round int, previous *Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	e := Entry{Round: round, Kind: kind, Speaker: sp.Name, Title: sp.Title}

	if h.completer == nil {
		e.Text = offlineLine(sp, topic, kind, round, previous)
		e.Outcome = models.OutcomeMock
	} else {
		text, err := h.completer.Complete(ctx, services.CompletionRequest{
			System:     persona(sp),
			User:       prompt(topic, kind, previous),
			SchemaName: "discussion_" + string(kind),
		})
		switch {
		case err == nil:
			e.Text = strings.TrimSpace(text)
			e.Outcome = models.OutcomeSuccess
		case ctx.Err() != nil:
			return Entry{}, ctx.Err()
		default:
			log.Printf("[Discussion] %s %s failed, using offline line: %v", sp.Name, kind, err)
			e.Text = offlineLine(sp, topic, kind, round, previous)
			e.Outcome = models.OutcomeFallback
			e.FallbackReason = err.Error()
		}
	}

	if h.voicer != nil {
		r := h.voicer.GenerateVoice(ctx, e.Text, sp.Voice, sp.Emotion)
		e.Audio = &r
	}
	return e, nil
}

func persona(sp Speaker) string {
	return fmt.Sprintf("You are %s on a podcast about short-form video. You care about %s. "+
		"Speak in the first person, conversationally, in at most four sentences. No lists, no markdown.", sp.Title, sp.Focus)
}

func prompt(topic string, kind Kind, previous *Entry) string {
	switch kind {
	case KindResponse:
		if previous != nil {
			return fmt.Sprintf("Topic: %s\n\n%s just said:\n%q\n\nRespond to it from your angle. Agree, push back or build on it.",
				topic, previous.Title, clip(previous.Text, maxQuoted))
		}
		return fmt.Sprintf("Topic: %s\n\nAdd your next point to the discussion.", topic)
	case KindConclusion:
		return fmt.Sprintf("Topic: %s\n\nGive your final thought: the one thing a creator should do about this tomorrow.", topic)
	case KindTake:
		return fmt.Sprintf("Topic: %s\n\nGive your quick take in two sentences.", topic)
	default:
		return fmt.Sprintf("Topic: %s\n\nOpen the discussion with your first impression.", topic)
	}
}

func offlineLine(sp Speaker, topic string, kind Kind, round int, previous *Entry) string {
	switch kind {
	case KindResponse:
		if previous != nil {
			return fmt.Sprintf("%s makes a fair point, but round %d is where %s gets interesting for me: %s.",
				previous.Title, round, topic, sp.Focus)
		}
		return fmt.Sprintf("Round %d on %s, and I keep coming back to %s.", round, topic, sp.Focus)
	case KindConclusion:
		return fmt.Sprintf("My final thought on %s: start with %s, and post before you overthink it.", topic, sp.Focus)
	case KindTake:
		return fmt.Sprintf("Quick take on %s: it lives or dies on %s.", topic, sp.Focus)
	default:
		return fmt.Sprintf("%s here. When I look at %s I think about %s.", sp.Title, topic, sp.Focus)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
