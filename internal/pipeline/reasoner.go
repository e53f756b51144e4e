package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/services"
)

// Reply is what a reasoner produced for one stage.
type Reply struct {
	Text           string
	Outcome        models.Outcome
	FallbackReason string
}

// Reasoner answers a stage given its templated input.
type Reasoner interface {
	Reason(ctx context.Context, stage *Stage, input string, st *State) (Reply, error)
}

// Completer is the chat backend a LiveReasoner delegates to.
type Completer interface {
	Complete(ctx context.Context, req services.CompletionRequest) (string, error)
}

// NewReasoner returns a live reasoner over svc, or the offline reasoner when
// svc has no credential.
func NewReasoner(svc *services.OpenAIService, strict bool) Reasoner {
	if svc == nil || svc.MockMode() {
		return OfflineReasoner{}
	}
	return &LiveReasoner{Completer: svc, Strict: strict}
}

// OfflineReasoner answers every stage deterministically from the creative
// generators.
type OfflineReasoner struct{}

func (OfflineReasoner) Reason(ctx context.Context, stage *Stage, _ string, st *State) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	text, err := offlineText(stage, st)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, Outcome: models.OutcomeMock}, nil
}

func offlineText(stage *Stage, st *State) (string, error) {
	if stage.Offline == nil {
		return "", fmt.Errorf("stage %s has no offline generator", stage.Name)
	}
	data, err := json.MarshalIndent(stage.Offline(st), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal offline %s output: %w", stage.Name, err)
	}
	return string(data), nil
}

// LiveReasoner sends each stage to the chat backend. Backend failures fall
// back to the offline answer unless Strict is set.
type LiveReasoner struct {
	Completer Completer
	Strict    bool
}

func (r *LiveReasoner) Reason(ctx context.Context, stage *Stage, input string, st *State) (Reply, error) {
	text, err := r.Completer.Complete(ctx, services.CompletionRequest{
		System:     stage.SystemPrompt(),
		User:       input,
		SchemaName: stage.Name,
		Schema:     stage.Schema,
	})
	if err == nil {
		return Reply{Text: text, Outcome: models.OutcomeSuccess}, nil
	}

	if r.Strict || ctx.Err() != nil {
		return Reply{}, err
	}

	log.Printf("[Pipeline] Stage %s: reasoning failed, using offline output: %v", stage.Name, err)
	fallback, ferr := offlineText(stage, st)
	if ferr != nil {
		return Reply{}, fmt.Errorf("%w (offline fallback: %v)", err, ferr)
	}
	return Reply{Text: fallback, Outcome: models.OutcomeFallback, FallbackReason: err.Error()}, nil
}
