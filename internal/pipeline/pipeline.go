// Package pipeline runs the six reasoning stages that turn a topic into a
// production plan. Each stage templates its input from earlier outputs,
// asks a Reasoner, and records the reply both as text and as a typed record.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bobarin/viralforge/internal/models"
)

// Stage names, in execution order.
const (
	StageTrends       = "trend_analysis"
	StageConcept      = "concept"
	StageScenes       = "scenes"
	StageAudio        = "audio_script"
	StageOptimization = "optimization"
	StageFinalPlan    = "final_plan"
)

var ErrNoReasoner = errors.New("pipeline has no reasoner")

// StageError wraps a fatal failure of one stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage is one step of the chain.
type Stage struct {
	Name         string
	Role         string
	Instructions string
	Schema       json.RawMessage
	// Build templates the stage input from the state.
	Build func(st *State) (string, error)
	// Record stores the reply in the state and reports whether it decoded
	// into the stage's typed record.
	Record func(st *State, reply Reply) bool
	// Offline produces the deterministic answer used without a backend.
	Offline func(st *State) any
}

// SystemPrompt joins the role and the instructions.
func (s *Stage) SystemPrompt() string {
	return strings.TrimSpace(s.Role + "\n\n" + s.Instructions)
}

// State carries everything produced so far in one run.
type State struct {
	Brief   models.Brief
	Subject string

	Trends       Decoded[models.TrendReport]
	Concept      Decoded[models.Concept]
	Scenes       Decoded[models.SceneBreakdown]
	Audio        Decoded[models.AudioScript]
	Optimization Decoded[models.OptimizationPlan]
	FinalText    string

	Outputs map[string]string
	Trace   []models.StageTrace
}

// NewState starts a run for brief. The free-form brief wins over the topic
// as the subject of every prompt.
func NewState(brief models.Brief) *State {
	subject := strings.TrimSpace(brief.Custom)
	if subject == "" {
		subject = strings.TrimSpace(brief.Topic)
	}
	return &State{
		Brief:   brief,
		Subject: subject,
		Outputs: make(map[string]string),
	}
}

// Output returns the raw text a stage produced, or "" if it has not run.
func (st *State) Output(stage string) string {
	return st.Outputs[stage]
}

// Pipeline is an ordered list of stages and the reasoner that answers them.
type Pipeline struct {
	stages   []*Stage
	reasoner Reasoner
}

// New builds the standard six-stage pipeline.
func New(reasoner Reasoner) *Pipeline {
	return &Pipeline{stages: DefaultStages(), reasoner: reasoner}
}

// NewWithStages builds a pipeline over custom stages.
func NewWithStages(reasoner Reasoner, stages []*Stage) *Pipeline {
	return &Pipeline{stages: stages, reasoner: reasoner}
}

func (p *Pipeline) Stages() []*Stage { return p.stages }

// Run executes every stage in order. A stage that cannot build its input or
// whose reasoner returns an error aborts the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context, brief models.Brief) (*State, error) {
	if p.reasoner == nil {
		return nil, ErrNoReasoner
	}

	st := NewState(brief)
	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return st, &StageError{Stage: stage.Name, Err: err}
		}

		start := time.Now()
		input, err := stage.Build(st)
		if err != nil {
			return st, &StageError{Stage: stage.Name, Err: fmt.Errorf("failed to build input: %w", err)}
		}

		reply, err := p.reasoner.Reason(ctx, stage, input, st)
		if err != nil {
			return st, &StageError{Stage: stage.Name, Err: err}
		}

		st.Outputs[stage.Name] = reply.Text
		validated := true
		if stage.Record != nil {
			validated = stage.Record(st, reply)
		}

		elapsed := time.Since(start)
		st.Trace = append(st.Trace, models.StageTrace{
			Name:           stage.Name,
			Outcome:        reply.Outcome,
			Output:         reply.Text,
			Validated:      validated,
			FallbackReason: reply.FallbackReason,
			StartedAt:      start.UTC(),
			DurationMs:     elapsed.Milliseconds(),
		})

		log.Printf("[Pipeline] Stage %d/%d %s: %s (validated=%v, %dms, %d chars)",
			i+1, len(p.stages), stage.Name, reply.Outcome, validated, elapsed.Milliseconds(), len(reply.Text))
	}
	return st, nil
}
