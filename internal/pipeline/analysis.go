package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobarin/viralforge/internal/models"
)

// defaultAnalysisSubject stands in for an empty topic in trend analysis.
const defaultAnalysisSubject = "current trends"

// AnalysisStages returns the trend, concept and optimization stages. They
// answer "what should we post about this" without producing scenes or audio.
func AnalysisStages() []*Stage {
	return []*Stage{
		trendStage(),
		conceptStage(),
		optimizationStage(),
	}
}

// NewAnalysis builds the three-stage analysis pipeline.
func NewAnalysis(reasoner Reasoner) *Pipeline {
	return NewWithStages(reasoner, AnalysisStages())
}

// Analysis is the typed outcome of an analysis or campaign run. A nil
// section means its stage replied with text that did not decode; the text
// is still in Outputs.
type Analysis struct {
	Subject      string                   `json:"subject" yaml:"subject"`
	Product      string                   `json:"product,omitempty" yaml:"product,omitempty"`
	Trends       *models.TrendReport      `json:"trends,omitempty" yaml:"trends,omitempty"`
	Concept      *models.Concept          `json:"concept,omitempty" yaml:"concept,omitempty"`
	Optimization *models.OptimizationPlan `json:"optimization,omitempty" yaml:"optimization,omitempty"`
	Outputs      map[string]string        `json:"outputs" yaml:"outputs"`
	Stages       []models.StageTrace      `json:"stages" yaml:"stages"`
}

// Validated reports whether every stage reply decoded.
func (a *Analysis) Validated() bool {
	for _, st := range a.Stages {
		if !st.Validated {
			return false
		}
	}
	return len(a.Stages) > 0
}

// AnalyzeTrend runs the analysis stages for topic. An empty topic analyses
// whatever is trending.
func (p *Pipeline) AnalyzeTrend(ctx context.Context, brief models.Brief) (*Analysis, error) {
	if strings.TrimSpace(brief.Topic) == "" && strings.TrimSpace(brief.Custom) == "" {
		brief.Topic = defaultAnalysisSubject
	}
	st, err := p.Run(ctx, brief)
	if err != nil {
		return nil, err
	}
	return analysisFrom(st), nil
}

// Campaign runs the analysis stages for a product: trends are searched for
// cultural hooks relevant to it and the concept is written as its campaign.
func (p *Pipeline) Campaign(ctx context.Context, product string, brief models.Brief) (*Analysis, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil, fmt.Errorf("campaign needs a product")
	}
	brief.Topic = product
	brief.Custom = CampaignBrief(product)

	st, err := p.Run(ctx, brief)
	if err != nil {
		return nil, err
	}
	a := analysisFrom(st)
	a.Product = product
	return a, nil
}

// CampaignBrief is the free-form brief every campaign stage is prompted with.
func CampaignBrief(product string) string {
	return fmt.Sprintf("%s campaign: identify the cultural trends relevant to %s and turn the strongest into a launch video", product, product)
}

func analysisFrom(st *State) *Analysis {
	return &Analysis{
		Subject:      st.Subject,
		Trends:       st.Trends.Value,
		Concept:      st.Concept.Value,
		Optimization: st.Optimization.Value,
		Outputs:      st.Outputs,
		Stages:       st.Trace,
	}
}
