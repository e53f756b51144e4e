package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/bobarin/viralforge/internal/models"
)

// GenerateSchema reflects T into an inline JSON schema suitable for the
// structured response format.
func GenerateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("pipeline: cannot marshal schema for %T: %v", v, err))
	}
	return data
}

// finalPlanSchema describes the final stage reply. The reply itself is kept
// section by section in models.ProductionPlan.
type finalPlanSchema struct {
	Scenes       models.SceneBreakdown   `json:"scenes"`
	Audio        models.AudioScript      `json:"audio"`
	Optimization models.OptimizationPlan `json:"optimization"`
}

var (
	trendSchema        = GenerateSchema[models.TrendReport]()
	conceptSchema      = GenerateSchema[models.Concept]()
	sceneSchema        = GenerateSchema[models.SceneBreakdown]()
	audioSchema        = GenerateSchema[models.AudioScript]()
	optimizationSchema = GenerateSchema[models.OptimizationPlan]()
	finalPlanSchemaDoc = GenerateSchema[finalPlanSchema]()
)
