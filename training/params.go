package training

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/fedgovio/fedgov/types"
)

// defaultMetricNames is the multi-class metric set used when the strategy
// carries no correctness quality requirements.
var defaultMetricNames = []string{
	"CrossEntropyLoss",
	"Accuracy",
	"F1ScoreMacro",
	"F1ScoreMicro",
	"MCC",
}

// SessionSpec is the fully resolved description of one training run,
// assembled from the accepted configuration and the governance entities
// it links.
type SessionSpec struct {
	ConfigurationID uuid.UUID
	StrategyName    string
	Members         []uuid.UUID

	AggregationStrategy string
	DatasetName         string
	Features            []types.Feature
	InputSize           int
	OutputSize          int

	Model types.Algorithm
	Space []types.Hyperparameter

	MetricNames []string

	Rounds       int
	SearchRounds int

	ConnectionIP   string
	ComputeShapley bool
}

// BuildSessionSpec resolves an accepted configuration into a session
// spec. Metric names come from the strategy's correctness requirements,
// falling back to the default multi-class set.
func BuildSessionSpec(
	cfg types.Configuration,
	strategy *types.Strategy,
	group *types.Group,
	dataset *types.Dataset,
	model *types.MLModel,
	requirements []types.QualityRequirement,
	connectionIP string,
) (SessionSpec, error) {
	if len(group.Members) == 0 {
		return SessionSpec{}, fmt.Errorf("group %s has no members to train with", group.GovernanceID)
	}

	metricNames := types.MetricNames(requirements)
	if len(metricNames) == 0 {
		metricNames = defaultMetricNames
	}

	input, output := featureDimensions(dataset.Features)

	return SessionSpec{
		ConfigurationID:     cfg.ID,
		StrategyName:        strategy.Name,
		Members:             append([]uuid.UUID{}, group.Members...),
		AggregationStrategy: aggregationStrategy(model.Model.Algorithm),
		DatasetName:         dataset.Name,
		Features:            dataset.Features,
		InputSize:           input,
		OutputSize:          output,
		Model:               model.Model.Algorithm,
		Space:               model.Model.Hyperparameters,
		MetricNames:         metricNames,
		Rounds:              cfg.NumberOfRounds,
		SearchRounds:        cfg.NumberOfHORounds,
		ConnectionIP:        connectionIP,
	}, nil
}

// HasMember reports whether the given participant belongs to the run.
func (s *SessionSpec) HasMember(member uuid.UUID) bool {
	for _, m := range s.Members {
		if m == member {
			return true
		}
	}
	return false
}

// Parameters builds the wire payload for one participant. The dataset is
// identified by the participant's registered content hash.
func (s *SessionSpec) Parameters(datasetHash string) TrainingParameters {
	return TrainingParameters{
		Strategy:      s.AggregationStrategy,
		NameDataset:   datasetHash,
		ModelSelected: string(s.Model),
		ClientNumber:  "1",
		ConnectionIP:  s.ConnectionIP,
		MetricName:    s.MetricNames,
	}
}

// aggregationStrategy maps a model family to its federated aggregation
// strategy.
func aggregationStrategy(a types.Algorithm) string {
	if a == types.AlgorithmXGBoost {
		return "FedXGB"
	}
	return "FedAvg"
}

// featureDimensions derives the trainer's input and output widths from
// the feature schema. One-hot encoded features contribute one dimension
// per valid value, everything else contributes one; the feature named
// "label" counts toward the output.
func featureDimensions(features []types.Feature) (input, output int) {
	for _, f := range features {
		dims := 1
		if f.Preprocessing == types.EncodingOneHot {
			dims = len(f.ValidValues)
		}
		if f.Name == "label" {
			output += dims
		} else {
			input += dims
		}
	}
	return input, output
}
