package types

import "github.com/google/uuid"

// Status tracks the lifecycle of governed objects.
type Status string

const (
	StatusProposed Status = "PROPOSED"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusObsolete Status = "OBSOLETE"
)

// ObjectMeta identifies a non-versioned governed object. Objects carrying
// only ObjectMeta (proposals, configurations, quality requirements) are
// immutable once accepted; changes create new objects.
type ObjectMeta struct {
	ID      uuid.UUID `json:"_id"`
	Deleted bool      `json:"_deleted"`
}

// NewObjectMeta allocates a fresh object identity.
func NewObjectMeta() ObjectMeta {
	return ObjectMeta{ID: uuid.New()}
}

// GovernanceMeta identifies a versioned governed object. The governance ID
// is stable across versions; every update flips the previous version's
// current flag and inserts a new row with version+1.
type GovernanceMeta struct {
	ID           uuid.UUID `json:"_id"`
	GovernanceID uuid.UUID `json:"_governance_id"`
	Version      int       `json:"_version"`
	Current      bool      `json:"_current"`
	Deleted      bool      `json:"_deleted"`
}

// NewGovernanceMeta allocates a fresh first-version identity.
func NewGovernanceMeta() GovernanceMeta {
	return GovernanceMeta{
		ID:           uuid.New(),
		GovernanceID: uuid.New(),
		Version:      1,
		Current:      true,
	}
}

// NextVersion returns the identity of the successor version. The storage ID
// is fresh, the governance ID is carried over.
func (m GovernanceMeta) NextVersion() GovernanceMeta {
	return GovernanceMeta{
		ID:           uuid.New(),
		GovernanceID: m.GovernanceID,
		Version:      m.Version + 1,
		Current:      true,
	}
}

// AddGroup is the request payload to create a group.
type AddGroup struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Group is the highest organizational unit. Every strategy belongs to
// exactly one group, and groups hold the member roster that votes on
// proposals.
type Group struct {
	GovernanceMeta
	AddGroup
	Strategies []uuid.UUID `json:"strategies"`
	Members    []uuid.UUID `json:"members"`
}

// HasMember reports whether the given member belongs to the group.
func (g *Group) HasMember(member uuid.UUID) bool {
	for _, m := range g.Members {
		if m == member {
			return true
		}
	}
	return false
}

// AddStrategy is the request payload to create a strategy.
type AddStrategy struct {
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Comments       []string  `json:"comments,omitempty"`
	BelongingGroup uuid.UUID `json:"belonging_group"`
}

// Strategy groups quality requirements and training configurations under a
// single governance scope. Accepted objects and pending proposals are kept
// in separate lists.
type Strategy struct {
	GovernanceMeta
	AddStrategy
	QualityRequirements         []uuid.UUID `json:"quality_requirements"`
	QualityRequirementProposals []uuid.UUID `json:"quality_requirements_proposals"`
	Configurations              []uuid.UUID `json:"configurations"`
	ConfigurationProposals      []uuid.UUID `json:"configuration_proposals"`
}

// AddConfiguration is the training configuration payload carried by
// configuration proposals.
type AddConfiguration struct {
	MLModelID        uuid.UUID `json:"ml_model_id"`
	MLModelVersion   int       `json:"ml_model_version"`
	DatasetID        uuid.UUID `json:"dataset_id"`
	DatasetVersion   int       `json:"dataset_version"`
	NumberOfRounds   int       `json:"number_of_rounds"`
	NumberOfHORounds int       `json:"number_of_ho_rounds"`
}

// Configuration links one ML model version and one dataset version with
// round budgets. Configurations are created only by winning a proposal
// tally and are immutable afterwards.
type Configuration struct {
	ObjectMeta
	AddConfiguration
	Status         Status     `json:"status"`
	StrategyLinked *uuid.UUID `json:"strategy_linked,omitempty"`
}

// FeatureType enumerates the primitive types a dataset feature can have.
type FeatureType string

const (
	FeatureInteger FeatureType = "integer"
	FeatureLong    FeatureType = "long"
	FeatureFloat   FeatureType = "float"
	FeatureDouble  FeatureType = "double"
	FeatureString  FeatureType = "string"
	FeatureBoolean FeatureType = "boolean"
)

// EncodingType enumerates the preprocessing applied to a feature before
// training.
type EncodingType string

const (
	EncodingNone     EncodingType = "none"
	EncodingOneHot   EncodingType = "one_hot_encoder"
	EncodingLabel    EncodingType = "label_encoder"
	EncodingStandard EncodingType = "standard_encoder"
	EncodingMinMax   EncodingType = "min_max_encoder"
)

// Feature describes a single dataset column including its value domain and
// preprocessing. Features are embedded in datasets, not stored standalone.
type Feature struct {
	Name           string       `json:"name"`
	Type           FeatureType  `json:"type"`
	ValidValues    []any        `json:"valid_values"`
	OrderInDataset int          `json:"order_in_dataset"`
	Preprocessing  EncodingType `json:"preprocessing,omitempty"`
	Description    string       `json:"description,omitempty"`
	Group          bool         `json:"group"`
	SubFeatures    []string     `json:"sub_features,omitempty"`
	Comments       []string     `json:"comments,omitempty"`
}

// AddDataset is the request payload to create a dataset.
type AddDataset struct {
	Name                 string    `json:"name"`
	StrategyGovernanceID uuid.UUID `json:"strategy_governance_id"`
	Structured           bool      `json:"structured"`
	Features             []Feature `json:"features"`
	Description          string    `json:"description,omitempty"`
	Comments             []string  `json:"comments,omitempty"`
}

// Dataset describes the schema participants must hold locally. Only the
// schema travels through the platform, never the data itself.
type Dataset struct {
	GovernanceMeta
	AddDataset
}

// HyperparameterType enumerates the sampling domains of a hyperparameter.
type HyperparameterType string

const (
	HPInteger     HyperparameterType = "integer"
	HPFloat       HyperparameterType = "float"
	HPCategorical HyperparameterType = "categorical"
)

// Hyperparameter describes one tunable dimension of a model. For integer
// and float types ValidValues holds [min, max]; for categorical it holds
// the choices.
type Hyperparameter struct {
	Name        string             `json:"name"`
	Type        HyperparameterType `json:"type_of_hyperparameter"`
	ValidValues []any              `json:"valid_values"`
}

// Algorithm enumerates the supported model families.
type Algorithm string

const (
	AlgorithmMLP     Algorithm = "mlp"
	AlgorithmXGBoost Algorithm = "xgboost"
	AlgorithmCustom  Algorithm = "custom"
)

// ModelSpec describes a model family and its hyperparameter search space.
type ModelSpec struct {
	Algorithm       Algorithm        `json:"algorithm"`
	Hyperparameters []Hyperparameter `json:"hyperparameters"`
}

// AddMLModel is the request payload to create an ML model.
type AddMLModel struct {
	Name                 string    `json:"name"`
	StrategyGovernanceID uuid.UUID `json:"strategy_governance_id"`
	Model                ModelSpec `json:"model"`
	Description          string    `json:"description,omitempty"`
	Comments             []string  `json:"comments,omitempty"`
}

// MLModel is an independently governed model definition that
// configurations link by governance ID and version.
type MLModel struct {
	GovernanceMeta
	AddMLModel
}

// DefaultHyperparameters returns the default search space for a model
// family. Integer and float entries carry [min, max] bounds, categorical
// entries carry the choices.
func DefaultHyperparameters(a Algorithm) []Hyperparameter {
	switch a {
	case AlgorithmMLP:
		return []Hyperparameter{
			{Name: "batch_size", Type: HPInteger, ValidValues: []any{16, 128}},
			{Name: "learning_rate_init", Type: HPFloat, ValidValues: []any{1e-5, 1e-2}},
			{Name: "decay_steps", Type: HPInteger, ValidValues: []any{500, 2000}},
			{Name: "decay_rate", Type: HPFloat, ValidValues: []any{0.8, 0.95}},
			{Name: "num_layers", Type: HPInteger, ValidValues: []any{1, 4}},
			{Name: "n_units", Type: HPInteger, ValidValues: []any{4, 128}},
			{Name: "dropout", Type: HPFloat, ValidValues: []any{0.1, 0.4}},
			{Name: "activation", Type: HPCategorical, ValidValues: []any{"relu", "tahn"}},
		}
	case AlgorithmXGBoost:
		return []Hyperparameter{
			{Name: "eta", Type: HPCategorical, ValidValues: []any{0.01, 0.05, 0.1, 0.2, 0.3, 0.4, 0.5}},
			{Name: "max_depth", Type: HPInteger, ValidValues: []any{2, 10}},
			{Name: "gamma", Type: HPFloat, ValidValues: []any{0, 0.5}},
			{Name: "max_delta_step", Type: HPInteger, ValidValues: []any{0, 10}},
			{Name: "lambda", Type: HPFloat, ValidValues: []any{0, 1}},
			{Name: "alpha", Type: HPFloat, ValidValues: []any{0, 1}},
			{Name: "min_child_weight", Type: HPInteger, ValidValues: []any{0, 6}},
			{Name: "num_local_rounds", Type: HPInteger, ValidValues: []any{5, 10}},
		}
	default:
		return nil
	}
}
