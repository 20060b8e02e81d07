package types

import (
	"fmt"

	"github.com/google/uuid"
)

// QualityRequirementType discriminates the quality requirement variants.
type QualityRequirementType string

const (
	QRCorrectness      QualityRequirementType = "Correctness"
	QRBias             QualityRequirementType = "Bias"
	QRInterpretability QualityRequirementType = "Interpretability"
	QRRobustness       QualityRequirementType = "Robustness"
	QREfficient        QualityRequirementType = "Efficient"
	QRSecurity         QualityRequirementType = "Security"
	QRPrivacy          QualityRequirementType = "Privacy"
)

// CorrectnessMetric enumerates the metrics a correctness requirement can
// bound.
type CorrectnessMetric string

const (
	MetricCrossEntropyLoss CorrectnessMetric = "CrossEntropyLoss"
	MetricAccuracy         CorrectnessMetric = "Accuracy"
	MetricF1Score          CorrectnessMetric = "F1Score"
	MetricAUC              CorrectnessMetric = "AUC"
)

// QualityRequirementSpec is the discriminated content of a quality
// requirement. Only the fields matching the type are meaningful:
// Correctness carries a metric with a required value window, Bias carries
// a vulnerable feature and threshold, the remaining variants are markers.
type QualityRequirementSpec struct {
	Type QualityRequirementType `json:"quality_req_type"`

	// Correctness fields.
	Metric           CorrectnessMetric `json:"metric,omitempty"`
	RequiredMinValue *float64          `json:"required_min_value,omitempty"`
	RequiredMaxValue *float64          `json:"required_max_value,omitempty"`

	// Bias fields.
	VulnerableFeature string `json:"vulnerable_feature,omitempty"`
	AcceptedThreshold *int64 `json:"accepted_threshold,omitempty"`
}

// Validate checks that the fields required by the variant are present and
// that no foreign fields leak in.
func (s *QualityRequirementSpec) Validate() error {
	switch s.Type {
	case QRCorrectness:
		switch s.Metric {
		case MetricCrossEntropyLoss, MetricAccuracy, MetricF1Score, MetricAUC:
		default:
			return ValidationError(ErrInvalidRequest, "unknown correctness metric %q", s.Metric)
		}
		if s.RequiredMinValue == nil || s.RequiredMaxValue == nil {
			return ValidationError(ErrInvalidRequest, "correctness requires required_min_value and required_max_value")
		}
		if *s.RequiredMinValue > *s.RequiredMaxValue {
			return ValidationError(ErrInvalidRequest, "required_min_value exceeds required_max_value")
		}
	case QRBias:
		if s.VulnerableFeature == "" {
			return ValidationError(ErrInvalidRequest, "bias requires a vulnerable_feature")
		}
		if s.AcceptedThreshold == nil {
			return ValidationError(ErrInvalidRequest, "bias requires an accepted_threshold")
		}
	case QRInterpretability, QRRobustness, QREfficient, QRSecurity, QRPrivacy:
		// Marker variants carry no extra fields.
	default:
		return ValidationError(ErrInvalidRequest, "unknown quality requirement type %q", s.Type)
	}
	return nil
}

// String renders the spec for log lines.
func (s *QualityRequirementSpec) String() string {
	if s.Type == QRCorrectness {
		return fmt.Sprintf("%s(%s)", s.Type, s.Metric)
	}
	return string(s.Type)
}

// QualityRequirement is an accepted, immutable quality requirement bound
// to a strategy. Updates create a replacement object through a new
// proposal.
type QualityRequirement struct {
	ObjectMeta
	Spec QualityRequirementSpec `json:"quality_requirement"`
}

// MetricNames collects the correctness metric names from a set of quality
// requirements, preserving order and dropping duplicates.
func MetricNames(reqs []QualityRequirement) []string {
	seen := make(map[CorrectnessMetric]bool, len(reqs))
	var names []string
	for _, qr := range reqs {
		if qr.Spec.Type != QRCorrectness || seen[qr.Spec.Metric] {
			continue
		}
		seen[qr.Spec.Metric] = true
		names = append(names, string(qr.Spec.Metric))
	}
	return names
}

// ContainsID reports whether ids contains the given ID.
func ContainsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
