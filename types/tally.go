package types

import "github.com/google/uuid"

// TieMessage is returned in a VoteTally when two or more proposals end up
// with equal cumulative counts at the deciding priority tier.
const TieMessage = "There was a tie in the voting. Please, change votes to solve it."

// PriorityBuckets groups the members who voted for a proposal by the
// priority they assigned.
type PriorityBuckets struct {
	Priority1 []uuid.UUID `json:"priority_1"`
	Priority2 []uuid.UUID `json:"priority_2"`
	Priority3 []uuid.UUID `json:"priority_3"`
}

// Add records a member under the given priority tier.
func (b *PriorityBuckets) Add(priority int, member uuid.UUID) {
	switch priority {
	case 1:
		b.Priority1 = append(b.Priority1, member)
	case 2:
		b.Priority2 = append(b.Priority2, member)
	case 3:
		b.Priority3 = append(b.Priority3, member)
	}
}

// CountThrough returns the cumulative number of votes with priority 1
// through tier inclusive.
func (b PriorityBuckets) CountThrough(tier int) int {
	n := 0
	if tier >= 1 {
		n += len(b.Priority1)
	}
	if tier >= 2 {
		n += len(b.Priority2)
	}
	if tier >= 3 {
		n += len(b.Priority3)
	}
	return n
}

// VoteTally is the outcome of a priority tally over a strategy's pending
// configuration proposals. Winner is nil when no proposal reached a
// majority or when the deciding tier was tied; Message distinguishes the
// tie case.
type VoteTally struct {
	Winner      *uuid.UUID                    `json:"winner"`
	Votes       map[uuid.UUID]PriorityBuckets `json:"votes"`
	MemberCount int                           `json:"member_count"`
	Message     string                        `json:"message,omitempty"`

	CreatedConfigurationID        *uuid.UUID `json:"created_configuration_id,omitempty"`
	CreatedConfigurationModelID   *uuid.UUID `json:"created_configuration_model_id,omitempty"`
	CreatedConfigurationDatasetID *uuid.UUID `json:"created_configuration_dataset_id,omitempty"`
	CreatedConfigurationGroupID   *uuid.UUID `json:"created_configuration_group_id,omitempty"`
}

// AcceptanceTally is the outcome of a yes/no tally over a single quality
// requirement proposal.
type AcceptanceTally struct {
	Proposal    uuid.UUID          `json:"proposal"`
	Accepted    bool               `json:"accepted"`
	Votes       map[uuid.UUID]bool `json:"votes"`
	MemberCount int                `json:"member_count"`

	CreatedQualityRequirementID *uuid.UUID `json:"created_quality_requirement_id,omitempty"`
}
