package types

import "github.com/google/uuid"

// ProposalContent enumerates what a proposal is about.
type ProposalContent string

const (
	ContentConfiguration      ProposalContent = "configuration"
	ContentQualityRequirement ProposalContent = "quality_requirement"
	ContentInformationUpdate  ProposalContent = "information_update"
	ContentPolicy             ProposalContent = "policy"
)

// ProposalOperation enumerates what a proposal wants to do.
type ProposalOperation string

const (
	OperationCreate ProposalOperation = "create"
	OperationUpdate ProposalOperation = "update"
	OperationDelete ProposalOperation = "delete"
)

// ProposalBody is the discriminated content of a proposal. Exactly one
// field is set, matching the proposal's content variant; delete proposals
// carry neither.
type ProposalBody struct {
	Configuration      *AddConfiguration       `json:"configuration,omitempty"`
	QualityRequirement *QualityRequirementSpec `json:"quality_requirement,omitempty"`
}

// Empty reports whether the body carries no content.
func (b *ProposalBody) Empty() bool {
	return b == nil || (b.Configuration == nil && b.QualityRequirement == nil)
}

// AddProposal is the request payload to create a proposal.
type AddProposal struct {
	Name              string            `json:"name"`
	Proposer          uuid.UUID         `json:"proposer"`
	Group             uuid.UUID         `json:"group"`
	StrategyID        uuid.UUID         `json:"strategy_id"`
	ContentVariant    ProposalContent   `json:"content_variant"`
	OperationVariant  ProposalOperation `json:"operation_variant"`
	ProposalContent   *ProposalBody     `json:"proposal_content,omitempty"`
	ReferencedContent *uuid.UUID        `json:"referenced_content,omitempty"`
	Reasoning         string            `json:"reasoning,omitempty"`
}

// validOperations lists the operations allowed per content variant.
// Variants absent from the map cannot be proposed at all.
var validOperations = map[ProposalContent][]ProposalOperation{
	ContentConfiguration:      {OperationCreate},
	ContentQualityRequirement: {OperationCreate, OperationUpdate, OperationDelete},
	ContentPolicy:             {OperationCreate, OperationUpdate, OperationDelete},
}

// Validate checks the content/operation combination and the consistency of
// body and reference:
//   - create must carry content and no reference
//   - update must carry both content and reference
//   - delete must carry a reference and no content
func (p *AddProposal) Validate() error {
	ops, ok := validOperations[p.ContentVariant]
	if !ok {
		return ValidationError(ErrNotProposable, "content variant %q cannot be proposed", p.ContentVariant)
	}
	allowed := false
	for _, op := range ops {
		if op == p.OperationVariant {
			allowed = true
			break
		}
	}
	if !allowed {
		return ValidationError(ErrNotProposable,
			"operation %q is not valid for content variant %q", p.OperationVariant, p.ContentVariant)
	}

	switch p.OperationVariant {
	case OperationCreate:
		if p.ReferencedContent != nil {
			return ValidationError(ErrInvalidRequest, "create cannot reference an existing object")
		}
		if p.ProposalContent.Empty() {
			return ValidationError(ErrInvalidRequest, "create requires proposal content")
		}
	case OperationUpdate:
		if p.ReferencedContent == nil {
			return ValidationError(ErrInvalidRequest, "update must reference an existing object")
		}
		if p.ProposalContent.Empty() {
			return ValidationError(ErrInvalidRequest, "update requires proposal content")
		}
	case OperationDelete:
		if p.ReferencedContent == nil {
			return ValidationError(ErrInvalidRequest, "delete must reference an existing object")
		}
		if !p.ProposalContent.Empty() {
			return ValidationError(ErrInvalidRequest, "delete cannot carry content")
		}
	}
	return nil
}

// Vote is a single member's vote on a proposal. Configuration proposals
// use Priority (1 is high, 3 is low), quality requirement proposals use
// Decision. A member holds at most one vote per proposal; re-voting
// replaces the previous vote.
type Vote struct {
	Member   uuid.UUID `json:"member"`
	Priority int       `json:"priority,omitempty"`
	Decision *bool     `json:"decision,omitempty"`
}

// IsPriority reports whether the vote carries a priority ranking.
func (v Vote) IsPriority() bool {
	return v.Priority >= 1 && v.Priority <= 3
}

// IsDecision reports whether the vote carries a yes/no decision.
func (v Vote) IsDecision() bool {
	return v.Decision != nil
}

// Proposal is a pending or decided governance proposal with its votes.
// A single partner appears as distinct member identities per group.
type Proposal struct {
	ObjectMeta
	AddProposal
	Status Status `json:"status"`
	Votes  []Vote `json:"votes"`
}

// VoteBy returns the vote cast by the given member, if any.
func (p *Proposal) VoteBy(member uuid.UUID) (Vote, bool) {
	for _, v := range p.Votes {
		if v.Member == member {
			return v, true
		}
	}
	return Vote{}, false
}

// PutVote inserts the vote, replacing any previous vote by the same
// member.
func (p *Proposal) PutVote(vote Vote) {
	for i, v := range p.Votes {
		if v.Member == vote.Member {
			p.Votes[i] = vote
			return
		}
	}
	p.Votes = append(p.Votes, vote)
}

// RemoveVote drops the vote cast by the given member and reports whether
// one was present.
func (p *Proposal) RemoveVote(member uuid.UUID) bool {
	for i, v := range p.Votes {
		if v.Member == member {
			p.Votes = append(p.Votes[:i], p.Votes[i+1:]...)
			return true
		}
	}
	return false
}
