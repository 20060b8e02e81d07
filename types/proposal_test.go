package types

import (
	"testing"

	"github.com/google/uuid"
)

func validConfigurationProposal() AddProposal {
	return AddProposal{
		Name:             "baseline run",
		Proposer:         uuid.New(),
		Group:            uuid.New(),
		StrategyID:       uuid.New(),
		ContentVariant:   ContentConfiguration,
		OperationVariant: OperationCreate,
		ProposalContent: &ProposalBody{
			Configuration: &AddConfiguration{
				MLModelID:      uuid.New(),
				MLModelVersion: 1,
				DatasetID:      uuid.New(),
				DatasetVersion: 1,
				NumberOfRounds: 5,
			},
		},
	}
}

func TestAddProposal_Validate(t *testing.T) {
	t.Parallel()

	p := validConfigurationProposal()
	if err := p.Validate(); err != nil {
		t.Fatalf("valid proposal rejected: %v", err)
	}

	// Configurations only support create.
	p = validConfigurationProposal()
	p.OperationVariant = OperationUpdate
	ref := uuid.New()
	p.ReferencedContent = &ref
	if err := p.Validate(); GetErrorCode(err) != ErrNotProposable {
		t.Fatalf("expected NOT_PROPOSABLE, got %v", err)
	}

	// Information updates are not implemented as proposals.
	p = validConfigurationProposal()
	p.ContentVariant = ContentInformationUpdate
	if err := p.Validate(); GetErrorCode(err) != ErrNotProposable {
		t.Fatalf("expected NOT_PROPOSABLE, got %v", err)
	}

	// Create must not reference an existing object.
	p = validConfigurationProposal()
	p.ReferencedContent = &ref
	if err := p.Validate(); GetErrorCode(err) != ErrInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}

	// Delete carries a reference but no content.
	del := AddProposal{
		Name:              "drop privacy requirement",
		Proposer:          uuid.New(),
		Group:             uuid.New(),
		StrategyID:        uuid.New(),
		ContentVariant:    ContentQualityRequirement,
		OperationVariant:  OperationDelete,
		ReferencedContent: &ref,
	}
	if err := del.Validate(); err != nil {
		t.Fatalf("valid delete proposal rejected: %v", err)
	}
	del.ProposalContent = &ProposalBody{QualityRequirement: &QualityRequirementSpec{Type: QRPrivacy}}
	if err := del.Validate(); GetErrorCode(err) != ErrInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST for delete with content, got %v", err)
	}
}

func TestProposal_PutVoteReplaces(t *testing.T) {
	t.Parallel()

	member := uuid.New()
	p := Proposal{}
	p.PutVote(Vote{Member: member, Priority: 3})
	p.PutVote(Vote{Member: uuid.New(), Priority: 1})
	p.PutVote(Vote{Member: member, Priority: 1})

	if len(p.Votes) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(p.Votes))
	}
	v, ok := p.VoteBy(member)
	if !ok || v.Priority != 1 {
		t.Fatalf("expected replaced vote with priority 1, got %+v ok=%v", v, ok)
	}

	if !p.RemoveVote(member) {
		t.Fatal("expected vote removal")
	}
	if _, ok := p.VoteBy(member); ok {
		t.Fatal("vote still present after removal")
	}
}

func TestPriorityBuckets_CountThrough(t *testing.T) {
	t.Parallel()

	var b PriorityBuckets
	b.Add(1, uuid.New())
	b.Add(2, uuid.New())
	b.Add(2, uuid.New())
	b.Add(3, uuid.New())

	if got := b.CountThrough(1); got != 1 {
		t.Fatalf("tier 1: expected 1, got %d", got)
	}
	if got := b.CountThrough(2); got != 3 {
		t.Fatalf("tier 2: expected 3, got %d", got)
	}
	if got := b.CountThrough(3); got != 4 {
		t.Fatalf("tier 3: expected 4, got %d", got)
	}
}

func TestQualityRequirementSpec_Validate(t *testing.T) {
	t.Parallel()

	minV, maxV := 0.2, 0.9
	spec := QualityRequirementSpec{
		Type:             QRCorrectness,
		Metric:           MetricAccuracy,
		RequiredMinValue: &minV,
		RequiredMaxValue: &maxV,
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("valid correctness spec rejected: %v", err)
	}

	spec.Metric = "Recall"
	if err := spec.Validate(); err == nil {
		t.Fatal("unknown metric accepted")
	}

	if err := (&QualityRequirementSpec{Type: QRPrivacy}).Validate(); err != nil {
		t.Fatalf("marker variant rejected: %v", err)
	}

	if err := (&QualityRequirementSpec{Type: QRBias, VulnerableFeature: "age"}).Validate(); err == nil {
		t.Fatal("bias without threshold accepted")
	}
}
