package governance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/internal/store"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🗳️ Proposal workflow
// =============================================================================

// CreateConfigurationProposal opens a configuration proposal under a
// strategy after validating the pinned ml-model and dataset versions.
func (s *Service) CreateConfigurationProposal(ctx context.Context, add types.AddProposal) (*types.Proposal, error) {
	if add.ContentVariant != types.ContentConfiguration {
		return nil, types.ValidationError(types.ErrInvalidRequest,
			"expected a configuration proposal, got %q", add.ContentVariant)
	}
	if err := add.Validate(); err != nil {
		return nil, err
	}
	strategy, err := s.GetStrategy(ctx, add.StrategyID)
	if err != nil {
		return nil, err
	}

	body := add.ProposalContent.Configuration
	if body == nil {
		return nil, types.ValidationError(types.ErrInvalidRequest, "configuration proposal requires a configuration body")
	}
	if _, err := s.GetMLModel(ctx, body.MLModelID, body.MLModelVersion); err != nil {
		return nil, err
	}
	if _, err := s.GetDataset(ctx, body.DatasetID, body.DatasetVersion); err != nil {
		return nil, err
	}

	proposal, err := s.insertProposal(ctx, add)
	if err != nil {
		return nil, err
	}

	strategy.ConfigurationProposals = append(strategy.ConfigurationProposals, proposal.ID)
	if err := s.insertVersion(ctx, store.KindStrategy, &strategy.GovernanceMeta, strategy); err != nil {
		return nil, err
	}

	s.onProposalCreated(ctx, proposal, strategy)
	return proposal, nil
}

// CreateQualityRequirementProposal opens a quality requirement proposal.
// Creating a correctness requirement whose metric is already covered by an
// accepted requirement or an open proposal on the same strategy fails with
// ExistingQualityRequirement.
func (s *Service) CreateQualityRequirementProposal(ctx context.Context, add types.AddProposal) (*types.Proposal, error) {
	switch add.ContentVariant {
	case types.ContentQualityRequirement, types.ContentPolicy:
	default:
		return nil, types.ValidationError(types.ErrInvalidRequest,
			"expected a quality requirement proposal, got %q", add.ContentVariant)
	}
	if err := add.Validate(); err != nil {
		return nil, err
	}
	strategy, err := s.GetStrategy(ctx, add.StrategyID)
	if err != nil {
		return nil, err
	}

	if add.ContentVariant == types.ContentQualityRequirement {
		if err := s.validateQualityRequirementProposal(ctx, add, strategy); err != nil {
			return nil, err
		}
	}

	proposal, err := s.insertProposal(ctx, add)
	if err != nil {
		return nil, err
	}

	strategy.QualityRequirementProposals = append(strategy.QualityRequirementProposals, proposal.ID)
	if err := s.insertVersion(ctx, store.KindStrategy, &strategy.GovernanceMeta, strategy); err != nil {
		return nil, err
	}

	s.onProposalCreated(ctx, proposal, strategy)
	return proposal, nil
}

func (s *Service) validateQualityRequirementProposal(ctx context.Context, add types.AddProposal, strategy *types.Strategy) error {
	switch add.OperationVariant {
	case types.OperationCreate, types.OperationUpdate:
		spec := add.ProposalContent.QualityRequirement
		if spec == nil {
			return types.ValidationError(types.ErrInvalidRequest, "quality requirement proposal requires a specification")
		}
		if err := spec.Validate(); err != nil {
			return err
		}
		if add.OperationVariant == types.OperationCreate && spec.Type == types.QRCorrectness {
			if err := s.checkCorrectnessMetricFree(ctx, strategy, spec.Metric); err != nil {
				return err
			}
		}
	}
	if add.OperationVariant != types.OperationCreate {
		if !types.ContainsID(strategy.QualityRequirements, *add.ReferencedContent) {
			return types.NotFoundError(types.ErrQualityRequirementNotFound,
				"quality requirement %s is not part of strategy %s", *add.ReferencedContent, strategy.GovernanceID)
		}
	}
	return nil
}

// checkCorrectnessMetricFree enforces at most one accepted requirement and
// at most one open proposal per (strategy, correctness metric).
func (s *Service) checkCorrectnessMetricFree(ctx context.Context, strategy *types.Strategy, metric types.CorrectnessMetric) error {
	accepted, err := s.QualityRequirementsFor(ctx, strategy)
	if err != nil {
		return err
	}
	for _, qr := range accepted {
		if qr.Spec.Type == types.QRCorrectness && qr.Spec.Metric == metric {
			return types.ConflictError(types.ErrExistingQualityRequirement,
				"strategy %s already bounds metric %s; propose an update instead",
				strategy.GovernanceID, metric).WithHTTPStatus(422)
		}
	}

	open, err := s.loadProposals(ctx, strategy.QualityRequirementProposals)
	if err != nil {
		return err
	}
	for i := range open {
		spec := open[i].ProposalContent.QualityRequirement
		if open[i].Status == types.StatusProposed && spec != nil &&
			spec.Type == types.QRCorrectness && spec.Metric == metric {
			return types.ConflictError(types.ErrExistingQualityRequirement,
				"an open proposal for metric %s already exists on strategy %s",
				metric, strategy.GovernanceID).WithHTTPStatus(422)
		}
	}
	return nil
}

// GetProposal loads a proposal by ID.
func (s *Service) GetProposal(ctx context.Context, id uuid.UUID) (*types.Proposal, error) {
	var p types.Proposal
	if err := s.store.Get(ctx, store.KindProposal, id, &p); err != nil {
		return nil, notFoundOr(err, types.ErrProposalNotFound, "proposal %s not found", id)
	}
	return &p, nil
}

// ListProposals returns proposals, optionally filtered by strategy and
// content variant (uuid.Nil and "" select all).
func (s *Service) ListProposals(ctx context.Context, strategyID uuid.UUID, variant types.ProposalContent) ([]types.Proposal, error) {
	docs, err := s.store.ListProposals(ctx, strategyID, string(variant))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "list proposals").WithCause(err)
	}
	proposals := make([]types.Proposal, 0, len(docs))
	for i := range docs {
		var p types.Proposal
		if err := docs[i].Decode(&p); err != nil {
			return nil, types.NewError(types.ErrInternalError, "decode proposal").WithCause(err)
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// DeleteProposal withdraws an open proposal, removing it from the owning
// strategy's pending list.
func (s *Service) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	proposal, err := s.GetProposal(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Status != types.StatusProposed {
		return types.ConflictError(types.ErrAlreadyTallied, "proposal %s has already been tallied", id)
	}
	if err := s.store.SoftDelete(ctx, store.KindProposal, id); err != nil {
		return notFoundOr(err, types.ErrProposalNotFound, "proposal %s not found", id)
	}

	strategy, err := s.GetStrategy(ctx, proposal.StrategyID)
	if err != nil {
		return err
	}
	strategy.ConfigurationProposals = removeID(strategy.ConfigurationProposals, id)
	strategy.QualityRequirementProposals = removeID(strategy.QualityRequirementProposals, id)
	if err := s.insertVersion(ctx, store.KindStrategy, &strategy.GovernanceMeta, strategy); err != nil {
		return err
	}

	s.record(ctx, Record{Operation: "delete_proposal", Kind: string(store.KindProposal),
		GovernanceID: id, Version: 1})
	return nil
}

// =============================================================================
// 🗳️ Vote casting
// =============================================================================

// CastVote records a member's vote on a proposal, replacing any previous
// vote by the same member. Priority votes must not collide with the same
// member's priority on another open proposal of the same strategy and
// content variant.
func (s *Service) CastVote(ctx context.Context, proposalID uuid.UUID, vote types.Vote) (*types.Proposal, error) {
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != types.StatusProposed {
		return nil, types.ConflictError(types.ErrAlreadyTallied,
			"proposal %s has already been tallied", proposalID)
	}

	group, err := s.GetGroup(ctx, proposal.Group)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(vote.Member) {
		return nil, types.ForbiddenError(types.ErrMemberNotInGroup,
			"member %s is not part of group %s", vote.Member, group.GovernanceID)
	}

	switch proposal.ContentVariant {
	case types.ContentConfiguration:
		if !vote.IsPriority() {
			return nil, types.ValidationError(types.ErrInvalidRequest,
				"configuration proposals take a priority vote between 1 and 3")
		}
		if err := s.checkPriorityCollision(ctx, proposal, vote); err != nil {
			return nil, err
		}
	default:
		if !vote.IsDecision() {
			return nil, types.ValidationError(types.ErrInvalidRequest,
				"%s proposals take a yes/no decision vote", proposal.ContentVariant)
		}
	}

	proposal.PutVote(vote)
	if err := s.store.UpdatePayload(ctx, store.KindProposal, proposalID, proposal); err != nil {
		return nil, notFoundOr(err, types.ErrProposalNotFound, "proposal %s not found", proposalID)
	}

	if s.metrics != nil {
		if vote.IsPriority() {
			s.metrics.RecordVote("priority")
		} else {
			s.metrics.RecordVote("decision")
		}
	}
	s.record(ctx, Record{Operation: "cast_vote", Kind: string(store.KindProposal),
		GovernanceID: proposalID, Version: 1, Actor: vote.Member})
	return proposal, nil
}

// checkPriorityCollision rejects a priority vote when the member already
// holds the same priority on a different proposal of the same strategy and
// content variant.
func (s *Service) checkPriorityCollision(ctx context.Context, proposal *types.Proposal, vote types.Vote) error {
	siblings, err := s.ListProposals(ctx, proposal.StrategyID, proposal.ContentVariant)
	if err != nil {
		return err
	}
	for i := range siblings {
		if siblings[i].ID == proposal.ID || siblings[i].Status != types.StatusProposed {
			continue
		}
		if existing, ok := siblings[i].VoteBy(vote.Member); ok && existing.Priority == vote.Priority {
			return types.ConflictError(types.ErrVotePriorityExists,
				"member %s already holds priority %d on proposal %s",
				vote.Member, vote.Priority, siblings[i].ID)
		}
	}
	return nil
}

// RemoveVote withdraws a member's vote from a proposal. Removing an absent
// vote is a no-op.
func (s *Service) RemoveVote(ctx context.Context, proposalID, member uuid.UUID) (*types.Proposal, error) {
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != types.StatusProposed {
		return nil, types.ConflictError(types.ErrAlreadyTallied,
			"proposal %s has already been tallied", proposalID)
	}
	if !proposal.RemoveVote(member) {
		return proposal, nil
	}
	if err := s.store.UpdatePayload(ctx, store.KindProposal, proposalID, proposal); err != nil {
		return nil, notFoundOr(err, types.ErrProposalNotFound, "proposal %s not found", proposalID)
	}
	s.record(ctx, Record{Operation: "remove_vote", Kind: string(store.KindProposal),
		GovernanceID: proposalID, Version: 1, Actor: member})
	return proposal, nil
}

// =============================================================================
// 🗳️ Tally execution
// =============================================================================

// CountConfigurationVotes tallies the open configuration proposals of a
// strategy. A sole majority winner is promoted into a Configuration, the
// losers are rejected, the pending list is cleared and the training layer
// is notified. A tie or missing majority returns the tally untouched so
// members can revise their votes and count again.
func (s *Service) CountConfigurationVotes(ctx context.Context, strategyID uuid.UUID) (*types.VoteTally, error) {
	started := time.Now()

	strategy, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if len(strategy.ConfigurationProposals) == 0 {
		return nil, types.ConflictError(types.ErrNoPendingProposals,
			"strategy %s has no open configuration proposals", strategyID)
	}

	proposals, err := s.loadProposals(ctx, strategy.ConfigurationProposals)
	if err != nil {
		return nil, err
	}
	for i := range proposals {
		if proposals[i].Status != types.StatusProposed {
			return nil, types.ConflictError(types.ErrAlreadyTallied,
				"proposal %s has already been tallied", proposals[i].ID)
		}
	}

	group, err := s.GetGroup(ctx, strategy.BelongingGroup)
	if err != nil {
		return nil, err
	}

	tally := TallyConfigurations(proposals, len(group.Members))
	if tally.Winner == nil {
		outcome := "no_majority"
		if tally.Message != "" {
			outcome = "tie"
		}
		s.recordTallyMetrics(types.ContentConfiguration, outcome, started)
		s.logger.Info("configuration tally without winner",
			zap.String("strategy", strategyID.String()),
			zap.String("outcome", outcome))
		return &tally, nil
	}

	var winner *types.Proposal
	for i := range proposals {
		if proposals[i].ID == *tally.Winner {
			winner = &proposals[i]
			break
		}
	}
	if winner == nil || winner.ProposalContent == nil || winner.ProposalContent.Configuration == nil {
		return nil, types.NewError(types.ErrInternalError, "winning proposal lost its configuration body")
	}

	// The winner's status transition is the serialisation point: a
	// concurrent count loses the compare-and-set and reports Conflict.
	winner.Status = types.StatusAccepted
	if err := s.transitionProposal(ctx, winner, types.StatusProposed); err != nil {
		return nil, err
	}
	for i := range proposals {
		if proposals[i].ID == winner.ID {
			continue
		}
		proposals[i].Status = types.StatusRejected
		if err := s.transitionProposal(ctx, &proposals[i], types.StatusProposed); err != nil {
			return nil, err
		}
	}

	cfg := types.Configuration{
		ObjectMeta:       types.NewObjectMeta(),
		AddConfiguration: *winner.ProposalContent.Configuration,
		Status:           types.StatusAccepted,
		StrategyLinked:   &strategy.GovernanceID,
	}
	doc, err := store.NewObject(store.KindConfiguration, cfg.ObjectMeta, cfg)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode configuration").WithCause(err)
	}
	doc.Status = string(cfg.Status)
	doc.StrategyID = strategy.GovernanceID.String()
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "store configuration").WithCause(err)
	}

	strategy.Configurations = append(strategy.Configurations, cfg.ID)
	strategy.ConfigurationProposals = []uuid.UUID{}
	if err := s.insertVersion(ctx, store.KindStrategy, &strategy.GovernanceMeta, strategy); err != nil {
		return nil, err
	}

	tally.CreatedConfigurationID = &cfg.ID
	tally.CreatedConfigurationModelID = &cfg.MLModelID
	tally.CreatedConfigurationDatasetID = &cfg.DatasetID
	tally.CreatedConfigurationGroupID = &group.GovernanceID

	s.recordTallyMetrics(types.ContentConfiguration, "winner", started)
	s.record(ctx, Record{Operation: "accept_configuration", Kind: string(store.KindConfiguration),
		GovernanceID: cfg.ID, Version: 1})
	s.logger.Info("configuration proposal accepted",
		zap.String("strategy", strategyID.String()),
		zap.String("proposal", winner.ID.String()),
		zap.String("configuration", cfg.ID.String()))

	if s.notifier != nil {
		if err := s.notifier.OnConfigurationAccepted(ctx, cfg); err != nil {
			// Training session setup failing must not unwind the vote.
			s.logger.Error("training session creation failed",
				zap.String("configuration", cfg.ID.String()), zap.Error(err))
		}
	}
	return &tally, nil
}

// CountQualityRequirementVotes tallies a single quality requirement
// proposal. Acceptance applies the proposal's operation to the strategy's
// quality requirement list; rejection only closes the proposal.
func (s *Service) CountQualityRequirementVotes(ctx context.Context, strategyID, proposalID uuid.UUID) (*types.AcceptanceTally, error) {
	started := time.Now()

	strategy, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if !types.ContainsID(strategy.QualityRequirementProposals, proposalID) {
		return nil, types.ConflictError(types.ErrNoPendingProposals,
			"proposal %s is not pending on strategy %s", proposalID, strategyID)
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ContentVariant == types.ContentPolicy {
		return nil, types.ValidationError(types.ErrUnsupportedProposalVariant,
			"policy proposals cannot be tallied yet")
	}
	if proposal.Status != types.StatusProposed {
		return nil, types.ConflictError(types.ErrAlreadyTallied,
			"proposal %s has already been tallied", proposalID)
	}

	group, err := s.GetGroup(ctx, proposal.Group)
	if err != nil {
		return nil, err
	}

	tally := TallyDecision(proposal)
	tally.MemberCount = len(group.Members)

	if !tally.Accepted {
		proposal.Status = types.StatusRejected
		if err := s.transitionProposal(ctx, proposal, types.StatusProposed); err != nil {
			return nil, err
		}
		strategy.QualityRequirementProposals = removeID(strategy.QualityRequirementProposals, proposalID)
		if err := s.insertVersion(ctx, store.KindStrategy, &strategy.GovernanceMeta, strategy); err != nil {
			return nil, err
		}
		s.recordTallyMetrics(types.ContentQualityRequirement, "rejected", started)
		s.logger.Info("quality requirement proposal rejected",
			zap.String("strategy", strategyID.String()),
			zap.String("proposal", proposalID.String()))
		return &tally, nil
	}

	proposal.Status = types.StatusAccepted
	if err := s.transitionProposal(ctx, proposal, types.StatusProposed); err != nil {
		return nil, err
	}

	switch proposal.OperationVariant {
	case types.OperationCreate, types.OperationUpdate:
		qr := types.QualityRequirement{
			ObjectMeta: types.NewObjectMeta(),
			Spec:       *proposal.ProposalContent.QualityRequirement,
		}
		doc, err := store.NewObject(store.KindQualityRequirement, qr.ObjectMeta, qr)
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "encode quality requirement").WithCause(err)
		}
		doc.Status = string(types.StatusAccepted)
		doc.StrategyID = strategy.GovernanceID.String()
		if err := s.store.Insert(ctx, doc); err != nil {
			return nil, types.NewError(types.ErrInternalError, "store quality requirement").WithCause(err)
		}
		strategy.QualityRequirements = append(strategy.QualityRequirements, qr.ID)
		tally.CreatedQualityRequirementID = &qr.ID

		if proposal.OperationVariant == types.OperationUpdate {
			old := *proposal.ReferencedContent
			strategy.QualityRequirements = removeID(strategy.QualityRequirements, old)
			if err := s.obsoleteQualityRequirement(ctx, old); err != nil {
				s.logger.Warn("superseded quality requirement not marked obsolete",
					zap.String("quality_requirement", old.String()), zap.Error(err))
			}
		}
	case types.OperationDelete:
		old := *proposal.ReferencedContent
		strategy.QualityRequirements = removeID(strategy.QualityRequirements, old)
		if err := s.store.SoftDelete(ctx, store.KindQualityRequirement, old); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, types.NewError(types.ErrInternalError, "delete quality requirement").WithCause(err)
		}
	}

	strategy.QualityRequirementProposals = removeID(strategy.QualityRequirementProposals, proposalID)
	if err := s.insertVersion(ctx, store.KindStrategy, &strategy.GovernanceMeta, strategy); err != nil {
		return nil, err
	}

	s.recordTallyMetrics(types.ContentQualityRequirement, "accepted", started)
	s.record(ctx, Record{Operation: "accept_quality_requirement", Kind: string(store.KindQualityRequirement),
		GovernanceID: proposalID, Version: 1})
	s.logger.Info("quality requirement proposal accepted",
		zap.String("strategy", strategyID.String()),
		zap.String("proposal", proposalID.String()),
		zap.String("operation", string(proposal.OperationVariant)))
	return &tally, nil
}

// =============================================================================
// 🔧 Helpers
// =============================================================================

// insertProposal persists a fresh PROPOSED proposal document.
func (s *Service) insertProposal(ctx context.Context, add types.AddProposal) (*types.Proposal, error) {
	proposal := &types.Proposal{
		ObjectMeta:  types.NewObjectMeta(),
		AddProposal: add,
		Status:      types.StatusProposed,
		Votes:       []types.Vote{},
	}
	doc, err := store.NewObject(store.KindProposal, proposal.ObjectMeta, proposal)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode proposal").WithCause(err)
	}
	doc.Status = string(proposal.Status)
	doc.StrategyID = proposal.StrategyID.String()
	doc.ContentVariant = string(proposal.ContentVariant)
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "store proposal").WithCause(err)
	}
	return proposal, nil
}

func (s *Service) onProposalCreated(ctx context.Context, proposal *types.Proposal, strategy *types.Strategy) {
	if s.metrics != nil {
		s.metrics.RecordProposal(string(proposal.ContentVariant), string(proposal.OperationVariant))
		s.metrics.SetPendingProposals(strategy.GovernanceID.String(),
			len(strategy.ConfigurationProposals)+len(strategy.QualityRequirementProposals))
	}
	s.record(ctx, Record{Operation: "create_proposal", Kind: string(store.KindProposal),
		GovernanceID: proposal.ID, Version: 1, Actor: proposal.Proposer})
	s.logger.Info("proposal created",
		zap.String("proposal", proposal.ID.String()),
		zap.String("strategy", proposal.StrategyID.String()),
		zap.String("content_variant", string(proposal.ContentVariant)),
		zap.String("operation_variant", string(proposal.OperationVariant)))
}

// loadProposals resolves proposal IDs into decoded proposals.
func (s *Service) loadProposals(ctx context.Context, ids []uuid.UUID) ([]types.Proposal, error) {
	docs, err := s.store.ListByIDs(ctx, store.KindProposal, ids)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "load proposals").WithCause(err)
	}
	proposals := make([]types.Proposal, 0, len(docs))
	for i := range docs {
		var p types.Proposal
		if err := docs[i].Decode(&p); err != nil {
			return nil, types.NewError(types.ErrInternalError, "decode proposal").WithCause(err)
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// transitionProposal applies the proposal's new status with a
// compare-and-set against the expected previous status.
func (s *Service) transitionProposal(ctx context.Context, proposal *types.Proposal, from types.Status) error {
	err := s.store.TransitionStatus(ctx, store.KindProposal, proposal.ID, from, proposal.Status, proposal)
	if errors.Is(err, store.ErrConflict) {
		return types.ConflictError(types.ErrAlreadyTallied,
			"proposal %s has already been tallied", proposal.ID)
	}
	if err != nil {
		return types.NewError(types.ErrInternalError, "transition proposal").WithCause(err)
	}
	return nil
}

// obsoleteQualityRequirement flips a superseded requirement to OBSOLETE.
func (s *Service) obsoleteQualityRequirement(ctx context.Context, id uuid.UUID) error {
	var qr types.QualityRequirement
	if err := s.store.Get(ctx, store.KindQualityRequirement, id, &qr); err != nil {
		return err
	}
	return s.store.TransitionStatus(ctx, store.KindQualityRequirement, id,
		types.StatusAccepted, types.StatusObsolete, qr)
}

func (s *Service) recordTallyMetrics(variant types.ProposalContent, outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTally(string(variant), outcome, time.Since(started))
}

// removeID returns ids without the given id.
func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
