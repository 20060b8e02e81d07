package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🗳️ Proposal handlers
// =============================================================================

// ProposalHandler serves proposal creation, voting and lookup.
type ProposalHandler struct {
	svc    *governance.Service
	logger *zap.Logger
}

// NewProposalHandler creates a proposal handler.
func NewProposalHandler(svc *governance.Service, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{svc: svc, logger: logger.With(zap.String("component", "proposal_handler"))}
}

// HandleCreateConfiguration serves POST /proposals/configurations.
func (h *ProposalHandler) HandleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var add types.AddProposal
	if errD := DecodeJSON(r, &add); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	proposal, err := h.svc.CreateConfigurationProposal(r.Context(), add)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, proposal)
}

// HandleCreateQualityRequirement serves POST /proposals/quality_requirements.
func (h *ProposalHandler) HandleCreateQualityRequirement(w http.ResponseWriter, r *http.Request) {
	var add types.AddProposal
	if errD := DecodeJSON(r, &add); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	proposal, err := h.svc.CreateQualityRequirementProposal(r.Context(), add)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, proposal)
}

// HandleGet serves GET /proposals/{id}.
func (h *ProposalHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	proposal, err := h.svc.GetProposal(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, proposal)
}

// HandleList serves GET /proposals with optional strategy_id and
// content_variant query filters.
func (h *ProposalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	strategyID := uuid.Nil
	if raw := r.URL.Query().Get("strategy_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			WriteError(w, types.ValidationError(types.ErrInvalidRequest,
				"invalid strategy_id %q", raw), h.logger)
			return
		}
		strategyID = id
	}
	variant := types.ProposalContent(r.URL.Query().Get("content_variant"))

	proposals, err := h.svc.ListProposals(r.Context(), strategyID, variant)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, proposals)
}

// HandleDelete serves DELETE /proposals/{id}.
func (h *ProposalHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	if err := h.svc.DeleteProposal(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVote serves POST /proposals/{id}/votes. The body carries either
// a priority (1..3) or a decision; re-voting replaces the member's
// previous vote.
func (h *ProposalHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	var vote types.Vote
	if errD := DecodeJSON(r, &vote); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	if vote.Member == uuid.Nil {
		WriteError(w, types.ValidationError(types.ErrInvalidRequest, "member is required"), h.logger)
		return
	}
	proposal, err := h.svc.CastVote(r.Context(), id, vote)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, proposal)
}

// HandleRemoveVote serves DELETE /proposals/{id}/votes/{member}.
func (h *ProposalHandler) HandleRemoveVote(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	member, errD := PathUUID(r, "member")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	proposal, err := h.svc.RemoveVote(r.Context(), id, member)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, proposal)
}
