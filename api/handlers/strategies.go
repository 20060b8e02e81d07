package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🎯 Strategy handlers
// =============================================================================

// StrategyHandler serves strategies and their vote-counting operations.
type StrategyHandler struct {
	svc    *governance.Service
	logger *zap.Logger
}

// NewStrategyHandler creates a strategy handler.
func NewStrategyHandler(svc *governance.Service, logger *zap.Logger) *StrategyHandler {
	return &StrategyHandler{svc: svc, logger: logger.With(zap.String("component", "strategy_handler"))}
}

// HandleCreate serves POST /strategies.
func (h *StrategyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var add types.AddStrategy
	if errD := DecodeJSON(r, &add); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	strategy, err := h.svc.CreateStrategy(r.Context(), add)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, strategy)
}

// HandleList serves GET /strategies.
func (h *StrategyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	strategies, err := h.svc.ListStrategies(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, strategies)
}

// HandleGet serves GET /strategies/{id}.
func (h *StrategyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	strategy, err := h.svc.GetStrategy(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, strategy)
}

// HandleCountConfigurationVotes serves
// POST /strategies/{id}/count_votes_configuration_proposals.
// Tie and missing majority are valid outcomes returned with 200 and a
// nil winner, never errors.
func (h *StrategyHandler) HandleCountConfigurationVotes(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	tally, err := h.svc.CountConfigurationVotes(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, tally)
}

// HandleCountQualityRequirementVotes serves
// POST /strategies/{id}/count_votes_qr/{proposalId}.
func (h *StrategyHandler) HandleCountQualityRequirementVotes(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	proposalID, errD := PathUUID(r, "proposalId")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	tally, err := h.svc.CountQualityRequirementVotes(r.Context(), id, proposalID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, tally)
}
