package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/training"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🔄 Training session handlers
// =============================================================================

// TrainingHandler serves the session registry's HTTP surface. The
// websocket endpoints (join, dataset registration) are served by the
// manager itself.
type TrainingHandler struct {
	svc     *governance.Service
	manager *training.Manager
	logger  *zap.Logger
}

// NewTrainingHandler creates a training handler.
func NewTrainingHandler(svc *governance.Service, manager *training.Manager, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{
		svc:     svc,
		manager: manager,
		logger:  logger.With(zap.String("component", "training_handler")),
	}
}

// SessionSummary is the list/detail view of an active session.
type SessionSummary struct {
	ConfigurationID  uuid.UUID `json:"configuration_id"`
	StrategyName     string    `json:"strategy_name"`
	Participants     int       `json:"participants"`
	LiveParticipants int       `json:"live_participants"`
	RoundsRun        int       `json:"rounds_run"`
	SearchRounds     int       `json:"search_rounds"`
}

func summarize(s *training.Session) SessionSummary {
	spec := s.Spec()
	return SessionSummary{
		ConfigurationID:  spec.ConfigurationID,
		StrategyName:     spec.StrategyName,
		Participants:     len(spec.Members),
		LiveParticipants: s.LiveParticipants(),
		RoundsRun:        s.RoundsRun(),
		SearchRounds:     spec.SearchRounds,
	}
}

// HandleCreate serves POST /training_sessions: explicitly load a session
// for an accepted configuration. Sessions are normally created as a
// tally side effect; this endpoint covers recovery after a restart.
func (h *TrainingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConfigurationID uuid.UUID `json:"configuration_id"`
	}
	if errD := DecodeJSON(r, &body); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	if body.ConfigurationID == uuid.Nil {
		WriteError(w, types.ValidationError(types.ErrInvalidRequest,
			"configuration_id is required"), h.logger)
		return
	}

	cfg, err := h.svc.GetConfiguration(r.Context(), body.ConfigurationID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	session, err := h.manager.Create(r.Context(), *cfg)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, summarize(session))
}

// HandleList serves GET /training_sessions.
func (h *TrainingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, summarize(s))
	}
	WriteSuccess(w, r, summaries)
}

// HandleGet serves GET /training_sessions/{id}.
func (h *TrainingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	session, err := h.manager.Get(id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, summarize(session))
}
