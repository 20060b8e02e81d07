package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 👥 Group handlers
// =============================================================================

// GroupHandler serves the group CRUD surface.
type GroupHandler struct {
	svc    *governance.Service
	logger *zap.Logger
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(svc *governance.Service, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger.With(zap.String("component", "group_handler"))}
}

// HandleCreate serves POST /groups.
func (h *GroupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var add types.AddGroup
	if errD := DecodeJSON(r, &add); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	group, err := h.svc.CreateGroup(r.Context(), add)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, group)
}

// HandleList serves GET /groups.
func (h *GroupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ListGroups(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, groups)
}

// HandleGet serves GET /groups/{id}.
func (h *GroupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	group, err := h.svc.GetGroup(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, group)
}

// HandleAddMember serves POST /groups/{id}/members.
func (h *GroupHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	var body struct {
		Member uuid.UUID `json:"member"`
	}
	if errD := DecodeJSON(r, &body); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	if body.Member == uuid.Nil {
		WriteError(w, types.ValidationError(types.ErrInvalidRequest, "member is required"), h.logger)
		return
	}
	group, err := h.svc.AddGroupMember(r.Context(), id, body.Member)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, group)
}
