package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 📚 Resource handlers (datasets, ml-models, configurations, requirements)
// =============================================================================

// ResourceHandler serves the governed resources that proposals link.
type ResourceHandler struct {
	svc    *governance.Service
	logger *zap.Logger
}

// NewResourceHandler creates a resource handler.
func NewResourceHandler(svc *governance.Service, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{svc: svc, logger: logger.With(zap.String("component", "resource_handler"))}
}

// HandleCreateDataset serves POST /datasets.
func (h *ResourceHandler) HandleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var add types.AddDataset
	if errD := DecodeJSON(r, &add); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	dataset, err := h.svc.CreateDataset(r.Context(), add)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, dataset)
}

// HandleGetDataset serves GET /datasets/{id}?version=N (current when the
// version parameter is absent).
func (h *ResourceHandler) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	version, errD := queryVersion(r)
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	dataset, err := h.svc.GetDataset(r.Context(), id, version)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, dataset)
}

// HandleCreateMLModel serves POST /ml_models.
func (h *ResourceHandler) HandleCreateMLModel(w http.ResponseWriter, r *http.Request) {
	var add types.AddMLModel
	if errD := DecodeJSON(r, &add); errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	model, err := h.svc.CreateMLModel(r.Context(), add)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, r, model)
}

// HandleGetMLModel serves GET /ml_models/{id}?version=N.
func (h *ResourceHandler) HandleGetMLModel(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	version, errD := queryVersion(r)
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	model, err := h.svc.GetMLModel(r.Context(), id, version)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, model)
}

// HandleGetConfiguration serves GET /configurations/{id}.
func (h *ResourceHandler) HandleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	cfg, err := h.svc.GetConfiguration(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, cfg)
}

// HandleGetQualityRequirement serves GET /quality_requirements/{id}.
func (h *ResourceHandler) HandleGetQualityRequirement(w http.ResponseWriter, r *http.Request) {
	id, errD := PathUUID(r, "id")
	if errD != nil {
		WriteError(w, errD, h.logger)
		return
	}
	qr, err := h.svc.GetQualityRequirement(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, qr)
}

// HandleListQualityRequirements serves
// GET /strategies/{id}/quality_requirements.
func (h *ResourceHandler) HandleListQualityRequirements(w http.ResponseWriter, r *http.Request) {
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
	requirements, err := h.svc.QualityRequirementsFor(r.Context(), strategy)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, r, requirements)
}

// queryVersion parses the optional version query parameter; 0 selects
// the current version.
func queryVersion(r *http.Request) (int, *types.Error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 0, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 0 {
		return 0, types.ValidationError(types.ErrInvalidRequest,
			"invalid version %q", raw)
	}
	return version, nil
}
