package handler

import (
	"net/http"

	"cowork/internal/spaces/service"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SpaceHandler struct {
	service service.SpaceService
	log     *logger.Logger
}

func NewSpaceHandler(service service.SpaceService, log *logger.Logger) *SpaceHandler {
	return &SpaceHandler{
		service: service,
		log:     log,
	}
}

func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var space model.Space
	if err := httputil.DecodeJSON(r, &space); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Create(r.Context(), &space); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, space); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SpaceHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	space, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, space); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpaceHandler) GetSyncSettings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.GetSyncSettings(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSyncSettings", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpaceHandler) UpdateSyncSettings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.SyncSettingsUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.UpdateSyncSettings(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateSyncSettings", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpaceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/spaces", h.Create)
	router.GET("/api/v1/spaces/id/:id", h.GetByID)
	router.GET("/api/v1/spaces/id/:id/sync-settings", h.GetSyncSettings)
	router.PUT("/api/v1/spaces/id/:id/sync-settings", h.UpdateSyncSettings)
}
