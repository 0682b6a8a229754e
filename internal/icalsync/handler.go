package icalsync

import (
	"context"
	"net/http"

	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ManualSyncer interface {
	SyncNow(ctx context.Context, spaceID string) (*model.SyncState, error)
}

type SyncHandler struct {
	syncer ManualSyncer
	log    *logger.Logger
}

func NewSyncHandler(syncer ManualSyncer, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		syncer: syncer,
		log:    log,
	}
}

// SyncNow runs a pass synchronously and answers with the resulting state.
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	state, err := h.syncer.SyncNow(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, state); err != nil {
		h.log.Error("failed to write success response", "handler", "SyncNow", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SyncHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/spaces/id/:id/sync", h.SyncNow)
}
