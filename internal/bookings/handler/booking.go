package handler

import (
	"net/http"
	"strings"

	"cowork/internal/bookings/service"
	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type ResolveResponse struct {
	Cluster []*model.Booking `json:"cluster"`
}

// Create answers 201 with the booking, or 409 with the stored Conflict
// booking and the ids it overlaps.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Create(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		if booking != nil && apperrors.HasCode(err, apperrors.CodeConflict) {
			err = apperrors.AsAppError(err).WithDetail("booking", booking)
		}
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListBySpace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.ListBySpace(r.Context(), ps.ByName("id"), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListBySpace", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListClusters(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clusters, err := h.service.ListClusters(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, clusters); err != nil {
		h.log.Error("failed to write success response", "handler", "ListClusters", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Resolve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ResolveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	cluster, err := h.service.ResolveConflict(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, ResolveResponse{Cluster: cluster}); err != nil {
		h.log.Error("failed to write success response", "handler", "Resolve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.StatusUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

// parseFilter reads status (repeated or comma separated), from, to, limit
// and offset.
func parseFilter(r *http.Request) (model.BookingFilter, error) {
	var f model.BookingFilter

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return f, err
	}
	f.Limit, f.Offset = limit, offset

	if f.From, err = httputil.ExtractTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = httputil.ExtractTime(r, "to"); err != nil {
		return f, err
	}

	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			status, ok := model.ParseBookingStatus(s)
			if !ok {
				return f, apperrors.InvalidInput("invalid status parameter: " + s)
			}
			f.Statuses = append(f.Statuses, status)
		}
	}

	return f, nil
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/spaces/id/:id/bookings", h.Create)
	router.GET("/api/v1/spaces/id/:id/bookings", h.ListBySpace)
	router.GET("/api/v1/spaces/id/:id/conflicts", h.ListClusters)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/resolve", h.Resolve)
	router.PATCH("/api/v1/bookings/id/:id/status", h.UpdateStatus)
}
