package icalexport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const ContentType = "text/calendar; charset=utf-8"

type SpaceReader interface {
	GetByID(ctx context.Context, id string) (*model.Space, error)
}

type BookingReader interface {
	FindActiveBySpace(ctx context.Context, spaceID string) ([]*model.Booking, error)
}

type CalendarHandler struct {
	spaces   SpaceReader
	bookings BookingReader
	log      *logger.Logger
}

func NewCalendarHandler(spaces SpaceReader, bookings BookingReader, log *logger.Logger) *CalendarHandler {
	return &CalendarHandler{
		spaces:   spaces,
		bookings: bookings,
		log:      log,
	}
}

// GetCalendar serves the space feed. The ETag is the body digest so pollers
// get 304 until a booking changes.
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	space, err := h.spaces.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, err := h.bookings.FindActiveBySpace(r.Context(), space.ID)
	if err != nil {
		h.log.Error("Failed to load bookings for export", "space_id", space.ID, "error", err)
		httputil.WriteError(w, apperrors.Internal("Failed to render calendar", err))
		return
	}

	body := RenderCalendar(space, bookings)
	etag := ETag(body)

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log.Error("failed to write calendar response", "handler", "GetCalendar", "space_id", space.ID, "error", err)
	}
}

func ETag(body string) string {
	sum := sha256.Sum256([]byte(body))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (h *CalendarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/spaces/id/:id/calendar.ics", h.GetCalendar)
}
