package handler

import (
	"encoding/json"
	"net/http"

	"booker/internal/server/service"
	"booker/pkg/httputil"
	"booker/pkg/logger"
	"booker/pkg/model"

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

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/bookings", h.List)
	router.POST("/bookings", h.Create)
	router.GET("/bookings/:id", h.GetByID)
	router.PUT("/bookings/:id", h.Update)
	router.DELETE("/bookings/:id", h.Delete)
	router.POST("/bookings/availability", h.CheckAvailability)
}

func (h *BookingHandler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "Health")
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	bookings, err := h.service.GetAll(r.Context())
	if err != nil {
		h.writeError(w, err, "List")
		return
	}
	h.writeJSON(w, http.StatusOK, bookings, "List")
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetByID")
		return
	}
	h.writeJSON(w, http.StatusOK, booking, "GetByID")
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var form model.BookingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: "Invalid request body"}, "Create")
		return
	}

	booking, err := h.service.Create(r.Context(), &form)
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}
	h.writeJSON(w, http.StatusCreated, booking, "Create")
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var patch model.BookingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: "Invalid request body"}, "Update")
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), &patch)
	if err != nil {
		h.writeError(w, err, "Update")
		return
	}
	h.writeJSON(w, http.StatusOK, booking, "Update")
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, err, "Delete")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Booking deleted successfully"}, "Delete")
}

type availabilityRequest struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	Duration         int    `json:"duration"`
	ExcludeBookingID string `json:"excludeBookingId"`
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: "Invalid request body"}, "CheckAvailability")
		return
	}

	available, err := h.service.CheckAvailability(r.Context(), req.Date, req.Time, req.Duration, req.ExcludeBookingID)
	if err != nil {
		h.writeError(w, err, "CheckAvailability")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"available": available}, "CheckAvailability")
}

func (h *BookingHandler) writeJSON(w http.ResponseWriter, status int, data any, op string) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		h.log.Error("failed to write response", "handler", op, "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, err error, op string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "error", writeErr)
	}
}
