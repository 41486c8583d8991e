package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"slotbook/internal/reservations/service"
	"slotbook/internal/reservations/validator"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/identity"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service   service.ReservationService
	validator *validator.ReservationValidator
	log       *logger.Logger
}

func NewReservationHandler(service service.ReservationService, validator *validator.ReservationValidator, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

func (h *ReservationHandler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, size, err := httputil.ExtractPage(r)
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	query := &model.ListAvailableQuery{
		From: r.URL.Query().Get("from"),
		Page: page,
		Size: size,
	}
	from, err := h.validator.ValidateListQuery(query)
	if err != nil {
		h.writeError(w, "ListAvailable", validationError(err))
		return
	}

	slots, err := h.service.ListAvailable(r.Context(), from, model.PageRequest{Page: page, Size: size})
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	if err := httputil.WritePage(w, slots, page, size); err != nil {
		h.log.Error("failed to write page response", "handler", "ListAvailable", "operation", "WritePage", "error", err)
	}
}

func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := identity.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	var req model.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			h.writeError(w, "Reserve", apperrors.InvalidInput("Request body is required"))
			return
		}
		h.writeError(w, "Reserve", apperrors.InvalidInput("Invalid request body"))
		return
	}

	start, err := h.validator.ValidateReserve(&req)
	if err != nil {
		h.writeError(w, "Reserve", validationError(err))
		return
	}

	details, err := h.service.Reserve(r.Context(), userID, start)
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	if err := httputil.WriteCreated(w, details); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := identity.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	slotID := ps.ByName("slot_id")
	if err := h.validator.ValidateSlotID(slotID); err != nil {
		h.writeError(w, "Cancel", validationError(err))
		return
	}

	if err := h.service.Cancel(r.Context(), userID, slotID); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/reservations/slots", h.ListAvailable)
	router.POST("/api/v1/reservations", h.Reserve)
	router.DELETE("/api/v1/reservations/:slot_id", h.Cancel)
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Validation failed", verrs.Details())
	}
	return apperrors.Validation(err.Error(), nil)
}
