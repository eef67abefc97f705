package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aditya/go-carpool/internal/service"
	"github.com/aditya/go-carpool/pkg/utils"
)

type CarrierHandler struct {
	profileService service.ProfileService
	logger         *zap.Logger
}

func NewCarrierHandler(profileService service.ProfileService, logger *zap.Logger) *CarrierHandler {
	return &CarrierHandler{
		profileService: profileService,
		logger:         logger.Named("http"),
	}
}

func (h *CarrierHandler) RegisterRoutes(r chi.Router) {
	r.Get("/carriers/{id}", h.GetCarrier)
	r.Post("/carriers/{id}/approve", h.ApproveCarrier)
}

func carrierID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.BadRequest(w, "carrier id must be a chat user id")
		return 0, false
	}
	return id, true
}

// GET /v1/carriers/{id}
func (h *CarrierHandler) GetCarrier(w http.ResponseWriter, r *http.Request) {
	id, ok := carrierID(w, r)
	if !ok {
		return
	}

	p, err := h.profileService.GetProfile(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	utils.Success(w, http.StatusOK, p)
}

// POST /v1/carriers/{id}/approve
func (h *CarrierHandler) ApproveCarrier(w http.ResponseWriter, r *http.Request) {
	id, ok := carrierID(w, r)
	if !ok {
		return
	}

	p, err := h.profileService.ApproveCarrier(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	utils.Success(w, http.StatusOK, p)
}
