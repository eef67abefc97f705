package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/service"
	"github.com/aditya/go-carpool/pkg/utils"
)

type RequestHandler struct {
	requestService service.RequestService
	logger         *zap.Logger
}

func NewRequestHandler(requestService service.RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		logger:         logger.Named("http"),
	}
}

func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.CreateRequest)
	r.Get("/requests", h.ListOpenRequests)
	r.Get("/requests/{id}", h.GetRequest)
	r.Post("/requests/{id}/cancel", h.CancelRequest)
}

type requestListResponse struct {
	Requests []*models.RequestResponse `json:"requests"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	Total    int                       `json:"total"`
}

// POST /v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in models.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	// the API only creates fast-claim requests
	in.CreatedBy = models.CreatedByOperator
	in.RequesterRef = 0

	req, err := h.requestService.CreateRequest(r.Context(), in)
	if err != nil {
		h.handleError(w, err)
		return
	}

	utils.Created(w, req.ToResponse())
}

// GET /v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requestService.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req.ToResponse())
}

// GET /v1/requests?route=&page=
func (h *RequestHandler) ListOpenRequests(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 {
			utils.BadRequest(w, "page must be a non-negative number")
			return
		}
		page = p
	}

	result, err := h.requestService.ListOpenRequests(r.Context(), r.URL.Query().Get("route"), page)
	if err != nil {
		h.handleError(w, err)
		return
	}

	resp := requestListResponse{
		Requests: make([]*models.RequestResponse, 0, len(result.Requests)),
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
	}
	for _, req := range result.Requests {
		resp.Requests = append(resp.Requests, req.ToResponse())
	}
	utils.Success(w, http.StatusOK, resp)
}

// POST /v1/requests/{id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requestService.CancelByOperator(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req.ToResponse())
}

func (h *RequestHandler) handleError(w http.ResponseWriter, err error) {
	handleError(w, err, h.logger)
}

func handleError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Kind == apperrors.KindInternal || appErr.Kind == apperrors.KindTransient {
			logger.Error("request failed", zap.Error(err))
		}
		utils.Error(w, appErr)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrUnknownRoute):
		utils.Error(w, apperrors.Validation(err.Error()))
	case errors.Is(err, apperrors.ErrStaleWrite):
		utils.Error(w, apperrors.Stale())
	default:
		logger.Error("unhandled error", zap.Error(err))
		utils.InternalError(w, "internal server error")
	}
}
