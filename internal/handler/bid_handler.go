package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"bid-broker/internal/auth"
	"bid-broker/internal/model"
	"bid-broker/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidHandler handles bid request HTTP endpoints.
type BidHandler struct {
	service service.NegotiationService
	logger  zerolog.Logger
}

// NewBidHandler creates a new bid request handler.
func NewBidHandler(service service.NegotiationService, logger zerolog.Logger) *BidHandler {
	return &BidHandler{
		service: service,
		logger:  logger.With().Str("handler", "bid").Logger(),
	}
}

// actor extracts the authenticated actor, failing closed when absent.
func (h *BidHandler) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "authentication required", h.logger)
		return model.Actor{}, false
	}
	return actor, true
}

// bidID extracts the {id} segment from /api/bids/{id}/...
func (h *BidHandler) bidID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/bids/")
	idStr, _, _ := strings.Cut(rest, "/")
	if idStr == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "bid request ID is required", h.logger)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "invalid bid request ID format", h.logger)
		return uuid.Nil, false
	}

	return id, true
}

// Create handles POST /api/bids requests.
func (h *BidHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req service.CreateBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	rec, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ListOpen handles GET /api/bids requests.
func (h *BidHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListOpen(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if requests == nil {
		requests = []model.BidRequest{}
	}

	writeJSON(w, http.StatusOK, requests)
}

// ListPurchased handles GET /api/bids/purchased requests.
func (h *BidHandler) ListPurchased(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListPurchased(r.Context(), actor, r.URL.Query().Get("customerEmail"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if requests == nil {
		requests = []model.BidRequest{}
	}

	writeJSON(w, http.StatusOK, requests)
}

// Decide handles POST /api/bids/{id}/decide requests.
func (h *BidHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, ok := h.bidID(w, r)
	if !ok {
		return
	}

	var req service.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	rec, err := h.service.AdminDecide(r.Context(), actor, id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Respond handles POST /api/bids/{id}/respond requests.
func (h *BidHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, ok := h.bidID(w, r)
	if !ok {
		return
	}

	var req service.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	rec, err := h.service.CustomerRespond(r.Context(), actor, id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// FinalStatus handles POST /api/bids/{id}/final-status requests.
func (h *BidHandler) FinalStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, ok := h.bidID(w, r)
	if !ok {
		return
	}

	var req struct {
		FinalStatus model.FinalStatus `json:"finalStatus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	rec, err := h.service.SetFinalStatus(r.Context(), actor, id, req.FinalStatus)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Confirm handles POST /api/bids/{id}/confirm requests.
func (h *BidHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, ok := h.bidID(w, r)
	if !ok {
		return
	}

	// The body is optional: only a won confirmation carries a message.
	var req struct {
		Message *string `json:"message,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.service.ConfirmOutcome(r.Context(), actor, id, req.Message)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Paid handles POST /api/bids/{id}/paid requests.
func (h *BidHandler) Paid(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, ok := h.bidID(w, r)
	if !ok {
		return
	}

	var req struct {
		Paid bool `json:"paid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	rec, err := h.service.SetPaid(r.Context(), actor, id, req.Paid)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
