package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/trustgate/internal/domain"
)

type ReliabilityService interface {
	GetWeights() map[domain.AgentType]float64
	UpdateWeights(ctx context.Context, weights map[domain.AgentType]float64) error
}

type ReliabilityHandler struct {
	service ReliabilityService
}

func NewReliabilityHandler(s ReliabilityService) *ReliabilityHandler {
	return &ReliabilityHandler{service: s}
}

type weightsPayload struct {
	Weights map[domain.AgentType]float64 `json:"weights"`
}

// GetWeights — GET /v1/reliability/weights
func (h *ReliabilityHandler) GetWeights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, weightsPayload{Weights: h.service.GetWeights()})
}

// PutWeights — PUT /v1/reliability/weights, таблица заменяется целиком.
func (h *ReliabilityHandler) PutWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Weights == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateWeights(r.Context(), req.Weights); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weightsPayload{Weights: h.service.GetWeights()})
}
