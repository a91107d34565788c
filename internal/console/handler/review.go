package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra/auth"
)

type ReviewService interface {
	Submit(ctx context.Context, req domain.ReviewRequest, submittedBy string) (*domain.ReviewResult, error)
	Run(ctx context.Context, subject domain.Subject, submittedBy string) (*domain.ReviewResult, error)
}

type ReviewHandler struct {
	service ReviewService
}

func NewReviewHandler(s ReviewService) *ReviewHandler {
	return &ReviewHandler{service: s}
}

// Submit — POST /v1/reviews. Отложенное ревью тоже 200: defer — это решение, а не ошибка.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Submit(r.Context(), req, auth.ReviewerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type runRequest struct {
	Subject domain.Subject `json:"subject"`
}

// Run — POST /v1/reviews/run: шлюз сам опрашивает экспертов из конфига.
func (h *ReviewHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Run(r.Context(), req.Subject, auth.ReviewerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
