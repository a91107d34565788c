package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/trustgate/internal/domain"
)

type ExpertControlService interface {
	Block(ctx context.Context, t domain.AgentType) error
	Unblock(ctx context.Context, t domain.AgentType) error
	Blocked(ctx context.Context) ([]string, error)
}

type ExpertHandler struct {
	service ExpertControlService
}

func NewExpertHandler(s ExpertControlService) *ExpertHandler {
	return &ExpertHandler{service: s}
}

// Block — мгновенное отключение эксперта (Kill-switch)
func (h *ExpertHandler) Block(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Block(r.Context(), domain.AgentType(chi.URLParam(r, "type"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ExpertHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unblock(r.Context(), domain.AgentType(chi.URLParam(r, "type"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ExpertHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.service.Blocked(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"blocked": blocked})
}
