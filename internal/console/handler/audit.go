package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xela07ax/trustgate/internal/audit"
)

type AuditService interface {
	FetchLogs(ctx context.Context, f audit.Filter) ([]audit.ReviewEvent, error)
}

type AuditHandler struct {
	service AuditService
}

func NewAuditHandler(s AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает журнал ревью с поддержкой фильтрации
// GET /v1/audit?review_id=...&repository=...&deferred=true&limit=50
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		ReviewID:   q.Get("review_id"),
		Repository: q.Get("repository"),
	}
	if v := q.Get("deferred"); v != "" {
		deferred, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid deferred flag", http.StatusBadRequest)
			return
		}
		f.DeferredOnly = deferred
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = limit
	}

	logs, err := h.service.FetchLogs(r.Context(), f)
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
