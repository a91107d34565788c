package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/trustgate/internal/console/handler"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/engine"
	"github.com/xela07ax/trustgate/internal/infra/auth"
	"go.uber.org/zap"
)

// Handlers — обработчики бизнес-доменов консоли.
type Handlers struct {
	Review      *handler.ReviewHandler      // /v1/reviews
	Reliability *handler.ReliabilityHandler // /v1/reliability
	Approval    *handler.ApprovalHandler    // /v1/approvals (HITL)
	Expert      *handler.ExpertHandler      // /v1/experts (Kill-switch)
	Dashboard   *handler.DashboardHandler   // /v1/dashboard
	Audit       *handler.AuditHandler       // /v1/audit
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка токенов RS256
	authValidator auth.TokenValidator
	h             Handlers
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(validator auth.TokenValidator, h Handlers, logger *zap.Logger) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		authValidator: validator,
		h:             h,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.Route("/v1/reviews", func(r chi.Router) {
			r.Use(auth.RequireScope(domain.ScopeReviewsWrite))
			r.Post("/", s.h.Review.Submit) // Готовые результаты экспертов
			r.Post("/run", s.h.Review.Run) // Опрос экспертов шлюзом
		})

		r.Route("/v1/reliability/weights", func(r chi.Router) {
			r.Get("/", s.h.Reliability.GetWeights)
			r.With(auth.RequireScope(domain.ScopeReliabilityWrite)).Put("/", s.h.Reliability.PutWeights)
		})

		// Human-in-the-loop (Approvals)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Get("/", s.h.Approval.List) // Очередь отложенных ревью
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.h.Approval.GetDetails)
				r.With(auth.RequireScope(domain.ScopeApprovalsDecide)).Post("/decide", s.h.Approval.Decide) // Approve/Reject + Redis Publish
			})
		})

		// Kill-switch экспертов
		r.Route("/v1/experts", func(r chi.Router) {
			r.Get("/blocked", s.h.Expert.ListBlocked)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireScope(domain.ScopeExpertsControl))
				r.Post("/{type}/block", s.h.Expert.Block)
				r.Post("/{type}/unblock", s.h.Expert.Unblock)
			})
		})

		r.Get("/v1/dashboard/stats", s.h.Dashboard.GetStats)
		r.Get("/v1/audit", s.h.Audit.GetLogs)
	})
}

// requestLogger пишет access-лог в zap вместо стандартного log.
func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("trace_id", ww.Header().Get(engine.TraceIDHeader)))
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
