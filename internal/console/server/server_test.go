package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/trustgate/internal/audit"
	"github.com/xela07ax/trustgate/internal/console/handler"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/engine"
	"go.uber.org/zap"
)

type fakeValidator map[string]*domain.CustomClaims

func (v fakeValidator) VerifyToken(token string) (*domain.CustomClaims, error) {
	if c, ok := v[strings.TrimPrefix(token, "Bearer ")]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type stubReviews struct {
	err error
}

func (s *stubReviews) Submit(_ context.Context, req domain.ReviewRequest, _ string) (*domain.ReviewResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ReviewResult{ReviewID: "rev-1", Subject: req.Subject, Recommendation: domain.ActionAcceptable}, nil
}

func (s *stubReviews) Run(_ context.Context, subject domain.Subject, _ string) (*domain.ReviewResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ReviewResult{ReviewID: "rev-2", Subject: subject, Recommendation: domain.ActionDefer}, nil
}

type stubApprovals struct {
	decidedBy string
	err       error
}

func (s *stubApprovals) GetApproval(_ context.Context, id string) (*domain.ApprovalRequest, error) {
	if id != "ap-1" {
		return nil, domain.ErrApprovalNotFound
	}
	return &domain.ApprovalRequest{ID: id, Status: domain.StatusPending}, nil
}

func (s *stubApprovals) GetApprovals(context.Context, string) ([]*domain.ApprovalRequest, error) {
	return []*domain.ApprovalRequest{}, nil
}

func (s *stubApprovals) DecideApproval(_ context.Context, _ string, _ bool, reviewer, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.decidedBy = reviewer
	return nil
}

type stubWeights struct {
	weights map[domain.AgentType]float64
}

func (s *stubWeights) GetWeights() map[domain.AgentType]float64 { return s.weights }

func (s *stubWeights) UpdateWeights(_ context.Context, w map[domain.AgentType]float64) error {
	for _, v := range w {
		if v < 0 {
			return domain.ErrInvalidWeight
		}
	}
	s.weights = w
	return nil
}

type stubExperts struct {
	blocked []string
}

func (s *stubExperts) Block(_ context.Context, t domain.AgentType) error {
	s.blocked = append(s.blocked, string(t))
	return nil
}

func (s *stubExperts) Unblock(context.Context, domain.AgentType) error { return nil }

func (s *stubExperts) Blocked(context.Context) ([]string, error) { return s.blocked, nil }

type stubAudit struct {
	last audit.Filter
}

func (s *stubAudit) FetchLogs(_ context.Context, f audit.Filter) ([]audit.ReviewEvent, error) {
	s.last = f
	return []audit.ReviewEvent{}, nil
}

type stubStats struct{}

func (stubStats) GetStats(context.Context) (*domain.ReviewStats, error) {
	return &domain.ReviewStats{TotalReviews: 3, Recommendations: map[string]int64{}}, nil
}

type fixture struct {
	srv       *ConsoleServer
	reviews   *stubReviews
	approvals *stubApprovals
	experts   *stubExperts
	audit     *stubAudit
}

func newFixture() *fixture {
	f := &fixture{
		reviews:   &stubReviews{},
		approvals: &stubApprovals{},
		experts:   &stubExperts{},
		audit:     &stubAudit{},
	}
	validator := fakeValidator{
		"reader": {UserID: "reader"},
		"admin":  {UserID: "root", Scopes: map[string]bool{"admin": true}},
		"approver": {UserID: "alice", Scopes: map[string]bool{
			domain.ScopeApprovalsDecide: true,
		}},
	}
	f.srv = NewConsoleServer(validator, Handlers{
		Review:      handler.NewReviewHandler(f.reviews),
		Reliability: handler.NewReliabilityHandler(&stubWeights{weights: map[domain.AgentType]float64{}}),
		Approval:    handler.NewApprovalHandler(f.approvals),
		Expert:      handler.NewExpertHandler(f.experts),
		Dashboard:   handler.NewDashboardHandler(stubStats{}),
		Audit:       handler.NewAuditHandler(f.audit),
	}, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(engine.TraceIDHeader))
}

func TestAuthAndScopes(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/v1/dashboard/stats", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/v1/dashboard/stats", "forged", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/dashboard/stats", "reader", "").Code)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/v1/approvals/ap-1/decide", "reader", `{"approved":true}`).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/v1/experts/security_analysis/block", "approver", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/v1/reliability/weights", "reader", `{"weights":{}}`).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/v1/reviews", "reader", `{}`).Code)
}

func TestApprovalRoutes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/v1/approvals/ap-1/decide", "approver", `{"approved":true,"comment":"ok"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alice", f.approvals.decidedBy)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/v1/approvals/ap-1/decide", "approver", `{`).Code)

	f.approvals.err = domain.ErrAlreadyProcessed
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/v1/approvals/ap-1/decide", "approver", `{"approved":false}`).Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/approvals/ap-1", "reader", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/approvals/nope", "reader", "").Code)

	rec = f.do(http.MethodGet, "/v1/approvals", "reader", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReviewRoute(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/v1/reviews", "admin", `{"subject":{"repository":"r","revision":"abc"},"outputs":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"review_id":"rev-1"`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/v1/reviews", "admin", `not json`).Code)

	f.reviews.err = domain.ErrInvalidRequest
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/v1/reviews", "admin", `{}`).Code)

	f.reviews.err = nil
	rec = f.do(http.MethodPost, "/v1/reviews/run", "admin", `{"subject":{"repository":"r"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"review_id":"rev-2"`)

	f.reviews.err = domain.ErrNoExperts
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/v1/reviews/run", "admin", `{}`).Code)

	f.reviews.err = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodPost, "/v1/reviews", "admin", `{}`).Code)
}

func TestReliabilityRoutes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPut, "/v1/reliability/weights", "admin", `{"weights":{"security_analysis":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"weights":{"security_analysis":2}}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/v1/reliability/weights", "admin", `{"weights":{"security_analysis":-1}}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/v1/reliability/weights", "admin", `{}`).Code)

	rec = f.do(http.MethodGet, "/v1/reliability/weights", "reader", "")
	assert.JSONEq(t, `{"weights":{"security_analysis":2}}`, rec.Body.String())
}

func TestExpertRoutes(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/v1/experts/security_analysis/block", "admin", "").Code)
	rec := f.do(http.MethodGet, "/v1/experts/blocked", "reader", "")
	assert.JSONEq(t, `{"blocked":["security_analysis"]}`, rec.Body.String())
}

func TestAuditRoute(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/v1/audit?review_id=rev-1&deferred=true&limit=5", "reader", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.Filter{ReviewID: "rev-1", DeferredOnly: true, Limit: 5}, f.audit.last)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/audit?limit=abc", "reader", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/audit?deferred=perhaps", "reader", "").Code)
}
