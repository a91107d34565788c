package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims domain.CustomClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func claimsFor(userID string, scopes ...string) domain.CustomClaims {
	m := make(map[string]bool)
	for _, s := range scopes {
		m[s] = true
	}
	return domain.CustomClaims{
		UserID: userID,
		Scopes: m,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyToken(t *testing.T) {
	key := newKey(t)
	v := NewBaseValidator(&key.PublicKey)

	token := signToken(t, key, claimsFor("op-1", domain.ScopeApprovalsDecide))
	claims, err := v.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.True(t, claims.HasScope(domain.ScopeApprovalsDecide))
	assert.False(t, claims.HasScope(domain.ScopeReliabilityWrite))

	other := newKey(t)
	_, err = v.VerifyToken(signToken(t, other, claimsFor("op-1")))
	assert.Error(t, err)

	expired := claimsFor("op-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = v.VerifyToken(signToken(t, key, expired))
	assert.Error(t, err)

	_, err = v.VerifyToken(signToken(t, key, claimsFor("")))
	assert.Error(t, err)
}

func TestMiddlewareAndScopes(t *testing.T) {
	key := newKey(t)
	v := NewBaseValidator(&key.PublicKey)

	var seen string
	h := NewMiddleware(v, zap.NewNop())(RequireScope(domain.ScopeReliabilityWrite)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = ReviewerID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"missing scope", "Bearer " + signToken(t, key, claimsFor("op-1", domain.ScopeApprovalsDecide)), http.StatusForbidden},
		{"scope", "Bearer " + signToken(t, key, claimsFor("op-2", domain.ScopeReliabilityWrite)), http.StatusNoContent},
		{"admin", "Bearer " + signToken(t, key, claimsFor("root", "admin")), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/reliability/weights", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Equal(t, "root", seen)
}

func TestParseRSAPublicKey_Empty(t *testing.T) {
	_, err := ParseRSAPublicKey(nil)
	assert.Error(t, err)
}
