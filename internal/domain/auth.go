package domain

import "github.com/golang-jwt/jwt/v5"

// CustomClaims — полезная нагрузка RS256-токена оператора консоли.
type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "approvals.decide": true, "reliability.write": true
	jwt.RegisteredClaims
}

// HasScope проверяет право оператора; scope "admin" дает все.
func (c *CustomClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	return c.Scopes["admin"] || c.Scopes[scope]
}

// Scopes операторов консоли
const (
	ScopeReviewsWrite     = "reviews.write"
	ScopeApprovalsDecide  = "approvals.decide"
	ScopeReliabilityWrite = "reliability.write"
	ScopeExpertsControl   = "experts.control"
)
