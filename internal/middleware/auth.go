package middleware

import (
	"net/http"
	"strings"
	"time"

	"restopos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"

	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleManager    = "manager"
)

// JWTClaims are the custom claims embedded in every access token. They
// carry the identity every order and shift operation is attributed to.
type JWTClaims struct {
	CashierID    string `json:"cashier_id"`
	BranchID     string `json:"branch_id"`
	RestaurantID string `json:"restaurant_id"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs claims with HS256, valid for ttl from now.
func IssueToken(secret string, claims JWTClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Subject == "" {
		claims.Subject = claims.CashierID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("unauthenticated", "authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("unauthenticated", "invalid or expired token"))
			return
		}
		if !validIdentity(claims) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("unauthenticated", "token lacks cashier, branch or restaurant"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func validIdentity(claims *JWTClaims) bool {
	for _, s := range []string{claims.CashierID, claims.BranchID, claims.RestaurantID} {
		if _, err := uuid.Parse(s); err != nil {
			return false
		}
	}
	return true
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !allowed[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("forbidden", "insufficient permissions"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}
