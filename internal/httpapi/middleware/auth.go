package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/sagacore/internal/platform/logger"
)

// AuthMiddleware gates the admin API behind a bearer JWT signed with a
// single shared key — an operator token, not a per-user session. There
// is no saga concept of a logged-in end user, so verification is just
// "valid signature, not expired".
type AuthMiddleware struct {
	log       *logger.Logger
	signingKey []byte
}

func NewAuthMiddleware(log *logger.Logger, signingKey string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("component", "AuthMiddleware"), signingKey: []byte(signingKey)}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(m.signingKey) == 0 {
			// No signing key configured: admin API runs unauthenticated,
			// a permissive posture meant for local development only.
			c.Next()
			return
		}
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		_, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return m.signingKey, nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil {
			if m.log != nil {
				m.log.Debug("admin token rejected", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
