// README: Auth middleware; verifies the bearer ID token and enforces roles.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridebook/internal/infra"
	"ridebook/internal/types"
)

const callerKey = "ridebook.caller"

// Auth rejects requests without a valid "Authorization: Bearer <token>" header
// and stores the caller identity on the context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil || id == nil || id.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...infra.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func Caller(c *gin.Context) *infra.Identity {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	id, _ := v.(*infra.Identity)
	return id
}

func CallerUID(c *gin.Context) types.ID {
	if id := Caller(c); id != nil {
		return id.UserID
	}
	return ""
}

func CallerRole(c *gin.Context) infra.Role {
	if id := Caller(c); id != nil {
		return id.Role
	}
	return ""
}
