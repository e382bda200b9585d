package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"eshop-backend/internal/auth"
	"eshop-backend/internal/util"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// authRequired verifies the bearer token and stores the principal on the
// context. When roles are given the principal's role must be one of them.
func authRequired(tokens *auth.Manager, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		principal, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if len(roles) > 0 {
			allowed := false
			for _, role := range roles {
				if principal.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
				return
			}
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// currentPrincipal returns the authenticated caller set by authRequired.
func currentPrincipal(c *gin.Context) *auth.Principal {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*auth.Principal)
	return principal
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
