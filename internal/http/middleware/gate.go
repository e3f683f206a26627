package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecretHeader carries the shared secret that authorizes calls to the
// exchange endpoint.
const SecretHeader = "X-Shared-Secret"

// SecretGate authorizes requests that present the configured shared secret.
type SecretGate struct {
	Secret string
}

// Authorize reports whether the request carries the correct secret. Both
// the configured secret and the header must be non-empty and equal; an
// unconfigured secret denies everything.
func (g *SecretGate) Authorize(r *http.Request) bool {
	presented := r.Header.Get(SecretHeader)
	if g.Secret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.Secret), []byte(presented)) == 1
}

// Handler aborts unauthorized requests before the handler body executes.
func (g *SecretGate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Authorize(c.Request) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Invalid or missing shared secret.",
			})
			return
		}
		c.Next()
	}
}
