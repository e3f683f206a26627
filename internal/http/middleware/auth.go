package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vaihtovirtahepo/faustjs/internal/service"
)

const currentUserKey = "currentUser"

// Authenticator attempts to resolve the identity behind a request. It
// returns the resolved user id and true, or false when it has no opinion.
// Authenticators never fail a request; an unresolvable credential simply
// leaves the request anonymous.
type Authenticator interface {
	Authenticate(c *gin.Context) (int64, bool)
}

// Identity runs the authenticators in order with first-resolved-wins
// semantics. An identity already set upstream is never downgraded, and the
// middleware never aborts request handling.
func Identity(authenticators ...Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			for _, a := range authenticators {
				if userID, ok := a.Authenticate(c); ok {
					c.Set(currentUserKey, userID)
					break
				}
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user id resolved for this request, if any.
func CurrentUser(c *gin.Context) (int64, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}

// BearerAuthenticator resolves a user from a bearer access token in the
// Authorization header.
type BearerAuthenticator struct {
	Auth *service.AuthService
}

var _ Authenticator = (*BearerAuthenticator)(nil)

// Authenticate extracts the access token and validates it. Any missing,
// malformed, expired, or mis-signed token yields "no opinion" rather than
// an error.
func (a *BearerAuthenticator) Authenticate(c *gin.Context) (int64, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return 0, false
	}
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return 0, false
	}
	userID, err := a.Auth.UserFromAccessToken(c.Request.Context(), parts[1])
	if err != nil {
		return 0, false
	}
	return userID, true
}
