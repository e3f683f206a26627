package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vaihtovirtahepo/faustjs/internal/http/middleware"
)

func TestSecretGateAuthorize(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		presented  string
		want       bool
	}{
		{"match", "s3cret", "s3cret", true},
		{"mismatch", "s3cret", "wrong", false},
		{"partial", "s3cret", "s3c", false},
		{"case sensitive", "s3cret", "S3CRET", false},
		{"missing header", "s3cret", "", false},
		{"unconfigured", "", "s3cret", false},
		{"both empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := &middleware.SecretGate{Secret: tc.configured}
			req := httptest.NewRequest(http.MethodPost, "/auth/v1/authorize", nil)
			if tc.presented != "" {
				req.Header.Set(middleware.SecretHeader, tc.presented)
			}
			require.Equal(t, tc.want, gate.Authorize(req))
		})
	}
}

func TestSecretGateHandlerAbortsBeforeHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	gate := &middleware.SecretGate{Secret: "s3cret"}
	reached := false

	r := gin.New()
	r.POST("/gated", gate.Handler(), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/gated", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.False(t, reached)
	require.Contains(t, w.Body.String(), "unauthorized")

	req = httptest.NewRequest(http.MethodPost, "/gated", nil)
	req.Header.Set(middleware.SecretHeader, "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, reached)
}
