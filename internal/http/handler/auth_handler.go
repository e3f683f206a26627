package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaihtovirtahepo/faustjs/internal/http/middleware"
	"github.com/vaihtovirtahepo/faustjs/internal/service"
)

// AuthHandler orchestrates the token endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Authorize exchanges an authorization code or refresh token for a fresh
// access/refresh token pair. Reachable only behind the secret gate.
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req struct {
		Code         string `json:"code"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}

	resp, err := h.Auth.Exchange(c.Request.Context(), req.Code, req.RefreshToken)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// IssueCode mints a one-time authorization code for a user, on behalf of
// the host CMS. Reachable only behind the secret gate.
func (h *AuthHandler) IssueCode(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "userId is required."})
		return
	}

	code, expires, err := h.Auth.IssueAuthorizationCode(c.Request.Context(), req.UserID)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "codeExpiration": expires.Unix()})
}

// Me returns the user resolved from the bearer access token.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Valid access token required."})
		return
	}

	user, err := h.Auth.User(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Unknown user."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
		"status": user.Status,
	})
}

func respondOAuthError(c *gin.Context, err error) {
	var oauthErr *service.OAuthError
	if errors.As(err, &oauthErr) {
		status := oauthErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": oauthErr.Code, "error_description": oauthErr.Description})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal error."})
}
