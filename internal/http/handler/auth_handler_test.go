package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaihtovirtahepo/faustjs/internal/config"
	"github.com/vaihtovirtahepo/faustjs/internal/domain"
	transport "github.com/vaihtovirtahepo/faustjs/internal/http"
	"github.com/vaihtovirtahepo/faustjs/internal/http/handler"
	"github.com/vaihtovirtahepo/faustjs/internal/http/middleware"
	"github.com/vaihtovirtahepo/faustjs/internal/repository"
	"github.com/vaihtovirtahepo/faustjs/internal/service"
	"github.com/vaihtovirtahepo/faustjs/internal/token"
)

const testSecret = "gate-secret"

func newTestRouter(t *testing.T) (*gin.Engine, *service.AuthService, *fakeCodes) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := &fakeUsers{users: map[int64]domain.User{
		42: {ID: 42, Email: "editor@site.example", Name: "Editor", Status: "ACTIVE"},
	}}
	codes := &fakeCodes{codes: map[string]int64{}}
	cfg := config.Config{
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 14 * 24 * time.Hour,
		AuthCodeTTL:     5 * time.Minute,
		ServiceName:     "faustjs-auth-test",
	}

	svc := service.NewAuthService(users, codes, token.NewCodec(testSecret), node, cfg, zap.NewNop())
	authHandler := handler.NewAuthHandler(svc)
	gate := &middleware.SecretGate{Secret: testSecret}
	authenticators := []middleware.Authenticator{&middleware.BearerAuthenticator{Auth: svc}}

	return transport.NewRouter(cfg, authHandler, gate, authenticators, nil), svc, codes
}

func postAuthorize(r *gin.Engine, body string, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/v1/authorize", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(middleware.SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthorizeRequiresSecret(t *testing.T) {
	r, _, codes := newTestRouter(t)
	codes.codes["code-for-42"] = 42

	w := postAuthorize(r, `{"code":"code-for-42"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postAuthorize(r, `{"code":"code-for-42"}`, "wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The gate denied the request before the handler ran: the code is
	// still redeemable.
	require.Contains(t, codes.codes, "code-for-42")
}

func TestAuthorizeMissingInputs(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := postAuthorize(r, `{}`, testSecret)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "invalid_request", body["error"])
	require.NotEmpty(t, body["error_description"])
}

func TestAuthorizeWithCode(t *testing.T) {
	r, _, codes := newTestRouter(t)
	codes.codes["code-for-42"] = 42

	w := postAuthorize(r, `{"code":"code-for-42"}`, testSecret)
	require.Equal(t, http.StatusOK, w.Code)

	var resp service.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	now := time.Now().Unix()
	require.InDelta(t, now+300, resp.AccessTokenExpiration, 5)
	require.InDelta(t, now+1209600, resp.RefreshTokenExpiration, 5)

	// Second exchange of the same code fails: codes are one-time.
	w = postAuthorize(r, `{"code":"code-for-42"}`, testSecret)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthorizeWithRefreshToken(t *testing.T) {
	r, _, codes := newTestRouter(t)
	codes.codes["code-for-42"] = 42

	w := postAuthorize(r, `{"code":"code-for-42"}`, testSecret)
	require.Equal(t, http.StatusOK, w.Code)
	var first service.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	payload, err := json.Marshal(gin.H{"refreshToken": first.RefreshToken})
	require.NoError(t, err)

	// Refresh tokens are reusable until expiry.
	for i := 0; i < 2; i++ {
		w = postAuthorize(r, string(payload), testSecret)
		require.Equal(t, http.StatusOK, w.Code)
		var resp service.TokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
	}
}

func TestAuthorizeWithExpiredRefreshToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	expired, err := token.NewCodec(testSecret).Sign(token.Claims{
		UserID:    42,
		Kind:      token.KindRefresh,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	payload, err := json.Marshal(gin.H{"refreshToken": expired})
	require.NoError(t, err)

	w := postAuthorize(r, string(payload), testSecret)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "invalid_request", body["error"])
}

func TestIssueCodeEndpoint(t *testing.T) {
	r, _, codes := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/codes", bytes.NewBufferString(`{"userId":42}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SecretHeader, testSecret)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Code           string `json:"code"`
		CodeExpiration int64  `json:"codeExpiration"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Code)
	require.Equal(t, int64(42), codes.codes[body.Code])

	// The minted code is immediately exchangeable.
	payload, err := json.Marshal(gin.H{"code": body.Code})
	require.NoError(t, err)
	w2 := postAuthorize(r, string(payload), testSecret)
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestMeEndpoint(t *testing.T) {
	r, svc, _ := newTestRouter(t)

	issued, err := svc.IssueAccessToken(domain.User{ID: 42})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "editor@site.example")

	req = httptest.NewRequest(http.MethodGet, "/auth/v1/me", nil)
	req.Header.Set("Authorization", "Malformed")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type fakeUsers struct {
	users map[int64]domain.User
}

func (f *fakeUsers) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (f *fakeUsers) Create(ctx context.Context, user domain.User) (domain.User, error) {
	f.users[user.ID] = user
	return user, nil
}

type fakeCodes struct {
	codes map[string]int64
}

func (f *fakeCodes) SaveCode(ctx context.Context, code domain.AuthorizationCode) error {
	f.codes[code.Code] = code.UserID
	return nil
}

func (f *fakeCodes) ConsumeCode(ctx context.Context, code string) (int64, error) {
	userID, ok := f.codes[code]
	if !ok {
		return 0, repository.ErrCodeNotFound
	}
	delete(f.codes, code)
	return userID, nil
}
