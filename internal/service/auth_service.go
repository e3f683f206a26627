package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vaihtovirtahepo/faustjs/internal/config"
	"github.com/vaihtovirtahepo/faustjs/internal/domain"
	"github.com/vaihtovirtahepo/faustjs/internal/repository"
	"github.com/vaihtovirtahepo/faustjs/internal/token"
)

// TokenResponse is the authorize endpoint's success body. Expirations are
// absolute unix timestamps in seconds.
type TokenResponse struct {
	AccessToken            string `json:"accessToken"`
	AccessTokenExpiration  int64  `json:"accessTokenExpiration"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiration int64  `json:"refreshTokenExpiration"`
}

// OAuthError standardizes caller-facing errors.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newOAuthError(code, desc string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: desc, Status: status}
}

// IssuedToken pairs a signed token with its absolute expiration.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService owns token construction, validation, and the code/refresh
// exchange. It keeps no token state; validation is signature-based.
type AuthService struct {
	users     repository.UserRepository
	codes     repository.CodeStore
	codec     *token.Codec
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, codes repository.CodeStore, codec *token.Codec, snowflake *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		codes:     codes,
		codec:     codec,
		snowflake: snowflake,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/vaihtovirtahepo/faustjs/internal/service"),
	}
}

// IssueAccessToken mints a short-lived access token for the user.
func (s *AuthService) IssueAccessToken(user domain.User) (IssuedToken, error) {
	return s.issue(user, token.KindAccess, s.cfg.AccessTokenTTL)
}

// IssueRefreshToken mints a refresh token for the user.
func (s *AuthService) IssueRefreshToken(user domain.User) (IssuedToken, error) {
	return s.issue(user, token.KindRefresh, s.cfg.RefreshTokenTTL)
}

func (s *AuthService) issue(user domain.User, kind token.Kind, ttl time.Duration) (IssuedToken, error) {
	expires := time.Now().Add(ttl)
	raw, err := s.codec.Sign(token.Claims{UserID: user.ID, Kind: kind, ExpiresAt: expires})
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return IssuedToken{Token: raw, ExpiresAt: expires}, nil
}

// UserFromAccessToken resolves the user id embedded in an access token.
// The claims carry the identity, so no directory round trip happens here.
func (s *AuthService) UserFromAccessToken(ctx context.Context, raw string) (int64, error) {
	_, span := s.startSpan(ctx, "AuthService.UserFromAccessToken")
	defer span.End()

	claims, err := s.codec.Verify(raw)
	if err != nil {
		return 0, err
	}
	if claims.Kind != token.KindAccess {
		return 0, token.ErrMalformed
	}
	return claims.UserID, nil
}

// UserFromRefreshToken validates a refresh token and re-confirms the user
// against the directory.
func (s *AuthService) UserFromRefreshToken(ctx context.Context, raw string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UserFromRefreshToken")
	defer span.End()

	claims, err := s.codec.Verify(raw)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}
	if claims.Kind != token.KindRefresh {
		return domain.User{}, token.ErrMalformed
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("refresh load user: %w", err)
	}
	return user, nil
}

// UserFromAuthorizationCode redeems a one-time code. Consumption and
// invalidation are a single atomic store operation.
func (s *AuthService) UserFromAuthorizationCode(ctx context.Context, code string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UserFromAuthorizationCode")
	defer span.End()

	userID, err := s.codes.ConsumeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("authorization code load user: %w", err)
	}
	return user, nil
}

// Exchange redeems an authorization code or refresh token for a fresh
// access/refresh pair. A non-blank refresh token takes precedence over a
// code. Input refresh tokens are not revoked; a refresh token may be
// exchanged any number of times before it expires.
func (s *AuthService) Exchange(ctx context.Context, code, refreshToken string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Exchange")
	defer span.End()

	code = strings.TrimSpace(code)
	refreshToken = strings.TrimSpace(refreshToken)
	if code == "" && refreshToken == "" {
		return nil, newOAuthError("invalid_request", "Missing authorization code or refresh token.", http.StatusBadRequest)
	}

	var (
		user  domain.User
		grant string
		err   error
	)
	if refreshToken != "" {
		grant = "refresh_token"
		user, err = s.UserFromRefreshToken(ctx, refreshToken)
	} else {
		grant = "authorization_code"
		user, err = s.UserFromAuthorizationCode(ctx, code)
	}
	if err != nil || user.ID == 0 {
		if err != nil {
			span.RecordError(err)
		}
		return nil, newOAuthError("invalid_request", "Invalid authorization code or refresh token.", http.StatusBadRequest)
	}

	access, err := s.IssueAccessToken(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: %w", err)
	}
	refresh, err := s.IssueRefreshToken(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: %w", err)
	}

	s.audit("token.exchange.success", "grant", grant, "user_id", user.ID)
	return &TokenResponse{
		AccessToken:            access.Token,
		AccessTokenExpiration:  access.ExpiresAt.Unix(),
		RefreshToken:           refresh.Token,
		RefreshTokenExpiration: refresh.ExpiresAt.Unix(),
	}, nil
}

// IssueAuthorizationCode mints and persists a one-time code for the user,
// for the host CMS to hand to a client after it authenticates them.
func (s *AuthService) IssueAuthorizationCode(ctx context.Context, userID int64) (string, time.Time, error) {
	ctx, span := s.startSpan(ctx, "AuthService.IssueAuthorizationCode")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", time.Time{}, newOAuthError("invalid_request", "Unknown user.", http.StatusBadRequest)
	}

	codeValue := randomString(32)
	record := domain.AuthorizationCode{
		ID:        s.snowflake.Generate().Int64(),
		UserID:    user.ID,
		Code:      codeValue,
		ExpiresAt: time.Now().Add(s.cfg.AuthCodeTTL),
		CreatedAt: time.Now(),
	}
	if err := s.codes.SaveCode(ctx, record); err != nil {
		span.RecordError(err)
		return "", time.Time{}, fmt.Errorf("persist authorization code: %w", err)
	}

	s.audit("authorization_code.issued", "user_id", user.ID)
	return codeValue, record.ExpiresAt, nil
}

// User loads a user by id from the directory.
func (s *AuthService) User(ctx context.Context, userID int64) (domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func randomString(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
