package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Kind discriminates access tokens from refresh tokens so one can never be
// accepted where the other is required.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failures. Callers that surface authentication results must
// not leak which of these occurred.
var (
	ErrMalformed        = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrExpired          = errors.New("token: expired")
)

// ErrNoSecret is returned when signing is attempted without a configured
// shared secret.
var ErrNoSecret = errors.New("token: shared secret not configured")

// Claims is the payload carried inside a signed token.
type Claims struct {
	UserID    int64
	Kind      Kind
	ExpiresAt time.Time
}

type kindClaim struct {
	Kind string `json:"kind"`
}

// Codec signs and verifies claim sets as HS256 JWTs under a single shared
// secret. It is stateless; rotating the secret means constructing a new
// Codec, which invalidates every previously issued token.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec constructs a codec for the given shared secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Sign serializes the claims plus their absolute expiration and signs the
// payload with HMAC-SHA256.
func (c *Codec) Sign(claims Claims) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrNoSecret
	}
	if claims.UserID <= 0 {
		return "", fmt.Errorf("token: user id required")
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return "", fmt.Errorf("token: unknown kind %q", claims.Kind)
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	std := gojwt.Claims{
		Subject:  strconv.FormatInt(claims.UserID, 10),
		IssuedAt: gojwt.NewNumericDate(c.now().UTC()),
		Expiry:   gojwt.NewNumericDate(claims.ExpiresAt),
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(kindClaim{Kind: string(claims.Kind)}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

// Verify recomputes the signature over the payload, checks expiration with
// zero leeway, and returns the embedded claims.
//
// Boundary: a token presented at exactly its expiration instant is still
// accepted; strictly after, it fails with ErrExpired.
func (c *Codec) Verify(raw string) (Claims, error) {
	if len(c.secret) == 0 {
		return Claims{}, ErrInvalidSignature
	}

	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, ErrMalformed
	}

	var std gojwt.Claims
	var kind kindClaim
	if err := parsed.Claims(c.secret, &std, &kind); err != nil {
		if errors.Is(err, gojose.ErrCryptoFailure) {
			return Claims{}, ErrInvalidSignature
		}
		return Claims{}, ErrMalformed
	}

	if std.Expiry == nil {
		return Claims{}, ErrMalformed
	}
	if err := std.ValidateWithLeeway(gojwt.Expected{Time: c.now().UTC()}, 0); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, ErrMalformed
	}
	if kind.Kind != string(KindAccess) && kind.Kind != string(KindRefresh) {
		return Claims{}, ErrMalformed
	}

	return Claims{UserID: userID, Kind: Kind(kind.Kind), ExpiresAt: std.Expiry.Time()}, nil
}
