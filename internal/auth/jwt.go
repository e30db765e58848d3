// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/lms-backend/internal/config"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/middleware"
)

type Purpose string

const (
	PurposeVerification  Purpose = "verification"
	PurposePasswordReset Purpose = "password_reset"
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
)

const (
	claimType   = "type"
	claimRole   = "role"
	claimSecret = "token"
)

// Payload is what a signed token carries. Verification and reset tokens
// wrap Secret; access and refresh tokens carry Subject (and Role for access).
type Payload struct {
	Subject string
	Role    string
	Secret  string
}

// TokenManager signs and verifies HS256 tokens. Each purpose has its own
// key and the purpose is embedded as the type claim, so a token issued for
// one purpose never verifies as another.
type TokenManager struct {
	keys   map[Purpose]jwk.Key
	issuer string
	now    func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	secrets := map[Purpose]string{
		PurposeVerification:  cfg.AuthSecret,
		PurposePasswordReset: cfg.AuthSecret,
		PurposeAccess:        cfg.AccessSecret,
		PurposeRefresh:       cfg.RefreshSecret,
	}

	keys := make(map[Purpose]jwk.Key, len(secrets))
	for purpose, secret := range secrets {
		if secret == "" {
			return nil, fmt.Errorf("missing secret for %s tokens", purpose)
		}
		key, err := jwk.Import([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("import %s key: %w", purpose, err)
		}
		keys[purpose] = key
	}

	return &TokenManager{
		keys:   keys,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

func (m *TokenManager) Sign(
	purpose Purpose,
	p Payload,
	ttl time.Duration,
) (string, error) {
	key, ok := m.keys[purpose]
	if !ok {
		return "", fmt.Errorf("sign token: unknown purpose %q", purpose)
	}

	now := m.now()

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.issuer).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl)).
		Claim(claimType, string(purpose))

	if p.Subject != "" {
		builder = builder.Subject(p.Subject)
	}
	if p.Role != "" {
		builder = builder.Claim(claimRole, p.Role)
	}
	if p.Secret != "" {
		builder = builder.Claim(claimSecret, p.Secret)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks signature, time claims, issuer and purpose. Failures wrap
// core.ErrTokenExpired or core.ErrTokenInvalid.
func (m *TokenManager) Verify(purpose Purpose, tokenString string) (*Payload, error) {
	key, ok := m.keys[purpose]
	if !ok {
		return nil, fmt.Errorf("verify token: unknown purpose %q: %w", purpose, core.ErrTokenInvalid)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.issuer),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		if errors.Is(err, jwt.TokenExpiredError()) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get(claimType, &tokenType); err != nil ||
		tokenType != string(purpose) {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	p := &Payload{}
	if subject, ok := token.Subject(); ok {
		p.Subject = subject
	}
	if token.Has(claimRole) {
		_ = token.Get(claimRole, &p.Role) //nolint:errcheck // optional claim
	}
	if token.Has(claimSecret) {
		_ = token.Get(claimSecret, &p.Secret) //nolint:errcheck // optional claim
	}

	return p, nil
}

// VerifyAccessToken lets the token manager back the authenticator middleware.
func (m *TokenManager) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	p, err := m.Verify(PurposeAccess, tokenString)
	if err != nil {
		return nil, err
	}

	if p.Subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	return &middleware.AccessTokenClaims{
		UserID: p.Subject,
		Role:   p.Role,
	}, nil
}
