package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/rbac"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 30 * time.Minute

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
)

// Claims is the validated identity extracted from a bearer token.
type Claims struct {
	Subject string
	Roles   []rbac.Role
}

// TokenManagerConfig configures the backend JWT manager.
type TokenManagerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenManager issues and validates HS256 bearer tokens carrying the
// caller's project roles.
type TokenManager struct {
	config TokenManagerConfig
	clock  func() time.Time
}

type roleClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// NewTokenManager constructs a TokenManager with sane defaults.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenManager{
		config: TokenManagerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueToken produces a signed JWT and its expiry (seconds) for the subject
// with the given roles.
func (m *TokenManager) IssueToken(subject string, roles []rbac.Role) (string, int64, error) {
	if len(m.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if subject == "" {
		return "", 0, errMissingSubjectClaim
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.config.TokenTTL).UTC()

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	claims := roleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			Audience:  []string{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Roles: names,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the bearer token is well formed and returns the
// subject and normalized roles.
func (m *TokenManager) ValidateToken(tokenString string) (Claims, error) {
	if len(m.config.SigningSecret) == 0 {
		return Claims{}, errMissingSigningSecret
	}

	claims := &roleClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return m.config.SigningSecret, nil
		},
		jwt.WithAudience(m.config.Audience),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" {
		return Claims{}, errMissingSubjectClaim
	}

	roles := make([]rbac.Role, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		roles = append(roles, rbac.Normalize(name))
	}

	return Claims{Subject: claims.Subject, Roles: roles}, nil
}
