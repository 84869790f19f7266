// Package auth mints and verifies the HS256 access tokens staff and customer
// accounts present as bearer credentials.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

// ClockSkew is tolerated on exp and iat between API replicas.
const ClockSkew = 30 * time.Second

var (
	ErrTokenExpired = errors.New("access token expired")
	ErrTokenInvalid = errors.New("access token invalid")
)

var signingMethod = jwt.SigningMethodHS256

// AccessTokenPayload is what a login hands over when minting.
type AccessTokenPayload struct {
	AccountID  uuid.UUID
	CustomerID *uuid.UUID
	Email      string
	Role       enums.AccountRole
	JTI        string
}

// AccessTokenClaims is the decoded token body.
type AccessTokenClaims struct {
	AccountID  uuid.UUID         `json:"account_id"`
	CustomerID *uuid.UUID        `json:"customer_id,omitempty"`
	Email      string            `json:"email"`
	Role       enums.AccountRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.AccountRoleAdmin
}

func (c *AccessTokenClaims) check() error {
	if c.AccountID == uuid.Nil || c.Subject != c.AccountID.String() {
		return fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: role %q", ErrTokenInvalid, c.Role)
	}
	return nil
}

func signingKey(cfg config.JWTConfig) ([]byte, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	return []byte(cfg.Secret), nil
}

// MintAccessToken signs a token for p that expires cfg.TTL() after now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, p AccessTokenPayload) (string, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return "", err
	}
	jti := strings.TrimSpace(p.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := &AccessTokenClaims{
		AccountID:  p.AccountID,
		CustomerID: p.CustomerID,
		Email:      p.Email,
		Role:       p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   p.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL())),
		},
	}
	if err := claims.check(); err != nil {
		return "", err
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Failures wrap
// ErrTokenExpired or ErrTokenInvalid.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return nil, err
	}
	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(ClockSkew),
	)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if err := claims.check(); err != nil {
		return nil, err
	}
	return claims, nil
}
