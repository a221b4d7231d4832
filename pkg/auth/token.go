package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
)

const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	// ErrIdentityClaims marks a token whose signature is fine but whose
	// identity section is incomplete.
	ErrIdentityClaims = errors.New("token is missing identity claims")
)

// Validate is called by the jwt parser after the registered claims pass.
func (c AccessTokenClaims) Validate() error {
	if c.SubjectID == uuid.Nil || !c.Kind.IsValid() || !c.Role.IsValid() {
		return ErrIdentityClaims
	}
	return nil
}

func checkSigningConfig(cfg config.JWTConfig) error {
	var err error
	if cfg.Secret == "" {
		err = multierr.Append(err, errors.New("jwt secret is required"))
	}
	if cfg.Issuer == "" {
		err = multierr.Append(err, errors.New("jwt issuer is required"))
	}
	if cfg.ExpirationMinutes <= 0 {
		err = multierr.Append(err, errors.New("jwt expiration minutes must be positive"))
	}
	return err
}

// MintAccessToken signs an HS256 access token for payload, valid from now for
// the configured TTL. An empty JTI gets a random one.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}

	claims := AccessTokenClaims{
		SubjectID: payload.SubjectID,
		Kind:      payload.Kind,
		Role:      payload.Role,
		VendorID:  payload.VendorID,
	}
	if err := claims.Validate(); err != nil {
		return "", fmt.Errorf("mint token for %q/%q: %w", payload.Kind, payload.Role, err)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    cfg.Issuer,
		Subject:   payload.SubjectID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL())),
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then the identity
// claims through AccessTokenClaims.Validate.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}
