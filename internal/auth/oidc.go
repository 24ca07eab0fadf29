package auth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/ticsummit/ticsite/internal/config"
)

// externalClaims are the claims read from identity provider tokens.
type externalClaims struct {
	Email string `json:"email"`
}

func (c *externalClaims) Validate(context.Context) error {
	if c.Email == "" {
		return fmt.Errorf("token has no email claim")
	}
	return nil
}

// OIDCVerifier validates RS256 tokens against the issuer's JWKS.
type OIDCVerifier struct {
	validator *validator.Validator
}

func NewOIDCVerifier(cfg config.OIDCConfig) (*OIDCVerifier, error) {
	issuerURL, err := url.Parse(cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse issuer URL: %w", err)
	}
	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	return newOIDCVerifier(provider.KeyFunc, validator.RS256, cfg)
}

func newOIDCVerifier(keyFunc func(context.Context) (interface{}, error), alg validator.SignatureAlgorithm, cfg config.OIDCConfig) (*OIDCVerifier, error) {
	v, err := validator.New(
		keyFunc,
		alg,
		cfg.Issuer,
		cfg.Audience,
		validator.WithAllowedClockSkew(30*time.Second),
		validator.WithCustomClaims(func() validator.CustomClaims { return &externalClaims{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the validator: %w", err)
	}
	return &OIDCVerifier{validator: v}, nil
}

// Verify validates token and returns its email claim.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (string, error) {
	raw, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}
	claims, ok := raw.(*validator.ValidatedClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type %T", raw)
	}
	custom, ok := claims.CustomClaims.(*externalClaims)
	if !ok {
		return "", fmt.Errorf("token has no custom claims")
	}
	return custom.Email, nil
}
