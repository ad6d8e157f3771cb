package oidc

import (
	"context"
	"fmt"

	"github.com/benvon/health-chat/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier verifies bearer JWTs against the provider's JWKS
type Verifier struct {
	jwksManager *JWKSManager
	provider    *Provider
}

// NewVerifier creates a new JWT verifier
func NewVerifier(jwksManager *JWKSManager, provider *Provider) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		provider:    provider,
	}
}

// Verify verifies a JWT and extracts its claims. Issuer is always checked; audience only
// when configured.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	jwksURL, err := v.provider.JWKSURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JWKS URL: %w", err)
	}
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	cfg := v.provider.Config()
	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(cfg.Issuer),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if name, ok := token.Get("name"); ok {
		if s, ok := name.(string); ok {
			claims.Name = s
		}
	}
	return claims, nil
}
