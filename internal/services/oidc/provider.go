package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config describes the identity provider whose tokens the API accepts
type Config struct {
	Issuer   string
	Audience string
	// JWKSURL overrides the jwks_uri from the discovery document
	JWKSURL string
}

// Discovery is the subset of the OpenID discovery document the service uses
type Discovery struct {
	Issuer        string `json:"issuer"`
	JWKSURI       string `json:"jwks_uri"`
	TokenEndpoint string `json:"token_endpoint"`
}

// Provider resolves the provider's endpoints, caching the discovery document
type Provider struct {
	config     Config
	httpClient *http.Client

	mu        sync.Mutex
	discovery *Discovery
}

// NewProvider creates a provider for config
func NewProvider(config Config) *Provider {
	config.Issuer = strings.TrimRight(config.Issuer, "/")
	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Config returns the provider configuration
func (p *Provider) Config() Config {
	return p.config
}

// Discover fetches the discovery document once and caches it
func (p *Provider) Discover(ctx context.Context) (*Discovery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.discovery != nil {
		return p.discovery, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var d Discovery
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if d.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document has no jwks_uri")
	}
	p.discovery = &d
	return &d, nil
}

// JWKSURL returns the configured JWKS URL, falling back to discovery
func (p *Provider) JWKSURL(ctx context.Context) (string, error) {
	if p.config.JWKSURL != "" {
		return p.config.JWKSURL, nil
	}
	d, err := p.Discover(ctx)
	if err != nil {
		return "", err
	}
	return d.JWKSURI, nil
}

// TokenURL returns the token endpoint from discovery, or the conventional issuer path
func (p *Provider) TokenURL(ctx context.Context) string {
	if d, err := p.Discover(ctx); err == nil && d.TokenEndpoint != "" {
		return d.TokenEndpoint
	}
	return p.config.Issuer + "/oauth2/token"
}
