package oidc

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials configures a machine client of the identity provider
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Audience     string
}

func (c ClientCredentials) config() *clientcredentials.Config {
	cfg := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
	if c.Audience != "" {
		cfg.EndpointParams = map[string][]string{"audience": {c.Audience}}
	}
	return cfg
}

// TokenSource returns a refreshing token source for the client-credentials grant
func (c ClientCredentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	return c.config().TokenSource(ctx)
}

// HTTPClient returns an HTTP client that attaches bearer tokens to every request
func (c ClientCredentials) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.TokenSource(ctx))
}
