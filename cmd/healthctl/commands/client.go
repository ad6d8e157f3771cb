package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/benvon/health-chat/internal/services/oidc"
	"github.com/spf13/cobra"
)

// remoteFlags holds the connection settings of commands that talk to a running server
type remoteFlags struct {
	server       string
	token        string
	issuer       string
	tokenURL     string
	clientID     string
	clientSecret string
	audience     string
	scopes       []string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", envOr("HEALTH_CHAT_URL", "http://localhost:8080"), "Base URL of the API server")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("HEALTH_CHAT_TOKEN"), "Static bearer token")
	cmd.Flags().StringVar(&f.issuer, "issuer", os.Getenv("OIDC_ISSUER"), "Identity provider issuer used to discover the token endpoint")
	cmd.Flags().StringVar(&f.tokenURL, "token-url", os.Getenv("OIDC_TOKEN_URL"), "Token endpoint for the client-credentials grant")
	cmd.Flags().StringVar(&f.clientID, "client-id", os.Getenv("OIDC_CLIENT_ID"), "Machine client ID")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", os.Getenv("OIDC_CLIENT_SECRET"), "Machine client secret")
	cmd.Flags().StringVar(&f.audience, "audience", os.Getenv("OIDC_AUDIENCE"), "Token audience")
	cmd.Flags().StringSliceVar(&f.scopes, "scope", nil, "OAuth2 scopes to request")
}

// httpClient returns a client-credentials HTTP client when a client ID is configured,
// otherwise nil so callers fall back to the static token
func (f *remoteFlags) httpClient(ctx context.Context) (*http.Client, error) {
	if f.clientID == "" {
		if f.token == "" {
			return nil, fmt.Errorf("either --token or --client-id is required")
		}
		return nil, nil
	}
	if f.clientSecret == "" {
		return nil, fmt.Errorf("--client-secret is required with --client-id")
	}

	tokenURL := f.tokenURL
	if tokenURL == "" {
		if f.issuer == "" {
			return nil, fmt.Errorf("--token-url or --issuer is required with --client-id")
		}
		tokenURL = oidc.NewProvider(oidc.Config{Issuer: f.issuer}).TokenURL(ctx)
	}

	creds := oidc.ClientCredentials{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		TokenURL:     tokenURL,
		Scopes:       f.scopes,
		Audience:     f.audience,
	}
	return creds.HTTPClient(ctx), nil
}

func (f *remoteFlags) endpoint(path string) string {
	return strings.TrimRight(f.server, "/") + path
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
