package services

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/voxup/internal/shared"
)

// NewHTTPClient returns the client used for remote store requests.
//
// When OAuth credentials are configured the client fetches and refreshes a client-credentials token
// automatically; otherwise it is a plain client with the given timeout.
func NewHTTPClient(ctx context.Context, cfg shared.OAuthConfig, timeout time.Duration) *http.Client {
	if !cfg.Enabled() {
		return &http.Client{Timeout: timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	client := cc.Client(ctx)
	client.Timeout = timeout
	return client
}
