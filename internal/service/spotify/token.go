package spotify

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider supplies the server-side Spotify token used when a request carries none.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pre-issued access token (SPOTIFY_ACCESS_TOKEN).
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// ClientCredentialsProvider mints app tokens through the client-credentials grant and reuses
// them until they expire.
type ClientCredentialsProvider struct {
	source oauth2.TokenSource
}

func NewClientCredentialsProvider(clientID, clientSecret, tokenURL string, httpClient *http.Client) *ClientCredentialsProvider {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token source keeps this context for refreshes, so it must not be request-scoped.
	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	return &ClientCredentialsProvider{source: cfg.TokenSource(ctx)}
}

func (p *ClientCredentialsProvider) Token(context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("spotify client credentials: %w", err)
	}
	return tok.AccessToken, nil
}

// NewTokenProvider picks the static token first, then client credentials. It returns nil when
// neither is configured.
func NewTokenProvider(accessToken, clientID, clientSecret, tokenURL string, httpClient *http.Client) TokenProvider {
	switch {
	case accessToken != "":
		return StaticToken(accessToken)
	case clientID != "" && clientSecret != "":
		return NewClientCredentialsProvider(clientID, clientSecret, tokenURL, httpClient)
	default:
		return nil
	}
}
