package connector

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// googleTokenURL is Google's OAuth2 token endpoint, used by every
// Google-backed connector (Gmail, Drive, Calendar) to mint access
// tokens from a long-lived refresh token.
const googleTokenURL = "https://oauth2.googleapis.com/token"

// newGoogleClient builds an http.Client whose RoundTripper transparently
// refreshes its bearer token via clientID/clientSecret/refreshToken,
// the same oauth2.Config{Endpoint}.TokenSource(...) shape used for the
// Jira and Slack OAuth flows in the broader connector ecosystem.
func newGoogleClient(ctx context.Context, clientID, clientSecret, refreshToken string) *http.Client {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return oauth2.NewClient(ctx, ts)
}
