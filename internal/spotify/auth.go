package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
)

// Authenticator holds the process-wide credential state: an OAuth2 config and
// a token cached in a JSON file so runs after the first grant are
// non-interactive. Token access is serialized; only one run executes at a
// time, but refresh also mutates the cache file.
type Authenticator struct {
	conf      *oauth2.Config
	cachePath string

	mu    sync.Mutex
	token *oauth2.Token
}

func NewAuthenticator(clientID, clientSecret, redirectURI, scope, cachePath string) *Authenticator {
	return &Authenticator{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       strings.Split(scope, ","),
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		cachePath: cachePath,
	}
}

// AuthCodeURL returns the URL the user visits to grant access.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and caches it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	token, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
	return a.saveLocked()
}

// AccessToken returns a valid access token, loading the cache on first use
// and refreshing through the oauth2 token source when expired.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		if err := a.loadLocked(); err != nil {
			return "", err
		}
	}

	fresh, err := a.conf.TokenSource(ctx, a.token).Token()
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	if fresh.AccessToken != a.token.AccessToken {
		a.token = fresh
		if err := a.saveLocked(); err != nil {
			return "", err
		}
	}
	return fresh.AccessToken, nil
}

// Refresh discards the cached access token and obtains a new one with the
// refresh token. Used when the service rejects a token before its recorded
// expiry.
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		if err := a.loadLocked(); err != nil {
			return err
		}
	}
	if a.token.RefreshToken == "" {
		return fmt.Errorf("no refresh token cached; run authenticate again")
	}

	stale := &oauth2.Token{RefreshToken: a.token.RefreshToken}
	fresh, err := a.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = a.token.RefreshToken
	}
	a.token = fresh
	return a.saveLocked()
}

func (a *Authenticator) loadLocked() error {
	data, err := os.ReadFile(a.cachePath)
	if err != nil {
		return fmt.Errorf("reading token cache %s (run authenticate first): %w", a.cachePath, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("parsing token cache %s: %w", a.cachePath, err)
	}
	a.token = &token
	return nil
}

func (a *Authenticator) saveLocked() error {
	data, err := json.Marshal(a.token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(a.cachePath, data, 0600); err != nil {
		return fmt.Errorf("writing token cache %s: %w", a.cachePath, err)
	}
	return nil
}
