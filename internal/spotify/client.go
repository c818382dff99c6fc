// Package spotify is the source API client. It executes individual calls to
// the service, drains pagination cursors, chunks batched lookups, and masks
// rate-limit and token-expiry failures behind a bounded retry loop.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.spotify.com/v1"

	// Per-request cardinality ceilings documented by the service.
	audioFeaturesCeiling = 100
	artistsCeiling       = 50

	// Page sizes for list calls.
	playlistPageLimit      = 50
	playlistTrackPageLimit = 100
)

// Credentials supplies and refreshes the cached access token.
type Credentials interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	creds       Credentials
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	log         zerolog.Logger
}

func New(creds Credentials, log zerolog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBaseURL,
		creds:       creds,
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBackoff,
		log:         log,
	}
}

// CurrentUser fetches the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context) (UserPayload, error) {
	var user UserPayload
	err := c.call(ctx, "current user", func(ctx context.Context) error {
		return c.get(ctx, c.baseURL+"/me", &user)
	})
	return user, err
}

// UserPlaylists fetches all of a user's playlists, following the continuation
// cursor until none remains.
func (c *Client) UserPlaylists(ctx context.Context, userID string) ([]PlaylistPayload, error) {
	var playlists []PlaylistPayload
	next := fmt.Sprintf("%s/users/%s/playlists?limit=%d", c.baseURL, url.PathEscape(userID), playlistPageLimit)
	for next != "" {
		var page playlistPage
		target := next
		err := c.call(ctx, "user playlists", func(ctx context.Context) error {
			return c.get(ctx, target, &page)
		})
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, page.Items...)
		next = page.Next
	}
	c.log.Debug().Int("count", len(playlists)).Msg("fetched playlists")
	return playlists, nil
}

// PlaylistTracks fetches one playlist's complete tracklist.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistEntry, error) {
	var entries []PlaylistEntry
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", c.baseURL, url.PathEscape(playlistID), playlistTrackPageLimit)
	for next != "" {
		var page playlistTrackPage
		target := next
		err := c.call(ctx, "playlist tracks", func(ctx context.Context) error {
			return c.get(ctx, target, &page)
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, page.Items...)
		next = page.Next
	}
	c.log.Debug().Str("playlist", playlistID).Int("count", len(entries)).Msg("fetched playlist tracks")
	return entries, nil
}

// AudioFeatures fetches scored features for the given track ids, chunked at
// the service's 100-id ceiling. Tracks the service declines to score come
// back as nulls and are dropped here.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) ([]AudioFeaturesPayload, error) {
	var features []AudioFeaturesPayload
	for _, batch := range chunk(trackIDs, audioFeaturesCeiling) {
		var envelope audioFeaturesEnvelope
		target := fmt.Sprintf("%s/audio-features?ids=%s", c.baseURL, url.QueryEscape(strings.Join(batch, ",")))
		err := c.call(ctx, "audio features", func(ctx context.Context) error {
			return c.get(ctx, target, &envelope)
		})
		if err != nil {
			return nil, err
		}
		for _, f := range envelope.AudioFeatures {
			if f != nil {
				features = append(features, *f)
			}
		}
	}
	return features, nil
}

// Artists fetches artist lookups chunked at the service's 50-id ceiling.
func (c *Client) Artists(ctx context.Context, artistIDs []string) ([]ArtistPayload, error) {
	var artists []ArtistPayload
	for _, batch := range chunk(artistIDs, artistsCeiling) {
		var envelope artistsEnvelope
		target := fmt.Sprintf("%s/artists?ids=%s", c.baseURL, url.QueryEscape(strings.Join(batch, ",")))
		err := c.call(ctx, "artists", func(ctx context.Context) error {
			return c.get(ctx, target, &envelope)
		})
		if err != nil {
			return nil, err
		}
		for _, a := range envelope.Artists {
			if a != nil {
				artists = append(artists, *a)
			}
		}
	}
	return artists, nil
}

// RecentlyPlayed fetches up to limit recently-played events (service ceiling 50).
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]PlayHistoryItem, error) {
	var envelope playHistoryEnvelope
	target := fmt.Sprintf("%s/me/player/recently-played?limit=%d", c.baseURL, limit)
	err := c.call(ctx, "recently played", func(ctx context.Context) error {
		return c.get(ctx, target, &envelope)
	})
	if err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// TopTracks fetches the user's top tracks for one time range.
func (c *Client) TopTracks(ctx context.Context, timeRange string, limit int) ([]TrackPayload, error) {
	var envelope topTracksEnvelope
	target := fmt.Sprintf("%s/me/top/tracks?time_range=%s&limit=%d", c.baseURL, url.QueryEscape(timeRange), limit)
	err := c.call(ctx, "top tracks", func(ctx context.Context) error {
		return c.get(ctx, target, &envelope)
	})
	if err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// TopArtists fetches the user's top artists for one time range.
func (c *Client) TopArtists(ctx context.Context, timeRange string, limit int) ([]ArtistPayload, error) {
	var envelope topArtistsEnvelope
	target := fmt.Sprintf("%s/me/top/artists?time_range=%s&limit=%d", c.baseURL, url.QueryEscape(timeRange), limit)
	err := c.call(ctx, "top artists", func(ctx context.Context) error {
		return c.get(ctx, target, &envelope)
	})
	if err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// get executes one GET against the service and decodes the response,
// classifying failures into the tagged kinds the retry machine branches on.
// The token is fetched per attempt so a refresh takes effect on retry.
func (c *Client) get(ctx context.Context, target string, out interface{}) error {
	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		return &CallError{Kind: FailureAuthExpired, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &CallError{
			Kind:       FailureRateLimited,
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("rate limited"),
		}
	case http.StatusUnauthorized:
		return &CallError{
			Kind:   FailureAuthExpired,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("token rejected"),
		}
	default:
		return &CallError{
			Kind:   FailureUnrecoverable,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", serviceMessage(body, resp.StatusCode)),
		}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func serviceMessage(body []byte, status int) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}

func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

