package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type fakeCreds struct {
	mu           sync.Mutex
	token        string
	refreshCalls int
	refreshErr   error
}

func (f *fakeCreds) AccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeCreds) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token = "refreshed-token"
	return nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *fakeCreds, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	creds := &fakeCreds{token: "initial-token"}
	client := New(creds, zerolog.Nop())
	client.baseURL = server.URL
	client.baseBackoff = time.Millisecond
	client.limiter = rate.NewLimiter(rate.Inf, 1)
	return client, creds, server
}

func TestCurrentUser(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer initial-token" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{"id": "user1", "display_name": "Someone", "followers": {"total": 3}, "country": "US"}`)
	}))

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	if user.ID != "user1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user1")
	}
	if user.Followers.Total != 3 {
		t.Errorf("user.Followers.Total = %d, want 3", user.Followers.Total)
	}
}

func TestUserPlaylistsFollowsNext(t *testing.T) {
	var server *httptest.Server
	var client *Client
	requests := 0
	client, _, server = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"items": [{"id": "p3", "name": "Third"}], "next": ""}`)
			return
		}
		fmt.Fprintf(w, `{"items": [{"id": "p1", "name": "First"}, {"id": "p2", "name": "Second"}], "next": "%s/users/user1/playlists?page=2"}`, server.URL)
	}))

	playlists, err := client.UserPlaylists(context.Background(), "user1")
	if err != nil {
		t.Fatalf("UserPlaylists() error: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(playlists) != 3 {
		t.Fatalf("len(playlists) = %d, want 3", len(playlists))
	}
	if playlists[2].ID != "p3" {
		t.Errorf("playlists[2].ID = %q, want %q", playlists[2].ID, "p3")
	}
}

func TestAudioFeaturesChunksRequests(t *testing.T) {
	var batchSizes []int
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		batchSizes = append(batchSizes, len(ids))
		fmt.Fprintf(w, `{"audio_features": [{"id": "%s", "danceability": 0.5}, null]}`, ids[0])
	}))

	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("track%d", i)
	}

	features, err := client.AudioFeatures(context.Background(), ids)
	if err != nil {
		t.Fatalf("AudioFeatures() error: %v", err)
	}
	if len(batchSizes) != 2 || batchSizes[0] != 100 || batchSizes[1] != 50 {
		t.Errorf("batch sizes = %v, want [100 50]", batchSizes)
	}
	// Null entries for unscoreable tracks are dropped.
	if len(features) != 2 {
		t.Errorf("len(features) = %d, want 2", len(features))
	}
}

func TestArtistsChunksRequests(t *testing.T) {
	var batchSizes []int
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		batchSizes = append(batchSizes, len(ids))
		fmt.Fprintf(w, `{"artists": [{"id": "%s", "name": "a"}]}`, ids[0])
	}))

	ids := make([]string, 60)
	for i := range ids {
		ids[i] = fmt.Sprintf("artist%d", i)
	}

	artists, err := client.Artists(context.Background(), ids)
	if err != nil {
		t.Fatalf("Artists() error: %v", err)
	}
	if len(batchSizes) != 2 || batchSizes[0] != 50 || batchSizes[1] != 10 {
		t.Errorf("batch sizes = %v, want [50 10]", batchSizes)
	}
	if len(artists) != 2 {
		t.Errorf("len(artists) = %d, want 2", len(artists))
	}
}

func TestRateLimitedCallRetries(t *testing.T) {
	attempts := 0
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id": "user1"}`)
	}))

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if user.ID != "user1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user1")
	}
}

func TestRateLimitedBudgetExhausted(t *testing.T) {
	attempts := 0
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.CurrentUser(context.Background())
	if err == nil {
		t.Fatal("CurrentUser() expected error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, want *CallError", err)
	}
	if ce.Kind != FailureUnrecoverable {
		t.Errorf("ce.Kind = %v, want %v", ce.Kind, FailureUnrecoverable)
	}
	if !strings.Contains(ce.Error(), "retry budget exhausted") {
		t.Errorf("ce.Error() = %q, want budget exhaustion message", ce.Error())
	}
}

func TestExpiredTokenRefreshedOnce(t *testing.T) {
	client, creds, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer refreshed-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": "user1"}`)
	}))

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	if creds.refreshCalls != 1 {
		t.Errorf("refreshCalls = %d, want 1", creds.refreshCalls)
	}
	if user.ID != "user1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user1")
	}
}

func TestRejectionAfterRefreshPropagates(t *testing.T) {
	client, creds, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.CurrentUser(context.Background())
	if err == nil {
		t.Fatal("CurrentUser() expected error")
	}
	if creds.refreshCalls != 1 {
		t.Errorf("refreshCalls = %d, want 1", creds.refreshCalls)
	}
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, want *CallError", err)
	}
	if ce.Kind != FailureAuthExpired {
		t.Errorf("ce.Kind = %v, want %v", ce.Kind, FailureAuthExpired)
	}
}

func TestServerErrorIsUnrecoverable(t *testing.T) {
	attempts := 0
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"status": 500, "message": "service exploded"}}`)
	}))

	_, err := client.CurrentUser(context.Background())
	if err == nil {
		t.Fatal("CurrentUser() expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on server errors)", attempts)
	}
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, want *CallError", err)
	}
	if ce.Kind != FailureUnrecoverable {
		t.Errorf("ce.Kind = %v, want %v", ce.Kind, FailureUnrecoverable)
	}
	if !strings.Contains(ce.Error(), "service exploded") {
		t.Errorf("ce.Error() = %q, want the service message", ce.Error())
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-1", 0},
		{"soon", 0},
	}
	for _, c := range cases {
		if got := parseRetryAfter(c.header); got != c.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", c.header, got, c.want)
		}
	}
}

func TestChunk(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	batches := chunk(ids, 2)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	if len(batches[2]) != 1 || batches[2][0] != "e" {
		t.Errorf("batches[2] = %v, want [e]", batches[2])
	}
	if batches := chunk(nil, 2); batches != nil {
		t.Errorf("chunk(nil) = %v, want nil", batches)
	}
}
