package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/record"
	"github.com/nmorelli/spotify-etl/internal/spotify"
)

// fakeSource returns canned payloads and records the IDs it was asked for.
type fakeSource struct {
	user      spotify.UserPayload
	playlists []spotify.PlaylistPayload
	entries   map[string][]spotify.PlaylistEntry
	features  map[string]spotify.AudioFeaturesPayload
	artists   map[string]spotify.ArtistPayload
	history   []spotify.PlayHistoryItem
	topTracks map[string][]spotify.TrackPayload
	topArts   map[string][]spotify.ArtistPayload

	userErr       error
	featuresErr   error
	featuresErrOn int
	artistsErr    error
	historyErr    error

	featureBatches [][]string
	artistRequests [][]string
}

func (f *fakeSource) CurrentUser(ctx context.Context) (spotify.UserPayload, error) {
	if f.userErr != nil {
		return spotify.UserPayload{}, f.userErr
	}
	return f.user, nil
}

func (f *fakeSource) UserPlaylists(ctx context.Context, userID string) ([]spotify.PlaylistPayload, error) {
	return f.playlists, nil
}

func (f *fakeSource) PlaylistTracks(ctx context.Context, playlistID string) ([]spotify.PlaylistEntry, error) {
	return f.entries[playlistID], nil
}

func (f *fakeSource) AudioFeatures(ctx context.Context, trackIDs []string) ([]spotify.AudioFeaturesPayload, error) {
	f.featureBatches = append(f.featureBatches, trackIDs)
	if f.featuresErr != nil && (f.featuresErrOn == 0 || f.featuresErrOn == len(f.featureBatches)) {
		return nil, f.featuresErr
	}
	var out []spotify.AudioFeaturesPayload
	for _, id := range trackIDs {
		if feat, ok := f.features[id]; ok {
			out = append(out, feat)
		}
	}
	return out, nil
}

func (f *fakeSource) Artists(ctx context.Context, artistIDs []string) ([]spotify.ArtistPayload, error) {
	f.artistRequests = append(f.artistRequests, artistIDs)
	if f.artistsErr != nil {
		return nil, f.artistsErr
	}
	var out []spotify.ArtistPayload
	for _, id := range artistIDs {
		if a, ok := f.artists[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeSource) RecentlyPlayed(ctx context.Context, limit int) ([]spotify.PlayHistoryItem, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeSource) TopTracks(ctx context.Context, timeRange string, limit int) ([]spotify.TrackPayload, error) {
	return f.topTracks[timeRange], nil
}

func (f *fakeSource) TopArtists(ctx context.Context, timeRange string, limit int) ([]spotify.ArtistPayload, error) {
	return f.topArts[timeRange], nil
}

func testLimits() config.Limits {
	return config.Limits{
		MaxPlaylists:         20,
		MaxTracksPerPlaylist: 100,
		MaxRecentlyPlayed:    50,
		TopItems:             20,
		AudioFeaturesBatch:   100,
	}
}

func trackPayload(id string, artistID string) *spotify.TrackPayload {
	return &spotify.TrackPayload{
		ID:      id,
		Name:    "Track " + id,
		Artists: []spotify.ArtistRef{{ID: artistID, Name: "Artist " + artistID}},
		Album:   spotify.AlbumPayload{ID: "album-" + id, Name: "Album", ReleaseDate: "2020-01-01"},
	}
}

func TestExtractAll(t *testing.T) {
	// Two playlists with three entries each. track2 appears in both, so six
	// entries reduce to five unique tracks.
	src := &fakeSource{
		user: spotify.UserPayload{ID: "user1", DisplayName: "Someone"},
		playlists: []spotify.PlaylistPayload{
			{ID: "p1", Name: "First"},
			{ID: "p2", Name: "Second"},
		},
		entries: map[string][]spotify.PlaylistEntry{
			"p1": {
				{Track: trackPayload("track1", "artistA"), AddedAt: "2024-01-01T00:00:00Z"},
				{Track: trackPayload("track2", "artistB"), AddedAt: "2024-01-02T00:00:00Z"},
				{Track: trackPayload("track3", "artistA"), AddedAt: "2024-01-03T00:00:00Z"},
			},
			"p2": {
				{Track: trackPayload("track2", "artistB"), AddedAt: "2024-02-01T00:00:00Z"},
				{Track: trackPayload("track4", "artistC"), AddedAt: "2024-02-02T00:00:00Z"},
				{Track: trackPayload("track5", "artistD"), AddedAt: "2024-02-03T00:00:00Z"},
			},
		},
		features: map[string]spotify.AudioFeaturesPayload{
			"track1": {ID: "track1"},
			"track2": {ID: "track2"},
		},
		artists: map[string]spotify.ArtistPayload{
			"artistA": {ID: "artistA", Name: "Artist A"},
			"artistB": {ID: "artistB", Name: "Artist B"},
		},
		history: []spotify.PlayHistoryItem{
			{Track: *trackPayload("track1", "artistA"), PlayedAt: "2024-03-01T10:00:00Z"},
		},
		topTracks: map[string][]spotify.TrackPayload{
			record.TimeRangeShort: {*trackPayload("track1", "artistA")},
		},
		topArts: map[string][]spotify.ArtistPayload{
			record.TimeRangeShort: {{ID: "artistA"}},
		},
	}

	e := New(src, testLimits(), zerolog.Nop())
	set, err := e.ExtractAll(context.Background())
	if err != nil {
		t.Fatalf("ExtractAll() error: %v", err)
	}

	if len(set.Users) != 1 || set.Users[0].UserID != "user1" {
		t.Errorf("Users = %+v, want one record for user1", set.Users)
	}
	if len(set.Playlists) != 2 {
		t.Errorf("len(Playlists) = %d, want 2", len(set.Playlists))
	}
	if len(set.PlaylistTracks) != 6 {
		t.Errorf("len(PlaylistTracks) = %d, want 6 (memberships keep duplicates)", len(set.PlaylistTracks))
	}
	if len(set.Tracks) != 5 {
		t.Errorf("len(Tracks) = %d, want 5 (unique track IDs)", len(set.Tracks))
	}
	if len(set.RecentlyPlayed) != 1 {
		t.Errorf("len(RecentlyPlayed) = %d, want 1", len(set.RecentlyPlayed))
	}
	if len(set.TopTracks) != 1 {
		t.Errorf("len(TopTracks) = %d, want 1", len(set.TopTracks))
	}
	if len(set.TopArtists) != 1 {
		t.Errorf("len(TopArtists) = %d, want 1", len(set.TopArtists))
	}

	// Membership positions reflect the tracklist index.
	if set.PlaylistTracks[0].Position != 0 || set.PlaylistTracks[2].Position != 2 {
		t.Errorf("positions = %d, %d, want 0 and 2",
			set.PlaylistTracks[0].Position, set.PlaylistTracks[2].Position)
	}

	// Artist lookups are deduped: artistA appears on two tracks.
	if len(src.artistRequests) != 1 {
		t.Fatalf("artist requests = %d, want 1", len(src.artistRequests))
	}
	if got := len(src.artistRequests[0]); got != 4 {
		t.Errorf("unique artist IDs requested = %d, want 4", got)
	}
}

func TestPlaylistsTruncatedToLimit(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 30; i++ {
		src.playlists = append(src.playlists, spotify.PlaylistPayload{ID: fmt.Sprintf("p%d", i)})
	}

	limits := testLimits()
	limits.MaxPlaylists = 20
	e := New(src, limits, zerolog.Nop())

	playlists, err := e.Playlists(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Playlists() error: %v", err)
	}
	if len(playlists) != 20 {
		t.Errorf("len(playlists) = %d, want 20", len(playlists))
	}
	if playlists[0].PlaylistID != "p0" {
		t.Errorf("playlists[0].PlaylistID = %q, want %q (source order)", playlists[0].PlaylistID, "p0")
	}
}

func TestPlaylistTracksSkipsLocalAndMissing(t *testing.T) {
	local := trackPayload("local1", "artistA")
	local.IsLocal = true
	src := &fakeSource{
		entries: map[string][]spotify.PlaylistEntry{
			"p1": {
				{Track: trackPayload("track1", "artistA")},
				{Track: local},
				{Track: nil},
				{Track: trackPayload("track2", "artistB")},
			},
		},
	}

	e := New(src, testLimits(), zerolog.Nop())
	memberships, payloads, err := e.PlaylistTracks(context.Background(), "p1")
	if err != nil {
		t.Fatalf("PlaylistTracks() error: %v", err)
	}
	if len(memberships) != 2 || len(payloads) != 2 {
		t.Fatalf("got %d memberships and %d payloads, want 2 and 2", len(memberships), len(payloads))
	}
	// The skipped entries still occupy tracklist positions.
	if memberships[1].TrackID != "track2" || memberships[1].Position != 3 {
		t.Errorf("memberships[1] = %+v, want track2 at position 3", memberships[1])
	}
}

func TestAudioFeaturesSkipsFailedBatch(t *testing.T) {
	src := &fakeSource{
		featuresErr:   fmt.Errorf("service unavailable"),
		featuresErrOn: 2,
		features: map[string]spotify.AudioFeaturesPayload{
			"a": {ID: "a"}, "b": {ID: "b"},
			"c": {ID: "c"}, "d": {ID: "d"},
			"e": {ID: "e"},
		},
	}

	limits := testLimits()
	limits.AudioFeaturesBatch = 2
	e := New(src, limits, zerolog.Nop())

	// The second batch (c, d) fails; the other batches still yield features.
	features := e.AudioFeatures(context.Background(), []string{"a", "b", "c", "d", "e"})
	if len(src.featureBatches) != 3 {
		t.Fatalf("batches = %d, want 3", len(src.featureBatches))
	}
	if len(features) != 3 {
		t.Fatalf("len(features) = %d, want 3 (surviving batches kept)", len(features))
	}
	got := map[string]bool{}
	for _, f := range features {
		got[f.TrackID] = true
	}
	for _, want := range []string{"a", "b", "e"} {
		if !got[want] {
			t.Errorf("features missing %q", want)
		}
	}
	if got["c"] || got["d"] {
		t.Errorf("features include the failed batch: %v", got)
	}
}

func TestAudioFeaturesAllBatchesFail(t *testing.T) {
	src := &fakeSource{featuresErr: fmt.Errorf("service unavailable")}

	e := New(src, testLimits(), zerolog.Nop())
	features := e.AudioFeatures(context.Background(), []string{"track1", "track2"})
	if features != nil {
		t.Errorf("features = %v, want nil when every batch fails", features)
	}
}

func TestAudioFeaturesBatchesByConfiguredSize(t *testing.T) {
	src := &fakeSource{features: map[string]spotify.AudioFeaturesPayload{}}

	limits := testLimits()
	limits.AudioFeaturesBatch = 2
	e := New(src, limits, zerolog.Nop())

	e.AudioFeatures(context.Background(), []string{"a", "b", "c", "d", "e"})
	if len(src.featureBatches) != 3 {
		t.Fatalf("batches = %d, want 3", len(src.featureBatches))
	}
	if len(src.featureBatches[2]) != 1 {
		t.Errorf("last batch size = %d, want 1", len(src.featureBatches[2]))
	}
}

func TestArtistsFailureDegrades(t *testing.T) {
	src := &fakeSource{artistsErr: fmt.Errorf("service unavailable")}

	e := New(src, testLimits(), zerolog.Nop())
	artists := e.Artists(context.Background(), []string{"artistA"})
	if artists != nil {
		t.Errorf("artists = %v, want nil on total failure", artists)
	}
}

func TestRecentlyPlayedFailureDegrades(t *testing.T) {
	src := &fakeSource{historyErr: fmt.Errorf("service unavailable")}

	e := New(src, testLimits(), zerolog.Nop())
	events := e.RecentlyPlayed(context.Background())
	if events != nil {
		t.Errorf("events = %v, want nil on failure", events)
	}
}

func TestUserProfileFailureIsFatal(t *testing.T) {
	src := &fakeSource{userErr: fmt.Errorf("unauthorized")}

	e := New(src, testLimits(), zerolog.Nop())
	_, err := e.ExtractAll(context.Background())
	if err == nil {
		t.Fatal("ExtractAll() expected error when the profile fetch fails")
	}
}

func TestTopTracksPositionsPerTimeRange(t *testing.T) {
	src := &fakeSource{
		topTracks: map[string][]spotify.TrackPayload{
			record.TimeRangeShort:  {*trackPayload("s1", "a"), *trackPayload("s2", "a")},
			record.TimeRangeMedium: {*trackPayload("m1", "a")},
		},
	}

	e := New(src, testLimits(), zerolog.Nop())
	rankings, err := e.TopTracks(context.Background())
	if err != nil {
		t.Fatalf("TopTracks() error: %v", err)
	}
	if len(rankings) != 3 {
		t.Fatalf("len(rankings) = %d, want 3", len(rankings))
	}
	if rankings[0].Position != 1 || rankings[1].Position != 2 {
		t.Errorf("short-term positions = %d, %d, want 1, 2", rankings[0].Position, rankings[1].Position)
	}
	// Positions restart for each time range.
	if rankings[2].TimeRange != record.TimeRangeMedium || rankings[2].Position != 1 {
		t.Errorf("rankings[2] = %+v, want medium_term position 1", rankings[2])
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", "b", "a", "", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dedupe[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
