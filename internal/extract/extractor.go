// Package extract assembles the nine raw record collections for one pipeline
// run, applying per-kind extraction ceilings and carrying IDs discovered while
// walking playlists into the dependent lookups.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/record"
	"github.com/nmorelli/spotify-etl/internal/spotify"
)

// Source is the slice of the API client the extractor consumes.
type Source interface {
	CurrentUser(ctx context.Context) (spotify.UserPayload, error)
	UserPlaylists(ctx context.Context, userID string) ([]spotify.PlaylistPayload, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]spotify.PlaylistEntry, error)
	AudioFeatures(ctx context.Context, trackIDs []string) ([]spotify.AudioFeaturesPayload, error)
	Artists(ctx context.Context, artistIDs []string) ([]spotify.ArtistPayload, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.PlayHistoryItem, error)
	TopTracks(ctx context.Context, timeRange string, limit int) ([]spotify.TrackPayload, error)
	TopArtists(ctx context.Context, timeRange string, limit int) ([]spotify.ArtistPayload, error)
}

type Extractor struct {
	src         Source
	limits      config.Limits
	extractedAt string
	log         zerolog.Logger
}

func New(src Source, limits config.Limits, log zerolog.Logger) *Extractor {
	return &Extractor{
		src:         src,
		limits:      limits,
		extractedAt: time.Now().UTC().Format(time.RFC3339),
		log:         log,
	}
}

// UserProfile extracts the singleton profile record. Failure here is fatal to
// the run.
func (e *Extractor) UserProfile(ctx context.Context) (record.User, error) {
	user, err := e.src.CurrentUser(ctx)
	if err != nil {
		return record.User{}, fmt.Errorf("extracting user profile: %w", err)
	}
	return record.User{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Followers:   user.Followers.Total,
		Country:     user.Country,
		Product:     user.Product,
		ExtractedAt: e.extractedAt,
	}, nil
}

// Playlists extracts the user's playlists, truncated to the configured
// ceiling in source order.
func (e *Extractor) Playlists(ctx context.Context, userID string) ([]record.Playlist, error) {
	all, err := e.src.UserPlaylists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("extracting playlists: %w", err)
	}
	if len(all) > e.limits.MaxPlaylists {
		all = all[:e.limits.MaxPlaylists]
	}
	e.log.Info().Int("count", len(all)).Int("limit", e.limits.MaxPlaylists).Msg("extracted playlists")

	playlists := make([]record.Playlist, 0, len(all))
	for _, p := range all {
		playlists = append(playlists, record.Playlist{
			PlaylistID:     p.ID,
			Name:           p.Name,
			Description:    p.Description,
			OwnerID:        p.Owner.ID,
			Public:         p.Public,
			Collaborative:  p.Collaborative,
			FollowersCount: p.Followers.Total,
			TracksCount:    p.Tracks.Total,
			ExtractedAt:    e.extractedAt,
		})
	}
	return playlists, nil
}

// PlaylistTracks extracts one playlist's tracklist, truncated to the
// configured ceiling. Locally-stored entries have no stable identifier and
// are skipped. Each retained entry yields a membership record and the
// attached raw track payload for later normalization.
func (e *Extractor) PlaylistTracks(ctx context.Context, playlistID string) ([]record.PlaylistTrack, []spotify.TrackPayload, error) {
	entries, err := e.src.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting tracks of playlist %s: %w", playlistID, err)
	}
	if len(entries) > e.limits.MaxTracksPerPlaylist {
		entries = entries[:e.limits.MaxTracksPerPlaylist]
	}

	var memberships []record.PlaylistTrack
	var payloads []spotify.TrackPayload
	for position, entry := range entries {
		if entry.Track == nil || entry.Track.IsLocal {
			continue
		}
		memberships = append(memberships, record.PlaylistTrack{
			PlaylistID:  playlistID,
			TrackID:     entry.Track.ID,
			AddedAt:     entry.AddedAt,
			AddedBy:     entry.AddedBy.ID,
			Position:    int64(position),
			ExtractedAt: e.extractedAt,
		})
		payloads = append(payloads, *entry.Track)
	}
	return memberships, payloads, nil
}

// Tracks normalizes raw track payloads into Track records. Payloads without a
// track identifier are dropped, and duplicate identifiers keep their first
// occurrence.
func (e *Extractor) Tracks(payloads []spotify.TrackPayload) []record.Track {
	seen := make(map[string]bool, len(payloads))
	var tracks []record.Track
	for _, payload := range payloads {
		if payload.ID == "" || seen[payload.ID] {
			continue
		}
		seen[payload.ID] = true
		tracks = append(tracks, record.Track{
			TrackID:     payload.ID,
			Name:        payload.Name,
			Artists:     artistIDs(payload.Artists),
			AlbumID:     payload.Album.ID,
			AlbumName:   payload.Album.Name,
			ReleaseDate: payload.Album.ReleaseDate,
			DurationMs:  payload.DurationMs,
			Popularity:  payload.Popularity,
			Explicit:    payload.Explicit,
			ExternalURL: payload.ExternalURLs.Spotify,
			ExtractedAt: e.extractedAt,
		})
	}
	return tracks
}

// AudioFeatures fetches scored features for the given tracks in configured
// batches. A batch that fails entirely is skipped with a warning; the run
// keeps the features of the batches that succeeded.
func (e *Extractor) AudioFeatures(ctx context.Context, trackIDs []string) []record.AudioFeatures {
	unique := dedupe(trackIDs)
	if len(unique) == 0 {
		return nil
	}

	var features []record.AudioFeatures
	batchSize := e.limits.AudioFeaturesBatch
	for start := 0; start < len(unique); start += batchSize {
		end := start + batchSize
		if end > len(unique) {
			end = len(unique)
		}
		fetched, err := e.src.AudioFeatures(ctx, unique[start:end])
		if err != nil {
			e.log.Warn().Err(err).Int("batch", start/batchSize+1).
				Msg("audio features batch failed, skipping")
			continue
		}
		for _, f := range fetched {
			features = append(features, record.AudioFeatures{
				TrackID:          f.ID,
				Danceability:     f.Danceability,
				Energy:           f.Energy,
				Key:              f.Key,
				Loudness:         f.Loudness,
				Mode:             f.Mode,
				Speechiness:      f.Speechiness,
				Acousticness:     f.Acousticness,
				Instrumentalness: f.Instrumentalness,
				Liveness:         f.Liveness,
				Valence:          f.Valence,
				Tempo:            f.Tempo,
				TimeSignature:    f.TimeSignature,
				ExtractedAt:      e.extractedAt,
			})
		}
	}
	e.log.Info().Int("count", len(features)).Msg("extracted audio features")
	return features
}

// Artists fetches artist details for the IDs collected while walking
// playlists. A total failure degrades to an empty collection.
func (e *Extractor) Artists(ctx context.Context, artistIDs []string) []record.Artist {
	unique := dedupe(artistIDs)
	if len(unique) == 0 {
		return nil
	}

	fetched, err := e.src.Artists(ctx, unique)
	if err != nil {
		e.log.Warn().Err(err).Msg("artist extraction failed, continuing without artists")
		return nil
	}

	artists := make([]record.Artist, 0, len(fetched))
	for _, a := range fetched {
		artists = append(artists, record.Artist{
			ArtistID:    a.ID,
			Name:        a.Name,
			Genres:      a.Genres,
			Popularity:  a.Popularity,
			Followers:   a.Followers.Total,
			ExternalURL: a.ExternalURLs.Spotify,
			ExtractedAt: e.extractedAt,
		})
	}
	return artists
}

// RecentlyPlayed fetches up to the configured ceiling of listening events. A
// fetch failure degrades to an empty collection.
func (e *Extractor) RecentlyPlayed(ctx context.Context) []record.RecentlyPlayed {
	items, err := e.src.RecentlyPlayed(ctx, e.limits.MaxRecentlyPlayed)
	if err != nil {
		e.log.Warn().Err(err).Msg("recently played extraction failed, continuing")
		return nil
	}

	events := make([]record.RecentlyPlayed, 0, len(items))
	for _, item := range items {
		event := record.RecentlyPlayed{
			TrackID:     item.Track.ID,
			PlayedAt:    item.PlayedAt,
			ExtractedAt: e.extractedAt,
		}
		if item.Context != nil {
			event.ContextType = item.Context.Type
			event.ContextURI = item.Context.URI
		}
		events = append(events, event)
	}
	e.log.Info().Int("count", len(events)).Msg("extracted recently played")
	return events
}

// TopTracks extracts one full ranking per time range, assigning 1-based
// positions in source order.
func (e *Extractor) TopTracks(ctx context.Context) ([]record.TopTrack, error) {
	var rankings []record.TopTrack
	for _, timeRange := range record.TimeRanges {
		tracks, err := e.src.TopTracks(ctx, timeRange, e.limits.TopItems)
		if err != nil {
			return nil, fmt.Errorf("extracting top tracks (%s): %w", timeRange, err)
		}
		for i, t := range tracks {
			rankings = append(rankings, record.TopTrack{
				TrackID:     t.ID,
				TimeRange:   timeRange,
				Position:    int64(i + 1),
				ExtractedAt: e.extractedAt,
			})
		}
	}
	return rankings, nil
}

// TopArtists mirrors TopTracks for artist rankings.
func (e *Extractor) TopArtists(ctx context.Context) ([]record.TopArtist, error) {
	var rankings []record.TopArtist
	for _, timeRange := range record.TimeRanges {
		artists, err := e.src.TopArtists(ctx, timeRange, e.limits.TopItems)
		if err != nil {
			return nil, fmt.Errorf("extracting top artists (%s): %w", timeRange, err)
		}
		for i, a := range artists {
			rankings = append(rankings, record.TopArtist{
				ArtistID:    a.ID,
				TimeRange:   timeRange,
				Position:    int64(i + 1),
				ExtractedAt: e.extractedAt,
			})
		}
	}
	return rankings, nil
}

// ExtractAll runs the sub-extractions in dependency order and assembles the
// full raw set. Profile and playlist failures abort; audio features, artists,
// and recently played degrade to empty collections.
func (e *Extractor) ExtractAll(ctx context.Context) (record.Set, error) {
	e.log.Info().Msg("starting extraction")

	user, err := e.UserProfile(ctx)
	if err != nil {
		return record.Set{}, err
	}

	playlists, err := e.Playlists(ctx, user.UserID)
	if err != nil {
		return record.Set{}, err
	}

	var memberships []record.PlaylistTrack
	var payloads []spotify.TrackPayload
	var artistIDs []string
	for _, playlist := range playlists {
		m, p, err := e.PlaylistTracks(ctx, playlist.PlaylistID)
		if err != nil {
			return record.Set{}, err
		}
		memberships = append(memberships, m...)
		payloads = append(payloads, p...)
		for _, payload := range p {
			for _, ref := range payload.Artists {
				if ref.ID != "" {
					artistIDs = append(artistIDs, ref.ID)
				}
			}
		}
	}

	tracks := e.Tracks(payloads)
	trackIDs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		trackIDs = append(trackIDs, t.TrackID)
	}

	features := e.AudioFeatures(ctx, trackIDs)
	artists := e.Artists(ctx, artistIDs)
	recentlyPlayed := e.RecentlyPlayed(ctx)

	topTracks, err := e.TopTracks(ctx)
	if err != nil {
		return record.Set{}, err
	}
	topArtists, err := e.TopArtists(ctx)
	if err != nil {
		return record.Set{}, err
	}

	e.log.Info().Msg("extraction complete")
	return record.Set{
		Users:          []record.User{user},
		Playlists:      playlists,
		Tracks:         tracks,
		AudioFeatures:  features,
		Artists:        artists,
		PlaylistTracks: memberships,
		RecentlyPlayed: recentlyPlayed,
		TopTracks:      topTracks,
		TopArtists:     topArtists,
	}, nil
}

// dedupe preserves first-seen order and drops empty IDs.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var unique []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}

func artistIDs(refs []spotify.ArtistRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID != "" {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}
