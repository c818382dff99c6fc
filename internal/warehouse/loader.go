package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmorelli/spotify-etl/internal/record"
)

// Loader writes validated collections with table-specific strategies: the
// snapshot tables are fully replaced each run, the recently_played event log
// is appended with best-effort dedup on (track_id, played_at).
type Loader struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewLoader(w *Warehouse, log zerolog.Logger) *Loader {
	return &Loader{db: w.db, log: log}
}

func (l *Loader) LoadUsers(ctx context.Context, users []record.User) error {
	if len(users) == 0 {
		l.skip(TableUsers)
		return nil
	}
	const insert = `INSERT INTO users (user_id, display_name, followers, country, product, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	return l.replace(ctx, TableUsers, insert, len(users), func(i int) ([]interface{}, error) {
		u := users[i]
		extractedAt, err := parseTimestamp("extracted_at", u.ExtractedAt)
		if err != nil {
			return nil, err
		}
		return []interface{}{u.UserID, nullString(u.DisplayName), u.Followers,
			nullString(u.Country), nullString(u.Product), extractedAt}, nil
	})
}

func (l *Loader) LoadPlaylists(ctx context.Context, playlists []record.Playlist) error {
	if len(playlists) == 0 {
		l.skip(TablePlaylists)
		return nil
	}
	const insert = `INSERT INTO playlists (playlist_id, name, description, owner_id, public,
		collaborative, followers_count, tracks_count, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return l.replace(ctx, TablePlaylists, insert, len(playlists), func(i int) ([]interface{}, error) {
		p := playlists[i]
		extractedAt, err := parseTimestamp("extracted_at", p.ExtractedAt)
		if err != nil {
			return nil, err
		}
		return []interface{}{p.PlaylistID, nullString(p.Name), nullString(p.Description),
			nullString(p.OwnerID), p.Public, p.Collaborative, p.FollowersCount,
			p.TracksCount, extractedAt}, nil
	})
}

func (l *Loader) LoadTracks(ctx context.Context, tracks []record.Track) error {
	if len(tracks) == 0 {
		l.skip(TableTracks)
		return nil
	}
	// The artists column is a LIST; values arrive as a JSON array cast in SQL
	// so element order survives.
	const insert = `INSERT INTO tracks (track_id, name, artists, album_id, album_name,
		release_date, duration_ms, popularity, explicit, external_url, extracted_at)
		VALUES (?, ?, ?::JSON::VARCHAR[], ?, ?, ?, ?, ?, ?, ?, ?)`
	return l.replace(ctx, TableTracks, insert, len(tracks), func(i int) ([]interface{}, error) {
		t := tracks[i]
		extractedAt, err := parseTimestamp("extracted_at", t.ExtractedAt)
		if err != nil {
			return nil, err
		}
		releaseDate, err := nullableDate(t.ReleaseDate)
		if err != nil {
			return nil, err
		}
		artists, err := listJSON(t.Artists)
		if err != nil {
			return nil, err
		}
		return []interface{}{t.TrackID, nullString(t.Name), artists, nullString(t.AlbumID),
			nullString(t.AlbumName), releaseDate, t.DurationMs, nullInt(t.Popularity),
			t.Explicit, nullString(t.ExternalURL), extractedAt}, nil
	})
}

func (l *Loader) LoadAudioFeatures(ctx context.Context, features []record.AudioFeatures) error {
	if len(features) == 0 {
		l.skip(TableAudioFeatures)
		return nil
	}
	const insert = `INSERT INTO track_audio_features (track_id, danceability, energy, key,
		loudness, mode, speechiness, acousticness, instrumentalness, liveness, valence,
		tempo, time_signature, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return l.replace(ctx, TableAudioFeatures, insert, len(features), func(i int) ([]interface{}, error) {
		f := features[i]
		extractedAt, err := parseTimestamp("extracted_at", f.ExtractedAt)
		if err != nil {
			return nil, err
		}
		return []interface{}{f.TrackID, nullFloat(f.Danceability), nullFloat(f.Energy),
			nullInt(f.Key), nullFloat(f.Loudness), nullInt(f.Mode), nullFloat(f.Speechiness),
			nullFloat(f.Acousticness), nullFloat(f.Instrumentalness), nullFloat(f.Liveness),
			nullFloat(f.Valence), nullFloat(f.Tempo), nullInt(f.TimeSignature), extractedAt}, nil
	})
}

func (l *Loader) LoadArtists(ctx context.Context, artists []record.Artist) error {
	if len(artists) == 0 {
		l.skip(TableArtists)
		return nil
	}
	const insert = `INSERT INTO artists (artist_id, name, genres, popularity, followers,
		external_url, extracted_at)
		VALUES (?, ?, ?::JSON::VARCHAR[], ?, ?, ?, ?)`
	return l.replace(ctx, TableArtists, insert, len(artists), func(i int) ([]interface{}, error) {
		a := artists[i]
		extractedAt, err := parseTimestamp("extracted_at", a.ExtractedAt)
		if err != nil {
			return nil, err
		}
		genres, err := listJSON(a.Genres)
		if err != nil {
			return nil, err
		}
		return []interface{}{a.ArtistID, nullString(a.Name), genres, nullInt(a.Popularity),
			a.Followers, nullString(a.ExternalURL), extractedAt}, nil
	})
}

func (l *Loader) LoadPlaylistTracks(ctx context.Context, memberships []record.PlaylistTrack) error {
	if len(memberships) == 0 {
		l.skip(TablePlaylistTracks)
		return nil
	}
	const insert = `INSERT INTO playlist_tracks (playlist_id, track_id, added_at, added_by,
		position, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	return l.replace(ctx, TablePlaylistTracks, insert, len(memberships), func(i int) ([]interface{}, error) {
		pt := memberships[i]
		extractedAt, err := parseTimestamp("extracted_at", pt.ExtractedAt)
		if err != nil {
			return nil, err
		}
		addedAt, err := nullableTimestamp(pt.AddedAt)
		if err != nil {
			return nil, err
		}
		return []interface{}{pt.PlaylistID, pt.TrackID, addedAt, nullString(pt.AddedBy),
			pt.Position, extractedAt}, nil
	})
}

// LoadRecentlyPlayed appends listening events not already present. When the
// existence check itself fails the full collection is appended unfiltered,
// which can duplicate rows on repeated runs against a degraded warehouse.
func (l *Loader) LoadRecentlyPlayed(ctx context.Context, events []record.RecentlyPlayed) error {
	if len(events) == 0 {
		l.skip(TableRecentlyPlayed)
		return nil
	}

	existing, err := l.existingPlays(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("could not check existing plays, appending unfiltered")
		existing = nil
	}

	type row struct {
		event    record.RecentlyPlayed
		playedAt time.Time
	}
	var fresh []row
	for _, event := range events {
		playedAt, err := parseTimestamp("played_at", event.PlayedAt)
		if err != nil {
			return err
		}
		// The played_at column stores microseconds; sub-microsecond digits
		// would never round-trip and the event would re-append every run.
		playedAt = playedAt.Truncate(time.Microsecond)
		if existing[playKey(event.TrackID, playedAt)] {
			continue
		}
		fresh = append(fresh, row{event: event, playedAt: playedAt})
	}
	if len(fresh) == 0 {
		l.log.Info().Str("table", TableRecentlyPlayed).Msg("no new plays to append")
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO recently_played (track_id, played_at, context_type, context_uri, extracted_at)
		VALUES (?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range fresh {
		extractedAt, err := parseTimestamp("extracted_at", r.event.ExtractedAt)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, r.event.TrackID, r.playedAt,
			nullString(r.event.ContextType), nullString(r.event.ContextURI), extractedAt)
		if err != nil {
			return fmt.Errorf("inserting play: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	l.log.Info().Str("table", TableRecentlyPlayed).Int("rows", len(fresh)).Msg("appended new plays")
	return nil
}

func (l *Loader) LoadTopTracks(ctx context.Context, rankings []record.TopTrack) error {
	if len(rankings) == 0 {
		l.skip(TableTopTracks)
		return nil
	}
	const insert = `INSERT INTO top_tracks (track_id, time_range, position, extracted_at)
		VALUES (?, ?, ?, ?)`
	return l.replace(ctx, TableTopTracks, insert, len(rankings), func(i int) ([]interface{}, error) {
		tt := rankings[i]
		extractedAt, err := parseTimestamp("extracted_at", tt.ExtractedAt)
		if err != nil {
			return nil, err
		}
		return []interface{}{tt.TrackID, tt.TimeRange, tt.Position, extractedAt}, nil
	})
}

func (l *Loader) LoadTopArtists(ctx context.Context, rankings []record.TopArtist) error {
	if len(rankings) == 0 {
		l.skip(TableTopArtists)
		return nil
	}
	const insert = `INSERT INTO top_artists (artist_id, time_range, position, extracted_at)
		VALUES (?, ?, ?, ?)`
	return l.replace(ctx, TableTopArtists, insert, len(rankings), func(i int) ([]interface{}, error) {
		ta := rankings[i]
		extractedAt, err := parseTimestamp("extracted_at", ta.ExtractedAt)
		if err != nil {
			return nil, err
		}
		return []interface{}{ta.ArtistID, ta.TimeRange, ta.Position, extractedAt}, nil
	})
}

// LoadAll loads the nine collections in fixed order. The first failing load
// aborts the rest; tables already written this run stay written.
func (l *Loader) LoadAll(ctx context.Context, set record.Set) error {
	if err := l.LoadUsers(ctx, set.Users); err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	if err := l.LoadPlaylists(ctx, set.Playlists); err != nil {
		return fmt.Errorf("loading playlists: %w", err)
	}
	if err := l.LoadTracks(ctx, set.Tracks); err != nil {
		return fmt.Errorf("loading tracks: %w", err)
	}
	if err := l.LoadAudioFeatures(ctx, set.AudioFeatures); err != nil {
		return fmt.Errorf("loading audio features: %w", err)
	}
	if err := l.LoadArtists(ctx, set.Artists); err != nil {
		return fmt.Errorf("loading artists: %w", err)
	}
	if err := l.LoadPlaylistTracks(ctx, set.PlaylistTracks); err != nil {
		return fmt.Errorf("loading playlist tracks: %w", err)
	}
	if err := l.LoadRecentlyPlayed(ctx, set.RecentlyPlayed); err != nil {
		return fmt.Errorf("loading recently played: %w", err)
	}
	if err := l.LoadTopTracks(ctx, set.TopTracks); err != nil {
		return fmt.Errorf("loading top tracks: %w", err)
	}
	if err := l.LoadTopArtists(ctx, set.TopArtists); err != nil {
		return fmt.Errorf("loading top artists: %w", err)
	}
	return nil
}

// replace implements the snapshot strategy: delete everything, insert the
// current collection, all in one transaction.
func (l *Loader) replace(ctx context.Context, table, insert string, n int, args func(i int) ([]interface{}, error)) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("truncating %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		values, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	l.log.Info().Str("table", table).Int("rows", n).Msg("replaced table contents")
	return nil
}

func (l *Loader) existingPlays(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT DISTINCT track_id, played_at FROM recently_played")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var trackID string
		var playedAt time.Time
		if err := rows.Scan(&trackID, &playedAt); err != nil {
			return nil, err
		}
		existing[playKey(trackID, playedAt)] = true
	}
	return existing, rows.Err()
}

func (l *Loader) skip(table string) {
	l.log.Info().Str("table", table).Msg("nothing to load")
}

func playKey(trackID string, playedAt time.Time) string {
	return trackID + "|" + playedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

func parseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", field, value, err)
	}
	return t.UTC(), nil
}

func nullableTimestamp(value string) (interface{}, error) {
	if value == "" {
		return nil, nil
	}
	return parseTimestamp("timestamp", value)
}

func nullableDate(value string) (interface{}, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", value, err)
	}
	return t, nil
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func listJSON(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(data), nil
}
