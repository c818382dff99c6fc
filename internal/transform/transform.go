// Package transform validates and normalizes raw record collections. Each
// record kind has a pure validate-and-normalize function; records that fail
// their schema are dropped with a logged reason and never abort the run.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmorelli/spotify-etl/internal/record"
)

// Users validates the singleton profile collection.
func Users(in []record.User, log zerolog.Logger) []record.User {
	var out []record.User
	for _, u := range in {
		if err := validateUser(u); err != nil {
			drop(log, "user", err)
			continue
		}
		out = append(out, u)
	}
	return out
}

func Playlists(in []record.Playlist, log zerolog.Logger) []record.Playlist {
	var out []record.Playlist
	for _, p := range in {
		if err := validatePlaylist(p); err != nil {
			drop(log, "playlist", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Tracks validates track records and normalizes partial release dates.
// Out-of-range popularity rejects the record rather than clamping it.
func Tracks(in []record.Track, log zerolog.Logger) []record.Track {
	var out []record.Track
	for _, t := range in {
		if err := validateTrack(t); err != nil {
			drop(log, "track", err)
			continue
		}
		t.Artists = compact(t.Artists)
		t.ReleaseDate = NormalizeReleaseDate(t.ReleaseDate)
		if t.ReleaseDate != "" {
			if _, err := time.Parse("2006-01-02", t.ReleaseDate); err != nil {
				drop(log, "track", fmt.Errorf("release_date %q is not a valid date", t.ReleaseDate))
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func AudioFeatures(in []record.AudioFeatures, log zerolog.Logger) []record.AudioFeatures {
	var out []record.AudioFeatures
	for _, f := range in {
		if err := validateAudioFeatures(f); err != nil {
			drop(log, "audio_features", err)
			continue
		}
		out = append(out, f)
	}
	return out
}

func Artists(in []record.Artist, log zerolog.Logger) []record.Artist {
	var out []record.Artist
	for _, a := range in {
		if err := validateArtist(a); err != nil {
			drop(log, "artist", err)
			continue
		}
		a.Genres = compact(a.Genres)
		out = append(out, a)
	}
	return out
}

func PlaylistTracks(in []record.PlaylistTrack, log zerolog.Logger) []record.PlaylistTrack {
	var out []record.PlaylistTrack
	for _, pt := range in {
		if err := validatePlaylistTrack(pt); err != nil {
			drop(log, "playlist_track", err)
			continue
		}
		out = append(out, pt)
	}
	return out
}

func RecentlyPlayed(in []record.RecentlyPlayed, log zerolog.Logger) []record.RecentlyPlayed {
	var out []record.RecentlyPlayed
	for _, rp := range in {
		if err := validateRecentlyPlayed(rp); err != nil {
			drop(log, "recently_played", err)
			continue
		}
		out = append(out, rp)
	}
	return out
}

func TopTracks(in []record.TopTrack, log zerolog.Logger) []record.TopTrack {
	var out []record.TopTrack
	for _, tt := range in {
		if err := validateRanking(tt.TrackID, tt.TimeRange, tt.Position, tt.ExtractedAt); err != nil {
			drop(log, "top_track", err)
			continue
		}
		out = append(out, tt)
	}
	return out
}

func TopArtists(in []record.TopArtist, log zerolog.Logger) []record.TopArtist {
	var out []record.TopArtist
	for _, ta := range in {
		if err := validateRanking(ta.ArtistID, ta.TimeRange, ta.Position, ta.ExtractedAt); err != nil {
			drop(log, "top_artist", err)
			continue
		}
		out = append(out, ta)
	}
	return out
}

// All applies the per-kind transforms to the nine collections independently,
// preserving input order within each.
func All(raw record.Set, log zerolog.Logger) record.Set {
	return record.Set{
		Users:          Users(raw.Users, log),
		Playlists:      Playlists(raw.Playlists, log),
		Tracks:         Tracks(raw.Tracks, log),
		AudioFeatures:  AudioFeatures(raw.AudioFeatures, log),
		Artists:        Artists(raw.Artists, log),
		PlaylistTracks: PlaylistTracks(raw.PlaylistTracks, log),
		RecentlyPlayed: RecentlyPlayed(raw.RecentlyPlayed, log),
		TopTracks:      TopTracks(raw.TopTracks, log),
		TopArtists:     TopArtists(raw.TopArtists, log),
	}
}

// NormalizeReleaseDate completes the partial dates the source returns: a bare
// year becomes YYYY-01-01, a year-month becomes YYYY-MM-01, and a full date
// passes through unchanged.
func NormalizeReleaseDate(date string) string {
	if date == "" {
		return date
	}
	switch strings.Count(date, "-") {
	case 0:
		return date + "-01-01"
	case 1:
		return date + "-01"
	default:
		return date
	}
}

func validateUser(u record.User) error {
	if u.UserID == "" {
		return fmt.Errorf("missing user_id")
	}
	return validTimestamp("extracted_at", u.ExtractedAt)
}

func validatePlaylist(p record.Playlist) error {
	if p.PlaylistID == "" {
		return fmt.Errorf("missing playlist_id")
	}
	return validTimestamp("extracted_at", p.ExtractedAt)
}

func validateTrack(t record.Track) error {
	if t.TrackID == "" {
		return fmt.Errorf("missing track_id")
	}
	if t.Popularity != nil && (*t.Popularity < 0 || *t.Popularity > 100) {
		return fmt.Errorf("popularity %d outside [0, 100]", *t.Popularity)
	}
	if t.DurationMs < 0 {
		return fmt.Errorf("negative duration_ms %d", t.DurationMs)
	}
	return validTimestamp("extracted_at", t.ExtractedAt)
}

func validateAudioFeatures(f record.AudioFeatures) error {
	if f.TrackID == "" {
		return fmt.Errorf("missing track_id")
	}
	units := map[string]*float64{
		"danceability":     f.Danceability,
		"energy":           f.Energy,
		"speechiness":      f.Speechiness,
		"acousticness":     f.Acousticness,
		"instrumentalness": f.Instrumentalness,
		"liveness":         f.Liveness,
		"valence":          f.Valence,
	}
	for name, v := range units {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s %v outside [0, 1]", name, *v)
		}
	}
	if f.Key != nil && (*f.Key < -1 || *f.Key > 11) {
		return fmt.Errorf("key %d outside [-1, 11]", *f.Key)
	}
	if f.Mode != nil && *f.Mode != 0 && *f.Mode != 1 {
		return fmt.Errorf("mode %d not in {0, 1}", *f.Mode)
	}
	if f.Tempo != nil && *f.Tempo < 0 {
		return fmt.Errorf("negative tempo %v", *f.Tempo)
	}
	if f.TimeSignature != nil && (*f.TimeSignature < 3 || *f.TimeSignature > 7) {
		return fmt.Errorf("time_signature %d outside [3, 7]", *f.TimeSignature)
	}
	return validTimestamp("extracted_at", f.ExtractedAt)
}

func validateArtist(a record.Artist) error {
	if a.ArtistID == "" {
		return fmt.Errorf("missing artist_id")
	}
	if a.Popularity != nil && (*a.Popularity < 0 || *a.Popularity > 100) {
		return fmt.Errorf("popularity %d outside [0, 100]", *a.Popularity)
	}
	return validTimestamp("extracted_at", a.ExtractedAt)
}

func validatePlaylistTrack(pt record.PlaylistTrack) error {
	if pt.PlaylistID == "" {
		return fmt.Errorf("missing playlist_id")
	}
	if pt.TrackID == "" {
		return fmt.Errorf("missing track_id")
	}
	if pt.Position < 0 {
		return fmt.Errorf("negative position %d", pt.Position)
	}
	if pt.AddedAt != "" {
		if err := validTimestamp("added_at", pt.AddedAt); err != nil {
			return err
		}
	}
	return validTimestamp("extracted_at", pt.ExtractedAt)
}

func validateRecentlyPlayed(rp record.RecentlyPlayed) error {
	if rp.TrackID == "" {
		return fmt.Errorf("missing track_id")
	}
	if err := validTimestamp("played_at", rp.PlayedAt); err != nil {
		return err
	}
	return validTimestamp("extracted_at", rp.ExtractedAt)
}

func validateRanking(id, timeRange string, position int64, extractedAt string) error {
	if id == "" {
		return fmt.Errorf("missing id")
	}
	switch timeRange {
	case record.TimeRangeShort, record.TimeRangeMedium, record.TimeRangeLong:
	default:
		return fmt.Errorf("invalid time_range %q", timeRange)
	}
	if position < 1 {
		return fmt.Errorf("position %d below 1", position)
	}
	return validTimestamp("extracted_at", extractedAt)
}

func validTimestamp(field, value string) error {
	if value == "" {
		return fmt.Errorf("missing %s", field)
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return fmt.Errorf("%s %q is not a valid timestamp", field, value)
	}
	return nil
}

func drop(log zerolog.Logger, kind string, err error) {
	log.Warn().Str("kind", kind).Err(err).Msg("dropping record failing validation")
}

// compact never writes through the input slice; callers keep the raw
// collections intact.
func compact(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
