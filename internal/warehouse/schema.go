package warehouse

// Table names, in load order. Referenced kinds (tracks, artists) load before
// the rankings that point at them so a mid-run failure cannot leave a ranking
// without its subject.
const (
	TableUsers          = "users"
	TablePlaylists      = "playlists"
	TableTracks         = "tracks"
	TableAudioFeatures  = "track_audio_features"
	TableArtists        = "artists"
	TablePlaylistTracks = "playlist_tracks"
	TableRecentlyPlayed = "recently_played"
	TableTopTracks      = "top_tracks"
	TableTopArtists     = "top_artists"
)

// Tables lists the nine warehouse tables in load order.
var Tables = []string{
	TableUsers,
	TablePlaylists,
	TableTracks,
	TableAudioFeatures,
	TableArtists,
	TablePlaylistTracks,
	TableRecentlyPlayed,
	TableTopTracks,
	TableTopArtists,
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
  user_id VARCHAR NOT NULL,
  display_name VARCHAR,
  followers BIGINT,
  country VARCHAR,
  product VARCHAR,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS playlists (
  playlist_id VARCHAR NOT NULL,
  name VARCHAR,
  description VARCHAR,
  owner_id VARCHAR,
  public BOOLEAN,
  collaborative BOOLEAN,
  followers_count BIGINT,
  tracks_count BIGINT,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
  track_id VARCHAR NOT NULL,
  name VARCHAR,
  artists VARCHAR[],
  album_id VARCHAR,
  album_name VARCHAR,
  release_date DATE,
  duration_ms BIGINT,
  popularity BIGINT,
  explicit BOOLEAN,
  external_url VARCHAR,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS track_audio_features (
  track_id VARCHAR NOT NULL,
  danceability DOUBLE,
  energy DOUBLE,
  key BIGINT,
  loudness DOUBLE,
  mode BIGINT,
  speechiness DOUBLE,
  acousticness DOUBLE,
  instrumentalness DOUBLE,
  liveness DOUBLE,
  valence DOUBLE,
  tempo DOUBLE,
  time_signature BIGINT,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS artists (
  artist_id VARCHAR NOT NULL,
  name VARCHAR,
  genres VARCHAR[],
  popularity BIGINT,
  followers BIGINT,
  external_url VARCHAR,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS playlist_tracks (
  playlist_id VARCHAR NOT NULL,
  track_id VARCHAR NOT NULL,
  added_at TIMESTAMP,
  added_by VARCHAR,
  position BIGINT,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recently_played (
  track_id VARCHAR NOT NULL,
  played_at TIMESTAMP NOT NULL,
  context_type VARCHAR,
  context_uri VARCHAR,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS top_tracks (
  track_id VARCHAR NOT NULL,
  time_range VARCHAR NOT NULL,
  position BIGINT NOT NULL,
  extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS top_artists (
  artist_id VARCHAR NOT NULL,
  time_range VARCHAR NOT NULL,
  position BIGINT NOT NULL,
  extracted_at TIMESTAMP NOT NULL
);
`
