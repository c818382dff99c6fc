package spotify

// Wire types mirror the service's nested payload shapes. The extractor
// flattens these into record structs; nothing outside this package and the
// extractor should see them.

type Followers struct {
	Total int64 `json:"total"`
}

type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

type UserPayload struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Followers   Followers    `json:"followers"`
	Country     string       `json:"country"`
	Product     string       `json:"product"`
	ExternalURL ExternalURLs `json:"external_urls"`
}

type OwnerRef struct {
	ID string `json:"id"`
}

type TracksRef struct {
	Total int64 `json:"total"`
}

type PlaylistPayload struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Owner         OwnerRef  `json:"owner"`
	Public        bool      `json:"public"`
	Collaborative bool      `json:"collaborative"`
	Followers     Followers `json:"followers"`
	Tracks        TracksRef `json:"tracks"`
}

type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AlbumPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type TrackPayload struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Artists      []ArtistRef  `json:"artists"`
	Album        AlbumPayload `json:"album"`
	DurationMs   int64        `json:"duration_ms"`
	Popularity   *int64       `json:"popularity"`
	Explicit     bool         `json:"explicit"`
	IsLocal      bool         `json:"is_local"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// PlaylistEntry is one occurrence of a track within a playlist's tracklist.
// Track is nil for entries the service could not resolve.
type PlaylistEntry struct {
	AddedAt string        `json:"added_at"`
	AddedBy OwnerRef      `json:"added_by"`
	Track   *TrackPayload `json:"track"`
}

type AudioFeaturesPayload struct {
	ID               string   `json:"id"`
	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Key              *int64   `json:"key"`
	Loudness         *float64 `json:"loudness"`
	Mode             *int64   `json:"mode"`
	Speechiness      *float64 `json:"speechiness"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Liveness         *float64 `json:"liveness"`
	Valence          *float64 `json:"valence"`
	Tempo            *float64 `json:"tempo"`
	TimeSignature    *int64   `json:"time_signature"`
}

type ArtistPayload struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Popularity   *int64       `json:"popularity"`
	Followers    Followers    `json:"followers"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

type PlayContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

type PlayHistoryItem struct {
	Track    TrackPayload `json:"track"`
	PlayedAt string       `json:"played_at"`
	Context  *PlayContext `json:"context"`
}

// Paging envelopes. The service signals continuation with a non-empty "next"
// URL; list calls drain it to completion.

type playlistPage struct {
	Items []PlaylistPayload `json:"items"`
	Next  string            `json:"next"`
}

type playlistTrackPage struct {
	Items []PlaylistEntry `json:"items"`
	Next  string          `json:"next"`
}

type audioFeaturesEnvelope struct {
	AudioFeatures []*AudioFeaturesPayload `json:"audio_features"`
}

type artistsEnvelope struct {
	Artists []*ArtistPayload `json:"artists"`
}

type playHistoryEnvelope struct {
	Items []PlayHistoryItem `json:"items"`
}

type topTracksEnvelope struct {
	Items []TrackPayload `json:"items"`
}

type topArtistsEnvelope struct {
	Items []ArtistPayload `json:"items"`
}

type errorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
