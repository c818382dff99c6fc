// Package record defines the flat record kinds produced by one pipeline run.
// Every record carries the run's extraction timestamp in RFC 3339 form;
// timestamps stay strings until the loader converts them for the warehouse.
package record

// Time ranges over which the source computes top-item rankings.
const (
	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"
)

// TimeRanges lists the three fixed ranking windows in fetch order.
var TimeRanges = []string{TimeRangeShort, TimeRangeMedium, TimeRangeLong}

type User struct {
	UserID      string
	DisplayName string
	Followers   int64
	Country     string
	Product     string
	ExtractedAt string
}

type Playlist struct {
	PlaylistID     string
	Name           string
	Description    string
	OwnerID        string
	Public         bool
	Collaborative  bool
	FollowersCount int64
	TracksCount    int64
	ExtractedAt    string
}

// Track keeps artists as an ordered list of artist IDs.
type Track struct {
	TrackID     string
	Name        string
	Artists     []string
	AlbumID     string
	AlbumName   string
	ReleaseDate string
	DurationMs  int64
	Popularity  *int64
	Explicit    bool
	ExternalURL string
	ExtractedAt string
}

// AudioFeatures is one-to-one with Track; the source declines to score some
// tracks, so every scored field is optional.
type AudioFeatures struct {
	TrackID          string
	Danceability     *float64
	Energy           *float64
	Key              *int64
	Loudness         *float64
	Mode             *int64
	Speechiness      *float64
	Acousticness     *float64
	Instrumentalness *float64
	Liveness         *float64
	Valence          *float64
	Tempo            *float64
	TimeSignature    *int64
	ExtractedAt      string
}

type Artist struct {
	ArtistID    string
	Name        string
	Genres      []string
	Popularity  *int64
	Followers   int64
	ExternalURL string
	ExtractedAt string
}

// PlaylistTrack is the junction between a playlist and one track occurrence
// within its tracklist.
type PlaylistTrack struct {
	PlaylistID  string
	TrackID     string
	AddedAt     string
	AddedBy     string
	Position    int64
	ExtractedAt string
}

// RecentlyPlayed is an append-only listening event; (TrackID, PlayedAt) is the
// natural dedup key.
type RecentlyPlayed struct {
	TrackID     string
	PlayedAt    string
	ContextType string
	ContextURI  string
	ExtractedAt string
}

type TopTrack struct {
	TrackID     string
	TimeRange   string
	Position    int64
	ExtractedAt string
}

type TopArtist struct {
	ArtistID    string
	TimeRange   string
	Position    int64
	ExtractedAt string
}

// Set groups the nine collections of one pipeline run.
type Set struct {
	Users          []User
	Playlists      []Playlist
	Tracks         []Track
	AudioFeatures  []AudioFeatures
	Artists        []Artist
	PlaylistTracks []PlaylistTrack
	RecentlyPlayed []RecentlyPlayed
	TopTracks      []TopTrack
	TopArtists     []TopArtist
}

func Int(v int64) *int64 { return &v }

func Float(v float64) *float64 { return &v }
