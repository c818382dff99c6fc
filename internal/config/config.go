// Package config carries the process configuration. One Config value is built
// at command start and passed into each component's constructor; nothing reads
// configuration ambiently after that.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	DefaultRedirectURI = "http://localhost:8888/callback"
	DefaultScope       = "user-read-recently-played,user-top-read,user-library-read,playlist-read-private"
)

// Limits are the extraction ceilings, used for cost control against the
// source API.
type Limits struct {
	MaxPlaylists         int
	MaxTracksPerPlaylist int
	MaxRecentlyPlayed    int
	TopItems             int
	AudioFeaturesBatch   int
}

type Spotify struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	TokenCache   string
}

type Warehouse struct {
	Path string
}

type Email struct {
	SendgridKey string
	From        string
}

type Config struct {
	Spotify   Spotify
	Warehouse Warehouse
	Limits    Limits
	Email     Email
	LogLevel  string
}

// FromViper builds a Config from the flags and config file the cmd layer has
// already bound into viper.
func FromViper(v *viper.Viper) Config {
	return Config{
		Spotify: Spotify{
			ClientID:     v.GetString("client_id"),
			ClientSecret: v.GetString("client_secret"),
			RedirectURI:  v.GetString("redirect_uri"),
			Scope:        v.GetString("scope"),
			TokenCache:   v.GetString("token_cache"),
		},
		Warehouse: Warehouse{
			Path: v.GetString("warehouse"),
		},
		Limits: Limits{
			MaxPlaylists:         v.GetInt("max_playlists"),
			MaxTracksPerPlaylist: v.GetInt("max_tracks_per_playlist"),
			MaxRecentlyPlayed:    v.GetInt("max_recently_played"),
			TopItems:             v.GetInt("top_items_limit"),
			AudioFeaturesBatch:   v.GetInt("audio_features_batch"),
		},
		Email: Email{
			SendgridKey: v.GetString("sendgrid_api_key"),
			From:        v.GetString("from"),
		},
		LogLevel: v.GetString("log_level"),
	}
}

// Validate checks the fields every command needs. Commands that talk to the
// source API additionally require credentials via ValidateSpotify.
func (c Config) Validate() error {
	if c.Warehouse.Path == "" {
		return fmt.Errorf("warehouse path is required")
	}
	if c.Limits.MaxPlaylists <= 0 {
		return fmt.Errorf("max_playlists must be positive, got %d", c.Limits.MaxPlaylists)
	}
	if c.Limits.MaxTracksPerPlaylist <= 0 {
		return fmt.Errorf("max_tracks_per_playlist must be positive, got %d", c.Limits.MaxTracksPerPlaylist)
	}
	if c.Limits.MaxRecentlyPlayed <= 0 || c.Limits.MaxRecentlyPlayed > 50 {
		return fmt.Errorf("max_recently_played must be in (0, 50], got %d", c.Limits.MaxRecentlyPlayed)
	}
	if c.Limits.TopItems <= 0 || c.Limits.TopItems > 50 {
		return fmt.Errorf("top_items_limit must be in (0, 50], got %d", c.Limits.TopItems)
	}
	if c.Limits.AudioFeaturesBatch <= 0 || c.Limits.AudioFeaturesBatch > 100 {
		return fmt.Errorf("audio_features_batch must be in (0, 100], got %d", c.Limits.AudioFeaturesBatch)
	}
	return nil
}

func (c Config) ValidateSpotify() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret are required")
	}
	return nil
}

// Logger builds the process logger from the configured level. Unknown levels
// fall back to info.
func (c Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
