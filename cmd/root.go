/*
Copyright 2024 Nick Morelli

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/nmorelli/spotify-etl/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spotify-etl",
	Short: "Extracts Spotify listening data into a local analytics warehouse",
	Long: `Pulls playlists, tracks, audio features, artists, and listening history
from the Spotify Web API, validates them, and loads them into a DuckDB
warehouse for local analysis.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default is $HOME/.spotify-etl.yaml)")

	var clientID string
	rootCmd.PersistentFlags().StringVar(&clientID, "client_id", "", "Spotify application client ID")
	viper.BindPFlag("client_id", rootCmd.PersistentFlags().Lookup("client_id"))

	var clientSecret string
	rootCmd.PersistentFlags().StringVar(&clientSecret, "client_secret", "", "Spotify application client secret")
	viper.BindPFlag("client_secret", rootCmd.PersistentFlags().Lookup("client_secret"))

	var redirectURI string
	rootCmd.PersistentFlags().StringVar(&redirectURI, "redirect_uri", config.DefaultRedirectURI, "OAuth redirect URI registered with the application")
	viper.BindPFlag("redirect_uri", rootCmd.PersistentFlags().Lookup("redirect_uri"))

	var scope string
	rootCmd.PersistentFlags().StringVar(&scope, "scope", config.DefaultScope, "comma-separated OAuth scopes")
	viper.BindPFlag("scope", rootCmd.PersistentFlags().Lookup("scope"))

	var tokenCache string
	rootCmd.PersistentFlags().StringVar(&tokenCache, "token_cache", "./.spotify-token.json", "path of the cached OAuth token")
	viper.BindPFlag("token_cache", rootCmd.PersistentFlags().Lookup("token_cache"))

	var warehousePath string
	rootCmd.PersistentFlags().StringVarP(&warehousePath, "warehouse", "w", "./spotify.duckdb", "path of the DuckDB warehouse")
	viper.BindPFlag("warehouse", rootCmd.PersistentFlags().Lookup("warehouse"))

	var logLevel string
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log_level"))

	var maxPlaylists int
	rootCmd.PersistentFlags().IntVar(&maxPlaylists, "max_playlists", 20, "maximum playlists to extract")
	viper.BindPFlag("max_playlists", rootCmd.PersistentFlags().Lookup("max_playlists"))

	var maxTracksPerPlaylist int
	rootCmd.PersistentFlags().IntVar(&maxTracksPerPlaylist, "max_tracks_per_playlist", 100, "maximum tracks to extract per playlist")
	viper.BindPFlag("max_tracks_per_playlist", rootCmd.PersistentFlags().Lookup("max_tracks_per_playlist"))

	var maxRecentlyPlayed int
	rootCmd.PersistentFlags().IntVar(&maxRecentlyPlayed, "max_recently_played", 50, "maximum recently-played events to extract (service caps at 50)")
	viper.BindPFlag("max_recently_played", rootCmd.PersistentFlags().Lookup("max_recently_played"))

	var topItemsLimit int
	rootCmd.PersistentFlags().IntVar(&topItemsLimit, "top_items_limit", 20, "maximum top tracks/artists per time range (service caps at 50)")
	viper.BindPFlag("top_items_limit", rootCmd.PersistentFlags().Lookup("top_items_limit"))

	var audioFeaturesBatch int
	rootCmd.PersistentFlags().IntVar(&audioFeaturesBatch, "audio_features_batch", 100, "batch size for audio-feature lookups (service caps at 100)")
	viper.BindPFlag("audio_features_batch", rootCmd.PersistentFlags().Lookup("audio_features_batch"))

	var sendgridAPIKey string
	rootCmd.PersistentFlags().StringVar(&sendgridAPIKey, "sendgrid_api_key", "", "SendGrid API key for emailed run summaries")
	viper.BindPFlag("sendgrid_api_key", rootCmd.PersistentFlags().Lookup("sendgrid_api_key"))

	var from string
	rootCmd.PersistentFlags().StringVar(&from, "from", "", "From email address for run summaries")
	viper.BindPFlag("from", rootCmd.PersistentFlags().Lookup("from"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".spotify-etl" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".spotify-etl")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// See https://github.com/spf13/viper/pull/852
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			rootCmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}
