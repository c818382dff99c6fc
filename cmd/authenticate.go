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
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/spotify"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate",
	Short: "Obtains and caches an OAuth token for the Spotify account.",
	Long: `Prints the Spotify consent URL, captures the redirect on a local
listener, and caches the resulting token for later runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper(viper.GetViper())
		err := authenticate(cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(authenticateCmd)
}

func authenticate(cfg config.Config) error {
	if err := cfg.ValidateSpotify(); err != nil {
		return err
	}

	redirect, err := url.Parse(cfg.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("parsing redirect_uri: %w", err)
	}

	auth := spotify.NewAuthenticator(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret,
		cfg.Spotify.RedirectURI, cfg.Spotify.Scope, cfg.Spotify.TokenCache)

	state := uuid.New().String()
	fmt.Println("Open this URL in your browser to authorize access:")
	fmt.Println(auth.AuthCodeURL(state))

	code, err := waitForCallback(redirect, state)
	if err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := auth.Exchange(ctx, code); err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	fmt.Printf("Token cached at %s\n", cfg.Spotify.TokenCache)
	return nil
}

// waitForCallback runs a one-shot HTTP listener on the redirect URI's host
// and port until Spotify delivers the authorization code.
func waitForCallback(redirect *url.URL, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("state mismatch on callback")}
			return
		}
		if errCode := query.Get("error"); errCode != "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("authorization denied: %s", errCode)}
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this tab.")
		results <- result{code: query.Get("code")}
	})

	server := &http.Server{Addr: redirect.Host, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			results <- result{err: err}
		}
	}()
	defer server.Close()

	res := <-results
	if res.err != nil {
		return "", res.err
	}
	return res.code, nil
}
