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
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/extract"
	"github.com/nmorelli/spotify-etl/internal/pipeline"
	"github.com/nmorelli/spotify-etl/internal/spotify"
	"github.com/nmorelli/spotify-etl/internal/warehouse"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the full extract-transform-load pipeline",
	Long: `Fetches the authenticated user's profile, playlists, tracks, audio
features, artists, and listening history from Spotify, validates them, and
loads them into the DuckDB warehouse.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper(viper.GetViper())
		notify := viper.GetBool("notify")
		notifyTo := viper.GetString("notify_to")

		err := runPipeline(cfg, notify, notifyTo)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	var notify bool
	runCmd.Flags().BoolVar(&notify, "notify", false, "Email the run summary when the pipeline finishes")
	viper.BindPFlag("notify", runCmd.Flags().Lookup("notify"))

	var notifyTo string
	runCmd.Flags().StringVar(&notifyTo, "notify_to", "", "Address to email the run summary to")
	viper.BindPFlag("notify_to", runCmd.Flags().Lookup("notify_to"))
}

func runPipeline(cfg config.Config, notify bool, notifyTo string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateSpotify(); err != nil {
		return err
	}
	log := cfg.Logger()
	ctx := context.Background()

	wh, err := warehouse.New(cfg.Warehouse.Path, log)
	if err != nil {
		return fmt.Errorf("opening warehouse: %w", err)
	}
	defer wh.Close()

	if err := wh.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing schema: %w", err)
	}

	auth := spotify.NewAuthenticator(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret,
		cfg.Spotify.RedirectURI, cfg.Spotify.Scope, cfg.Spotify.TokenCache)
	client := spotify.New(auth, log)
	extractor := extract.New(client, cfg.Limits, log)
	loader := warehouse.NewLoader(wh, log)

	p := pipeline.New(extractor, loader, log)
	summary, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	printSummary(os.Stdout, summary)

	if notify {
		if notifyTo == "" {
			return fmt.Errorf("notify_to must be set when --notify is given")
		}
		err := sendSummaryEmail(cfg, notifyTo, summary)
		if err != nil {
			return fmt.Errorf("emailing summary: %w", err)
		}
		fmt.Printf("Sent run summary to %s\n", notifyTo)
	}

	return nil
}

func printSummary(w io.Writer, summary pipeline.Summary) {
	table := tablewriter.NewWriter(w)
	table.Header("Collection", "Rows")
	for _, row := range summary.Rows() {
		table.Append(row)
	}
	table.Render()
}
