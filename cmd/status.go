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
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/warehouse"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows row counts and last extraction time per table",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper(viper.GetViper())
		err := printStatus(cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logger()

	wh, err := warehouse.New(cfg.Warehouse.Path, log)
	if err != nil {
		return fmt.Errorf("opening warehouse: %w", err)
	}
	defer wh.Close()

	ctx := context.Background()
	if err := wh.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing schema: %w", err)
	}

	statuses, err := wh.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	renderStatuses(os.Stdout, statuses)
	return nil
}

func renderStatuses(w io.Writer, statuses []warehouse.TableStatus) {
	table := tablewriter.NewWriter(w)
	table.Header("Table", "Rows", "Last Extracted")
	for _, s := range statuses {
		last := ""
		if s.LastExtracted.Valid {
			last = s.LastExtracted.Time.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{s.Table, strconv.FormatInt(s.Rows, 10), last})
	}
	table.Render()
}
