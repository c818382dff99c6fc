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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/warehouse"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Creates the warehouse file and its tables",
	Long:  `Safe to run repeatedly. Existing tables and their rows are left alone.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper(viper.GetViper())
		err := setupWarehouse(cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func setupWarehouse(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logger()

	wh, err := warehouse.New(cfg.Warehouse.Path, log)
	if err != nil {
		return fmt.Errorf("opening warehouse: %w", err)
	}
	defer wh.Close()

	if err := wh.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	fmt.Printf("Warehouse ready at %s\n", cfg.Warehouse.Path)
	return nil
}
