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
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmorelli/spotify-etl/internal/config"
	"github.com/nmorelli/spotify-etl/internal/pipeline"
	"github.com/nmorelli/spotify-etl/internal/warehouse"
)

var emailCmd = &cobra.Command{
	Use:   "email <address>",
	Short: "Emails the current warehouse row counts",
	Long:  `Requires sendgrid_api_key and from to be set.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper(viper.GetViper())
		err := emailStatus(cfg, args[0])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(emailCmd)
}

func emailStatus(cfg config.Config, to string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logger()

	wh, err := warehouse.New(cfg.Warehouse.Path, log)
	if err != nil {
		return fmt.Errorf("opening warehouse: %w", err)
	}
	defer wh.Close()

	statuses, err := wh.Status(context.Background())
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		last := ""
		if s.LastExtracted.Valid {
			last = s.LastExtracted.Time.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{s.Table, fmt.Sprintf("%d", s.Rows), last})
	}

	subject := fmt.Sprintf("Spotify warehouse status %s", time.Now().Format("2006-01-02"))
	body := buildEmailBody([]string{"Table", "Rows", "Last Extracted"}, rows)
	if err := sendHTMLEmail(cfg, to, subject, body); err != nil {
		return err
	}

	fmt.Printf("Sent status to %s\n", to)
	return nil
}

func sendSummaryEmail(cfg config.Config, to string, summary pipeline.Summary) error {
	subject := fmt.Sprintf("Spotify pipeline run %s", time.Now().Format("2006-01-02"))
	body := buildEmailBody([]string{"Collection", "Rows"}, summary.Rows())
	return sendHTMLEmail(cfg, to, subject, body)
}

func sendHTMLEmail(cfg config.Config, to string, subject string, body string) error {
	if cfg.Email.SendgridKey == "" || cfg.Email.From == "" {
		return fmt.Errorf("sendgrid_api_key and from must be set in order to send emails")
	}

	from := mail.NewEmail("spotify-etl", cfg.Email.From)
	recipient := mail.NewEmail(to, to)
	message := mail.NewSingleEmail(from, subject, recipient, body, body)
	client := sendgrid.NewSendClient(cfg.Email.SendgridKey)
	_, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendEmail: %w", err)
	}
	return nil
}

func buildEmailBody(headers []string, rows [][]string) string {
	out := `
<html>
  <head>
<style>
td {
  padding: 0.1em 0.2em;
}
table, th, td {
  border: 1px solid black;
  border-collapse: collapse;
}
</style>
  </head>
  <body>
    <table>
      <thead>
        <tr>
`
	for _, header := range headers {
		out += fmt.Sprintf("<th>%s</th>", header)
	}
	out += `        </tr>
      </thead>
      <tbody>
`
	for _, row := range rows {
		out += "<tr>\n"
		for _, column := range row {
			out += fmt.Sprintf("<td>%s</td>\n", column)
		}
		out += "</tr>\n"
	}
	out += `      </tbody>
    </table>
  </body>
</html>
`
	return out
}
