package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile    string
	logLevel   string
	credential string
)

var rootCmd = &cobra.Command{
	Use:   "leadscraper",
	Short: "Incremental Slack search scraper",
	Long: `leadscraper drives a persistent browser profile through Slack search,
turns matching messages into leads and submits them to the collaborator API.

Commands:
  serve  - Run the control API and the hourly scheduler
  login  - Open a visible browser, wait for sign-in and capture workspaces
  search - Run one keyword across all known workspaces and print the results
  scrape - Run one full scrape pass and print the summary`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&credential, "credential", "", "Collaborator API credential (or set API_CREDENTIAL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(scrapeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
