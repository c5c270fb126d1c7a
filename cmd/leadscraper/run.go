package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/lead-scraper/internal/usecase"
)

var (
	searchSince int64
	scrapeExit  bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through a visible browser and capture workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithSignals(cmd, func(ctx context.Context, a *app) error {
			// Capture without the engine so no scheduled pass starts.
			workspaces, err := a.capture.Capture(ctx, a.creds)
			if err != nil {
				return err
			}
			if len(workspaces) == 0 {
				return usecase.ErrNoWorkspaces
			}
			return printJSON(cmd.OutOrStdout(), workspaces)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search one keyword across all known workspaces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithSignals(cmd, func(ctx context.Context, a *app) error {
			var since *int64
			if cmd.Flags().Changed("since") {
				since = &searchSince
			}
			results, err := a.engine.Search(ctx, a.creds, args[0], since)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		})
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one full scrape pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithSignals(cmd, func(ctx context.Context, a *app) error {
			summary := a.engine.ManualScrape(ctx, a.creds)
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if scrapeExit && !summary.Success {
				return errors.New(summary.Error)
			}
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().Int64Var(&searchSince, "since", 0, "Unix seconds; stop at the first older result")
	scrapeCmd.Flags().BoolVar(&scrapeExit, "fail", false, "Exit non-zero when any workspace fails")
}

func runWithSignals(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return withApp(ctx, fn)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	return nil
}
