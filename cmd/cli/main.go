package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerbook",
		Short:         "Ledgerbook CLI tool",
		Long:          `A command line interface for loan schedules and balance materialization.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the Ledgerbook API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(balancesCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(syncAllCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

func balancesCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "balances <account-id>",
		Short: "List materialized daily balances of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if from != "" {
				query.Set("from", from)
			}
			if to != "" {
				query.Set("to", to)
			}
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/balances"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			return doRequest(cmd.OutOrStdout(), http.MethodGet, path, nil)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	return cmd
}

func syncCmd() *cobra.Command {
	var strategy, windowStart string
	var async bool

	cmd := &cobra.Command{
		Use:   "sync <account-id>",
		Short: "Rebuild the balance series of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"strategy": strategy, "async": async}
			if windowStart != "" {
				body["window_start"] = windowStart
			}
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/balances/sync"
			return doRequest(cmd.OutOrStdout(), http.MethodPost, path, body)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "forward", "Calculation strategy: forward or reverse")
	cmd.Flags().StringVar(&windowStart, "window-start", "", "Recalculate from this day only (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the sync and return immediately")
	return cmd
}

func syncAllCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Rebuild balances of every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(cmd.OutOrStdout(), http.MethodPost, "/api/v1/balances/sync-all",
				map[string]any{"strategy": strategy})
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "forward", "Calculation strategy: forward or reverse")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [account-id]",
		Short: "Compare stored balances with the materialized series",
		Long:  `Without an account id the full reconciliation report is printed.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/reconciliation/report"
			if len(args) == 1 {
				path = "/api/v1/accounts/" + url.PathEscape(args[0]) + "/reconciliation"
			}
			return doRequest(cmd.OutOrStdout(), http.MethodGet, path, nil)
		},
	}
}

// doRequest calls the API and pretty-prints the JSON response.
func doRequest(w io.Writer, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, strings.TrimRight(baseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed (status: %d): %s", resp.StatusCode, truncate(strings.TrimSpace(string(raw)), 200))
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return printJSON(w, decoded)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
