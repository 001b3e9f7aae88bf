package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chatpsy %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newHealthCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health-check",
		Short: "Check that a running gateway answers /health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			return performHealthCheck(cmd, "http://"+cfg.Server.Addr()+"/health")
		},
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(cmd *cobra.Command, url string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: HTTP %d", resp.StatusCode)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Health check passed")
	return nil
}
