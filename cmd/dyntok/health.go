package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/go-dyntok/internal/server"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running dyntok server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			target := addr
			if target == "" {
				target = cfg.Server.ListenAddr
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			health, err := server.ProbeHTTP(ctx, target)
			if err != nil {
				return fmt.Errorf("probe %s: %w", target, err)
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(health)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", health.Status, health.Version)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Server address to probe (default: server.listen_addr)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Give up after this long")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the health response as JSON")

	return cmd
}
