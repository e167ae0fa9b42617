package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/app"
	"github.com/felixgeelhaar/mentora/internal/config"
	mcpserver "github.com/felixgeelhaar/mentora/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		mentoraDir, err := config.EnsureMentoraDir()
		if err != nil {
			return fmt.Errorf("ensure mentora dir: %w", err)
		}
		cfg, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, mentoraDir)
		if err != nil {
			return fmt.Errorf("build services: %w", err)
		}
		defer a.Close()

		srv := mcpserver.NewServer(mcpserver.Config{
			OwnerID:    ownerID(cmd),
			Questions:  a.Questions,
			Interviews: a.Interviews,
			Study:      a.Study,
		})
		return srv.ServeStdio(ctx)
	},
}
