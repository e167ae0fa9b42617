package main

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the reference material used to ground lessons",
}

var knowledgeIndexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index markdown reference material (default: configured knowledge dir)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{}
		if len(args) == 1 {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			body["dir"] = dir
		}

		var result knowledge.IndexResult
		if err := newClient(cmd).do(cmd.Context(), http.MethodPost, "/v1/knowledge/index", body, &result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Found %d documents: %d indexed (%d sections), %d unchanged, %d failed\n",
			result.Found, result.Indexed, result.Sections, result.Skipped, result.Errors)
		return nil
	},
}

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats knowledge.Stats
		if err := newClient(cmd).do(cmd.Context(), http.MethodGet, "/v1/knowledge/stats", nil, &stats); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Topics:   %d\nSources:  %d\nSections: %d\n", stats.Topics, stats.Sources, stats.Sections)
		return nil
	},
}

func init() {
	knowledgeCmd.AddCommand(knowledgeIndexCmd, knowledgeStatsCmd)
}
