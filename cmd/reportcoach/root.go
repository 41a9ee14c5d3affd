package main

import (
	"github.com/spf13/cobra"

	"github.com/legojeon/report-coach/internal/config"
	"github.com/legojeon/report-coach/internal/version"
)

func newRootCmd() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "reportcoach",
		Short: "Semantic search over research report passages",
		Long: `reportcoach retrieves and ranks passages of past research reports.

A query is summarized by a text-generation model, embedded, matched against
the vector index and reranked by title similarity, section priority,
keyword and award boosts.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("reportcoach {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "Config environment (config/<env>.yaml)")

	cmd.AddCommand(
		newServeCmd(&env),
		newIngestCmd(&env),
		newSearchCmd(&env),
		newVersionCmd(),
	)
	return cmd
}
