package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/repository/memindex"
)

type ingestOptions struct {
	dir     string
	batch   int
	workers int
	reset   bool
}

func newIngestCmd(env *string) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed report chunk files and write them into the vector index",
		Long: `Loads every "<number>_*.json" chunk file in the directory, embeds the
passages in batches and upserts them. Re-running over the same files
overwrites the same chunk IDs. --reset drops the index first, which is
needed after switching to an embedding model of another dimension.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, *env, opts)
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Chunk directory (default: ingest.dir)")
	cmd.Flags().IntVar(&opts.batch, "batch", 0, "Chunks per embedding batch (default: ingest.batch_size)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent batches (default: ingest.workers)")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Drop the vector index before ingesting")
	return cmd
}

func runIngest(cmd *cobra.Command, env string, opts ingestOptions) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.dir != "" {
		a.cfg.Ingest.Dir = opts.dir
	}
	if opts.batch > 0 {
		a.cfg.Ingest.BatchSize = opts.batch
	}
	if opts.workers > 0 {
		a.cfg.Ingest.Workers = opts.workers
	}
	if a.cfg.Ingest.Dir == "" {
		return errors.New("no chunk directory: pass --dir or set ingest.dir")
	}

	svc, idx, err := a.ingestService()
	if err != nil {
		return err
	}
	if opts.reset {
		if err := idx.Reset(ctx); err != nil {
			return fmt.Errorf("reset vector index: %w", err)
		}
		a.logger.Info("Vector index reset", zap.String("driver", a.cfg.VectorIndex.Driver))
	}
	res, err := svc.Run(ctx, a.cfg.Ingest.Dir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", a.cfg.Ingest.Dir, err)
	}

	if err := saveSnapshot(a, idx); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res) //nolint:wrapcheck // stdout
}

// saveSnapshot persists the in-memory index so serve can load it.
func saveSnapshot(a *app, idx vectorIndex) error {
	mem, ok := idx.(*memindex.Index)
	if !ok || a.cfg.VectorIndex.MemoryPath == "" {
		return nil
	}
	if err := mem.Save(a.cfg.VectorIndex.MemoryPath); err != nil {
		return fmt.Errorf("save memory index: %w", err)
	}
	a.logger.Info("Memory index saved", zap.String("path", a.cfg.VectorIndex.MemoryPath))
	return nil
}
