package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shardstream/shardstream/pkg/dump"
	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Stream a consistent snapshot of one or more shards",
	Long: `Dumps all records of the given shards from a single storage snapshot.
Batches are written to stdout, or as one NDJSON file per batch when --out is
given. Writes happening concurrently with the dump are not observed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := cmd.Context()
		log := logging.Default()

		shards, _ := cmd.Flags().GetStringSlice("shards")
		outDir, _ := cmd.Flags().GetString("out")
		batchSize, _ := cmd.Flags().GetUint64("batch-size")
		parallelism, _ := cmd.Flags().GetUint64("parallelism")
		prefetch, _ := cmd.Flags().GetUint64("prefetch")

		options := cfg.DumpOptions()
		options.Shards = shards
		if batchSize > 0 {
			options.BatchSize = batchSize
		}
		if parallelism > 0 {
			options.Parallelism = parallelism
		}
		if prefetch > 0 {
			options.PrefetchCount = prefetch
		}

		engine := openEngine(ctx, cfg)
		defer func() { _ = engine.Close() }()
		catalog := store.NewCatalog(engine, log)

		dumpCtx, err := dump.NewContext(ctx, engine, catalog, "cli", options, "cli", "local", log)
		if err != nil {
			log.WithError(err).Fatal("Create dump context")
		}
		defer dumpCtx.Close()

		if outDir != "" {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				log.WithError(err).Fatal("Create output directory")
			}
		}

		var batches, bytes uint64
		var lastBatch *uint64
		for {
			batch, err := dumpCtx.Next(batches+1, lastBatch)
			if err != nil {
				log.WithError(err).Fatal("Dump failed")
			}
			if batch == nil {
				// the exhausted call above already retired the final batch
				break
			}
			if err := writeBatch(outDir, batch); err != nil {
				log.WithError(err).Fatal("Write batch")
			}
			batches++
			bytes += uint64(len(batch.Content))
			id := batch.ID
			lastBatch = &id
		}
		log.WithFields(logging.Fields{
			"batches":      batches,
			"bytes":        bytes,
			"block_counts": dumpCtx.BlockCounts(),
		}).Info("dump complete")
	},
}

func writeBatch(outDir string, batch *dump.Batch) error {
	if outDir == "" {
		_, err := os.Stdout.Write(batch.Content)
		return err
	}
	name := filepath.Join(outDir, fmt.Sprintf("%s.%06d.ndjson", batch.Shard, batch.ID))
	return os.WriteFile(name, batch.Content, 0o644)
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringSlice("shards", nil, "shards to dump")
	dumpCmd.Flags().String("out", "", "directory to write batch files to (default stdout)")
	dumpCmd.Flags().Uint64("batch-size", 0, "maximum batch content size in bytes")
	dumpCmd.Flags().Uint64("parallelism", 0, "number of dump workers")
	dumpCmd.Flags().Uint64("prefetch", 0, "batches to prefetch per worker")
	_ = dumpCmd.MarkFlagRequired("shards")
}
