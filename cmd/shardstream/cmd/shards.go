package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

var shardsCmd = &cobra.Command{
	Use:   "shards",
	Short: "Manage shards in the storage engine",
}

var shardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all shards",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := cmd.Context()
		engine := openEngine(ctx, cfg)
		defer func() { _ = engine.Close() }()

		catalog := store.NewCatalog(engine, logging.Default())
		shards, err := catalog.List(ctx)
		if err != nil {
			logging.Default().WithError(err).Fatal("List shards")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKEYSPACE\tCREATED")
		for _, shard := range shards {
			fmt.Fprintf(w, "%s\t%d\t%s\n", shard.Name, shard.Keyspace, shard.CreatedAt.Format(time.RFC3339))
		}
		_ = w.Flush()
	},
}

var shardsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new shard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := cmd.Context()
		engine := openEngine(ctx, cfg)
		defer func() { _ = engine.Close() }()

		catalog := store.NewCatalog(engine, logging.Default())
		meta, err := catalog.Create(ctx, args[0])
		if err != nil {
			logging.Default().WithError(err).Fatal("Create shard")
		}
		fmt.Printf("created shard %s (keyspace %d)\n", meta.Name, meta.Keyspace)
	},
}

var shardsDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a shard and delete its data",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := cmd.Context()
		engine := openEngine(ctx, cfg)
		defer func() { _ = engine.Close() }()

		catalog := store.NewCatalog(engine, logging.Default())
		if err := catalog.Drop(ctx, args[0]); err != nil {
			logging.Default().WithError(err).Fatal("Drop shard")
		}
		fmt.Printf("dropped shard %s\n", args[0])
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(shardsCmd)
	shardsCmd.AddCommand(shardsListCmd)
	shardsCmd.AddCommand(shardsCreateCmd)
	shardsCmd.AddCommand(shardsDropCmd)
}
