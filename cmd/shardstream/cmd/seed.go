package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

const seedApplyChunk = 1000

type seedRecord struct {
	Key   uint64 `json:"key"`
	Value []byte `json:"value"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load NDJSON records into a shard",
	Long: `Reads newline-delimited JSON records of the form {"key": <number>, "value": "<base64>"}
from a file or stdin and writes them into the given shard.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := cmd.Context()
		log := logging.Default()

		shardName, _ := cmd.Flags().GetString("shard")
		fileName, _ := cmd.Flags().GetString("file")

		var in io.Reader = os.Stdin
		if fileName != "" {
			f, err := os.Open(fileName)
			if err != nil {
				log.WithError(err).Fatal("Open input file")
			}
			defer func() { _ = f.Close() }()
			in = f
		}

		engine := openEngine(ctx, cfg)
		defer func() { _ = engine.Close() }()

		catalog := store.NewCatalog(engine, log)
		meta, err := catalog.Get(ctx, shardName)
		if err != nil {
			log.WithError(err).Fatal("Resolve shard")
		}

		var records []store.Record
		var total int
		flush := func() {
			if len(records) == 0 {
				return
			}
			if err := engine.Apply(ctx, records); err != nil {
				log.WithError(err).Fatal("Apply records")
			}
			total += len(records)
			records = records[:0]
		}

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec seedRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				log.WithError(err).Fatal("Parse input record")
			}
			records = append(records, store.Record{
				Key:   store.DataKey(meta.Keyspace, rec.Key),
				Value: rec.Value,
			})
			if len(records) >= seedApplyChunk {
				flush()
			}
		}
		if err := scanner.Err(); err != nil {
			log.WithError(err).Fatal("Read input")
		}
		flush()

		fmt.Printf("seeded %d records into shard %s\n", total, shardName)
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("shard", "", "shard to load records into")
	seedCmd.Flags().String("file", "", "input file (default stdin)")
	_ = seedCmd.MarkFlagRequired("shard")
}
