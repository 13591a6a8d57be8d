package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/shardstream/shardstream/pkg/dump"
	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

var ErrBadConfiguration = errors.New("bad configuration")

const (
	DefaultLoggingFormat        = "text"
	DefaultLoggingLevel         = "info"
	DefaultLoggingOutput        = "-"
	DefaultLoggingFileMaxSizeMB = 100
	DefaultLoggingFilesKeep     = 5

	DefaultStoreType       = "pebble"
	DefaultStorePebblePath = "~/data/shardstream"

	DefaultDumpMaxContexts = dump.DefaultMaxContexts
	DefaultDumpGCInterval  = dump.DefaultGCInterval
)

type configuration struct {
	Logging struct {
		Format        string   `mapstructure:"format"`
		Level         string   `mapstructure:"level"`
		Output        []string `mapstructure:"output"`
		FileMaxSizeMB int      `mapstructure:"file_max_size_mb"`
		FilesKeep     int      `mapstructure:"files_keep"`
	} `mapstructure:"logging"`
	Store struct {
		Type   string `mapstructure:"type"`
		Pebble struct {
			Path           string `mapstructure:"path"`
			InMemory       bool   `mapstructure:"in_memory"`
			CacheSizeBytes int64  `mapstructure:"cache_size_bytes"`
			EnableLogging  bool   `mapstructure:"enable_logging"`
		} `mapstructure:"pebble"`
	} `mapstructure:"store"`
	Dump struct {
		BatchSize     uint64        `mapstructure:"batch_size"`
		PrefetchCount uint64        `mapstructure:"prefetch_count"`
		Parallelism   uint64        `mapstructure:"parallelism"`
		TTL           float64       `mapstructure:"ttl"`
		MaxContexts   int           `mapstructure:"max_contexts"`
		GCInterval    time.Duration `mapstructure:"gc_interval"`
	} `mapstructure:"dump"`
}

type Config struct {
	values configuration
}

func setDefaults() {
	viper.SetDefault("logging.format", DefaultLoggingFormat)
	viper.SetDefault("logging.level", DefaultLoggingLevel)
	viper.SetDefault("logging.output", DefaultLoggingOutput)
	viper.SetDefault("logging.file_max_size_mb", DefaultLoggingFileMaxSizeMB)
	viper.SetDefault("logging.files_keep", DefaultLoggingFilesKeep)

	viper.SetDefault("store.type", DefaultStoreType)
	viper.SetDefault("store.pebble.path", DefaultStorePebblePath)

	viper.SetDefault("dump.batch_size", dump.DefaultBatchSize)
	viper.SetDefault("dump.prefetch_count", dump.DefaultPrefetchCount)
	viper.SetDefault("dump.parallelism", dump.DefaultParallelism)
	viper.SetDefault("dump.ttl", dump.DefaultTTL)
	viper.SetDefault("dump.max_contexts", DefaultDumpMaxContexts)
	viper.SetDefault("dump.gc_interval", DefaultDumpGCInterval)
}

func NewConfig() (*Config, error) {
	c := &Config{}
	setDefaults()
	err := viper.UnmarshalExact(&c.values, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","))))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetupLogging applies the logging section to the process-wide logger.
func (c *Config) SetupLogging() {
	logging.SetOutputFormat(c.values.Logging.Format)
	logging.SetOutputs(c.values.Logging.Output, c.values.Logging.FileMaxSizeMB, c.values.Logging.FilesKeep)
	logging.SetLevel(c.values.Logging.Level)
}

// StoreParams returns the storage driver parameters.
func (c *Config) StoreParams() store.Params {
	return store.Params{
		Type: c.values.Store.Type,
		Pebble: &store.PebbleParams{
			Path:           c.values.Store.Pebble.Path,
			InMemory:       c.values.Store.Pebble.InMemory,
			CacheSizeBytes: c.values.Store.Pebble.CacheSizeBytes,
			EnableLogging:  c.values.Store.Pebble.EnableLogging,
		},
	}
}

// DumpOptions returns the configured dump defaults; shards are always
// provided per request.
func (c *Config) DumpOptions() dump.Options {
	return dump.Options{
		BatchSize:     c.values.Dump.BatchSize,
		PrefetchCount: c.values.Dump.PrefetchCount,
		Parallelism:   c.values.Dump.Parallelism,
		TTL:           c.values.Dump.TTL,
	}
}

func (c *Config) DumpMaxContexts() int {
	return c.values.Dump.MaxContexts
}

func (c *Config) DumpGCInterval() time.Duration {
	return c.values.Dump.GCInterval
}

// ToLoggerFields flattens the interesting parts of the configuration for a
// startup log line.
func (c *Config) ToLoggerFields() logging.Fields {
	return logging.Fields{
		"store_type":       c.values.Store.Type,
		"store_path":       c.values.Store.Pebble.Path,
		"dump_batch_size":  c.values.Dump.BatchSize,
		"dump_parallelism": c.values.Dump.Parallelism,
		"logging_level":    strings.ToLower(c.values.Logging.Level),
	}
}
