package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shardstream/shardstream/pkg/config"
	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
	_ "github.com/shardstream/shardstream/pkg/store/pebble"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shardstream",
	Short: "shardstream streams consistent snapshots of sharded key/value data",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var initOnce sync.Once

//nolint:gochecknoinits
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.shardstream/config.yaml)")
}

func loadConfig() *config.Config {
	initOnce.Do(initConfig)
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("Failed to load config file", err)
		os.Exit(1)
	}
	cfg.SetupLogging()
	return cfg
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	logger := logging.Default().WithField("phase", "startup")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath(path.Join(getHomeDir(), ".shardstream"))
		viper.AddConfigPath("/etc/shardstream")
	}

	viper.SetEnvPrefix("SHARDSTREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // support nested config
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	var errFileNotFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &errFileNotFound) && !os.IsNotExist(err) {
		logger.WithError(err).Fatal("Failed to read config file")
	}
}

// openEngine opens the configured storage engine, expanding a leading ~ in
// the pebble path.
func openEngine(ctx context.Context, cfg *config.Config) store.Engine {
	params := cfg.StoreParams()
	if params.Pebble != nil && !params.Pebble.InMemory {
		expanded, err := homedir.Expand(params.Pebble.Path)
		if err != nil {
			logging.Default().WithError(err).Fatal("Expand store path")
		}
		params.Pebble.Path = expanded
	}
	engine, err := store.Open(ctx, params)
	if err != nil {
		logging.Default().WithError(err).Fatal("Open storage engine")
	}
	return engine
}

func getHomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		fmt.Println("Get home directory -", err)
		os.Exit(1)
	}
	return home
}
