// Command lattice renders DDL for configured entities and provisions their
// tables on a storage backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/internal/config"
	"github.com/jacentio/lattice/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:          "lattice",
		Short:        "Entity store schema tooling",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Path to configuration file with entity definitions")
	flags.String("log-level", a.v.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("backend", a.v.GetString("storage.backend"), "Storage backend (dynamodb, sqlite, memory)")
	flags.String("region", a.v.GetString("dynamodb.region"), "AWS region for DynamoDB")
	flags.String("endpoint", a.v.GetString("dynamodb.endpoint"), "DynamoDB endpoint override, e.g. DynamoDB Local")
	flags.String("sqlite-path", a.v.GetString("sqlite.path"), "SQLite database path")

	a.bindFlag(rootCmd, "log.level", "log-level")
	a.bindFlag(rootCmd, "storage.backend", "backend")
	a.bindFlag(rootCmd, "dynamodb.region", "region")
	a.bindFlag(rootCmd, "dynamodb.endpoint", "endpoint")
	a.bindFlag(rootCmd, "sqlite.path", "sqlite-path")

	rootCmd.AddCommand(newDDLCmd(a), newProvisionCmd(a))
	return rootCmd
}

func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := a.v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (a *app) initConfig() error {
	if a.cfgFile == "" {
		return nil
	}
	a.v.SetConfigFile(a.cfgFile)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", a.cfgFile, err)
	}
	return nil
}

// load returns the application configuration and a logger for it.
func (a *app) load() (config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return cfg, logger, nil
}
