package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/internal/config"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/storage/dynamo"
	"github.com/jacentio/lattice/storage/sqlstore"
)

func newProvisionCmd(a *app) *cobra.Command {
	var opts dynamo.ProvisionOptions

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the tables of the configured entities on the storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			descs, err := cfg.Descriptors()
			if err != nil {
				return err
			}
			var tables []storage.TableDef
			for _, d := range descs {
				tables = append(tables, d.Tables()...)
			}
			return provision(cmd.Context(), cfg, tables, opts, logger)
		},
	}

	cmd.Flags().BoolVar(&opts.Streams, "streams", false, "Enable OLD_IMAGE streams on primary tables (dynamodb)")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 2*time.Minute, "Maximum wait for created tables to become active (dynamodb, 0 disables)")
	return cmd
}

func provision(ctx context.Context, cfg config.AppConfig, tables []storage.TableDef, opts dynamo.ProvisionOptions, logger *zap.Logger) error {
	switch cfg.Backend {
	case config.BackendDynamoDB:
		client, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return err
		}
		return dynamo.New(client, logger).Provision(ctx, tables, opts)
	case config.BackendSQLite:
		s, err := sqlstore.Open(cfg.SQLitePath, logger)
		if err != nil {
			return err
		}
		logger.Info("row table ready", zap.Int("tables", len(tables)))
		return s.Close()
	default:
		return fmt.Errorf("backend %q has nothing to provision", cfg.Backend)
	}
}

func newDynamoClient(ctx context.Context, cfg config.AppConfig) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.DynamoRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.DynamoRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	}), nil
}
