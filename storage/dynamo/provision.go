package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/storage"
)

// ProvisionOptions controls table creation.
type ProvisionOptions struct {
	// Streams enables an OLD_IMAGE stream on primary tables so that deletions
	// can be observed by stream handlers.
	Streams bool

	// Wait, when positive, is the maximum time to wait for each created
	// table to become active.
	Wait time.Duration
}

// Provision creates the tables that do not exist yet. Every table uses
// on-demand billing with string keys; join tables get a global secondary
// index keyed by the related identifier. Existing tables are left as is.
func (e *Executor) Provision(ctx context.Context, tables []storage.TableDef, opts ProvisionOptions) error {
	for _, t := range tables {
		exists, err := e.tableExists(ctx, t.Name)
		if err != nil {
			return err
		}
		if exists {
			e.logger.Debug("table exists", zap.String("table", t.Name))
			continue
		}

		if _, err := e.client.CreateTable(ctx, createTableInput(t, opts)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		e.logger.Info("created table",
			zap.String("table", t.Name),
			zap.Stringer("role", t.Role),
		)

		if opts.Wait > 0 {
			waiter := dynamodb.NewTableExistsWaiter(e.client)
			if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.Name)}, opts.Wait); err != nil {
				return fmt.Errorf("wait for table %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (e *Executor) tableExists(ctx context.Context, name string) (bool, error) {
	_, err := e.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		return true, nil
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("describe table %s: %w", name, err)
}

func createTableInput(t storage.TableDef, opts ProvisionOptions) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(t.Name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(t.Partition.Name), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(t.Partition.Name), KeyType: types.KeyTypeHash},
		},
	}

	if t.Sort != nil {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(t.Sort.Name),
			AttributeType: types.ScalarAttributeTypeS,
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(t.Sort.Name),
			KeyType:       types.KeyTypeRange,
		})

		if t.ReverseIndex != "" {
			input.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{{
				IndexName: aws.String(t.ReverseIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(t.Sort.Name), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(t.Partition.Name), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			}}
		}
	}

	if opts.Streams && t.Role == storage.RolePrimary {
		input.StreamSpecification = &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeOldImage,
		}
	}
	return input
}
