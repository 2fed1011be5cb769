// Package dynamodb stores graphs, nodes and edges in a single DynamoDB table.
//
// Layout:
//
//	graph  PK=GRAPH#<id>  SK=META       GSI1PK=USER#<owner>  GSI1SK=GRAPH#<createdAt>#<id>
//	node   PK=GRAPH#<gid> SK=NODE#<id>  GSI2PK=NODE#<id>     GSI2SK=GRAPH#<gid>
//	edge   PK=GRAPH#<gid> SK=EDGE#<id>  GSI2PK=EDGE#<id>     GSI2SK=GRAPH#<gid>
//
// A graph and everything in it share one partition. GSI2 resolves a bare node
// or edge id to that partition; the item itself is then read consistently from
// the table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/ports"
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Config names the table and its indexes
type Config struct {
	TableName     string
	GSI1IndexName string
	GSI2IndexName string
}

// Store is a DynamoDB backend
type Store struct {
	client API
	cfg    Config
	logger *zap.Logger
}

// NewStore creates a store over an existing client
func NewStore(client API, cfg Config, logger *zap.Logger) *Store {
	if cfg.GSI1IndexName == "" {
		cfg.GSI1IndexName = "GSI1"
	}
	if cfg.GSI2IndexName == "" {
		cfg.GSI2IndexName = "GSI2"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, cfg: cfg, logger: logger}
}

// Repositories exposes the store through the repository ports
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Graphs: &GraphRepository{s: s},
		Nodes:  &NodeRepository{s: s},
		Edges:  &EdgeRepository{s: s},
		Ping:   s.Ping,
		Close:  func() error { return nil },
	}
}

// Ping checks the table is reachable
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.cfg.TableName),
	})
	return err
}

// CreateTable creates the table with both indexes and waits until it is
// active. An existing table is left as is.
func (s *Store) CreateTable(ctx context.Context) error {
	attr := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	index := func(name, pk, sk string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.cfg.TableName),
		AttributeDefinitions: []types.AttributeDefinition{
			attr("PK"), attr("SK"), attr("GSI1PK"), attr("GSI1SK"), attr("GSI2PK"), attr("GSI2SK"),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			index(s.cfg.GSI1IndexName, "GSI1PK", "GSI1SK"),
			index(s.cfg.GSI2IndexName, "GSI2PK", "GSI2SK"),
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			s.logger.Info("Table already exists", zap.String("table", s.cfg.TableName))
			return nil
		}
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.cfg.TableName)}, 2*time.Minute); err != nil {
		return fmt.Errorf("table did not become active: %w", err)
	}

	s.logger.Info("Table created", zap.String("table", s.cfg.TableName))
	return nil
}
