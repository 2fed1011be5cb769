package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// fakeClient answers only the calls a test sets up
type fakeClient struct {
	API

	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	batchWrite func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	transact   func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return f.deleteItem(in)
}

func (f *fakeClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return f.batchWrite(in)
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return f.transact(in)
}

func newTestStore(client API) *Store {
	return NewStore(client, Config{TableName: "mindmap"}, zap.NewNop())
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func hasStringValue(values map[string]types.AttributeValue, want string) bool {
	for _, v := range values {
		if sv, ok := v.(*types.AttributeValueMemberS); ok && sv.Value == want {
			return true
		}
	}
	return false
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(c)}
	}
	return &types.TransactionCanceledException{Message: aws.String("cancelled"), CancellationReasons: reasons}
}

func TestStamps_SortAndRoundTrip(t *testing.T) {
	early := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(1500 * time.Microsecond)

	assert.Less(t, formatStamp(early), formatStamp(late))

	parsed, err := parseStamp(formatStamp(late))
	require.NoError(t, err)
	assert.True(t, late.Equal(parsed))

	legacy, err := parseStamp("2024-03-01T09:00:00Z")
	require.NoError(t, err)
	assert.True(t, early.Equal(legacy))

	_, err = parseStamp("yesterday")
	assert.Error(t, err)
}

func TestItems_Layout(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	detail := "by train"

	t.Run("Should index graphs by owner and creation time", func(t *testing.T) {
		item := newGraphItem(&entities.Graph{ID: "g1", OwnerID: "u1", Title: "Trip Plan", CreatedAt: created})

		assert.Equal(t, "GRAPH#g1", item.PK)
		assert.Equal(t, "META", item.SK)
		assert.Equal(t, "USER#u1", item.GSI1PK)
		assert.Equal(t, "GRAPH#"+formatStamp(created)+"#g1", item.GSI1SK)
	})

	t.Run("Should keep a node in its graph partition", func(t *testing.T) {
		node := &entities.Node{ID: "n1", GraphID: "g1", Title: "Start", Detail: &detail, X: 1.5, Y: -2, CreatedAt: created, UpdatedAt: created}
		item := newNodeItem(node)

		assert.Equal(t, "GRAPH#g1", item.PK)
		assert.Equal(t, "NODE#n1", item.SK)
		assert.Equal(t, "NODE#n1", item.GSI2PK)
		assert.Equal(t, "GRAPH#g1", item.GSI2SK)

		back, err := item.toEntity()
		require.NoError(t, err)
		assert.Equal(t, node, back)
	})

	t.Run("Should keep edge endpoints", func(t *testing.T) {
		edge := &entities.Edge{ID: "e1", GraphID: "g1", SourceNodeID: "n1", TargetNodeID: "n2", CreatedAt: created, UpdatedAt: created}
		item := newEdgeItem(edge)

		assert.Equal(t, "EDGE#e1", item.SK)
		back, err := item.toEntity()
		require.NoError(t, err)
		assert.Equal(t, edge, back)
	})
}

// locatedIn answers the GSI2 lookup of any node or edge with graphID
func locatedIn(graphID string) func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	return func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			{"GSI2SK": str(graphPK(graphID))},
		}}, nil
	}
}

func storedNode(n *entities.Node) map[string]types.AttributeValue {
	av, _ := attributevalue.MarshalMap(newNodeItem(n))
	return av
}

func TestNodeRepository_Update(t *testing.T) {
	ctx := context.Background()
	seen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	x := 50.0
	written := &entities.Node{ID: "n1", GraphID: "g1", Title: "Start", X: 50, CreatedAt: seen, UpdatedAt: seen.Add(time.Second)}

	t.Run("Should condition the write on the last seen stamp", func(t *testing.T) {
		var captured *dynamodb.UpdateItemInput
		client := &fakeClient{query: locatedIn("g1"), updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			captured = in
			return &dynamodb.UpdateItemOutput{Attributes: storedNode(written)}, nil
		}}

		node, err := newTestStore(client).Repositories().Nodes.Update(ctx, "n1", entities.NodePatch{X: &x}, &seen)

		require.NoError(t, err)
		require.NotNil(t, captured)
		assert.Equal(t, written, node)
		assert.Equal(t, nodeKey("g1", "n1"), captured.Key)
		assert.Contains(t, aws.ToString(captured.ConditionExpression), "attribute_exists")
		assert.True(t, hasStringValue(captured.ExpressionAttributeValues, formatStamp(seen)))
		assert.Equal(t, types.ReturnValueAllNew, captured.ReturnValues)
	})

	t.Run("Should set only the patched attributes", func(t *testing.T) {
		var captured *dynamodb.UpdateItemInput
		client := &fakeClient{query: locatedIn("g1"), updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			captured = in
			return &dynamodb.UpdateItemOutput{Attributes: storedNode(written)}, nil
		}}

		_, err := newTestStore(client).Repositories().Nodes.Update(ctx, "n1", entities.NodePatch{X: &x}, nil)
		require.NoError(t, err)

		names := make([]string, 0, len(captured.ExpressionAttributeNames))
		for _, name := range captured.ExpressionAttributeNames {
			names = append(names, name)
		}
		assert.ElementsMatch(t, []string{"PK", "UpdatedAt", "X"}, names)
		assert.NotContains(t, aws.ToString(captured.UpdateExpression), "REMOVE")
	})

	t.Run("Should require a later stamp than the stored one", func(t *testing.T) {
		var captured *dynamodb.UpdateItemInput
		client := &fakeClient{query: locatedIn("g1"), updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			captured = in
			return &dynamodb.UpdateItemOutput{Attributes: storedNode(written)}, nil
		}}

		_, err := newTestStore(client).Repositories().Nodes.Update(ctx, "n1", entities.NodePatch{}, nil)
		require.NoError(t, err)
		assert.Contains(t, aws.ToString(captured.ConditionExpression), " < ")
		assert.NotContains(t, aws.ToString(captured.ConditionExpression), " = ")
	})

	t.Run("Should retry past a stored stamp ahead of the clock", func(t *testing.T) {
		ahead := seen.Add(time.Hour)
		prev := entities.Clock
		entities.Clock = func() time.Time { return seen }
		t.Cleanup(func() { entities.Clock = prev })

		var stamps []string
		client := &fakeClient{query: locatedIn("g1"), updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			for _, v := range in.ExpressionAttributeValues {
				if sv, ok := v.(*types.AttributeValueMemberS); ok && sv.Value != formatStamp(ahead) {
					stamps = append(stamps, sv.Value)
				}
			}
			if len(stamps) == 1 {
				return nil, &types.ConditionalCheckFailedException{
					Message: aws.String("The conditional request failed"),
					Item:    map[string]types.AttributeValue{"PK": str("GRAPH#g1"), "UpdatedAt": str(formatStamp(ahead))},
				}
			}
			return &dynamodb.UpdateItemOutput{Attributes: storedNode(written)}, nil
		}}

		_, err := newTestStore(client).Repositories().Nodes.Update(ctx, "n1", entities.NodePatch{}, &ahead)

		require.NoError(t, err)
		require.Len(t, stamps, 2)
		assert.Equal(t, formatStamp(seen), stamps[0])
		assert.Equal(t, formatStamp(ahead.Add(time.Microsecond)), stamps[1])
	})

	t.Run("Should report a stale stamp as a conflict", func(t *testing.T) {
		client := &fakeClient{query: locatedIn("g1"), updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{
				Message: aws.String("The conditional request failed"),
				Item:    map[string]types.AttributeValue{"PK": str("GRAPH#g1"), "UpdatedAt": str(formatStamp(seen.Add(time.Minute)))},
			}
		}}

		_, err := newTestStore(client).Repositories().Nodes.Update(ctx, "n1", entities.NodePatch{X: &x}, &seen)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("Should report a vanished node as not found", func(t *testing.T) {
		client := &fakeClient{query: locatedIn("g1"), updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}}

		_, err := newTestStore(client).Repositories().Nodes.Update(ctx, "n1", entities.NodePatch{X: &x}, &seen)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestCreate_MapsCancellations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Should refuse a node for a missing graph", func(t *testing.T) {
		client := &fakeClient{transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled(conditionalFailed, "None")
		}}

		err := newTestStore(client).Repositories().Nodes.Create(ctx, &entities.Node{ID: "n1", GraphID: "g1", CreatedAt: now, UpdatedAt: now})
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("Should check a self-loop endpoint once", func(t *testing.T) {
		var items int
		client := &fakeClient{transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			items = len(in.TransactItems)
			return nil, cancelled("None", conditionalFailed, "None")
		}}

		edge := &entities.Edge{ID: "e1", GraphID: "g1", SourceNodeID: "n1", TargetNodeID: "n1", CreatedAt: now, UpdatedAt: now}
		err := newTestStore(client).Repositories().Edges.Create(ctx, edge)

		assert.Equal(t, 3, items)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("Should report an existing edge id as a conflict", func(t *testing.T) {
		client := &fakeClient{transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled("None", "None", "None", conditionalFailed)
		}}

		edge := &entities.Edge{ID: "e1", GraphID: "g1", SourceNodeID: "n1", TargetNodeID: "n2", CreatedAt: now, UpdatedAt: now}
		err := newTestStore(client).Repositories().Edges.Create(ctx, edge)
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestLookups(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report an unindexed id as not found", func(t *testing.T) {
		client := &fakeClient{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.Equal(t, "GSI2", aws.ToString(in.IndexName))
			return &dynamodb.QueryOutput{}, nil
		}}

		_, err := newTestStore(client).Repositories().Edges.GetWithGraph(ctx, "e404")
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("Should read the node from the table after locating it", func(t *testing.T) {
		stamp := formatStamp(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
		client := &fakeClient{
			query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
				return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
					{"GSI2PK": str("NODE#n1"), "GSI2SK": str("GRAPH#g1")},
				}}, nil
			},
			getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
				assert.True(t, aws.ToBool(in.ConsistentRead))
				if in.Key["SK"].(*types.AttributeValueMemberS).Value == metaSK {
					return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
						"GraphID": str("g1"), "OwnerID": str("u1"), "Title": str("Trip Plan"), "CreatedAt": str(stamp),
					}}, nil
				}
				return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
					"NodeID": str("n1"), "GraphID": str("g1"), "Title": str("Start"),
					"X":         &types.AttributeValueMemberN{Value: "0"},
					"Y":         &types.AttributeValueMemberN{Value: "0"},
					"CreatedAt": str(stamp), "UpdatedAt": str(stamp),
				}}, nil
			},
		}

		got, err := newTestStore(client).Repositories().Nodes.GetWithGraph(ctx, "n1")

		require.NoError(t, err)
		assert.Equal(t, "Start", got.Node.Title)
		assert.Equal(t, "u1", got.Graph.OwnerID)
	})
}

func TestGraphRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delete children before the graph", func(t *testing.T) {
		var order []string
		var batched int
		client := &fakeClient{
			query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
				assert.True(t, aws.ToBool(in.ConsistentRead))
				return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
					{"PK": str("GRAPH#g1"), "SK": str("EDGE#e1")},
					{"PK": str("GRAPH#g1"), "SK": str("META")},
					{"PK": str("GRAPH#g1"), "SK": str("NODE#n1")},
				}}, nil
			},
			batchWrite: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
				order = append(order, "children")
				batched = len(in.RequestItems["mindmap"])
				return &dynamodb.BatchWriteItemOutput{}, nil
			},
			deleteItem: func(in *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
				order = append(order, "graph")
				assert.Equal(t, graphKey("g1"), in.Key)
				return &dynamodb.DeleteItemOutput{}, nil
			},
		}

		require.NoError(t, newTestStore(client).Repositories().Graphs.Delete(ctx, "g1"))
		assert.Equal(t, []string{"children", "graph"}, order)
		assert.Equal(t, 2, batched)
	})

	t.Run("Should report a missing graph", func(t *testing.T) {
		client := &fakeClient{query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		}}

		err := newTestStore(client).Repositories().Graphs.Delete(ctx, "g404")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestNodeRepository_DeleteCascadesInOneTransaction(t *testing.T) {
	ctx := context.Background()
	var transacted []types.TransactWriteItem
	client := &fakeClient{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			if aws.ToString(in.IndexName) != "" {
				return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
					{"GSI2PK": str("NODE#n1"), "GSI2SK": str("GRAPH#g1")},
				}}, nil
			}
			assert.NotNil(t, in.FilterExpression)
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				{"PK": str("GRAPH#g1"), "SK": str("EDGE#e1")},
				{"PK": str("GRAPH#g1"), "SK": str("EDGE#e2")},
			}}, nil
		},
		transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			transacted = in.TransactItems
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}

	require.NoError(t, newTestStore(client).Repositories().Nodes.Delete(ctx, "n1"))
	require.Len(t, transacted, 3)
	assert.Equal(t, nodeKey("g1", "n1"), transacted[0].Delete.Key)
	assert.Equal(t, aws.ToString(mustExist), aws.ToString(transacted[0].Delete.ConditionExpression))
}
