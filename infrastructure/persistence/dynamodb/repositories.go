package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

const (
	// DynamoDB limits
	batchSize         = 25
	maxTransactItems  = 100
	maxBatchRetries   = 3
	maxStampRetries   = 3
	conditionalFailed = "ConditionalCheckFailed"
)

var (
	mustExist    = aws.String("attribute_exists(PK)")
	mustNotExist = aws.String("attribute_not_exists(PK)")
)

// cancelledAt returns the index of the first transaction item whose
// condition failed
func cancelledAt(err error) (int, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return -1, false
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == conditionalFailed {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) table() *string {
	return aws.String(s.cfg.TableName)
}

func (s *Store) getItem(ctx context.Context, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      s.table(),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return out.Item, nil
}

// locate resolves a node or edge id to the graph holding it through GSI2
func (s *Store) locate(ctx context.Context, sk, resource string) (string, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI2PK").Equal(expression.Value(sk))).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 s.table(),
		IndexName:                 aws.String(s.cfg.GSI2IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to query %s index: %w", resource, err)
	}
	if len(out.Items) == 0 {
		return "", pkgerrors.NewNotFoundError(resource)
	}

	v, ok := out.Items[0]["GSI2SK"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("%s index item without graph key", resource)
	}
	return graphIDFromPK(v.Value), nil
}

// queryPartition reads the items of a graph whose sort key starts with
// prefix, or all of them for an empty prefix
func (s *Store) queryPartition(ctx context.Context, graphID, prefix string, filter *expression.ConditionBuilder, keysOnly bool) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(graphPK(graphID)))
	if prefix != "" {
		keyCond = keyCond.And(expression.Key("SK").BeginsWith(prefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	if keysOnly {
		builder = builder.WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK")))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 s.table(),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query graph partition: %w", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// batchDelete removes items in chunks, retrying unprocessed ones
func (s *Store) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-i)
		for _, k := range keys[i:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}

		for retry := 0; len(requests) > 0; retry++ {
			if retry == maxBatchRetries {
				return fmt.Errorf("failed to delete %d items after %d retries", len(requests), maxBatchRetries)
			}
			if retry > 0 {
				backoff := time.Duration(retry*retry) * 100 * time.Millisecond
				s.logger.Warn("Retrying unprocessed deletes",
					zap.Int("retry", retry),
					zap.Int("remaining", len(requests)),
					zap.Duration("backoff", backoff),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
			}

			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.cfg.TableName: requests},
			})
			if err != nil {
				return fmt.Errorf("failed to batch delete: %w", err)
			}
			requests = out.UnprocessedItems[s.cfg.TableName]
		}
	}
	return nil
}

// conditionalUpdate writes fields to the item at key while it exists and,
// when expected is given, while its UpdatedAt still equals expected. The new
// UpdatedAt must sort after the stored one; when the clock lags behind it the
// write is retried just past the stored stamp. It returns the item as written.
func (s *Store) conditionalUpdate(ctx context.Context, itemKey map[string]types.AttributeValue, fields map[string]interface{}, expected *time.Time, resource string) (map[string]types.AttributeValue, error) {
	stamp := entities.Now()
	for attempt := 0; attempt < maxStampRetries; attempt++ {
		next := formatStamp(stamp)
		update := expression.Set(expression.Name("UpdatedAt"), expression.Value(next))
		for name, value := range fields {
			update = update.Set(expression.Name(name), expression.Value(value))
		}
		cond := expression.Name("PK").AttributeExists().
			And(expression.Name("UpdatedAt").LessThan(expression.Value(next)))
		if expected != nil {
			cond = cond.And(expression.Name("UpdatedAt").Equal(expression.Value(formatStamp(*expected))))
		}
		expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}

		out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                           s.table(),
			Key:                                 itemKey,
			UpdateExpression:                    expr.Update(),
			ConditionExpression:                 expr.Condition(),
			ExpressionAttributeNames:            expr.Names(),
			ExpressionAttributeValues:           expr.Values(),
			ReturnValues:                        types.ReturnValueAllNew,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		if err == nil {
			return out.Attributes, nil
		}

		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, fmt.Errorf("failed to update %s: %w", resource, err)
		}
		if len(ccf.Item) == 0 {
			return nil, pkgerrors.NewNotFoundError(resource)
		}
		stored, ok := storedStamp(ccf.Item)
		if !ok || (expected != nil && !stored.Equal(entities.Normalize(*expected))) {
			return nil, pkgerrors.NewConflictError(resource + " was modified concurrently")
		}
		s.logger.Debug("Stored stamp ahead of clock, retrying update",
			zap.String("resource", resource),
			zap.Time("stored", stored),
			zap.Int("attempt", attempt+1))
		stamp = entities.NextStamp(stored)
	}
	return nil, pkgerrors.NewConflictError(resource + " was modified concurrently")
}

func storedStamp(item map[string]types.AttributeValue) (time.Time, bool) {
	v, ok := item["UpdatedAt"].(*types.AttributeValueMemberS)
	if !ok {
		return time.Time{}, false
	}
	t, err := parseStamp(v.Value)
	return t, err == nil
}

// GraphRepository implements ports.GraphRepository
type GraphRepository struct {
	s *Store
}

func (r *GraphRepository) Create(ctx context.Context, graph *entities.Graph) error {
	av, err := attributevalue.MarshalMap(newGraphItem(graph))
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	_, err = r.s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           r.s.table(),
		Item:                av,
		ConditionExpression: mustNotExist,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError("graph already exists")
		}
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

func (r *GraphRepository) GetByID(ctx context.Context, id string) (*entities.Graph, error) {
	item, err := r.s.getItem(ctx, graphKey(id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError("graph")
	}
	return parseGraph(item)
}

func (r *GraphRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Graph, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(
		expression.Key("GSI1PK").Equal(expression.Value(userPrefix + ownerID)).
			And(expression.Key("GSI1SK").BeginsWith(graphPrefix)),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(r.s.client, &dynamodb.QueryInput{
		TableName:                 r.s.table(),
		IndexName:                 aws.String(r.s.cfg.GSI1IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})

	graphs := make([]*entities.Graph, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query graphs: %w", err)
		}
		for _, item := range page.Items {
			g, err := parseGraph(item)
			if err != nil {
				return nil, err
			}
			graphs = append(graphs, g)
		}
	}
	return graphs, nil
}

// Delete removes the partition's children first and the META item last, so
// an interrupted delete leaves a graph that can be deleted again
func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	items, err := r.s.queryPartition(ctx, id, "", nil, true)
	if err != nil {
		return err
	}

	found := false
	children := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok && sk.Value == metaSK {
			found = true
			continue
		}
		children = append(children, item)
	}
	if !found {
		return pkgerrors.NewNotFoundError("graph")
	}

	if err := r.s.batchDelete(ctx, children); err != nil {
		return err
	}

	_, err = r.s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           r.s.table(),
		Key:                 graphKey(id),
		ConditionExpression: mustExist,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewNotFoundError("graph")
		}
		return fmt.Errorf("failed to delete graph: %w", err)
	}

	r.s.logger.Debug("Graph partition deleted",
		zap.String("graphID", id),
		zap.Int("children", len(children)),
	)
	return nil
}

// NodeRepository implements ports.NodeRepository
type NodeRepository struct {
	s *Store
}

func (r *NodeRepository) Create(ctx context.Context, node *entities.Node) error {
	av, err := attributevalue.MarshalMap(newNodeItem(node))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	_, err = r.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:           r.s.table(),
				Key:                 graphKey(node.GraphID),
				ConditionExpression: mustExist,
			}},
			{Put: &types.Put{
				TableName:           r.s.table(),
				Item:                av,
				ConditionExpression: mustNotExist,
			}},
		},
	})
	if err != nil {
		if i, ok := cancelledAt(err); ok {
			if i == 0 {
				return pkgerrors.NewNotFoundError("graph")
			}
			return pkgerrors.NewConflictError("node already exists")
		}
		return fmt.Errorf("failed to save node: %w", err)
	}
	return nil
}

func (r *NodeRepository) GetByID(ctx context.Context, id string) (*entities.Node, error) {
	graphID, err := r.s.locate(ctx, nodeSK(id), "node")
	if err != nil {
		return nil, err
	}
	item, err := r.s.getItem(ctx, nodeKey(graphID, id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	return parseNode(item)
}

func (r *NodeRepository) GetWithGraph(ctx context.Context, id string) (*entities.NodeWithGraph, error) {
	node, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := r.s.getItem(ctx, graphKey(node.GraphID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	graph, err := parseGraph(item)
	if err != nil {
		return nil, err
	}
	return &entities.NodeWithGraph{Node: node, Graph: graph}, nil
}

func (r *NodeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Node, error) {
	items, err := r.s.queryPartition(ctx, graphID, nodePrefix, nil, false)
	if err != nil {
		return nil, err
	}

	nodes := make([]*entities.Node, 0, len(items))
	for _, item := range items {
		n, err := parseNode(item)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
	return nodes, nil
}

func (r *NodeRepository) Update(ctx context.Context, id string, patch entities.NodePatch, expected *time.Time) (*entities.Node, error) {
	graphID, err := r.s.locate(ctx, nodeSK(id), "node")
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if patch.Title != nil {
		fields["Title"] = *patch.Title
	}
	if patch.Detail != nil {
		fields["Detail"] = *patch.Detail
	}
	if patch.X != nil {
		fields["X"] = *patch.X
	}
	if patch.Y != nil {
		fields["Y"] = *patch.Y
	}

	item, err := r.s.conditionalUpdate(ctx, nodeKey(graphID, id), fields, expected, "node")
	if err != nil {
		return nil, err
	}
	return parseNode(item)
}

// Delete removes the node and its edges in one transaction when they fit,
// otherwise the edges go first in batches
func (r *NodeRepository) Delete(ctx context.Context, id string) error {
	graphID, err := r.s.locate(ctx, nodeSK(id), "node")
	if err != nil {
		return err
	}

	touching := expression.Name("SourceNodeID").Equal(expression.Value(id)).
		Or(expression.Name("TargetNodeID").Equal(expression.Value(id)))
	edges, err := r.s.queryPartition(ctx, graphID, edgePrefix, &touching, true)
	if err != nil {
		return err
	}

	deleteNode := types.TransactWriteItem{Delete: &types.Delete{
		TableName:           r.s.table(),
		Key:                 nodeKey(graphID, id),
		ConditionExpression: mustExist,
	}}

	if len(edges)+1 > maxTransactItems {
		if err := r.s.batchDelete(ctx, edges); err != nil {
			return err
		}
		edges = nil
	}

	transact := make([]types.TransactWriteItem, 0, len(edges)+1)
	transact = append(transact, deleteNode)
	for _, k := range edges {
		transact = append(transact, types.TransactWriteItem{Delete: &types.Delete{
			TableName: r.s.table(),
			Key:       k,
		}})
	}

	_, err = r.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: transact})
	if err != nil {
		if i, ok := cancelledAt(err); ok && i == 0 {
			return pkgerrors.NewNotFoundError("node")
		}
		return fmt.Errorf("failed to delete node: %w", err)
	}

	r.s.logger.Debug("Node deleted with edges",
		zap.String("nodeID", id),
		zap.Int("edges", len(transact)-1),
	)
	return nil
}

// EdgeRepository implements ports.EdgeRepository
type EdgeRepository struct {
	s *Store
}

func (r *EdgeRepository) Create(ctx context.Context, edge *entities.Edge) error {
	av, err := attributevalue.MarshalMap(newEdgeItem(edge))
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}

	check := func(k map[string]types.AttributeValue) types.TransactWriteItem {
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:           r.s.table(),
			Key:                 k,
			ConditionExpression: mustExist,
		}}
	}

	// a transaction may touch each item once, so a self-loop checks its node once
	transact := []types.TransactWriteItem{
		check(graphKey(edge.GraphID)),
		check(nodeKey(edge.GraphID, edge.SourceNodeID)),
	}
	if edge.TargetNodeID != edge.SourceNodeID {
		transact = append(transact, check(nodeKey(edge.GraphID, edge.TargetNodeID)))
	}
	put := len(transact)
	transact = append(transact, types.TransactWriteItem{Put: &types.Put{
		TableName:           r.s.table(),
		Item:                av,
		ConditionExpression: mustNotExist,
	}})

	_, err = r.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: transact})
	if err != nil {
		if i, ok := cancelledAt(err); ok {
			switch {
			case i == 0:
				return pkgerrors.NewNotFoundError("graph")
			case i == put:
				return pkgerrors.NewConflictError("edge already exists")
			default:
				return pkgerrors.NewValidationError("edge endpoints must be nodes of the same graph")
			}
		}
		return fmt.Errorf("failed to save edge: %w", err)
	}
	return nil
}

func (r *EdgeRepository) GetByID(ctx context.Context, id string) (*entities.Edge, error) {
	graphID, err := r.s.locate(ctx, edgeSK(id), "edge")
	if err != nil {
		return nil, err
	}
	item, err := r.s.getItem(ctx, edgeKey(graphID, id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return parseEdge(item)
}

func (r *EdgeRepository) GetWithGraph(ctx context.Context, id string) (*entities.EdgeWithGraph, error) {
	edge, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := r.s.getItem(ctx, graphKey(edge.GraphID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	graph, err := parseGraph(item)
	if err != nil {
		return nil, err
	}
	return &entities.EdgeWithGraph{Edge: edge, Graph: graph}, nil
}

func (r *EdgeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	items, err := r.s.queryPartition(ctx, graphID, edgePrefix, nil, false)
	if err != nil {
		return nil, err
	}

	edges := make([]*entities.Edge, 0, len(items))
	for _, item := range items {
		e, err := parseEdge(item)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
	return edges, nil
}

func (r *EdgeRepository) Update(ctx context.Context, id string, patch entities.EdgePatch, expected *time.Time) (*entities.Edge, error) {
	graphID, err := r.s.locate(ctx, edgeSK(id), "edge")
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if patch.Detail != nil {
		fields["Detail"] = *patch.Detail
	}

	item, err := r.s.conditionalUpdate(ctx, edgeKey(graphID, id), fields, expected, "edge")
	if err != nil {
		return nil, err
	}
	return parseEdge(item)
}

func (r *EdgeRepository) Delete(ctx context.Context, id string) error {
	graphID, err := r.s.locate(ctx, edgeSK(id), "edge")
	if err != nil {
		return err
	}

	_, err = r.s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           r.s.table(),
		Key:                 edgeKey(graphID, id),
		ConditionExpression: mustExist,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewNotFoundError("edge")
		}
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	return nil
}
