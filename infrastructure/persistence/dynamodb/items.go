package dynamodb

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
)

const (
	graphPrefix = "GRAPH#"
	nodePrefix  = "NODE#"
	edgePrefix  = "EDGE#"
	userPrefix  = "USER#"
	metaSK      = "META"

	entityGraph = "GRAPH"
	entityNode  = "NODE"
	entityEdge  = "EDGE"
)

// stampLayout has a fixed width so stamps sort lexicographically
const stampLayout = "2006-01-02T15:04:05.000000Z"

func formatStamp(t time.Time) string {
	return entities.Normalize(t).Format(stampLayout)
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		// items written by other tools may carry plain RFC 3339
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid stamp %q: %w", s, err)
		}
	}
	return entities.Normalize(t), nil
}

func graphPK(graphID string) string { return graphPrefix + graphID }
func nodeSK(nodeID string) string   { return nodePrefix + nodeID }
func edgeSK(edgeID string) string   { return edgePrefix + edgeID }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func graphKey(graphID string) map[string]types.AttributeValue {
	return key(graphPK(graphID), metaSK)
}

func nodeKey(graphID, nodeID string) map[string]types.AttributeValue {
	return key(graphPK(graphID), nodeSK(nodeID))
}

func edgeKey(graphID, edgeID string) map[string]types.AttributeValue {
	return key(graphPK(graphID), edgeSK(edgeID))
}

// graphItem is a graph's META item. GSI1 lists a user's graphs by creation time.
type graphItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`
	GraphID    string `dynamodbav:"GraphID"`
	OwnerID    string `dynamodbav:"OwnerID"`
	Title      string `dynamodbav:"Title"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

// nodeItem lives in its graph's partition. GSI2 finds it by node id.
type nodeItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	GSI2PK     string  `dynamodbav:"GSI2PK"`
	GSI2SK     string  `dynamodbav:"GSI2SK"`
	EntityType string  `dynamodbav:"EntityType"`
	NodeID     string  `dynamodbav:"NodeID"`
	GraphID    string  `dynamodbav:"GraphID"`
	Title      string  `dynamodbav:"Title"`
	Detail     *string `dynamodbav:"Detail,omitempty"`
	X          float64 `dynamodbav:"X"`
	Y          float64 `dynamodbav:"Y"`
	CreatedAt  string  `dynamodbav:"CreatedAt"`
	UpdatedAt  string  `dynamodbav:"UpdatedAt"`
}

// edgeItem lives in its graph's partition. GSI2 finds it by edge id.
type edgeItem struct {
	PK           string  `dynamodbav:"PK"`
	SK           string  `dynamodbav:"SK"`
	GSI2PK       string  `dynamodbav:"GSI2PK"`
	GSI2SK       string  `dynamodbav:"GSI2SK"`
	EntityType   string  `dynamodbav:"EntityType"`
	EdgeID       string  `dynamodbav:"EdgeID"`
	GraphID      string  `dynamodbav:"GraphID"`
	SourceNodeID string  `dynamodbav:"SourceNodeID"`
	TargetNodeID string  `dynamodbav:"TargetNodeID"`
	Detail       *string `dynamodbav:"Detail,omitempty"`
	CreatedAt    string  `dynamodbav:"CreatedAt"`
	UpdatedAt    string  `dynamodbav:"UpdatedAt"`
}

func newGraphItem(g *entities.Graph) graphItem {
	created := formatStamp(g.CreatedAt)
	return graphItem{
		PK:         graphPK(g.ID),
		SK:         metaSK,
		GSI1PK:     userPrefix + g.OwnerID,
		GSI1SK:     graphPrefix + created + "#" + g.ID,
		EntityType: entityGraph,
		GraphID:    g.ID,
		OwnerID:    g.OwnerID,
		Title:      g.Title,
		CreatedAt:  created,
	}
}

func (i graphItem) toEntity() (*entities.Graph, error) {
	created, err := parseStamp(i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &entities.Graph{ID: i.GraphID, OwnerID: i.OwnerID, Title: i.Title, CreatedAt: created}, nil
}

func newNodeItem(n *entities.Node) nodeItem {
	return nodeItem{
		PK:         graphPK(n.GraphID),
		SK:         nodeSK(n.ID),
		GSI2PK:     nodeSK(n.ID),
		GSI2SK:     graphPK(n.GraphID),
		EntityType: entityNode,
		NodeID:     n.ID,
		GraphID:    n.GraphID,
		Title:      n.Title,
		Detail:     n.Detail,
		X:          n.X,
		Y:          n.Y,
		CreatedAt:  formatStamp(n.CreatedAt),
		UpdatedAt:  formatStamp(n.UpdatedAt),
	}
}

func (i nodeItem) toEntity() (*entities.Node, error) {
	created, err := parseStamp(i.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseStamp(i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entities.Node{
		ID:        i.NodeID,
		GraphID:   i.GraphID,
		Title:     i.Title,
		Detail:    i.Detail,
		X:         i.X,
		Y:         i.Y,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func newEdgeItem(e *entities.Edge) edgeItem {
	return edgeItem{
		PK:           graphPK(e.GraphID),
		SK:           edgeSK(e.ID),
		GSI2PK:       edgeSK(e.ID),
		GSI2SK:       graphPK(e.GraphID),
		EntityType:   entityEdge,
		EdgeID:       e.ID,
		GraphID:      e.GraphID,
		SourceNodeID: e.SourceNodeID,
		TargetNodeID: e.TargetNodeID,
		Detail:       e.Detail,
		CreatedAt:    formatStamp(e.CreatedAt),
		UpdatedAt:    formatStamp(e.UpdatedAt),
	}
}

func (i edgeItem) toEntity() (*entities.Edge, error) {
	created, err := parseStamp(i.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseStamp(i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entities.Edge{
		ID:           i.EdgeID,
		GraphID:      i.GraphID,
		SourceNodeID: i.SourceNodeID,
		TargetNodeID: i.TargetNodeID,
		Detail:       i.Detail,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

func parseGraph(av map[string]types.AttributeValue) (*entities.Graph, error) {
	var item graphItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return item.toEntity()
}

func parseNode(av map[string]types.AttributeValue) (*entities.Node, error) {
	var item nodeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return item.toEntity()
}

func parseEdge(av map[string]types.AttributeValue) (*entities.Edge, error) {
	var item edgeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edge: %w", err)
	}
	return item.toEntity()
}

// graphIDFromPK strips the partition prefix
func graphIDFromPK(pk string) string {
	return strings.TrimPrefix(pk, graphPrefix)
}
