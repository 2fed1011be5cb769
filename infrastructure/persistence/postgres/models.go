package postgres

import (
	"time"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
)

// GraphModel is the graphs table
type GraphModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	OwnerID   string    `gorm:"column:owner_id;not null;index:idx_graphs_owner_created,priority:1"`
	Title     string    `gorm:"size:200;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_graphs_owner_created,priority:2,sort:desc"`
}

func (GraphModel) TableName() string { return "graphs" }

// NodeModel is the nodes table. Rows go with their graph.
type NodeModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	GraphID   string    `gorm:"column:graph_id;type:uuid;not null;index"`
	Title     string    `gorm:"size:200;not null"`
	Detail    *string   `gorm:"type:text"`
	X         float64   `gorm:"not null"`
	Y         float64   `gorm:"not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`

	Graph GraphModel `gorm:"foreignKey:GraphID;constraint:OnDelete:CASCADE"`
}

func (NodeModel) TableName() string { return "nodes" }

// EdgeModel is the edges table. Rows go with their graph and with either endpoint.
type EdgeModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	GraphID      string    `gorm:"column:graph_id;type:uuid;not null;index"`
	SourceNodeID string    `gorm:"column:source_node_id;type:uuid;not null;index"`
	TargetNodeID string    `gorm:"column:target_node_id;type:uuid;not null;index"`
	Detail       *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`

	Graph  GraphModel `gorm:"foreignKey:GraphID;constraint:OnDelete:CASCADE"`
	Source NodeModel  `gorm:"foreignKey:SourceNodeID;constraint:OnDelete:CASCADE"`
	Target NodeModel  `gorm:"foreignKey:TargetNodeID;constraint:OnDelete:CASCADE"`
}

func (EdgeModel) TableName() string { return "edges" }

func graphToModel(g *entities.Graph) *GraphModel {
	return &GraphModel{ID: g.ID, OwnerID: g.OwnerID, Title: g.Title, CreatedAt: g.CreatedAt}
}

func (m *GraphModel) toEntity() *entities.Graph {
	return &entities.Graph{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Title:     m.Title,
		CreatedAt: entities.Normalize(m.CreatedAt),
	}
}

func nodeToModel(n *entities.Node) *NodeModel {
	return &NodeModel{
		ID:        n.ID,
		GraphID:   n.GraphID,
		Title:     n.Title,
		Detail:    n.Detail,
		X:         n.X,
		Y:         n.Y,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (m *NodeModel) toEntity() *entities.Node {
	return &entities.Node{
		ID:        m.ID,
		GraphID:   m.GraphID,
		Title:     m.Title,
		Detail:    m.Detail,
		X:         m.X,
		Y:         m.Y,
		CreatedAt: entities.Normalize(m.CreatedAt),
		UpdatedAt: entities.Normalize(m.UpdatedAt),
	}
}

func edgeToModel(e *entities.Edge) *EdgeModel {
	return &EdgeModel{
		ID:           e.ID,
		GraphID:      e.GraphID,
		SourceNodeID: e.SourceNodeID,
		TargetNodeID: e.TargetNodeID,
		Detail:       e.Detail,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (m *EdgeModel) toEntity() *entities.Edge {
	return &entities.Edge{
		ID:           m.ID,
		GraphID:      m.GraphID,
		SourceNodeID: m.SourceNodeID,
		TargetNodeID: m.TargetNodeID,
		Detail:       m.Detail,
		CreatedAt:    entities.Normalize(m.CreatedAt),
		UpdatedAt:    entities.Normalize(m.UpdatedAt),
	}
}

// nodeGraphRow is a node joined with its graph
type nodeGraphRow struct {
	ID             string
	GraphID        string
	Title          string
	Detail         *string
	X              float64
	Y              float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	GraphOwnerID   string
	GraphTitle     string
	GraphCreatedAt time.Time
}

func (r *nodeGraphRow) toEntity() *entities.NodeWithGraph {
	node := NodeModel{
		ID: r.ID, GraphID: r.GraphID, Title: r.Title, Detail: r.Detail,
		X: r.X, Y: r.Y, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	graph := GraphModel{ID: r.GraphID, OwnerID: r.GraphOwnerID, Title: r.GraphTitle, CreatedAt: r.GraphCreatedAt}
	return &entities.NodeWithGraph{Node: node.toEntity(), Graph: graph.toEntity()}
}

// edgeGraphRow is an edge joined with its graph
type edgeGraphRow struct {
	ID             string
	GraphID        string
	SourceNodeID   string
	TargetNodeID   string
	Detail         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	GraphOwnerID   string
	GraphTitle     string
	GraphCreatedAt time.Time
}

func (r *edgeGraphRow) toEntity() *entities.EdgeWithGraph {
	edge := EdgeModel{
		ID: r.ID, GraphID: r.GraphID, SourceNodeID: r.SourceNodeID, TargetNodeID: r.TargetNodeID,
		Detail: r.Detail, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	graph := GraphModel{ID: r.GraphID, OwnerID: r.GraphOwnerID, Title: r.GraphTitle, CreatedAt: r.GraphCreatedAt}
	return &entities.EdgeWithGraph{Edge: edge.toEntity(), Graph: graph.toEntity()}
}
