package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

const (
	nodeWithGraphColumns = "nodes.id, nodes.graph_id, nodes.title, nodes.detail, nodes.x, nodes.y, " +
		"nodes.created_at, nodes.updated_at, graphs.owner_id AS graph_owner_id, " +
		"graphs.title AS graph_title, graphs.created_at AS graph_created_at"
	edgeWithGraphColumns = "edges.id, edges.graph_id, edges.source_node_id, edges.target_node_id, edges.detail, " +
		"edges.created_at, edges.updated_at, graphs.owner_id AS graph_owner_id, " +
		"graphs.title AS graph_title, graphs.created_at AS graph_created_at"
)

// conditionalUpdate updates the row with id, and only while its updated_at
// still equals expected when expected is given
func conditionalUpdate(db *gorm.DB, model interface{}, id string, expected *time.Time, values map[string]interface{}) *gorm.DB {
	tx := db.Model(model).Where("id = ?", id)
	if expected != nil {
		tx = tx.Where("updated_at = ?", expected.UTC())
	}
	return tx.Updates(values)
}

// nextStamp moves updated_at past both the clock and the stored value, so a
// lagging clock still yields a strictly later stamp
func nextStamp() clause.Expr {
	return gorm.Expr("GREATEST(?, updated_at + interval '1 microsecond')", entities.Now())
}

// nodeValues lists only the columns the patch sets
func nodeValues(p entities.NodePatch) map[string]interface{} {
	values := map[string]interface{}{"updated_at": nextStamp()}
	if p.Title != nil {
		values["title"] = *p.Title
	}
	if p.Detail != nil {
		values["detail"] = *p.Detail
	}
	if p.X != nil {
		values["x"] = *p.X
	}
	if p.Y != nil {
		values["y"] = *p.Y
	}
	return values
}

func edgeValues(p entities.EdgePatch) map[string]interface{} {
	values := map[string]interface{}{"updated_at": nextStamp()}
	if p.Detail != nil {
		values["detail"] = *p.Detail
	}
	return values
}

// GraphRepository implements ports.GraphRepository
type GraphRepository struct {
	db *gorm.DB
}

func (r *GraphRepository) Create(ctx context.Context, graph *entities.Graph) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(graphToModel(graph)).Error
}

func (r *GraphRepository) GetByID(ctx context.Context, id string) (*entities.Graph, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("graph")
	}
	var m GraphModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "graph")
	}
	return m.toEntity(), nil
}

func (r *GraphRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Graph, error) {
	var rows []GraphModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	graphs := make([]*entities.Graph, 0, len(rows))
	for i := range rows {
		graphs = append(graphs, rows[i].toEntity())
	}
	return graphs, nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pkgerrors.NewNotFoundError("graph")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("graph_id = ?", id).Delete(&EdgeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("graph_id = ?", id).Delete(&NodeModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&GraphModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.NewNotFoundError("graph")
		}
		return nil
	})
}

// NodeRepository implements ports.NodeRepository
type NodeRepository struct {
	db *gorm.DB
}

func (r *NodeRepository) Create(ctx context.Context, node *entities.Node) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(nodeToModel(node)).Error
}

func (r *NodeRepository) GetByID(ctx context.Context, id string) (*entities.Node, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	var m NodeModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "node")
	}
	return m.toEntity(), nil
}

func (r *NodeRepository) GetWithGraph(ctx context.Context, id string) (*entities.NodeWithGraph, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	var row nodeGraphRow
	res := r.db.WithContext(ctx).
		Table("nodes").
		Select(nodeWithGraphColumns).
		Joins("JOIN graphs ON graphs.id = nodes.graph_id").
		Where("nodes.id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	return row.toEntity(), nil
}

func (r *NodeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Node, error) {
	if !validID(graphID) {
		return []*entities.Node{}, nil
	}
	var rows []NodeModel
	if err := r.db.WithContext(ctx).Where("graph_id = ?", graphID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	nodes := make([]*entities.Node, 0, len(rows))
	for i := range rows {
		nodes = append(nodes, rows[i].toEntity())
	}
	return nodes, nil
}

func (r *NodeRepository) Update(ctx context.Context, id string, patch entities.NodePatch, expected *time.Time) (*entities.Node, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	var m NodeModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := conditionalUpdate(tx, &NodeModel{}, id, expected, nodeValues(patch))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missOrConflict(tx, &NodeModel{}, id, "node")
		}
		return tx.First(&m, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

func (r *NodeRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pkgerrors.NewNotFoundError("node")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("source_node_id = ? OR target_node_id = ?", id, id).Delete(&EdgeModel{}).Error
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&NodeModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.NewNotFoundError("node")
		}
		return nil
	})
}

// missOrConflict explains a conditional update that touched no row
func missOrConflict(db *gorm.DB, model interface{}, id, resource string) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return pkgerrors.NewNotFoundError(resource)
	}
	return pkgerrors.NewConflictError(resource + " was modified concurrently")
}

// EdgeRepository implements ports.EdgeRepository
type EdgeRepository struct {
	db *gorm.DB
}

func (r *EdgeRepository) Create(ctx context.Context, edge *entities.Edge) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(edgeToModel(edge)).Error
}

func (r *EdgeRepository) GetByID(ctx context.Context, id string) (*entities.Edge, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	var m EdgeModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "edge")
	}
	return m.toEntity(), nil
}

func (r *EdgeRepository) GetWithGraph(ctx context.Context, id string) (*entities.EdgeWithGraph, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	var row edgeGraphRow
	res := r.db.WithContext(ctx).
		Table("edges").
		Select(edgeWithGraphColumns).
		Joins("JOIN graphs ON graphs.id = edges.graph_id").
		Where("edges.id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return row.toEntity(), nil
}

func (r *EdgeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	if !validID(graphID) {
		return []*entities.Edge{}, nil
	}
	var rows []EdgeModel
	if err := r.db.WithContext(ctx).Where("graph_id = ?", graphID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	edges := make([]*entities.Edge, 0, len(rows))
	for i := range rows {
		edges = append(edges, rows[i].toEntity())
	}
	return edges, nil
}

func (r *EdgeRepository) Update(ctx context.Context, id string, patch entities.EdgePatch, expected *time.Time) (*entities.Edge, error) {
	if !validID(id) {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	var m EdgeModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := conditionalUpdate(tx, &EdgeModel{}, id, expected, edgeValues(patch))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missOrConflict(tx, &EdgeModel{}, id, "edge")
		}
		return tx.First(&m, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

func (r *EdgeRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pkgerrors.NewNotFoundError("edge")
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&EdgeModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.NewNotFoundError("edge")
	}
	return nil
}
