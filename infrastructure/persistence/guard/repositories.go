package guard

import (
	"context"
	"time"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
)

type graphRepository struct {
	g    *Guard
	next ports.GraphRepository
}

func (r *graphRepository) Create(ctx context.Context, graph *entities.Graph) error {
	return exec(r.g, ctx, "create", "graph", func(ctx context.Context) error {
		return r.next.Create(ctx, graph)
	})
}

func (r *graphRepository) GetByID(ctx context.Context, id string) (*entities.Graph, error) {
	return call(r.g, ctx, "get", "graph", func(ctx context.Context) (*entities.Graph, error) {
		return r.next.GetByID(ctx, id)
	})
}

func (r *graphRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Graph, error) {
	return call(r.g, ctx, "list", "graph", func(ctx context.Context) ([]*entities.Graph, error) {
		return r.next.ListByOwner(ctx, ownerID)
	})
}

func (r *graphRepository) Delete(ctx context.Context, id string) error {
	return exec(r.g, ctx, "delete", "graph", func(ctx context.Context) error {
		return r.next.Delete(ctx, id)
	})
}

type nodeRepository struct {
	g    *Guard
	next ports.NodeRepository
}

func (r *nodeRepository) Create(ctx context.Context, node *entities.Node) error {
	return exec(r.g, ctx, "create", "node", func(ctx context.Context) error {
		return r.next.Create(ctx, node)
	})
}

func (r *nodeRepository) GetByID(ctx context.Context, id string) (*entities.Node, error) {
	return call(r.g, ctx, "get", "node", func(ctx context.Context) (*entities.Node, error) {
		return r.next.GetByID(ctx, id)
	})
}

func (r *nodeRepository) GetWithGraph(ctx context.Context, id string) (*entities.NodeWithGraph, error) {
	return call(r.g, ctx, "get_with_graph", "node", func(ctx context.Context) (*entities.NodeWithGraph, error) {
		return r.next.GetWithGraph(ctx, id)
	})
}

func (r *nodeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Node, error) {
	return call(r.g, ctx, "list", "node", func(ctx context.Context) ([]*entities.Node, error) {
		return r.next.ListByGraph(ctx, graphID)
	})
}

func (r *nodeRepository) Update(ctx context.Context, id string, patch entities.NodePatch, expected *time.Time) (*entities.Node, error) {
	return call(r.g, ctx, "update", "node", func(ctx context.Context) (*entities.Node, error) {
		return r.next.Update(ctx, id, patch, expected)
	})
}

func (r *nodeRepository) Delete(ctx context.Context, id string) error {
	return exec(r.g, ctx, "delete", "node", func(ctx context.Context) error {
		return r.next.Delete(ctx, id)
	})
}

type edgeRepository struct {
	g    *Guard
	next ports.EdgeRepository
}

func (r *edgeRepository) Create(ctx context.Context, edge *entities.Edge) error {
	return exec(r.g, ctx, "create", "edge", func(ctx context.Context) error {
		return r.next.Create(ctx, edge)
	})
}

func (r *edgeRepository) GetByID(ctx context.Context, id string) (*entities.Edge, error) {
	return call(r.g, ctx, "get", "edge", func(ctx context.Context) (*entities.Edge, error) {
		return r.next.GetByID(ctx, id)
	})
}

func (r *edgeRepository) GetWithGraph(ctx context.Context, id string) (*entities.EdgeWithGraph, error) {
	return call(r.g, ctx, "get_with_graph", "edge", func(ctx context.Context) (*entities.EdgeWithGraph, error) {
		return r.next.GetWithGraph(ctx, id)
	})
}

func (r *edgeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	return call(r.g, ctx, "list", "edge", func(ctx context.Context) ([]*entities.Edge, error) {
		return r.next.ListByGraph(ctx, graphID)
	})
}

func (r *edgeRepository) Update(ctx context.Context, id string, patch entities.EdgePatch, expected *time.Time) (*entities.Edge, error) {
	return call(r.g, ctx, "update", "edge", func(ctx context.Context) (*entities.Edge, error) {
		return r.next.Update(ctx, id, patch, expected)
	})
}

func (r *edgeRepository) Delete(ctx context.Context, id string) error {
	return exec(r.g, ctx, "delete", "edge", func(ctx context.Context) error {
		return r.next.Delete(ctx, id)
	})
}
