// Package memory keeps graphs, nodes and edges in process memory. It is a
// backend chosen explicitly at startup for development and tests; nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// Store holds all three record kinds under one lock so cascades are atomic
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*entities.Graph
	nodes  map[string]*entities.Node
	edges  map[string]*entities.Edge
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		graphs: make(map[string]*entities.Graph),
		nodes:  make(map[string]*entities.Node),
		edges:  make(map[string]*entities.Edge),
	}
}

// Repositories exposes the store through the repository ports
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Graphs: &GraphRepository{s: s},
		Nodes:  &NodeRepository{s: s},
		Edges:  &EdgeRepository{s: s},
		Ping:   func(context.Context) error { return nil },
		Close:  func() error { return nil },
	}
}

func copyGraph(g *entities.Graph) *entities.Graph {
	c := *g
	return &c
}

func copyNode(n *entities.Node) *entities.Node {
	c := *n
	if n.Detail != nil {
		d := *n.Detail
		c.Detail = &d
	}
	return &c
}

func copyEdge(e *entities.Edge) *entities.Edge {
	c := *e
	if e.Detail != nil {
		d := *e.Detail
		c.Detail = &d
	}
	return &c
}

func stale(stored time.Time, expected *time.Time) bool {
	return expected != nil && !stored.Equal(*expected)
}

// GraphRepository implements ports.GraphRepository
type GraphRepository struct {
	s *Store
}

func (r *GraphRepository) Create(ctx context.Context, graph *entities.Graph) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.graphs[graph.ID]; exists {
		return pkgerrors.NewConflictError("graph already exists")
	}
	r.s.graphs[graph.ID] = copyGraph(graph)
	return nil
}

func (r *GraphRepository) GetByID(ctx context.Context, id string) (*entities.Graph, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.graphs[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("graph")
	}
	return copyGraph(g), nil
}

func (r *GraphRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Graph, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	graphs := make([]*entities.Graph, 0)
	for _, g := range r.s.graphs {
		if g.OwnerID == ownerID {
			graphs = append(graphs, copyGraph(g))
		}
	}
	sort.Slice(graphs, func(i, j int) bool {
		return graphs[i].CreatedAt.After(graphs[j].CreatedAt)
	})
	return graphs, nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.graphs[id]; !ok {
		return pkgerrors.NewNotFoundError("graph")
	}
	for eid, e := range r.s.edges {
		if e.GraphID == id {
			delete(r.s.edges, eid)
		}
	}
	for nid, n := range r.s.nodes {
		if n.GraphID == id {
			delete(r.s.nodes, nid)
		}
	}
	delete(r.s.graphs, id)
	return nil
}

// NodeRepository implements ports.NodeRepository
type NodeRepository struct {
	s *Store
}

func (r *NodeRepository) Create(ctx context.Context, node *entities.Node) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.graphs[node.GraphID]; !ok {
		return pkgerrors.NewNotFoundError("graph")
	}
	if _, exists := r.s.nodes[node.ID]; exists {
		return pkgerrors.NewConflictError("node already exists")
	}
	r.s.nodes[node.ID] = copyNode(node)
	return nil
}

func (r *NodeRepository) GetByID(ctx context.Context, id string) (*entities.Node, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.nodes[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	return copyNode(n), nil
}

func (r *NodeRepository) GetWithGraph(ctx context.Context, id string) (*entities.NodeWithGraph, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.nodes[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	g, ok := r.s.graphs[n.GraphID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	return &entities.NodeWithGraph{Node: copyNode(n), Graph: copyGraph(g)}, nil
}

func (r *NodeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Node, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	nodes := make([]*entities.Node, 0)
	for _, n := range r.s.nodes {
		if n.GraphID == graphID {
			nodes = append(nodes, copyNode(n))
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
	return nodes, nil
}

func (r *NodeRepository) Update(ctx context.Context, id string, patch entities.NodePatch, expected *time.Time) (*entities.Node, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.nodes[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	if stale(current.UpdatedAt, expected) {
		return nil, pkgerrors.NewConflictError("node was modified concurrently")
	}
	next := copyNode(current).Apply(patch)
	r.s.nodes[id] = next
	return copyNode(next), nil
}

func (r *NodeRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.nodes[id]; !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	for eid, e := range r.s.edges {
		if e.Touches(id) {
			delete(r.s.edges, eid)
		}
	}
	delete(r.s.nodes, id)
	return nil
}

// EdgeRepository implements ports.EdgeRepository
type EdgeRepository struct {
	s *Store
}

func (r *EdgeRepository) Create(ctx context.Context, edge *entities.Edge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.graphs[edge.GraphID]; !ok {
		return pkgerrors.NewNotFoundError("graph")
	}
	for _, endpoint := range []string{edge.SourceNodeID, edge.TargetNodeID} {
		n, ok := r.s.nodes[endpoint]
		if !ok || n.GraphID != edge.GraphID {
			return pkgerrors.NewValidationError("edge endpoints must be nodes of the same graph")
		}
	}
	if _, exists := r.s.edges[edge.ID]; exists {
		return pkgerrors.NewConflictError("edge already exists")
	}
	r.s.edges[edge.ID] = copyEdge(edge)
	return nil
}

func (r *EdgeRepository) GetByID(ctx context.Context, id string) (*entities.Edge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.edges[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return copyEdge(e), nil
}

func (r *EdgeRepository) GetWithGraph(ctx context.Context, id string) (*entities.EdgeWithGraph, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.edges[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	g, ok := r.s.graphs[e.GraphID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return &entities.EdgeWithGraph{Edge: copyEdge(e), Graph: copyGraph(g)}, nil
}

func (r *EdgeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	edges := make([]*entities.Edge, 0)
	for _, e := range r.s.edges {
		if e.GraphID == graphID {
			edges = append(edges, copyEdge(e))
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
	return edges, nil
}

func (r *EdgeRepository) Update(ctx context.Context, id string, patch entities.EdgePatch, expected *time.Time) (*entities.Edge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.edges[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	if stale(current.UpdatedAt, expected) {
		return nil, pkgerrors.NewConflictError("edge was modified concurrently")
	}
	next := copyEdge(current).Apply(patch)
	r.s.edges[id] = next
	return copyEdge(next), nil
}

func (r *EdgeRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.edges[id]; !ok {
		return pkgerrors.NewNotFoundError("edge")
	}
	delete(r.s.edges, id)
	return nil
}
