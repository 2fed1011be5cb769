package ports

import (
	"context"
	"time"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
)

// GraphRepository defines the interface for graph persistence.
// Lookups of unknown ids return a NOT_FOUND AppError.
type GraphRepository interface {
	// Create inserts a new graph
	Create(ctx context.Context, graph *entities.Graph) error

	// GetByID retrieves a graph by its ID
	GetByID(ctx context.Context, id string) (*entities.Graph, error)

	// ListByOwner retrieves all graphs of a user, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Graph, error)

	// Delete removes a graph with all its nodes and edges
	Delete(ctx context.Context, id string) error
}

// NodeRepository defines the interface for node persistence
type NodeRepository interface {
	// Create inserts a new node
	Create(ctx context.Context, node *entities.Node) error

	// GetByID retrieves a node by its ID
	GetByID(ctx context.Context, id string) (*entities.Node, error)

	// GetWithGraph retrieves a node together with its owning graph
	GetWithGraph(ctx context.Context, id string) (*entities.NodeWithGraph, error)

	// ListByGraph retrieves all nodes of a graph
	ListByGraph(ctx context.Context, graphID string) ([]*entities.Node, error)

	// Update merges patch into the stored node and stamps updatedAt at write
	// time, strictly after the stored stamp. Fields the patch leaves nil are
	// not written. When expected is non-nil the write only applies if the
	// stored updatedAt still equals it; otherwise it fails with a CONFLICT
	// AppError and nothing changes. It returns the node as stored.
	Update(ctx context.Context, id string, patch entities.NodePatch, expected *time.Time) (*entities.Node, error)

	// Delete removes a node and every edge touching it
	Delete(ctx context.Context, id string) error
}

// EdgeRepository defines the interface for edge persistence
type EdgeRepository interface {
	// Create inserts a new edge
	Create(ctx context.Context, edge *entities.Edge) error

	// GetByID retrieves an edge by its ID
	GetByID(ctx context.Context, id string) (*entities.Edge, error)

	// GetWithGraph retrieves an edge together with its owning graph
	GetWithGraph(ctx context.Context, id string) (*entities.EdgeWithGraph, error)

	// ListByGraph retrieves all edges of a graph
	ListByGraph(ctx context.Context, graphID string) ([]*entities.Edge, error)

	// Update merges patch into the stored edge like NodeRepository.Update
	Update(ctx context.Context, id string, patch entities.EdgePatch, expected *time.Time) (*entities.Edge, error)

	// Delete removes an edge
	Delete(ctx context.Context, id string) error
}

// Repositories bundles one backend's repositories
type Repositories struct {
	Graphs GraphRepository
	Nodes  NodeRepository
	Edges  EdgeRepository
	// Ping checks the backend is reachable, for the readiness check
	Ping func(ctx context.Context) error
	// Close releases backend resources
	Close func() error
}
