package services

import (
	"context"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// Authorizer confirms a caller owns the graph a record belongs to.
// It never writes.
type Authorizer struct {
	graphs ports.GraphRepository
	nodes  ports.NodeRepository
	edges  ports.EdgeRepository
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(graphs ports.GraphRepository, nodes ports.NodeRepository, edges ports.EdgeRepository) *Authorizer {
	return &Authorizer{graphs: graphs, nodes: nodes, edges: edges}
}

// AuthorizeGraph returns the graph when callerID owns it
func (a *Authorizer) AuthorizeGraph(ctx context.Context, graphID, callerID string) (*entities.Graph, error) {
	if callerID == "" {
		return nil, pkgerrors.NewUnauthorizedError("")
	}

	graph, err := a.graphs.GetByID(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if !graph.IsOwnedBy(callerID) {
		return nil, pkgerrors.NewForbiddenError("graph is owned by another user")
	}
	return graph, nil
}

// AuthorizeNode returns the node and its graph when callerID owns the graph
func (a *Authorizer) AuthorizeNode(ctx context.Context, nodeID, callerID string) (*entities.NodeWithGraph, error) {
	if callerID == "" {
		return nil, pkgerrors.NewUnauthorizedError("")
	}

	resolved, err := a.nodes.GetWithGraph(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if !resolved.Graph.IsOwnedBy(callerID) {
		return nil, pkgerrors.NewForbiddenError("node belongs to a graph owned by another user")
	}
	return resolved, nil
}

// AuthorizeEdge returns the edge and its graph when callerID owns the graph
func (a *Authorizer) AuthorizeEdge(ctx context.Context, edgeID, callerID string) (*entities.EdgeWithGraph, error) {
	if callerID == "" {
		return nil, pkgerrors.NewUnauthorizedError("")
	}

	resolved, err := a.edges.GetWithGraph(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	if !resolved.Graph.IsOwnedBy(callerID) {
		return nil, pkgerrors.NewForbiddenError("edge belongs to a graph owned by another user")
	}
	return resolved, nil
}
