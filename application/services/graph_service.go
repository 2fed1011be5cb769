package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
)

// CreateGraphCommand creates a graph owned by the caller
type CreateGraphCommand struct {
	UserID string
	Title  string
}

// GraphService handles graph creation, reads and deletion
type GraphService struct {
	graphs     ports.GraphRepository
	nodes      ports.NodeRepository
	edges      ports.EdgeRepository
	authorizer *Authorizer
	logger     *zap.Logger
}

// NewGraphService creates a new graph service
func NewGraphService(
	graphs ports.GraphRepository,
	nodes ports.NodeRepository,
	edges ports.EdgeRepository,
	authorizer *Authorizer,
	logger *zap.Logger,
) *GraphService {
	return &GraphService{
		graphs:     graphs,
		nodes:      nodes,
		edges:      edges,
		authorizer: authorizer,
		logger:     logger,
	}
}

// CreateGraph creates a graph. The owner is always the caller.
func (s *GraphService) CreateGraph(ctx context.Context, cmd CreateGraphCommand) (*entities.Graph, error) {
	if err := requireCaller(cmd.UserID); err != nil {
		return nil, err
	}

	graph, err := entities.NewGraph(cmd.UserID, cmd.Title)
	if err != nil {
		return nil, err
	}
	if err := s.graphs.Create(ctx, graph); err != nil {
		return nil, err
	}

	s.logger.Info("Graph created",
		zap.String("graphID", graph.ID),
		zap.String("userID", cmd.UserID),
	)
	return graph, nil
}

// ListGraphs returns the caller's graphs, newest first
func (s *GraphService) ListGraphs(ctx context.Context, userID string) ([]*entities.Graph, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	return s.graphs.ListByOwner(ctx, userID)
}

// GetGraph returns an owned graph with its nodes and edges
func (s *GraphService) GetGraph(ctx context.Context, graphID, userID string) (*entities.GraphContents, error) {
	graph, err := s.authorizer.AuthorizeGraph(ctx, graphID, userID)
	if err != nil {
		return nil, err
	}

	nodes, err := s.nodes.ListByGraph(ctx, graph.ID)
	if err != nil {
		return nil, err
	}
	edges, err := s.edges.ListByGraph(ctx, graph.ID)
	if err != nil {
		return nil, err
	}

	return &entities.GraphContents{Graph: graph, Nodes: nodes, Edges: edges}, nil
}

// DeleteGraph removes an owned graph and everything in it
func (s *GraphService) DeleteGraph(ctx context.Context, graphID, userID string) error {
	graph, err := s.authorizer.AuthorizeGraph(ctx, graphID, userID)
	if err != nil {
		return err
	}
	if err := s.graphs.Delete(ctx, graph.ID); err != nil {
		return err
	}

	s.logger.Info("Graph deleted",
		zap.String("graphID", graph.ID),
		zap.String("userID", userID),
	)
	return nil
}
