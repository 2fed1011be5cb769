package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// CreateEdgeCommand connects two nodes of an owned graph
type CreateEdgeCommand struct {
	UserID       string
	GraphID      string
	SourceNodeID string
	TargetNodeID string
	Detail       *string
}

// UpdateEdgeCommand carries a partial edge update
type UpdateEdgeCommand struct {
	UserID    string
	EdgeID    string
	Detail    *string
	UpdatedAt *time.Time
}

// EdgeService handles edge mutations
type EdgeService struct {
	nodes      ports.NodeRepository
	edges      ports.EdgeRepository
	authorizer *Authorizer
	logger     *zap.Logger
}

// NewEdgeService creates a new edge service
func NewEdgeService(
	nodes ports.NodeRepository,
	edges ports.EdgeRepository,
	authorizer *Authorizer,
	logger *zap.Logger,
) *EdgeService {
	return &EdgeService{
		nodes:      nodes,
		edges:      edges,
		authorizer: authorizer,
		logger:     logger,
	}
}

// CreateEdge connects two nodes. Both endpoints must already be nodes of the
// edge's graph; an edge from a node to itself is allowed.
func (s *EdgeService) CreateEdge(ctx context.Context, cmd CreateEdgeCommand) (*entities.Edge, error) {
	if err := requireCaller(cmd.UserID); err != nil {
		return nil, err
	}
	graph, err := s.authorizer.AuthorizeGraph(ctx, cmd.GraphID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	var violations []pkgerrors.FieldViolation
	endpoints := []struct{ field, id string }{
		{"sourceNodeId", cmd.SourceNodeID},
		{"targetNodeId", cmd.TargetNodeID},
	}
	for _, ep := range endpoints {
		ok, err := s.nodeInGraph(ctx, ep.id, graph.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			violations = append(violations, pkgerrors.FieldViolation{
				Field:   ep.field,
				Message: ep.field + " must reference a node in the same graph",
			})
		}
	}
	if len(violations) > 0 {
		return nil, pkgerrors.NewInvalidInputError(violations)
	}

	edge, err := entities.NewEdge(graph.ID, cmd.SourceNodeID, cmd.TargetNodeID, cmd.Detail)
	if err != nil {
		return nil, err
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		return nil, err
	}

	s.logger.Info("Edge created",
		zap.String("edgeID", edge.ID),
		zap.String("graphID", graph.ID),
		zap.String("sourceNodeID", edge.SourceNodeID),
		zap.String("targetNodeID", edge.TargetNodeID),
		zap.String("userID", cmd.UserID),
	)
	return edge, nil
}

// UpdateEdge merges the present fields into an owned edge
func (s *EdgeService) UpdateEdge(ctx context.Context, cmd UpdateEdgeCommand) (*entities.Edge, error) {
	if err := requireCaller(cmd.UserID); err != nil {
		return nil, err
	}

	resolved, err := s.authorizer.AuthorizeEdge(ctx, cmd.EdgeID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	current := resolved.Edge
	if err := CheckFresh(current.UpdatedAt, cmd.UpdatedAt); err != nil {
		return nil, err
	}

	next, err := s.edges.Update(ctx, current.ID, entities.EdgePatch{Detail: cmd.Detail}, cmd.UpdatedAt)
	if err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, pkgerrors.NewConflictError(ConflictMessage).WithCause(err)
		}
		return nil, err
	}

	s.logger.Info("Edge updated",
		zap.String("edgeID", next.ID),
		zap.String("graphID", next.GraphID),
		zap.String("userID", cmd.UserID),
	)
	return next, nil
}

// DeleteEdge removes an owned edge
func (s *EdgeService) DeleteEdge(ctx context.Context, edgeID, userID string) error {
	resolved, err := s.authorizer.AuthorizeEdge(ctx, edgeID, userID)
	if err != nil {
		return err
	}
	if err := s.edges.Delete(ctx, resolved.Edge.ID); err != nil {
		return err
	}

	s.logger.Info("Edge deleted",
		zap.String("edgeID", resolved.Edge.ID),
		zap.String("graphID", resolved.Graph.ID),
		zap.String("userID", userID),
	)
	return nil
}

func (s *EdgeService) nodeInGraph(ctx context.Context, nodeID, graphID string) (bool, error) {
	if nodeID == "" {
		return false, nil
	}
	node, err := s.nodes.GetByID(ctx, nodeID)
	if pkgerrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return node.GraphID == graphID, nil
}
