package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// CreateNodeCommand adds a node to an owned graph
type CreateNodeCommand struct {
	UserID  string
	GraphID string
	Title   string
	X       float64
	Y       float64
	Detail  *string
}

// UpdateNodeCommand carries a partial node update. Nil fields stay as they are.
type UpdateNodeCommand struct {
	UserID    string
	NodeID    string
	Title     *string
	Detail    *string
	X         *float64
	Y         *float64
	UpdatedAt *time.Time
}

// NodeService handles node mutations
type NodeService struct {
	nodes      ports.NodeRepository
	authorizer *Authorizer
	logger     *zap.Logger
}

// NewNodeService creates a new node service
func NewNodeService(nodes ports.NodeRepository, authorizer *Authorizer, logger *zap.Logger) *NodeService {
	return &NodeService{nodes: nodes, authorizer: authorizer, logger: logger}
}

// CreateNode adds a node to a graph the caller owns
func (s *NodeService) CreateNode(ctx context.Context, cmd CreateNodeCommand) (*entities.Node, error) {
	if err := requireCaller(cmd.UserID); err != nil {
		return nil, err
	}
	graph, err := s.authorizer.AuthorizeGraph(ctx, cmd.GraphID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	node, err := entities.NewNode(graph.ID, cmd.Title, cmd.X, cmd.Y, cmd.Detail)
	if err != nil {
		return nil, err
	}
	if err := s.nodes.Create(ctx, node); err != nil {
		return nil, err
	}

	s.logger.Info("Node created",
		zap.String("nodeID", node.ID),
		zap.String("graphID", graph.ID),
		zap.String("userID", cmd.UserID),
	)
	return node, nil
}

// UpdateNode merges the present fields into an owned node
func (s *NodeService) UpdateNode(ctx context.Context, cmd UpdateNodeCommand) (*entities.Node, error) {
	if err := requireCaller(cmd.UserID); err != nil {
		return nil, err
	}
	if cmd.Title != nil && strings.TrimSpace(*cmd.Title) == "" {
		return nil, pkgerrors.NewInvalidInputError([]pkgerrors.FieldViolation{{
			Field: "title", Message: "title is required",
		}})
	}

	resolved, err := s.authorizer.AuthorizeNode(ctx, cmd.NodeID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	current := resolved.Node
	if err := CheckFresh(current.UpdatedAt, cmd.UpdatedAt); err != nil {
		return nil, err
	}

	next, err := s.nodes.Update(ctx, current.ID, entities.NodePatch{
		Title:  cmd.Title,
		Detail: cmd.Detail,
		X:      cmd.X,
		Y:      cmd.Y,
	}, cmd.UpdatedAt)
	if err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, pkgerrors.NewConflictError(ConflictMessage).WithCause(err)
		}
		return nil, err
	}

	s.logger.Info("Node updated",
		zap.String("nodeID", next.ID),
		zap.String("graphID", next.GraphID),
		zap.String("userID", cmd.UserID),
	)
	return next, nil
}

// DeleteNode removes an owned node and every edge touching it
func (s *NodeService) DeleteNode(ctx context.Context, nodeID, userID string) error {
	resolved, err := s.authorizer.AuthorizeNode(ctx, nodeID, userID)
	if err != nil {
		return err
	}
	if err := s.nodes.Delete(ctx, resolved.Node.ID); err != nil {
		return err
	}

	s.logger.Info("Node deleted",
		zap.String("nodeID", resolved.Node.ID),
		zap.String("graphID", resolved.Graph.ID),
		zap.String("userID", userID),
	)
	return nil
}

func requireCaller(userID string) error {
	if userID == "" {
		return pkgerrors.NewUnauthorizedError("")
	}
	return nil
}
