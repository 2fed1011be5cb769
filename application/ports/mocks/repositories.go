// Package mocks provides testify mocks of the repository ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/domain/core/entities"
)

var (
	_ ports.GraphRepository = (*MockGraphRepository)(nil)
	_ ports.NodeRepository  = (*MockNodeRepository)(nil)
	_ ports.EdgeRepository  = (*MockEdgeRepository)(nil)
)

type MockGraphRepository struct {
	mock.Mock
}

func (m *MockGraphRepository) Create(ctx context.Context, graph *entities.Graph) error {
	args := m.Called(ctx, graph)
	return args.Error(0)
}

func (m *MockGraphRepository) GetByID(ctx context.Context, id string) (*entities.Graph, error) {
	args := m.Called(ctx, id)
	if g, ok := args.Get(0).(*entities.Graph); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGraphRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Graph, error) {
	args := m.Called(ctx, ownerID)
	if gs, ok := args.Get(0).([]*entities.Graph); ok {
		return gs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGraphRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockNodeRepository struct {
	mock.Mock
}

func (m *MockNodeRepository) Create(ctx context.Context, node *entities.Node) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

func (m *MockNodeRepository) GetByID(ctx context.Context, id string) (*entities.Node, error) {
	args := m.Called(ctx, id)
	if n, ok := args.Get(0).(*entities.Node); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNodeRepository) GetWithGraph(ctx context.Context, id string) (*entities.NodeWithGraph, error) {
	args := m.Called(ctx, id)
	if n, ok := args.Get(0).(*entities.NodeWithGraph); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNodeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Node, error) {
	args := m.Called(ctx, graphID)
	if ns, ok := args.Get(0).([]*entities.Node); ok {
		return ns, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNodeRepository) Update(ctx context.Context, id string, patch entities.NodePatch, expected *time.Time) (*entities.Node, error) {
	args := m.Called(ctx, id, patch, expected)
	if n, ok := args.Get(0).(*entities.Node); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNodeRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockEdgeRepository struct {
	mock.Mock
}

func (m *MockEdgeRepository) Create(ctx context.Context, edge *entities.Edge) error {
	args := m.Called(ctx, edge)
	return args.Error(0)
}

func (m *MockEdgeRepository) GetByID(ctx context.Context, id string) (*entities.Edge, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(*entities.Edge); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEdgeRepository) GetWithGraph(ctx context.Context, id string) (*entities.EdgeWithGraph, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(*entities.EdgeWithGraph); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEdgeRepository) ListByGraph(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	args := m.Called(ctx, graphID)
	if es, ok := args.Get(0).([]*entities.Edge); ok {
		return es, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEdgeRepository) Update(ctx context.Context, id string, patch entities.EdgePatch, expected *time.Time) (*entities.Edge, error) {
	args := m.Called(ctx, id, patch, expected)
	if e, ok := args.Get(0).(*entities.Edge); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEdgeRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
