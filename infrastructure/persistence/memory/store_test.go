package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hampusfredrik/mindmap/domain/core/entities"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

func seed(t *testing.T) (*Store, *entities.Graph, *entities.Node, *entities.Node, *entities.Edge) {
	t.Helper()
	ctx := context.Background()
	s := NewStore()
	repos := s.Repositories()

	g, err := entities.NewGraph("u1", "Trip Plan")
	require.NoError(t, err)
	require.NoError(t, repos.Graphs.Create(ctx, g))

	n1, _ := entities.NewNode(g.ID, "Start", 0, 0, nil)
	n2, _ := entities.NewNode(g.ID, "End", 100, 100, nil)
	require.NoError(t, repos.Nodes.Create(ctx, n1))
	require.NoError(t, repos.Nodes.Create(ctx, n2))

	e, _ := entities.NewEdge(g.ID, n1.ID, n2.ID, nil)
	require.NoError(t, repos.Edges.Create(ctx, e))
	return s, g, n1, n2, e
}

func TestNodeRepository_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s, _, n1, _, _ := seed(t)
	repo := s.Repositories().Nodes

	t.Run("Should apply when the stamp matches", func(t *testing.T) {
		current, err := repo.GetByID(ctx, n1.ID)
		require.NoError(t, err)
		x := 50.0

		updated, err := repo.Update(ctx, n1.ID, entities.NodePatch{X: &x}, &current.UpdatedAt)
		require.NoError(t, err)

		stored, _ := repo.GetByID(ctx, n1.ID)
		assert.Equal(t, 50.0, stored.X)
		assert.Equal(t, updated.UpdatedAt, stored.UpdatedAt)
		assert.True(t, stored.UpdatedAt.After(current.UpdatedAt))
	})

	t.Run("Should refuse a stale stamp and keep the record", func(t *testing.T) {
		before, _ := repo.GetByID(ctx, n1.ID)
		staleStamp := n1.UpdatedAt
		title := "Hacked"

		_, err := repo.Update(ctx, n1.ID, entities.NodePatch{Title: &title}, &staleStamp)

		assert.True(t, pkgerrors.IsConflict(err))
		after, _ := repo.GetByID(ctx, n1.ID)
		assert.Equal(t, before, after)
	})

	t.Run("Should apply unconditionally without a stamp", func(t *testing.T) {
		title := "Begin"
		updated, err := repo.Update(ctx, n1.ID, entities.NodePatch{Title: &title}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Begin", updated.Title)
	})

	t.Run("Should reject updates to missing nodes", func(t *testing.T) {
		_, err := repo.Update(ctx, "ghost", entities.NodePatch{}, nil)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestNodeRepository_UpdateMergesStoredFields(t *testing.T) {
	ctx := context.Background()
	s, g, n1, _, _ := seed(t)
	repo := s.Repositories().Nodes

	t.Run("Should keep both fields written from one snapshot", func(t *testing.T) {
		x, title := 42.0, "Renamed"

		_, err := repo.Update(ctx, n1.ID, entities.NodePatch{X: &x}, nil)
		require.NoError(t, err)
		_, err = repo.Update(ctx, n1.ID, entities.NodePatch{Title: &title}, nil)
		require.NoError(t, err)

		stored, _ := repo.GetByID(ctx, n1.ID)
		assert.Equal(t, 42.0, stored.X)
		assert.Equal(t, "Renamed", stored.Title)
		assert.Equal(t, g.ID, stored.GraphID)
		assert.Equal(t, n1.CreatedAt, stored.CreatedAt)
	})

	t.Run("Should advance the stamp when the clock steps back", func(t *testing.T) {
		before, _ := repo.GetByID(ctx, n1.ID)
		prev := entities.Clock
		entities.Clock = func() time.Time { return before.UpdatedAt.Add(-time.Hour) }
		t.Cleanup(func() { entities.Clock = prev })
		y := 7.0

		updated, err := repo.Update(ctx, n1.ID, entities.NodePatch{Y: &y}, &before.UpdatedAt)
		require.NoError(t, err)

		assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))
	})
}

func TestEdgeRepository_Update(t *testing.T) {
	ctx := context.Background()
	s, _, n1, n2, e := seed(t)
	repo := s.Repositories().Edges
	detail := "by train"

	updated, err := repo.Update(ctx, e.ID, entities.EdgePatch{Detail: &detail}, &e.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, "by train", *updated.Detail)
	assert.Equal(t, n1.ID, updated.SourceNodeID)
	assert.Equal(t, n2.ID, updated.TargetNodeID)

	_, err = repo.Update(ctx, e.ID, entities.EdgePatch{Detail: &detail}, &e.UpdatedAt)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestNodeRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s, g, n1, n2, e := seed(t)
	repos := s.Repositories()

	loop, _ := entities.NewEdge(g.ID, n2.ID, n2.ID, nil)
	require.NoError(t, repos.Edges.Create(ctx, loop))

	require.NoError(t, repos.Nodes.Delete(ctx, n1.ID))

	_, err := repos.Edges.GetByID(ctx, e.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = repos.Edges.GetByID(ctx, loop.ID)
	assert.NoError(t, err)

	err = repos.Nodes.Delete(ctx, n1.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGraphRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s, g, n1, _, e := seed(t)
	repos := s.Repositories()

	require.NoError(t, repos.Graphs.Delete(ctx, g.ID))

	_, err := repos.Nodes.GetByID(ctx, n1.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = repos.Edges.GetByID(ctx, e.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	graphs, err := repos.Graphs.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, graphs)
}

func TestEdgeRepository_CreateChecksEndpoints(t *testing.T) {
	ctx := context.Background()
	s, g, n1, _, _ := seed(t)
	repos := s.Repositories()

	other, _ := entities.NewGraph("u1", "Other")
	require.NoError(t, repos.Graphs.Create(ctx, other))
	foreign, _ := entities.NewNode(other.ID, "Elsewhere", 0, 0, nil)
	require.NoError(t, repos.Nodes.Create(ctx, foreign))

	e, _ := entities.NewEdge(g.ID, n1.ID, foreign.ID, nil)
	assert.True(t, pkgerrors.IsValidation(repos.Edges.Create(ctx, e)))
}

func TestGetWithGraph(t *testing.T) {
	ctx := context.Background()
	s, g, n1, _, e := seed(t)
	repos := s.Repositories()

	nwg, err := repos.Nodes.GetWithGraph(ctx, n1.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, nwg.Graph.ID)
	assert.Equal(t, "u1", nwg.Graph.OwnerID)

	ewg, err := repos.Edges.GetWithGraph(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, ewg.Graph.ID)
}

func TestListByOwner_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Repositories().Graphs

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		g := &entities.Graph{ID: title, OwnerID: "u1", Title: title, CreatedAt: base.Add(offsets[i])}
		require.NoError(t, repo.Create(ctx, g))
	}
	require.NoError(t, repo.Create(ctx, &entities.Graph{ID: "x", OwnerID: "u2", Title: "x", CreatedAt: base}))

	graphs, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, graphs, 3)
	assert.Equal(t, "new", graphs[0].Title)
	assert.Equal(t, "mid", graphs[1].Title)
	assert.Equal(t, "old", graphs[2].Title)
}

func TestConcurrentConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	s, _, n1, _, _ := seed(t)
	repo := s.Repositories().Nodes

	start, _ := repo.GetByID(ctx, n1.ID)
	expected := start.UpdatedAt

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x := float64(i)
			_, err := repo.Update(ctx, start.ID, entities.NodePatch{X: &x}, &expected)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.True(t, pkgerrors.IsConflict(err))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}
