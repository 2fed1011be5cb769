package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }

func frozenClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := Clock
	Clock = func() time.Time { return at }
	t.Cleanup(func() { Clock = prev })
}

func TestNextStamp(t *testing.T) {
	t.Run("Should advance past prev when the clock is frozen", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
		frozenClock(t, at)

		first := Now()
		second := NextStamp(first)

		assert.Equal(t, at.Truncate(time.Microsecond), first)
		assert.True(t, second.After(first))
		assert.Equal(t, time.Microsecond, second.Sub(first))
	})

	t.Run("Should use the clock when it has moved on", func(t *testing.T) {
		prev := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		at := prev.Add(time.Second)
		frozenClock(t, at)

		assert.Equal(t, at, NextStamp(prev))
	})

	t.Run("Should stamp in UTC at microsecond precision", func(t *testing.T) {
		loc := time.FixedZone("CEST", 2*60*60)
		frozenClock(t, time.Date(2024, 5, 1, 12, 0, 0, 999, loc))

		stamp := Now()

		assert.Equal(t, time.UTC, stamp.Location())
		assert.Zero(t, stamp.Nanosecond()%1000)
	})
}

func TestNewGraph(t *testing.T) {
	g, err := NewGraph("u1", "Trip Plan")
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.True(t, g.IsOwnedBy("u1"))
	assert.False(t, g.IsOwnedBy("u2"))
	assert.False(t, g.IsOwnedBy(""))

	_, err = NewGraph("u1", "   ")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewGraph("", "Trip Plan")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewNode(t *testing.T) {
	n, err := NewNode("g1", "Start", 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	_, err = NewNode("g1", " \t\n", 0, 0, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewNode("", "Start", 0, 0, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNodeApply(t *testing.T) {
	n, err := NewNode("g1", "Start", 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	t.Run("Should merge only present fields", func(t *testing.T) {
		next := n.Apply(NodePatch{Detail: strPtr("x")})

		assert.Equal(t, "Start", next.Title)
		assert.Equal(t, 0.0, next.X)
		assert.Equal(t, 0.0, next.Y)
		require.NotNil(t, next.Detail)
		assert.Equal(t, "x", *next.Detail)
		assert.True(t, next.UpdatedAt.After(n.UpdatedAt))
		assert.Equal(t, n.CreatedAt, next.CreatedAt)
	})

	t.Run("Should leave the receiver untouched", func(t *testing.T) {
		before := *n
		_ = n.Apply(NodePatch{Title: strPtr("End"), X: floatPtr(5), Y: floatPtr(6)})
		assert.Equal(t, before, *n)
	})

	t.Run("Should restamp an empty patch", func(t *testing.T) {
		next := n.Apply(NodePatch{})
		assert.True(t, next.UpdatedAt.After(n.UpdatedAt))
	})
}

func TestEdge(t *testing.T) {
	e, err := NewEdge("g1", "n1", "n2", nil)
	require.NoError(t, err)

	assert.True(t, e.Touches("n1"))
	assert.True(t, e.Touches("n2"))
	assert.False(t, e.Touches("n3"))

	next := e.Apply(EdgePatch{Detail: strPtr("depends on")})
	assert.Equal(t, "depends on", *next.Detail)
	assert.Nil(t, e.Detail)
	assert.True(t, next.UpdatedAt.After(e.UpdatedAt))

	_, err = NewEdge("g1", "", "n2", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}
