package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// Graph is a user-owned mindmap. It never changes after creation.
type Graph struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewGraph creates a graph owned by ownerID
func NewGraph(ownerID, title string) (*Graph, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("ownerID cannot be empty")
	}
	if strings.TrimSpace(title) == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}

	return &Graph{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: Now(),
	}, nil
}

// IsOwnedBy reports whether userID owns the graph
func (g *Graph) IsOwnedBy(userID string) bool {
	return userID != "" && g.OwnerID == userID
}

// GraphContents is a graph together with everything inside it
type GraphContents struct {
	Graph *Graph  `json:"graph"`
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}
