package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// Node is a titled, positioned point inside a graph
type Node struct {
	ID        string    `json:"id"`
	GraphID   string    `json:"graphId"`
	Title     string    `json:"title"`
	Detail    *string   `json:"detail,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewNode creates a node in graphID
func NewNode(graphID, title string, x, y float64, detail *string) (*Node, error) {
	if graphID == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	if strings.TrimSpace(title) == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}

	now := Now()
	return &Node{
		ID:        uuid.New().String(),
		GraphID:   graphID,
		Title:     title,
		Detail:    detail,
		X:         x,
		Y:         y,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NodePatch holds the fields of a partial node update. Nil means unchanged.
type NodePatch struct {
	Title  *string
	Detail *string
	X      *float64
	Y      *float64
}

// Apply returns a copy of n with the patch merged and a fresh updatedAt.
// The receiver is left untouched. Backends call it on the stored record at
// write time, so fields the patch leaves out keep their stored values.
func (n *Node) Apply(p NodePatch) *Node {
	next := *n
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Detail != nil {
		detail := *p.Detail
		next.Detail = &detail
	}
	if p.X != nil {
		next.X = *p.X
	}
	if p.Y != nil {
		next.Y = *p.Y
	}
	next.UpdatedAt = NextStamp(n.UpdatedAt)
	return &next
}

// NodeWithGraph is a node resolved together with its owning graph
type NodeWithGraph struct {
	Node  *Node
	Graph *Graph
}
