package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// Edge is a directed connection between two nodes of the same graph
type Edge struct {
	ID           string    `json:"id"`
	GraphID      string    `json:"graphId"`
	SourceNodeID string    `json:"sourceNodeId"`
	TargetNodeID string    `json:"targetNodeId"`
	Detail       *string   `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewEdge creates an edge in graphID. Endpoint membership is checked by the
// caller, which has the nodes at hand.
func NewEdge(graphID, sourceNodeID, targetNodeID string, detail *string) (*Edge, error) {
	if graphID == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	if sourceNodeID == "" || targetNodeID == "" {
		return nil, pkgerrors.NewValidationError("edge endpoints cannot be empty")
	}

	now := Now()
	return &Edge{
		ID:           uuid.New().String(),
		GraphID:      graphID,
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
		Detail:       detail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Touches reports whether nodeID is either endpoint of the edge
func (e *Edge) Touches(nodeID string) bool {
	return e.SourceNodeID == nodeID || e.TargetNodeID == nodeID
}

// EdgePatch holds the fields of a partial edge update
type EdgePatch struct {
	Detail *string
}

// Apply returns a copy of e with the patch merged and a fresh updatedAt
func (e *Edge) Apply(p EdgePatch) *Edge {
	next := *e
	if p.Detail != nil {
		detail := *p.Detail
		next.Detail = &detail
	}
	next.UpdatedAt = NextStamp(e.UpdatedAt)
	return &next
}

// EdgeWithGraph is an edge resolved together with its owning graph
type EdgeWithGraph struct {
	Edge  *Edge
	Graph *Graph
}
