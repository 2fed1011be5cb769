package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/services"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
	"github.com/Hampusfredrik/mindmap/pkg/utils"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	edges  *services.EdgeService
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(edges *services.EdgeService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{edges: edges, errs: errs, logger: logger}
}

// CreateEdgeRequest represents the request body for creating an edge
type CreateEdgeRequest struct {
	GraphID      string  `json:"graphId" validate:"required"`
	SourceNodeID string  `json:"sourceNodeId" validate:"required"`
	TargetNodeID string  `json:"targetNodeId" validate:"required"`
	Detail       *string `json:"detail,omitempty" validate:"omitnil,max=10000"`
}

// UpdateEdgeRequest represents the request body for updating an edge
type UpdateEdgeRequest struct {
	Detail    *string `json:"detail,omitempty" validate:"omitnil,max=10000"`
	UpdatedAt *string `json:"updatedAt,omitempty"`
}

// CreateEdge handles POST /edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req CreateEdgeRequest
	decodeErr := decodeJSON(w, r, &req)
	if err := collectViolations(decodeErr, utils.ValidateStruct(req)); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	edge, err := h.edges.CreateEdge(r.Context(), services.CreateEdgeCommand{
		UserID:       userID,
		GraphID:      req.GraphID,
		SourceNodeID: req.SourceNodeID,
		TargetNodeID: req.TargetNodeID,
		Detail:       req.Detail,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, edge)
}

// UpdateEdge handles PUT /edges/{edgeID}
func (h *EdgeHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	edgeID, err := pathID(r, "edgeID", "edge")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req UpdateEdgeRequest
	decodeErr := decodeJSON(w, r, &req)
	updatedAt, stampErr := services.ParseTimestamp("updatedAt", req.UpdatedAt)
	if err := collectViolations(decodeErr, utils.ValidateStruct(req), stampErr); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	edge, err := h.edges.UpdateEdge(r.Context(), services.UpdateEdgeCommand{
		UserID:    userID,
		EdgeID:    edgeID,
		Detail:    req.Detail,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, edge)
}

// DeleteEdge handles DELETE /edges/{edgeID}
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	edgeID, err := pathID(r, "edgeID", "edge")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if err := h.edges.DeleteEdge(r.Context(), edgeID, userID); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, successResponse{Success: true})
}
