package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/services"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
	"github.com/Hampusfredrik/mindmap/pkg/utils"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	nodes  *services.NodeService
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(nodes *services.NodeService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{nodes: nodes, errs: errs, logger: logger}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	GraphID string   `json:"graphId" validate:"required"`
	Title   string   `json:"title" validate:"required,notblank,max=200"`
	X       *float64 `json:"x" validate:"required"`
	Y       *float64 `json:"y" validate:"required"`
	Detail  *string  `json:"detail,omitempty" validate:"omitnil,max=10000"`
}

// UpdateNodeRequest represents the request body for updating a node.
// Absent fields are left unchanged.
type UpdateNodeRequest struct {
	Title     *string  `json:"title,omitempty" validate:"omitnil,notblank,max=200"`
	Detail    *string  `json:"detail,omitempty" validate:"omitnil,max=10000"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	UpdatedAt *string  `json:"updatedAt,omitempty"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req CreateNodeRequest
	decodeErr := decodeJSON(w, r, &req)
	if err := collectViolations(decodeErr, utils.ValidateStruct(req)); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	node, err := h.nodes.CreateNode(r.Context(), services.CreateNodeCommand{
		UserID:  userID,
		GraphID: req.GraphID,
		Title:   req.Title,
		X:       *req.X,
		Y:       *req.Y,
		Detail:  req.Detail,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, node)
}

// UpdateNode handles PUT /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	nodeID, err := pathID(r, "nodeID", "node")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req UpdateNodeRequest
	decodeErr := decodeJSON(w, r, &req)
	updatedAt, stampErr := services.ParseTimestamp("updatedAt", req.UpdatedAt)
	if err := collectViolations(decodeErr, utils.ValidateStruct(req), stampErr); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	node, err := h.nodes.UpdateNode(r.Context(), services.UpdateNodeCommand{
		UserID:    userID,
		NodeID:    nodeID,
		Title:     req.Title,
		Detail:    req.Detail,
		X:         req.X,
		Y:         req.Y,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	nodeID, err := pathID(r, "nodeID", "node")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if err := h.nodes.DeleteNode(r.Context(), nodeID, userID); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, successResponse{Success: true})
}
