package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/services"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
	"github.com/Hampusfredrik/mindmap/pkg/utils"
)

// GraphHandler handles graph-related HTTP requests
type GraphHandler struct {
	graphs *services.GraphService
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graphs *services.GraphService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{graphs: graphs, errs: errs, logger: logger}
}

// CreateGraphRequest represents the request body for creating a graph
type CreateGraphRequest struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
}

// ListGraphs handles GET /graphs
func (h *GraphHandler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	graphs, err := h.graphs.ListGraphs(r.Context(), userID)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, graphs)
}

// CreateGraph handles POST /graphs
func (h *GraphHandler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req CreateGraphRequest
	decodeErr := decodeJSON(w, r, &req)
	if err := collectViolations(decodeErr, utils.ValidateStruct(req)); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	graph, err := h.graphs.CreateGraph(r.Context(), services.CreateGraphCommand{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, graph)
}

// GetGraph handles GET /graphs/{graphID}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	graphID, err := pathID(r, "graphID", "graph")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	contents, err := h.graphs.GetGraph(r.Context(), graphID, userID)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, contents)
}

// DeleteGraph handles DELETE /graphs/{graphID}
func (h *GraphHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	graphID, err := pathID(r, "graphID", "graph")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if err := h.graphs.DeleteGraph(r.Context(), graphID, userID); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, successResponse{Success: true})
}
