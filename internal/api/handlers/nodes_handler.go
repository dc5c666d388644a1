package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/engine/internal/api/types"
	"github.com/learnhub/engine/internal/services"
)

// NodesHandler serves the hierarchical node collections.
type NodesHandler struct {
	nodes services.NodeService
}

func NewNodesHandler(nodes services.NodeService) *NodesHandler {
	return &NodesHandler{nodes: nodes}
}

func (h *NodesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.NodeCreateRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.nodes.CreateNode(r.Context(), chi.URLParam(r, "collection"), &services.CreateNodeInput{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
		ParentNodes: req.ParentNodes,
		ChildNodes:  req.ChildNodes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "created", n)
}

func (h *NodesHandler) List(w http.ResponseWriter, r *http.Request) {
	archived, err := queryBool(r, "archived")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.nodes.ListNodes(r.Context(), chi.URLParam(r, "collection"), &services.NodeFilters{
		Archived: archived,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page == 0 {
		page = 1
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    items,
		Meta:    &types.Meta{Page: page, PageSize: size, Total: total},
	})
}

func (h *NodesHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.nodes.GetNode(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", n)
}

func (h *NodesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req types.NodeUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.nodes.UpdateNode(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), &services.UpdateNodeInput{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
		ParentNodes: req.ParentNodes,
		ChildNodes:  req.ChildNodes,
		IsArchived:  req.IsArchived,
		Version:     req.Version,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "updated", n)
}

// Delete removes one node and every reference to it. ?soft=true keeps the
// row but hides it from reads.
func (h *NodesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	soft, err := queryBool(r, "soft")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.nodes.DeleteNode(r.Context(), chi.URLParam(r, "collection"), id, soft != nil && *soft); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "deleted", map[string]string{"uuid": id})
}

func (h *NodesHandler) DeleteTree(w http.ResponseWriter, r *http.Request) {
	soft, err := queryBool(r, "soft")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := h.nodes.DeleteTree(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), soft != nil && *soft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "deleted", map[string]any{"deleted": ids})
}

func (h *NodesHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.nodes.GetProgress(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), r.URL.Query().Get("learner_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", p)
}
