// Package handlers implements the REST endpoints.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storygraph/application/queries"
	querybus "storygraph/application/queries/bus"
	"storygraph/pkg/common"
	pkgerrors "storygraph/pkg/errors"
)

// GraphHandler serves the non-interactive graph reads: the raw relation
// graph for detail panels and the chapter list for the scope selector.
type GraphHandler struct {
	queryBus *querybus.QueryBus
	logger   *zap.Logger
	errors   *pkgerrors.ErrorHandler
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(queryBus *querybus.QueryBus, logger *zap.Logger, errors *pkgerrors.ErrorHandler) *GraphHandler {
	return &GraphHandler{queryBus: queryBus, logger: logger, errors: errors}
}

// GetRelationGraph handles GET /projects/{projectID}/graph.
func (h *GraphHandler) GetRelationGraph(w http.ResponseWriter, r *http.Request) {
	query := queries.GetRelationGraphQuery{
		ProjectID: chi.URLParam(r, "projectID"),
		ViewMode:  r.URL.Query().Get("view_mode"),
		ChapterID: r.URL.Query().Get("chapter_id"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ListChapters handles GET /projects/{projectID}/chapters.
func (h *GraphHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	query := queries.ListChaptersQuery{
		ProjectID: chi.URLParam(r, "projectID"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
