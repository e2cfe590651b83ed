// Package handlers implements the query handlers behind the query bus.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storygraph/application/ports"
	"storygraph/application/queries"
	"storygraph/application/queries/bus"
)

// GetRelationGraphHandler resolves GetRelationGraphQuery against the
// configured graph source.
type GetRelationGraphHandler struct {
	source ports.GraphSource
	logger *zap.Logger
}

// NewGetRelationGraphHandler creates the handler.
func NewGetRelationGraphHandler(source ports.GraphSource, logger *zap.Logger) *GetRelationGraphHandler {
	return &GetRelationGraphHandler{source: source, logger: logger}
}

// Handle fetches and normalizes the relation graph.
func (h *GetRelationGraphHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetRelationGraphQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	g, err := h.source.FetchRelationGraph(ctx, q.ProjectID, q.ViewMode, q.ChapterID)
	if err != nil {
		h.logger.Error("relation graph fetch failed",
			zap.String("projectID", q.ProjectID),
			zap.String("viewMode", q.ViewMode),
			zap.Error(err),
		)
		return nil, err
	}

	g.Normalize()
	return g, nil
}
