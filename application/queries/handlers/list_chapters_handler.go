package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storygraph/application/ports"
	"storygraph/application/queries"
	"storygraph/application/queries/bus"
)

// ListChaptersHandler resolves ListChaptersQuery against the chapter
// source.
type ListChaptersHandler struct {
	source ports.ChapterSource
	logger *zap.Logger
}

// NewListChaptersHandler creates the handler.
func NewListChaptersHandler(source ports.ChapterSource, logger *zap.Logger) *ListChaptersHandler {
	return &ListChaptersHandler{source: source, logger: logger}
}

// Handle lists the project's chapters.
func (h *ListChaptersHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ListChaptersQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	chapters, err := h.source.ListChapters(ctx, q.ProjectID)
	if err != nil {
		h.logger.Error("chapter list fetch failed",
			zap.String("projectID", q.ProjectID),
			zap.Error(err),
		)
		return nil, err
	}
	return chapters, nil
}
