// Package queries defines the engine's read-side query types.
package queries

import (
	pkgerrors "storygraph/pkg/errors"

	"storygraph/domain/graph"
)

// GetRelationGraphQuery fetches a project's relation graph, optionally
// scoped to one chapter.
type GetRelationGraphQuery struct {
	ProjectID string
	ViewMode  string
	ChapterID string
}

// Validate checks the query parameters.
func (q GetRelationGraphQuery) Validate() error {
	if q.ProjectID == "" {
		return pkgerrors.NewValidationError("project id cannot be empty")
	}
	if q.ViewMode != "" && !graph.ValidViewMode(q.ViewMode) {
		return pkgerrors.NewValidationError("view mode must be global or chapter")
	}
	return nil
}
