// Package ports defines the read-only collaborator interfaces the engine
// consumes. The engine performs no writes and holds no server-side state;
// retry and backoff are the collaborator's concern, not ours.
package ports

import (
	"context"

	"storygraph/domain/graph"
)

// GraphSource fetches the relation graph for a project, either globally
// or scoped to a single chapter.
type GraphSource interface {
	FetchRelationGraph(ctx context.Context, projectID, viewMode, chapterID string) (*graph.RelationGraph, error)
}

// ChapterSource lists a project's chapters, ordered by chapter number.
// Used only to populate the chapter-scope selector.
type ChapterSource interface {
	ListChapters(ctx context.Context, projectID string) ([]graph.ChapterSummary, error)
}
