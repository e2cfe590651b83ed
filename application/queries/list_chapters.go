package queries

import pkgerrors "storygraph/pkg/errors"

// ListChaptersQuery lists a project's chapters for the scope selector.
type ListChaptersQuery struct {
	ProjectID string
}

// Validate checks the query parameters.
func (q ListChaptersQuery) Validate() error {
	if q.ProjectID == "" {
		return pkgerrors.NewValidationError("project id cannot be empty")
	}
	return nil
}
