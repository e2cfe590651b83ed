// Package httpsource fetches the relation graph from the agent service
// over plain HTTP. Requests are single-shot: retry and backoff are a
// non-goal here and belong to the caller's collaborator, not the engine.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"storygraph/domain/graph"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

const defaultTimeout = 15 * time.Second

// Client talks to the agent's graph endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewClient creates a client for the agent service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, metrics *observability.Collector) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("httpsource"),
		metrics: metrics,
	}
}

// FetchRelationGraph calls GET /api/graph/relations.
func (c *Client) FetchRelationGraph(ctx context.Context, projectID, viewMode, chapterID string) (*graph.RelationGraph, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveFetch("http", "relation_graph", time.Since(start))
		}
	}()

	if strings.TrimSpace(projectID) == "" {
		return nil, pkgerrors.NewValidationError("project id cannot be empty")
	}

	q := url.Values{}
	q.Set("project_id", projectID)
	if viewMode != "" {
		q.Set("view_mode", viewMode)
	}
	if chapterID != "" {
		q.Set("chapter_id", chapterID)
	}

	var g graph.RelationGraph
	if err := c.getJSON(ctx, "/api/graph/relations", q, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListChapters calls GET /api/chapters/.
func (c *Client) ListChapters(ctx context.Context, projectID string) ([]graph.ChapterSummary, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveFetch("http", "chapters", time.Since(start))
		}
	}()

	if strings.TrimSpace(projectID) == "" {
		return nil, pkgerrors.NewValidationError("project id cannot be empty")
	}

	q := url.Values{}
	q.Set("project_id", projectID)

	var chapters []graph.ChapterSummary
	if err := c.getJSON(ctx, "/api/chapters/", q, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return pkgerrors.NewInternalError("build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("agent request failed", zap.String("path", path), zap.Error(err))
		return pkgerrors.NewExternalError("agent", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Agent 404s carry a detail message; the resource name is enough
		// for the caller.
		io.Copy(io.Discard, resp.Body)
		return pkgerrors.NewNotFoundError("graph resource")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.NewExternalError("agent",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.NewExternalError("agent", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
