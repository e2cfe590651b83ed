package graph

import "strings"

// Stats summarizes a fetched relation graph.
type Stats struct {
	NodeCount     int `json:"node_count"`
	EdgeCount     int `json:"edge_count"`
	IsolatedCount int `json:"isolated_count"`
}

// ViewInfo describes the scope the graph was fetched for.
type ViewInfo struct {
	Mode         string `json:"mode"` // "global" or "chapter"
	ChapterID    string `json:"chapter_id,omitempty"`
	ChapterNum   int    `json:"chapter_num,omitempty"`
	ChapterTitle string `json:"chapter_title,omitempty"`
}

// RelationGraph is the normalized result of one graph fetch. It is
// replaced wholesale on every reload; nothing in it is mutated by the
// engine.
type RelationGraph struct {
	ProjectID   string   `json:"project_id"`
	ProjectName string   `json:"project_name,omitempty"`
	View        ViewInfo `json:"view"`
	Nodes       []Node   `json:"nodes"`
	Edges       []Edge   `json:"edges"`
	Stats       Stats    `json:"stats"`
}

// Empty reports whether the graph has no nodes.
func (g *RelationGraph) Empty() bool {
	return len(g.Nodes) == 0
}

// NodeByID returns the node with the given id, if present.
func (g *RelationGraph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// EdgeByID returns the edge with the given id, if present.
func (g *RelationGraph) EdgeByID(id string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// Normalize recomputes stats and drops edges whose endpoints are missing
// from the node set. Sources are expected to deliver consistent data, but
// the engine never renders a dangling edge.
func (g *RelationGraph) Normalize() {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}

	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if _, ok := ids[e.Source]; !ok {
			continue
		}
		if _, ok := ids[e.Target]; !ok {
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept

	isolated := 0
	for _, n := range g.Nodes {
		if n.Degree == 0 {
			isolated++
		}
	}
	g.Stats = Stats{
		NodeCount:     len(g.Nodes),
		EdgeCount:     len(g.Edges),
		IsolatedCount: isolated,
	}
}

// Filter returns the subset of nodes matching the query (case-insensitive
// substring over label or category) and the subset of edges whose both
// endpoints remain visible. An empty query keeps everything.
func (g *RelationGraph) Filter(query string) ([]Node, []Edge) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return g.Nodes, g.Edges
	}

	visible := make(map[string]struct{})
	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if strings.Contains(strings.ToLower(n.Label), q) ||
			strings.Contains(strings.ToLower(n.Category), q) {
			nodes = append(nodes, n)
			visible[n.ID] = struct{}{}
		}
	}

	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if _, ok := visible[e.Source]; !ok {
			continue
		}
		if _, ok := visible[e.Target]; !ok {
			continue
		}
		edges = append(edges, e)
	}
	return nodes, edges
}

// RelatedSet returns the ids of nodeID plus every visible neighbour, i.e.
// both endpoints of every visible edge touching nodeID. This drives
// renderer dimming and the detail panel's related-relations list.
func RelatedSet(nodeID string, edges []Edge) map[string]struct{} {
	related := map[string]struct{}{nodeID: {}}
	for _, e := range edges {
		if e.Touches(nodeID) {
			related[e.Source] = struct{}{}
			related[e.Target] = struct{}{}
		}
	}
	return related
}
