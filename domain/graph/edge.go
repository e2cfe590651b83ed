package graph

// Direction describes how a relation reads between its endpoints.
type Direction string

const (
	DirectionDirected      Direction = "directed"
	DirectionBidirectional Direction = "bidirectional"
)

// Provenance records how an edge was derived by the upstream extractor.
type Provenance string

const (
	ProvenanceExplicit Provenance = "explicit"
	ProvenanceIdentity Provenance = "identity_inferred"
	ProvenanceContent  Provenance = "content_inferred"
)

// Evidence is one supporting snippet for an inferred relation.
type Evidence struct {
	ChapterNum   int    `json:"chapter_num"`
	ChapterTitle string `json:"chapter_title,omitempty"`
	Snippet      string `json:"snippet"`
}

// Edge is a normalized relation record. Source and Target must reference
// nodes present in the same RelationGraph; an edge is only rendered when
// both endpoints are in the currently visible node set.
type Edge struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Target         string     `json:"target"`
	Type           string     `json:"type"`
	Description    string     `json:"description,omitempty"`
	Direction      Direction  `json:"direction"`
	RelationSource Provenance `json:"relation_source"`
	Evidence       []Evidence `json:"evidence,omitempty"`

	// Chapter provenance: first and last chapter the relation appears in,
	// plus chapters where the relation label changed.
	FirstChapterNum   int    `json:"first_chapter_num,omitempty"`
	FirstChapterTitle string `json:"first_chapter_title,omitempty"`
	LastChapterNum    int    `json:"last_chapter_num,omitempty"`
	LastChapterTitle  string `json:"last_chapter_title,omitempty"`
	ChangeChapterNums []int  `json:"change_chapter_nums,omitempty"`
}

// Touches reports whether the edge is incident to the given node.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Other returns the endpoint opposite to nodeID, or "" when the edge does
// not touch nodeID.
func (e Edge) Other(nodeID string) string {
	switch nodeID {
	case e.Source:
		return e.Target
	case e.Target:
		return e.Source
	}
	return ""
}
