package render

import "storygraph/domain/graph"

// Node fill palette, indexed by category class.
var nodePalette = map[graph.CategoryClass]string{
	graph.CategoryProtagonist: "#5b8ff9",
	graph.CategoryAntagonist:  "#e8684a",
	graph.CategorySupporting:  "#5ad8a6",
	graph.CategoryOther:       "#9d7bd8",
}

// Edge stroke colors.
const (
	edgeColor          = "#8c9bb5"
	edgeHighlightColor = "#f6bd16"
)

// NodeColor returns the fill color for a node's category.
func NodeColor(category string) string {
	return nodePalette[graph.ClassifyCategory(category)]
}
