package graph

// View modes for a graph fetch.
const (
	ViewModeGlobal  = "global"
	ViewModeChapter = "chapter"
)

// ValidViewMode reports whether mode is a supported fetch scope.
func ValidViewMode(mode string) bool {
	return mode == ViewModeGlobal || mode == ViewModeChapter
}

// ChapterSummary is one entry of the chapter-scope selector.
type ChapterSummary struct {
	ID         string `json:"id"`
	ChapterNum int    `json:"chapter_num"`
	Title      string `json:"title"`
}
