package graph

import "strings"

// CategoryClass is the closed classification the renderer keys its palette
// on. Upstream categories are free text (often Chinese role labels), so
// classification is a pure substring check that collapses them into a
// small set of tiers.
type CategoryClass int

const (
	CategoryProtagonist CategoryClass = iota
	CategoryAntagonist
	CategorySupporting
	CategoryOther
)

// String returns a stable wire name for the class.
func (c CategoryClass) String() string {
	switch c {
	case CategoryProtagonist:
		return "protagonist"
	case CategoryAntagonist:
		return "antagonist"
	case CategorySupporting:
		return "supporting"
	}
	return "other"
}

var (
	protagonistHints = []string{"主角", "男主", "女主", "protagonist", "lead", "hero"}
	antagonistHints  = []string{"反派", "villain", "antagonist"}
	supportingHints  = []string{"配角", "supporting", "次要"}
)

// ClassifyCategory maps a free-text category label to its class.
func ClassifyCategory(category string) CategoryClass {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return CategoryOther
	}
	for _, h := range protagonistHints {
		if strings.Contains(c, h) {
			return CategoryProtagonist
		}
	}
	for _, h := range antagonistHints {
		if strings.Contains(c, h) {
			return CategoryAntagonist
		}
	}
	for _, h := range supportingHints {
		if strings.Contains(c, h) {
			return CategorySupporting
		}
	}
	return CategoryOther
}
