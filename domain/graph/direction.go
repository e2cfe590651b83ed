package graph

import "strings"

// Relation labels carry the direction implicitly: symmetric relations
// ("夫妻", "朋友", "同事") read the same both ways, role relations
// ("父", "上司", "老师") read one way. The tables below are a compact
// port of the upstream extractor's keyword rules, kept bilingual so
// imported English projects classify too.

var bidirectionalHints = []string{
	"夫妻", "配偶", "伴侣", "恋人", "情侣", "情人",
	"朋友", "好友", "闺蜜", "挚友", "密友", "发小",
	"同学", "同桌", "同事", "室友", "校友", "同乡",
	"网友", "队友", "战友", "搭档", "盟友", "同盟",
	"合伙人", "合作伙伴", "兄弟", "姐妹", "兄妹", "姐弟",
	"对手", "敌人", "宿敌", "死对头", "竞争对手",
	"spouse", "partner", "friend", "colleague", "classmate",
	"roommate", "rival", "enemy", "ally", "sibling",
}

var directedHints = []string{
	"父", "母", "祖", "孙", "伯", "叔", "姑", "舅", "姨", "侄", "甥",
	"岳", "婿", "监护人", "上级", "下级", "上司", "下属",
	"老板", "员工", "雇主", "雇员", "客户", "供应商",
	"导师", "老师", "学生", "师徒", "医生", "患者",
	"parent", "father", "mother", "child", "boss", "employee",
	"teacher", "student", "mentor", "doctor", "patient",
}

// InferDirection classifies a free-text relation label as directed or
// bidirectional. Unclassified labels read as directed; an edge only
// widens to bidirectional on an explicit symmetric hint (or, at the
// source level, a reciprocal row).
func InferDirection(label string) Direction {
	d, _ := MatchDirection(label)
	return d
}

// MatchDirection classifies a label and reports whether any hint
// matched. When a label carries hints from both tables the directed
// reading wins ("养父的朋友" style compounds name a role first).
func MatchDirection(label string) (Direction, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	directed := containsAny(l, directedHints)
	symmetric := containsAny(l, bidirectionalHints)
	switch {
	case directed:
		return DirectionDirected, true
	case symmetric:
		return DirectionBidirectional, true
	}
	return DirectionDirected, false
}

// SymmetricLabelIn returns the first symmetric relation word contained
// in the text, if any. Used by content inference as a last-resort rule:
// a paragraph naming two characters and a clearly mutual relation word
// supports a bidirectional edge.
func SymmetricLabelIn(text string) (string, bool) {
	l := strings.ToLower(text)
	for _, h := range bidirectionalHints {
		if strings.Contains(l, h) {
			return h, true
		}
	}
	return "", false
}

func containsAny(text string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}
