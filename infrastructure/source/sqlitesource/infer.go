package sqlitesource

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"storygraph/domain/graph"
)

// relWordPattern captures a relation word after "X的", stopping at
// punctuation so "沈倦的父亲，早年……" yields just 父亲.
const relWordPattern = `([^，。！？；、\s]{1,12})`

// inferIdentityEdges derives relations from character identity text: a
// character whose identity reads "沈倦的父亲" gets a directed 父亲 edge
// to 沈倦 even when no relation row was ever entered. Only relation
// words the direction tables recognize produce an edge.
func inferIdentityEdges(nodes []graph.Node, identities map[string]string, explicitPairs map[string]struct{}) []graph.Edge {
	type mention struct {
		id      string
		name    string
		pattern *regexp.Regexp
	}
	mentions := make([]mention, 0, len(nodes))
	for _, n := range nodes {
		if n.Label == "" {
			continue
		}
		mentions = append(mentions, mention{
			id:      n.ID,
			name:    n.Label,
			pattern: regexp.MustCompile(regexp.QuoteMeta(n.Label) + `的([^，。；、\s]{1,14})`),
		})
	}
	// Longer names first so 林晚晚 is not shadowed by 林晚.
	sort.SliceStable(mentions, func(i, j int) bool { return len(mentions[i].name) > len(mentions[j].name) })

	seen := make(map[string]struct{})
	var edges []graph.Edge
	for _, owner := range nodes {
		identity := identities[owner.ID]
		if strings.TrimSpace(identity) == "" {
			continue
		}
		for _, m := range mentions {
			if m.id == owner.ID || !strings.Contains(identity, m.name) {
				continue
			}
			pair := pairKey(owner.ID, m.id)
			if _, ok := explicitPairs[pair]; ok {
				continue
			}
			sub := m.pattern.FindStringSubmatch(identity)
			if sub == nil {
				continue
			}
			rel := strings.TrimSpace(sub[1])
			direction, known := graph.MatchDirection(rel)
			if rel == "" || !known {
				continue
			}
			norm := normalizeRelationType(rel)
			key := pair + "\x00" + norm
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			edges = append(edges, graph.Edge{
				ID:             "infer:" + owner.ID + ":" + m.id + ":" + norm,
				Source:         owner.ID,
				Target:         m.id,
				Type:           rel,
				Description:    clip("身份推断："+owner.Label+"是"+m.name+"的"+rel+"。", descriptionClipLimit),
				Direction:      direction,
				RelationSource: graph.ProvenanceIdentity,
			})
		}
	}
	return edges
}

// paragraphRow is one chapter paragraph with its chapter placement.
type paragraphRow struct {
	chapterID  string
	chapterNum int
	title      string
	paraIndex  int
	content    string
}

// paragraphScanLimit bounds the content scan so huge manuscripts do not
// dominate a fetch; it grows with the cast size.
func paragraphScanLimit(characterCount int) int {
	limit := characterCount * 20
	if limit < 240 {
		limit = 240
	}
	if limit > 2000 {
		limit = 2000
	}
	return limit
}

// contentTracking records where content inference saw each relation, for
// chapter provenance and change detection.
type contentTracking struct {
	// relChapters: pair+type → chapters the exact relation was seen in.
	relChapters map[string]map[int]struct{}
	// pairChapterTypes: pair → chapter → relation words seen there.
	pairChapterTypes map[string]map[int]map[string]struct{}
}

func newContentTracking() *contentTracking {
	return &contentTracking{
		relChapters:      make(map[string]map[int]struct{}),
		pairChapterTypes: make(map[string]map[int]map[string]struct{}),
	}
}

func (t *contentTracking) record(pair, typeNorm, relType string, chapterNum int) {
	if chapterNum <= 0 {
		return
	}
	relKey := pair + "\x00" + typeNorm
	if t.relChapters[relKey] == nil {
		t.relChapters[relKey] = make(map[int]struct{})
	}
	t.relChapters[relKey][chapterNum] = struct{}{}

	if t.pairChapterTypes[pair] == nil {
		t.pairChapterTypes[pair] = make(map[int]map[string]struct{})
	}
	if t.pairChapterTypes[pair][chapterNum] == nil {
		t.pairChapterTypes[pair][chapterNum] = make(map[string]struct{})
	}
	t.pairChapterTypes[pair][chapterNum][relType] = struct{}{}
}

// inferContentRelation matches one paragraph against the phrasing rules
// for a pair of names. It returns the relation word, its direction and
// the resolved source/target names.
func inferContentRelation(text, aName, bName string) (relWord string, direction graph.Direction, source, target string, ok bool) {
	a, b := regexp.QuoteMeta(aName), regexp.QuoteMeta(bName)

	// Directed phrasing: "A是B的XX" (with a little slack between names).
	if rel, found := matchRelWord(text, a+`[^。！？；\n]{0,18}(?:是|为|算是|作为)?`+b+`的`+relWordPattern); found {
		if d, known := graph.MatchDirection(rel); known {
			return rel, d, aName, bName, true
		}
	}
	if rel, found := matchRelWord(text, b+`[^。！？；\n]{0,18}(?:是|为|算是|作为)?`+a+`的`+relWordPattern); found {
		if d, known := graph.MatchDirection(rel); known {
			return rel, d, bName, aName, true
		}
	}

	// Symmetric phrasing: "A和B是同学" only yields a mutual relation.
	if rel, found := matchRelWord(text, a+`[^。！？；\n]{0,8}(?:与|和|跟)`+b+`[^。！？；\n]{0,12}(?:是|为)?`+relWordPattern); found {
		if d, known := graph.MatchDirection(rel); known && d == graph.DirectionBidirectional {
			return rel, d, aName, bName, true
		}
	}

	// Last resort: both names plus a clearly mutual relation word
	// anywhere in the paragraph.
	if word, found := graph.SymmetricLabelIn(text); found {
		return word, graph.DirectionBidirectional, aName, bName, true
	}
	return "", "", "", "", false
}

func matchRelWord(text, pattern string) (string, bool) {
	m := regexp.MustCompile(pattern).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	rel := strings.TrimSpace(m[1])
	return rel, rel != ""
}

// inferContentEdges scans chapter paragraphs for relation phrasing
// between co-mentioned characters. Pairs already covered by a stored
// relation are skipped; each inferred relation carries the paragraph it
// was read from as evidence.
func inferContentEdges(paras []paragraphRow, nodes []graph.Node, explicitPairs map[string]struct{}, existing []graph.Edge) ([]graph.Edge, *contentTracking) {
	type namedNode struct {
		id   string
		name string
	}
	names := make([]namedNode, 0, len(nodes))
	for _, n := range nodes {
		if n.Label != "" {
			names = append(names, namedNode{id: n.ID, name: n.Label})
		}
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i].name) > len(names[j].name) })

	idByName := make(map[string]string, len(names))
	for _, n := range names {
		idByName[n.name] = n.id
	}

	dedupe := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		dedupe[pairKey(e.Source, e.Target)+"\x00"+normalizeRelationType(e.Type)] = struct{}{}
	}

	tracking := newContentTracking()
	var edges []graph.Edge
	for _, para := range paras {
		text := strings.TrimSpace(para.content)
		if len([]rune(text)) < 6 {
			continue
		}

		var mentioned []namedNode
		for _, n := range names {
			if strings.Contains(text, n.name) {
				mentioned = append(mentioned, n)
				if len(mentioned) >= 8 {
					break
				}
			}
		}
		if len(mentioned) < 2 {
			continue
		}

		for i := 0; i < len(mentioned)-1; i++ {
			for j := i + 1; j < len(mentioned); j++ {
				a, b := mentioned[i], mentioned[j]
				pair := pairKey(a.id, b.id)
				if _, ok := explicitPairs[pair]; ok {
					continue
				}
				rel, direction, srcName, tgtName, ok := inferContentRelation(text, a.name, b.name)
				if !ok {
					continue
				}
				sourceID, targetID := idByName[srcName], idByName[tgtName]
				if sourceID == "" || targetID == "" {
					continue
				}

				typeNorm := normalizeRelationType(rel)
				tracking.record(pair, typeNorm, rel, para.chapterNum)

				key := pair + "\x00" + typeNorm
				if _, dup := dedupe[key]; dup {
					continue
				}
				dedupe[key] = struct{}{}

				title := para.title
				if title == "" {
					title = "未命名"
				}
				edges = append(edges, graph.Edge{
					ID: fmt.Sprintf("text:%s:%d:%s:%s:%s",
						para.chapterID, para.paraIndex, sourceID, targetID, typeNorm),
					Source:         sourceID,
					Target:         targetID,
					Type:           rel,
					Description:    clip(fmt.Sprintf("正文推断：第%d章《%s》段落出现“%s”语义。", para.chapterNum, title, rel), descriptionClipLimit),
					Direction:      direction,
					RelationSource: graph.ProvenanceContent,
					Evidence: []graph.Evidence{{
						ChapterNum:   para.chapterNum,
						ChapterTitle: para.title,
						Snippet:      clip(text, descriptionClipLimit),
					}},
				})
			}
		}
	}
	return edges, tracking
}
