package sqlitesource

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"storygraph/domain/graph"
	pkgerrors "storygraph/pkg/errors"
)

// evidencePerEdgeLimit caps the snippets backfilled per edge.
const evidencePerEdgeLimit = 2

func (s *Store) loadParagraphs(ctx context.Context, projectID string, limit int) ([]paragraphRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ch.id, ch.chapter_num, ch.title, cp.para_index, cp.content
		 FROM chapter_paragraphs cp
		 JOIN chapters ch ON ch.id = cp.chapter_id
		 WHERE ch.project_id = ?
		 ORDER BY ch.chapter_num ASC, cp.para_index ASC
		 LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load paragraphs", err)
	}
	defer rows.Close()

	var paras []paragraphRow
	for rows.Next() {
		var p paragraphRow
		var title, content sql.NullString
		if err := rows.Scan(&p.chapterID, &p.chapterNum, &title, &p.paraIndex, &content); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan paragraph", err)
		}
		p.title = strings.TrimSpace(title.String)
		p.content = content.String
		paras = append(paras, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("load paragraphs", err)
	}
	return paras, nil
}

// backfillEvidence fills empty evidence lists with paragraphs that
// mention both endpoints, each carrying its chapter placement.
func (s *Store) backfillEvidence(ctx context.Context, projectID string, edges []graph.Edge, labels map[string]string) error {
	for i := range edges {
		if len(edges[i].Evidence) > 0 {
			continue
		}
		nameA, nameB := labels[edges[i].Source], labels[edges[i].Target]
		if nameA == "" || nameB == "" {
			continue
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT ch.chapter_num, ch.title, cp.content
			 FROM chapter_paragraphs cp
			 JOIN chapters ch ON ch.id = cp.chapter_id
			 WHERE ch.project_id = ? AND instr(cp.content, ?) > 0 AND instr(cp.content, ?) > 0
			 ORDER BY ch.chapter_num ASC, cp.para_index ASC
			 LIMIT ?`, projectID, nameA, nameB, evidencePerEdgeLimit)
		if err != nil {
			return pkgerrors.NewDatabaseError("load evidence", err)
		}
		for rows.Next() {
			var ev graph.Evidence
			var title, content sql.NullString
			if err := rows.Scan(&ev.ChapterNum, &title, &content); err != nil {
				rows.Close()
				return pkgerrors.NewDatabaseError("scan evidence", err)
			}
			ev.ChapterTitle = strings.TrimSpace(title.String)
			ev.Snippet = clip(content.String, descriptionClipLimit)
			edges[i].Evidence = append(edges[i].Evidence, ev)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return pkgerrors.NewDatabaseError("load evidence", err)
		}
		rows.Close()
	}
	return nil
}

// pairMentionChapters lists the chapters where both names co-occur in at
// least one paragraph, ordered by chapter number. Results are cached per
// name pair since many edges share endpoints.
func (s *Store) pairMentionChapters(ctx context.Context, projectID, nameA, nameB string, cache map[string][]int) ([]int, error) {
	na, nb := strings.TrimSpace(nameA), strings.TrimSpace(nameB)
	if na == "" || nb == "" {
		return nil, nil
	}
	if na > nb {
		na, nb = nb, na
	}
	key := na + "\x00" + nb
	if nums, ok := cache[key]; ok {
		return nums, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ch.chapter_num
		 FROM chapter_paragraphs cp
		 JOIN chapters ch ON ch.id = cp.chapter_id
		 WHERE ch.project_id = ? AND instr(cp.content, ?) > 0 AND instr(cp.content, ?) > 0
		 GROUP BY ch.id, ch.chapter_num
		 ORDER BY ch.chapter_num ASC`, projectID, na, nb)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load pair mentions", err)
	}
	defer rows.Close()

	var nums []int
	for rows.Next() {
		var num int
		if err := rows.Scan(&num); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan pair mention", err)
		}
		if num > 0 {
			nums = append(nums, num)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("load pair mentions", err)
	}
	cache[key] = nums
	return nums, nil
}

// applyChapterProvenance stamps each edge with the chapters its relation
// spans: first and last appearance, plus the chapters where content
// inference saw the pair's relation wording change. It returns the
// chapter numbers per edge id, which chapter scoping filters on.
func (s *Store) applyChapterProvenance(
	ctx context.Context,
	projectID string,
	edges []graph.Edge,
	labels map[string]string,
	titleByNum map[int]string,
	tracking *contentTracking,
) (map[string][]int, error) {
	cache := make(map[string][]int)
	numsByEdge := make(map[string][]int, len(edges))

	for i := range edges {
		e := &edges[i]
		nums, err := s.pairMentionChapters(ctx, projectID, labels[e.Source], labels[e.Target], cache)
		if err != nil {
			return nil, err
		}

		// Content-inferred edges pin down the exact chapters the wording
		// was seen in, which beats the broader co-mention span.
		if e.RelationSource == graph.ProvenanceContent {
			relKey := pairKey(e.Source, e.Target) + "\x00" + normalizeRelationType(e.Type)
			if seen := tracking.relChapters[relKey]; len(seen) > 0 {
				nums = sortedInts(seen)
			}
		}
		numsByEdge[e.ID] = nums

		if len(nums) > 0 {
			e.FirstChapterNum = nums[0]
			e.FirstChapterTitle = titleByNum[nums[0]]
			e.LastChapterNum = nums[len(nums)-1]
			e.LastChapterTitle = titleByNum[nums[len(nums)-1]]
		}
	}

	// A pair's relation "changes" in a chapter whose set of observed
	// relation words differs from the previous chapter's.
	changesByPair := make(map[string][]int, len(tracking.pairChapterTypes))
	for pair, chapterTypes := range tracking.pairChapterTypes {
		ordered := make([]int, 0, len(chapterTypes))
		for num := range chapterTypes {
			ordered = append(ordered, num)
		}
		sort.Ints(ordered)

		prevSig := ""
		var changes []int
		for _, num := range ordered {
			words := make([]string, 0, len(chapterTypes[num]))
			for w := range chapterTypes[num] {
				words = append(words, w)
			}
			sort.Strings(words)
			sig := strings.Join(words, "|")
			if prevSig != "" && sig != prevSig {
				changes = append(changes, num)
			}
			prevSig = sig
		}
		changesByPair[pair] = changes
	}
	for i := range edges {
		edges[i].ChangeChapterNums = changesByPair[pairKey(edges[i].Source, edges[i].Target)]
	}

	return numsByEdge, nil
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
