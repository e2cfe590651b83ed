package sqlitesource

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storygraph/domain/graph"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(Schema())
	require.NoError(t, err)

	return NewStore(db, zap.NewNop(), observability.NewCollector("test"))
}

func seedProject(t *testing.T, s *Store) {
	t.Helper()
	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`INSERT INTO projects (id, name) VALUES (?, ?)`, []interface{}{"p1", "都市暗流"}},
		{`INSERT INTO chapters (id, project_id, chapter_num, title) VALUES (?, ?, ?, ?)`,
			[]interface{}{"ch1", "p1", 1, "初遇"}},
		{`INSERT INTO chapters (id, project_id, chapter_num, title) VALUES (?, ?, ?, ?)`,
			[]interface{}{"ch2", "p1", 2, "旧案"}},
		{`INSERT INTO chapter_paragraphs (id, chapter_id, para_index, content) VALUES (?, ?, ?, ?)`,
			[]interface{}{"pa1", "ch1", 0, "林晚在雨夜遇见了沈倦。"}},
		{`INSERT INTO chapter_paragraphs (id, chapter_id, para_index, content) VALUES (?, ?, ?, ?)`,
			[]interface{}{"pa2", "ch2", 0, "陈叔独自翻看旧案卷宗。"}},
		{`INSERT INTO characters (id, project_id, name, category, identity, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			[]interface{}{"a", "p1", "林晚", "女主", "记者", 0}},
		{`INSERT INTO characters (id, project_id, name, category, sort_order) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"b", "p1", "沈倦", "男主", 1}},
		{`INSERT INTO characters (id, project_id, name, category, sort_order) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"c", "p1", "陈叔", "配角", 2}},
		{`INSERT INTO characters (id, project_id, name, category, sort_order) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"d", "p1", "路人甲", "其他", 3}},
		{`INSERT INTO character_relations (id, character_a_id, character_b_id, relation_type, description) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"r1", "a", "b", "恋人", "雨夜相遇后逐渐靠近"}},
		{`INSERT INTO character_relations (id, character_a_id, character_b_id, relation_type, description) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"r2", "c", "a", "监护人", ""}},
		// Noise label with no description: dropped.
		{`INSERT INTO character_relations (id, character_a_id, character_b_id, relation_type, description) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"r3", "a", "d", "其他", ""}},
	}
	for _, st := range stmts {
		_, err := s.db.Exec(st.query, st.args...)
		require.NoError(t, err)
	}
}

func TestFetchRelationGraphGlobal(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	assert.Equal(t, "都市暗流", g.ProjectName)
	assert.Equal(t, graph.ViewModeGlobal, g.View.Mode)
	require.Len(t, g.Nodes, 4)
	require.Len(t, g.Edges, 2, "noise relation must be dropped")

	byID := map[string]graph.Node{}
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 2, byID["a"].Degree)
	assert.Equal(t, 1, byID["b"].Degree)
	assert.Equal(t, 1, byID["c"].Degree)
	assert.Equal(t, 0, byID["d"].Degree)

	assert.Equal(t, graph.Stats{NodeCount: 4, EdgeCount: 2, IsolatedCount: 1}, g.Stats)
}

func TestFetchRelationGraphDirectionInference(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	dirs := map[string]graph.Direction{}
	for _, e := range g.Edges {
		dirs[e.ID] = e.Direction
	}
	assert.Equal(t, graph.DirectionBidirectional, dirs["r1"], "恋人 is symmetric")
	assert.Equal(t, graph.DirectionDirected, dirs["r2"], "监护人 is a role pair")
}

func TestFetchRelationGraphReciprocalRowsCollapseToBidirectional(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)
	_, err := s.db.Exec(
		`INSERT INTO character_relations (id, character_a_id, character_b_id, relation_type, description) VALUES (?, ?, ?, ?, ?)`,
		"r4", "a", "c", "监护人", "")
	require.NoError(t, err)
	// Note r2 is c→a with the same label, so the pair reads both ways.

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	var pair *graph.Edge
	for i := range g.Edges {
		if g.Edges[i].Touches("c") {
			pair = &g.Edges[i]
		}
	}
	require.NotNil(t, pair)
	assert.Equal(t, graph.DirectionBidirectional, pair.Direction)
	assert.Len(t, g.Edges, 2, "duplicate pair collapses into one edge")
}

func TestFetchRelationGraphDescriptionClipping(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	long := make([]rune, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, '长')
	}
	_, err := s.db.Exec(
		`UPDATE character_relations SET description = ? WHERE id = ?`, string(long), "r1")
	require.NoError(t, err)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	e, ok := g.EdgeByID("r1")
	require.True(t, ok)
	desc := []rune(e.Description)
	assert.Len(t, desc, descriptionClipLimit+3)
	assert.Equal(t, "...", string(desc[descriptionClipLimit:]))
}

func TestFetchRelationGraphUnclassifiedLabelReadsDirected(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)
	_, err := s.db.Exec(
		`INSERT INTO character_relations (id, character_a_id, character_b_id, relation_type, description) VALUES (?, ?, ?, ?, ?)`,
		"r5", "b", "d", "债主", "")
	require.NoError(t, err)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	e, ok := g.EdgeByID("r5")
	require.True(t, ok)
	assert.Equal(t, graph.DirectionDirected, e.Direction,
		"a label neither hint table knows stays directed; only a symmetric hint or reciprocal row widens it")
}

func TestFetchRelationGraphEvidenceBackfill(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)
	// A second co-mention in chapter two extends the relation's span.
	_, err := s.db.Exec(
		`INSERT INTO chapter_paragraphs (id, chapter_id, para_index, content) VALUES (?, ?, ?, ?)`,
		"pa3", "ch2", 1, "林晚与沈倦再谈旧案。")
	require.NoError(t, err)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	e, ok := g.EdgeByID("r1")
	require.True(t, ok)
	require.Len(t, e.Evidence, 2)
	assert.Equal(t, 1, e.Evidence[0].ChapterNum)
	assert.Equal(t, "初遇", e.Evidence[0].ChapterTitle)
	assert.Equal(t, "林晚在雨夜遇见了沈倦。", e.Evidence[0].Snippet)
	assert.Equal(t, 2, e.Evidence[1].ChapterNum)

	assert.Equal(t, 1, e.FirstChapterNum)
	assert.Equal(t, "初遇", e.FirstChapterTitle)
	assert.Equal(t, 2, e.LastChapterNum)
	assert.Equal(t, "旧案", e.LastChapterTitle)

	// 陈叔 and 林晚 never share a paragraph: nothing to backfill.
	e, ok = g.EdgeByID("r2")
	require.True(t, ok)
	assert.Empty(t, e.Evidence)
	assert.Zero(t, e.FirstChapterNum)
	assert.Zero(t, e.LastChapterNum)
}

func TestFetchRelationGraphIdentityInference(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)
	_, err := s.db.Exec(
		`INSERT INTO characters (id, project_id, name, category, identity, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
		"e", "p1", "沈父", "配角", "沈倦的父亲，退休刑警。", 4)
	require.NoError(t, err)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	e, ok := g.EdgeByID("infer:e:b:父亲")
	require.True(t, ok, "identity text must yield an inferred edge")
	assert.Equal(t, "e", e.Source)
	assert.Equal(t, "b", e.Target)
	assert.Equal(t, "父亲", e.Type)
	assert.Equal(t, graph.DirectionDirected, e.Direction)
	assert.Equal(t, graph.ProvenanceIdentity, e.RelationSource)
	assert.Contains(t, e.Description, "身份推断")

	byID := map[string]graph.Node{}
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 1, byID["e"].Degree, "inferred edges count toward degree")
	assert.Equal(t, 2, byID["b"].Degree)
}

func TestFetchRelationGraphIdentityInferenceSkipsExplicitPairs(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)
	// 陈叔 already has a stored relation with 林晚; identity text must
	// not add a second edge for the pair.
	_, err := s.db.Exec(
		`UPDATE characters SET identity = ? WHERE id = ?`, "林晚的舅舅", "c")
	require.NoError(t, err)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)
	for _, e := range g.Edges {
		assert.NotEqual(t, graph.ProvenanceIdentity, e.RelationSource)
	}
}

func TestFetchRelationGraphContentInference(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)
	_, err := s.db.Exec(
		`INSERT INTO chapter_paragraphs (id, chapter_id, para_index, content) VALUES (?, ?, ?, ?)`,
		"pa4", "ch2", 1, "陈叔是沈倦的上司，管得很严。")
	require.NoError(t, err)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "global", "")
	require.NoError(t, err)

	var inferred *graph.Edge
	for i := range g.Edges {
		if g.Edges[i].RelationSource == graph.ProvenanceContent {
			inferred = &g.Edges[i]
		}
	}
	require.NotNil(t, inferred, "paragraph phrasing must yield a content edge")
	assert.Equal(t, "c", inferred.Source)
	assert.Equal(t, "b", inferred.Target)
	assert.Equal(t, "上司", inferred.Type)
	assert.Equal(t, graph.DirectionDirected, inferred.Direction)
	require.Len(t, inferred.Evidence, 1)
	assert.Equal(t, 2, inferred.Evidence[0].ChapterNum)
	assert.Equal(t, "旧案", inferred.Evidence[0].ChapterTitle)
	assert.Equal(t, 2, inferred.FirstChapterNum)
	assert.Equal(t, 2, inferred.LastChapterNum)
}

func TestFetchRelationGraphChapterScope(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "chapter", "ch1")
	require.NoError(t, err)

	assert.Equal(t, graph.ViewModeChapter, g.View.Mode)
	assert.Equal(t, "ch1", g.View.ChapterID)
	assert.Equal(t, 1, g.View.ChapterNum)
	assert.Equal(t, "初遇", g.View.ChapterTitle)

	// Only 林晚 and 沈倦 are mentioned in chapter one, so only their
	// relation (and its endpoints) remains.
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "r1", g.Edges[0].ID)
	require.Len(t, g.Nodes, 2)
}

func TestFetchRelationGraphChapterScopeDefaultsToFirstChapter(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	g, err := s.FetchRelationGraph(context.Background(), "p1", "chapter", "")
	require.NoError(t, err)
	assert.Equal(t, "ch1", g.View.ChapterID)
}

func TestFetchRelationGraphErrors(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	tests := []struct {
		name      string
		projectID string
		viewMode  string
		chapterID string
		check     func(error) bool
	}{
		{"empty project id", "", "global", "", pkgerrors.IsValidation},
		{"unknown project", "nope", "global", "", pkgerrors.IsNotFound},
		{"bad view mode", "p1", "cosmic", "", pkgerrors.IsValidation},
		{"unknown chapter", "p1", "chapter", "nope", pkgerrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.FetchRelationGraph(context.Background(), tt.projectID, tt.viewMode, tt.chapterID)
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestListChaptersOrdered(t *testing.T) {
	s := newTestStore(t)
	seedProject(t, s)

	chapters, err := s.ListChapters(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "ch1", chapters[0].ID)
	assert.Equal(t, "ch2", chapters[1].ID)

	_, err = s.ListChapters(context.Background(), "")
	assert.Error(t, err)
}

func TestNormalizeRelationTypeAndClip(t *testing.T) {
	assert.Equal(t, "师徒", normalizeRelationType("  师徒 "))
	assert.Equal(t, "mentor", normalizeRelationType("Men tor"))
	assert.Equal(t, "短句", clip("短句", 10))
	assert.Equal(t, "一 二", clip("一\n二", 10))
}
