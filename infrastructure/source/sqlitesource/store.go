// Package sqlitesource reads the relation graph straight out of a
// project database: stored relations plus relations inferred from
// character identity text and chapter paragraphs, with evidence and
// chapter provenance recovered from co-mention queries.
package sqlitesource

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"storygraph/domain/graph"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

const (
	descriptionClipLimit = 180
	fieldClipLimit       = 120
)

// Relation labels that carry no information on their own; rows with a
// noise label and no description are dropped.
var noiseRelationTypes = map[string]struct{}{
	"":     {},
	"角色":   {},
	"人物":   {},
	"关系":   {},
	"关联":   {},
	"其他":   {},
	"其他关系": {},
	"未知":   {},
}

// Store is the SQLite-backed graph and chapter source.
type Store struct {
	db      *sql.DB
	logger  *zap.Logger
	metrics *observability.Collector
}

// Open opens the project database at path.
func Open(path string, logger *zap.Logger, metrics *observability.Collector) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("open", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, pkgerrors.NewDatabaseError("enable WAL", err)
	}
	return &Store{db: db, logger: logger.Named("sqlitesource"), metrics: metrics}, nil
}

// NewStore wraps an existing connection. Used by tests and the DI
// container when the pool is shared.
func NewStore(db *sql.DB, logger *zap.Logger, metrics *observability.Collector) *Store {
	return &Store{db: db, logger: logger.Named("sqlitesource"), metrics: metrics}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchRelationGraph assembles the relation graph for a project:
// stored relations, then identity- and content-inferred ones, then
// evidence backfill and chapter provenance. Chapter scope keeps only
// relations placed in the selected chapter by provenance or evidence.
func (s *Store) FetchRelationGraph(ctx context.Context, projectID, viewMode, chapterID string) (*graph.RelationGraph, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveFetch("sqlite", "relation_graph", time.Since(start))
		}
	}()

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, pkgerrors.NewValidationError("project id cannot be empty")
	}
	mode := strings.ToLower(strings.TrimSpace(viewMode))
	if mode == "" {
		mode = graph.ViewModeGlobal
	}
	if !graph.ValidViewMode(mode) {
		return nil, pkgerrors.NewValidationError("view mode must be global or chapter")
	}

	var projectName string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM projects WHERE id = ?", projectID).Scan(&projectName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("project")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load project", err)
	}

	g := &graph.RelationGraph{
		ProjectID:   projectID,
		ProjectName: strings.TrimSpace(projectName),
		View:        graph.ViewInfo{Mode: mode},
	}

	chapters, err := s.listChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if mode == graph.ViewModeChapter && len(chapters) > 0 {
		selected, err := selectChapter(chapters, chapterID)
		if err != nil {
			return nil, err
		}
		g.View.ChapterID = selected.ID
		g.View.ChapterNum = selected.ChapterNum
		g.View.ChapterTitle = selected.Title
	}

	nodes, identities, err := s.loadCharacters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	edges, explicitPairs, err := s.loadExplicitEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Supplement the stored relations with inferred ones: identity text
	// ("沈倦的父亲") and paragraph phrasing both yield edges the author
	// never entered by hand.
	edges = append(edges, inferIdentityEdges(nodes, identities, explicitPairs)...)

	paras, err := s.loadParagraphs(ctx, projectID, paragraphScanLimit(len(nodes)))
	if err != nil {
		return nil, err
	}
	contentEdges, tracking := inferContentEdges(paras, nodes, explicitPairs, edges)
	edges = append(edges, contentEdges...)

	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.Label
	}
	if err := s.backfillEvidence(ctx, projectID, edges, labels); err != nil {
		return nil, err
	}

	titleByNum := make(map[int]string, len(chapters))
	for _, c := range chapters {
		if c.ChapterNum > 0 {
			titleByNum[c.ChapterNum] = c.Title
		}
	}
	numsByEdge, err := s.applyChapterProvenance(ctx, projectID, edges, labels, titleByNum, tracking)
	if err != nil {
		return nil, err
	}

	if mode == graph.ViewModeChapter && g.View.ChapterNum > 0 {
		edges = filterEdgesBySelectedChapter(edges, numsByEdge, g.View.ChapterNum)
		nodes = nodesTouchedBy(nodes, edges)
	}

	degree := make(map[string]int, len(nodes))
	for _, e := range edges {
		degree[e.Source]++
		degree[e.Target]++
	}
	for i := range nodes {
		nodes[i].Degree = degree[nodes[i].ID]
	}

	g.Nodes = nodes
	g.Edges = edges
	g.Normalize()
	return g, nil
}

// ListChapters returns the project's chapters ordered by chapter number.
func (s *Store) ListChapters(ctx context.Context, projectID string) ([]graph.ChapterSummary, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveFetch("sqlite", "chapters", time.Since(start))
		}
	}()

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, pkgerrors.NewValidationError("project id cannot be empty")
	}
	return s.listChapters(ctx, projectID)
}

func (s *Store) listChapters(ctx context.Context, projectID string) ([]graph.ChapterSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chapter_num, title FROM chapters
		 WHERE project_id = ?
		 ORDER BY chapter_num ASC, sort_order ASC, created_at ASC`, projectID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list chapters", err)
	}
	defer rows.Close()

	var chapters []graph.ChapterSummary
	for rows.Next() {
		var c graph.ChapterSummary
		if err := rows.Scan(&c.ID, &c.ChapterNum, &c.Title); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan chapter", err)
		}
		c.Title = strings.TrimSpace(c.Title)
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list chapters", err)
	}
	return chapters, nil
}

func selectChapter(chapters []graph.ChapterSummary, chapterID string) (graph.ChapterSummary, error) {
	chapterID = strings.TrimSpace(chapterID)
	if chapterID == "" {
		return chapters[0], nil
	}
	for _, c := range chapters {
		if c.ID == chapterID {
			return c, nil
		}
	}
	return graph.ChapterSummary{}, pkgerrors.NewNotFoundError("chapter")
}

// loadCharacters returns the project's characters plus their raw
// identity text, which identity inference scans before clipping.
func (s *Store) loadCharacters(ctx context.Context, projectID string) ([]graph.Node, map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, gender, age, identity, personality
		 FROM characters
		 WHERE project_id = ?
		 ORDER BY sort_order ASC, created_at ASC`, projectID)
	if err != nil {
		return nil, nil, pkgerrors.NewDatabaseError("load characters", err)
	}
	defer rows.Close()

	var nodes []graph.Node
	identities := make(map[string]string)
	for rows.Next() {
		var n graph.Node
		var name, category, gender, age, identity, personality sql.NullString
		if err := rows.Scan(&n.ID, &name, &category, &gender, &age, &identity, &personality); err != nil {
			return nil, nil, pkgerrors.NewDatabaseError("scan character", err)
		}
		n.Label = strings.TrimSpace(name.String)
		if n.Label == "" {
			n.Label = "未命名角色"
		}
		n.Category = strings.TrimSpace(category.String)
		if n.Category == "" {
			n.Category = "其他"
		}
		n.Gender = strings.TrimSpace(gender.String)
		n.Age = strings.TrimSpace(age.String)
		n.Identity = clip(identity.String, fieldClipLimit)
		n.Personality = clip(personality.String, fieldClipLimit)
		identities[n.ID] = identity.String
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, pkgerrors.NewDatabaseError("load characters", err)
	}
	return nodes, identities, nil
}

// relationRow is one character_relations record before deduplication.
type relationRow struct {
	id          string
	source      string
	target      string
	relType     string
	typeNorm    string
	description string
}

// loadExplicitEdges reads the stored relations and collapses duplicates:
// the same pair with the same normalized label becomes one edge. An edge
// defaults to directed; it widens to bidirectional only on a symmetric
// label hint or a reciprocal pair (A→B and B→A, same label). The second
// return value is the set of pairs covered by a stored relation, which
// inference must not duplicate.
func (s *Store) loadExplicitEdges(ctx context.Context, projectID string) ([]graph.Edge, map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cr.id, cr.character_a_id, cr.character_b_id, cr.relation_type, cr.description
		 FROM character_relations cr
		 JOIN characters ca ON ca.id = cr.character_a_id
		 JOIN characters cb ON cb.id = cr.character_b_id
		 WHERE ca.project_id = ? AND cb.project_id = ?
		 ORDER BY cr.created_at ASC`, projectID, projectID)
	if err != nil {
		return nil, nil, pkgerrors.NewDatabaseError("load relations", err)
	}
	defer rows.Close()

	var relations []relationRow
	reciprocal := make(map[string]struct{})
	explicitPairs := make(map[string]struct{})
	for rows.Next() {
		var r relationRow
		var relType, description sql.NullString
		if err := rows.Scan(&r.id, &r.source, &r.target, &relType, &description); err != nil {
			return nil, nil, pkgerrors.NewDatabaseError("scan relation", err)
		}
		r.relType = strings.TrimSpace(relType.String)
		r.typeNorm = normalizeRelationType(r.relType)
		r.description = strings.TrimSpace(description.String)
		explicitPairs[pairKey(r.source, r.target)] = struct{}{}

		if _, noise := noiseRelationTypes[r.typeNorm]; noise && r.description == "" {
			continue
		}
		relations = append(relations, r)
		reciprocal[r.source+"\x00"+r.target+"\x00"+r.typeNorm] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, pkgerrors.NewDatabaseError("load relations", err)
	}

	edgeMap := make(map[string]*graph.Edge)
	var order []string
	for _, r := range relations {
		key := pairKey(r.source, r.target) + "\x00" + r.typeNorm

		direction := graph.InferDirection(r.relType)
		if _, ok := reciprocal[r.target+"\x00"+r.source+"\x00"+r.typeNorm]; ok {
			direction = graph.DirectionBidirectional
		}

		existing, ok := edgeMap[key]
		if !ok {
			edgeMap[key] = &graph.Edge{
				ID:             r.id,
				Source:         r.source,
				Target:         r.target,
				Type:           r.relType,
				Description:    clip(r.description, descriptionClipLimit),
				Direction:      direction,
				RelationSource: graph.ProvenanceExplicit,
			}
			order = append(order, key)
			continue
		}

		// Duplicates keep the longer description and widen to
		// bidirectional if any copy reads that way.
		if direction == graph.DirectionBidirectional {
			existing.Direction = graph.DirectionBidirectional
		}
		if len(r.description) > len(existing.Description) {
			existing.Description = clip(r.description, descriptionClipLimit)
		}
	}

	edges := make([]graph.Edge, 0, len(order))
	for _, key := range order {
		edges = append(edges, *edgeMap[key])
	}
	return edges, explicitPairs, nil
}

// filterEdgesBySelectedChapter keeps edges whose relation is placed in
// the selected chapter, either by co-mention provenance or by an
// evidence snippet drawn from it.
func filterEdgesBySelectedChapter(edges []graph.Edge, numsByEdge map[string][]int, selected int) []graph.Edge {
	kept := make([]graph.Edge, 0, len(edges))
	for _, e := range edges {
		if containsInt(numsByEdge[e.ID], selected) {
			kept = append(kept, e)
			continue
		}
		for _, ev := range e.Evidence {
			if ev.ChapterNum == selected {
				kept = append(kept, e)
				break
			}
		}
	}
	return kept
}

func containsInt(nums []int, want int) bool {
	for _, n := range nums {
		if n == want {
			return true
		}
	}
	return false
}

// pairKey orders a node pair so A→B and B→A collide.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// nodesTouchedBy keeps the nodes that are an endpoint of some edge,
// preserving input order.
func nodesTouchedBy(nodes []graph.Node, edges []graph.Edge) []graph.Node {
	touched := make(map[string]struct{}, len(edges)*2)
	for _, e := range edges {
		touched[e.Source] = struct{}{}
		touched[e.Target] = struct{}{}
	}
	kept := make([]graph.Node, 0, len(touched))
	for _, n := range nodes {
		if _, ok := touched[n.ID]; ok {
			kept = append(kept, n)
		}
	}
	return kept
}

// normalizeRelationType lower-cases a label and strips all whitespace.
func normalizeRelationType(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "")
}

// clip flattens newlines and truncates long free text with an ellipsis.
func clip(text string, limit int) string {
	value := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", " "))
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

// Schema creates the tables the store reads. Exported for tests and
// local bootstrapping; production databases are created by the writing
// application.
func Schema() string {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id),
			chapter_num INTEGER NOT NULL,
			title TEXT DEFAULT '',
			sort_order INTEGER DEFAULT 0,
			created_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS chapter_paragraphs (
			id TEXT PRIMARY KEY,
			chapter_id TEXT NOT NULL REFERENCES chapters(id),
			para_index INTEGER NOT NULL,
			content TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS characters (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			category TEXT DEFAULT '',
			gender TEXT DEFAULT '',
			age TEXT DEFAULT '',
			identity TEXT DEFAULT '',
			personality TEXT DEFAULT '',
			sort_order INTEGER DEFAULT 0,
			created_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS character_relations (
			id TEXT PRIMARY KEY,
			character_a_id TEXT NOT NULL REFERENCES characters(id),
			character_b_id TEXT NOT NULL REFERENCES characters(id),
			relation_type TEXT DEFAULT '',
			description TEXT DEFAULT '',
			created_at TEXT DEFAULT (datetime('now'))
		)`,
	}
	return strings.Join(tables, ";\n") + ";"
}
