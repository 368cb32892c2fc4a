package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/venikman/sellerpilot/internal/db"
	"github.com/venikman/sellerpilot/internal/timectx"
)

// Store provides read/write access to the sellerpilot state database:
// runs, memory items with their FTS index, and the tool-result cache.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given DB.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Conn exposes the underlying *sql.DB for low-level queries.
func (s *Store) Conn() *sql.DB {
	return s.db.Conn()
}

// ---- Runs ----

// InsertRun appends a run record. Runs are never mutated afterwards.
func (s *Store) InsertRun(r RunRecord) error {
	if r.ID == "" {
		return fmt.Errorf("store: run id is required")
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO runs (id, created_at, user_id, config_json, query, augmented_query,
		                  route, ood, plan_json, tool_calls_json, response, eval_json,
		                  latencies_json, memory_injected_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt, r.UserID, r.ConfigJSON, r.Query, r.AugmentedQuery,
		r.Route, boolToInt(r.OOD), r.PlanJSON, r.ToolCallsJSON, r.Response, r.EvalJSON,
		r.LatenciesJSON, r.MemoryInjectedJSON,
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	return nil
}

// CountRuns returns the total number of recorded runs.
func (s *Store) CountRuns() (int, error) {
	var n int
	err := s.db.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---- Memory items ----

// UpsertMemoryItem inserts a memory item or, when a row already exists at
// (scope, kind, dedupeKey), updates it in place while keeping its id.
// Text is PII-redacted before storage and the FTS row is kept in sync.
func (s *Store) UpsertMemoryItem(in UpsertInput) (Item, error) {
	if in.Scope == "" {
		return Item{}, fmt.Errorf("store: memory scope is required")
	}
	if !ValidKind(in.Kind) {
		return Item{}, fmt.Errorf("store: invalid memory kind %q", in.Kind)
	}
	text := Redact(strings.TrimSpace(in.Text))
	if text == "" {
		return Item{}, fmt.Errorf("store: memory text is required")
	}
	dedupeKey := in.DedupeKey
	if dedupeKey == "" {
		dedupeKey = DedupeKey(in.Kind, text)
	}
	metaJSON := "{}"
	if len(in.Meta) > 0 {
		b, err := json.Marshal(in.Meta)
		if err != nil {
			return Item{}, fmt.Errorf("store: encode meta: %w", err)
		}
		metaJSON = string(b)
	}
	nowIso := timectx.NowIso()

	tx, err := s.db.Conn().Begin()
	if err != nil {
		return Item{}, fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	var existing Item
	err = tx.QueryRow(`
		SELECT id, created_at, COALESCE(last_used_at, ''), use_count
		FROM memory_items
		WHERE scope = ? AND kind = ? AND dedupe_key = ?`,
		in.Scope, string(in.Kind), dedupeKey,
	).Scan(&existing.ID, &existing.CreatedAt, &existing.LastUsedAt, &existing.UseCount)

	item := Item{
		Scope:      in.Scope,
		Kind:       in.Kind,
		Text:       text,
		Meta:       in.Meta,
		DedupeKey:  dedupeKey,
		Importance: in.Importance,
		Quality:    in.Quality,
		ExpiresAt:  in.ExpiresAt,
	}

	switch {
	case err == sql.ErrNoRows:
		item.ID = NewID("mem")
		item.CreatedAt = nowIso
		_, err = tx.Exec(`
			INSERT INTO memory_items (id, scope, kind, text, meta_json, dedupe_key,
			                          created_at, last_used_at, use_count, importance, quality, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0, ?, ?, ?)`,
			item.ID, item.Scope, string(item.Kind), item.Text, metaJSON, item.DedupeKey,
			item.CreatedAt, item.Importance, item.Quality, nullable(item.ExpiresAt),
		)
		if err != nil {
			return Item{}, fmt.Errorf("store: insert memory item: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO memory_fts (id, text, kind, scope) VALUES (?, ?, ?, ?)`,
			item.ID, item.Text, string(item.Kind), item.Scope,
		)
		if err != nil {
			return Item{}, fmt.Errorf("store: insert memory fts: %w", err)
		}
	case err == nil:
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		item.LastUsedAt = existing.LastUsedAt
		item.UseCount = existing.UseCount
		_, err = tx.Exec(`
			UPDATE memory_items
			SET text = ?, meta_json = ?, importance = ?, quality = ?, expires_at = ?
			WHERE id = ?`,
			item.Text, metaJSON, item.Importance, item.Quality, nullable(item.ExpiresAt), item.ID,
		)
		if err != nil {
			return Item{}, fmt.Errorf("store: update memory item: %w", err)
		}
		if _, err = tx.Exec(`DELETE FROM memory_fts WHERE id = ?`, item.ID); err != nil {
			return Item{}, fmt.Errorf("store: replace memory fts: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO memory_fts (id, text, kind, scope) VALUES (?, ?, ?, ?)`,
			item.ID, item.Text, string(item.Kind), item.Scope,
		)
		if err != nil {
			return Item{}, fmt.Errorf("store: reinsert memory fts: %w", err)
		}
	default:
		return Item{}, fmt.Errorf("store: lookup memory item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("store: commit upsert: %w", err)
	}
	return item, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const maxSearchLimit = 50

// SearchMemory runs an FTS MATCH filtered by scopes, optional kinds, and
// TTL, ordered by BM25 ascending (most relevant first).
func (s *Store) SearchMemory(p SearchParams) ([]Hit, error) {
	if strings.TrimSpace(p.Query) == "" || len(p.Scopes) == 0 {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	nowIso := p.NowIso
	if nowIso == "" {
		nowIso = timectx.NowIso()
	}

	query := `
		SELECT m.id, m.scope, m.kind, m.text, m.meta_json,
		       m.created_at, COALESCE(m.last_used_at, ''), m.use_count,
		       m.importance, m.quality, COALESCE(m.expires_at, ''),
		       m.dedupe_key, bm25(memory_fts) AS rank
		FROM memory_fts
		JOIN memory_items m ON m.id = memory_fts.id
		WHERE memory_fts MATCH ?
		  AND m.scope IN (` + placeholders(len(p.Scopes)) + `)`
	args := []any{p.Query}
	for _, sc := range p.Scopes {
		args = append(args, sc)
	}
	if len(p.Kinds) > 0 {
		query += ` AND m.kind IN (` + placeholders(len(p.Kinds)) + `)`
		for _, k := range p.Kinds {
			args = append(args, string(k))
		}
	}
	query += ` AND (m.expires_at IS NULL OR m.expires_at > ?)
		ORDER BY bm25(memory_fts)
		LIMIT ?`
	args = append(args, nowIso, limit)

	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search memory: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var kind, metaJSON string
		if err := rows.Scan(
			&h.ID, &h.Scope, &kind, &h.Text, &metaJSON,
			&h.CreatedAt, &h.LastUsedAt, &h.UseCount,
			&h.Importance, &h.Quality, &h.ExpiresAt,
			&h.DedupeKey, &h.BM25,
		); err != nil {
			return nil, fmt.Errorf("store: scan search hit: %w", err)
		}
		h.Kind = Kind(kind)
		if metaJSON != "" && metaJSON != "{}" {
			_ = json.Unmarshal([]byte(metaJSON), &h.Meta)
		}
		// FTS5 bm25() is <= 0, more negative meaning more relevant.
		h.FTSRank = 1.0 / (1.0 + math.Abs(h.BM25))
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// MarkMemoryUsed bumps lastUsedAt and useCount for each distinct id.
func (s *Store) MarkMemoryUsed(ids []string, nowIso string) error {
	if len(ids) == 0 {
		return nil
	}
	if nowIso == "" {
		nowIso = timectx.NowIso()
	}
	seen := map[string]struct{}{}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("store: begin mark used: %w", err)
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if _, err := tx.Exec(
			`UPDATE memory_items SET last_used_at = ?, use_count = use_count + 1 WHERE id = ?`,
			nowIso, id,
		); err != nil {
			return fmt.Errorf("store: mark memory used %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetMemoryItem returns a single item by id.
func (s *Store) GetMemoryItem(id string) (Item, error) {
	var it Item
	var kind, metaJSON string
	err := s.db.Conn().QueryRow(`
		SELECT id, scope, kind, text, meta_json, created_at,
		       COALESCE(last_used_at, ''), use_count, importance, quality,
		       COALESCE(expires_at, ''), dedupe_key
		FROM memory_items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Scope, &kind, &it.Text, &metaJSON, &it.CreatedAt,
		&it.LastUsedAt, &it.UseCount, &it.Importance, &it.Quality,
		&it.ExpiresAt, &it.DedupeKey)
	if err == sql.ErrNoRows {
		return it, fmt.Errorf("store: memory item %q not found", id)
	}
	if err != nil {
		return it, fmt.Errorf("store: get memory item: %w", err)
	}
	it.Kind = Kind(kind)
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &it.Meta)
	}
	return it, nil
}

// GetMemoryStats returns item counts grouped by (scope, kind).
func (s *Store) GetMemoryStats() ([]ScopeKindCount, error) {
	rows, err := s.db.Conn().Query(
		`SELECT scope, kind, COUNT(*) FROM memory_items GROUP BY scope, kind ORDER BY scope, kind`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: memory stats: %w", err)
	}
	defer rows.Close()

	var out []ScopeKindCount
	for rows.Next() {
		var c ScopeKindCount
		if err := rows.Scan(&c.Scope, &c.Kind, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Maintenance deletes expired items and their FTS rows.
func (s *Store) Maintenance(nowIso string) (int, error) {
	if nowIso == "" {
		nowIso = timectx.NowIso()
	}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin maintenance: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM memory_fts WHERE id IN (
			SELECT id FROM memory_items WHERE expires_at IS NOT NULL AND expires_at <= ?
		)`, nowIso); err != nil {
		return 0, fmt.Errorf("store: maintenance fts sweep: %w", err)
	}
	res, err := tx.Exec(
		`DELETE FROM memory_items WHERE expires_at IS NOT NULL AND expires_at <= ?`, nowIso,
	)
	if err != nil {
		return 0, fmt.Errorf("store: maintenance sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit maintenance: %w", err)
	}
	return int(n), nil
}

// ---- Tool cache ----

// GetToolCache returns the cached result for a signature, or ok=false.
func (s *Store) GetToolCache(signature string) (createdAt string, result any, ok bool, err error) {
	var resultJSON string
	err = s.db.Conn().QueryRow(
		`SELECT created_at, result_json FROM tool_cache WHERE signature = ?`, signature,
	).Scan(&createdAt, &resultJSON)
	if err == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("store: get tool cache: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", nil, false, fmt.Errorf("store: decode cached result: %w", err)
	}
	return createdAt, result, true, nil
}

// SetToolCache writes through a tool result, upserting on conflict.
func (s *Store) SetToolCache(tool, signature string, args, result any, nowIso string) error {
	if nowIso == "" {
		nowIso = timectx.NowIso()
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("store: encode cache args: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: encode cache result: %w", err)
	}
	_, err = s.db.Conn().Exec(`
		INSERT INTO tool_cache (signature, created_at, tool, args_json, result_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			created_at  = excluded.created_at,
			tool        = excluded.tool,
			args_json   = excluded.args_json,
			result_json = excluded.result_json`,
		signature, nowIso, tool, string(argsJSON), string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("store: set tool cache: %w", err)
	}
	return nil
}
