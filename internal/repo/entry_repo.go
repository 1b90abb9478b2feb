package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/sepworks/sepd/internal/model"
	"github.com/sepworks/sepd/internal/pkg/dbutil"
	appErr "github.com/sepworks/sepd/internal/pkg/errors"
)

// EntryRepo persists articles as two related records: entry_metadata (keyed
// by entry_id, carries the optional embedding vectors) and entry_content
// (the raw fragment, markdown and toc).
type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

func (r *EntryRepo) Exists(ctx context.Context, entryID string) (bool, error) {
	const query = `SELECT 1 FROM entry_metadata WHERE entry_id = $1`
	var one int
	if err := r.db.QueryRowContext(ctx, query, entryID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Upsert writes both halves of an entry, inserting or updating depending on
// whether the entry_id is already present. Repeated scrapes of the same
// article always end up as a single metadata record.
func (r *EntryRepo) Upsert(ctx context.Context, entry *model.ScrapedEntry, emb model.EmbeddingSet) error {
	exists, err := r.Exists(ctx, entry.EntryID)
	if err != nil {
		return fmt.Errorf("check entry %s: %w", entry.EntryID, err)
	}

	authors, err := json.Marshal(authorsOrEmpty(entry.Metadata.Authors))
	if err != nil {
		return err
	}
	toc, err := json.Marshal(tocOrEmpty(entry.Toc))
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	metadata := map[string]interface{}{
		"url":           entry.URL,
		"title":         entry.Title,
		"date_issued":   entry.Metadata.DateIssued,
		"date_modified": entry.Metadata.DateModified,
		"preamble":      entry.Metadata.Preamble,
		"authors":       string(authors),
		"content_hash":  entry.ContentHash,
		"last_scraped":  now,
		"updated_at":    now,
	}
	if len(emb.Title) > 0 {
		metadata["title_embedding"] = pgvector.NewVector(emb.Title)
	}
	if len(emb.Content) > 0 {
		metadata["content_embedding"] = pgvector.NewVector(emb.Content)
	}
	content := map[string]interface{}{
		"html":       entry.HTML,
		"markdown":   entry.Markdown,
		"toc":        string(toc),
		"updated_at": now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if exists {
		where := map[string]interface{}{"entry_id": entry.EntryID}
		if err := r.execBuilt(ctx, tx, builderUpdate("entry_metadata", where, metadata)); err != nil {
			return fmt.Errorf("update metadata for %s: %w", entry.EntryID, err)
		}
		if err := r.execBuilt(ctx, tx, builderUpdate("entry_content", where, content)); err != nil {
			return fmt.Errorf("update content for %s: %w", entry.EntryID, err)
		}
	} else {
		metadata["entry_id"] = entry.EntryID
		content["entry_id"] = entry.EntryID
		if err := r.execBuilt(ctx, tx, builderInsert("entry_metadata", metadata)); err != nil {
			if dbutil.IsConflict(err) {
				return fmt.Errorf("concurrent insert of %s: %w", entry.EntryID, err)
			}
			return fmt.Errorf("insert metadata for %s: %w", entry.EntryID, err)
		}
		if err := r.execBuilt(ctx, tx, builderInsert("entry_content", content)); err != nil {
			return fmt.Errorf("insert content for %s: %w", entry.EntryID, err)
		}
	}
	return tx.Commit()
}

type builtQuery struct {
	query string
	args  []interface{}
	err   error
}

func builderInsert(table string, data map[string]interface{}) builtQuery {
	query, args, err := builder.BuildInsert(table, []map[string]interface{}{data})
	return builtQuery{query: query, args: args, err: err}
}

func builderUpdate(table string, where, update map[string]interface{}) builtQuery {
	query, args, err := builder.BuildUpdate(table, where, update)
	return builtQuery{query: query, args: args, err: err}
}

func (r *EntryRepo) execBuilt(ctx context.Context, tx *sql.Tx, built builtQuery) error {
	if built.err != nil {
		return built.err
	}
	query, args := dbutil.Finalize(built.query, built.args)
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Get joins both halves of an entry. The entry is absent unless both the
// metadata and content records exist.
func (r *EntryRepo) Get(ctx context.Context, entryID string) (*model.Entry, error) {
	const query = `
		SELECT m.entry_id, m.url, m.title, m.date_issued, m.date_modified, m.preamble,
		       m.authors, m.content_hash, m.last_scraped, m.updated_at,
		       c.html, c.markdown, c.toc, c.updated_at
		FROM entry_metadata m
		JOIN entry_content c ON c.entry_id = m.entry_id
		WHERE m.entry_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, entryID)

	var entry model.Entry
	var content model.EntryContent
	var dateIssued, dateModified, preamble, contentHash, html, markdown sql.NullString
	var authorsRaw, tocRaw []byte
	err := row.Scan(
		&entry.EntryID, &entry.URL, &entry.Title, &dateIssued, &dateModified, &preamble,
		&authorsRaw, &contentHash, &entry.LastScraped, &entry.UpdatedAt,
		&html, &markdown, &tocRaw, &content.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	entry.DateIssued = dateIssued.String
	entry.DateModified = dateModified.String
	entry.Preamble = preamble.String
	entry.ContentHash = contentHash.String
	if err := json.Unmarshal(authorsRaw, &entry.Authors); err != nil {
		return nil, fmt.Errorf("decode authors for %s: %w", entryID, err)
	}
	content.EntryID = entry.EntryID
	content.HTML = html.String
	content.Markdown = markdown.String
	if err := json.Unmarshal(tocRaw, &content.Toc); err != nil {
		return nil, fmt.Errorf("decode toc for %s: %w", entryID, err)
	}
	entry.Content = &content
	return &entry, nil
}

// List returns entry summaries, most recently scraped first.
func (r *EntryRepo) List(ctx context.Context, limit, offset uint) ([]model.EntrySummary, error) {
	where := map[string]interface{}{
		"_orderby": "last_scraped desc",
		"_limit":   []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("entry_metadata", where,
		[]string{"entry_id", "url", "title", "date_modified", "last_scraped"})
	if err != nil {
		return nil, err
	}
	query, args := dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (r *EntryRepo) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM entry_metadata`
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SearchTitle returns summaries whose title contains query, case-insensitive.
func (r *EntryRepo) SearchTitle(ctx context.Context, query string, limit int) ([]model.EntrySummary, error) {
	const stmt = `
		SELECT entry_id, url, title, date_modified, last_scraped
		FROM entry_metadata
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY last_scraped DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// SearchContent returns summaries whose markdown body contains query,
// excluding already-found entry ids.
func (r *EntryRepo) SearchContent(ctx context.Context, query string, limit int, excludeIDs []string) ([]model.EntrySummary, error) {
	const stmt = `
		SELECT m.entry_id, m.url, m.title, m.date_modified, m.last_scraped
		FROM entry_metadata m
		JOIN entry_content c ON c.entry_id = m.entry_id
		WHERE c.markdown ILIKE '%' || $1 || '%'
		  AND NOT (m.entry_id = ANY($2))
		ORDER BY m.last_scraped DESC
		LIMIT $3
	`
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	rows, err := r.db.QueryContext(ctx, stmt, query, pq.Array(excludeIDs), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

const (
	VectorFieldTitle   = "title"
	VectorFieldContent = "content"
)

var vectorColumns = map[string]string{
	VectorFieldTitle:   "title_embedding",
	VectorFieldContent: "content_embedding",
}

// VectorSearch runs a cosine nearest-neighbor query against the chosen
// embedding column, filtered by a minimum similarity and capped at limit.
func (r *EntryRepo) VectorSearch(ctx context.Context, field string, queryVec []float32, threshold float64, limit int) ([]model.VectorMatch, error) {
	column, ok := vectorColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown vector field %q", appErr.ErrInvalid, field)
	}
	stmt := fmt.Sprintf(`
		SELECT entry_id, url, title, date_modified, last_scraped,
		       1 - (%s <=> $1) AS similarity
		FROM entry_metadata
		WHERE %s IS NOT NULL
		  AND 1 - (%s <=> $1) >= $2
		ORDER BY similarity DESC
		LIMIT $3
	`, column, column, column)

	rows, err := r.db.QueryContext(ctx, stmt, pgvector.NewVector(queryVec), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]model.VectorMatch, 0)
	for rows.Next() {
		var match model.VectorMatch
		var dateModified sql.NullString
		if err := rows.Scan(&match.EntryID, &match.URL, &match.Title, &dateModified,
			&match.LastScraped, &match.Similarity); err != nil {
			return nil, err
		}
		match.DateModified = dateModified.String
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// UpdateEmbeddings writes whichever vectors are present; absent fields are
// left untouched.
func (r *EntryRepo) UpdateEmbeddings(ctx context.Context, entryID string, emb model.EmbeddingSet) error {
	if emb.Empty() {
		return nil
	}
	update := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if len(emb.Title) > 0 {
		update["title_embedding"] = pgvector.NewVector(emb.Title)
	}
	if len(emb.Content) > 0 {
		update["content_embedding"] = pgvector.NewVector(emb.Content)
	}
	sqlStr, args, err := builder.BuildUpdate("entry_metadata",
		map[string]interface{}{"entry_id": entryID}, update)
	if err != nil {
		return err
	}
	query, args := dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListForRegeneration pages entries by most recent update, for re-embedding.
func (r *EntryRepo) ListForRegeneration(ctx context.Context, limit, offset uint) ([]model.EntrySummary, error) {
	where := map[string]interface{}{
		"_orderby": "updated_at desc",
		"_limit":   []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("entry_metadata", where,
		[]string{"entry_id", "url", "title", "date_modified", "last_scraped"})
	if err != nil {
		return nil, err
	}
	query, args := dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// ListMissingEmbeddings returns entries that have no vector yet, for the
// background backfill job.
func (r *EntryRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EntrySummary, error) {
	const stmt = `
		SELECT entry_id, url, title, date_modified, last_scraped
		FROM entry_metadata
		WHERE title_embedding IS NULL OR content_embedding IS NULL
		ORDER BY updated_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// GetMarkdown returns the stored markdown body for one entry.
func (r *EntryRepo) GetMarkdown(ctx context.Context, entryID string) (string, error) {
	const query = `SELECT markdown FROM entry_content WHERE entry_id = $1`
	var markdown sql.NullString
	if err := r.db.QueryRowContext(ctx, query, entryID).Scan(&markdown); err != nil {
		if err == sql.ErrNoRows {
			return "", appErr.ErrNotFound
		}
		return "", err
	}
	return markdown.String, nil
}

func scanSummaries(rows *sql.Rows) ([]model.EntrySummary, error) {
	summaries := make([]model.EntrySummary, 0)
	for rows.Next() {
		var item model.EntrySummary
		var dateModified sql.NullString
		if err := rows.Scan(&item.EntryID, &item.URL, &item.Title, &dateModified, &item.LastScraped); err != nil {
			return nil, err
		}
		item.DateModified = dateModified.String
		summaries = append(summaries, item)
	}
	return summaries, rows.Err()
}

func authorsOrEmpty(authors []string) []string {
	if authors == nil {
		return []string{}
	}
	return authors
}

func tocOrEmpty(toc []model.TocEntry) []model.TocEntry {
	if toc == nil {
		return []model.TocEntry{}
	}
	return toc
}
