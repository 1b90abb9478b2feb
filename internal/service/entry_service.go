package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sepworks/sepd/internal/model"
	appErr "github.com/sepworks/sepd/internal/pkg/errors"
	"github.com/sepworks/sepd/internal/seplink"
)

// EntryStore is the persistence gateway the service drives. *repo.EntryRepo
// satisfies it.
type EntryStore interface {
	Upsert(ctx context.Context, entry *model.ScrapedEntry, emb model.EmbeddingSet) error
	Get(ctx context.Context, entryID string) (*model.Entry, error)
	List(ctx context.Context, limit, offset uint) ([]model.EntrySummary, error)
	Count(ctx context.Context) (int, error)
	SearchTitle(ctx context.Context, query string, limit int) ([]model.EntrySummary, error)
	SearchContent(ctx context.Context, query string, limit int, excludeIDs []string) ([]model.EntrySummary, error)
	VectorSearch(ctx context.Context, field string, queryVec []float32, threshold float64, limit int) ([]model.VectorMatch, error)
	UpdateEmbeddings(ctx context.Context, entryID string, emb model.EmbeddingSet) error
	ListForRegeneration(ctx context.Context, limit, offset uint) ([]model.EntrySummary, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EntrySummary, error)
	GetMarkdown(ctx context.Context, entryID string) (string, error)
}

// Embedder produces optional vectors; a nil vector is a normal outcome.
// *ai.Embedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedEntry(ctx context.Context, title, content string) model.EmbeddingSet
}

// ArticleScraper runs the fetch/extract/normalize pipeline. *scrape.Scraper
// satisfies it.
type ArticleScraper interface {
	Exists(ctx context.Context, url string) bool
	Scrape(ctx context.Context, url string) (*model.ScrapedEntry, error)
}

type EntryService struct {
	store    EntryStore
	embedder Embedder
	scraper  ArticleScraper
	archiver *SnapshotArchiver
}

func NewEntryService(store EntryStore, embedder Embedder, scraper ArticleScraper, archiver *SnapshotArchiver) *EntryService {
	return &EntryService{
		store:    store,
		embedder: embedder,
		scraper:  scraper,
		archiver: archiver,
	}
}

// Scrape validates url, confirms the article exists on the site and runs the
// pipeline. Fetch and extraction failures abort the operation and surface.
func (s *EntryService) Scrape(ctx context.Context, url string) (*model.ScrapedEntry, error) {
	if _, err := seplink.Validate(url); err != nil {
		return nil, err
	}
	if !s.scraper.Exists(ctx, url) {
		return nil, fmt.Errorf("%w: no article at %s", appErr.ErrNotFound, url)
	}
	return s.scraper.Scrape(ctx, url)
}

// Save persists a scraped entry. Embedding generation is attempted inline;
// its failure degrades to absent vectors and never blocks the write. A
// persistence failure is logged and reported as false so the API layer can
// answer uniformly.
func (s *EntryService) Save(ctx context.Context, entry *model.ScrapedEntry) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("entry_id", entry.EntryID))

	emb := s.embedder.EmbedEntry(ctx, entry.Title, entry.Markdown)
	if emb.Empty() {
		logger.Warn("saving entry without embeddings")
	}
	s.archiver.Archive(ctx, entry.EntryID, entry.HTML)

	if err := s.store.Upsert(ctx, entry, emb); err != nil {
		logger.Error("failed to save entry", zap.Error(err))
		return false
	}
	logger.Info("entry saved",
		zap.Int("toc_entries", len(entry.Toc)),
		zap.Int("markdown_bytes", len(entry.Markdown)))
	return true
}

// Get returns the stored article for url; absent unless both halves exist.
func (s *EntryService) Get(ctx context.Context, url string) (*model.Entry, error) {
	entryID, err := seplink.Validate(url)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, entryID)
}

func (s *EntryService) List(ctx context.Context, limit, offset uint) ([]model.EntrySummary, int, error) {
	if limit == 0 {
		limit = 100
	}
	entries, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return entries, count, nil
}

// TextSearch matches the query against titles first and tops the result up
// with body-only matches, never exceeding limit and never duplicating.
func (s *EntryService) TextSearch(ctx context.Context, query string, limit int) ([]model.EntrySummary, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := s.store.SearchTitle(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) < limit {
		exclude := make([]string, 0, len(results))
		for _, item := range results {
			exclude = append(exclude, item.EntryID)
		}
		extra, err := s.store.SearchContent(ctx, query, limit-len(results), exclude)
		if err != nil {
			return nil, err
		}
		results = append(results, extra...)
	}
	return results, nil
}

// VectorSearch embeds the query and delegates to the store's nearest-neighbor
// query. A failed query embedding degrades to an empty result, not an error.
func (s *EntryService) VectorSearch(ctx context.Context, query, field string, threshold float64, limit int) ([]model.VectorMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	queryVec := s.embedder.Embed(ctx, query)
	if len(queryVec) == 0 {
		logutil.GetLogger(ctx).Warn("query embedding unavailable, returning no results",
			zap.String("query", query))
		return []model.VectorMatch{}, nil
	}
	return s.store.VectorSearch(ctx, field, queryVec, threshold, limit)
}

// RegenerateEmbeddings re-embeds one page of entries, most recently updated
// first. Per-entry failures are counted, never aborting the batch.
func (s *EntryService) RegenerateEmbeddings(ctx context.Context, limit, offset uint) (model.RegenerateResult, error) {
	if limit == 0 {
		limit = 10
	}
	entries, err := s.store.ListForRegeneration(ctx, limit, offset)
	if err != nil {
		return model.RegenerateResult{}, err
	}
	result := model.RegenerateResult{TotalProcessed: len(entries)}
	for _, entry := range entries {
		if s.regenerateOne(ctx, entry) {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}
	return result, nil
}

func (s *EntryService) regenerateOne(ctx context.Context, entry model.EntrySummary) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("entry_id", entry.EntryID))
	markdown, err := s.store.GetMarkdown(ctx, entry.EntryID)
	if err != nil || markdown == "" {
		logger.Warn("no markdown content for entry", zap.Error(err))
		return false
	}
	emb := s.embedder.EmbedEntry(ctx, entry.Title, markdown)
	if emb.Empty() {
		logger.Error("failed to generate embeddings for entry")
		return false
	}
	if err := s.store.UpdateEmbeddings(ctx, entry.EntryID, emb); err != nil {
		logger.Error("failed to update embeddings", zap.Error(err))
		return false
	}
	logger.Info("embeddings updated")
	return true
}

// BackfillMissingEmbeddings embeds entries that have no vectors yet; used by
// the background job.
func (s *EntryService) BackfillMissingEmbeddings(ctx context.Context, batch int) error {
	if batch <= 0 {
		batch = 10
	}
	entries, err := s.store.ListMissingEmbeddings(ctx, batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		s.regenerateOne(ctx, entry)
	}
	return nil
}

// Markdown returns the stored markdown body for url.
func (s *EntryService) Markdown(ctx context.Context, url string) (string, error) {
	entryID, err := seplink.Validate(url)
	if err != nil {
		return "", err
	}
	return s.store.GetMarkdown(ctx, entryID)
}
