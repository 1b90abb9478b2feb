package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sepworks/sepd/internal/model"
	appErr "github.com/sepworks/sepd/internal/pkg/errors"
)

type storedEntry struct {
	entry model.ScrapedEntry
	emb   model.EmbeddingSet
}

type fakeStore struct {
	entries    map[string]*storedEntry
	order      []string
	failUpsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]*storedEntry{}}
}

func (f *fakeStore) Upsert(ctx context.Context, entry *model.ScrapedEntry, emb model.EmbeddingSet) error {
	if f.failUpsert {
		return errors.New("connection refused")
	}
	if _, ok := f.entries[entry.EntryID]; !ok {
		f.order = append(f.order, entry.EntryID)
	}
	f.entries[entry.EntryID] = &storedEntry{entry: *entry, emb: emb}
	return nil
}

func (f *fakeStore) Get(ctx context.Context, entryID string) (*model.Entry, error) {
	stored, ok := f.entries[entryID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	entry := &model.Entry{
		EntryMetadata: model.EntryMetadata{
			EntryID: stored.entry.EntryID,
			URL:     stored.entry.URL,
			Title:   stored.entry.Title,
			Authors: stored.entry.Metadata.Authors,
		},
		Content: &model.EntryContent{
			EntryID:  stored.entry.EntryID,
			Markdown: stored.entry.Markdown,
			Toc:      stored.entry.Toc,
		},
	}
	return entry, nil
}

func (f *fakeStore) List(ctx context.Context, limit, offset uint) ([]model.EntrySummary, error) {
	return f.summaries(), nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	return len(f.entries), nil
}

func (f *fakeStore) SearchTitle(ctx context.Context, query string, limit int) ([]model.EntrySummary, error) {
	results := make([]model.EntrySummary, 0)
	for _, item := range f.summaries() {
		if len(results) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(item.Title), strings.ToLower(query)) {
			results = append(results, item)
		}
	}
	return results, nil
}

func (f *fakeStore) SearchContent(ctx context.Context, query string, limit int, excludeIDs []string) ([]model.EntrySummary, error) {
	excluded := map[string]struct{}{}
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	results := make([]model.EntrySummary, 0)
	for _, id := range f.order {
		if len(results) >= limit {
			break
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		stored := f.entries[id]
		if strings.Contains(strings.ToLower(stored.entry.Markdown), strings.ToLower(query)) {
			results = append(results, f.summaryOf(stored))
		}
	}
	return results, nil
}

func (f *fakeStore) VectorSearch(ctx context.Context, field string, queryVec []float32, threshold float64, limit int) ([]model.VectorMatch, error) {
	matches := make([]model.VectorMatch, 0)
	for _, id := range f.order {
		stored := f.entries[id]
		if len(stored.emb.Content) == 0 {
			continue
		}
		matches = append(matches, model.VectorMatch{EntrySummary: f.summaryOf(stored), Similarity: 0.9})
	}
	return matches, nil
}

func (f *fakeStore) UpdateEmbeddings(ctx context.Context, entryID string, emb model.EmbeddingSet) error {
	stored, ok := f.entries[entryID]
	if !ok {
		return appErr.ErrNotFound
	}
	if len(emb.Title) > 0 {
		stored.emb.Title = emb.Title
	}
	if len(emb.Content) > 0 {
		stored.emb.Content = emb.Content
	}
	return nil
}

func (f *fakeStore) ListForRegeneration(ctx context.Context, limit, offset uint) ([]model.EntrySummary, error) {
	all := f.summaries()
	if int(offset) >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if uint(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EntrySummary, error) {
	results := make([]model.EntrySummary, 0)
	for _, id := range f.order {
		stored := f.entries[id]
		if stored.emb.Empty() {
			results = append(results, f.summaryOf(stored))
		}
	}
	return results, nil
}

func (f *fakeStore) GetMarkdown(ctx context.Context, entryID string) (string, error) {
	stored, ok := f.entries[entryID]
	if !ok {
		return "", appErr.ErrNotFound
	}
	return stored.entry.Markdown, nil
}

func (f *fakeStore) summaries() []model.EntrySummary {
	results := make([]model.EntrySummary, 0, len(f.order))
	for _, id := range f.order {
		results = append(results, f.summaryOf(f.entries[id]))
	}
	return results
}

func (f *fakeStore) summaryOf(stored *storedEntry) model.EntrySummary {
	return model.EntrySummary{
		EntryID: stored.entry.EntryID,
		URL:     stored.entry.URL,
		Title:   stored.entry.Title,
	}
}

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) []float32 {
	if f.fail || strings.TrimSpace(text) == "" {
		return nil
	}
	return []float32{0.1, 0.2, 0.3}
}

func (f *fakeEmbedder) EmbedEntry(ctx context.Context, title, content string) model.EmbeddingSet {
	return model.EmbeddingSet{
		Title:   f.Embed(ctx, title),
		Content: f.Embed(ctx, content),
	}
}

type fakeScraper struct {
	exists bool
	result *model.ScrapedEntry
	err    error
}

func (f *fakeScraper) Exists(ctx context.Context, url string) bool {
	return f.exists
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*model.ScrapedEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func scrapedEntry(id, title, markdown string) *model.ScrapedEntry {
	return &model.ScrapedEntry{
		EntryID:  id,
		URL:      "https://plato.stanford.edu/entries/" + id + "/",
		Title:    title,
		Markdown: markdown,
	}
}

func newService(store *fakeStore, embedder Embedder, scraper ArticleScraper) *EntryService {
	return NewEntryService(store, embedder, scraper, nil)
}

func TestSaveUpdateNotDuplicate(t *testing.T) {
	store := newFakeStore()
	s := newService(store, &fakeEmbedder{}, &fakeScraper{})

	require.True(t, s.Save(context.Background(), scrapedEntry("kant", "Kant", "body")))
	require.True(t, s.Save(context.Background(), scrapedEntry("kant", "Immanuel Kant", "body v2")))

	require.Len(t, store.entries, 1)
	require.Equal(t, "Immanuel Kant", store.entries["kant"].entry.Title)
}

func TestSaveSucceedsWithoutEmbeddings(t *testing.T) {
	store := newFakeStore()
	s := newService(store, &fakeEmbedder{fail: true}, &fakeScraper{})

	require.True(t, s.Save(context.Background(), scrapedEntry("kant", "Kant", "body")))
	require.True(t, store.entries["kant"].emb.Empty())
}

func TestSaveReportsPersistenceFailure(t *testing.T) {
	store := newFakeStore()
	store.failUpsert = true
	s := newService(store, &fakeEmbedder{}, &fakeScraper{})

	require.False(t, s.Save(context.Background(), scrapedEntry("kant", "Kant", "body")))
}

func TestScrapeRejectsForeignURL(t *testing.T) {
	s := newService(newFakeStore(), &fakeEmbedder{}, &fakeScraper{exists: true})

	_, err := s.Scrape(context.Background(), "https://other.example/entries/kant/")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestScrapeMissingArticle(t *testing.T) {
	s := newService(newFakeStore(), &fakeEmbedder{}, &fakeScraper{exists: false})

	_, err := s.Scrape(context.Background(), "https://plato.stanford.edu/entries/nonexistent/")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestVectorSearchDegradesOnEmbeddingFailure(t *testing.T) {
	store := newFakeStore()
	s := newService(store, &fakeEmbedder{fail: true}, &fakeScraper{})

	results, err := s.VectorSearch(context.Background(), "causation", "content", 0.3, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestTextSearchTitleMatchesFirst(t *testing.T) {
	store := newFakeStore()
	s := newService(store, &fakeEmbedder{}, &fakeScraper{})

	// 2 title matches, 5 body-only matches.
	require.True(t, s.Save(context.Background(), scrapedEntry("logic-classical", "Classical Logic", "about proofs")))
	require.True(t, s.Save(context.Background(), scrapedEntry("logic-modal", "Modal Logic", "about worlds")))
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("other-%d", i)
		require.True(t, s.Save(context.Background(), scrapedEntry(id, "Unrelated", "a text about logic")))
	}

	results, err := s.TextSearch(context.Background(), "logic", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.Equal(t, "logic-classical", results[0].EntryID)
	require.Equal(t, "logic-modal", results[1].EntryID)

	seen := map[string]struct{}{}
	for _, item := range results {
		_, dup := seen[item.EntryID]
		require.False(t, dup, "duplicate result %s", item.EntryID)
		seen[item.EntryID] = struct{}{}
	}
}

func TestRegenerateEmbeddingsCountsFailures(t *testing.T) {
	store := newFakeStore()
	s := newService(store, &fakeEmbedder{}, &fakeScraper{})

	require.True(t, s.Save(context.Background(), scrapedEntry("good", "Good", "has content")))
	require.True(t, s.Save(context.Background(), scrapedEntry("empty", "Empty", "")))

	result, err := s.RegenerateEmbeddings(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalProcessed)
	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)
}

func TestBackfillMissingEmbeddings(t *testing.T) {
	store := newFakeStore()
	failing := &fakeEmbedder{fail: true}
	s := newService(store, failing, &fakeScraper{})
	require.True(t, s.Save(context.Background(), scrapedEntry("kant", "Kant", "body")))
	require.True(t, store.entries["kant"].emb.Empty())

	// Provider recovers; the backfill fills the gap.
	failing.fail = false
	require.NoError(t, s.BackfillMissingEmbeddings(context.Background(), 10))
	require.False(t, store.entries["kant"].emb.Empty())
}
