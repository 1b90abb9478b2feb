package scrape

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sepworks/sepd/internal/model"
	"github.com/sepworks/sepd/internal/seplink"
)

// Scraper runs the fetch → extract → normalize pipeline for one article URL.
type Scraper struct {
	fetcher   *Fetcher
	extractor *Extractor
	converter *MarkdownConverter
}

func NewScraper(fetcher *Fetcher) *Scraper {
	return &Scraper{
		fetcher:   fetcher,
		extractor: NewExtractor(),
		converter: NewMarkdownConverter(),
	}
}

// Exists reports whether an article is present at url.
func (s *Scraper) Exists(ctx context.Context, url string) bool {
	return s.fetcher.Exists(ctx, url)
}

// Scrape fetches and extracts the article at url. Fetch and extraction
// failures abort the scrape and carry the URL and stage in the error.
func (s *Scraper) Scrape(ctx context.Context, url string) (*model.ScrapedEntry, error) {
	entryID := seplink.EntryID(url)
	logger := logutil.GetLogger(ctx).With(zap.String("entry_id", entryID), zap.String("url", url))

	rawHTML, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	doc, err := s.extractor.Parse(rawHTML)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	title := s.extractor.Title(doc)
	if title == "" {
		title = seplink.HumanizeID(entryID)
	}
	metadata := s.extractor.Metadata(doc)

	fragment, strategy, err := s.extractor.ContentRoot(doc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}
	toc := s.extractor.Toc(fragment)

	contentHTML, err := s.extractor.Serialize(fragment)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}
	markdown, err := s.converter.Convert(contentHTML)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", url, err)
	}

	logger.Info("article scraped",
		zap.String("strategy", strategy),
		zap.Int("toc_entries", len(toc)),
		zap.Int("markdown_bytes", len(markdown)))

	return &model.ScrapedEntry{
		EntryID:     entryID,
		URL:         url,
		Title:       title,
		Metadata:    metadata,
		ContentHash: ContentHash(contentHTML),
		HTML:        contentHTML,
		Markdown:    markdown,
		Toc:         toc,
	}, nil
}
