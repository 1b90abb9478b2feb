package model

// ScrapeMetadata holds the tolerant metadata fields pulled out of an article
// page. Every field may be empty; absence is never an extraction failure.
type ScrapeMetadata struct {
	Preamble     string
	DateIssued   string
	DateModified string
	Authors      []string
}

// ScrapedEntry is the full output of one scrape pipeline run.
type ScrapedEntry struct {
	EntryID     string
	URL         string
	Title       string
	Metadata    ScrapeMetadata
	ContentHash string
	HTML        string
	Markdown    string
	Toc         []TocEntry
}

// EmbeddingSet carries the per-field vectors for one entry. A nil slice means
// that field's embedding was not generated; that is a storable outcome.
type EmbeddingSet struct {
	Title   []float32
	Content []float32
}

// Empty reports whether no vector was produced at all.
func (s EmbeddingSet) Empty() bool {
	return len(s.Title) == 0 && len(s.Content) == 0
}

// RegenerateResult summarizes one embedding regeneration batch.
type RegenerateResult struct {
	SuccessCount   int `json:"success_count"`
	FailureCount   int `json:"failure_count"`
	TotalProcessed int `json:"total_processed"`
}
