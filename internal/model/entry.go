package model

import "time"

// TocEntry is one heading in an article's table of contents. Only headings
// carrying an id attribute are addressable and therefore included.
type TocEntry struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// EntryMetadata mirrors the entry_metadata table.
type EntryMetadata struct {
	EntryID      string    `json:"entry_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	DateIssued   string    `json:"date_issued,omitempty"`
	DateModified string    `json:"date_modified,omitempty"`
	Preamble     string    `json:"preamble,omitempty"`
	Authors      []string  `json:"authors"`
	ContentHash  string    `json:"content_hash,omitempty"`
	LastScraped  time.Time `json:"last_scraped"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EntryContent mirrors the entry_content table.
type EntryContent struct {
	EntryID   string     `json:"entry_id"`
	HTML      string     `json:"-"`
	Markdown  string     `json:"markdown"`
	Toc       []TocEntry `json:"toc"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Entry joins both halves of a stored article.
type Entry struct {
	EntryMetadata
	Content *EntryContent `json:"content,omitempty"`
}

// EntrySummary is the listing/search projection of an entry.
type EntrySummary struct {
	EntryID      string    `json:"entry_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	DateModified string    `json:"date_modified,omitempty"`
	LastScraped  time.Time `json:"last_scraped"`
}

// VectorMatch pairs a summary with its similarity score.
type VectorMatch struct {
	EntrySummary
	Similarity float64 `json:"similarity"`
}
