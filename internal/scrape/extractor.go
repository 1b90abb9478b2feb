// Package scrape turns a SEP article page into structured data: title,
// tolerant metadata, an ordered table of contents, a canonical content hash
// and a markdown body. The site has shipped several layouts over the years,
// so content selection runs through an ordered strategy list instead of a
// single selector.
package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sepworks/sepd/internal/model"
	appErr "github.com/sepworks/sepd/internal/pkg/errors"
)

var (
	dateIssuedRe   = regexp.MustCompile(`First published\s+([^;\n]+)`)
	dateModifiedRe = regexp.MustCompile(`substantive revision\s+([^;\n]+)`)
	authorPrefixRe = regexp.MustCompile(`^Entry by\s*:\s*`)
	authorSplitRe  = regexp.MustCompile(`,\s*|\s+and\s+|\s*&\s*`)
)

// contentStrategy locates the article body in one known page layout. It
// reports not-applicable rather than failing, so the next strategy can try.
type contentStrategy struct {
	name  string
	apply func(doc *goquery.Document) (*goquery.Selection, bool)
}

var contentStrategies = []contentStrategy{
	{
		name: "main-content",
		apply: func(doc *goquery.Document) (*goquery.Selection, bool) {
			sel := doc.Find("#main-content")
			return sel.First(), sel.Length() > 0
		},
	},
	{
		// Older articles mark the author-editable region instead.
		name: "aueditable",
		apply: func(doc *goquery.Document) (*goquery.Selection, bool) {
			sel := doc.Find(".aueditable")
			return sel.First(), sel.Length() > 0
		},
	},
	{
		name: "stripped-body",
		apply: func(doc *goquery.Document) (*goquery.Selection, bool) {
			body := doc.Find("body")
			if body.Length() == 0 {
				return nil, false
			}
			body.Find("#header, #footer, script, style").Remove()
			return body.First(), true
		},
	},
}

// Extractor parses raw article HTML.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Parse(rawHTML string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Title returns the designated title element's text, or "" when the page has
// none; the caller falls back to a humanized entry id.
func (e *Extractor) Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("h1.title").First().Text())
}

// Metadata extracts preamble, publication dates and authors. Each field is
// independent: a missing element or pattern yields a zero value, never an
// error.
func (e *Extractor) Metadata(doc *goquery.Document) model.ScrapeMetadata {
	var meta model.ScrapeMetadata

	if preamble := doc.Find("#preamble"); preamble.Length() > 0 {
		meta.Preamble = strings.TrimSpace(preamble.First().Text())
	}

	if pubInfo := doc.Find("#pubinfo"); pubInfo.Length() > 0 {
		text := strings.TrimSpace(pubInfo.First().Text())
		if m := dateIssuedRe.FindStringSubmatch(text); m != nil {
			meta.DateIssued = strings.TrimSpace(m[1])
		}
		if m := dateModifiedRe.FindStringSubmatch(text); m != nil {
			meta.DateModified = strings.TrimSpace(m[1])
		}
	}

	if authorElem := doc.Find("#aueditor"); authorElem.Length() > 0 {
		meta.Authors = parseAuthors(authorElem.First().Text())
	}
	return meta
}

// parseAuthors splits an author line on commas, the word "and" or an
// ampersand, preserving source order and duplicates.
func parseAuthors(text string) []string {
	text = authorPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")
	parts := authorSplitRe.Split(text, -1)
	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}

// ContentRoot selects the article body via the first applicable layout
// strategy. It fails only when the page has no body at all.
func (e *Extractor) ContentRoot(doc *goquery.Document) (*goquery.Selection, string, error) {
	for _, strategy := range contentStrategies {
		if sel, ok := strategy.apply(doc); ok {
			return sel, strategy.name, nil
		}
	}
	return nil, "", fmt.Errorf("%w: document has no body", appErr.ErrExtract)
}

// Toc collects h2-h6 headings of the fragment in document order. Headings
// without an id cannot be deep-linked and are skipped. Rank 2 maps to level 1.
func (e *Extractor) Toc(fragment *goquery.Selection) []model.TocEntry {
	toc := make([]model.TocEntry, 0)
	fragment.Find("h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok || id == "" {
			return
		}
		name := goquery.NodeName(s)
		rank := int(name[1] - '0')
		toc = append(toc, model.TocEntry{
			ID:    id,
			Text:  strings.TrimSpace(s.Text()),
			Level: rank - 1,
		})
	})
	return toc
}

// Serialize renders the fragment back to HTML. The serialized form is the
// canonical content: both the hash and the markdown derive from it.
func (e *Extractor) Serialize(fragment *goquery.Selection) (string, error) {
	html, err := goquery.OuterHtml(fragment)
	if err != nil {
		return "", fmt.Errorf("serialize fragment: %w", err)
	}
	return html, nil
}

// ContentHash returns the SHA-256 hex digest of the serialized fragment.
// Equal digests across scrapes mean the article did not change.
func ContentHash(fragment string) string {
	sum := sha256.Sum256([]byte(fragment))
	return hex.EncodeToString(sum[:])
}
