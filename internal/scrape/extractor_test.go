package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/sepworks/sepd/internal/pkg/errors"
	"github.com/sepworks/sepd/internal/model"
)

const modernLayout = `<html><head><title>page</title></head><body>
<div id="header">site chrome</div>
<h1 class="title">Immanuel Kant</h1>
<div id="pubinfo">First published Thu May 20, 2010; substantive revision Mon Jul 25, 2022</div>
<div id="preamble"><p>Kant is a central figure in modern philosophy.</p></div>
<div id="aueditor">Entry by: Jane Doe, John Smith and A. N. Other</div>
<div id="main-content">
<h2 id="Intro">1. Introduction</h2><p>Body text.</p>
<h3>No anchor</h3>
<h3 id="Sub">1.1 A subsection</h3><p>More text.</p>
</div>
<div id="footer">footer chrome</div>
</body></html>`

func TestTitle(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(modernLayout)
	require.NoError(t, err)
	require.Equal(t, "Immanuel Kant", e.Title(doc))
}

func TestTitleMissing(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(`<html><body><p>no title here</p></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "", e.Title(doc))
}

func TestMetadata(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(modernLayout)
	require.NoError(t, err)

	meta := e.Metadata(doc)
	require.Equal(t, "Kant is a central figure in modern philosophy.", meta.Preamble)
	require.Equal(t, "Thu May 20, 2010", meta.DateIssued)
	require.Equal(t, "Mon Jul 25, 2022", meta.DateModified)
	require.Equal(t, []string{"Jane Doe", "John Smith", "A. N. Other"}, meta.Authors)
}

func TestMetadataAbsentElements(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(`<html><body><div id="main-content"><p>bare</p></div></body></html>`)
	require.NoError(t, err)

	meta := e.Metadata(doc)
	require.Empty(t, meta.Preamble)
	require.Empty(t, meta.DateIssued)
	require.Empty(t, meta.DateModified)
	require.Empty(t, meta.Authors)
}

func TestMetadataDateStopsAtSemicolon(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(`<html><body><div id="pubinfo">First published Jan 1, 2000; see also elsewhere</div></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "Jan 1, 2000", e.Metadata(doc).DateIssued)
}

func TestParseAuthors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "prefix comma and and",
			text: "Entry by: Jane Doe, John Smith and A. N. Other",
			want: []string{"Jane Doe", "John Smith", "A. N. Other"},
		},
		{
			name: "ampersand",
			text: "Jane Doe & John Smith",
			want: []string{"Jane Doe", "John Smith"},
		},
		{
			name: "single author no prefix",
			text: "Jane Doe",
			want: []string{"Jane Doe"},
		},
		{
			name: "duplicates preserved",
			text: "Jane Doe, Jane Doe",
			want: []string{"Jane Doe", "Jane Doe"},
		},
		{
			name: "empty fragments dropped",
			text: "Entry by: , Jane Doe,  ",
			want: []string{"Jane Doe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseAuthors(tt.text))
		})
	}
}

func TestContentRootStrategies(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		wantStrategy string
	}{
		{
			name:         "primary selector",
			html:         modernLayout,
			wantStrategy: "main-content",
		},
		{
			name:         "aueditable fallback",
			html:         `<html><body><div class="aueditable"><p>old layout</p></div></body></html>`,
			wantStrategy: "aueditable",
		},
		{
			name:         "stripped body fallback",
			html:         `<html><body><div id="header">x</div><p>just text</p><script>junk()</script></body></html>`,
			wantStrategy: "stripped-body",
		},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.Parse(tt.html)
			require.NoError(t, err)
			fragment, strategy, err := e.ContentRoot(doc)
			require.NoError(t, err)
			require.NotNil(t, fragment)
			require.Equal(t, tt.wantStrategy, strategy)
		})
	}
}

func TestContentRootStripsChrome(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(`<html><body><div id="header">chrome</div><p>keep me</p><style>.x{}</style></body></html>`)
	require.NoError(t, err)

	fragment, _, err := e.ContentRoot(doc)
	require.NoError(t, err)
	html, err := e.Serialize(fragment)
	require.NoError(t, err)
	require.Contains(t, html, "keep me")
	require.NotContains(t, html, "chrome")
	require.NotContains(t, html, ".x{}")
}

func TestToc(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(`<html><body><div id="main-content">
<h2 id="a">Intro</h2>
<h3>NoId</h3>
<h3 id="b">Sub</h3>
</div></body></html>`)
	require.NoError(t, err)

	fragment, _, err := e.ContentRoot(doc)
	require.NoError(t, err)

	toc := e.Toc(fragment)
	require.Equal(t, []model.TocEntry{
		{ID: "a", Text: "Intro", Level: 1},
		{ID: "b", Text: "Sub", Level: 2},
	}, toc)
}

func TestTocDeepHeadings(t *testing.T) {
	e := NewExtractor()
	doc, err := e.Parse(`<html><body><div id="main-content">
<h2 id="s1">One</h2><h4 id="s2">Deep</h4><h6 id="s3">Deepest</h6>
</div></body></html>`)
	require.NoError(t, err)

	fragment, _, err := e.ContentRoot(doc)
	require.NoError(t, err)

	toc := e.Toc(fragment)
	require.Len(t, toc, 3)
	require.Equal(t, 1, toc[0].Level)
	require.Equal(t, 3, toc[1].Level)
	require.Equal(t, 5, toc[2].Level)
}

func TestContentRootNoBody(t *testing.T) {
	e := NewExtractor()
	// A document with no body element at all cannot be parsed by net/html
	// without one being synthesized, so simulate the failure path directly
	// against a document whose body was never populated.
	doc, err := e.Parse(``)
	require.NoError(t, err)
	fragment, _, err2 := e.ContentRoot(doc)
	if err2 != nil {
		require.ErrorIs(t, err2, appErr.ErrExtract)
		return
	}
	// html parsers synthesize an empty body; then the strategy still applies.
	require.NotNil(t, fragment)
}

func TestContentHashDeterministic(t *testing.T) {
	first := ContentHash("<div><p>same</p></div>")
	second := ContentHash("<div><p>same</p></div>")
	changed := ContentHash("<div><p>different</p></div>")
	require.Equal(t, first, second)
	require.NotEqual(t, first, changed)
	require.Len(t, first, 64)
}
