// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grobid

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/milkbottle/internal/httputil"
	"github.com/pdiddy/milkbottle/internal/pdf"
	"github.com/pdiddy/milkbottle/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

const sampleTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title level="a" type="main">Deep  Widgets</title></titleStmt>
      <sourceDesc>
        <biblStruct>
          <analytic>
            <author><persName><forename type="first">Ann</forename><forename type="middle">B</forename><surname>Lee</surname></persName></author>
            <author><persName><forename type="first">Bo</forename><surname>Chen</surname></persName></author>
            <author><affiliation><orgName>Widget Lab</orgName></affiliation></author>
          </analytic>
        </biblStruct>
      </sourceDesc>
    </fileDesc>
    <profileDesc>
      <textClass><keywords><term>widgets</term><term>load</term></keywords></textClass>
      <abstract><div><p>We study <hi rend="italic">widgets</hi>.</p></div></abstract>
    </profileDesc>
  </teiHeader>
  <text>
    <body>
      <div>
        <head n="1">Introduction</head>
        <p>Widgets matter <ref type="bibr" target="#b0">[1]</ref>.</p>
        <formula xml:id="formula_0">E = mc²<label>(1)</label></formula>
        <list><item>first</item><item>second</item></list>
        <figure xml:id="fig_0"><head>Figure 1</head><label>1</label><figDesc>A widget.</figDesc></figure>
      </div>
      <div>
        <head n="2.1">Setup</head>
        <p>We set things up.</p>
      </div>
      <figure type="table" xml:id="tab_0"><head>Table 1</head><label>1</label><figDesc>Scores.</figDesc></figure>
    </body>
    <back>
      <div type="acknowledgement">
        <div><head>Acknowledgements</head><p>Thanks to all.</p></div>
      </div>
      <div type="references">
        <listBibl>
          <biblStruct xml:id="b0">
            <analytic>
              <title level="a" type="main">Widget theory</title>
              <author><persName><forename type="first">A</forename><surname>Smith</surname></persName></author>
              <idno type="DOI">10.1234/wid.5</idno>
            </analytic>
            <monogr>
              <title level="j">J. Widgets</title>
              <imprint><date type="published" when="2019-05" /></imprint>
            </monogr>
            <note type="raw_reference">A. Smith. Widget theory. J. Widgets, 2019.</note>
          </biblStruct>
          <biblStruct xml:id="b1">
            <monogr>
              <title level="m">Widget Book</title>
              <author><persName><surname>Jones</surname></persName></author>
              <imprint><date>2020</date></imprint>
            </monogr>
          </biblStruct>
        </listBibl>
      </div>
    </back>
  </text>
</TEI>`

func TestParseTEI(t *testing.T) {
	doc, err := ParseTEI(strings.NewReader(sampleTEI))
	require.NoError(t, err)

	assert.Equal(t, "Deep Widgets", doc.Title)
	assert.Equal(t, []string{"Ann B Lee", "Bo Chen"}, doc.Authors)
	assert.Equal(t, []string{"widgets", "load"}, doc.Keywords)
	assert.Equal(t, "We study widgets.", doc.Abstract)

	require.Len(t, doc.Sections, 3)

	intro := doc.Sections[0]
	assert.Equal(t, "Introduction", intro.Heading)
	assert.Equal(t, 1, intro.Level)
	require.Len(t, intro.Blocks, 3)
	assert.Equal(t, types.Block{Kind: types.BlockParagraph, Text: "Widgets matter [1]."}, intro.Blocks[0])
	assert.Equal(t, types.BlockEquation, intro.Blocks[1].Kind)
	assert.Equal(t, "E = mc^{2}", intro.Blocks[1].Text)
	assert.Equal(t, "1", intro.Blocks[1].Label)
	assert.Equal(t, []string{"first", "second"}, intro.Blocks[2].Items)

	assert.Equal(t, "Setup", doc.Sections[1].Heading)
	assert.Equal(t, 2, doc.Sections[1].Level)

	assert.Equal(t, "Acknowledgements", doc.Sections[2].Heading)
	assert.Equal(t, 1, doc.Sections[2].Level)

	require.Len(t, doc.Figures, 2)
	assert.Equal(t, types.Figure{ID: "fig_0", Kind: "figure", Label: "1", Caption: "A widget."}, doc.Figures[0])
	assert.Equal(t, "table", doc.Figures[1].Kind)
	assert.Equal(t, "Scores.", doc.Figures[1].Caption)

	require.Len(t, doc.References, 2)
	first := doc.References[0]
	assert.Equal(t, "1", first.Key)
	assert.Equal(t, []string{"A Smith"}, first.Authors)
	assert.Equal(t, "Widget theory", first.Title)
	assert.Equal(t, "J. Widgets", first.Venue)
	assert.Equal(t, "2019", first.Year)
	assert.Equal(t, "10.1234/wid.5", first.DOI)
	assert.Equal(t, "A. Smith. Widget theory. J. Widgets, 2019.", first.Raw)

	second := doc.References[1]
	assert.Equal(t, "2", second.Key)
	assert.Equal(t, []string{"Jones"}, second.Authors)
	assert.Equal(t, "Widget Book", second.Title)
	assert.Empty(t, second.Venue)
	assert.Equal(t, "2020", second.Year)
}

func TestParseTEI_Malformed(t *testing.T) {
	_, err := ParseTEI(strings.NewReader("<TEI><teiHeader>"))
	require.Error(t, err)
}

func TestHeadLevel(t *testing.T) {
	tests := []struct {
		heading, n string
		want       int
	}{
		{"", "", 0},
		{"Introduction", "", 1},
		{"Introduction", "1", 1},
		{"Introduction", "1.", 1},
		{"Setup", "2.1", 2},
		{"Deep", "1.2.3.4.5.6.7", 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, headLevel(tt.heading, tt.n), "head %q n=%q", tt.heading, tt.n)
	}
}

func TestIsAlive(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"alive", http.StatusOK, "true", false},
		{"alive with newline", http.StatusOK, "true\n", false},
		{"not alive", http.StatusOK, "false", true},
		{"server error", http.StatusInternalServerError, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/isalive", r.URL.Path)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New(srv.URL).IsAlive(t.Context())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnavailable)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsAlive_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url).IsAlive(t.Context())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%fake body\n"), 0o644))
	return path
}

func TestProcessFulltext(t *testing.T) {
	path := writePDF(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/processFulltextDocument", r.URL.Path)
		assert.Equal(t, "milkbottle-test", r.Header.Get("User-Agent"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("input")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "paper.pdf", header.Filename)
		data, _ := io.ReadAll(file)
		assert.True(t, strings.HasPrefix(string(data), "%PDF-1.4"))

		assert.Equal(t, "1", r.FormValue("includeRawCitations"))
		assert.Equal(t, "1", r.FormValue("consolidateHeader"))

		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, sampleTEI)
	}))
	defer srv.Close()

	c := New(srv.URL, WithConsolidateHeader(true), WithUserAgent("milkbottle-test"))
	doc, err := c.ProcessFulltext(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.SourcePath)
	assert.Equal(t, "grobid", doc.Backend)
	assert.Equal(t, "Deep Widgets", doc.Title)
	assert.Len(t, doc.References, 2)
}

func TestProcessFulltext_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ProcessFulltext(t.Context(), writePDF(t))
	assert.ErrorIs(t, err, pdf.ErrNoText)
}

func TestProcessFulltext_BusyAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithMaxRetries(2)).ProcessFulltext(t.Context(), writePDF(t))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcessFulltext_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "  [GENERAL] An exception occurred  ")
	}))
	defer srv.Close()

	_, err := New(srv.URL).ProcessFulltext(t.Context(), writePDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.Contains(t, err.Error(), "[GENERAL] An exception occurred")
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestProcessFulltext_NotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := New("http://127.0.0.1:1").ProcessFulltext(t.Context(), path)
	assert.ErrorIs(t, err, pdf.ErrNotPDF)
}

func TestNewFromConfig(t *testing.T) {
	c := NewFromConfig(types.GrobidConfig{URL: "http://grobid:8070/"})
	assert.Equal(t, "http://grobid:8070", c.BaseURL())

	c = NewFromConfig(types.GrobidConfig{})
	assert.Equal(t, DefaultURL, c.BaseURL())
}
