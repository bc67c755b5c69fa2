// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grobid

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/milkbottle/internal/mathconv"
	"github.com/pdiddy/milkbottle/pkg/types"
)

// TEI document shape returned by processFulltextDocument. Tags carry no
// namespace so they match the TEI default namespace.
type teiDoc struct {
	XMLName xml.Name  `xml:"TEI"`
	Header  teiHeader `xml:"teiHeader"`
	Body    teiBody   `xml:"text>body"`
	Back    teiBack   `xml:"text>back"`
}

type teiHeader struct {
	Title    mixedText   `xml:"fileDesc>titleStmt>title"`
	Authors  []teiAuthor `xml:"fileDesc>sourceDesc>biblStruct>analytic>author"`
	Keywords teiKeywords `xml:"profileDesc>textClass>keywords"`
	Abstract teiAbstract `xml:"profileDesc>abstract"`
}

type teiAuthor struct {
	Forenames []string `xml:"persName>forename"`
	Surname   string   `xml:"persName>surname"`
}

func (a teiAuthor) name() string {
	parts := make([]string, 0, len(a.Forenames)+1)
	for _, f := range a.Forenames {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	if s := strings.TrimSpace(a.Surname); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

type teiKeywords struct {
	Terms []mixedText `xml:"term"`
	Text  string      `xml:",chardata"`
}

type teiAbstract struct {
	DivParas []mixedText `xml:"div>p"`
	Paras    []mixedText `xml:"p"`
}

type teiBody struct {
	Divs    []teiDiv    `xml:"div"`
	Figures []teiFigure `xml:"figure"`
}

type teiBack struct {
	Divs []teiDiv `xml:"div"`
}

type teiHead struct {
	N    string `xml:"n,attr"`
	Text string `xml:",chardata"`
}

type teiFormula struct {
	Text  string `xml:",chardata"`
	Label string `xml:"label"`
}

type teiList struct {
	Items []mixedText `xml:"item"`
}

type teiFigure struct {
	ID    string    `xml:"id,attr"`
	Type  string    `xml:"type,attr"`
	Head  mixedText `xml:"head"`
	Label mixedText `xml:"label"`
	Desc  mixedText `xml:"figDesc"`
}

type teiListBibl struct {
	Entries []teiBibl `xml:"biblStruct"`
}

type teiBibl struct {
	ID              string      `xml:"id,attr"`
	AnalyticTitle   mixedText   `xml:"analytic>title"`
	AnalyticAuthors []teiAuthor `xml:"analytic>author"`
	AnalyticIDNos   []teiIDNo   `xml:"analytic>idno"`
	MonogrTitles    []mixedText `xml:"monogr>title"`
	MonogrAuthors   []teiAuthor `xml:"monogr>author"`
	Dates           []teiDate   `xml:"monogr>imprint>date"`
	IDNos           []teiIDNo   `xml:"idno"`
	Notes           []teiNote   `xml:"note"`
}

type teiIDNo struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type teiDate struct {
	When string `xml:"when,attr"`
	Text string `xml:",chardata"`
}

type teiNote struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

// mixedText collects all character data of an element and its children,
// so inline <ref> and <hi> text stays in place.
type mixedText string

func (m *mixedText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var b strings.Builder
	for depth := 1; depth > 0; {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	*m = mixedText(collapse(b.String()))
	return nil
}

func (m mixedText) String() string { return string(m) }

// teiDiv keeps the order of paragraphs, formulas and lists inside a div.
type teiDiv struct {
	Type    string
	Head    string
	N       string
	Blocks  []types.Block
	Figures []teiFigure
	Bibl    []teiBibl
	Subdivs []teiDiv
}

func (div *teiDiv) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local == "type" {
			div.Type = a.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			if err := div.child(d, t); err != nil {
				return err
			}
		}
	}
}

func (div *teiDiv) child(d *xml.Decoder, t xml.StartElement) error {
	switch t.Name.Local {
	case "head":
		var h teiHead
		if err := d.DecodeElement(&h, &t); err != nil {
			return err
		}
		div.Head, div.N = collapse(h.Text), strings.TrimSpace(h.N)
	case "p":
		var p mixedText
		if err := d.DecodeElement(&p, &t); err != nil {
			return err
		}
		if p != "" {
			div.Blocks = append(div.Blocks, types.Block{Kind: types.BlockParagraph, Text: p.String()})
		}
	case "formula":
		var f teiFormula
		if err := d.DecodeElement(&f, &t); err != nil {
			return err
		}
		div.Blocks = append(div.Blocks, types.Block{
			Kind:  types.BlockEquation,
			Text:  mathconv.FromUnicode(collapse(f.Text)),
			Label: strings.Trim(collapse(f.Label), "() "),
		})
	case "list":
		var l teiList
		if err := d.DecodeElement(&l, &t); err != nil {
			return err
		}
		items := make([]string, 0, len(l.Items))
		for _, it := range l.Items {
			if it != "" {
				items = append(items, it.String())
			}
		}
		if len(items) > 0 {
			div.Blocks = append(div.Blocks, types.Block{Kind: types.BlockList, Items: items})
		}
	case "figure":
		var f teiFigure
		if err := d.DecodeElement(&f, &t); err != nil {
			return err
		}
		div.Figures = append(div.Figures, f)
	case "listBibl":
		var lb teiListBibl
		if err := d.DecodeElement(&lb, &t); err != nil {
			return err
		}
		div.Bibl = append(div.Bibl, lb.Entries...)
	case "div":
		var sub teiDiv
		if err := d.DecodeElement(&sub, &t); err != nil {
			return err
		}
		div.Subdivs = append(div.Subdivs, sub)
	default:
		return d.Skip()
	}
	return nil
}

// flatten returns div followed by its nested divs, which inherit its type.
func (div teiDiv) flatten() []teiDiv {
	out := []teiDiv{div}
	for _, s := range div.Subdivs {
		if s.Type == "" {
			s.Type = div.Type
		}
		out = append(out, s.flatten()...)
	}
	return out
}

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	teiYearRe   = regexp.MustCompile(`\b(\d{4})\b`)
	teiSplitRe  = regexp.MustCompile(`\s*[;,]\s*`)
	backSection = map[string]string{
		"acknowledgement": "Acknowledgements",
		"annex":           "Appendix",
		"availability":    "Availability",
		"funding":         "Funding",
	}
)

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// ParseTEI maps Grobid TEI XML to a Document.
func ParseTEI(r io.Reader) (*types.Document, error) {
	var tei teiDoc
	if err := xml.NewDecoder(r).Decode(&tei); err != nil {
		return nil, fmt.Errorf("decoding TEI: %w", err)
	}

	doc := &types.Document{Title: tei.Header.Title.String()}
	for _, a := range tei.Header.Authors {
		if n := a.name(); n != "" {
			doc.Authors = append(doc.Authors, n)
		}
	}
	doc.Keywords = keywords(tei.Header.Keywords)
	doc.Abstract = abstract(tei.Header.Abstract)

	for _, top := range tei.Body.Divs {
		for _, div := range top.flatten() {
			addDiv(doc, div, "")
		}
	}
	for _, f := range tei.Body.Figures {
		doc.Figures = append(doc.Figures, figure(f))
	}

	for _, top := range tei.Back.Divs {
		for _, div := range top.flatten() {
			for _, b := range div.Bibl {
				doc.References = append(doc.References, reference(b, len(doc.References)+1))
			}
			if len(div.Blocks) > 0 {
				addDiv(doc, div, backSection[div.Type])
			}
		}
	}
	return doc, nil
}

func addDiv(doc *types.Document, div teiDiv, fallbackHead string) {
	for _, f := range div.Figures {
		doc.Figures = append(doc.Figures, figure(f))
	}
	if len(div.Blocks) == 0 && div.Head == "" {
		return
	}
	heading := div.Head
	if heading == "" {
		heading = fallbackHead
	}
	doc.Sections = append(doc.Sections, types.Section{
		Heading: heading,
		Level:   headLevel(heading, div.N),
		Blocks:  div.Blocks,
	})
}

// headLevel derives a section level from the head's n attribute: "2.1"
// is level 2. A head without a number is level 1 and a missing head is the
// preamble.
func headLevel(heading, n string) int {
	if heading == "" {
		return 0
	}
	n = strings.TrimSuffix(n, ".")
	if n == "" {
		return 1
	}
	return min(strings.Count(n, ".")+1, 6)
}

func keywords(k teiKeywords) []string {
	var out []string
	for _, t := range k.Terms {
		if t != "" {
			out = append(out, t.String())
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, kw := range teiSplitRe.Split(collapse(k.Text), -1) {
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func abstract(a teiAbstract) string {
	var parts []string
	for _, p := range append(a.DivParas, a.Paras...) {
		if p != "" {
			parts = append(parts, p.String())
		}
	}
	return strings.Join(parts, "\n\n")
}

func figure(f teiFigure) types.Figure {
	kind := "figure"
	if f.Type == "table" {
		kind = "table"
	}
	caption := f.Desc.String()
	if caption == "" {
		caption = f.Head.String()
	}
	return types.Figure{ID: f.ID, Kind: kind, Label: f.Label.String(), Caption: caption}
}

func reference(b teiBibl, n int) types.Reference {
	ref := types.Reference{Key: strconv.Itoa(n)}

	authors := b.AnalyticAuthors
	if len(authors) == 0 {
		authors = b.MonogrAuthors
	}
	for _, a := range authors {
		if name := a.name(); name != "" {
			ref.Authors = append(ref.Authors, name)
		}
	}

	var monogr string
	for _, t := range b.MonogrTitles {
		if t != "" {
			monogr = t.String()
			break
		}
	}
	if b.AnalyticTitle != "" {
		ref.Title = b.AnalyticTitle.String()
		ref.Venue = monogr
	} else {
		ref.Title = monogr
	}

	for _, d := range b.Dates {
		if m := teiYearRe.FindString(d.When + " " + d.Text); m != "" {
			ref.Year = m
			break
		}
	}
	for _, id := range append(b.AnalyticIDNos, b.IDNos...) {
		if strings.EqualFold(id.Type, "DOI") {
			ref.DOI = strings.TrimSpace(id.Value)
			break
		}
	}
	for _, note := range b.Notes {
		if note.Type == "raw_reference" {
			ref.Raw = collapse(note.Text)
		}
	}
	return ref
}
