package docx

import (
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/ooxml"
)

const (
	wordNS   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	markupNS = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// InsertMarker is appended to every paragraph this package inserts, so a
// translated file can be parsed again without picking up its translations.
const InsertMarker = ooxml.InsertMarker

// paragraph is one w:p of a part. Start and End are the byte offsets of
// its opening tag and just past its closing tag.
type paragraph struct {
	Part    string
	Text    string
	StyleID string
	Start   int64
	End     int64
	Table   bool
	Row     int
	Col     int
	TextBox bool
}

type tableState struct {
	row, col int
}

// scanParagraphs lists the paragraphs of a WordprocessingML part in
// document order. Text goes to the innermost open paragraph, so a text
// box paragraph does not repeat inside the paragraph that anchors it.
// mc:Fallback branches are skipped because they duplicate mc:Choice.
func scanParagraphs(part string, data []byte) ([]paragraph, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	var (
		out       []paragraph
		open      []int
		texts     []*strings.Builder
		tables    []*tableState
		textboxes int
		runs      int
		inText    int
	)
	appendText := func(s string) {
		if n := len(texts); n > 0 {
			texts[n-1].WriteString(s)
		}
	}

	for {
		start := d.InputOffset()
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == markupNS && t.Name.Local == "Fallback" {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				p := paragraph{Part: part, Start: start, TextBox: textboxes > 0}
				if n := len(tables); n > 0 {
					p.Table, p.Row, p.Col = true, tables[n-1].row, tables[n-1].col
				}
				open = append(open, len(out))
				out = append(out, p)
				texts = append(texts, &strings.Builder{})
			case "pStyle":
				if n := len(open); n > 0 && out[open[n-1]].StyleID == "" {
					out[open[n-1]].StyleID = ooxml.Attr(t, "val")
				}
			case "r":
				runs++
			case "t":
				inText++
			case "tab":
				if runs > 0 {
					appendText(" ")
				}
			case "br", "cr":
				if runs > 0 {
					appendText("\n")
				}
			case "tbl":
				tables = append(tables, &tableState{})
			case "tr":
				if n := len(tables); n > 0 {
					tables[n-1].row++
					tables[n-1].col = 0
				}
			case "tc":
				if n := len(tables); n > 0 {
					tables[n-1].col++
				}
			case "txbxContent":
				textboxes++
			}

		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if n := len(open); n > 0 {
					i := open[n-1]
					out[i].End = d.InputOffset()
					out[i].Text = texts[n-1].String()
					open, texts = open[:n-1], texts[:n-1]
				}
			case "r":
				runs--
			case "t":
				inText--
			case "tbl":
				if n := len(tables); n > 0 {
					tables = tables[:n-1]
				}
			case "txbxContent":
				textboxes--
			}

		case xml.CharData:
			if inText > 0 {
				appendText(string(t))
			}
		}
	}
	return out, nil
}

// inserted reports a paragraph added by the inline renderer.
func (p paragraph) inserted() bool { return ooxml.Inserted(p.Text) }

type stylesXML struct {
	Styles []struct {
		ID   string `xml:"styleId,attr"`
		Name struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

// loadStyles maps style ids to their display names.
func loadStyles(data []byte) map[string]string {
	styles := make(map[string]string)
	if len(data) == 0 {
		return styles
	}
	var sx stylesXML
	if err := xml.Unmarshal(data, &sx); err != nil {
		return styles
	}
	for _, s := range sx.Styles {
		styles[s.ID] = s.Name.Val
	}
	return styles
}

// elementType classifies a paragraph from its part, table position and
// style name.
func elementType(p paragraph, styles map[string]string) document.ElementType {
	base := path.Base(p.Part)
	switch {
	case strings.HasPrefix(base, "header"):
		return document.TypeHeader
	case strings.HasPrefix(base, "footer"):
		return document.TypeFooter
	case p.Table:
		return document.TypeTableCell
	}

	name := styles[p.StyleID]
	if name == "" {
		name = p.StyleID
	}
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "heading"), strings.Contains(name, "title"):
		return document.TypeTitle
	case strings.Contains(name, "header"):
		return document.TypeHeader
	case strings.Contains(name, "footer"):
		return document.TypeFooter
	case strings.Contains(name, "caption"):
		return document.TypeCaption
	case strings.Contains(name, "list"):
		return document.TypeListItem
	}
	return document.TypeText
}
