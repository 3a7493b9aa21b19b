package pptx

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/geometry"
	"github.com/beabigegg/Translate-Tool/internal/ooxml"
)

const (
	presentationNS = "http://schemas.openxmlformats.org/presentationml/2006/main"
	drawingNS      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	diagramNS      = "http://schemas.openxmlformats.org/drawingml/2006/diagram"
	markupNS       = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// emuPerPoint converts English Metric Units to points.
const emuPerPoint = 12700

type bodyKind int

const (
	kindShape bodyKind = iota
	kindCell
	kindDiagram
)

func (k bodyKind) String() string {
	switch k {
	case kindCell:
		return "Table"
	case kindDiagram:
		return "SmartArt"
	}
	return "Shape"
}

// textBody is one text frame, table cell or diagram node of a part. Index
// counts every body of the part in document order. End is the offset of
// the body's closing tag, where appended paragraphs go.
type textBody struct {
	Part        string
	Index       int
	Kind        bodyKind
	Text        string
	Name        string
	Placeholder string
	Box         *geometry.BoundingBox
	Row         int
	Col         int
	End         int64
	// Translated is set when the body already holds inserted paragraphs.
	Translated bool
}

type xfrm struct {
	off, ext, chOff, chExt [2]int64
	done                   bool
}

// container is an open shape or group on the slide tree.
type container struct {
	group bool
	name  string
	ph    string
	x     xfrm
}

type tableState struct {
	row, col int
}

// scanBodies lists the text bodies of a slide or diagram data part.
// mc:Fallback branches are skipped because they duplicate mc:Choice.
func scanBodies(part string, data []byte) ([]textBody, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	var (
		out        []textBody
		shapes     []*container
		tables     []tableState
		body       *textBody
		paras      []string
		para       *strings.Builder
		inText     int
		capturing  *xfrm
		translated bool
	)

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
			switch {
			case t.Name.Space == presentationNS:
				switch t.Name.Local {
				case "sp", "graphicFrame", "cxnSp", "pic":
					shapes = append(shapes, &container{})
				case "grpSp":
					shapes = append(shapes, &container{group: true})
				case "cNvPr":
					if n := len(shapes); n > 0 && shapes[n-1].name == "" {
						shapes[n-1].name = ooxml.Attr(t, "name")
					}
				case "ph":
					if n := len(shapes); n > 0 {
						ph := ooxml.Attr(t, "type")
						if ph == "" {
							ph = "obj"
						}
						shapes[n-1].ph = ph
					}
				case "xfrm":
					capturing = openXfrm(shapes)
				case "txBody":
					body = &textBody{Part: part, Index: len(out)}
					paras, translated = nil, false
				}
			case t.Name.Space == diagramNS && t.Name.Local == "t":
				body = &textBody{Part: part, Index: len(out), Kind: kindDiagram}
				paras, translated = nil, false
			case t.Name.Space == drawingNS:
				switch t.Name.Local {
				case "xfrm":
					capturing = openXfrm(shapes)
				case "off", "ext", "chOff", "chExt":
					if capturing != nil {
						setXfrm(capturing, t)
					}
				case "tbl":
					tables = append(tables, tableState{})
				case "tr":
					if n := len(tables); n > 0 {
						tables[n-1].row++
						tables[n-1].col = 0
					}
				case "tc":
					if n := len(tables); n > 0 {
						tables[n-1].col++
					}
				case "txBody":
					body = &textBody{Part: part, Index: len(out)}
					paras, translated = nil, false
				case "p":
					if body != nil {
						para = &strings.Builder{}
					}
				case "t":
					inText++
				case "br":
					if para != nil {
						para.WriteString("\n")
					}
				}
			}

		case xml.EndElement:
			switch {
			case t.Name.Space == presentationNS:
				switch t.Name.Local {
				case "sp", "graphicFrame", "cxnSp", "pic", "grpSp":
					if n := len(shapes); n > 0 {
						shapes = shapes[:n-1]
					}
				case "xfrm":
					capturing = nil
				case "txBody":
					if body != nil {
						out = append(out, closeBody(body, paras, translated, start, shapes, tables))
						body = nil
					}
				}
			case t.Name.Space == diagramNS && t.Name.Local == "t":
				if body != nil {
					out = append(out, closeBody(body, paras, translated, start, nil, nil))
					body = nil
				}
			case t.Name.Space == drawingNS:
				switch t.Name.Local {
				case "xfrm":
					capturing = nil
				case "tbl":
					if n := len(tables); n > 0 {
						tables = tables[:n-1]
					}
				case "txBody":
					if body != nil {
						out = append(out, closeBody(body, paras, translated, start, shapes, tables))
						body = nil
					}
				case "p":
					if para != nil {
						text := para.String()
						if ooxml.Inserted(text) {
							translated = true
						} else {
							paras = append(paras, text)
						}
						para = nil
					}
				case "t":
					inText--
				}
			}

		case xml.CharData:
			if inText > 0 && para != nil {
				para.Write(t)
			}
		}
	}
	return out, nil
}

// openXfrm returns the transform of the innermost shape when it has not
// been read yet.
func openXfrm(shapes []*container) *xfrm {
	n := len(shapes)
	if n == 0 || shapes[n-1].x.done {
		return nil
	}
	x := &shapes[n-1].x
	x.done = true
	return x
}

func setXfrm(x *xfrm, t xml.StartElement) {
	var v *[2]int64
	a, b := "x", "y"
	switch t.Name.Local {
	case "off":
		v = &x.off
	case "chOff":
		v = &x.chOff
	case "ext":
		v, a, b = &x.ext, "cx", "cy"
	case "chExt":
		v, a, b = &x.chExt, "cx", "cy"
	}
	v[0] = parseEMU(ooxml.Attr(t, a))
	v[1] = parseEMU(ooxml.Attr(t, b))
}

func closeBody(b *textBody, paras []string, translated bool, end int64, shapes []*container, tables []tableState) textBody {
	b.Text = strings.Join(paras, "\n")
	b.End = end
	b.Translated = translated
	if b.Kind == kindDiagram {
		return *b
	}
	if n := len(tables); n > 0 {
		b.Kind = kindCell
		b.Row, b.Col = tables[n-1].row, tables[n-1].col
	}
	if n := len(shapes); n > 0 {
		b.Name = shapes[n-1].name
		b.Placeholder = shapes[n-1].ph
		if b.Kind == kindShape {
			b.Box = shapeBox(shapes)
		}
	}
	return *b
}

// shapeBox maps the innermost shape's transform through its enclosing
// groups into slide points.
func shapeBox(shapes []*container) *geometry.BoundingBox {
	top := shapes[len(shapes)-1]
	if !top.x.done || top.x.ext[0] <= 0 || top.x.ext[1] <= 0 {
		return nil
	}
	x, y := float64(top.x.off[0]), float64(top.x.off[1])
	w, h := float64(top.x.ext[0]), float64(top.x.ext[1])
	for i := len(shapes) - 2; i >= 0; i-- {
		g := shapes[i]
		if !g.group || !g.x.done {
			continue
		}
		sx, sy := 1.0, 1.0
		if g.x.chExt[0] > 0 {
			sx = float64(g.x.ext[0]) / float64(g.x.chExt[0])
		}
		if g.x.chExt[1] > 0 {
			sy = float64(g.x.ext[1]) / float64(g.x.chExt[1])
		}
		x = float64(g.x.off[0]) + (x-float64(g.x.chOff[0]))*sx
		y = float64(g.x.off[1]) + (y-float64(g.x.chOff[1]))*sy
		w, h = w*sx, h*sy
	}
	b := geometry.New(x/emuPerPoint, y/emuPerPoint, (x+w)/emuPerPoint, (y+h)/emuPerPoint)
	return &b
}

func parseEMU(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
