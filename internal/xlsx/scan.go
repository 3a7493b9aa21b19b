package xlsx

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/ooxml"
)

const sheetNS = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"

// translatedSep starts the translation inside a cell this package
// rewrote: original, newline, marker, translation.
const translatedSep = "\n" + ooxml.InsertMarker

// cell is one c element holding text. Start and End are the byte offsets
// of its opening tag and just past its closing tag.
type cell struct {
	Ref     string
	Row     int
	Col     int
	Style   string
	Text    string
	Formula bool
	Start   int64
	End     int64
	// Translated is set when the cell was rewritten by the renderer; Text
	// then holds the original only.
	Translated bool
}

// readSharedStrings lists the shared string table. Phonetic runs are
// left out.
func readSharedStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	d := xml.NewDecoder(bytes.NewReader(data))
	var (
		out    []string
		cur    *strings.Builder
		inText int
	)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != sheetNS {
				continue
			}
			switch t.Name.Local {
			case "si":
				cur = &strings.Builder{}
			case "rPh":
				if err := d.Skip(); err != nil {
					return nil, err
				}
			case "t":
				inText++
			}
		case xml.EndElement:
			if t.Name.Space != sheetNS {
				continue
			}
			switch t.Name.Local {
			case "si":
				if cur != nil {
					out = append(out, cur.String())
					cur = nil
				}
			case "t":
				inText--
			}
		case xml.CharData:
			if inText > 0 && cur != nil {
				cur.Write(t)
			}
		}
	}
	return out, nil
}

// scanCells lists the text cells of a worksheet in document order. Numbers,
// booleans and errors are not text and are left out.
func scanCells(data []byte, shared []string) ([]cell, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	var (
		out      []cell
		cur      *cell
		kind     string
		value    strings.Builder
		inline   strings.Builder
		inValue  bool
		inInline int
		inText   int
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
			if t.Name.Space != sheetNS {
				continue
			}
			switch t.Name.Local {
			case "c":
				ref := ooxml.Attr(t, "r")
				row, col := splitRef(ref)
				cur = &cell{Ref: ref, Row: row, Col: col, Style: ooxml.Attr(t, "s"), Start: start}
				kind = ooxml.Attr(t, "t")
				value.Reset()
				inline.Reset()
			case "f":
				if cur != nil {
					cur.Formula = true
				}
			case "v":
				inValue = cur != nil
			case "is":
				inInline++
			case "rPh":
				if err := d.Skip(); err != nil {
					return nil, err
				}
			case "t":
				inText++
			}
		case xml.EndElement:
			if t.Name.Space != sheetNS {
				continue
			}
			switch t.Name.Local {
			case "c":
				if cur == nil {
					continue
				}
				cur.End = d.InputOffset()
				if text, ok := cellText(kind, value.String(), inline.String(), shared); ok {
					if i := strings.Index(text, translatedSep); i >= 0 {
						text, cur.Translated = text[:i], true
					}
					cur.Text = text
					out = append(out, *cur)
				}
				cur = nil
			case "v":
				inValue = false
			case "is":
				inInline--
			case "t":
				inText--
			}
		case xml.CharData:
			switch {
			case inValue:
				value.Write(t)
			case inInline > 0 && inText > 0:
				inline.Write(t)
			}
		}
	}
	return out, nil
}

// cellText resolves the text of a cell from its type.
func cellText(kind, value, inline string, shared []string) (string, bool) {
	switch kind {
	case "s":
		i, ok := parseIndex(value)
		if !ok || i >= len(shared) {
			return "", false
		}
		return shared[i], true
	case "inlineStr":
		return inline, true
	case "str":
		return value, true
	}
	return "", false
}

func parseIndex(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// splitRef turns a reference like "AB12" into its 1-based row and column.
func splitRef(ref string) (row, col int) {
	i := 0
	for ; i < len(ref); i++ {
		c := ref[i] | 0x20
		if c < 'a' || c > 'z' {
			break
		}
		col = col*26 + int(c-'a'+1)
	}
	n, ok := parseIndex(ref[i:])
	if !ok {
		return 0, col
	}
	return n, col
}
