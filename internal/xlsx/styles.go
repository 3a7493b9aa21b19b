package xlsx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// wrapStyles derives wrapped copies of cell formats, so a cell holding an
// original and its translation shows both lines. Copies are appended to
// cellXfs; existing indexes keep their meaning.
type wrapStyles struct {
	data     []byte
	xfs      [][]byte
	listTag  [2]int64
	listEnd  int64
	prefix   string
	added    []string
	byOrigin map[int]int
}

var countAttr = regexp.MustCompile(`\scount="\d*"`)

// loadWrapStyles reads the cellXfs list of a styles part. It returns nil
// when the part has no cell formats to copy.
func loadWrapStyles(data []byte) (*wrapStyles, error) {
	if len(data) == 0 {
		return nil, nil
	}
	d := xml.NewDecoder(bytes.NewReader(data))
	w := &wrapStyles{data: data, byOrigin: make(map[int]int)}
	var (
		inList  bool
		xfStart int64 = -1
		depth   int
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
			switch {
			case t.Name.Local == "cellXfs" && !inList:
				inList = true
				w.listTag = [2]int64{start, d.InputOffset()}
				w.prefix = prefixOf(data[start:])
			case inList && t.Name.Local == "xf" && xfStart < 0:
				xfStart, depth = start, 0
			case xfStart >= 0:
				depth++
			}
		case xml.EndElement:
			if t.Name.Space != sheetNS {
				continue
			}
			switch {
			case inList && xfStart >= 0 && t.Name.Local == "xf" && depth == 0:
				w.xfs = append(w.xfs, data[xfStart:d.InputOffset()])
				xfStart = -1
			case xfStart >= 0:
				depth--
			case t.Name.Local == "cellXfs" && inList:
				w.listEnd = start
				inList = false
			}
		}
	}
	if len(w.xfs) == 0 || w.listEnd == 0 {
		return nil, nil
	}
	return w, nil
}

// index returns the wrapped counterpart of the format s, the attribute of
// a cell, adding it on first use.
func (w *wrapStyles) index(s string) string {
	origin := 0
	if s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n >= len(w.xfs) {
			return s
		}
		origin = n
	}
	if i, ok := w.byOrigin[origin]; ok {
		return strconv.Itoa(i)
	}
	i := len(w.xfs) + len(w.added)
	w.added = append(w.added, wrapXf(w.xfs[origin], w.prefix))
	w.byOrigin[origin] = i
	return strconv.Itoa(i)
}

// part returns the styles part with the added formats, or nil when none
// were added.
func (w *wrapStyles) part() []byte {
	if len(w.added) == 0 {
		return nil
	}
	tag := w.data[w.listTag[0]:w.listTag[1]]
	count := fmt.Sprintf(` count="%d"`, len(w.xfs)+len(w.added))
	if countAttr.Match(tag) {
		tag = countAttr.ReplaceAll(tag, []byte(count))
	}

	var buf bytes.Buffer
	buf.Write(w.data[:w.listTag[0]])
	buf.Write(tag)
	buf.Write(w.data[w.listTag[1]:w.listEnd])
	for _, xf := range w.added {
		buf.WriteString(xf)
	}
	buf.Write(w.data[w.listEnd:])
	return buf.Bytes()
}

var (
	wrapAttr    = regexp.MustCompile(`\swrapText="[^"]*"`)
	applyAttr   = regexp.MustCompile(`\sapplyAlignment="[^"]*"`)
	alignOpen   = regexp.MustCompile(`<(\w+:)?alignment\b`)
	xfStartTail = regexp.MustCompile(`/?>`)
)

// wrapXf copies one xf element with wrapping turned on.
func wrapXf(raw []byte, prefix string) string {
	xf := string(raw)
	xf = applyAttr.ReplaceAllString(xf, "")
	// the first tag end closes the xf start tag
	loc := xfStartTail.FindStringIndex(xf)
	if loc == nil {
		return xf
	}
	head, tail := xf[:loc[0]]+` applyAlignment="1"`, xf[loc[0]:]

	if alignOpen.MatchString(tail) {
		tail = wrapAttr.ReplaceAllString(tail, "")
		tail = alignOpen.ReplaceAllString(tail, `${0} wrapText="1"`)
		return head + tail
	}
	align := "<" + prefix + `alignment wrapText="1"/>`
	if tail == "/>" {
		return head + ">" + align + "</" + prefix + "xf>"
	}
	// alignment is the first child of xf
	return head + ">" + align + tail[1:]
}

// prefixOf returns the namespace prefix of the tag data starts with,
// including the colon.
func prefixOf(data []byte) string {
	end := bytes.IndexAny(data, " \t\r\n/>")
	if end < 1 {
		return ""
	}
	name := data[1:end]
	if i := bytes.IndexByte(name, ':'); i >= 0 {
		return string(name[:i+1])
	}
	return ""
}
