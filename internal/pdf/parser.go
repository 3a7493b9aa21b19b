// Package pdf reads PDF files into documents and writes translated PDFs
// in the fixed-page modes (overlay and side by side).
package pdf

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/fontfit"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
	"github.com/beabigegg/Translate-Tool/internal/layout"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// SourceType is the document source type produced by the PDF parsers.
const SourceType = "pdf"

// Glyph boxes are built from the baseline: the ascent above it and the
// descent below it, as fractions of the font size.
const (
	ascentRatio  = 0.8
	descentRatio = 0.2
)

// Parser extracts positioned text from PDF pages with ledongthuc/pdf.
// Glyphs are grouped into lines, and lines into paragraph blocks.
type Parser struct {
	Lines layout.LineGrouper
	// ParagraphGap is the largest vertical gap between two lines of one
	// block, in multiples of the font size.
	ParagraphGap float64
}

// NewParser creates a PDF parser with the default grouping.
func NewParser() *Parser {
	return &Parser{Lines: layout.DefaultLineGrouper(), ParagraphGap: 0.8}
}

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string { return []string{".pdf"} }

// Parse implements parser.Parser.
func (p *Parser) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	f, r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := document.New(path, SourceType)
	readInfo(r, &doc.Metadata)
	src := &pageSource{r: r, lines: p.Lines, gap: p.ParagraphGap}
	parser.NewAssembler(opts).Assemble(ctx, doc, src)

	logger.Info("PDF parsed",
		logger.String("file", filepath.Base(path)),
		logger.Int("pages", len(doc.Pages)),
		logger.Int("elements", len(doc.Elements)),
		logger.Bool("hasTextLayer", doc.Metadata.HasTextLayer))
	return doc, nil
}

// open opens a PDF and checks that it has pages. The reader panics on some
// malformed files; that is reported as ExtractionUnavailable.
func open(path string) (f *os.File, r *pdf.Reader, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, nil, types.NewAppError(types.ErrFileNotFound, "file not found: "+path, statErr)
		}
		return nil, nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot access "+filepath.Base(path), statErr)
	}
	if info.IsDir() {
		return nil, nil, types.NewAppError(types.ErrInvalidInput, "path is a directory: "+path, nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				f.Close()
			}
			f, r = nil, nil
			err = types.NewAppError(types.ErrExtractionUnavailable, "cannot decode "+filepath.Base(path),
				fmt.Errorf("pdf reader panic: %v", rec))
		}
	}()

	f, r, err = pdf.Open(path)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot open "+filepath.Base(path), err)
	}
	if r.NumPage() == 0 {
		f.Close()
		return nil, nil, types.NewAppError(types.ErrExtractionUnavailable, filepath.Base(path)+" has no pages", nil)
	}
	return f, r, nil
}

// readInfo copies the Info dictionary into md. A broken dictionary leaves
// md untouched.
func readInfo(r *pdf.Reader, md *document.Metadata) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("PDF info dictionary unreadable", logger.Any("panic", rec))
		}
	}()
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return
	}
	md.Title = info.Key("Title").Text()
	md.Author = info.Key("Author").Text()
	md.Subject = info.Key("Subject").Text()
	md.Creator = info.Key("Creator").Text()
	md.Producer = info.Key("Producer").Text()
	md.CreationDate = info.Key("CreationDate").Text()
	md.ModificationDate = info.Key("ModDate").Text()
}

// inherited looks key up on v and then up the page tree.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// mediaBox returns the page's MediaBox origin and size, falling back to
// US Letter.
func mediaBox(page pdf.Page) (x0, y0, width, height float64) {
	mb := inherited(page.V, "MediaBox")
	if mb.Kind() != pdf.Array || mb.Len() != 4 {
		return 0, 0, parser.DefaultPageWidth, parser.DefaultPageHeight
	}
	x0, y0 = mb.Index(0).Float64(), mb.Index(1).Float64()
	x1, y1 := mb.Index(2).Float64(), mb.Index(3).Float64()
	width, height = math.Abs(x1-x0), math.Abs(y1-y0)
	if width == 0 || height == 0 {
		return 0, 0, parser.DefaultPageWidth, parser.DefaultPageHeight
	}
	return math.Min(x0, x1), math.Min(y0, y1), width, height
}

func pageInfo(page pdf.Page, pageNum int) (info document.PageInfo, originX, originY float64) {
	originX, originY, w, h := mediaBox(page)
	rotation := int(inherited(page.V, "Rotate").Int64())
	rotation = ((rotation % 360) + 360) % 360
	return document.PageInfo{PageNum: pageNum, Width: w, Height: h, Rotation: rotation}, originX, originY
}

// pageSource adapts a pdf.Reader to parser.PageSource.
type pageSource struct {
	r     *pdf.Reader
	lines layout.LineGrouper
	gap   float64
}

func (s *pageSource) PageCount() int { return s.r.NumPage() }

func (s *pageSource) Page(i int) (parser.PageContent, error) {
	page := s.r.Page(i + 1)
	if page.V.IsNull() {
		return parser.PageContent{}, fmt.Errorf("page object missing")
	}
	info, ox, oy := pageInfo(page, i)
	content := parser.PageContent{Info: info}

	text := page.Content()
	glyphs := make([]layout.Glyph, 0, len(text.Text))
	var pen penTracker
	for _, t := range text.Text {
		if g, ok := glyphFor(t, &pen, ox, oy, info.Height); ok {
			glyphs = append(glyphs, g)
		}
	}
	for _, rc := range text.Rect {
		box := geometry.FromNative(rc.Min.X-ox, rc.Min.Y-oy, rc.Max.X-ox, rc.Max.Y-oy, info.Height)
		content.Rects = append(content.Rects, box)
	}

	for _, para := range groupParagraphs(s.lines.Group(glyphs), s.gap) {
		if garbled(para.text) {
			continue
		}
		bbox := para.bbox
		content.Blocks = append(content.Blocks, parser.RawBlock{
			Text:  parser.Normalize(para.text),
			BBox:  &bbox,
			Style: styleOf(para.lines[0]),
		})
	}
	return content, nil
}

// glyphFor converts one extracted run to internal coordinates.
func glyphFor(t pdf.Text, pen *penTracker, ox, oy, pageHeight float64) (layout.Glyph, bool) {
	if t.S == "" {
		return layout.Glyph{}, false
	}
	size := math.Abs(t.FontSize)
	if size == 0 {
		size = 10
	}
	w := t.W
	if w <= 0 {
		w = estimateWidth(t.S, baseFontName(t.Font), size)
	}
	x, y := pen.place(t, w)-ox, t.Y-oy
	return layout.Glyph{
		Text:     t.S,
		BBox:     geometry.FromNative(x, y-descentRatio*size, x+w, y+ascentRatio*size, pageHeight),
		FontName: t.Font,
		FontSize: size,
	}, true
}

// penTracker spreads out runs the reader reports at one origin without
// advancing, which happens for fonts that lack a Widths array.
type penTracker struct {
	x, y, adv float64
	active    bool
}

func (p *penTracker) place(t pdf.Text, w float64) float64 {
	if t.W > 0 {
		p.active = false
		return t.X
	}
	if p.active && t.X == p.x && t.Y == p.y {
		x := p.x + p.adv
		p.adv += w
		return x
	}
	p.active, p.x, p.y, p.adv = true, t.X, t.Y, w
	return t.X
}

// estimateWidth uses the core font metrics where the font is one of the
// standard 14 and half an em per rune otherwise.
func estimateWidth(s, fontName string, size float64) float64 {
	if fontfit.IsCoreFont(fontName) {
		if w := (fontfit.CoreMeasurer{FontName: fontName}).Width(s, size); w > 0 {
			return w
		}
	}
	return 0.5 * size * float64(len([]rune(s)))
}

type paragraph struct {
	lines []layout.Line
	bbox  geometry.BoundingBox
	size  float64
	text  string
}

// groupParagraphs merges consecutive lines of the same size that sit
// directly below each other and overlap horizontally.
func groupParagraphs(lines []layout.Line, gap float64) []*paragraph {
	var paras []*paragraph
	for _, line := range lines {
		size := line.DominantFontSize()
		var target *paragraph
		for i := len(paras) - 1; i >= 0; i-- {
			p := paras[i]
			if continues(p, line, size, gap) {
				target = p
				break
			}
		}
		if target == nil {
			paras = append(paras, &paragraph{lines: []layout.Line{line}, bbox: line.BBox, size: size, text: line.Text})
			continue
		}
		target.lines = append(target.lines, line)
		target.bbox = target.bbox.Union(line.BBox)
		target.text = joinLines(target.text, line.Text)
	}
	return paras
}

func continues(p *paragraph, line layout.Line, size, gap float64) bool {
	if math.Abs(p.size-size) > 1 {
		return false
	}
	last := p.lines[len(p.lines)-1].BBox
	dy := line.BBox.Y0 - last.Y1
	if dy < -0.3*size || dy > gap*size {
		return false
	}
	return line.BBox.X0 < last.X1 && line.BBox.X1 > last.X0
}

// joinLines appends next to text, undoing end-of-line hyphenation and
// leaving CJK lines unspaced.
func joinLines(text, next string) string {
	if text == "" {
		return next
	}
	prev := []rune(text)
	first := []rune(next)
	if len(first) == 0 {
		return text
	}
	last := prev[len(prev)-1]
	switch {
	case last == '-' && len(prev) > 1 && unicode.IsLetter(prev[len(prev)-2]) && unicode.IsLower(first[0]):
		return string(prev[:len(prev)-1]) + next
	case isCJK(last) || isCJK(first[0]):
		return text + next
	default:
		return text + " " + next
	}
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// garbled reports text with more than 10% control characters, which is
// what undecodable font encodings usually produce.
func garbled(text string) bool {
	n, bad := 0, 0
	for _, r := range text {
		n++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7f && r <= 0x9f) {
			bad++
		}
	}
	return n > 0 && float64(bad)/float64(n) > 0.1
}

func styleOf(line layout.Line) *document.StyleInfo {
	name := baseFontName(line.DominantFont())
	lower := strings.ToLower(name)
	return &document.StyleInfo{
		FontName: name,
		FontSize: line.DominantFontSize(),
		Bold:     strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy"),
		Italic:   strings.Contains(lower, "italic") || strings.Contains(lower, "oblique"),
	}
}

// baseFontName strips the six letter subset tag ("ABCDEF+Times-Roman").
func baseFontName(name string) string {
	if i := strings.IndexByte(name, '+'); i == 6 {
		return name[i+1:]
	}
	return name
}
