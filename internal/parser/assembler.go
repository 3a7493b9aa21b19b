package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
	"github.com/beabigegg/Translate-Tool/internal/layout"
	"github.com/beabigegg/Translate-Tool/internal/logger"
)

// RawBlock is one text block as produced by a format reader. BBox is in
// internal coordinates or nil for formats without geometry.
type RawBlock struct {
	Text  string
	BBox  *geometry.BoundingBox
	Style *document.StyleInfo
	// Type presets the element type; empty means classify.
	Type     document.ElementType
	Metadata map[string]any
}

// PageContent is everything a reader extracted from one page.
type PageContent struct {
	Info   document.PageInfo
	Blocks []RawBlock
	// Rects are drawn rectangles and rules, used for table detection.
	Rects []geometry.BoundingBox
}

// PageSource yields pages one at a time. Page may panic on malformed
// input; the assembler recovers and degrades that page.
type PageSource interface {
	PageCount() int
	Page(pageNum int) (PageContent, error)
}

// Assembler runs the per-page pipeline shared by all parsers: table
// regions, classification, translatability, ids and reading order.
type Assembler struct {
	opts       Options
	classifier *layout.Classifier
	tables     layout.TableDetector
	log        logger.Logger

	blockSeq  map[int]int
	textChars int
}

// NewAssembler creates an assembler for one document.
func NewAssembler(opts Options) *Assembler {
	a := &Assembler{
		opts:       opts,
		classifier: layout.NewClassifier(opts.Layout),
		log:        logger.Named("parser"),
		blockSeq:   make(map[int]int),
	}
	if opts.DetectTables {
		a.tables = layout.NewRuledTableDetector()
	}
	return a
}

// WithTableDetector replaces the table detector; nil disables detection.
func (a *Assembler) WithTableDetector(d layout.TableDetector) *Assembler {
	a.tables = d
	return a
}

// Classifier exposes the classifier so callers can add rules.
func (a *Assembler) Classifier() *layout.Classifier { return a.classifier }

// Assemble reads every page of src into doc. Cancellation is checked
// before each page; a cancelled run marks the document Stopped and returns
// what was assembled so far.
func (a *Assembler) Assemble(ctx context.Context, doc *document.Document, src PageSource) {
	total := src.PageCount()
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			doc.Stopped = true
			doc.AddWarning("parsing stopped after %d of %d pages", i, total)
			a.log.Warn("parsing cancelled",
				logger.String("source", doc.SourcePath),
				logger.Int("pagesDone", i),
				logger.Int("pages", total))
			break
		}
		content, err := readPage(src, i)
		if err != nil {
			doc.AddWarning("page %d: %v", i+1, err)
			a.log.Warn("page extraction failed, continuing without its text",
				logger.String("source", doc.SourcePath),
				logger.Int("page", i+1),
				logger.Err(err))
			content = PageContent{Info: content.Info}
		}
		if content.Info.Width <= 0 || content.Info.Height <= 0 {
			content.Info.Width, content.Info.Height = DefaultPageWidth, DefaultPageHeight
		}
		content.Info.PageNum = i
		a.AddPage(doc, content)
	}
	a.Finish(doc)
}

func readPage(src PageSource, i int) (content PageContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return src.Page(i)
}

// AddPage appends one page and its elements to doc.
func (a *Assembler) AddPage(doc *document.Document, content PageContent) {
	info := content.Info
	doc.Pages = append(doc.Pages, info)

	var tables []geometry.BoundingBox
	if a.tables != nil && len(content.Rects) > 0 {
		tables = a.tables.DetectTables(content.Rects, info.Width, info.Height)
	}
	page := layout.Page{Width: info.Width, Height: info.Height, Tables: tables}

	for _, b := range content.Blocks {
		if e := a.element(info.PageNum, b, page); e != nil {
			doc.Elements = append(doc.Elements, e)
		}
	}
}

func (a *Assembler) element(pageNum int, b RawBlock, page layout.Page) *document.Element {
	text := strings.TrimSpace(b.Text)
	if text == "" || utf8.RuneCountInString(text) < a.opts.MinTextLength {
		return nil
	}
	a.textChars += utf8.RuneCountInString(text)

	elemType := b.Type
	if elemType == "" {
		elemType = document.TypeText
		if b.BBox != nil {
			fontSize := 0.0
			if b.Style != nil {
				fontSize = b.Style.FontSize
			}
			elemType = a.classifier.Classify(layout.Block{Text: text, BBox: *b.BBox, FontSize: fontSize}, page)
		}
	}

	seq := a.blockSeq[pageNum]
	a.blockSeq[pageNum] = seq + 1

	e := &document.Element{
		ID:              fmt.Sprintf("p%d_b%d_%s", pageNum, seq, uuid.NewString()[:8]),
		Content:         text,
		Type:            elemType,
		PageNum:         pageNum,
		BBox:            b.BBox,
		Style:           b.Style,
		ShouldTranslate: layout.ShouldTranslate(elemType, a.opts.SkipHeaderFooter),
	}
	for k, v := range b.Metadata {
		e.SetMeta(k, v)
	}
	if b.BBox != nil && b.BBox.IsEmpty() {
		e.SetMeta(document.MetaRenderable, false)
	}
	return e
}

// Finish sorts the elements into reading order and fills the text-layer
// metadata.
func (a *Assembler) Finish(doc *document.Document) {
	if a.opts.LineTolerance > 0 {
		doc.LineTolerance = a.opts.LineTolerance
	}
	doc.SortReadingOrder()
	doc.Metadata.PageCount = len(doc.Pages)
	doc.Metadata.HasTextLayer = HasTextLayer(a.textChars, len(doc.Pages), a.opts.TextLayerMinChars)
	a.log.Debug("document assembled",
		logger.String("source", doc.SourcePath),
		logger.Int("pages", len(doc.Pages)),
		logger.Int("elements", len(doc.Elements)),
		logger.Bool("hasTextLayer", doc.Metadata.HasTextLayer))
}

// HasTextLayer reports whether the average extracted characters per page
// reach minPerPage.
func HasTextLayer(chars, pages, minPerPage int) bool {
	if pages <= 0 {
		return false
	}
	if minPerPage <= 0 {
		return chars > 0
	}
	return chars/pages >= minPerPage
}
