// Package pptx reads PowerPoint presentations into the intermediate
// document and writes them back with translations appended to every text
// frame, table cell and SmartArt node. Slides become pages; shapes keep
// their position on the slide.
package pptx

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/ooxml"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// SourceType is the document source type for presentations.
const SourceType = "pptx"

const partPresentation = "ppt/presentation.xml"

// 16:9 at 960x540 points, PowerPoint's default.
const (
	defaultSlideWidth  = 960
	defaultSlideHeight = 540
)

// Element metadata locating the source body.
const (
	metaPart  = "part"
	metaIndex = "body"
)

// Parser extracts the text of every slide.
type Parser struct {
	log logger.Logger
}

// NewParser creates a PPTX parser.
func NewParser() *Parser {
	return &Parser{log: logger.Named("pptx")}
}

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string { return []string{".pptx"} }

// Parse implements parser.Parser.
func (p *Parser) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found: "+path, err)
		}
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot access "+filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, types.NewAppError(types.ErrInvalidInput, "not a file: "+path, nil)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pptx") {
		return nil, types.NewAppError(types.ErrInvalidInput, "not a PPTX file: "+path, nil)
	}

	pk, err := ooxml.Open(path, partPresentation)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot open "+filepath.Base(path), err)
	}
	deck, err := readDeck(pk)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "malformed presentation "+filepath.Base(path), err)
	}

	doc := document.New(path, SourceType)
	if core, ok := pk.ReadCore(); ok {
		doc.Metadata.Title = strings.TrimSpace(core.Title)
		doc.Metadata.Author = strings.TrimSpace(core.Creator)
		doc.Metadata.Subject = strings.TrimSpace(core.Subject)
		doc.Metadata.CreationDate = core.Created
		doc.Metadata.ModificationDate = core.Modified
	}

	parser.NewAssembler(opts).WithTableDetector(nil).Assemble(ctx, doc, &deckSource{pkg: pk, deck: deck})
	doc.Metadata.HasTextLayer = true

	p.log.Info("PPTX parsed",
		logger.String("file", filepath.Base(path)),
		logger.Int("slides", len(deck.slides)),
		logger.Int("elements", len(doc.Elements)))
	return doc, nil
}

// slide is one slide part and the SmartArt data parts it uses.
type slide struct {
	part     string
	diagrams []string
}

// deck lists the slides in presentation order.
type deck struct {
	width, height float64
	slides        []slide
}

// parts returns every part holding text, slide by slide.
func (s slide) parts() []string {
	return append([]string{s.part}, s.diagrams...)
}

type presentationXML struct {
	SlideSize struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
	Slides []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

// readDeck resolves the slide order from the presentation part. Slides
// that cannot be resolved fall back to their file number order.
func readDeck(pk *ooxml.Package) (*deck, error) {
	var px presentationXML
	if err := xml.Unmarshal(pk.Part(partPresentation), &px); err != nil {
		return nil, err
	}
	d := &deck{width: defaultSlideWidth, height: defaultSlideHeight}
	if px.SlideSize.CX > 0 && px.SlideSize.CY > 0 {
		d.width = float64(px.SlideSize.CX) / emuPerPoint
		d.height = float64(px.SlideSize.CY) / emuPerPoint
	}

	rels, err := pk.Relationships(partPresentation)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, s := range px.Slides {
		if rel, ok := rels[s.RID]; ok && !rel.External && pk.Has(rel.Target) {
			names = append(names, rel.Target)
		}
	}
	if len(names) == 0 {
		names = numberedSlides(pk)
	}

	for _, name := range names {
		s := slide{part: name}
		srels, err := pk.Relationships(name)
		if err != nil {
			return nil, err
		}
		for _, rel := range srels {
			if rel.TypeIs("diagramData") && !rel.External && pk.Has(rel.Target) {
				s.diagrams = append(s.diagrams, rel.Target)
			}
		}
		sort.Strings(s.diagrams)
		d.slides = append(d.slides, s)
	}
	return d, nil
}

func numberedSlides(pk *ooxml.Package) []string {
	var names []string
	for _, name := range pk.Names() {
		if slideNumber(name) > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return slideNumber(names[i]) < slideNumber(names[j]) })
	return names
}

// slideNumber returns N of ppt/slides/slideN.xml, or 0.
func slideNumber(name string) int {
	dir, base := path.Split(name)
	if dir != "ppt/slides/" || !strings.HasPrefix(base, "slide") || !strings.HasSuffix(base, ".xml") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "slide"), ".xml"))
	if err != nil {
		return 0
	}
	return n
}

// deckSource presents each slide as a page.
type deckSource struct {
	pkg  *ooxml.Package
	deck *deck
}

func (s *deckSource) PageCount() int { return len(s.deck.slides) }

func (s *deckSource) Page(i int) (parser.PageContent, error) {
	content := parser.PageContent{Info: document.PageInfo{Width: s.deck.width, Height: s.deck.height}}
	for _, part := range s.deck.slides[i].parts() {
		bodies, err := scanBodies(part, s.pkg.Part(part))
		if err != nil {
			return content, fmt.Errorf("%s: %w", part, err)
		}
		for _, b := range bodies {
			text := bodyText(b)
			if text == "" {
				continue
			}
			content.Blocks = append(content.Blocks, parser.RawBlock{
				Text:     text,
				BBox:     b.Box,
				Type:     elementType(b),
				Metadata: bodyMeta(b),
			})
		}
	}
	return content, nil
}

// bodyText is the normalized text an element is created from.
func bodyText(b textBody) string {
	return strings.TrimSpace(parser.Normalize(b.Text))
}

// elementType classifies a body from its placeholder type and shape name.
func elementType(b textBody) document.ElementType {
	if b.Kind == kindCell {
		return document.TypeTableCell
	}
	switch b.Placeholder {
	case "title", "ctrTitle":
		return document.TypeTitle
	case "ftr", "dt":
		return document.TypeFooter
	case "hdr":
		return document.TypeHeader
	case "sldNum":
		return document.TypePageNumber
	}
	name := strings.ToLower(b.Name)
	switch {
	case strings.Contains(name, "title"):
		return document.TypeTitle
	case strings.Contains(name, "footer"):
		return document.TypeFooter
	case strings.Contains(name, "header"):
		return document.TypeHeader
	}
	return document.TypeText
}

func bodyMeta(b textBody) map[string]any {
	meta := map[string]any{
		metaPart:  b.Part,
		metaIndex: b.Index,
		"context": b.Kind.String(),
	}
	if b.Name != "" {
		meta["shape_name"] = b.Name
	}
	if b.Placeholder != "" {
		meta["placeholder"] = b.Placeholder
	}
	if b.Kind == kindCell {
		meta["in_table"] = true
		meta["row"] = b.Row
		meta["col"] = b.Col
	}
	return meta
}
