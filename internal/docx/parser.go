// Package docx reads Word documents into the intermediate document and
// writes inline bilingual Word output. Packages are handled as zip
// archives and their parts scanned as XML tokens, so a source file can be
// rewritten with translations spliced in and everything else untouched.
package docx

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// SourceType is the document source type for Word files.
const SourceType = "docx"

// Parser extracts body, table, text box, header and footer paragraphs.
// Word has no fixed pagination, so the document is one Letter page and
// elements carry no bbox.
type Parser struct {
	log logger.Logger
}

// NewParser creates a DOCX parser.
func NewParser() *Parser {
	return &Parser{log: logger.Named("docx")}
}

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string { return []string{".docx"} }

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
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return nil, types.NewAppError(types.ErrInvalidInput, "not a DOCX file: "+path, nil)
	}

	pk, err := readPackage(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot open "+filepath.Base(path), err)
	}

	doc := document.New(path, SourceType)
	if core, ok := pk.ReadCore(); ok {
		doc.Metadata.Title = strings.TrimSpace(core.Title)
		doc.Metadata.Author = strings.TrimSpace(core.Creator)
		doc.Metadata.Subject = strings.TrimSpace(core.Subject)
		doc.Metadata.CreationDate = core.Created
		doc.Metadata.ModificationDate = core.Modified
	}

	src := &packageSource{pkg: pk, styles: loadStyles(pk.Part(partStyles))}
	parser.NewAssembler(opts).WithTableDetector(nil).Assemble(ctx, doc, src)
	if src.skipped > 0 {
		p.log.Debug("skipped inserted translations", logger.Int("paragraphs", src.skipped))
	}
	// Word files always carry their text
	doc.Metadata.HasTextLayer = true

	p.log.Info("DOCX parsed",
		logger.String("file", filepath.Base(path)),
		logger.Int("elements", len(doc.Elements)),
		logger.Int("parts", len(pk.textParts())))
	return doc, nil
}

// packageSource presents a whole package as a single page.
type packageSource struct {
	pkg     *pkg
	styles  map[string]string
	skipped int
}

func (s *packageSource) PageCount() int { return 1 }

func (s *packageSource) Page(int) (parser.PageContent, error) {
	content := parser.PageContent{Info: document.PageInfo{
		Width:  parser.DefaultPageWidth,
		Height: parser.DefaultPageHeight,
	}}
	for _, part := range s.pkg.textParts() {
		paras, err := scanParagraphs(part, s.pkg.Part(part))
		if err != nil {
			return content, types.NewAppErrorWithDetails(types.ErrExtractionUnavailable, "malformed part", part, err)
		}
		for i, para := range paras {
			text := paragraphText(para)
			if text == "" {
				continue
			}
			if para.inserted() {
				s.skipped++
				continue
			}
			meta := paragraphMeta(para, s.styles)
			meta[metaIndex] = i
			content.Blocks = append(content.Blocks, parser.RawBlock{
				Text:     text,
				Type:     elementType(para, s.styles),
				Metadata: meta,
			})
		}
	}
	return content, nil
}

// Element metadata locating the source paragraph. The index counts every
// paragraph scanned from the part, empty and inserted ones included.
const (
	metaPart  = "part"
	metaIndex = "paragraph"
)

// paragraphText is the normalized text an element is created from.
func paragraphText(p paragraph) string {
	return strings.TrimSpace(parser.Normalize(p.Text))
}

func paragraphMeta(p paragraph, styles map[string]string) map[string]any {
	meta := map[string]any{metaPart: p.Part}
	switch {
	case p.TextBox:
		meta["context"] = "TextBox"
	case p.Table:
		meta["context"] = "Table"
	default:
		meta["context"] = "Body"
	}
	if p.StyleID != "" {
		name := styles[p.StyleID]
		if name == "" {
			name = p.StyleID
		}
		meta["style"] = name
	}
	if p.Table {
		meta["in_table"] = true
		meta["row"] = p.Row
		meta["col"] = p.Col
	}
	return meta
}
