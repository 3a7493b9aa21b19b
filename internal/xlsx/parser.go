// Package xlsx reads Excel workbooks into the intermediate document and
// writes them back with each translated cell holding its original text
// followed by the translation. Every worksheet becomes a page of table
// cells without positions.
package xlsx

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

// SourceType is the document source type for workbooks.
const SourceType = "xlsx"

const (
	partWorkbook = "xl/workbook.xml"
	partShared   = "xl/sharedStrings.xml"
	partStyles   = "xl/styles.xml"
)

// Element metadata locating the source cell.
const (
	metaPart    = "part"
	metaCell    = "cell"
	metaFormula = "formula"
)

// Parser extracts the text cells of every worksheet.
type Parser struct {
	log logger.Logger
}

// NewParser creates an XLSX parser.
func NewParser() *Parser {
	return &Parser{log: logger.Named("xlsx")}
}

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string { return []string{".xlsx"} }

// Parse implements parser.Parser. Formula results are extracted for
// context but not translated, since the next recalculation would replace
// them.
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
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return nil, types.NewAppError(types.ErrInvalidInput, "not an XLSX file: "+path, nil)
	}

	pk, err := ooxml.Open(path, partWorkbook)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot open "+filepath.Base(path), err)
	}
	wb, err := readWorkbook(pk)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "malformed workbook "+filepath.Base(path), err)
	}

	doc := document.New(path, SourceType)
	if core, ok := pk.ReadCore(); ok {
		doc.Metadata.Title = strings.TrimSpace(core.Title)
		doc.Metadata.Author = strings.TrimSpace(core.Creator)
		doc.Metadata.Subject = strings.TrimSpace(core.Subject)
		doc.Metadata.CreationDate = core.Created
		doc.Metadata.ModificationDate = core.Modified
	}

	parser.NewAssembler(opts).WithTableDetector(nil).Assemble(ctx, doc, &sheetSource{pkg: pk, wb: wb})
	doc.Metadata.HasTextLayer = true
	for _, e := range doc.Elements {
		if f, _ := e.Metadata[metaFormula].(bool); f {
			e.ShouldTranslate = false
		}
	}

	p.log.Info("XLSX parsed",
		logger.String("file", filepath.Base(path)),
		logger.Int("sheets", len(wb.sheets)),
		logger.Int("elements", len(doc.Elements)))
	return doc, nil
}

type sheet struct {
	name string
	part string
}

type workbook struct {
	sheets []sheet
	shared []string
}

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

// readWorkbook resolves the worksheets in tab order and loads the shared
// string table. Chart sheets and dialog sheets are not worksheets and are
// left out.
func readWorkbook(pk *ooxml.Package) (*workbook, error) {
	var wx workbookXML
	if err := xml.Unmarshal(pk.Part(partWorkbook), &wx); err != nil {
		return nil, err
	}
	rels, err := pk.Relationships(partWorkbook)
	if err != nil {
		return nil, err
	}

	wb := &workbook{}
	for _, s := range wx.Sheets {
		rel, ok := rels[s.RID]
		if !ok || rel.External || !rel.TypeIs("worksheet") || !pk.Has(rel.Target) {
			continue
		}
		wb.sheets = append(wb.sheets, sheet{name: s.Name, part: rel.Target})
	}
	if len(wb.sheets) == 0 {
		wb.sheets = numberedSheets(pk)
	}

	sharedPart := partShared
	for _, rel := range rels {
		if rel.TypeIs("sharedStrings") && !rel.External {
			sharedPart = rel.Target
		}
	}
	if wb.shared, err = readSharedStrings(pk.Part(sharedPart)); err != nil {
		return nil, fmt.Errorf("%s: %w", sharedPart, err)
	}
	return wb, nil
}

func numberedSheets(pk *ooxml.Package) []sheet {
	var out []sheet
	for _, name := range pk.Names() {
		if sheetNumber(name) > 0 {
			out = append(out, sheet{name: strings.TrimSuffix(path.Base(name), ".xml"), part: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return sheetNumber(out[i].part) < sheetNumber(out[j].part) })
	return out
}

// sheetNumber returns N of xl/worksheets/sheetN.xml, or 0.
func sheetNumber(name string) int {
	dir, base := path.Split(name)
	if dir != "xl/worksheets/" || !strings.HasPrefix(base, "sheet") || !strings.HasSuffix(base, ".xml") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "sheet"), ".xml"))
	if err != nil {
		return 0
	}
	return n
}

// sheetSource presents each worksheet as a page.
type sheetSource struct {
	pkg *ooxml.Package
	wb  *workbook
}

func (s *sheetSource) PageCount() int { return len(s.wb.sheets) }

func (s *sheetSource) Page(i int) (parser.PageContent, error) {
	var content parser.PageContent
	sh := s.wb.sheets[i]
	cells, err := scanCells(s.pkg.Part(sh.part), s.wb.shared)
	if err != nil {
		return content, fmt.Errorf("%s: %w", sh.part, err)
	}
	for _, c := range cells {
		text := cellContent(c)
		if text == "" {
			continue
		}
		content.Blocks = append(content.Blocks, parser.RawBlock{
			Text:     text,
			Type:     document.TypeTableCell,
			Metadata: cellMeta(sh, c),
		})
	}
	return content, nil
}

// cellContent is the normalized text an element is created from.
func cellContent(c cell) string {
	return strings.TrimSpace(parser.Normalize(c.Text))
}

func cellMeta(sh sheet, c cell) map[string]any {
	meta := map[string]any{
		metaPart:   sh.part,
		metaCell:   c.Ref,
		"sheet":    sh.name,
		"context":  "Cell",
		"in_table": true,
		"row":      c.Row,
		"col":      c.Col,
	}
	if c.Formula {
		meta[metaFormula] = true
	}
	return meta
}
