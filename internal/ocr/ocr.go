// Package ocr recognizes text in scanned PDFs and images. Recognition uses
// Tesseract through gosseract and is compiled in only with the "ocr" build
// tag:
//
//	go build -tags ocr ./...
//
// Without the tag every parse fails with MISSING_OPTIONAL_CAPABILITY and
// the pipeline moves on to the next parser.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// DefaultMinConfidence drops regions Tesseract is less sure about.
const DefaultMinConfidence = 30.0

// Region is one recognized paragraph in pixel coordinates.
type Region struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Engine recognizes the paragraphs of one image.
type Engine interface {
	Recognize(img []byte) ([]Region, error)
	Close() error
}

// EngineFactory creates an engine for the given tesseract languages.
type EngineFactory func(languages []string) (Engine, error)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true}

// Parser builds documents from OCR output. Region boxes are scaled from
// pixels to points using the rasterization DPI.
type Parser struct {
	newEngine     EngineFactory
	raster        *Rasterizer
	MinConfidence float64
	log           logger.Logger
}

// NewParser creates a parser backed by Tesseract.
func NewParser(dpi int, workDir string) *Parser {
	return NewParserWithEngine(NewTesseract, NewRasterizer(dpi, workDir))
}

// NewParserWithEngine creates a parser with a custom engine.
func NewParserWithEngine(factory EngineFactory, raster *Rasterizer) *Parser {
	return &Parser{newEngine: factory, raster: raster, MinConfidence: DefaultMinConfidence, log: logger.Named("ocr")}
}

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string {
	return []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff"}
}

// Parse implements parser.Parser.
func (p *Parser) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found: "+path, err)
		}
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot access "+filepath.Base(path), err)
	}

	eng, err := p.newEngine(opts.OCRLanguages)
	if err != nil {
		if types.IsCode(err, types.ErrMissingCapability) {
			return nil, err
		}
		return nil, types.NewAppError(types.ErrMissingCapability, "OCR engine unavailable", err)
	}
	defer eng.Close()

	ext := strings.ToLower(filepath.Ext(path))
	var src parser.PageSource
	sourceType := "image"
	switch {
	case ext == ".pdf":
		n, err := api.PageCountFile(path)
		if err != nil {
			return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot read page count", err)
		}
		src = &pdfSource{ctx: ctx, path: path, pages: n, parser: p, eng: eng}
		sourceType = "pdf"
	case imageExtensions[ext]:
		src = &imageSource{path: path, parser: p, eng: eng}
	default:
		return nil, types.NewAppError(types.ErrInvalidInput, "OCR does not read "+ext+" files", nil)
	}

	doc := document.New(path, sourceType)
	parser.NewAssembler(opts).WithTableDetector(nil).Assemble(ctx, doc, src)
	// recognized text is the text layer now
	doc.Metadata.HasTextLayer = len(doc.Elements) > 0

	p.log.Info("OCR finished",
		logger.String("file", filepath.Base(path)),
		logger.Int("pages", len(doc.Pages)),
		logger.Int("elements", len(doc.Elements)))
	return doc, nil
}

// page recognizes one image and converts the regions to page content.
func (p *Parser) page(eng Engine, img []byte, dpi float64) (parser.PageContent, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return parser.PageContent{}, fmt.Errorf("decode image: %w", err)
	}
	scale := 72 / dpi
	content := parser.PageContent{Info: document.PageInfo{
		Width:  float64(cfg.Width) * scale,
		Height: float64(cfg.Height) * scale,
	}}

	regions, err := eng.Recognize(img)
	if err != nil {
		return content, fmt.Errorf("recognize: %w", err)
	}
	for _, r := range regions {
		text := strings.Join(strings.Fields(r.Text), " ")
		if text == "" || r.Confidence < p.MinConfidence {
			continue
		}
		box := geometry.New(
			float64(r.Box.Min.X)*scale, float64(r.Box.Min.Y)*scale,
			float64(r.Box.Max.X)*scale, float64(r.Box.Max.Y)*scale)
		content.Blocks = append(content.Blocks, parser.RawBlock{
			Text:     parser.Normalize(text),
			BBox:     &box,
			Metadata: map[string]any{"ocr_confidence": r.Confidence},
		})
	}
	return content, nil
}

type pdfSource struct {
	ctx    context.Context
	path   string
	pages  int
	parser *Parser
	eng    Engine
}

func (s *pdfSource) PageCount() int { return s.pages }

func (s *pdfSource) Page(i int) (parser.PageContent, error) {
	img, err := s.parser.raster.RenderPage(s.ctx, s.path, i+1)
	if err != nil {
		return parser.PageContent{}, err
	}
	return s.parser.page(s.eng, img, float64(s.parser.raster.DPI))
}

// imageSource is a single page image. Its pixels are taken as points.
type imageSource struct {
	path   string
	parser *Parser
	eng    Engine
}

func (s *imageSource) PageCount() int { return 1 }

func (s *imageSource) Page(int) (parser.PageContent, error) {
	img, err := os.ReadFile(s.path)
	if err != nil {
		return parser.PageContent{}, err
	}
	return s.parser.page(s.eng, img, 72)
}
