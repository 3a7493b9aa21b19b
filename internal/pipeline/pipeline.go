// Package pipeline wires parsers, the translator and renderers into
// translation jobs. It owns the input format registry with its fallback
// chain, the output renderer table, multi-language jobs and the batch
// worker pool.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/docx"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/fontfit"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/ocr"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/pdf"
	"github.com/beabigegg/Translate-Tool/internal/pptx"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/results"
	"github.com/beabigegg/Translate-Tool/internal/translator"
	"github.com/beabigegg/Translate-Tool/internal/types"
	"github.com/beabigegg/Translate-Tool/internal/xlsx"
)

// StageOCR names the OCR parser in a fallback chain.
const StageOCR = "ocr"

type stage struct {
	name   string
	parser parser.Parser
}

// Pipeline runs translation jobs. It is safe for concurrent use once
// configured; parsers and renderers keep no per-document state.
type Pipeline struct {
	cfg        *config.Config
	parseOpts  parser.Options
	chains     map[string][]stage
	renderers  map[render.Format]map[render.Mode]render.Renderer
	translator translator.Translator
	fonts      *fontfit.Table
	results    *results.Manager
	progress   types.ProgressFunc
	log        logger.Logger
}

// New creates a pipeline with the built-in parsers and renderers. A nil
// cfg uses the defaults.
func New(cfg *config.Config, tr translator.Translator) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Pipeline{
		cfg:        cfg,
		parseOpts:  parser.OptionsFromConfig(cfg),
		chains:     make(map[string][]stage),
		renderers:  make(map[render.Format]map[render.Mode]render.Renderer),
		translator: tr,
		fonts:      fontfit.NewTable(cfg.Font),
		log:        logger.Named("pipeline"),
	}
	workDir := cfg.Pipeline.WorkDir

	p.RegisterParser("pdf", pdf.NewParser())
	if cfg.Pipeline.EnableOCR {
		p.RegisterParser(StageOCR, ocr.NewParser(ocr.DefaultDPI, workDir))
	}
	p.RegisterParser("pdf-plain", pdf.NewPlainTextParser(workDir))
	p.RegisterParser("docx", docx.NewParser())
	p.RegisterParser("pptx", pptx.NewParser())
	p.RegisterParser("xlsx", xlsx.NewParser())
	p.RegisterParser("text", parser.NewTextParser())

	planner := render.NewPlanner(p.fonts, render.PlannerOptionsFromConfig(cfg))
	overlay := pdf.NewOverlayRenderer(planner, pdf.StampOptionsFromConfig(cfg))
	p.RegisterRenderer(render.FormatPDF, overlay)
	p.RegisterRenderer(render.FormatPDF, pdf.NewSideBySideRenderer(overlay, workDir))
	p.RegisterRenderer(render.FormatDOCX, docx.NewInlineRenderer())
	p.RegisterRenderer(render.FormatPPTX, pptx.NewInlineRenderer())
	p.RegisterRenderer(render.FormatXLSX, xlsx.NewInlineRenderer())
	p.RegisterRenderer(render.FormatMarkdown, render.NewMarkdownRenderer())
	return p
}

// RegisterParser appends ps to the fallback chain of every extension it
// accepts. Parsers are tried in registration order.
func (p *Pipeline) RegisterParser(name string, ps parser.Parser) {
	for _, ext := range ps.Extensions() {
		ext = strings.ToLower(ext)
		p.chains[ext] = append(p.chains[ext], stage{name: name, parser: ps})
	}
}

// RegisterRenderer makes r the renderer of its modes for format.
func (p *Pipeline) RegisterRenderer(format render.Format, r render.Renderer) {
	if p.renderers[format] == nil {
		p.renderers[format] = make(map[render.Mode]render.Renderer)
	}
	for _, m := range r.Modes() {
		p.renderers[format][m] = r
	}
}

// SetProgress installs a status callback. It is called from worker
// goroutines during RunBatch and must be safe for concurrent use.
func (p *Pipeline) SetProgress(fn types.ProgressFunc) { p.progress = fn }

// SetResults makes every job write a record to m.
func (p *Pipeline) SetResults(m *results.Manager) { p.results = m }

// ParseOptions returns the parse options derived from the configuration.
func (p *Pipeline) ParseOptions() parser.Options { return p.parseOpts }

// Fonts exposes the font table used for rendering.
func (p *Pipeline) Fonts() *fontfit.Table { return p.fonts }

// SupportedExtensions lists the input extensions with at least one parser.
func (p *Pipeline) SupportedExtensions() []string {
	out := make([]string, 0, len(p.chains))
	for ext := range p.chains {
		out = append(out, ext)
	}
	return out
}

// Parse extracts path with the first parser of its chain that can open it.
// EXTRACTION_UNAVAILABLE and MISSING_OPTIONAL_CAPABILITY move on to the
// next parser. A document without a text layer is read again by the OCR
// parser of the chain; the OCR result is kept only if it found text.
func (p *Pipeline) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	chain := p.chains[ext]
	if len(chain) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unsupported input format", ext, nil)
	}

	var lastErr, ocrErr error
	var notes []string
	for _, st := range chain {
		doc, err := st.parser.Parse(ctx, path, opts)
		if err != nil {
			if !fallsThrough(err) {
				return nil, err
			}
			p.log.Warn("parser unavailable, trying next",
				logger.String("parser", st.name),
				logger.String("file", filepath.Base(path)),
				logger.Err(err))
			notes = append(notes, st.name+": "+err.Error())
			lastErr = err
			if st.name == StageOCR {
				ocrErr = err
			}
			continue
		}
		if !doc.Metadata.HasTextLayer && !doc.Stopped && st.name != StageOCR {
			doc = p.tryOCR(ctx, path, opts, doc, chain, ocrErr)
		}
		for _, n := range notes {
			doc.AddWarning("fallback from %s", n)
		}
		return doc, nil
	}
	return nil, lastErr
}

func (p *Pipeline) tryOCR(ctx context.Context, path string, opts parser.Options, doc *document.Document, chain []stage, ocrErr error) *document.Document {
	if ocrErr != nil {
		doc.AddWarning("no text layer and OCR failed: %v", ocrErr)
		return doc
	}
	for _, st := range chain {
		if st.name != StageOCR {
			continue
		}
		scanned, err := st.parser.Parse(ctx, path, opts)
		if err != nil {
			doc.AddWarning("no text layer and OCR failed: %v", err)
			p.log.Warn("no text layer, OCR unavailable", logger.String("file", filepath.Base(path)), logger.Err(err))
			return doc
		}
		if len(scanned.Elements) == 0 {
			doc.AddWarning("no text layer and OCR found no text")
			return doc
		}
		scanned.AddWarning("no text layer; text recognized by OCR")
		p.log.Info("using OCR result",
			logger.String("file", filepath.Base(path)),
			logger.Int("elements", len(scanned.Elements)))
		return scanned
	}
	doc.AddWarning("no text layer found and no OCR parser is registered")
	return doc
}

func fallsThrough(err error) bool {
	return types.IsCode(err, types.ErrExtractionUnavailable) || types.IsCode(err, types.ErrMissingCapability)
}

// Render writes doc in mode to outputPath with the given translations,
// keyed by trimmed original text. The mode is checked against the output
// format before anything is written.
func (p *Pipeline) Render(ctx context.Context, doc *document.Document, translations map[string]string, outputPath string, mode render.Mode, targetLang string) (*render.Result, error) {
	r, err := p.renderer(doc, outputPath, mode)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, doc, render.TranslationLookup(translations), outputPath, render.Options{
		Mode:        mode,
		TargetLang:  targetLang,
		ShowMissing: p.cfg.Render.ShowMissing,
		Placeholder: p.cfg.Render.MissingPlaceholder,
	})
}

func (p *Pipeline) renderer(doc *document.Document, outputPath string, mode render.Mode) (render.Renderer, error) {
	format, err := render.FormatFromPath(outputPath)
	if err != nil {
		return nil, err
	}
	if err := render.Validate(mode, format, doc.SourceType); err != nil {
		return nil, err
	}
	r := p.renderers[format][mode]
	if r == nil {
		return nil, types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode,
			"no renderer for "+string(mode)+" as "+string(format), outputPath, nil)
	}
	return r, nil
}
