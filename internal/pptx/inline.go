package pptx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/ooxml"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// Point sizes of appended translations.
const (
	FrameFontSize = 12
	CellFontSize  = 10
)

// InlineRenderer writes a copy of the source presentation with each
// translation appended as italic paragraphs below its original text.
type InlineRenderer struct {
	log logger.Logger
}

// NewInlineRenderer creates an inline PPTX renderer.
func NewInlineRenderer() *InlineRenderer {
	return &InlineRenderer{log: logger.Named("pptx")}
}

// Modes implements render.Renderer.
func (r *InlineRenderer) Modes() []render.Mode { return []render.Mode{render.ModeInline} }

// Render implements render.Renderer.
func (r *InlineRenderer) Render(ctx context.Context, doc *document.Document, lookup render.Lookup, outputPath string, opts render.Options) (*render.Result, error) {
	format, err := render.FormatFromPath(outputPath)
	if err != nil {
		return nil, err
	}
	if err := render.Validate(render.ModeInline, format, doc.SourceType); err != nil {
		return nil, err
	}
	if format != render.FormatPPTX {
		return nil, types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode,
			fmt.Sprintf("cannot render %s as %s", render.ModeInline, format), "this renderer writes .pptx files", nil)
	}

	pk, err := ooxml.Open(doc.SourcePath, partPresentation)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "cannot reopen source presentation", err)
	}
	deck, err := readDeck(pk)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "malformed source presentation", err)
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.NewAppError(types.ErrRender, "failed to create output directory", err)
		}
	}

	byPos := make(map[bodyKey]*document.Element, len(doc.Elements))
	for _, e := range doc.Elements {
		if key, ok := elementKey(e); ok {
			byPos[key] = e
		}
	}

	res := &render.Result{OutputPath: outputPath, Mode: render.ModeInline}
	for i, s := range deck.slides {
		if ctx.Err() != nil {
			res.Stopped = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("rendering stopped after %d of %d slides", i, len(deck.slides)))
			break
		}
		for _, part := range s.parts() {
			if err := r.splice(pk, part, byPos, lookup, opts, res); err != nil {
				return nil, err
			}
		}
		res.Pages++
	}

	if err := pk.Write(outputPath); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to write output file", err)
	}
	r.log.Info("pptx written",
		logger.String("output", outputPath),
		logger.Int("slides", res.Pages),
		logger.Int("translated", res.Placed),
		logger.Int("missing", res.Missing),
		logger.Bool("stopped", res.Stopped))
	return res, nil
}

type bodyKey struct {
	part  string
	index int
}

// elementKey reads the source position of e. The index is a float64 once
// the document has been through JSON.
func elementKey(e *document.Element) (bodyKey, bool) {
	part, _ := e.Metadata[metaPart].(string)
	if part == "" {
		return bodyKey{}, false
	}
	switch v := e.Metadata[metaIndex].(type) {
	case int:
		return bodyKey{part, v}, true
	case float64:
		return bodyKey{part, int(v)}, true
	}
	return bodyKey{}, false
}

type insertion struct {
	at  int64
	xml string
}

// splice appends translations to the bodies of one part.
func (r *InlineRenderer) splice(pk *ooxml.Package, part string, byPos map[bodyKey]*document.Element, lookup render.Lookup, opts render.Options, res *render.Result) error {
	data := pk.Part(part)
	bodies, err := scanBodies(part, data)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrRender, "malformed source part", part, err)
	}

	var ins []insertion
	for _, b := range bodies {
		e := byPos[bodyKey{part: part, index: b.Index}]
		if e == nil || !e.ShouldTranslate || b.Translated {
			continue
		}
		if strings.TrimSpace(e.Content) != bodyText(b) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s text %d changed since parsing, not translated", part, b.Index))
			continue
		}
		text, ok := res.InlineText(e, lookup, opts)
		if !ok {
			continue
		}
		size := FrameFontSize
		switch b.Kind {
		case kindCell:
			size = CellFontSize
		case kindDiagram:
			// diagram text is sized by its layout
			size = 0
		}
		ins = append(ins, insertion{at: b.End, xml: paragraphsXML(text, size, opts.TargetLang)})
	}
	if len(ins) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(ins)*256)
	last := int64(0)
	for _, in := range ins {
		buf.Write(data[last:in.at])
		buf.WriteString(in.xml)
		last = in.at
	}
	buf.Write(data[last:])
	pk.Set(part, buf.Bytes())
	return nil
}

// paragraphsXML writes one italic DrawingML paragraph per line of text.
// The namespace is declared inline so the fragment is valid in any part.
func paragraphsXML(text string, size int, lang string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(`<a:p xmlns:a="` + drawingNS + `"><a:r><a:rPr`)
		if lang != "" {
			b.WriteString(` lang="` + ooxml.Escape(lang) + `"`)
		}
		b.WriteString(` i="1"`)
		if size > 0 {
			fmt.Fprintf(&b, ` sz="%d"`, size*100)
		}
		b.WriteString(` dirty="0"/><a:t>`)
		b.WriteString(ooxml.Escape(line + ooxml.InsertMarker))
		b.WriteString(`</a:t></a:r></a:p>`)
	}
	return b.String()
}
