package xlsx

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

// InlineRenderer writes a copy of the source workbook in which every
// translated cell holds its original text and the translation on the next
// line. Translated cells switch to a wrapped copy of their format.
type InlineRenderer struct {
	log logger.Logger
}

// NewInlineRenderer creates an inline XLSX renderer.
func NewInlineRenderer() *InlineRenderer {
	return &InlineRenderer{log: logger.Named("xlsx")}
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
	if format != render.FormatXLSX {
		return nil, types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode,
			fmt.Sprintf("cannot render %s as %s", render.ModeInline, format), "this renderer writes .xlsx files", nil)
	}

	pk, err := ooxml.Open(doc.SourcePath, partWorkbook)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "cannot reopen source workbook", err)
	}
	wb, err := readWorkbook(pk)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "malformed source workbook", err)
	}
	styles, err := loadWrapStyles(pk.Part(partStyles))
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "malformed source styles", err)
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.NewAppError(types.ErrRender, "failed to create output directory", err)
		}
	}

	byCell := make(map[cellKey]*document.Element, len(doc.Elements))
	for _, e := range doc.Elements {
		part, _ := e.Metadata[metaPart].(string)
		ref, _ := e.Metadata[metaCell].(string)
		if part != "" && ref != "" {
			byCell[cellKey{part, ref}] = e
		}
	}

	res := &render.Result{OutputPath: outputPath, Mode: render.ModeInline}
	for i, sh := range wb.sheets {
		if ctx.Err() != nil {
			res.Stopped = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("rendering stopped after %d of %d sheets", i, len(wb.sheets)))
			break
		}
		if err := r.rewrite(pk, sh, wb.shared, styles, byCell, lookup, opts, res); err != nil {
			return nil, err
		}
		res.Pages++
	}

	if styles == nil {
		if res.Placed > 0 {
			res.Warnings = append(res.Warnings, "workbook has no cell formats, translated cells are not wrapped")
		}
	} else if data := styles.part(); data != nil {
		pk.Set(partStyles, data)
	}
	if err := pk.Write(outputPath); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to write output file", err)
	}
	r.log.Info("xlsx written",
		logger.String("output", outputPath),
		logger.Int("sheets", res.Pages),
		logger.Int("translated", res.Placed),
		logger.Int("missing", res.Missing),
		logger.Bool("stopped", res.Stopped))
	return res, nil
}

type cellKey struct {
	part string
	ref  string
}

// rewrite replaces the translated cells of one worksheet.
func (r *InlineRenderer) rewrite(pk *ooxml.Package, sh sheet, shared []string, styles *wrapStyles, byCell map[cellKey]*document.Element, lookup render.Lookup, opts render.Options, res *render.Result) error {
	data := pk.Part(sh.part)
	cells, err := scanCells(data, shared)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrRender, "malformed source sheet", sh.name, err)
	}

	var buf bytes.Buffer
	last := int64(0)
	for _, c := range cells {
		e := byCell[cellKey{sh.part, c.Ref}]
		if e == nil || !e.ShouldTranslate || c.Translated || c.Formula {
			continue
		}
		if strings.TrimSpace(e.Content) != cellContent(c) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s!%s changed since parsing, not translated", sh.name, c.Ref))
			continue
		}
		text, ok := res.InlineText(e, lookup, opts)
		if !ok {
			continue
		}
		style := c.Style
		if styles != nil {
			style = styles.index(c.Style)
		}
		if buf.Len() == 0 {
			buf.Grow(len(data) + 1024)
		}
		buf.Write(data[last:c.Start])
		buf.WriteString(cellXML(prefixOf(data[c.Start:]), c.Ref, style, c.Text+translatedSep+text))
		last = c.End
	}
	if last == 0 {
		return nil
	}
	buf.Write(data[last:])
	pk.Set(sh.part, buf.Bytes())
	return nil
}

// cellXML writes a cell holding text as an inline string.
func cellXML(prefix, ref, style, text string) string {
	var b strings.Builder
	b.WriteString("<" + prefix + `c r="` + ooxml.Escape(ref) + `"`)
	if style != "" {
		b.WriteString(` s="` + style + `"`)
	}
	b.WriteString(` t="inlineStr"><` + prefix + `is><` + prefix + `t xml:space="preserve">`)
	b.WriteString(ooxml.Escape(text))
	b.WriteString("</" + prefix + "t></" + prefix + "is></" + prefix + "c>")
	return b.String()
}
