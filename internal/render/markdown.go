package render

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// MarkdownRenderer writes inline bilingual Markdown: each original block is
// followed by its translation in italics.
type MarkdownRenderer struct {
	log logger.Logger
}

// NewMarkdownRenderer creates an inline Markdown renderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{log: logger.Named("render")}
}

// Modes implements Renderer.
func (r *MarkdownRenderer) Modes() []Mode { return []Mode{ModeInline} }

// mdEscaper neutralises inline markup in document text, originals and
// translations alike.
var mdEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `<`, `&lt;`)

// Render implements Renderer.
func (r *MarkdownRenderer) Render(ctx context.Context, doc *document.Document, lookup Lookup, outputPath string, opts Options) (*Result, error) {
	if err := Validate(ModeInline, FormatMarkdown, doc.SourceType); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.NewAppError(types.ErrRender, "failed to create output directory", err)
		}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to create output file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	res := &Result{OutputPath: outputPath, Mode: ModeInline}
	ordered := doc.ElementsInReadingOrder()
	headings := len(doc.Pages) > 1 || doc.SourceType == "pdf"

	for _, page := range doc.Pages {
		if ctx.Err() != nil {
			res.Stopped = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("rendering stopped after %d of %d pages", res.Pages, len(doc.Pages)))
			break
		}
		if headings {
			fmt.Fprintf(w, "## -- Page %d --\n\n", page.PageNum+1)
		}
		for _, e := range ordered {
			if e.PageNum != page.PageNum {
				continue
			}
			r.writeElement(w, e, lookup, opts, res)
		}
		res.Pages++
	}

	if err := w.Flush(); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to write output file", err)
	}
	r.log.Info("markdown written",
		logger.String("output", outputPath),
		logger.Int("pages", res.Pages),
		logger.Int("translated", res.Placed),
		logger.Int("missing", res.Missing),
		logger.Bool("stopped", res.Stopped))
	return res, nil
}

func (r *MarkdownRenderer) writeElement(w *bufio.Writer, e *document.Element, lookup Lookup, opts Options, res *Result) {
	original := strings.TrimSpace(e.Content)
	switch {
	case e.Type == document.TypeTitle:
		fmt.Fprintf(w, "### %s\n\n", mdEscaper.Replace(original))
	case !e.ShouldTranslate:
		// kept for context, visually muted
		fmt.Fprintf(w, "<span style=\"color:gray\">%s</span>\n\n", mdEscaper.Replace(original))
		return
	default:
		fmt.Fprintf(w, "%s\n\n", mdEscaper.Replace(original))
	}

	if !e.ShouldTranslate {
		return
	}
	text, ok := res.InlineText(e, lookup, opts)
	if !ok {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			fmt.Fprintf(w, "*%s*\n", mdEscaper.Replace(line))
		}
	}
	w.WriteString("\n")
}

// MissingPlaceholder returns the placeholder label, defaulting to the
// configured one.
func (o Options) MissingPlaceholder() string {
	if o.Placeholder != "" {
		return o.Placeholder
	}
	return config.DefaultMissingPlaceholder
}
