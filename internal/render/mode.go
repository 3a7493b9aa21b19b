// Package render holds what every output writer shares: layout modes,
// output formats, mode validation and the placement planner used by the
// fixed-page renderers. It also carries the inline Markdown renderer.
package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// Mode is the output layout.
type Mode string

const (
	// ModeInline writes every original paragraph followed by its translation.
	ModeInline Mode = "inline"
	// ModeOverlay masks the original text and draws the translation in place.
	ModeOverlay Mode = "overlay"
	// ModeSideBySide puts each original page next to its translated copy.
	ModeSideBySide Mode = "side_by_side"
)

// ParseMode accepts the mode names used on the command line and in config.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "inline":
		return ModeInline, nil
	case "overlay":
		return ModeOverlay, nil
	case "side_by_side", "sidebyside":
		return ModeSideBySide, nil
	}
	return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown layout mode", s, nil)
}

// Format is an output file format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatPPTX     Format = "pptx"
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "md"
)

// FixedPage reports whether the format has absolute page geometry.
func (f Format) FixedPage() bool { return f == FormatPDF }

// FormatFromPath derives the output format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".pptx":
		return FormatPPTX, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".md", ".markdown", ".txt":
		return FormatMarkdown, nil
	}
	return "", types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode, "unsupported output format", path, nil)
}

// Validate checks that mode can be produced as format from a document of
// sourceType. It runs before any output is written and never substitutes
// another mode.
func Validate(mode Mode, format Format, sourceType string) error {
	switch mode {
	case ModeInline:
		if format.FixedPage() {
			return unsupported(mode, format, "inline output needs a flow format (docx, md)")
		}
		// slides and sheets are only written back into their own source
		if (format == FormatPPTX || format == FormatXLSX) && sourceType != string(format) {
			return unsupported(mode, format, fmt.Sprintf("a %s file can only be translated from a %s source", format, format))
		}
	case ModeOverlay, ModeSideBySide:
		if !format.FixedPage() {
			return unsupported(mode, format, "this mode needs a fixed-page format (pdf)")
		}
		if sourceType != "pdf" {
			return unsupported(mode, format, fmt.Sprintf("source type %q has no pages to draw on", sourceType))
		}
	default:
		return unsupported(mode, format, "unknown mode")
	}
	return nil
}

// CheckPlaceable rejects the fixed-page modes for a document whose
// translatable elements all lack a position, as when a PDF was read by the
// plain text fallback. A document with nothing to translate passes.
func CheckPlaceable(doc *document.Document, mode Mode) error {
	if mode != ModeOverlay && mode != ModeSideBySide {
		return nil
	}
	translatable := 0
	for _, e := range doc.Elements {
		if !e.ShouldTranslate {
			continue
		}
		if e.Renderable() {
			return nil
		}
		translatable++
	}
	if translatable == 0 {
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode,
		fmt.Sprintf("cannot render %s: the document has no text positions", mode),
		fmt.Sprintf("%d elements without a box; use inline mode", translatable), nil)
}

func unsupported(mode Mode, format Format, details string) error {
	return types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode,
		fmt.Sprintf("cannot render %s as %s", mode, format), details, nil)
}

// Options are the per-call render settings.
type Options struct {
	Mode       Mode
	TargetLang string
	// ShowMissing draws Placeholder where a translation is missing.
	ShowMissing bool
	Placeholder string
}

// Result summarises one render.
type Result struct {
	OutputPath string
	Mode       Mode
	Pages      int
	Placed     int
	Missing    int
	Overflowed int
	// Unchanged counts translations equal to the original. Nothing is
	// written for them and they are not counted as placed.
	Unchanged int
	// Skipped counts translated elements that had no position to draw at.
	Skipped int
	// Stopped is set when rendering was cancelled; the output is partial.
	Stopped  bool
	Warnings []string
}

// Renderer writes a translated document in one or more modes.
type Renderer interface {
	// Modes lists the modes the renderer produces.
	Modes() []Mode
	// Render writes doc to outputPath. Translations are looked up with
	// lookup so one parsed document can be rendered for several languages.
	Render(ctx context.Context, doc *document.Document, lookup Lookup, outputPath string, opts Options) (*Result, error)
}

// Lookup returns the translation of an element.
type Lookup func(e *document.Element) (string, bool)

// TranslationLookup resolves elements through a map keyed by trimmed
// original text, falling back to a translation already set on the element.
func TranslationLookup(translations map[string]string) Lookup {
	return func(e *document.Element) (string, bool) {
		if t, ok := translations[strings.TrimSpace(e.Content)]; ok {
			return t, true
		}
		return e.Translation()
	}
}

// MissingText formats the placeholder shown for an untranslated element.
func MissingText(placeholder, original string) string {
	r := []rune(strings.TrimSpace(original))
	if len(r) > 50 {
		return fmt.Sprintf("%s %s...", placeholder, string(r[:50]))
	}
	return fmt.Sprintf("%s %s", placeholder, string(r))
}

// InlineText returns the text an inline renderer inserts after e and
// counts it in r. Nothing is inserted when the translation equals the
// original, or when it is missing and placeholders are off.
func (r *Result) InlineText(e *document.Element, lookup Lookup, opts Options) (string, bool) {
	original := strings.TrimSpace(e.Content)
	text, ok := lookup(e)
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		r.Missing++
		if !opts.ShowMissing {
			return "", false
		}
		return MissingText(opts.MissingPlaceholder(), original), true
	}
	if text == original {
		r.Unchanged++
		return "", false
	}
	r.Placed++
	return text, true
}

// Supports reports whether r produces mode.
func Supports(r Renderer, mode Mode) bool {
	for _, m := range r.Modes() {
		if m == mode {
			return true
		}
	}
	return false
}
