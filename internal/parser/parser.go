// Package parser defines the document parser contract and the page assembly
// shared by all format specific parsers.
package parser

import (
	"context"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/layout"
)

// Default page size used when a format has no page geometry (US Letter).
const (
	DefaultPageWidth  = 612.0
	DefaultPageHeight = 792.0
)

// Parser turns a source file into an intermediate document.
type Parser interface {
	// Parse extracts the document at path. It returns a partial document
	// with Stopped set when ctx is cancelled between pages.
	Parse(ctx context.Context, path string, opts Options) (*document.Document, error)
	// Extensions lists the lower-case file extensions the parser accepts.
	Extensions() []string
}

// Options are the per-call parse settings.
type Options struct {
	SkipHeaderFooter  bool
	Layout            layout.Config
	LineTolerance     float64
	MinTextLength     int
	TextLayerMinChars int
	DetectTables      bool
	// OCRLanguages are tesseract language codes, used by the OCR parser.
	OCRLanguages []string
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		SkipHeaderFooter:  true,
		Layout:            layout.DefaultConfig(),
		LineTolerance:     document.DefaultLineTolerance,
		MinTextLength:     1,
		TextLayerMinChars: 20,
		DetectTables:      true,
		OCRLanguages:      []string{"eng"},
	}
}

// OptionsFromConfig maps the application config onto parse options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	lc := cfg.Layout
	opts.SkipHeaderFooter = lc.SkipHeaderFooter
	opts.Layout = layout.ConfigFromSettings(lc)
	if lc.LineTolerance > 0 {
		opts.LineTolerance = lc.LineTolerance
	}
	if lc.MinTextLength > 0 {
		opts.MinTextLength = lc.MinTextLength
	}
	if lc.TextLayerMinChars > 0 {
		opts.TextLayerMinChars = lc.TextLayerMinChars
	}
	opts.DetectTables = lc.DetectTables
	if len(cfg.Pipeline.OCRLanguages) > 0 {
		opts.OCRLanguages = cfg.Pipeline.OCRLanguages
	}
	return opts
}

// WithMargins returns a copy of opts with the header and footer margins
// replaced; non-positive values keep the current margin.
func (o Options) WithMargins(header, footer float64) Options {
	if header > 0 {
		o.Layout.HeaderMargin = header
	}
	if footer > 0 {
		o.Layout.FooterMargin = footer
	}
	return o
}
