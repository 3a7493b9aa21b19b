package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// SideBySideRenderer puts each original page next to its translated
// overlay on one double-width sheet.
type SideBySideRenderer struct {
	overlay *OverlayRenderer
	workDir string
}

// NewSideBySideRenderer creates a side-by-side renderer. Intermediate
// files go to workDir, or the system temp dir when it is empty.
func NewSideBySideRenderer(overlay *OverlayRenderer, workDir string) *SideBySideRenderer {
	return &SideBySideRenderer{overlay: overlay, workDir: workDir}
}

// Modes implements render.Renderer.
func (r *SideBySideRenderer) Modes() []render.Mode { return []render.Mode{render.ModeSideBySide} }

// Render implements render.Renderer.
func (r *SideBySideRenderer) Render(ctx context.Context, doc *document.Document, lookup render.Lookup, outputPath string, opts render.Options) (*render.Result, error) {
	if err := checkTarget(render.ModeSideBySide, doc, outputPath); err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp(r.workDir, "sidebyside_*")
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to create work directory", err)
	}
	defer os.RemoveAll(tmp)

	translated := filepath.Join(tmp, "translated.pdf")
	res, err := r.overlay.overlay(ctx, doc, lookup, translated, opts)
	if err != nil {
		return nil, err
	}

	n, err := api.PageCountFile(doc.SourcePath)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to count source pages", err)
	}

	merged := filepath.Join(tmp, "merged.pdf")
	if err := api.MergeCreateFile([]string{doc.SourcePath, translated}, merged, false, r.overlay.conf); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to merge original and translation", err)
	}

	interleaved := filepath.Join(tmp, "interleaved.pdf")
	if err := api.CollectFile(merged, interleaved, InterleavedPages(n), r.overlay.conf); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to interleave pages", err)
	}

	w, h := halfSheet(doc)
	nup, err := api.PDFNUpConfig(2, fmt.Sprintf("dimensions:%.0f %.0f, margin:0, border:on", 2*w, h), r.overlay.conf)
	if err != nil {
		return nil, types.NewAppError(types.ErrRender, "invalid page layout", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to create output directory", err)
	}
	if err := api.NUpFile([]string{interleaved}, outputPath, nil, nup, r.overlay.conf); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to lay out page pairs", err)
	}

	res.OutputPath = outputPath
	res.Mode = render.ModeSideBySide
	res.Pages = n
	r.overlay.log.Info("side-by-side rendered",
		logger.String("output", filepath.Base(outputPath)),
		logger.Int("sheets", n))
	return res, nil
}

// InterleavedPages returns the page order original 1, translated 1,
// original 2, ... for a merge of two n-page files.
func InterleavedPages(n int) []string {
	pages := make([]string, 0, 2*n)
	for i := 1; i <= n; i++ {
		pages = append(pages, strconv.Itoa(i), strconv.Itoa(n+i))
	}
	return pages
}

// halfSheet is the size of one half sheet: the first page's size.
func halfSheet(doc *document.Document) (w, h float64) {
	if len(doc.Pages) > 0 && doc.Pages[0].Width > 0 && doc.Pages[0].Height > 0 {
		return doc.Pages[0].Width, doc.Pages[0].Height
	}
	return parser.DefaultPageWidth, parser.DefaultPageHeight
}
