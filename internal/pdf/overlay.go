package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// OverlayRenderer writes a copy of the source PDF with every translated
// element masked and restamped in place.
type OverlayRenderer struct {
	planner *render.Planner
	stamp   StampOptions
	conf    *model.Configuration
	log     logger.Logger
}

// NewOverlayRenderer creates an overlay renderer.
func NewOverlayRenderer(planner *render.Planner, stamp StampOptions) *OverlayRenderer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &OverlayRenderer{planner: planner, stamp: stamp, conf: conf, log: logger.Named("pdf")}
}

// Modes implements render.Renderer.
func (r *OverlayRenderer) Modes() []render.Mode { return []render.Mode{render.ModeOverlay} }

// Render implements render.Renderer.
func (r *OverlayRenderer) Render(ctx context.Context, doc *document.Document, lookup render.Lookup, outputPath string, opts render.Options) (*render.Result, error) {
	if err := checkTarget(render.ModeOverlay, doc, outputPath); err != nil {
		return nil, err
	}
	return r.overlay(ctx, doc, lookup, outputPath, opts)
}

// checkTarget validates mode against the output format and the document's
// geometry before anything is written.
func checkTarget(mode render.Mode, doc *document.Document, outputPath string) error {
	format, err := render.FormatFromPath(outputPath)
	if err != nil {
		return err
	}
	if err := render.Validate(mode, format, doc.SourceType); err != nil {
		return err
	}
	return render.CheckPlaceable(doc, mode)
}

func (r *OverlayRenderer) overlay(ctx context.Context, doc *document.Document, lookup render.Lookup, outputPath string, opts render.Options) (*render.Result, error) {
	plan := r.planner.WithMissing(opts.ShowMissing, opts.Placeholder).Plan(ctx, doc, lookup, opts.TargetLang)
	fontName := stampFont(plan.Font, r.log)

	stamps := make(map[int][]*model.Watermark)
	for _, pp := range plan.Pages {
		if ctx.Err() != nil {
			plan.Stopped = true
			break
		}
		wms, err := r.pageStamps(pp, fontName)
		if err != nil {
			return nil, types.NewAppErrorWithPage(types.ErrRender, "failed to build page stamps", pp.Info.PageNum+1, err)
		}
		if len(wms) > 0 {
			stamps[pp.Info.PageNum+1] = wms
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to create output directory", err)
	}
	if len(stamps) == 0 {
		if err := copyFile(doc.SourcePath, outputPath); err != nil {
			return nil, types.NewAppError(types.ErrRender, "failed to write output PDF", err)
		}
	} else if err := api.AddWatermarksSliceMapFile(doc.SourcePath, outputPath, stamps, r.conf); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to stamp translations", err)
	}

	res := &render.Result{
		OutputPath: outputPath,
		Mode:       render.ModeOverlay,
		Pages:      len(doc.Pages),
		Placed:     plan.Placed,
		Missing:    plan.Missing,
		Overflowed: plan.Overflowed,
		Unchanged:  plan.Unchanged,
		Skipped:    plan.Skipped,
		Stopped:    plan.Stopped,
	}
	if plan.Skipped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d translated elements have no position on the page and were not drawn", plan.Skipped))
	}
	if plan.Font.Fallback {
		res.Warnings = append(res.Warnings, "preferred font for "+opts.TargetLang+" unavailable, used "+plan.Font.Family)
	}
	if plan.Stopped {
		res.Warnings = append(res.Warnings, "rendering stopped before the last page")
	}
	r.log.Info("overlay rendered",
		logger.String("output", filepath.Base(outputPath)),
		logger.Int("stampedPages", len(stamps)),
		logger.Int("placed", plan.Placed),
		logger.Int("missing", plan.Missing),
		logger.Int("overflowed", plan.Overflowed),
		logger.Int("skipped", plan.Skipped),
		logger.Bool("stopped", plan.Stopped))
	return res, nil
}

// pageStamps returns the masks of a page followed by its text, so a mask
// never hides text stamped for a neighbouring element.
func (r *OverlayRenderer) pageStamps(pp render.PagePlan, fontName string) ([]*model.Watermark, error) {
	if len(pp.Placements) == 0 {
		return nil, nil
	}
	h := pp.Info.Height

	var masks []*model.Watermark
	if r.stamp.DrawMask {
		c, err := ParseHexColor(r.stamp.MaskColor)
		if err != nil {
			return nil, err
		}
		for _, pl := range pp.Placements {
			x0, y0, x1, y1 := pl.NativeMask(h)
			if x1 <= x0 || y1 <= y0 {
				continue
			}
			wm, err := maskWatermark(x0, y0, x1, y1, c)
			if err != nil {
				return nil, err
			}
			masks = append(masks, wm)
		}
	}

	texts := make([]*model.Watermark, 0, len(pp.Placements))
	for _, pl := range pp.Placements {
		wm, err := textWatermark(pl, h, fontName, r.stamp)
		if err != nil {
			return nil, err
		}
		texts = append(texts, wm)
	}
	return append(masks, texts...), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
