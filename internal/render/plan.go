package render

import (
	"context"
	"strings"
	"sync"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/fontfit"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// Align is the horizontal alignment of placed text.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

func (a Align) String() string {
	if a == AlignRight {
		return "right"
	}
	return "left"
}

// Placement is one piece of translated text positioned on a page. Boxes
// are in internal coordinates; use Native at the write boundary.
type Placement struct {
	ElementID string
	PageNum   int
	Box       geometry.BoundingBox
	// Mask is the area painted over the original text.
	Mask      geometry.BoundingBox
	Text      string
	Lines     []string
	Font      fontfit.Font
	Size      float64
	Width     float64
	Align     Align
	Direction fontfit.Direction
	Overflow  bool
	// Missing marks a placeholder drawn for an untranslated element.
	Missing bool
}

// Native returns the text box in the page's bottom-left-origin system.
func (p Placement) Native(pageHeight float64) (x0, y0, x1, y1 float64) {
	return p.Box.ToNative(pageHeight)
}

// NativeMask returns the mask box in the page's bottom-left-origin system.
func (p Placement) NativeMask(pageHeight float64) (x0, y0, x1, y1 float64) {
	return p.Mask.ToNative(pageHeight)
}

// PagePlan holds the placements of one page in reading order.
type PagePlan struct {
	Info       document.PageInfo
	Placements []Placement
}

// Plan is the full placement plan of a document for one target language.
type Plan struct {
	TargetLang string
	Font       fontfit.Font
	Pages      []PagePlan
	Placed     int
	Missing    int
	Overflowed int
	// Skipped counts translatable elements with no box to draw in.
	Skipped int
	// Unchanged counts translations equal to the original; nothing is drawn.
	Unchanged int
	Stopped   bool
}

// PlannerOptions configure placement.
type PlannerOptions struct {
	Params      fontfit.Params
	MaskMargin  float64
	Wrap        bool
	ShowMissing bool
	Placeholder string
}

// DefaultPlannerOptions mirrors the config defaults.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		Params:      fontfit.DefaultParams(),
		MaskMargin:  0.5,
		Wrap:        true,
		ShowMissing: true,
		Placeholder: config.DefaultMissingPlaceholder,
	}
}

// PlannerOptionsFromConfig maps the font and render sections.
func PlannerOptionsFromConfig(cfg *config.Config) PlannerOptions {
	opts := DefaultPlannerOptions()
	if cfg == nil {
		return opts
	}
	opts.Params = fontfit.ParamsFromConfig(cfg.Font)
	if cfg.Render.MaskMargin >= 0 {
		opts.MaskMargin = cfg.Render.MaskMargin
	}
	opts.Wrap = cfg.Render.Wrap
	opts.ShowMissing = cfg.Render.ShowMissing
	if cfg.Render.MissingPlaceholder != "" {
		opts.Placeholder = cfg.Render.MissingPlaceholder
	}
	return opts
}

// Planner computes placements for fixed-page renderers.
type Planner struct {
	table     *fontfit.Table
	opts      PlannerOptions
	log       logger.Logger
	measurers *measurerCache
}

type measurerCache struct {
	mu sync.Mutex
	m  map[fontfit.Font]fontfit.Measurer
}

// NewPlanner creates a planner that resolves fonts through table.
func NewPlanner(table *fontfit.Table, opts PlannerOptions) *Planner {
	return &Planner{
		table:     table,
		opts:      opts,
		log:       logger.Named("render"),
		measurers: &measurerCache{m: make(map[fontfit.Font]fontfit.Measurer)},
	}
}

// Options returns the planner settings.
func (p *Planner) Options() PlannerOptions { return p.opts }

// WithMissing returns a planner sharing p's fonts and measurers with the
// missing-translation settings replaced. An empty placeholder keeps the
// current one.
func (p *Planner) WithMissing(show bool, placeholder string) *Planner {
	c := *p
	c.opts.ShowMissing = show
	if placeholder != "" {
		c.opts.Placeholder = placeholder
	}
	return &c
}

// WithMeasurer pins the measurer used for font f.
func (p *Planner) WithMeasurer(f fontfit.Font, m fontfit.Measurer) *Planner {
	p.measurers.mu.Lock()
	defer p.measurers.mu.Unlock()
	p.measurers.m[f] = m
	return p
}

func (p *Planner) measurer(f fontfit.Font) fontfit.Measurer {
	p.measurers.mu.Lock()
	defer p.measurers.mu.Unlock()
	if m, ok := p.measurers.m[f]; ok {
		return m
	}
	m := fontfit.MeasurerFor(f)
	p.measurers.m[f] = m
	return m
}

// Font resolves the font used for targetLang.
func (p *Planner) Font(targetLang string) fontfit.Font { return p.table.Resolve(targetLang) }

// Plan places every translated element of doc. Cancellation is checked
// per page; a cancelled plan has Stopped set and covers the pages done.
func (p *Planner) Plan(ctx context.Context, doc *document.Document, lookup Lookup, targetLang string) *Plan {
	font := p.table.Resolve(targetLang)
	plan := &Plan{TargetLang: targetLang, Font: font}
	m := p.measurer(font)
	ordered := doc.ElementsInReadingOrder()

	for _, info := range doc.Pages {
		if ctx.Err() != nil {
			plan.Stopped = true
			break
		}
		plan.Pages = append(plan.Pages, p.planPage(ordered, info, lookup, font, m, plan))
	}

	p.log.Debug("placement planned",
		logger.String("lang", targetLang),
		logger.String("font", font.Family),
		logger.Int("placed", plan.Placed),
		logger.Int("missing", plan.Missing),
		logger.Int("overflowed", plan.Overflowed),
		logger.Int("skipped", plan.Skipped),
		logger.Int("unchanged", plan.Unchanged))
	return plan
}

func (p *Planner) planPage(ordered []*document.Element, info document.PageInfo, lookup Lookup, font fontfit.Font, m fontfit.Measurer, plan *Plan) PagePlan {
	pp := PagePlan{Info: info}
	for _, e := range ordered {
		if e.PageNum != info.PageNum || !e.ShouldTranslate {
			continue
		}
		text, ok := lookup(e)
		missing := !ok || strings.TrimSpace(text) == ""
		if missing {
			plan.Missing++
			if !p.opts.ShowMissing {
				continue
			}
			text = MissingText(p.opts.Placeholder, e.Content)
		}
		if !e.Renderable() {
			plan.Skipped++
			continue
		}
		if !missing && strings.TrimSpace(text) == strings.TrimSpace(e.Content) {
			plan.Unchanged++
			continue
		}

		pl := p.place(e, text, font, m)
		pl.Missing = missing
		if pl.Overflow {
			plan.Overflowed++
			p.log.Warn("translated text overflows its box",
				logger.String("element", e.ID),
				logger.Int("page", e.PageNum+1),
				logger.Float64("size", pl.Size),
				logger.String("code", string(types.ErrTextOverflow)))
		}
		plan.Placed++
		pp.Placements = append(pp.Placements, pl)
	}
	return pp
}

func (p *Planner) place(e *document.Element, text string, font fontfit.Font, m fontfit.Measurer) Placement {
	box := *e.BBox
	var res fontfit.Result
	if p.opts.Wrap {
		res = fontfit.FitWrapped(text, box, m, p.opts.Params)
	} else {
		res = fontfit.Fit(text, box, m, p.opts.Params)
	}
	dir := fontfit.DetectDirection(text)
	align := AlignLeft
	if dir == fontfit.RTL {
		align = AlignRight
	}
	return Placement{
		ElementID: e.ID,
		PageNum:   e.PageNum,
		Box:       box,
		Mask:      box.Expand(-p.opts.MaskMargin),
		Text:      text,
		Lines:     res.Lines,
		Font:      font,
		Size:      res.Size,
		Width:     res.Width,
		Align:     align,
		Direction: dir,
		Overflow:  res.Overflow,
	}
}
