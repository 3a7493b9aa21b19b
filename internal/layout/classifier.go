// Package layout classifies extracted text blocks into region types and
// provides the geometric helpers parsers use to build those blocks.
package layout

import (
	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

// Config holds the classifier thresholds.
type Config struct {
	HeaderMargin          float64
	FooterMargin          float64
	TitleFontSize         float64
	TableOverlapThreshold float64
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return Config{
		HeaderMargin:          50,
		FooterMargin:          50,
		TitleFontSize:         16,
		TableOverlapThreshold: 0.5,
	}
}

// ConfigFromSettings maps the layout section of the application config.
// Zero values fall back to the defaults.
func ConfigFromSettings(lc config.LayoutConfig) Config {
	c := DefaultConfig()
	if lc.HeaderMargin > 0 {
		c.HeaderMargin = lc.HeaderMargin
	}
	if lc.FooterMargin > 0 {
		c.FooterMargin = lc.FooterMargin
	}
	if lc.TitleFontSize > 0 {
		c.TitleFontSize = lc.TitleFontSize
	}
	if lc.TableOverlapThreshold > 0 {
		c.TableOverlapThreshold = lc.TableOverlapThreshold
	}
	return c
}

// Block is a unit of text to classify, in internal coordinates.
type Block struct {
	Text     string
	BBox     geometry.BoundingBox
	FontSize float64
}

// Page carries the page-level inputs shared by all blocks of a page.
type Page struct {
	Width  float64
	Height float64
	Tables []geometry.BoundingBox
}

// Rule maps a block to a type when it matches.
type Rule struct {
	Name  string
	Match func(cfg Config, b Block, p Page) (document.ElementType, bool)
}

// Classifier assigns exactly one element type per block by evaluating its
// rules in order; the first match wins and text is the fallback.
type Classifier struct {
	cfg   Config
	rules []Rule
}

// NewClassifier creates a classifier with the default rule chain.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, rules: DefaultRules()}
}

// Config returns the thresholds in use.
func (c *Classifier) Config() Config { return c.cfg }

// Rules returns a copy of the rule chain.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// InsertRule adds r at position index. An index past the end appends.
func (c *Classifier) InsertRule(index int, r Rule) {
	if index < 0 {
		index = 0
	}
	if index >= len(c.rules) {
		c.rules = append(c.rules, r)
		return
	}
	c.rules = append(c.rules[:index], append([]Rule{r}, c.rules[index:]...)...)
}

// Classify returns the type of b on page p.
func (c *Classifier) Classify(b Block, p Page) document.ElementType {
	for _, r := range c.rules {
		if t, ok := r.Match(c.cfg, b, p); ok {
			return t
		}
	}
	return document.TypeText
}

// DefaultRules is header, footer/page number, table cell, title.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "header", Match: matchHeader},
		{Name: "footer", Match: matchFooter},
		{Name: "table_cell", Match: matchTableCell},
		{Name: "title", Match: matchTitle},
	}
}

func matchHeader(cfg Config, b Block, _ Page) (document.ElementType, bool) {
	if b.BBox.Y0 <= cfg.HeaderMargin {
		return document.TypeHeader, true
	}
	return "", false
}

func matchFooter(cfg Config, b Block, p Page) (document.ElementType, bool) {
	if p.Height <= 0 || b.BBox.Y1 < p.Height-cfg.FooterMargin {
		return "", false
	}
	if IsPageNumber(b.Text) {
		return document.TypePageNumber, true
	}
	return document.TypeFooter, true
}

func matchTableCell(cfg Config, b Block, p Page) (document.ElementType, bool) {
	for _, t := range p.Tables {
		if geometry.OverlapRatio(b.BBox, t) > cfg.TableOverlapThreshold {
			return document.TypeTableCell, true
		}
	}
	return "", false
}

func matchTitle(cfg Config, b Block, _ Page) (document.ElementType, bool) {
	if cfg.TitleFontSize > 0 && b.FontSize > cfg.TitleFontSize {
		return document.TypeTitle, true
	}
	return "", false
}

// ShouldTranslate is false for marginal regions when skipping is enabled.
func ShouldTranslate(t document.ElementType, skipHeaderFooter bool) bool {
	if skipHeaderFooter && t.IsMarginal() {
		return false
	}
	return true
}
