// Package document holds the format independent intermediate representation
// produced by parsers and consumed by the translator and renderers.
package document

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

// DefaultLineTolerance groups blocks whose top edges fall into the same
// 10pt bucket onto one visual line.
const DefaultLineTolerance = 10.0

// ElementType is the closed set of region tags.
type ElementType string

const (
	TypeText       ElementType = "text"
	TypeTitle      ElementType = "title"
	TypeHeader     ElementType = "header"
	TypeFooter     ElementType = "footer"
	TypeTable      ElementType = "table"
	TypeTableCell  ElementType = "table_cell"
	TypeListItem   ElementType = "list_item"
	TypeCaption    ElementType = "caption"
	TypePageNumber ElementType = "page_number"
	TypeFootnote   ElementType = "footnote"
)

var validTypes = map[ElementType]bool{
	TypeText: true, TypeTitle: true, TypeHeader: true, TypeFooter: true,
	TypeTable: true, TypeTableCell: true, TypeListItem: true, TypeCaption: true,
	TypePageNumber: true, TypeFootnote: true,
}

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool { return validTypes[t] }

// IsMarginal reports header, footer and page number regions, which are
// skipped from translation when header/footer skipping is on.
func (t ElementType) IsMarginal() bool {
	return t == TypeHeader || t == TypeFooter || t == TypePageNumber
}

// StyleInfo is informational styling captured at extraction.
type StyleInfo struct {
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Bold     bool    `json:"bold,omitempty"`
	Italic   bool    `json:"italic,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// Element is one translatable region.
type Element struct {
	ID              string                `json:"element_id"`
	Content         string                `json:"content"`
	Type            ElementType           `json:"element_type"`
	PageNum         int                   `json:"page_num"`
	BBox            *geometry.BoundingBox `json:"bbox,omitempty"`
	Style           *StyleInfo            `json:"style,omitempty"`
	ShouldTranslate bool                  `json:"should_translate"`
	Translated      *string               `json:"translated_content,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
}

// MetaRenderable is set to false on elements whose bbox has zero area.
const MetaRenderable = "renderable"

// Renderable reports whether the element can be placed at its bbox.
func (e *Element) Renderable() bool {
	if e.BBox == nil || e.BBox.IsEmpty() {
		return false
	}
	if v, ok := e.Metadata[MetaRenderable].(bool); ok {
		return v
	}
	return true
}

// Translation returns the translated text and whether one was applied.
func (e *Element) Translation() (string, bool) {
	if e.Translated == nil {
		return "", false
	}
	return *e.Translated, true
}

// SetMeta sets a metadata key, allocating the map when needed.
func (e *Element) SetMeta(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
}

// PageInfo describes one page. PageNum is 0-based and joins elements to pages.
type PageInfo struct {
	PageNum  int     `json:"page_num"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// Metadata is document level information from the source file.
type Metadata struct {
	Title            string `json:"title,omitempty"`
	Author           string `json:"author,omitempty"`
	Subject          string `json:"subject,omitempty"`
	Creator          string `json:"creator,omitempty"`
	Producer         string `json:"producer,omitempty"`
	CreationDate     string `json:"creation_date,omitempty"`
	ModificationDate string `json:"modification_date,omitempty"`
	PageCount        int    `json:"page_count"`
	HasTextLayer     bool   `json:"has_text_layer"`
}

// Document is the intermediate representation of one source file. It owns
// its elements and pages.
type Document struct {
	SourcePath    string     `json:"source_path"`
	SourceType    string     `json:"source_type"`
	Elements      []*Element `json:"elements"`
	Pages         []PageInfo `json:"pages"`
	Metadata      Metadata   `json:"metadata"`
	LineTolerance float64    `json:"line_tolerance,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
	// Stopped is set when parsing was cancelled before the last page.
	Stopped bool `json:"stopped,omitempty"`
}

// New creates an empty document for a source file.
func New(sourcePath, sourceType string) *Document {
	return &Document{
		SourcePath:    sourcePath,
		SourceType:    sourceType,
		LineTolerance: DefaultLineTolerance,
	}
}

// AddWarning records a non fatal problem.
func (d *Document) AddWarning(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Page returns the PageInfo for pageNum.
func (d *Document) Page(pageNum int) (PageInfo, bool) {
	for _, p := range d.Pages {
		if p.PageNum == pageNum {
			return p, true
		}
	}
	return PageInfo{}, false
}

// ElementsByPage returns the elements on one page in document order.
func (d *Document) ElementsByPage(pageNum int) []*Element {
	var out []*Element
	for _, e := range d.Elements {
		if e.PageNum == pageNum {
			out = append(out, e)
		}
	}
	return out
}

// TranslatableElements returns elements with ShouldTranslate set.
func (d *Document) TranslatableElements() []*Element {
	var out []*Element
	for _, e := range d.Elements {
		if e.ShouldTranslate {
			out = append(out, e)
		}
	}
	return out
}

// UniqueTexts returns the trimmed content of translatable elements with
// duplicates removed, in first-seen order. This is the batch sent for
// translation.
func (d *Document) UniqueTexts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range d.Elements {
		if !e.ShouldTranslate {
			continue
		}
		text := strings.TrimSpace(e.Content)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

// ApplyTranslations sets the translation of every translatable element whose
// trimmed content is a key in translations. It returns the number of
// elements updated; elements without a match stay untranslated.
func (d *Document) ApplyTranslations(translations map[string]string) int {
	applied := 0
	for _, e := range d.Elements {
		if !e.ShouldTranslate {
			continue
		}
		if t, ok := translations[strings.TrimSpace(e.Content)]; ok {
			t := t
			e.Translated = &t
			applied++
		}
	}
	return applied
}

// MissingTranslations counts translatable elements without a translation.
func (d *Document) MissingTranslations() int {
	n := 0
	for _, e := range d.Elements {
		if e.ShouldTranslate && e.Translated == nil && strings.TrimSpace(e.Content) != "" {
			n++
		}
	}
	return n
}

func (d *Document) lineTolerance() float64 {
	if d.LineTolerance > 0 {
		return d.LineTolerance
	}
	return DefaultLineTolerance
}

// LineBucket is the reading-order line index of a top edge.
func LineBucket(y0, tolerance float64) float64 {
	if tolerance <= 0 {
		tolerance = DefaultLineTolerance
	}
	return math.RoundToEven(y0 / tolerance)
}

// ReadingOrderLess orders a before b by (page, line bucket, x0). Elements
// without a bbox sort after all boxed elements of their page and keep
// their relative order under a stable sort.
func ReadingOrderLess(a, b *Element, tolerance float64) bool {
	if a.PageNum != b.PageNum {
		return a.PageNum < b.PageNum
	}
	if a.BBox == nil || b.BBox == nil {
		return a.BBox != nil && b.BBox == nil
	}
	la, lb := LineBucket(a.BBox.Y0, tolerance), LineBucket(b.BBox.Y0, tolerance)
	if la != lb {
		return la < lb
	}
	return a.BBox.X0 < b.BBox.X0
}

// ElementsInReadingOrder returns a new slice sorted into reading order.
// The result depends only on the element set and their current order.
func (d *Document) ElementsInReadingOrder() []*Element {
	out := make([]*Element, len(d.Elements))
	copy(out, d.Elements)
	tol := d.lineTolerance()
	sort.SliceStable(out, func(i, j int) bool {
		return ReadingOrderLess(out[i], out[j], tol)
	})
	return out
}

// SortReadingOrder reorders Elements in place into reading order.
func (d *Document) SortReadingOrder() {
	d.Elements = d.ElementsInReadingOrder()
}

// Validate checks id uniqueness, the page join key and bbox sanity.
func (d *Document) Validate() error {
	pages := make(map[int]bool, len(d.Pages))
	for _, p := range d.Pages {
		pages[p.PageNum] = true
	}
	ids := make(map[string]bool, len(d.Elements))
	for _, e := range d.Elements {
		if e.ID == "" {
			return fmt.Errorf("element with empty id on page %d", e.PageNum)
		}
		if ids[e.ID] {
			return fmt.Errorf("duplicate element id %q", e.ID)
		}
		ids[e.ID] = true
		if !pages[e.PageNum] {
			return fmt.Errorf("element %q references unknown page %d", e.ID, e.PageNum)
		}
		if !e.Type.Valid() {
			return fmt.Errorf("element %q has unknown type %q", e.ID, e.Type)
		}
		if e.BBox != nil && !e.BBox.Valid() {
			return fmt.Errorf("element %q has invalid bbox %v", e.ID, *e.BBox)
		}
	}
	return nil
}

// Stats summarises element counts for logging.
func (d *Document) Stats() map[ElementType]int {
	out := make(map[ElementType]int)
	for _, e := range d.Elements {
		out[e.Type]++
	}
	return out
}
