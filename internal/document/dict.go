package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

// ToDict converts the document into plain maps and slices suitable for any
// generic encoder. FromDict(ToDict(d)) reproduces d exactly.
func (d *Document) ToDict() map[string]any {
	elements := make([]any, 0, len(d.Elements))
	for _, e := range d.Elements {
		elements = append(elements, e.toDict())
	}
	pages := make([]any, 0, len(d.Pages))
	for _, p := range d.Pages {
		pages = append(pages, map[string]any{
			"page_num": p.PageNum,
			"width":    p.Width,
			"height":   p.Height,
			"rotation": p.Rotation,
		})
	}
	warnings := make([]any, 0, len(d.Warnings))
	for _, w := range d.Warnings {
		warnings = append(warnings, w)
	}
	m := d.Metadata
	return map[string]any{
		"source_path":    d.SourcePath,
		"source_type":    d.SourceType,
		"line_tolerance": d.LineTolerance,
		"stopped":        d.Stopped,
		"warnings":       warnings,
		"elements":       elements,
		"pages":          pages,
		"metadata": map[string]any{
			"title":             m.Title,
			"author":            m.Author,
			"subject":           m.Subject,
			"creator":           m.Creator,
			"producer":          m.Producer,
			"creation_date":     m.CreationDate,
			"modification_date": m.ModificationDate,
			"page_count":        m.PageCount,
			"has_text_layer":    m.HasTextLayer,
		},
	}
}

func (e *Element) toDict() map[string]any {
	out := map[string]any{
		"element_id":         e.ID,
		"content":            e.Content,
		"element_type":       string(e.Type),
		"page_num":           e.PageNum,
		"should_translate":   e.ShouldTranslate,
		"bbox":               nil,
		"style":              nil,
		"translated_content": nil,
	}
	if e.BBox != nil {
		out["bbox"] = map[string]any{"x0": e.BBox.X0, "y0": e.BBox.Y0, "x1": e.BBox.X1, "y1": e.BBox.Y1}
	}
	if e.Style != nil {
		out["style"] = map[string]any{
			"font_name": e.Style.FontName,
			"font_size": e.Style.FontSize,
			"bold":      e.Style.Bold,
			"italic":    e.Style.Italic,
			"color":     e.Style.Color,
		}
	}
	if e.Translated != nil {
		out["translated_content"] = *e.Translated
	}
	meta := make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		meta[k] = v
	}
	out["metadata"] = meta
	return out
}

// FromDict rebuilds a document from the output of ToDict, or from the same
// structure decoded from JSON.
func FromDict(m map[string]any) (*Document, error) {
	r := dictReader{}
	d := &Document{
		SourcePath:    r.str(m, "source_path"),
		SourceType:    r.str(m, "source_type"),
		LineTolerance: r.float(m, "line_tolerance"),
		Stopped:       r.boolean(m, "stopped"),
	}
	for _, w := range r.list(m, "warnings") {
		if s, ok := w.(string); ok {
			d.Warnings = append(d.Warnings, s)
		}
	}

	for i, raw := range r.list(m, "pages") {
		pm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("pages[%d]: expected object, got %T", i, raw)
		}
		d.Pages = append(d.Pages, PageInfo{
			PageNum:  r.integer(pm, "page_num"),
			Width:    r.float(pm, "width"),
			Height:   r.float(pm, "height"),
			Rotation: r.integer(pm, "rotation"),
		})
	}

	for i, raw := range r.list(m, "elements") {
		em, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("elements[%d]: expected object, got %T", i, raw)
		}
		e, err := r.element(em)
		if err != nil {
			return nil, fmt.Errorf("elements[%d]: %w", i, err)
		}
		d.Elements = append(d.Elements, e)
	}

	if mm, ok := m["metadata"].(map[string]any); ok {
		d.Metadata = Metadata{
			Title:            r.str(mm, "title"),
			Author:           r.str(mm, "author"),
			Subject:          r.str(mm, "subject"),
			Creator:          r.str(mm, "creator"),
			Producer:         r.str(mm, "producer"),
			CreationDate:     r.str(mm, "creation_date"),
			ModificationDate: r.str(mm, "modification_date"),
			PageCount:        r.integer(mm, "page_count"),
			HasTextLayer:     r.boolean(mm, "has_text_layer"),
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}

// dictReader extracts typed values and remembers the first type mismatch.
type dictReader struct {
	err error
}

func (r *dictReader) fail(key string, v any, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: expected %s, got %T", key, want, v)
	}
}

func (r *dictReader) str(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, v, "string")
	}
	return s
}

func (r *dictReader) float(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			r.fail(key, v, "number")
		}
		return f
	default:
		r.fail(key, v, "number")
		return 0
	}
}

func (r *dictReader) integer(m map[string]any, key string) int {
	return int(r.float(m, key))
}

func (r *dictReader) boolean(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, v, "bool")
	}
	return b
}

func (r *dictReader) list(m map[string]any, key string) []any {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		r.fail(key, v, "list")
	}
	return l
}

func (r *dictReader) element(m map[string]any) (*Element, error) {
	e := &Element{
		ID:              r.str(m, "element_id"),
		Content:         r.str(m, "content"),
		Type:            ElementType(r.str(m, "element_type")),
		PageNum:         r.integer(m, "page_num"),
		ShouldTranslate: r.boolean(m, "should_translate"),
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown element type %q", e.Type)
	}
	if bm, ok := m["bbox"].(map[string]any); ok {
		b := geometry.BoundingBox{
			X0: r.float(bm, "x0"), Y0: r.float(bm, "y0"),
			X1: r.float(bm, "x1"), Y1: r.float(bm, "y1"),
		}
		e.BBox = &b
	}
	if sm, ok := m["style"].(map[string]any); ok {
		e.Style = &StyleInfo{
			FontName: r.str(sm, "font_name"),
			FontSize: r.float(sm, "font_size"),
			Bold:     r.boolean(sm, "bold"),
			Italic:   r.boolean(sm, "italic"),
			Color:    r.str(sm, "color"),
		}
	}
	if t, ok := m["translated_content"].(string); ok {
		e.Translated = &t
	}
	if mm, ok := m["metadata"].(map[string]any); ok && len(mm) > 0 {
		e.Metadata = make(map[string]any, len(mm))
		for k, v := range mm {
			e.Metadata[k] = v
		}
	}
	return e, nil
}

// Save writes the document as indented JSON.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d.ToDict(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a document written by Save.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return FromDict(m)
}
